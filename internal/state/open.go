package state

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/config"
	"github.com/danieljhkim/ledgerfs/internal/fsops"
)

// Open returns the store of the given undo_store kind rooted at dir.
func Open(kind string, fs fsops.FS, dir string, logger *log.Entry) (Store, error) {
	switch kind {
	case config.StoreMemory:
		return NewMemStore(), nil
	case config.StoreJSON:
		return NewFileStateStore(fs, dir)
	case config.StoreBadger:
		if logger != nil {
			logger = logger.WithField("component", "badger")
		}
		return OpenBadgerStore(BadgerConfig{Path: dir, SyncWrites: true, Logger: logger})
	default:
		return nil, fmt.Errorf("%w: unknown undo_store %q", config.ErrInvalidConfig, kind)
	}
}
