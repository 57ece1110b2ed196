// Package engine provides the core business logic for ledgerfs operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. A ledger is a directory of record files; the engine
// holds the records in memory, turns every command into an action on the
// action log, and saves dirty records to disk as one file action batch
// decorated with dated backups.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Records: put/delete appliers and the record.restore undo applier
//   - Save: plans and commits the records as a single batch
//   - Backups: listing, point-in-time restore and retention
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/backups"
	"github.com/danieljhkim/ledgerfs/internal/clock"
	"github.com/danieljhkim/ledgerfs/internal/config"
	"github.com/danieljhkim/ledgerfs/internal/fileaction"
	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/hash"
	"github.com/danieljhkim/ledgerfs/internal/lock"
	"github.com/danieljhkim/ledgerfs/internal/state"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// txnPrefix names the transient snapshots a save takes of each target.
const txnPrefix = ".txn_"

// Engine orchestrates all ledgerfs operations on one open ledger.
// It is the main API surface called by the CLI. It is not safe for
// concurrent use.
type Engine struct {
	paths   *config.Paths
	cfg     *config.Config
	fs      fsops.FS
	hasher  hash.Hasher
	clock   clock.Clock
	lock    *lock.File
	store   state.Store
	undo    *undo.Log
	actions *actions.Log
	runner  *fileaction.Runner
	backups *backups.Policy
	log     *log.Entry
	closed  bool

	// records is the in-memory content of every record.
	records map[string][]byte

	// baseline is the hash each governed file had on disk at the last load
	// or save.
	baseline map[string]string
}

// Init prepares dir as a ledger, writing cfg (or the defaults) to its config
// file unless one exists.
func Init(dir string, cfg *config.Config) (*config.Paths, error) {
	paths, err := config.DefaultPaths(dir)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	fs := fsops.NewRealFS()
	exists, err := fs.Exists(paths.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to check config: %w", err)
	}
	if exists && cfg == nil {
		return paths, nil
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Save(fs, paths.Config); err != nil {
		return nil, err
	}
	return paths, nil
}

// Open opens an initialized ledger, taking its advisory lock until Close.
func Open(ctx context.Context, opts Options) (e *Engine, err error) {
	paths, err := config.DefaultPaths(opts.Dir)
	if err != nil {
		return nil, err
	}
	fs := fsops.NewRealFS()

	ok, err := fs.Exists(paths.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to check ledger metadata: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, paths.Root)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("ledger", paths.Root)

	clk := opts.Clock
	if clk == nil {
		clk = &clock.RealClock{}
	}

	cfg := opts.Config
	if cfg == nil {
		if cfg, err = config.Load(fs, paths.Config); err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lk, err := lock.Acquire(paths.Lock)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = lk.Release()
		}
	}()

	store := opts.Store
	if store == nil {
		if store, err = state.Open(cfg.UndoStore, fs, paths.Undo, logger); err != nil {
			return nil, err
		}
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()

	undoLog, err := undo.NewLog(ctx, store, logger.WithField("component", "undo"))
	if err != nil {
		return nil, err
	}
	actionLog, err := actions.NewLog(ctx, undoLog, store, actions.Options{
		Clock:  clk,
		Logger: logger.WithField("component", "actions"),
	})
	if err != nil {
		return nil, err
	}
	runner := fileaction.NewRunner(fs, logger.WithField("component", "fileaction"))

	e = &Engine{
		paths:   paths,
		cfg:     cfg,
		fs:      fs,
		hasher:  hash.NewSHA256Hasher(fs),
		clock:   clk,
		lock:    lk,
		store:   store,
		undo:    undoLog,
		actions: actionLog,
		runner:  runner,
		backups: backups.NewPolicy(runner, backups.Options{
			MaxBackups:      cfg.MaxBackups,
			BackupUnchanged: cfg.BackupUnchanged,
			Logger:          logger.WithField("component", "backups"),
		}),
		log: logger,
	}
	e.registerAppliers()

	if err := e.loadRecords(); err != nil {
		return nil, err
	}
	e.log.WithFields(log.Fields{"records": len(e.records), "store": cfg.UndoStore}).Debug("opened ledger")
	return e, nil
}

// Close releases the store and the advisory lock. Closing twice is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return errors.Join(e.store.Close(), e.lock.Release())
}

// Paths returns the ledger's paths.
func (e *Engine) Paths() *config.Paths {
	return e.paths
}

// Config returns the ledger's effective configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// loadRecords reads every governed file into memory and resets the baseline.
func (e *Engine) loadRecords() error {
	infos, err := e.fs.ReadDir(e.paths.Root)
	if err != nil {
		return fmt.Errorf("failed to read ledger directory: %w", err)
	}

	records := make(map[string][]byte)
	baseline := make(map[string]string)
	for _, info := range infos {
		name := info.Name()
		if strings.HasPrefix(name, txnPrefix) {
			e.log.WithField("path", name).Warn("found leftover transaction file")
			continue
		}
		if info.IsDir() || !info.Mode().IsRegular() || !isGoverned(name) {
			continue
		}
		data, err := e.fs.ReadFile(e.recordPath(name))
		if err != nil {
			return fmt.Errorf("failed to read record %s: %w", name, err)
		}
		records[name] = data
		baseline[name] = e.hasher.HashBytes(data)
	}

	e.records = records
	e.baseline = baseline
	return nil
}

// Get returns the content of a record.
func (e *Engine) Get(name string) ([]byte, error) {
	data, ok := e.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: record %q", ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

// Records lists the records, sorted by name.
func (e *Engine) Records() []RecordInfo {
	infos := make([]RecordInfo, 0, len(e.records))
	for name, data := range e.records {
		h := e.hasher.HashBytes(data)
		infos = append(infos, RecordInfo{
			Name:  name,
			Size:  len(data),
			Hash:  h,
			Saved: e.baseline[name] == h,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// dirty reports whether any record differs from its file on disk.
func (e *Engine) dirty() bool {
	for name := range e.baseline {
		if _, ok := e.records[name]; !ok {
			return true
		}
	}
	for _, info := range e.Records() {
		if !info.Saved {
			return true
		}
	}
	return false
}

func (e *Engine) recordPath(name string) string {
	return filepath.Join(e.paths.Root, name)
}
