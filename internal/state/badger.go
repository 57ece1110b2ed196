package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

const (
	itemPrefix = "undo/item/"
	nextKey    = "undo/next"
	listPrefix = "actions/"
)

// BadgerConfig configures OpenBadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool

	// Logger receives badger's own logging; nil silences it.
	Logger *log.Entry
}

// BadgerStore implements Store on a badger database. An undo item and the
// high-water mark are written in one transaction.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// OpenBadgerStore opens or creates the database described by cfg.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger store requires a path")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{entry: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func itemKey(id undo.ID) []byte {
	return []byte(fmt.Sprintf("%s%020d", itemPrefix, id))
}

func listKey(list actions.List) []byte {
	return []byte(listPrefix + string(list))
}

func (s *BadgerStore) PutUndoItem(ctx context.Context, item undo.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal undo item: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(itemKey(item.ID), data); err != nil {
			return fmt.Errorf("failed to put undo item: %w", err)
		}
		next, err := readNext(txn)
		if err != nil {
			return err
		}
		if item.ID < next {
			return nil
		}
		return txn.Set([]byte(nextKey), []byte(strconv.FormatInt(int64(item.ID)+1, 10)))
	})
}

func (s *BadgerStore) GetUndoItem(ctx context.Context, id undo.ID) (undo.Item, error) {
	var item undo.Item
	err := s.db.View(func(txn *badger.Txn) error {
		kv, err := txn.Get(itemKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %d", undo.ErrNotFound, id)
		} else if err != nil {
			return fmt.Errorf("failed to get undo item: %w", err)
		}
		return kv.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	return item, err
}

func (s *BadgerStore) DeleteUndoItems(ctx context.Context, ids []undo.ID) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(itemKey(id)); err != nil {
			return fmt.Errorf("failed to delete undo item %d: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to delete undo items: %w", err)
	}
	return nil
}

// ListUndoItemIDs iterates the item keys, which sort by id.
func (s *BadgerStore) ListUndoItemIDs(ctx context.Context) ([]undo.ID, error) {
	var ids []undo.ID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(itemPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), itemPrefix)
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("malformed undo item key %q: %w", raw, err)
			}
			ids = append(ids, undo.ID(n))
		}
		return nil
	})
	return ids, err
}

func (s *BadgerStore) NextUndoItemID(ctx context.Context) (undo.ID, error) {
	var next undo.ID
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		next, err = readNext(txn)
		return err
	})
	return next, err
}

func (s *BadgerStore) GetActionEntries(ctx context.Context, list actions.List) ([]actions.Entry, error) {
	var entries []actions.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		kv, err := txn.Get(listKey(list))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to get %s actions: %w", list, err)
		}
		return kv.Value(func(val []byte) error {
			return json.Unmarshal(val, &entries)
		})
	})
	return entries, err
}

func (s *BadgerStore) PutActionEntries(ctx context.Context, list actions.List, entries []actions.Entry) error {
	if entries == nil {
		entries = []actions.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal %s actions: %w", list, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(listKey(list), data)
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func readNext(txn *badger.Txn) (undo.ID, error) {
	kv, err := txn.Get([]byte(nextKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to get undo high-water mark: %w", err)
	}
	raw, err := kv.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed undo high-water mark %q: %w", raw, err)
	}
	return undo.ID(n), nil
}

// badgerLogger routes badger's logging into logrus, one level quieter.
type badgerLogger struct {
	entry *log.Entry
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.entry.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.entry.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.entry.Tracef(strings.TrimSpace(format), args...)
}
