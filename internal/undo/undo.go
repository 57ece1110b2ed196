// Package undo keeps a durable, ordered log of reversible state changes.
//
// Each change is recorded as an Item naming an applier and carrying an opaque
// JSON payload. Undoing to an id walks the retained items from newest down to
// that id and hands each to its applier. Walked ids are always pruned, so a
// reversal is never attempted twice, even when an applier fails partway.
package undo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/metrics"
)

// ID identifies an undo item. IDs increase monotonically and are never reused.
type ID int64

// Item is one recorded, reversible change. Items are immutable.
type Item struct {
	ID          ID              `json:"id"`
	ApplierName string          `json:"applier"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (i Item) Decode(v any) error {
	if len(i.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(i.Payload, v)
}

// ApplierFunc reverses the change described by item.
type ApplierFunc func(ctx context.Context, item Item) error

// Store is the persistence capability the Log needs.
type Store interface {
	// PutUndoItem persists item and advances the store's high-water id.
	PutUndoItem(ctx context.Context, item Item) error

	// GetUndoItem returns the item with id, or ErrNotFound.
	GetUndoItem(ctx context.Context, id ID) (Item, error)

	// DeleteUndoItems removes the given ids. Missing ids are ignored.
	DeleteUndoItems(ctx context.Context, ids []ID) error

	// ListUndoItemIDs returns the stored ids in ascending order.
	ListUndoItemIDs(ctx context.Context) ([]ID, error)

	// NextUndoItemID returns one past the highest id ever stored, or 1.
	NextUndoItemID(ctx context.Context) (ID, error)
}

// IDGenerator hands out ids. It is a value so callers can snapshot it before a
// risky write and restore the snapshot if the write fails.
type IDGenerator struct {
	next ID
}

// NewIDGenerator returns a generator whose first id is next.
func NewIDGenerator(next ID) IDGenerator {
	if next < 1 {
		next = 1
	}
	return IDGenerator{next: next}
}

// Peek returns the id Next would return.
func (g IDGenerator) Peek() ID {
	return g.next
}

// Next returns the next id and advances the generator.
func (g *IDGenerator) Next() ID {
	id := g.next
	g.next++
	return id
}

// Log is the undo log. It is not safe for concurrent use; callers serialize
// access, and appliers may call back into the Log.
type Log struct {
	store    Store
	gen      IDGenerator
	retained []ID
	appliers map[string]ApplierFunc
	log      *log.Entry
}

// NewLog opens a Log over store, loading the retained ids and id generator.
func NewLog(ctx context.Context, store Store, logger *log.Entry) (*Log, error) {
	if logger == nil {
		logger = log.WithField("component", "undo")
	}
	ids, err := store.ListUndoItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list undo items: %w", err)
	}
	next, err := store.NextUndoItemID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load undo id generator: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if n := len(ids); n > 0 && ids[n-1] >= next {
		next = ids[n-1] + 1
	}

	return &Log{
		store:    store,
		gen:      NewIDGenerator(next),
		retained: ids,
		appliers: make(map[string]ApplierFunc),
		log:      logger,
	}, nil
}

// RegisterUndoApplier binds fn to name. Re-registering replaces the binding.
func (l *Log) RegisterUndoApplier(name string, fn ApplierFunc) {
	l.appliers[name] = fn
}

// RegisterUndoDataItem records a change reversible by the applier called
// applierName and returns its id. If persisting fails the generator is
// restored, so no id is consumed by a failed write.
func (l *Log) RegisterUndoDataItem(ctx context.Context, applierName string, payload any) (ID, error) {
	if _, ok := l.appliers[applierName]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownApplier, applierName)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode undo payload: %w", err)
	}

	snapshot := l.gen
	item := Item{ID: l.gen.Next(), ApplierName: applierName, Payload: raw}
	if err := l.store.PutUndoItem(ctx, item); err != nil {
		l.gen = snapshot
		return 0, fmt.Errorf("failed to persist undo item: %w", err)
	}

	l.retained = append(l.retained, item.ID)
	metrics.UndoItemsRegisteredTotal.Inc()
	l.log.WithFields(log.Fields{"id": item.ID, "applier": applierName}).Debug("registered undo item")
	return item.ID, nil
}

// NextID returns the id the next registration will receive.
func (l *Log) NextID() ID {
	return l.gen.Peek()
}

// RetainedIDs returns the retained ids, oldest first.
func (l *Log) RetainedIDs() []ID {
	return append([]ID(nil), l.retained...)
}

// Has reports whether id is retained.
func (l *Log) Has(id ID) bool {
	return l.indexOf(id) >= 0
}

// UndoToID reverses every retained item from the newest down to id, inclusive.
// With clearOnly the items are forgotten without being reversed.
//
// Once the walk starts, every id >= id is pruned whether or not the walk
// completes. The first applier failure stops the walk and is returned as an
// *ApplierError; items below it in the walk are never reversed.
func (l *Log) UndoToID(ctx context.Context, id ID, clearOnly bool) error {
	idx := l.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	walked := append([]ID(nil), l.retained[idx:]...)

	var walkErr error
	if !clearOnly {
		walkErr = l.walk(ctx, walked)
	}

	// Items registered by appliers during the walk sit after the walked ids.
	l.retained = append(l.retained[:idx:idx], l.retained[idx+len(walked):]...)
	if err := l.store.DeleteUndoItems(ctx, walked); err != nil {
		return errors.Join(walkErr, fmt.Errorf("failed to prune undo items: %w", err))
	}
	l.log.WithFields(log.Fields{"to": id, "pruned": len(walked), "clearOnly": clearOnly}).Debug("undo log pruned")
	return walkErr
}

// walk applies ids newest first and stops at the first failure.
func (l *Log) walk(ctx context.Context, ids []ID) error {
	for i := len(ids) - 1; i >= 0; i-- {
		item, err := l.store.GetUndoItem(ctx, ids[i])
		if err != nil {
			return fmt.Errorf("failed to load undo item %d: %w", ids[i], err)
		}
		fn, ok := l.appliers[item.ApplierName]
		if !ok {
			return &ApplierError{ID: item.ID, ApplierName: item.ApplierName, Err: ErrUnknownApplier}
		}
		if err := fn(ctx, item); err != nil {
			l.log.WithFields(log.Fields{"id": item.ID, "applier": item.ApplierName, "err": err}).
				Warn("undo applier failed")
			return &ApplierError{ID: item.ID, ApplierName: item.ApplierName, Err: err}
		}
		metrics.UndoItemsReversedTotal.Inc()
	}
	return nil
}

// ClearUndos forgets every retained item without reversing anything.
func (l *Log) ClearUndos(ctx context.Context) error {
	if len(l.retained) == 0 {
		return nil
	}
	ids := l.retained
	l.retained = nil
	if err := l.store.DeleteUndoItems(ctx, ids); err != nil {
		return fmt.Errorf("failed to clear undo items: %w", err)
	}
	return nil
}

func (l *Log) indexOf(id ID) int {
	i := sort.Search(len(l.retained), func(i int) bool { return l.retained[i] >= id })
	if i < len(l.retained) && l.retained[i] == id {
		return i
	}
	return -1
}
