package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// MemStore implements Store in process memory.
type MemStore struct {
	mu      sync.Mutex
	items   map[undo.ID]undo.Item
	next    undo.ID
	entries map[actions.List][]actions.Entry
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		items:   make(map[undo.ID]undo.Item),
		next:    1,
		entries: make(map[actions.List][]actions.Entry),
	}
}

func (s *MemStore) PutUndoItem(ctx context.Context, item undo.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	if item.ID >= s.next {
		s.next = item.ID + 1
	}
	return nil
}

func (s *MemStore) GetUndoItem(ctx context.Context, id undo.ID) (undo.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return undo.Item{}, fmt.Errorf("%w: %d", undo.ErrNotFound, id)
	}
	return item, nil
}

func (s *MemStore) DeleteUndoItems(ctx context.Context, ids []undo.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.items, id)
	}
	return nil
}

func (s *MemStore) ListUndoItemIDs(ctx context.Context) ([]undo.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]undo.ID, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemStore) NextUndoItemID(ctx context.Context) (undo.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, nil
}

func (s *MemStore) GetActionEntries(ctx context.Context, list actions.List) ([]actions.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]actions.Entry(nil), s.entries[list]...), nil
}

func (s *MemStore) PutActionEntries(ctx context.Context, list actions.List, entries []actions.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[list] = append([]actions.Entry(nil), entries...)
	return nil
}

func (s *MemStore) Close() error {
	return nil
}
