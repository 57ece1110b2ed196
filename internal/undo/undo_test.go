package undo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/ledgerfs/internal/state"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// flakyStore fails PutUndoItem while failPut is set.
type flakyStore struct {
	*state.MemStore
	failPut bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) PutUndoItem(ctx context.Context, item undo.Item) error {
	if s.failPut {
		return errDiskFull
	}
	return s.MemStore.PutUndoItem(ctx, item)
}

type payload struct {
	N int `json:"n"`
}

// recorder registers an applier that appends the payload of each reversed
// item to seen, failing on the values in failOn.
type recorder struct {
	seen   []int
	failOn map[int]bool
}

func (r *recorder) apply(ctx context.Context, item undo.Item) error {
	var p payload
	if err := item.Decode(&p); err != nil {
		return err
	}
	if r.failOn[p.N] {
		return errors.New("boom")
	}
	r.seen = append(r.seen, p.N)
	return nil
}

func newLog(t *testing.T, store undo.Store) (*undo.Log, *recorder) {
	t.Helper()
	l, err := undo.NewLog(context.Background(), store, nil)
	require.NoError(t, err)
	r := &recorder{failOn: map[int]bool{}}
	l.RegisterUndoApplier("rec", r.apply)
	return l, r
}

func register(t *testing.T, l *undo.Log, n int) undo.ID {
	t.Helper()
	id, err := l.RegisterUndoDataItem(context.Background(), "rec", payload{N: n})
	require.NoError(t, err)
	return id
}

func TestIDGenerator(t *testing.T) {
	g := undo.NewIDGenerator(0)
	assert.Equal(t, undo.ID(1), g.Peek())

	snapshot := g
	assert.Equal(t, undo.ID(1), g.Next())
	assert.Equal(t, undo.ID(2), g.Next())

	g = snapshot
	assert.Equal(t, undo.ID(1), g.Next())
}

func TestRegisterUnknownApplier(t *testing.T) {
	l, _ := newLog(t, state.NewMemStore())
	_, err := l.RegisterUndoDataItem(context.Background(), "nope", nil)
	assert.True(t, errors.Is(err, undo.ErrUnknownApplier))
	assert.Equal(t, undo.ID(1), l.NextID())
}

func TestIDsStayMonotonicWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemStore: state.NewMemStore()}
	l, _ := newLog(t, store)

	assert.Equal(t, undo.ID(1), register(t, l, 1))

	store.failPut = true
	_, err := l.RegisterUndoDataItem(ctx, "rec", payload{N: 2})
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, []undo.ID{1}, l.RetainedIDs())

	store.failPut = false
	assert.Equal(t, undo.ID(2), register(t, l, 3), "a failed write consumes no id")
}

func TestUndoToIDWalksNewestFirst(t *testing.T) {
	l, r := newLog(t, state.NewMemStore())
	register(t, l, 1)
	second := register(t, l, 2)
	register(t, l, 3)
	register(t, l, 4)

	require.NoError(t, l.UndoToID(context.Background(), second, false))
	assert.Equal(t, []int{4, 3, 2}, r.seen)
	assert.Equal(t, []undo.ID{1}, l.RetainedIDs())
}

func TestUndoToIDPrunesEvenWhenApplierFails(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemStore()
	l, r := newLog(t, store)
	first := register(t, l, 1)
	register(t, l, 2)
	register(t, l, 3)
	r.failOn[2] = true

	err := l.UndoToID(ctx, first, false)
	var applierErr *undo.ApplierError
	require.True(t, errors.As(err, &applierErr))
	assert.Equal(t, undo.ID(2), applierErr.ID)
	assert.Equal(t, "rec", applierErr.ApplierName)

	assert.Equal(t, []int{3}, r.seen, "walk stops at the failing item")
	assert.Empty(t, l.RetainedIDs(), "every walked id is pruned")

	ids, err := store.ListUndoItemIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.False(t, l.Has(first))
}

func TestUndoToIDClearOnly(t *testing.T) {
	l, r := newLog(t, state.NewMemStore())
	register(t, l, 1)
	second := register(t, l, 2)

	require.NoError(t, l.UndoToID(context.Background(), second, true))
	assert.Empty(t, r.seen)
	assert.Equal(t, []undo.ID{1}, l.RetainedIDs())
}

func TestUndoToUnknownID(t *testing.T) {
	l, r := newLog(t, state.NewMemStore())
	register(t, l, 1)

	err := l.UndoToID(context.Background(), 42, false)
	assert.True(t, errors.Is(err, undo.ErrUnknownID))
	assert.Empty(t, r.seen)
	assert.Equal(t, []undo.ID{1}, l.RetainedIDs())
}

func TestUndoWithUnregisteredApplier(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemStore()
	l, _ := newLog(t, store)
	id := register(t, l, 1)

	// A reopened log that never registered "rec".
	reopened, err := undo.NewLog(ctx, store, nil)
	require.NoError(t, err)
	err = reopened.UndoToID(ctx, id, false)
	assert.True(t, errors.Is(err, undo.ErrUnknownApplier))
}

func TestClearUndosKeepsIDsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemStore()
	l, r := newLog(t, store)
	register(t, l, 1)
	register(t, l, 2)

	require.NoError(t, l.ClearUndos(ctx))
	assert.Empty(t, r.seen)
	assert.Empty(t, l.RetainedIDs())

	reopened, _ := newLog(t, store)
	assert.Equal(t, undo.ID(3), reopened.NextID())
	assert.Equal(t, undo.ID(3), register(t, reopened, 3))
}

func TestApplierMayRegisterDuringWalk(t *testing.T) {
	ctx := context.Background()
	l, err := undo.NewLog(ctx, state.NewMemStore(), nil)
	require.NoError(t, err)

	var nested undo.ID
	l.RegisterUndoApplier("noop", func(context.Context, undo.Item) error { return nil })
	l.RegisterUndoApplier("reentrant", func(ctx context.Context, item undo.Item) error {
		var err error
		nested, err = l.RegisterUndoDataItem(ctx, "noop", nil)
		return err
	})

	id, err := l.RegisterUndoDataItem(ctx, "reentrant", nil)
	require.NoError(t, err)
	require.NoError(t, l.UndoToID(ctx, id, false))
	assert.Equal(t, undo.ID(2), nested)
	assert.Equal(t, []undo.ID{2}, l.RetainedIDs())
}
