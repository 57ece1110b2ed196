package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/config"
	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// stores returns one fresh instance of every Store implementation.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStateStore(fsops.NewMemFS(), "/ledger/.ledgerfs/undo")
	require.NoError(t, err)

	badgerStore, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]Store{
		"mem":    NewMemStore(),
		"file":   fileStore,
		"badger": badgerStore,
	}
}

func item(id undo.ID, applier, payload string) undo.Item {
	return undo.Item{ID: id, ApplierName: applier, Payload: []byte(payload)}
}

func TestStoreUndoItems(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			next, err := s.NextUndoItemID(ctx)
			require.NoError(t, err)
			assert.Equal(t, undo.ID(1), next)

			ids, err := s.ListUndoItemIDs(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)

			require.NoError(t, s.PutUndoItem(ctx, item(1, "a", `{"n":1}`)))
			require.NoError(t, s.PutUndoItem(ctx, item(2, "b", `{"n":2}`)))
			require.NoError(t, s.PutUndoItem(ctx, item(10, "a", `{"n":10}`)))

			got, err := s.GetUndoItem(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, "b", got.ApplierName)
			assert.JSONEq(t, `{"n":2}`, string(got.Payload))

			ids, err = s.ListUndoItemIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []undo.ID{1, 2, 10}, ids)

			require.NoError(t, s.DeleteUndoItems(ctx, []undo.ID{2, 10, 99}))
			ids, err = s.ListUndoItemIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []undo.ID{1}, ids)

			_, err = s.GetUndoItem(ctx, 2)
			assert.True(t, errors.Is(err, undo.ErrNotFound), "got %v", err)

			// The high-water mark survives deletion.
			next, err = s.NextUndoItemID(ctx)
			require.NoError(t, err)
			assert.Equal(t, undo.ID(11), next)
		})
	}
}

func TestStoreActionEntries(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.GetActionEntries(ctx, actions.AppliedList)
			require.NoError(t, err)
			assert.Empty(t, got)

			put, err := actions.NewAction("record.put", map[string]string{"name": "a"})
			require.NoError(t, err)
			batch := actions.CreateCompositeAction(actions.Action{Type: "record.batch"}, put, put)

			entries := []actions.Entry{
				{ID: "e1", Action: put, UndoIDs: []undo.ID{1}, AppliedAt: at},
				{ID: "e2", Action: batch, UndoIDs: []undo.ID{2, 3}, AppliedAt: at},
			}
			require.NoError(t, s.PutActionEntries(ctx, actions.AppliedList, entries))
			require.NoError(t, s.PutActionEntries(ctx, actions.UndoneList, entries[:1]))

			got, err = s.GetActionEntries(ctx, actions.AppliedList)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "e2", got[1].ID)
			assert.True(t, got[1].Action.Composite)
			assert.Len(t, got[1].Action.Subs, 2)
			assert.Equal(t, []undo.ID{2, 3}, got[1].UndoIDs)
			assert.True(t, at.Equal(got[0].AppliedAt))

			undone, err := s.GetActionEntries(ctx, actions.UndoneList)
			require.NoError(t, err)
			require.Len(t, undone, 1)

			require.NoError(t, s.PutActionEntries(ctx, actions.AppliedList, nil))
			got, err = s.GetActionEntries(ctx, actions.AppliedList)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestFileStateStoreReopen(t *testing.T) {
	ctx := context.Background()
	fs := fsops.NewMemFS()
	dir := "/ledger/.ledgerfs/undo"

	s, err := NewFileStateStore(fs, dir)
	require.NoError(t, err)
	require.NoError(t, s.PutUndoItem(ctx, item(4, "a", `{}`)))

	reopened, err := NewFileStateStore(fs, dir)
	require.NoError(t, err)
	next, err := reopened.NextUndoItemID(ctx)
	require.NoError(t, err)
	assert.Equal(t, undo.ID(5), next)

	ids, err := reopened.ListUndoItemIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []undo.ID{4}, ids)
}

// metaFailFS fails every write to the undo meta file.
type metaFailFS struct {
	fsops.FS
	fail bool
}

func (f *metaFailFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	if f.fail && filepath.Base(path) == "meta.json" {
		return errors.New("disk full")
	}
	return f.FS.AtomicWrite(path, data, perm)
}

func TestFileStateStoreFailedMetaLeavesNoItem(t *testing.T) {
	ctx := context.Background()
	fs := &metaFailFS{FS: fsops.NewMemFS(), fail: true}
	dir := "/ledger/.ledgerfs/undo"

	s, err := NewFileStateStore(fs, dir)
	require.NoError(t, err)
	l, err := undo.NewLog(ctx, s, nil)
	require.NoError(t, err)
	l.RegisterUndoApplier("a", func(context.Context, undo.Item) error { return nil })

	_, err = l.RegisterUndoDataItem(ctx, "a", map[string]int{"n": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write undo meta")
	assert.Empty(t, l.RetainedIDs())

	fs.fail = false
	reopenedStore, err := NewFileStateStore(fs, dir)
	require.NoError(t, err)
	ids, err := reopenedStore.ListUndoItemIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	reopened, err := undo.NewLog(ctx, reopenedStore, nil)
	require.NoError(t, err)
	assert.Empty(t, reopened.RetainedIDs())
}

func TestBadgerStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "undo")

	s, err := OpenBadgerStore(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.PutUndoItem(ctx, item(7, "a", `{}`)))
	require.NoError(t, s.DeleteUndoItems(ctx, []undo.ID{7}))
	require.NoError(t, s.Close())

	reopened, err := OpenBadgerStore(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	next, err := reopened.NextUndoItemID(ctx)
	require.NoError(t, err)
	assert.Equal(t, undo.ID(8), next)
}

func TestOpen(t *testing.T) {
	fs := fsops.NewMemFS()

	s, err := Open(config.StoreMemory, fs, "/x", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)

	s, err = Open(config.StoreJSON, fs, "/x", nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStateStore{}, s)

	_, err = Open("sqlite", fs, "/x", nil)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}
