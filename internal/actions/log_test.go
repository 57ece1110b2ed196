package actions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/state"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

type setPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type restorePayload struct {
	Key     string `json:"key"`
	Prev    string `json:"prev"`
	Existed bool   `json:"existed"`
}

// kv is a tiny domain: a map mutated by "set" actions.
type kv struct {
	data    map[string]string
	applied []string // values written by real applies, in order
	calls   int      // applier invocations, validation included
}

func (m *kv) set(ul *undo.Log) actions.ApplierFunc {
	return func(ctx context.Context, validateOnly bool, a actions.Action) (*actions.Result, error) {
		m.calls++
		var p setPayload
		if err := a.Decode(&p); err != nil {
			return nil, err
		}
		if p.Key == "" {
			return nil, errors.New("empty key")
		}
		if validateOnly {
			return nil, nil
		}

		prev, existed := m.data[p.Key]
		if _, err := ul.RegisterUndoDataItem(ctx, "kv.restore", restorePayload{Key: p.Key, Prev: prev, Existed: existed}); err != nil {
			return nil, err
		}
		m.data[p.Key] = p.Value
		m.applied = append(m.applied, p.Value)
		return &actions.Result{Value: p.Value}, nil
	}
}

func (m *kv) restore(ctx context.Context, item undo.Item) error {
	var p restorePayload
	if err := item.Decode(&p); err != nil {
		return err
	}
	if p.Existed {
		m.data[p.Key] = p.Prev
	} else {
		delete(m.data, p.Key)
	}
	return nil
}

type fixture struct {
	store *state.MemStore
	undo  *undo.Log
	log   *actions.Log
	kv    *kv
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return openFixture(t, state.NewMemStore())
}

func openFixture(t *testing.T, store *state.MemStore) *fixture {
	t.Helper()
	ctx := context.Background()

	ul, err := undo.NewLog(ctx, store, nil)
	require.NoError(t, err)
	al, err := actions.NewLog(ctx, ul, store, actions.Options{})
	require.NoError(t, err)

	m := &kv{data: map[string]string{}}
	ul.RegisterUndoApplier("kv.restore", m.restore)
	al.RegisterActionApplier("set", m.set(ul))
	return &fixture{store: store, undo: ul, log: al, kv: m}
}

func set(t *testing.T, key, value string) actions.Action {
	t.Helper()
	a, err := actions.NewAction("set", setPayload{Key: key, Value: value})
	require.NoError(t, err)
	return a
}

func (f *fixture) apply(t *testing.T, a actions.Action) any {
	t.Helper()
	v, err := f.log.ApplyAction(context.Background(), a)
	require.NoError(t, err)
	return v
}

func TestApplyUndoReapplyRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Equal(t, "1", f.apply(t, set(t, "x", "1")))
	assert.Equal(t, map[string]string{"x": "1"}, f.kv.data)

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	assert.Empty(t, f.kv.data)
	assert.Equal(t, 0, f.log.AppliedActionCount())
	assert.Equal(t, 1, f.log.UndoneActionCount())
	assert.Empty(t, f.undo.RetainedIDs())

	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 1))
	assert.Equal(t, map[string]string{"x": "1"}, f.kv.data)
	assert.Equal(t, 1, f.log.AppliedActionCount())
	assert.Equal(t, 0, f.log.UndoneActionCount())
}

func TestUndoRestoresEachPriorState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "1"))
	f.apply(t, set(t, "x", "2"))
	f.apply(t, set(t, "y", "3"))

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	assert.Equal(t, map[string]string{"x": "2"}, f.kv.data)

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	assert.Equal(t, map[string]string{"x": "1"}, f.kv.data)
}

func TestTwoAppliersUndoReapplyCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.log.RegisterActionApplier("other", f.kv.set(f.undo))

	other, err := actions.NewAction("other", setPayload{Key: "b", Value: "10"})
	require.NoError(t, err)

	f.apply(t, set(t, "a", "1"))
	f.apply(t, set(t, "a", "2"))
	f.apply(t, other)
	assert.Equal(t, 3, f.log.AppliedActionCount())
	assert.Equal(t, 0, f.log.UndoneActionCount())
	assert.Equal(t, map[string]string{"a": "2", "b": "10"}, f.kv.data)

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	assert.Equal(t, 2, f.log.AppliedActionCount())
	assert.Equal(t, 1, f.log.UndoneActionCount())
	assert.Equal(t, map[string]string{"a": "2"}, f.kv.data)

	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 1))
	assert.Equal(t, 3, f.log.AppliedActionCount())
	assert.Equal(t, 0, f.log.UndoneActionCount())
	assert.Equal(t, map[string]string{"a": "2", "b": "10"}, f.kv.data)

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 2))
	assert.Equal(t, 1, f.log.AppliedActionCount())
	assert.Equal(t, 2, f.log.UndoneActionCount())
	assert.Equal(t, map[string]string{"a": "1"}, f.kv.data)

	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 1))
	assert.Equal(t, 1, f.log.UndoneActionCount())
	assert.Equal(t, map[string]string{"a": "2"}, f.kv.data)
}

func TestCompositeIsOneUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "a", "0"))

	batch := actions.CreateCompositeAction(actions.Action{Type: "batch"},
		set(t, "a", "1"), set(t, "b", "2"), set(t, "c", "3"))
	assert.Equal(t, []any{"1", "2", "3"}, f.apply(t, batch))
	assert.Equal(t, 2, f.log.AppliedActionCount())

	entry, err := f.log.AppliedActionAt(1)
	require.NoError(t, err)
	assert.Len(t, entry.UndoIDs, 3)
	assert.Equal(t, "batch[3]", entry.Action.String())

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	assert.Equal(t, map[string]string{"a": "0"}, f.kv.data)

	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 1))
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, f.kv.data)
}

func TestCompositeLabelApplierNeverRuns(t *testing.T) {
	f := newFixture(t)
	f.log.RegisterActionApplier("batch", func(context.Context, bool, actions.Action) (*actions.Result, error) {
		t.Fatal("composite label applier invoked")
		return nil, nil
	})

	f.apply(t, actions.CreateCompositeAction(actions.Action{Type: "batch"}, set(t, "a", "1")))
	assert.Equal(t, "1", f.kv.data["a"])
}

func TestReapplyOrderIsChronological(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "a"))
	f.apply(t, set(t, "x", "b"))
	f.apply(t, set(t, "x", "c"))

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 3))
	assert.Empty(t, f.kv.data)

	newest, err := f.log.UndoneActionAt(0)
	require.NoError(t, err)
	var p setPayload
	require.NoError(t, newest.Action.Decode(&p))
	assert.Equal(t, "a", p.Value, "index 0 is the most recently undone entry")

	f.kv.applied = nil
	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 3))
	assert.Equal(t, []string{"a", "b", "c"}, f.kv.applied)
	assert.Equal(t, "c", f.kv.data["x"])

	for i, want := range []string{"a", "b", "c"} {
		e, err := f.log.AppliedActionAt(i)
		require.NoError(t, err)
		require.NoError(t, e.Action.Decode(&p))
		assert.Equal(t, want, p.Value)
	}
}

func TestPartialReapplyTakesMostRecentlyUndone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "a"))
	f.apply(t, set(t, "x", "b"))
	f.apply(t, set(t, "x", "c"))
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 3))

	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 2))
	assert.Equal(t, "b", f.kv.data["x"])
	assert.Equal(t, 1, f.log.UndoneActionCount())
}

func TestApplyClearsUndoneStack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "1"))
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	require.Equal(t, 1, f.log.UndoneActionCount())

	f.apply(t, set(t, "y", "2"))
	assert.Equal(t, 0, f.log.UndoneActionCount())
}

func TestCountsAreClamped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "1"))
	f.apply(t, set(t, "y", "2"))

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 0))
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, -3))
	assert.Equal(t, 2, f.log.AppliedActionCount())

	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 10))
	assert.Equal(t, 0, f.log.AppliedActionCount())
	assert.Empty(t, f.kv.data)

	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 10))
	assert.Equal(t, 2, f.log.AppliedActionCount())
}

func TestValidateHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.log.ValidateApplyAction(ctx, set(t, "x", "1")))
	assert.Empty(t, f.kv.data)
	assert.Equal(t, 0, f.log.AppliedActionCount())
	assert.Empty(t, f.undo.RetainedIDs())

	err := f.log.ValidateApplyAction(ctx, set(t, "", "1"))
	var applierErr *actions.ApplierError
	require.True(t, errors.As(err, &applierErr))
	assert.True(t, applierErr.ValidateOnly)
	assert.Equal(t, "set", applierErr.Type)
}

func TestValidateCompositeStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	batch := actions.CreateCompositeAction(actions.Action{Type: "batch"},
		set(t, "a", "1"), set(t, "", "2"), set(t, "c", "3"))

	require.Error(t, f.log.ValidateApplyAction(context.Background(), batch))
	assert.Equal(t, 2, f.kv.calls)
}

func TestUnknownActionType(t *testing.T) {
	f := newFixture(t)
	_, err := f.log.ApplyAction(context.Background(), actions.Action{Type: "nope"})
	assert.True(t, errors.Is(err, actions.ErrUnknownActionType))
	assert.Equal(t, 0, f.log.AppliedActionCount())
}

func TestFailedApplyAppendsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "1"))
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))

	_, err := f.log.ApplyAction(ctx, set(t, "", "bad"))
	require.Error(t, err)
	assert.Equal(t, 0, f.log.AppliedActionCount())
	assert.Equal(t, 1, f.log.UndoneActionCount(), "a failed apply leaves the undone stack alone")
}

func TestClearDoesNotInvokeAppliers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "1"))
	f.apply(t, set(t, "y", "2"))
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	calls := f.kv.calls

	require.NoError(t, f.log.ClearUndoneActions(ctx))
	require.NoError(t, f.log.ClearAppliedActions(ctx))
	assert.Equal(t, 0, f.log.AppliedActionCount())
	assert.Equal(t, 0, f.log.UndoneActionCount())
	assert.Equal(t, calls, f.kv.calls)
	assert.Equal(t, map[string]string{"x": "1"}, f.kv.data)
}

func TestUndoAfterUndoLogCleared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.apply(t, set(t, "x", "1"))
	require.NoError(t, f.undo.ClearUndos(ctx))

	err := f.log.UndoLastAppliedActions(ctx, 1)
	assert.True(t, errors.Is(err, actions.ErrNotUndoable))
	assert.Equal(t, 1, f.log.AppliedActionCount())
	assert.Equal(t, "1", f.kv.data["x"])
}

func TestEventsAndCallbacks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var events []actions.Event
	f.log.Subscribe(func(ev actions.Event) { events = append(events, ev) })

	var hooks []string
	f.log.RegisterActionApplier("hooked", func(ctx context.Context, validateOnly bool, a actions.Action) (*actions.Result, error) {
		return &actions.Result{
			Value:     "v",
			PostApply: func(context.Context) { hooks = append(hooks, "apply") },
			PostUndo:  func(context.Context) { hooks = append(hooks, "undo") },
		}, nil
	})

	f.apply(t, actions.Action{Type: "hooked"})
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))
	require.NoError(t, f.log.ReapplyLastUndoneActions(ctx, 1))

	require.Len(t, events, 3)
	assert.Equal(t, actions.EventApplied, events[0].Kind)
	assert.Equal(t, "v", events[0].Result)
	assert.Equal(t, actions.EventUndone, events[1].Kind)
	assert.Empty(t, events[1].Result, "hooked registers no undo items")
	assert.Equal(t, actions.EventReapplied, events[2].Kind)
	assert.Equal(t, "v", events[2].Result)
	assert.Equal(t, []string{"apply", "undo", "apply"}, hooks)

	events = nil
	f.apply(t, set(t, "x", "1"))
	ids := f.undo.RetainedIDs()
	require.Len(t, ids, 1)
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))

	require.Len(t, events, 2)
	assert.Equal(t, actions.EventUndone, events[1].Kind)
	assert.Equal(t, ids, events[1].Result)
}

func TestLogReloadsFromStore(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemStore()
	f := openFixture(t, store)
	f.apply(t, set(t, "x", "1"))
	f.apply(t, set(t, "x", "2"))
	require.NoError(t, f.log.UndoLastAppliedActions(ctx, 1))

	reopened := openFixture(t, store)
	reopened.kv.data = map[string]string{"x": "1"}
	assert.Equal(t, 1, reopened.log.AppliedActionCount())
	assert.Equal(t, 1, reopened.log.UndoneActionCount())

	require.NoError(t, reopened.log.UndoLastAppliedActions(ctx, 1))
	assert.Empty(t, reopened.kv.data)
}

func TestAccessorsRejectBadIndex(t *testing.T) {
	f := newFixture(t)
	_, err := f.log.AppliedActionAt(0)
	assert.True(t, errors.Is(err, actions.ErrIndexOutOfRange))
	_, err = f.log.UndoneActionAt(-1)
	assert.True(t, errors.Is(err, actions.ErrIndexOutOfRange))
}
