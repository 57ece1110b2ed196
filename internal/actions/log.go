package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/clock"
	"github.com/danieljhkim/ledgerfs/internal/metrics"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// Options configure a Log.
type Options struct {
	Clock  clock.Clock
	Logger *log.Entry
}

// Log tracks applied and undone actions on top of an undo.Log.
//
// The applied log is chronological. The undone stack is kept internally in
// the order entries were undone, so its tail is the most recently undone
// entry; UndoneActionAt(0) reads that tail.
//
// A Log is not safe for concurrent use.
type Log struct {
	undo      *undo.Log
	store     EntryStore
	appliers  map[string]ApplierFunc
	applied   []Entry
	undone    []Entry
	observers []Observer
	clock     clock.Clock
	log       *log.Entry
}

// NewLog opens a Log, loading both sequences from store.
func NewLog(ctx context.Context, undoLog *undo.Log, store EntryStore, opts Options) (*Log, error) {
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "actions")
	}

	applied, err := store.GetActionEntries(ctx, AppliedList)
	if err != nil {
		return nil, fmt.Errorf("failed to load applied actions: %w", err)
	}
	undone, err := store.GetActionEntries(ctx, UndoneList)
	if err != nil {
		return nil, fmt.Errorf("failed to load undone actions: %w", err)
	}

	return &Log{
		undo:     undoLog,
		store:    store,
		appliers: make(map[string]ApplierFunc),
		applied:  applied,
		undone:   undone,
		clock:    opts.Clock,
		log:      opts.Logger,
	}, nil
}

// UndoLog returns the undo log appliers register their items with.
func (l *Log) UndoLog() *undo.Log {
	return l.undo
}

// RegisterActionApplier binds fn to actionType.
func (l *Log) RegisterActionApplier(actionType string, fn ApplierFunc) {
	l.appliers[actionType] = fn
}

// Subscribe adds an observer of applied, undone and reapplied events.
func (l *Log) Subscribe(fn Observer) {
	l.observers = append(l.observers, fn)
}

// ApplyAction applies action for real, appends it to the applied log and
// clears the undone stack. A composite action returns a []any holding the
// result value of each sub-action.
//
// If an applier fails, nothing is appended. Sub-actions of a composite that
// already applied are not rolled back; their undo items stay in the undo log.
func (l *Log) ApplyAction(ctx context.Context, action Action) (any, error) {
	entry, value, err := l.apply(ctx, action)
	if err != nil {
		return nil, err
	}

	l.applied = append(l.applied, entry)
	l.undone = nil
	if err := l.persist(ctx); err != nil {
		return nil, err
	}

	runCallbacks(ctx, entry.postApply)
	l.emit(Event{Kind: EventApplied, Action: action, Result: value})
	metrics.ActionsTotal.WithLabelValues(metrics.Applied).Inc()
	l.log.WithFields(log.Fields{"action": action.String(), "undoIds": entry.UndoIDs}).Debug("applied action")
	return value, nil
}

// ValidateApplyAction runs action's appliers in validate-only mode and
// returns the first error, or nil. Validation stops at the first failing
// sub-action of a composite.
func (l *Log) ValidateApplyAction(ctx context.Context, action Action) error {
	_, _, err := l.run(ctx, true, action)
	return err
}

// UndoLastAppliedActions undoes the n newest applied entries, newest first,
// pushing each onto the undone stack.
//
// An entry whose undo items are no longer retained is left in place and
// ErrNotUndoable is returned. If an undo applier fails, the entry is dropped
// from both sequences (its undo items were pruned) and the error returned.
func (l *Log) UndoLastAppliedActions(ctx context.Context, n int) error {
	n = min(n, len(l.applied))
	for i := 0; i < n; i++ {
		entry := l.applied[len(l.applied)-1]
		if len(entry.UndoIDs) > 0 && !l.undo.Has(entry.UndoIDs[0]) {
			return fmt.Errorf("%w: %s (undo id %d)", ErrNotUndoable, entry.Action, entry.UndoIDs[0])
		}

		l.applied = l.applied[:len(l.applied)-1]
		if len(entry.UndoIDs) > 0 {
			if err := l.undo.UndoToID(ctx, entry.UndoIDs[0], false); err != nil {
				perr := l.persist(ctx)
				return errors.Join(fmt.Errorf("failed to undo %s: %w", entry.Action, err), perr)
			}
		}
		reversed := entry.UndoIDs
		entry.UndoIDs = nil
		l.undone = append(l.undone, entry)
		if err := l.persist(ctx); err != nil {
			return err
		}

		runCallbacksReversed(ctx, entry.postUndo)
		l.emit(Event{Kind: EventUndone, Action: entry.Action, Result: reversed})
		metrics.ActionsTotal.WithLabelValues(metrics.Undone).Inc()
		l.log.WithField("action", entry.Action.String()).Debug("undid action")
	}
	return nil
}

// ReapplyLastUndoneActions reapplies the n most recently undone entries in
// the order they were originally applied, appending them to the applied log.
// An entry whose applier fails stays on the undone stack.
func (l *Log) ReapplyLastUndoneActions(ctx context.Context, n int) error {
	n = min(n, len(l.undone))
	for i := 0; i < n; i++ {
		prev := l.undone[len(l.undone)-1]

		entry, value, err := l.apply(ctx, prev.Action)
		if err != nil {
			return fmt.Errorf("failed to reapply %s: %w", prev.Action, err)
		}
		entry.ID = prev.ID

		l.undone = l.undone[:len(l.undone)-1]
		l.applied = append(l.applied, entry)
		if err := l.persist(ctx); err != nil {
			return err
		}

		runCallbacks(ctx, entry.postApply)
		l.emit(Event{Kind: EventReapplied, Action: entry.Action, Result: value})
		metrics.ActionsTotal.WithLabelValues(metrics.Reapplied).Inc()
		l.log.WithField("action", entry.Action.String()).Debug("reapplied action")
	}
	return nil
}

// ClearUndoneActions discards the undone stack without invoking appliers.
func (l *Log) ClearUndoneActions(ctx context.Context) error {
	l.undone = nil
	return l.persistList(ctx, UndoneList, nil)
}

// ClearAppliedActions discards the applied log without invoking appliers.
func (l *Log) ClearAppliedActions(ctx context.Context) error {
	l.applied = nil
	return l.persistList(ctx, AppliedList, nil)
}

// AppliedActionCount returns the length of the applied log.
func (l *Log) AppliedActionCount() int {
	return len(l.applied)
}

// UndoneActionCount returns the depth of the undone stack.
func (l *Log) UndoneActionCount() int {
	return len(l.undone)
}

// AppliedActionAt returns the i-th applied entry, oldest first.
func (l *Log) AppliedActionAt(i int) (Entry, error) {
	if i < 0 || i >= len(l.applied) {
		return Entry{}, fmt.Errorf("%w: applied index %d of %d", ErrIndexOutOfRange, i, len(l.applied))
	}
	return l.applied[i], nil
}

// UndoneActionAt returns the i-th undone entry; 0 is the most recently undone.
func (l *Log) UndoneActionAt(i int) (Entry, error) {
	if i < 0 || i >= len(l.undone) {
		return Entry{}, fmt.Errorf("%w: undone index %d of %d", ErrIndexOutOfRange, i, len(l.undone))
	}
	return l.undone[len(l.undone)-1-i], nil
}

// apply runs action for real and builds its entry from the undo items
// registered meanwhile.
func (l *Log) apply(ctx context.Context, action Action) (Entry, any, error) {
	first := l.undo.NextID()
	value, results, err := l.run(ctx, false, action)
	if err != nil {
		return Entry{}, nil, err
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Action:    action,
		AppliedAt: l.clock.Now(),
	}
	for _, id := range l.undo.RetainedIDs() {
		if id >= first {
			entry.UndoIDs = append(entry.UndoIDs, id)
		}
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.PostApply != nil {
			entry.postApply = append(entry.postApply, res.PostApply)
		}
		if res.PostUndo != nil {
			entry.postUndo = append(entry.postUndo, res.PostUndo)
		}
	}
	return entry, value, nil
}

// run invokes the appliers of action's steps in order, stopping at the first
// failure.
func (l *Log) run(ctx context.Context, validateOnly bool, action Action) (any, []*Result, error) {
	steps := action.steps()
	results := make([]*Result, 0, len(steps))
	values := make([]any, 0, len(steps))

	for _, step := range steps {
		fn, ok := l.appliers[step.Type]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownActionType, step.Type)
		}
		res, err := fn(ctx, validateOnly, step)
		if err != nil {
			return nil, nil, &ApplierError{Type: step.Type, ValidateOnly: validateOnly, Err: err}
		}
		results = append(results, res)
		if res != nil {
			values = append(values, res.Value)
		} else {
			values = append(values, nil)
		}
	}

	if action.Composite {
		return values, results, nil
	}
	return values[0], results, nil
}

func (l *Log) persist(ctx context.Context) error {
	if err := l.persistList(ctx, AppliedList, l.applied); err != nil {
		return err
	}
	return l.persistList(ctx, UndoneList, l.undone)
}

func (l *Log) persistList(ctx context.Context, list List, entries []Entry) error {
	if err := l.store.PutActionEntries(ctx, list, entries); err != nil {
		return fmt.Errorf("failed to persist %s actions: %w", list, err)
	}
	return nil
}

func (l *Log) emit(ev Event) {
	for _, fn := range l.observers {
		fn(ev)
	}
}

func runCallbacks(ctx context.Context, fns []func(context.Context)) {
	for _, fn := range fns {
		fn(ctx)
	}
}

func runCallbacksReversed(ctx context.Context, fns []func(context.Context)) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i](ctx)
	}
}
