package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/danieljhkim/ledgerfs/internal/actions"
)

// Undo undoes the n most recent actions and saves. Whatever was undone
// before a failure is still saved.
func (e *Engine) Undo(ctx context.Context, n int) (*SaveResult, error) {
	err := e.actions.UndoLastAppliedActions(ctx, n)
	res, serr := e.Save(ctx)
	if err != nil {
		return res, errors.Join(err, serr)
	}
	return res, serr
}

// Redo reapplies the n most recently undone actions and saves.
func (e *Engine) Redo(ctx context.Context, n int) (*SaveResult, error) {
	err := e.actions.ReapplyLastUndoneActions(ctx, n)
	res, serr := e.Save(ctx)
	if err != nil {
		return res, errors.Join(err, serr)
	}
	return res, serr
}

// History summarizes the action log.
func (e *Engine) History() (*History, error) {
	h := &History{
		Applied: make([]HistoryEntry, 0, e.actions.AppliedActionCount()),
		Undone:  make([]HistoryEntry, 0, e.actions.UndoneActionCount()),
	}
	for i := 0; i < e.actions.AppliedActionCount(); i++ {
		entry, err := e.actions.AppliedActionAt(i)
		if err != nil {
			return nil, err
		}
		h.Applied = append(h.Applied, summarize(entry))
	}
	for i := 0; i < e.actions.UndoneActionCount(); i++ {
		entry, err := e.actions.UndoneActionAt(i)
		if err != nil {
			return nil, err
		}
		h.Undone = append(h.Undone, summarize(entry))
	}
	return h, nil
}

// ClearHistory forgets every applied and undone action and every undo item.
// Records are left as they are.
func (e *Engine) ClearHistory(ctx context.Context) error {
	if err := e.actions.ClearAppliedActions(ctx); err != nil {
		return err
	}
	if err := e.actions.ClearUndoneActions(ctx); err != nil {
		return err
	}
	if err := e.undo.ClearUndos(ctx); err != nil {
		return fmt.Errorf("failed to clear undo log: %w", err)
	}
	return nil
}

// Subscribe forwards action log events to fn.
func (e *Engine) Subscribe(fn actions.Observer) {
	e.actions.Subscribe(fn)
}

func summarize(entry actions.Entry) HistoryEntry {
	return HistoryEntry{
		ID:        entry.ID,
		Type:      entry.Action.Type,
		Names:     subjects(entry.Action),
		AppliedAt: entry.AppliedAt,
	}
}

// subjects returns the record names or backup date an action is about.
func subjects(a actions.Action) []string {
	if a.Composite {
		var names []string
		for _, sub := range a.Subs {
			names = append(names, subjects(sub)...)
		}
		return names
	}

	switch a.Type {
	case ActionPut, ActionDelete:
		var p deletePayload
		if err := a.Decode(&p); err == nil {
			return []string{p.Name}
		}
	case ActionRestore:
		var p restoreSetPayload
		if err := a.Decode(&p); err == nil {
			return []string{p.Date}
		}
	}
	return nil
}
