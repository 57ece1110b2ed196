package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

func (e *Engine) registerAppliers() {
	e.undo.RegisterUndoApplier(UndoRestoreRecord, e.restoreRecord)

	e.actions.RegisterActionApplier(ActionPut, e.applyPut)
	e.actions.RegisterActionApplier(ActionDelete, e.applyDelete)
	e.actions.RegisterActionApplier(ActionRestore, e.applyRestoreSet)
}

// Put sets the content of a record and saves.
func (e *Engine) Put(ctx context.Context, name string, data []byte) (*SaveResult, error) {
	a, err := actions.NewAction(ActionPut, putPayload{Name: name, Data: data})
	if err != nil {
		return nil, err
	}
	return e.applyAndSave(ctx, a)
}

// ValidatePut reports whether Put would be accepted, without changing anything.
func (e *Engine) ValidatePut(ctx context.Context, name string, data []byte) error {
	a, err := actions.NewAction(ActionPut, putPayload{Name: name, Data: data})
	if err != nil {
		return err
	}
	return e.actions.ValidateApplyAction(ctx, a)
}

// Delete removes records and saves. Several names are deleted as one
// undoable unit.
func (e *Engine) Delete(ctx context.Context, names ...string) (*SaveResult, error) {
	ops := make([]BatchOp, 0, len(names))
	for _, name := range names {
		ops = append(ops, BatchOp{Type: ActionDelete, Name: name})
	}
	return e.Batch(ctx, ops)
}

// Batch applies ops as one undoable unit and saves. A single op is applied
// as a plain action. Every op is validated against the current records first.
func (e *Engine) Batch(ctx context.Context, ops []BatchOp) (*SaveResult, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrValidation)
	}

	subs := make([]actions.Action, 0, len(ops))
	for _, op := range ops {
		var (
			a   actions.Action
			err error
		)
		switch op.Type {
		case ActionPut:
			a, err = actions.NewAction(ActionPut, putPayload{Name: op.Name, Data: op.Data})
		case ActionDelete:
			a, err = actions.NewAction(ActionDelete, deletePayload{Name: op.Name})
		default:
			err = fmt.Errorf("%w: unknown batch op %q", ErrValidation, op.Type)
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, a)
	}

	action := subs[0]
	if len(subs) > 1 {
		action = actions.CreateCompositeAction(actions.Action{Type: ActionBatch}, subs...)
	}
	if err := e.actions.ValidateApplyAction(ctx, action); err != nil {
		return nil, err
	}
	return e.applyAndSave(ctx, action)
}

// applyAndSave applies a, then saves. If a composite fails partway, the
// record changes its earlier steps made are undone before returning.
func (e *Engine) applyAndSave(ctx context.Context, a actions.Action) (*SaveResult, error) {
	first := e.undo.NextID()
	if _, err := e.actions.ApplyAction(ctx, a); err != nil {
		if e.undo.Has(first) {
			if uerr := e.undo.UndoToID(ctx, first, false); uerr != nil {
				err = errors.Join(err, fmt.Errorf("failed to roll back partial %s: %w", a.Type, uerr))
			}
		}
		return nil, err
	}
	return e.Save(ctx)
}

func (e *Engine) applyPut(ctx context.Context, validateOnly bool, a actions.Action) (*actions.Result, error) {
	var p putPayload
	if err := a.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ActionPut, err)
	}
	if err := validateRecordName(p.Name); err != nil {
		return nil, err
	}
	if validateOnly {
		return nil, nil
	}

	if err := e.registerSnapshot(ctx, p.Name); err != nil {
		return nil, err
	}
	e.records[p.Name] = p.Data
	e.log.WithFields(log.Fields{"name": p.Name, "size": len(p.Data)}).Debug("put record")
	return &actions.Result{Value: p.Name}, nil
}

func (e *Engine) applyDelete(ctx context.Context, validateOnly bool, a actions.Action) (*actions.Result, error) {
	var p deletePayload
	if err := a.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ActionDelete, err)
	}
	if _, ok := e.records[p.Name]; !ok {
		return nil, fmt.Errorf("%w: record %q", ErrNotFound, p.Name)
	}
	if validateOnly {
		return nil, nil
	}

	if err := e.registerSnapshot(ctx, p.Name); err != nil {
		return nil, err
	}
	delete(e.records, p.Name)
	e.log.WithField("name", p.Name).Debug("deleted record")
	return &actions.Result{Value: p.Name}, nil
}

// applyRestoreSet restores the governed files from a backup set on disk, then
// reloads the records, registering one undo item per record that changed.
func (e *Engine) applyRestoreSet(ctx context.Context, validateOnly bool, a actions.Action) (*actions.Result, error) {
	var p restoreSetPayload
	if err := a.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ActionRestore, err)
	}
	set, err := e.findBackupSet(p.Date)
	if err != nil {
		return nil, err
	}
	if e.dirty() {
		return nil, fmt.Errorf("%w: save before restoring a backup", ErrUnsaved)
	}
	if validateOnly {
		return nil, nil
	}

	names := make(map[string]struct{})
	for name := range e.records {
		names[name] = struct{}{}
	}
	for _, name := range set.Names() {
		if isGoverned(name) {
			names[name] = struct{}{}
		}
	}
	governed := make([]string, 0, len(names))
	for name := range names {
		governed = append(governed, name)
	}
	sort.Strings(governed)

	if err := e.backups.RestoreBackup(ctx, set, e.paths.Root, governed); err != nil {
		return nil, err
	}

	prev := e.records
	if err := e.loadRecords(); err != nil {
		return nil, err
	}
	for _, name := range governed {
		before, existed := prev[name]
		after, exists := e.records[name]
		if existed == exists && string(before) == string(after) {
			continue
		}
		snap := recordSnapshot{Name: name, Data: before, Existed: existed}
		if _, err := e.undo.RegisterUndoDataItem(ctx, UndoRestoreRecord, snap); err != nil {
			return nil, err
		}
	}

	e.log.WithFields(log.Fields{"date": set.DateKey, "names": len(governed)}).Info("restored backup set")
	return &actions.Result{Value: set.DateKey}, nil
}

// registerSnapshot records the current state of name so the change about to
// be made can be undone.
func (e *Engine) registerSnapshot(ctx context.Context, name string) error {
	data, existed := e.records[name]
	snap := recordSnapshot{Name: name, Data: data, Existed: existed}
	if _, err := e.undo.RegisterUndoDataItem(ctx, UndoRestoreRecord, snap); err != nil {
		return fmt.Errorf("failed to record undo for %s: %w", name, err)
	}
	return nil
}

// restoreRecord is the undo applier putting a record back as snapshotted.
func (e *Engine) restoreRecord(ctx context.Context, item undo.Item) error {
	var snap recordSnapshot
	if err := item.Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode record snapshot: %w", err)
	}
	if snap.Existed {
		e.records[snap.Name] = snap.Data
	} else {
		delete(e.records, snap.Name)
	}
	return nil
}
