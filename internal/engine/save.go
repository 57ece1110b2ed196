package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/backups"
	"github.com/danieljhkim/ledgerfs/internal/fileaction"
	"github.com/danieljhkim/ledgerfs/internal/planner"
)

// Save writes dirty records to disk as one file action batch. It fails with
// ErrConflict, touching nothing, if a governed file changed on disk since it
// was last loaded or saved.
func (e *Engine) Save(ctx context.Context) (*SaveResult, error) {
	return e.save(ctx, false)
}

// ForceSave is Save overwriting files changed outside the ledger.
func (e *Engine) ForceSave(ctx context.Context) (*SaveResult, error) {
	return e.save(ctx, true)
}

func (e *Engine) save(ctx context.Context, force bool) (*SaveResult, error) {
	desired := make(map[string]string, len(e.records))
	for name, data := range e.records {
		desired[name] = e.hasher.HashBytes(data)
	}

	plan, err := planner.BuildSavePlan(e.fs, e.hasher, e.paths.Root, desired, e.baseline, force)
	if err != nil {
		return nil, fmt.Errorf("failed to plan save: %w", err)
	}
	if plan.HasConflicts() {
		reasons := make([]string, 0, len(plan.Conflicts))
		for _, c := range plan.Conflicts {
			reasons = append(reasons, c.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrConflict, strings.Join(reasons, "; "))
	}

	result := &SaveResult{Written: []string{}, Deleted: []string{}}
	if !plan.HasChanges() {
		return result, nil
	}

	batch := e.buildBatch(plan, result)
	if err := e.backups.ApplyToFileActions(batch, e.clock.Now()); err != nil {
		return nil, fmt.Errorf("failed to assign backups: %w", err)
	}

	err = e.runner.PerformFileActions(ctx, batch)
	var finalizeErr *fileaction.FinalizeError
	switch {
	case errors.As(err, &finalizeErr):
		// The batch committed; only cleanup failed.
		e.log.WithField("err", err).Warn("save committed with cleanup errors")
		result.Warnings = append(result.Warnings, fmt.Sprintf("saved, but cleanup failed: %v", err))
	case err != nil:
		return nil, fmt.Errorf("failed to save records: %w", err)
	}

	for _, op := range plan.Operations {
		if op.Type == planner.OpDelete {
			delete(e.baseline, op.Name)
		} else {
			e.baseline[op.Name] = op.Hash
		}
	}
	for _, a := range batch {
		if b, ok := a.(fileaction.Backupable); ok && backups.IsBackupName(filepath.Base(b.BackupPath())) {
			result.Backups = append(result.Backups, filepath.Base(b.BackupPath()))
		}
	}

	pruned, err := e.backups.Prune(ctx, e.paths.Root)
	if err != nil {
		return result, fmt.Errorf("saved, but failed to prune backups: %w", err)
	}
	result.Pruned = pruned

	e.log.WithFields(log.Fields{
		"written": len(result.Written),
		"deleted": len(result.Deleted),
		"backups": len(result.Backups),
		"pruned":  len(pruned),
	}).Info("saved ledger")
	return result, nil
}

// buildBatch turns plan into file actions. Every mutated target gets a
// transient snapshot so a failed batch can be reverted even when no dated
// backup is assigned.
func (e *Engine) buildBatch(plan *planner.SavePlan, result *SaveResult) []fileaction.Action {
	var batch []fileaction.Action
	for _, op := range plan.Operations {
		scratch := txnPrefix + op.Name

		switch op.Type {
		case planner.OpWrite:
			r := fileaction.NewReplace(op.Path, fileaction.WriteBytes(e.records[op.Name], 0644))
			r.SetTransientBackup(scratch)
			r.SetNoFileName(scratch + ".none")
			batch = append(batch, r)
			result.Written = append(result.Written, op.Name)
		case planner.OpDelete:
			d := fileaction.NewDelete(op.Path)
			d.SetTransientBackup(scratch)
			batch = append(batch, d)
			result.Deleted = append(result.Deleted, op.Name)
		case planner.OpKeep:
			result.Kept = append(result.Kept, op.Name)
			if e.cfg.BackupUnchanged {
				batch = append(batch, fileaction.NewKeep(op.Path))
			}
		}
	}
	return batch
}
