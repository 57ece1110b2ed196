package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/backups"
)

// Backups lists the backup sets of the ledger, newest first.
func (e *Engine) Backups() ([]backups.Set, error) {
	return e.backups.GetBackups(e.paths.Root)
}

// RestoreBackup brings every record back to the state captured by the backup
// set of dateKey (YYYYMMDD). The restore is an undoable action.
func (e *Engine) RestoreBackup(ctx context.Context, dateKey string) (*SaveResult, error) {
	a, err := actions.NewAction(ActionRestore, restoreSetPayload{Date: dateKey})
	if err != nil {
		return nil, err
	}
	if err := e.actions.ValidateApplyAction(ctx, a); err != nil {
		return nil, err
	}
	return e.applyAndSave(ctx, a)
}

// PruneBackups removes backup sets beyond the retention limit.
func (e *Engine) PruneBackups(ctx context.Context) ([]backups.Set, error) {
	if e.backups.MaxBackups() <= 0 {
		return nil, ErrNoBackups
	}
	return e.backups.Prune(ctx, e.paths.Root)
}

func (e *Engine) findBackupSet(dateKey string) (backups.Set, error) {
	sets, err := e.Backups()
	if err != nil {
		return backups.Set{}, err
	}
	for _, set := range sets {
		if set.DateKey == dateKey {
			return set, nil
		}
	}
	return backups.Set{}, fmt.Errorf("%w: backup set %q", ErrNotFound, dateKey)
}
