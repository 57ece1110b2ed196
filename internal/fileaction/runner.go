package fileaction

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/metrics"
)

// Runner executes batches of Actions against a filesystem.
type Runner struct {
	fs  fsops.FS
	log *log.Entry
}

// NewRunner creates a Runner. A nil logger uses the standard logger.
func NewRunner(fs fsops.FS, logger *log.Entry) *Runner {
	if logger == nil {
		logger = log.WithField("component", "fileaction")
	}
	return &Runner{fs: fs, log: logger}
}

// FS returns the filesystem the runner mutates.
func (r *Runner) FS() fsops.FS {
	return r.fs
}

// PerformFileActions applies actions strictly in order. If every apply
// succeeds, each action is finalized in order. If an apply fails, every action
// that completed its apply is reverted in reverse order and an *ApplyError
// wrapping the original error is returned; the failing action is not reverted.
//
// ctx is only consulted before the first apply. Once started, a batch runs to
// completion or to full rollback.
func (r *Runner) PerformFileActions(ctx context.Context, actions []Action) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("file batch not started: %w", err)
	}
	for i, a := range actions {
		if a.State() != Pending {
			return fmt.Errorf("%w: action %d (%s) is %s", ErrNotPending, i, a, a.State())
		}
	}
	ctx = context.WithoutCancel(ctx)

	for i, a := range actions {
		r.log.WithFields(log.Fields{"index": i, "action": a.String()}).Debug("applying file action")

		if err := a.apply(ctx, r.fs); err != nil {
			applyErr := &ApplyError{Index: i, Action: a, Err: err}
			applyErr.RevertErrs = r.revert(ctx, actions[:i])
			metrics.FileBatchesTotal.WithLabelValues(metrics.Fail).Inc()
			return applyErr
		}
		a.setState(Applied)
	}

	var finalizeErrs []error
	for _, a := range actions {
		if err := a.finalize(ctx, r.fs); err != nil {
			r.log.WithFields(log.Fields{"action": a.String(), "err": err}).Warn("failed to finalize file action")
			finalizeErrs = append(finalizeErrs, err)
		}
		a.setState(Finalized)
	}
	metrics.FileBatchesTotal.WithLabelValues(metrics.Ok).Inc()

	if len(finalizeErrs) > 0 {
		return &FinalizeError{Errs: finalizeErrs}
	}
	return nil
}

// revert undoes applied actions newest first. It keeps going past failures.
func (r *Runner) revert(ctx context.Context, applied []Action) []error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		a := applied[i]
		if err := a.revert(ctx, r.fs); err != nil {
			r.log.WithFields(log.Fields{"index": i, "action": a.String(), "err": err}).
				Warn("failed to revert file action")
			errs = append(errs, fmt.Errorf("revert %s: %w", a, err))
		}
		a.setState(Reverted)
		metrics.FileActionsRevertedTotal.Inc()
	}
	return errs
}

// PerformFileActions runs actions against fs with a default Runner.
func PerformFileActions(ctx context.Context, fs fsops.FS, actions ...Action) error {
	return NewRunner(fs, nil).PerformFileActions(ctx, actions)
}
