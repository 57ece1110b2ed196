package fileaction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotPending is returned when a batch contains an action that already ran.
var ErrNotPending = errors.New("file action is not pending")

// ApplyError reports the action whose apply failed. Every action applied
// before it has been reverted; RevertErrs lists reverts that failed.
type ApplyError struct {
	Index      int
	Action     Action
	Err        error
	RevertErrs []error
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("file action %d (%s) failed: %v", e.Index, e.Action, e.Err)
	if len(e.RevertErrs) > 0 {
		msg += fmt.Sprintf(" (%d revert(s) also failed: %v)", len(e.RevertErrs), errors.Join(e.RevertErrs...))
	}
	return msg
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// FinalizeError reports finalize failures after every action applied. The
// batch's changes are visible; only cleanup or callbacks failed.
type FinalizeError struct {
	Errs []error
}

func (e *FinalizeError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return "file batch applied but finalize failed: " + strings.Join(parts, "; ")
}

func (e *FinalizeError) Unwrap() []error {
	return e.Errs
}
