package actions

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownActionType indicates an action type with no registered applier.
	ErrUnknownActionType = errors.New("action type not registered")

	// ErrNotUndoable indicates an applied entry whose undo items were cleared.
	ErrNotUndoable = errors.New("action can no longer be undone")

	// ErrIndexOutOfRange is returned by the indexed accessors.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ApplierError reports an action applier that failed.
type ApplierError struct {
	Type         string
	ValidateOnly bool
	Err          error
}

func (e *ApplierError) Error() string {
	if e.ValidateOnly {
		return fmt.Sprintf("validate %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("apply %s: %v", e.Type, e.Err)
}

func (e *ApplierError) Unwrap() error {
	return e.Err
}
