package undo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownApplier indicates an applier name that was never registered.
	ErrUnknownApplier = errors.New("undo applier not registered")

	// ErrUnknownID indicates an id that is not currently retained.
	ErrUnknownID = errors.New("undo id not retained")

	// ErrNotFound is returned by stores for a missing item.
	ErrNotFound = errors.New("undo item not found")
)

// ApplierError reports the item whose applier failed during an undo walk.
type ApplierError struct {
	ID          ID
	ApplierName string
	Err         error
}

func (e *ApplierError) Error() string {
	return fmt.Sprintf("undo item %d (%s) failed: %v", e.ID, e.ApplierName, e.Err)
}

func (e *ApplierError) Unwrap() error {
	return e.Err
}
