package engine

import "errors"

var (
	// ErrConflict indicates governed files changed on disk outside the ledger.
	ErrConflict = errors.New("conflict detected")

	// ErrValidation indicates a validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a record or backup set was not found.
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized indicates the directory has no .ledgerfs metadata.
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrUnsaved indicates records that have not been written to disk yet.
	ErrUnsaved = errors.New("unsaved changes")

	// ErrNoBackups indicates the backup policy is disabled.
	ErrNoBackups = errors.New("backups are disabled")
)
