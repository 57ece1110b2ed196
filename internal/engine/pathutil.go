package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/ledgerfs/internal/backups"
)

// ResolveRecordName resolves a user-provided record reference (a bare name, or
// a relative or absolute path) to a record name. The reference must resolve to
// a direct child of the ledger root.
func ResolveRecordName(userPath, cwd, root string) (string, error) {
	if !strings.ContainsRune(userPath, filepath.Separator) {
		return userPath, validateRecordName(userPath)
	}

	var absPath string
	if filepath.IsAbs(userPath) {
		absPath = userPath
	} else {
		absPath = filepath.Join(cwd, userPath)
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	relPath, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to compute ledger-relative path for %q: %w", userPath, err)
	}

	// Reject paths outside the ledger
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q resolves to %q which is outside the ledger", ErrValidation, userPath, absPath)
	}

	// Reject the ledger root itself
	if relPath == "." {
		return "", fmt.Errorf("%w: path %q resolves to the ledger root", ErrValidation, userPath)
	}

	// Records are flat
	if strings.ContainsRune(relPath, filepath.Separator) {
		return "", fmt.Errorf("%w: path %q is in a subdirectory of the ledger", ErrValidation, userPath)
	}

	return relPath, validateRecordName(relPath)
}

// validateRecordName rejects names that are not governed files.
func validateRecordName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return fmt.Errorf("%w: invalid record name %q", ErrValidation, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: record name %q contains a path separator", ErrValidation, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: record name %q is hidden", ErrValidation, name)
	case backups.IsBackupName(name) || strings.HasPrefix(name, backups.Prefix):
		return fmt.Errorf("%w: record name %q is reserved for backups", ErrValidation, name)
	}
	return nil
}

// isGoverned reports whether a file in the ledger root is a record.
func isGoverned(name string) bool {
	return validateRecordName(name) == nil
}
