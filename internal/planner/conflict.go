package planner

import "fmt"

// Conflict represents a conflict detected during planning.
type Conflict struct {
	// Name is the record whose file drifted
	Name string

	// Reason is a human-readable explanation of the conflict
	Reason string

	// Expected is the hash the ledger last saw on disk ("" for absent)
	Expected string

	// Actual is the hash found on disk now ("" for absent)
	Actual string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s", c.Name, c.Reason)
}

// ConflictChecker detects governed files changed outside the ledger.
type ConflictChecker struct {
	baseline map[string]string
	force    bool
}

// NewConflictChecker creates a new ConflictChecker.
func NewConflictChecker(baseline map[string]string, force bool) *ConflictChecker {
	return &ConflictChecker{
		baseline: baseline,
		force:    force,
	}
}

// Check compares the current disk hash of name with the baseline.
// Returns a Conflict if one is detected, or nil if the file is safe to touch.
func (c *ConflictChecker) Check(name, onDisk string) *Conflict {
	if c.force {
		return nil
	}

	expected, known := c.baseline[name]
	switch {
	case !known && onDisk == "":
		return nil
	case !known:
		return &Conflict{
			Name:   name,
			Reason: "Unmanaged file exists at destination",
			Actual: onDisk,
		}
	case onDisk == expected:
		return nil
	case onDisk == "":
		return &Conflict{
			Name:     name,
			Reason:   "File was deleted outside the ledger",
			Expected: expected,
		}
	default:
		return &Conflict{
			Name:     name,
			Reason:   "File was modified outside the ledger",
			Expected: expected,
			Actual:   onDisk,
		}
	}
}
