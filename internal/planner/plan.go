package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/hash"
)

// SavePlan represents a plan to bring the governed files in line with the
// ledger's records.
type SavePlan struct {
	// Operations is the ordered list of operations to execute
	Operations []Operation

	// Conflicts is a list of detected conflicts (empty if no conflicts)
	Conflicts []Conflict
}

// Operation represents a single file-level step of a save.
type Operation struct {
	// Type is the operation type: "write", "delete", "keep"
	Type string

	// Name is the record name
	Name string

	// Path is the absolute path of the governed file
	Path string

	// Hash is the content hash the file has after the operation ("" for delete)
	Hash string
}

// Operation type constants
const (
	OpWrite  = "write"
	OpDelete = "delete"
	OpKeep   = "keep"
)

// NewSavePlan creates a new empty SavePlan.
func NewSavePlan() *SavePlan {
	return &SavePlan{
		Operations: []Operation{},
		Conflicts:  []Conflict{},
	}
}

// HasConflicts returns true if the plan has any conflicts.
func (p *SavePlan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// HasChanges returns true if the plan writes or deletes anything.
func (p *SavePlan) HasChanges() bool {
	for _, op := range p.Operations {
		if op.Type != OpKeep {
			return true
		}
	}
	return false
}

// AddOperation adds an operation to the plan.
func (p *SavePlan) AddOperation(op Operation) {
	p.Operations = append(p.Operations, op)
}

// AddConflict adds a conflict to the plan.
func (p *SavePlan) AddConflict(conflict Conflict) {
	p.Conflicts = append(p.Conflicts, conflict)
}

// Count returns the number of operations of type opType.
func (p *SavePlan) Count(opType string) int {
	n := 0
	for _, op := range p.Operations {
		if op.Type == opType {
			n++
		}
	}
	return n
}

// BuildSavePlan plans a save of root.
//
// desired maps each record the ledger holds to its content hash. baseline maps
// each governed file to the hash it had on disk when the ledger last loaded or
// saved it. Names in neither map are not governed by this save and are left
// alone. With force, drift is overwritten instead of reported.
func BuildSavePlan(fs fsops.FS, hasher hash.Hasher, root string, desired, baseline map[string]string, force bool) (*SavePlan, error) {
	plan := NewSavePlan()
	checker := NewConflictChecker(baseline, force)

	for _, name := range unionNames(desired, baseline) {
		path := filepath.Join(root, name)

		onDisk, err := diskHash(fs, hasher, path)
		if err != nil {
			return nil, err
		}
		want, keep := desired[name]
		if !keep && onDisk == "" {
			continue
		}
		if keep && onDisk == want {
			plan.AddOperation(Operation{Type: OpKeep, Name: name, Path: path, Hash: want})
			continue
		}

		if conflict := checker.Check(name, onDisk); conflict != nil {
			plan.AddConflict(*conflict)
			continue
		}
		if keep {
			plan.AddOperation(Operation{Type: OpWrite, Name: name, Path: path, Hash: want})
		} else {
			plan.AddOperation(Operation{Type: OpDelete, Name: name, Path: path})
		}
	}

	return plan, nil
}

// diskHash returns the hash of the file at path, or "" if it is absent.
func diskHash(fs fsops.FS, hasher hash.Hasher, path string) (string, error) {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("record path %s is a directory", path)
	}
	h, err := hasher.HashFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return h, nil
}

func unionNames(maps ...map[string]string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range maps {
		for name := range m {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
