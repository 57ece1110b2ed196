package planner

import (
	"testing"

	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/hash"
)

const root = "/ledger"

func TestNewSavePlan(t *testing.T) {
	plan := NewSavePlan()

	if plan.Operations == nil {
		t.Error("expected Operations to be initialized")
	}
	if plan.Conflicts == nil {
		t.Error("expected Conflicts to be initialized")
	}
	if plan.HasConflicts() || plan.HasChanges() {
		t.Error("expected empty plan")
	}
}

func TestSavePlan_HasChanges(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want bool
	}{
		{name: "empty", ops: nil, want: false},
		{name: "keep only", ops: []Operation{{Type: OpKeep, Name: "a"}}, want: false},
		{name: "write", ops: []Operation{{Type: OpKeep, Name: "a"}, {Type: OpWrite, Name: "b"}}, want: true},
		{name: "delete", ops: []Operation{{Type: OpDelete, Name: "a"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewSavePlan()
			for _, op := range tt.ops {
				plan.AddOperation(op)
			}
			if got := plan.HasChanges(); got != tt.want {
				t.Errorf("HasChanges() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildSavePlan(t *testing.T) {
	fs := fsops.NewMemFS()
	hasher := hash.NewSHA256Hasher(fs)
	h := hasher.HashBytes

	for name, content := range map[string]string{
		"same.json":    "same",
		"changed.json": "old",
		"removed.json": "gone soon",
		"drift.json":   "edited by hand",
		"stray.json":   "not ours",
	} {
		if err := fs.AtomicWrite(root+"/"+name, []byte(content), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	desired := map[string]string{
		"same.json":    h([]byte("same")),
		"changed.json": h([]byte("new")),
		"new.json":     h([]byte("fresh")),
		"drift.json":   h([]byte("ledger copy")),
		"stray.json":   h([]byte("ours")),
	}
	baseline := map[string]string{
		"same.json":     h([]byte("same")),
		"changed.json":  h([]byte("old")),
		"removed.json":  h([]byte("gone soon")),
		"drift.json":    h([]byte("original")),
		"vanished.json": h([]byte("deleted already")),
	}

	plan, err := BuildSavePlan(fs, hasher, root, desired, baseline, false)
	if err != nil {
		t.Fatalf("BuildSavePlan failed: %v", err)
	}

	wantOps := []struct{ typ, name string }{
		{OpWrite, "changed.json"},
		{OpWrite, "new.json"},
		{OpDelete, "removed.json"},
		{OpKeep, "same.json"},
	}
	if len(plan.Operations) != len(wantOps) {
		t.Fatalf("expected %d operations, got %+v", len(wantOps), plan.Operations)
	}
	for i, want := range wantOps {
		got := plan.Operations[i]
		if got.Type != want.typ || got.Name != want.name {
			t.Errorf("operation %d: got %s %s, want %s %s", i, got.Type, got.Name, want.typ, want.name)
		}
		if got.Path != root+"/"+want.name {
			t.Errorf("operation %d: unexpected path %s", i, got.Path)
		}
	}

	wantConflicts := map[string]string{
		"drift.json": "File was modified outside the ledger",
		"stray.json": "Unmanaged file exists at destination",
	}
	if len(plan.Conflicts) != len(wantConflicts) {
		t.Fatalf("expected %d conflicts, got %+v", len(wantConflicts), plan.Conflicts)
	}
	for _, c := range plan.Conflicts {
		if wantConflicts[c.Name] != c.Reason {
			t.Errorf("unexpected conflict %s", c)
		}
	}
}

func TestBuildSavePlan_Force(t *testing.T) {
	fs := fsops.NewMemFS()
	hasher := hash.NewSHA256Hasher(fs)
	if err := fs.AtomicWrite(root+"/a.json", []byte("edited"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	desired := map[string]string{"a.json": hasher.HashBytes([]byte("mine"))}
	baseline := map[string]string{"a.json": hasher.HashBytes([]byte("original"))}

	plan, err := BuildSavePlan(fs, hasher, root, desired, baseline, true)
	if err != nil {
		t.Fatalf("BuildSavePlan failed: %v", err)
	}
	if plan.HasConflicts() {
		t.Errorf("force should suppress conflicts, got %+v", plan.Conflicts)
	}
	if plan.Count(OpWrite) != 1 {
		t.Errorf("expected one write, got %+v", plan.Operations)
	}
}

func TestBuildSavePlan_MatchingDriftIsKept(t *testing.T) {
	fs := fsops.NewMemFS()
	hasher := hash.NewSHA256Hasher(fs)
	if err := fs.AtomicWrite(root+"/a.json", []byte("mine"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	desired := map[string]string{"a.json": hasher.HashBytes([]byte("mine"))}
	plan, err := BuildSavePlan(fs, hasher, root, desired, map[string]string{}, false)
	if err != nil {
		t.Fatalf("BuildSavePlan failed: %v", err)
	}
	if plan.HasConflicts() || plan.Count(OpKeep) != 1 {
		t.Errorf("expected a single keep, got %+v", plan)
	}
}
