package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/backups"
	"github.com/danieljhkim/ledgerfs/internal/clock"
	"github.com/danieljhkim/ledgerfs/internal/fileaction"
	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/state"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

const (
	docsDir  = "/docs"
	undoDir  = "/docs/.ledgerfs/undo"
	writeDoc = "docs.write"
	restore  = "docs.restore"
)

// faultFS fails writes to the paths in failWrites.
type faultFS struct {
	fsops.FS
	failWrites map[string]error
}

func newFaultFS(t *testing.T) *faultFS {
	t.Helper()
	fs := &faultFS{FS: fsops.NewMemFS(), failWrites: map[string]error{}}
	if err := fs.MkdirAll(docsDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	return fs
}

func (fs *faultFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := fs.failWrites[path]; err != nil {
		return err
	}
	return fs.FS.AtomicWrite(path, data, perm)
}

// docWrite is the payload of docs.write: file name -> new content.
type docWrite struct {
	Files map[string]string `json:"files"`
}

// docSnapshot is the payload of docs.restore.
type docSnapshot struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Existed bool   `json:"existed"`
}

// docStore writes documents straight to disk: every docs.write action is
// one file batch guarded by dated backups, and registers the prior content
// of each file so it can be undone.
type docStore struct {
	fs      fsops.FS
	clock   *clock.FakeClock
	runner  *fileaction.Runner
	policy  *backups.Policy
	store   *state.FileStateStore
	undo    *undo.Log
	actions *actions.Log
}

func openDocStore(t *testing.T, fs fsops.FS, clk *clock.FakeClock) *docStore {
	t.Helper()
	ctx := context.Background()

	store, err := state.NewFileStateStore(fs, undoDir)
	if err != nil {
		t.Fatalf("NewFileStateStore() error = %v", err)
	}
	undoLog, err := undo.NewLog(ctx, store, nil)
	if err != nil {
		t.Fatalf("undo.NewLog() error = %v", err)
	}
	actionLog, err := actions.NewLog(ctx, undoLog, store, actions.Options{Clock: clk})
	if err != nil {
		t.Fatalf("actions.NewLog() error = %v", err)
	}
	runner := fileaction.NewRunner(fs, nil)

	d := &docStore{
		fs:      fs,
		clock:   clk,
		runner:  runner,
		policy:  backups.NewPolicy(runner, backups.Options{MaxBackups: 3}),
		store:   store,
		undo:    undoLog,
		actions: actionLog,
	}
	undoLog.RegisterUndoApplier(restore, d.restore)
	actionLog.RegisterActionApplier(writeDoc, d.write)
	return d
}

func (d *docStore) save(ctx context.Context, files map[string]string) error {
	a, err := actions.NewAction(writeDoc, docWrite{Files: files})
	if err != nil {
		return err
	}
	_, err = d.actions.ApplyAction(ctx, a)
	return err
}

func (d *docStore) write(ctx context.Context, validateOnly bool, a actions.Action) (*actions.Result, error) {
	var p docWrite
	if err := a.Decode(&p); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(p.Files))
	for name := range p.Files {
		if err := d.fs.ValidateName(name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if validateOnly {
		return nil, nil
	}

	snapshots := make([]docSnapshot, 0, len(names))
	batch := make([]fileaction.Action, 0, len(names))
	for _, name := range names {
		path := filepath.Join(docsDir, name)
		prev, err := d.fs.ReadFile(path)
		snapshots = append(snapshots, docSnapshot{Name: name, Content: string(prev), Existed: err == nil})

		r := fileaction.NewReplace(path, fileaction.WriteBytes([]byte(p.Files[name]), 0644))
		r.SetTransientBackup(".txn_" + name)
		r.SetNoFileName(".txn_" + name + ".none")
		batch = append(batch, r)
	}
	if err := d.policy.ApplyToFileActions(batch, d.clock.Now()); err != nil {
		return nil, err
	}
	if err := d.runner.PerformFileActions(ctx, batch); err != nil {
		return nil, err
	}

	for _, snap := range snapshots {
		if _, err := d.undo.RegisterUndoDataItem(ctx, restore, snap); err != nil {
			return nil, err
		}
	}
	return &actions.Result{Value: names}, nil
}

func (d *docStore) restore(ctx context.Context, item undo.Item) error {
	var snap docSnapshot
	if err := item.Decode(&snap); err != nil {
		return err
	}
	path := filepath.Join(docsDir, snap.Name)
	if !snap.Existed {
		return fileaction.PerformFileActions(ctx, d.fs, fileaction.NewDelete(path))
	}
	return fileaction.PerformFileActions(ctx, d.fs,
		fileaction.NewReplace(path, fileaction.WriteBytes([]byte(snap.Content), 0644)))
}

// listDocs returns name -> content for every file in the docs directory.
func listDocs(t *testing.T, fs fsops.FS) map[string]string {
	t.Helper()
	entries, err := fs.ReadDir(docsDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	out := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(filepath.Join(docsDir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", e.Name(), err)
		}
		out[e.Name()] = string(data)
	}
	return out
}

func assertDocs(t *testing.T, fs fsops.FS, want map[string]string) {
	t.Helper()
	got := listDocs(t, fs)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("docs = %v, want %v", got, want)
	}
}

func day(n int) time.Time {
	return time.Date(2024, 5, n, 12, 0, 0, 0, time.Local)
}
