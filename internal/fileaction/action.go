// Package fileaction models pending filesystem mutations and runs batches of
// them as one all-or-nothing unit.
//
// An Action is one of five variants: Delete, Rename, Replace, Keep and Copy.
// Each knows how to apply itself, how to revert a completed apply, and how to
// finalize once the whole batch applied. Only a Runner moves an action
// through its states; the methods doing so are unexported.
package fileaction

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/ledgerfs/internal/fsops"
)

// Kind identifies an Action variant.
type Kind string

// Action kinds.
const (
	KindDelete  Kind = "delete"
	KindRename  Kind = "rename"
	KindReplace Kind = "replace"
	KindKeep    Kind = "keep"
	KindCopy    Kind = "copy"
)

// State is the lifecycle position of an Action.
type State int

// Action states. Pending -> Applied -> (Finalized | Reverted).
const (
	Pending State = iota
	Applied
	Finalized
	Reverted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Finalized:
		return "finalized"
	case Reverted:
		return "reverted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action is one pending filesystem mutation. The set of implementations is
// closed: *Delete, *Rename, *Replace, *Keep and *Copy.
type Action interface {
	// Kind returns the variant.
	Kind() Kind

	// Target returns the path the action mutates (or guards, for Keep).
	Target() string

	// State returns the lifecycle state.
	State() State

	// String describes the action for logs and errors.
	String() string

	apply(ctx context.Context, fs fsops.FS) error
	revert(ctx context.Context, fs fsops.FS) error
	finalize(ctx context.Context, fs fsops.FS) error
	setState(State)
}

// Backupable is implemented by actions that can snapshot their target before
// mutating it.
type Backupable interface {
	Action

	// BackupPath returns the configured backup path, or "".
	BackupPath() string

	// SetBackupPath configures a retained backup. It survives finalize.
	SetBackupPath(path string)

	// SetTransientBackup configures a backup owned by the batch. Finalize
	// and revert both remove it.
	SetTransientBackup(path string)
}

// status carries the lifecycle state shared by every variant.
type status struct {
	state State
}

func (s *status) State() State {
	return s.state
}

func (s *status) setState(st State) {
	s.state = st
}

// backup is the snapshot bookkeeping shared by Delete, Replace, Keep and Copy.
type backup struct {
	dest      string
	transient bool

	// noFile names the sentinel written when a backup was requested but the
	// target did not exist yet.
	noFile string

	made         bool
	sentinelPath string

	// displaced holds an earlier retained backup moved aside by snapshot.
	displaced string
}

func (b *backup) BackupPath() string {
	return b.dest
}

func (b *backup) SetBackupPath(path string) {
	b.dest = path
	b.transient = false
}

func (b *backup) SetTransientBackup(path string) {
	b.dest = path
	b.transient = true
}

// resolve places a bare name next to target.
func resolve(name, target string) string {
	if name == "" || filepath.Dir(name) != "." || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(target), name)
}

// snapshot copies target to the backup path, or writes the no-file sentinel
// when target is absent. It does nothing unless a backup path is set.
func (b *backup) snapshot(fs fsops.FS, target string, existed bool) error {
	if b.dest == "" {
		return nil
	}
	if existed {
		dest := resolve(b.dest, target)
		if err := b.displace(fs, dest); err != nil {
			return err
		}
		if err := fs.Copy(target, dest); err != nil {
			err = fmt.Errorf("failed to back up %s: %w", target, err)
			return errors.Join(err, b.reinstate(fs, dest))
		}
		b.made = true
		return nil
	}
	if b.noFile != "" {
		sentinel := resolve(b.noFile, target)
		if err := fs.AtomicWrite(sentinel, nil, 0644); err != nil {
			return fmt.Errorf("failed to write no-file sentinel %s: %w", sentinel, err)
		}
		b.sentinelPath = sentinel
	}
	return nil
}

// displacedName is where a retained backup waits while a newer snapshot
// takes its place. The temp prefix keeps it out of listings.
func displacedName(dest string) string {
	return filepath.Join(filepath.Dir(dest), ".ledgerfs-tmp-prev-"+filepath.Base(dest))
}

// displace moves an existing retained backup at dest out of the way so a
// rejected batch can put it back.
func (b *backup) displace(fs fsops.FS, dest string) error {
	if b.transient {
		return nil
	}
	exists, err := fs.Exists(dest)
	if err != nil {
		return fmt.Errorf("failed to check backup %s: %w", dest, err)
	}
	if !exists {
		return nil
	}
	aside := displacedName(dest)
	if err := fs.Rename(dest, aside); err != nil {
		return fmt.Errorf("failed to set aside backup %s: %w", dest, err)
	}
	b.displaced = aside
	return nil
}

// reinstate moves a displaced backup back to dest, replacing whatever is there.
func (b *backup) reinstate(fs fsops.FS, dest string) error {
	if b.displaced == "" {
		return nil
	}
	if err := fs.Rename(b.displaced, dest); err != nil {
		return fmt.Errorf("failed to reinstate backup %s: %w", dest, err)
	}
	b.displaced = ""
	return nil
}

// restore copies the backup back over target.
func (b *backup) restore(fs fsops.FS, target string) error {
	if err := fs.Copy(resolve(b.dest, target), target); err != nil {
		return fmt.Errorf("failed to restore %s from backup: %w", target, err)
	}
	return nil
}

// discard removes the backup copy and the sentinel made by snapshot, and
// puts back any backup the snapshot displaced.
func (b *backup) discard(fs fsops.FS, target string) error {
	if b.made {
		if err := fsops.RemoveIfExists(fs, resolve(b.dest, target)); err != nil {
			return fmt.Errorf("failed to remove backup of %s: %w", target, err)
		}
		b.made = false
	}
	if err := b.reinstate(fs, resolve(b.dest, target)); err != nil {
		return err
	}
	return b.discardSentinel(fs)
}

func (b *backup) discardSentinel(fs fsops.FS) error {
	if b.sentinelPath == "" {
		return nil
	}
	if err := fsops.RemoveIfExists(fs, b.sentinelPath); err != nil {
		return fmt.Errorf("failed to remove no-file sentinel %s: %w", b.sentinelPath, err)
	}
	b.sentinelPath = ""
	return nil
}

// release runs at finalize: transient snapshots go, retained ones stay and
// replace any backup they displaced.
func (b *backup) release(fs fsops.FS, target string) error {
	if b.transient {
		return b.discard(fs, target)
	}
	if b.displaced != "" {
		if err := fsops.RemoveIfExists(fs, b.displaced); err != nil {
			return fmt.Errorf("failed to remove superseded backup %s: %w", b.displaced, err)
		}
		b.displaced = ""
	}
	return b.discardSentinel(fs)
}
