package fileaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/ledgerfs/internal/fsops"
)

// WriteFunc produces the new content of a Replace target.
type WriteFunc func(ctx context.Context, fs fsops.FS, path string) error

// CallbackFunc is an optional Replace hook run on revert or finalize.
type CallbackFunc func(ctx context.Context) error

// WriteBytes returns a WriteFunc that atomically writes data with perm.
func WriteBytes(data []byte, perm os.FileMode) WriteFunc {
	return func(_ context.Context, fs fsops.FS, path string) error {
		return fs.AtomicWrite(path, data, perm)
	}
}

// Delete removes a file, optionally copying it to a backup first.
type Delete struct {
	status
	backup
	path    string
	removed bool
}

// NewDelete returns a pending Delete of path.
func NewDelete(path string) *Delete {
	return &Delete{path: path}
}

func (d *Delete) Kind() Kind     { return KindDelete }
func (d *Delete) Target() string { return d.path }
func (d *Delete) String() string { return fmt.Sprintf("delete %s", d.path) }

func (d *Delete) apply(_ context.Context, fs fsops.FS) error {
	existed, err := fs.Exists(d.path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", d.path, err)
	}
	if !existed {
		return nil
	}
	if err := d.snapshot(fs, d.path, true); err != nil {
		return err
	}
	if err := fs.Remove(d.path); err != nil {
		err = fmt.Errorf("failed to delete %s: %w", d.path, err)
		return errors.Join(err, d.discard(fs, d.path))
	}
	d.removed = true
	return nil
}

// revert restores the target from its backup. A retained backup stays in
// place unless it displaced an earlier one, which comes back; without a
// backup there is nothing to restore.
func (d *Delete) revert(_ context.Context, fs fsops.FS) error {
	if !d.removed || !d.made {
		return nil
	}
	if err := d.restore(fs, d.path); err != nil {
		return err
	}
	if d.transient || d.displaced != "" {
		return d.discard(fs, d.path)
	}
	return nil
}

func (d *Delete) finalize(_ context.Context, fs fsops.FS) error {
	return d.release(fs, d.path)
}

// Rename moves a file from one path to another.
type Rename struct {
	status
	from, to string
	renamed  bool
}

// NewRename returns a pending Rename of from to to.
func NewRename(from, to string) *Rename {
	return &Rename{from: from, to: to}
}

func (r *Rename) Kind() Kind     { return KindRename }
func (r *Rename) Target() string { return r.from }
func (r *Rename) To() string     { return r.to }
func (r *Rename) String() string { return fmt.Sprintf("rename %s -> %s", r.from, r.to) }

func (r *Rename) apply(_ context.Context, fs fsops.FS) error {
	existed, err := fs.Exists(r.from)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", r.from, err)
	}
	if !existed {
		return nil
	}
	if err := fs.Rename(r.from, r.to); err != nil {
		return fmt.Errorf("failed to rename %s: %w", r.from, err)
	}
	r.renamed = true
	return nil
}

func (r *Rename) revert(_ context.Context, fs fsops.FS) error {
	if !r.renamed {
		return nil
	}
	if err := fs.Rename(r.to, r.from); err != nil {
		return fmt.Errorf("failed to rename %s back: %w", r.to, err)
	}
	return nil
}

func (r *Rename) finalize(context.Context, fsops.FS) error {
	return nil
}

// Replace writes new content to a file through a caller-supplied WriteFunc.
type Replace struct {
	status
	backup
	path    string
	write   WriteFunc
	existed bool

	// OnRevert, if set, runs whenever a completed apply is reverted.
	OnRevert CallbackFunc
	// OnFinalize, if set, runs when the batch commits.
	OnFinalize CallbackFunc
}

// NewReplace returns a pending Replace of path using write.
func NewReplace(path string, write WriteFunc) *Replace {
	return &Replace{path: path, write: write}
}

func (r *Replace) Kind() Kind     { return KindReplace }
func (r *Replace) Target() string { return r.path }
func (r *Replace) String() string { return fmt.Sprintf("replace %s", r.path) }

// SetNoFileName sets the sentinel written when a backup is requested but the
// target does not exist. A bare name is placed next to the target.
func (r *Replace) SetNoFileName(name string) {
	r.noFile = name
}

func (r *Replace) apply(ctx context.Context, fs fsops.FS) error {
	if r.write == nil {
		return fmt.Errorf("replace %s: no write callback", r.path)
	}
	existed, err := fs.Exists(r.path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", r.path, err)
	}
	r.existed = existed
	if err := r.snapshot(fs, r.path, existed); err != nil {
		return err
	}
	if err := r.write(ctx, fs, r.path); err != nil {
		err = fmt.Errorf("failed to write %s: %w", r.path, err)
		return errors.Join(err, r.undoWrite(fs))
	}
	return nil
}

// undoWrite puts the target back as it was before a failed write callback.
func (r *Replace) undoWrite(fs fsops.FS) error {
	switch {
	case r.made:
		if err := r.restore(fs, r.path); err != nil {
			return err
		}
	case !r.existed:
		if err := fsops.RemoveIfExists(fs, r.path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", r.path, err)
		}
	}
	return r.discard(fs, r.path)
}

// revert puts back the snapshot, or removes the target if it did not exist
// before apply. The revert callback always runs.
func (r *Replace) revert(ctx context.Context, fs fsops.FS) error {
	var errs []error
	if err := r.undoWrite(fs); err != nil {
		errs = append(errs, err)
	}
	if r.OnRevert != nil {
		if err := r.OnRevert(ctx); err != nil {
			errs = append(errs, fmt.Errorf("revert callback for %s: %w", r.path, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Replace) finalize(ctx context.Context, fs fsops.FS) error {
	err := r.release(fs, r.path)
	if r.OnFinalize != nil {
		if cerr := r.OnFinalize(ctx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("finalize callback for %s: %w", r.path, cerr))
		}
	}
	return err
}

// Keep leaves a file untouched while letting it take part in the batch,
// optionally snapshotting it.
type Keep struct {
	status
	backup
	path string
}

// NewKeep returns a pending Keep of path.
func NewKeep(path string) *Keep {
	return &Keep{path: path}
}

func (k *Keep) Kind() Kind     { return KindKeep }
func (k *Keep) Target() string { return k.path }
func (k *Keep) String() string { return fmt.Sprintf("keep %s", k.path) }

func (k *Keep) apply(_ context.Context, fs fsops.FS) error {
	if k.path == "" || k.dest == "" {
		return nil
	}
	existed, err := fs.Exists(k.path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", k.path, err)
	}
	if !existed {
		return nil
	}
	return k.snapshot(fs, k.path, true)
}

func (k *Keep) revert(_ context.Context, fs fsops.FS) error {
	return k.discard(fs, k.path)
}

func (k *Keep) finalize(_ context.Context, fs fsops.FS) error {
	return k.release(fs, k.path)
}

// Copy copies a source file over a destination.
type Copy struct {
	status
	backup
	src, dst   string
	dstExisted bool
}

// NewCopy returns a pending Copy. A bare dst is placed in src's directory.
func NewCopy(src, dst string) *Copy {
	if filepath.Dir(dst) == "." && !filepath.IsAbs(dst) {
		dst = filepath.Join(filepath.Dir(src), dst)
	}
	return &Copy{src: src, dst: dst}
}

func (c *Copy) Kind() Kind     { return KindCopy }
func (c *Copy) Target() string { return c.dst }
func (c *Copy) Source() string { return c.src }
func (c *Copy) String() string { return fmt.Sprintf("copy %s -> %s", c.src, c.dst) }

// SetNoFileName sets the sentinel written when a backup is requested but the
// destination does not exist.
func (c *Copy) SetNoFileName(name string) {
	c.noFile = name
}

func (c *Copy) apply(_ context.Context, fs fsops.FS) error {
	existed, err := fs.Exists(c.dst)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", c.dst, err)
	}
	c.dstExisted = existed
	if err := c.snapshot(fs, c.dst, existed); err != nil {
		return err
	}
	if err := fs.Copy(c.src, c.dst); err != nil {
		err = fmt.Errorf("failed to copy %s to %s: %w", c.src, c.dst, err)
		return errors.Join(err, c.discard(fs, c.dst))
	}
	return nil
}

func (c *Copy) revert(_ context.Context, fs fsops.FS) error {
	switch {
	case c.made:
		if err := c.restore(fs, c.dst); err != nil {
			return err
		}
	case !c.dstExisted:
		if err := fsops.RemoveIfExists(fs, c.dst); err != nil {
			return fmt.Errorf("failed to remove %s: %w", c.dst, err)
		}
	}
	return c.discard(fs, c.dst)
}

func (c *Copy) finalize(_ context.Context, fs fsops.FS) error {
	return c.release(fs, c.dst)
}

var (
	_ Backupable = (*Delete)(nil)
	_ Backupable = (*Replace)(nil)
	_ Backupable = (*Keep)(nil)
	_ Backupable = (*Copy)(nil)
	_ Action     = (*Rename)(nil)
)
