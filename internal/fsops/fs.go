// Package fsops provides filesystem operations with safety guarantees.
//
// All filesystem mutations in ledgerfs go through the FS interface. The real
// implementation is backed by an afero.Fs, so the same code runs against the
// OS filesystem in production and an in-memory filesystem in tests.
//
// Key features:
//   - Atomic writes and copies using temp file + rename
//   - Name validation for record and backup file names
//   - Testable via the FS interface
package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// tempPattern names the temporary files used by atomic writes.
const tempPattern = ".ledgerfs-tmp-*"

// FS provides an abstraction for filesystem operations.
// All filesystem mutations in ledgerfs must go through this interface.
type FS interface {
	// Stat returns file info for path.
	Stat(path string) (os.FileInfo, error)

	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// Copy copies the regular file src to dst atomically, preserving its mode.
	Copy(src, dst string) error

	// Rename renames oldpath to newpath, replacing newpath if it exists.
	Rename(oldpath, newpath string) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// ReadDir returns the entries of dir sorted by name.
	ReadDir(dir string) ([]os.FileInfo, error)

	// ValidateName validates a bare file name for safety.
	ValidateName(name string) error
}

// AferoFS implements FS on top of an afero.Fs.
type AferoFS struct {
	fs afero.Fs
}

// NewAferoFS wraps fs.
func NewAferoFS(fs afero.Fs) *AferoFS {
	return &AferoFS{fs: fs}
}

// NewRealFS creates an FS backed by the operating system.
func NewRealFS() *AferoFS {
	return NewAferoFS(afero.NewOsFs())
}

// NewMemFS creates an FS backed by memory. Used by tests.
func NewMemFS() *AferoFS {
	return NewAferoFS(afero.NewMemMapFs())
}

// Stat returns file info for path.
func (fs *AferoFS) Stat(path string) (os.FileInfo, error) {
	return fs.fs.Stat(path)
}

// Exists checks if a path exists.
func (fs *AferoFS) Exists(path string) (bool, error) {
	_, err := fs.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadFile reads the entire contents of a file.
func (fs *AferoFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(fs.fs, path)
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (fs *AferoFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	return fs.writeVia(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Copy copies the regular file src to dst atomically, preserving its mode.
func (fs *AferoFS) Copy(src, dst string) error {
	srcInfo, err := fs.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if srcInfo.IsDir() {
		return fmt.Errorf("cannot copy directory %q", src)
	}

	srcFile, err := fs.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	return fs.writeVia(dst, srcInfo.Mode().Perm(), func(w io.Writer) error {
		if _, err := io.Copy(w, srcFile); err != nil {
			return fmt.Errorf("failed to copy file contents: %w", err)
		}
		return nil
	})
}

// writeVia fills a temp file next to path using fill, then renames it over path.
func (fs *AferoFS) writeVia(path string, perm os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := fs.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpFile, err := afero.TempFile(fs.fs, dir, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = fs.fs.Remove(tmpPath)
		}
	}()

	if err := fill(tmpFile); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fs.fs.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := fs.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Success - don't clean up temp file
	tmpFile = nil
	return nil
}

// Rename renames oldpath to newpath.
func (fs *AferoFS) Rename(oldpath, newpath string) error {
	return fs.fs.Rename(oldpath, newpath)
}

// Remove removes a file or empty directory.
func (fs *AferoFS) Remove(path string) error {
	return fs.fs.Remove(path)
}

// RemoveAll removes a path and all its contents.
func (fs *AferoFS) RemoveAll(path string) error {
	return fs.fs.RemoveAll(path)
}

// MkdirAll creates a directory and all parent directories.
func (fs *AferoFS) MkdirAll(path string, perm os.FileMode) error {
	return fs.fs.MkdirAll(path, perm)
}

// ReadDir returns the entries of dir sorted by name.
func (fs *AferoFS) ReadDir(dir string) ([]os.FileInfo, error) {
	return afero.ReadDir(fs.fs, dir)
}

// ValidateName validates a bare file name (record name, backup original name).
// Returns an error if the name is empty, contains a separator, or traverses.
func (fs *AferoFS) ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("invalid name: empty")
	}

	if strings.Contains(name, string(filepath.Separator)) || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("invalid name %q: must not contain path separators", name)
	}

	if name == "." || name == ".." || strings.HasPrefix(name, "..") {
		return fmt.Errorf("invalid name %q: path traversal not allowed", name)
	}

	return nil
}

// IsTempName reports whether name is a leftover temp file from AtomicWrite.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".ledgerfs-tmp-")
}

// RemoveIfExists removes path, treating a missing path as success.
func RemoveIfExists(fs FS, path string) error {
	if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
