// Package lock holds the single advisory lock taken for the lifetime of an
// open ledger. It does not coordinate processes beyond refusing a second open.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("ledger is locked by another process")

// File is an acquired lock file.
type File struct {
	path string
	file *os.File
}

// Acquire creates path if needed and takes an exclusive, non-blocking lock on it.
func Acquire(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := setLock(f, true); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{path: path, file: f}, nil
}

// Path returns the lock file path.
func (l *File) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The file itself is left on disk.
func (l *File) Release() error {
	if l.file == nil {
		return nil
	}
	err := setLock(l.file, false)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
