// Package config manages ledger configuration and filesystem paths.
//
// A ledger is a directory of governed record files. Its metadata lives in the
// .ledgerfs/ subdirectory: the YAML config, the advisory lock file and the
// undo store. The ledger directory can be set with LEDGERFS_ROOT.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// MetaDirName is the metadata directory inside a ledger root.
const MetaDirName = ".ledgerfs"

// Paths contains all the filesystem paths used by a ledger.
type Paths struct {
	// Root is the ledger directory holding the governed records
	Root string

	// Meta is the metadata directory (<root>/.ledgerfs)
	Meta string

	// Lock is the advisory lock file held while the ledger is open
	Lock string

	// Undo is the directory of the undo and action log store
	Undo string

	// Config is the path to the ledger config file
	Config string
}

// DefaultPaths resolves the ledger paths. The root is dir when given,
// otherwise LEDGERFS_ROOT, otherwise the current working directory.
func DefaultPaths(dir string) (*Paths, error) {
	root := dir
	if root == "" {
		root = os.Getenv("LEDGERFS_ROOT")
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ledger root: %w", err)
	}
	return PathsFor(abs), nil
}

// PathsFor derives the ledger paths from root without consulting the
// environment.
func PathsFor(root string) *Paths {
	meta := filepath.Join(root, MetaDirName)
	return &Paths{
		Root:   root,
		Meta:   meta,
		Lock:   filepath.Join(meta, "lock"),
		Undo:   filepath.Join(meta, "undo"),
		Config: filepath.Join(meta, "config.yaml"),
	}
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.Root,
		p.Meta,
		p.Undo,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Initialized reports whether the ledger metadata directory exists.
func (p *Paths) Initialized() (bool, error) {
	info, err := os.Stat(p.Meta)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p.Meta, err)
	}
	return info.IsDir(), nil
}
