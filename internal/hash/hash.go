// Package hash provides content hashing for record files.
//
// ledgerfs hashes governed files to detect records whose serialized content is
// unchanged, so a save can keep them in place instead of rewriting them.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/danieljhkim/ledgerfs/internal/fsops"
)

// Hasher provides an abstraction for content hashing operations.
type Hasher interface {
	// HashFile computes the hash of the file at the given path.
	HashFile(path string) (string, error)

	// HashBytes computes the hash of data.
	HashBytes(data []byte) string
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct {
	fs fsops.FS
}

// NewSHA256Hasher creates a new SHA256Hasher reading files through fs.
func NewSHA256Hasher(fs fsops.FS) *SHA256Hasher {
	return &SHA256Hasher{fs: fs}
}

// HashFile computes the SHA-256 hash of the file at the given path.
func (h *SHA256Hasher) HashFile(path string) (string, error) {
	data, err := h.fs.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return h.HashBytes(data), nil
}

// HashBytes computes the SHA-256 hash of data.
func (h *SHA256Hasher) HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
