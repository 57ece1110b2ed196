package engine

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/backups"
	"github.com/danieljhkim/ledgerfs/internal/clock"
	"github.com/danieljhkim/ledgerfs/internal/config"
	"github.com/danieljhkim/ledgerfs/internal/state"
)

// Action and undo applier names registered by the engine.
const (
	ActionPut     = "record.put"
	ActionDelete  = "record.delete"
	ActionBatch   = "record.batch"
	ActionRestore = "backup.restore"

	UndoRestoreRecord = "record.restore"
)

// Options configure Open.
type Options struct {
	// Dir is the ledger root. Empty means LEDGERFS_ROOT, then the working
	// directory.
	Dir string

	// Clock dates backups. Defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to the standard logrus logger.
	Logger *log.Entry

	// Config overrides the ledger's config file.
	Config *config.Config

	// Store overrides the configured undo store. The engine closes it.
	Store state.Store
}

// BatchOp is one step of a Batch.
type BatchOp struct {
	// Type is ActionPut or ActionDelete
	Type string

	// Name is the record name
	Name string

	// Data is the new content (puts only)
	Data []byte
}

// RecordInfo describes one record.
type RecordInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	Hash string `json:"hash"`

	// Saved is false when the record differs from its file on disk
	Saved bool `json:"saved"`
}

// HistoryEntry summarizes one action log entry.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Names     []string  `json:"names,omitempty"`
	AppliedAt time.Time `json:"appliedAt"`
}

// History is the action log of a ledger.
type History struct {
	// Applied is oldest first
	Applied []HistoryEntry `json:"applied"`

	// Undone starts with the entry the next redo reapplies first
	Undone []HistoryEntry `json:"undone"`
}

// SaveResult reports what a save changed on disk.
type SaveResult struct {
	Written []string `json:"written"`
	Deleted []string `json:"deleted"`
	Kept    []string `json:"kept,omitempty"`

	// Backups lists the dated backup files written by the save
	Backups []string `json:"backups,omitempty"`

	// Pruned lists the backup sets removed by retention
	Pruned []backups.Set `json:"pruned,omitempty"`

	// Warnings reports problems that did not stop the save
	Warnings []string `json:"warnings,omitempty"`
}

// Changed reports whether the save wrote or deleted anything.
func (r *SaveResult) Changed() bool {
	return len(r.Written) > 0 || len(r.Deleted) > 0
}

type putPayload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type deletePayload struct {
	Name string `json:"name"`
}

type restoreSetPayload struct {
	Date string `json:"date"`
}

// recordSnapshot is the undo payload of every record change.
type recordSnapshot struct {
	Name    string `json:"name"`
	Data    []byte `json:"data,omitempty"`
	Existed bool   `json:"existed"`
}
