package state

import (
	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// SchemaVersion is written into every JSON document a FileStateStore owns.
const SchemaVersion = 1

// UndoMeta holds the undo id high-water mark.
type UndoMeta struct {
	Version int `json:"version"`

	// NextID is one past the highest id ever stored.
	NextID undo.ID `json:"nextId"`
}

// EntryList is the on-disk form of one action log sequence.
type EntryList struct {
	Version int             `json:"version"`
	Entries []actions.Entry `json:"entries"`
}

// NewUndoMeta creates an UndoMeta starting at the first id.
func NewUndoMeta() *UndoMeta {
	return &UndoMeta{Version: SchemaVersion, NextID: 1}
}

// NewEntryList creates an EntryList holding entries.
func NewEntryList(entries []actions.Entry) *EntryList {
	if entries == nil {
		entries = []actions.Entry{}
	}
	return &EntryList{Version: SchemaVersion, Entries: entries}
}
