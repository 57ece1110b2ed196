package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danieljhkim/ledgerfs/internal/actions"
	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/undo"
)

// Store persists both logs of a ledger.
type Store interface {
	undo.Store
	actions.EntryStore

	// Close releases the store's resources.
	Close() error
}

// FileStateStore implements Store using JSON files on disk:
//
//	<dir>/meta.json          undo id high-water mark
//	<dir>/items/<id>.json    one file per undo item
//	<dir>/applied.json       applied action entries
//	<dir>/undone.json        undone action entries
type FileStateStore struct {
	fs  fsops.FS
	dir string
}

var _ Store = (*FileStateStore)(nil)

// NewFileStateStore creates a new FileStateStore rooted at dir.
func NewFileStateStore(fs fsops.FS, dir string) (*FileStateStore, error) {
	if err := fs.MkdirAll(filepath.Join(dir, "items"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStateStore{fs: fs, dir: dir}, nil
}

func (s *FileStateStore) itemPath(id undo.ID) string {
	return filepath.Join(s.dir, "items", fmt.Sprintf("%020d.json", id))
}

func (s *FileStateStore) metaPath() string {
	return filepath.Join(s.dir, "meta.json")
}

func (s *FileStateStore) listPath(list actions.List) string {
	return filepath.Join(s.dir, string(list)+".json")
}

// PutUndoItem writes the item file, then advances the high-water mark. If
// the mark cannot be advanced the item file is removed again, so a failed
// put never shows up as a retained id after reopen.
func (s *FileStateStore) PutUndoItem(ctx context.Context, item undo.Item) error {
	path := s.itemPath(item.ID)
	if err := s.writeJSON(path, item); err != nil {
		return fmt.Errorf("failed to write undo item: %w", err)
	}

	if err := s.advanceNextID(item.ID); err != nil {
		if rerr := fsops.RemoveIfExists(s.fs, path); rerr != nil {
			return errors.Join(err, fmt.Errorf("failed to remove undo item %d: %w", item.ID, rerr))
		}
		return err
	}
	return nil
}

func (s *FileStateStore) advanceNextID(id undo.ID) error {
	meta, err := s.loadMeta()
	if err != nil {
		return err
	}
	if id < meta.NextID {
		return nil
	}
	meta.NextID = id + 1
	if err := s.writeJSON(s.metaPath(), meta); err != nil {
		return fmt.Errorf("failed to write undo meta: %w", err)
	}
	return nil
}

// GetUndoItem reads the item file for id.
func (s *FileStateStore) GetUndoItem(ctx context.Context, id undo.ID) (undo.Item, error) {
	data, err := s.fs.ReadFile(s.itemPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return undo.Item{}, fmt.Errorf("%w: %d", undo.ErrNotFound, id)
		}
		return undo.Item{}, fmt.Errorf("failed to read undo item: %w", err)
	}

	var item undo.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return undo.Item{}, fmt.Errorf("failed to unmarshal undo item: %w", err)
	}
	return item, nil
}

// DeleteUndoItems removes the item files for ids.
func (s *FileStateStore) DeleteUndoItems(ctx context.Context, ids []undo.ID) error {
	for _, id := range ids {
		if err := fsops.RemoveIfExists(s.fs, s.itemPath(id)); err != nil {
			return fmt.Errorf("failed to delete undo item %d: %w", id, err)
		}
	}
	return nil
}

// ListUndoItemIDs scans the items directory.
func (s *FileStateStore) ListUndoItemIDs(ctx context.Context) ([]undo.ID, error) {
	infos, err := s.fs.ReadDir(filepath.Join(s.dir, "items"))
	if err != nil {
		return nil, fmt.Errorf("failed to list undo items: %w", err)
	}

	ids := make([]undo.ID, 0, len(infos))
	for _, info := range infos {
		name, ok := strings.CutSuffix(info.Name(), ".json")
		if !ok || info.IsDir() {
			continue
		}
		n, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, undo.ID(n))
	}
	return ids, nil
}

// NextUndoItemID returns the stored high-water mark.
func (s *FileStateStore) NextUndoItemID(ctx context.Context) (undo.ID, error) {
	meta, err := s.loadMeta()
	if err != nil {
		return 0, err
	}
	return meta.NextID, nil
}

// GetActionEntries reads one action log sequence. A missing file is empty.
func (s *FileStateStore) GetActionEntries(ctx context.Context, list actions.List) ([]actions.Entry, error) {
	data, err := s.fs.ReadFile(s.listPath(list))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s actions: %w", list, err)
	}

	var doc EntryList
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s actions: %w", list, err)
	}
	return doc.Entries, nil
}

// PutActionEntries replaces one action log sequence.
func (s *FileStateStore) PutActionEntries(ctx context.Context, list actions.List, entries []actions.Entry) error {
	if err := s.writeJSON(s.listPath(list), NewEntryList(entries)); err != nil {
		return fmt.Errorf("failed to write %s actions: %w", list, err)
	}
	return nil
}

// Close is a no-op; every write is already durable.
func (s *FileStateStore) Close() error {
	return nil
}

func (s *FileStateStore) loadMeta() (*UndoMeta, error) {
	data, err := s.fs.ReadFile(s.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return NewUndoMeta(), nil
		}
		return nil, fmt.Errorf("failed to read undo meta: %w", err)
	}

	var meta UndoMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal undo meta: %w", err)
	}
	if meta.NextID < 1 {
		meta.NextID = 1
	}
	return &meta, nil
}

func (s *FileStateStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.fs.AtomicWrite(path, data, 0644)
}
