// Package backups decorates file action batches with dated backups and
// restores a directory to the state a backup set captured.
//
// Backups are siblings of the files they guard, named
// BAK_<YYYYMMDD>_<originalName>. A backup set is not stored anywhere; it is
// rebuilt by scanning a directory and grouping backup files by date.
package backups

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/danieljhkim/ledgerfs/internal/clock"
	"github.com/danieljhkim/ledgerfs/internal/fileaction"
	"github.com/danieljhkim/ledgerfs/internal/fsops"
	"github.com/danieljhkim/ledgerfs/internal/metrics"
)

// Prefix starts every backup file name.
const Prefix = "BAK_"

// restorePrefix names the transient snapshots taken while restoring.
const restorePrefix = ".restore_"

// Entry is one backup file and the name of the file it guards.
type Entry struct {
	BackupPath   string `json:"backupPath"`
	OriginalName string `json:"originalName"`
}

// Set groups the backups written on one date.
type Set struct {
	DateKey string    `json:"date"`
	Date    time.Time `json:"-"`
	Entries []Entry   `json:"entries"`
}

// Lookup returns the entry guarding originalName.
func (s Set) Lookup(originalName string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.OriginalName == originalName {
			return e, true
		}
	}
	return Entry{}, false
}

// Names returns the original names covered by the set.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		names = append(names, e.OriginalName)
	}
	return names
}

// Name returns the backup file name guarding originalName on date.
func Name(date time.Time, originalName string) string {
	return Prefix + clock.DateKey(date) + "_" + originalName
}

// ParseName splits a backup file name into its date key and original name.
func ParseName(name string) (dateKey, originalName string, ok bool) {
	rest, found := strings.CutPrefix(name, Prefix)
	if !found {
		return "", "", false
	}
	dateKey, originalName, found = strings.Cut(rest, "_")
	if !found || originalName == "" {
		return "", "", false
	}
	if _, err := clock.ParseDateKey(dateKey, time.UTC); err != nil {
		return "", "", false
	}
	return dateKey, originalName, true
}

// IsBackupName reports whether name follows the backup naming convention.
func IsBackupName(name string) bool {
	_, _, ok := ParseName(name)
	return ok
}

// Options configure a Policy.
type Options struct {
	// MaxBackups is the number of distinct backup dates retained. Zero
	// disables dated backups and retention.
	MaxBackups int

	// BackupUnchanged also snapshots the targets of Keep actions, so a set
	// captures every governed file rather than only the mutated ones.
	BackupUnchanged bool

	Logger *log.Entry
}

// Policy owns dated backup assignment, listing, restoration and retention.
type Policy struct {
	runner *fileaction.Runner
	fs     fsops.FS
	opts   Options
	log    *log.Entry
}

// NewPolicy creates a Policy whose restores and prunes run through runner.
func NewPolicy(runner *fileaction.Runner, opts Options) *Policy {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "backups")
	}
	return &Policy{runner: runner, fs: runner.FS(), opts: opts, log: logger}
}

// MaxBackups returns the retention limit.
func (p *Policy) MaxBackups() int {
	return p.opts.MaxBackups
}

// ApplyToFileActions assigns a dated backup path to each Delete, Replace and
// Copy action whose target currently exists (and to Keep actions when
// BackupUnchanged is set). It mutates the actions in place; the backups are
// written when the batch runs.
//
// A second batch on the same date overwrites the earlier backup of each name
// it touches, once that batch commits.
func (p *Policy) ApplyToFileActions(actions []fileaction.Action, date time.Time) error {
	if p.opts.MaxBackups <= 0 {
		return nil
	}
	for _, a := range actions {
		b, ok := a.(fileaction.Backupable)
		if !ok {
			continue
		}
		if a.Kind() == fileaction.KindKeep && !p.opts.BackupUnchanged {
			continue
		}

		target := a.Target()
		exists, err := p.fs.Exists(target)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", target, err)
		}
		if !exists {
			continue
		}

		backupPath := filepath.Join(filepath.Dir(target), Name(date, filepath.Base(target)))
		b.SetBackupPath(backupPath)
		p.log.WithFields(log.Fields{"path": target, "backup": backupPath}).Debug("assigned backup")
	}
	return nil
}

// GetBackups scans dir and returns its backup sets, newest date first.
// Entries within a set are sorted by original name.
func (p *Policy) GetBackups(dir string) ([]Set, error) {
	infos, err := p.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	byDate := make(map[string]*Set)
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		dateKey, original, ok := ParseName(info.Name())
		if !ok {
			continue
		}
		set, found := byDate[dateKey]
		if !found {
			date, _ := clock.ParseDateKey(dateKey, time.Local)
			set = &Set{DateKey: dateKey, Date: date}
			byDate[dateKey] = set
		}
		set.Entries = append(set.Entries, Entry{
			BackupPath:   filepath.Join(dir, info.Name()),
			OriginalName: original,
		})
	}

	sets := make([]Set, 0, len(byDate))
	for _, set := range byDate {
		sort.Slice(set.Entries, func(i, j int) bool {
			return set.Entries[i].OriginalName < set.Entries[j].OriginalName
		})
		sets = append(sets, *set)
	}
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].DateKey > sets[j].DateKey
	})
	return sets, nil
}

// RestoreBackup brings every governed name in dir back to the state set
// captured: names with an entry get the backup content, names without one
// are deleted, because their absence means the guarded transaction created
// them. The restore runs as a single file batch.
func (p *Policy) RestoreBackup(ctx context.Context, set Set, dir string, governedNames []string) error {
	names := dedupe(governedNames)

	actions := make([]fileaction.Action, 0, len(names))
	for _, name := range names {
		if err := p.fs.ValidateName(name); err != nil {
			return fmt.Errorf("invalid governed name: %w", err)
		}
		live := filepath.Join(dir, name)
		scratch := filepath.Join(dir, restorePrefix+name)

		if entry, ok := set.Lookup(name); ok {
			c := fileaction.NewCopy(entry.BackupPath, live)
			c.SetTransientBackup(scratch)
			actions = append(actions, c)
		} else {
			d := fileaction.NewDelete(live)
			d.SetTransientBackup(scratch)
			actions = append(actions, d)
		}
	}

	p.log.WithFields(log.Fields{"date": set.DateKey, "names": len(names)}).Info("restoring backup set")
	if err := p.runner.PerformFileActions(ctx, actions); err != nil {
		return fmt.Errorf("failed to restore backup %s: %w", set.DateKey, err)
	}
	return nil
}

// Prune deletes every backup set in dir beyond the MaxBackups newest dates
// and returns the removed sets.
func (p *Policy) Prune(ctx context.Context, dir string) ([]Set, error) {
	if p.opts.MaxBackups <= 0 {
		return nil, nil
	}
	sets, err := p.GetBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(sets) <= p.opts.MaxBackups {
		return nil, nil
	}
	doomed := sets[p.opts.MaxBackups:]

	var actions []fileaction.Action
	for _, set := range doomed {
		for _, e := range set.Entries {
			actions = append(actions, fileaction.NewDelete(e.BackupPath))
		}
	}
	if err := p.runner.PerformFileActions(ctx, actions); err != nil {
		return nil, fmt.Errorf("failed to prune backups: %w", err)
	}

	metrics.BackupsPrunedTotal.Add(float64(len(actions)))
	p.log.WithFields(log.Fields{"sets": len(doomed), "files": len(actions)}).Info("pruned backups")
	return doomed, nil
}

// dedupe returns the unique names in sorted order.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
