// Package planner handles the planning phase of a ledger save.
//
// The planner compares the records a ledger holds in memory against the
// governed files on disk and produces a deterministic SavePlan: which files to
// write, delete or keep. It detects conflicts where a file was changed on disk
// behind the ledger's back since it was last loaded or saved.
//
// Key responsibilities:
//   - Generate SavePlan with operations ordered by record name
//   - Skip rewriting records whose content hash is unchanged
//   - Detect drift (external edits, deletions and unmanaged files)
package planner
