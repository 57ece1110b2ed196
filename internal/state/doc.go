// Package state persists the undo log and the action log of a ledger.
//
// Every store satisfies both undo.Store and actions.EntryStore, so one store
// backs both logs:
//   - MemStore: process-local, for tests and the "memory" undo_store setting
//   - FileStateStore: JSON documents under .ledgerfs/undo, written atomically
//   - BadgerStore: a badger key-value database under .ledgerfs/undo
package state
