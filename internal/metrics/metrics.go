// Package metrics defines the Prometheus collectors of ledgerfs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values for outcome and event labels.
const (
	Fail = "fail"
	Ok   = "ok"

	Applied   = "applied"
	Undone    = "undone"
	Reapplied = "reapplied"
)

// Collectors for file batches and backups.
var (
	FileBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerfs_file_batches_total",
		Help: "Cumulative number of file action batches performed, by outcome.",
	}, []string{"outcome"})
	FileActionsRevertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerfs_file_actions_reverted_total",
		Help: "Cumulative number of file actions reverted after a failed batch.",
	})
	BackupsPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerfs_backups_pruned_total",
		Help: "Cumulative number of backup files removed by retention.",
	})
)

// Collectors for the undo and action logs.
var (
	UndoItemsRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerfs_undo_items_registered_total",
		Help: "Cumulative number of undo data items persisted.",
	})
	UndoItemsReversedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerfs_undo_items_reversed_total",
		Help: "Cumulative number of undo data items whose applier completed.",
	})
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerfs_actions_total",
		Help: "Cumulative number of action log events, by event.",
	}, []string{"event"})
)

// Gauges describing an open ledger. They are set by whoever reports on it.
var (
	Records = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledgerfs_records",
		Help: "Number of records in the ledger.",
	})
	BackupSets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledgerfs_backup_sets",
		Help: "Number of distinct backup dates on disk.",
	})
	HistoryEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledgerfs_history_entries",
		Help: "Number of action log entries, by list.",
	}, []string{"list"})
)

// Registry holds every ledgerfs collector.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		FileBatchesTotal,
		FileActionsRevertedTotal,
		BackupsPrunedTotal,
		UndoItemsRegisteredTotal,
		UndoItemsReversedTotal,
		ActionsTotal,
		Records,
		BackupSets,
		HistoryEntries,
	)
}
