package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGathersEveryCollector(t *testing.T) {
	ActionsTotal.WithLabelValues(Applied)
	FileBatchesTotal.WithLabelValues(Ok)
	HistoryEntries.WithLabelValues("applied")

	families, err := Registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"ledgerfs_file_batches_total",
		"ledgerfs_file_actions_reverted_total",
		"ledgerfs_backups_pruned_total",
		"ledgerfs_undo_items_registered_total",
		"ledgerfs_undo_items_reversed_total",
		"ledgerfs_actions_total",
		"ledgerfs_records",
		"ledgerfs_backup_sets",
		"ledgerfs_history_entries",
	} {
		assert.True(t, names[want], want)
	}
}

func TestGauges(t *testing.T) {
	Records.Set(3)
	HistoryEntries.WithLabelValues("undone").Set(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(Records))
	assert.Equal(t, 2.0, testutil.ToFloat64(HistoryEntries.WithLabelValues("undone")))
}
