package cli

import (
	"context"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/engine"
	"github.com/danieljhkim/ledgerfs/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print ledger metrics in Prometheus text format",
	Long: `Print ledger metrics in the Prometheus text exposition format.

The gauges describe the ledger on disk. Counters cover this invocation only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			if err := observeLedger(eng); err != nil {
				return err
			}

			families, err := metrics.Registry.Gather()
			if err != nil {
				return err
			}
			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(cmd.OutOrStdout(), mf); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

// observeLedger sets the ledger gauges from eng.
func observeLedger(eng *engine.Engine) error {
	sets, err := eng.Backups()
	if err != nil {
		return err
	}
	h, err := eng.History()
	if err != nil {
		return err
	}

	metrics.Records.Set(float64(len(eng.Records())))
	metrics.BackupSets.Set(float64(len(sets)))
	metrics.HistoryEntries.WithLabelValues("applied").Set(float64(len(h.Applied)))
	metrics.HistoryEntries.WithLabelValues("undone").Set(float64(len(h.Undone)))
	return nil
}
