package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			records := eng.Records()
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), records)
			}

			PrintSection(fmt.Sprintf("Records in %s", eng.Paths().Root))
			if len(records) == 0 {
				PrintEmptyState("No records.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				state := "saved"
				if !r.Saved {
					state = "unsaved"
				}
				rows = append(rows, []string{r.Name, formatSize(r.Size), r.Hash[:12], state})
			}
			PrintTable([]string{"NAME", "SIZE", "HASH", "STATE"}, rows)
			return nil
		})
	},
}
