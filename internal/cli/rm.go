package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var rmCmd = &cobra.Command{
	Use:   "rm <name>...",
	Short: "Delete records",
	Long: `Delete one or more records. Several records are deleted as a single
change that one undo reverts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			names, err := resolveNames(eng, args)
			if err != nil {
				return err
			}
			res, err := eng.Delete(ctx, names...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			printSaveResult(res)
			return nil
		})
	},
}
