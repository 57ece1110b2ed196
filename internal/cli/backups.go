package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage dated backup sets",
	Long: `Manage dated backup sets.

A save keeps the previous content of every record it changes in a file named
BAK_<YYYYMMDD>_<name>. The files of one date form a backup set.`,
}

var backupsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List backup sets, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			sets, err := eng.Backups()
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), sets)
			}

			PrintSection("Backup Sets")
			if len(sets) == 0 {
				PrintEmptyState("No backups.")
				return nil
			}
			for _, set := range sets {
				PrintLabelValue(set.DateKey, fmt.Sprintf("%s, %s",
					PrintCount(len(set.Entries), "file", "files"), formatAge(set.Date)))
				PrintList(set.Names(), 2)
			}
			return nil
		})
	},
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore <YYYYMMDD>",
	Short: "Restore every record to a backup set",
	Long: `Restore every record to the state captured by the backup set of a date.

Records with a backup in the set get its content. Records without one are
deleted. The restore can be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			res, err := eng.RestoreBackup(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			PrintSuccess(fmt.Sprintf("Restored backup set %s", args[0]))
			return nil
		})
	},
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove backup sets beyond the retention limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			pruned, err := eng.PruneBackups(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), pruned)
			}
			if len(pruned) == 0 {
				PrintEmptyState("Nothing to prune.")
				return nil
			}
			for _, set := range pruned {
				PrintSuccess(fmt.Sprintf("Pruned backup set %s (%s)", set.DateKey,
					PrintCount(len(set.Entries), "file", "files")))
			}
			return nil
		})
	},
}

func init() {
	backupsCmd.AddCommand(backupsLsCmd)
	backupsCmd.AddCommand(backupsRestoreCmd)
	backupsCmd.AddCommand(backupsPruneCmd)
}
