package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var historyClear bool

var undoCmd = &cobra.Command{
	Use:   "undo [n]",
	Short: "Undo the most recent changes",
	Long: `Undo the n most recent changes (default 1), newest first, and save.

Asking for more changes than the history holds undoes all of them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := parseCount(args)
		if err != nil {
			return err
		}
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			res, err := eng.Undo(ctx, n)
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

var redoCmd = &cobra.Command{
	Use:   "redo [n]",
	Short: "Redo undone changes",
	Long: `Reapply the n most recently undone changes (default 1), in the order they
were first made, and save. Any new change discards what could be redone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := parseCount(args)
		if err != nil {
			return err
		}
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			res, err := eng.Redo(ctx, n)
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

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the changes that can be undone and redone",
	Long: `Show the action log: applied changes, newest first, then the changes
that redo would reapply.

Use --clear to forget the whole history. Records are left as they are.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			if historyClear {
				if err := eng.ClearHistory(ctx); err != nil {
					return err
				}
				PrintSuccess("Cleared history")
				return nil
			}

			h, err := eng.History()
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), h)
			}

			PrintSection("Applied")
			if len(h.Applied) == 0 {
				PrintEmptyState("Nothing to undo.")
			} else {
				rows := make([][]string, 0, len(h.Applied))
				for i := len(h.Applied) - 1; i >= 0; i-- {
					rows = append(rows, historyRow(len(h.Applied)-i, h.Applied[i]))
				}
				PrintTable([]string{"#", "ACTION", "SUBJECT", "WHEN"}, rows)
			}

			if len(h.Undone) > 0 {
				PrintSection("Undone")
				rows := make([][]string, 0, len(h.Undone))
				for i, entry := range h.Undone {
					rows = append(rows, historyRow(i+1, entry))
				}
				PrintTable([]string{"#", "ACTION", "SUBJECT", "WHEN"}, rows)
			}
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Forget every applied and undone change")
}

func historyRow(n int, entry engine.HistoryEntry) []string {
	return []string{
		fmt.Sprintf("%d", n),
		entry.Type,
		strings.Join(entry.Names, ", "),
		formatAge(entry.AppliedAt),
	}
}
