package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var putDryRun bool

var putCmd = &cobra.Command{
	Use:   "put <name> <file|->",
	Short: "Set the content of a record",
	Long: `Set the content of a record from a file, or from stdin when the source is "-".

The change is saved immediately. If the record already exists on disk, its
previous content is kept in today's backup set.

Use --dry-run to check the record name without changing anything.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[1] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}

		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			names, err := resolveNames(eng, args[:1])
			if err != nil {
				return err
			}
			name := names[0]

			if putDryRun {
				if err := eng.ValidatePut(ctx, name, data); err != nil {
					return err
				}
				PrintSuccess(fmt.Sprintf("Would put %s (%s)", name, formatSize(len(data))))
				return nil
			}

			res, err := eng.Put(ctx, name, data)
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

func init() {
	putCmd.Flags().BoolVar(&putDryRun, "dry-run", false, "Validate without changing anything")
}
