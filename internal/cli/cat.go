package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var catCmd = &cobra.Command{
	Use:   "cat <name>",
	Short: "Print the content of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, eng *engine.Engine) error {
			names, err := resolveNames(eng, args)
			if err != nil {
				return err
			}
			data, err := eng.Get(names[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}
