package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/ledgerfs/internal/config"
	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var (
	initForce           bool
	initMaxBackups      int
	initBackupUnchanged bool
	initUndoStore       string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a ledger in the ledger directory",
	Long: `Initialize a ledger by creating its .ledgerfs metadata directory.

The metadata directory holds the ledger config (config.yaml), the lock file
and the undo store. Files already in the directory become records.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	defaults := config.Default()
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false,
		"Rewrite the config of an existing ledger")
	initCmd.Flags().IntVar(&initMaxBackups, "max-backups", defaults.MaxBackups,
		"Distinct backup dates to retain (0 disables dated backups)")
	initCmd.Flags().BoolVar(&initBackupUnchanged, "backup-unchanged", defaults.BackupUnchanged,
		"Also back up records a save leaves unchanged")
	initCmd.Flags().StringVar(&initUndoStore, "undo-store", defaults.UndoStore,
		"Undo store: badger, json or memory")
}

func runInit(cmd *cobra.Command, args []string) error {
	paths, err := config.DefaultPaths(ledgerDir)
	if err != nil {
		return err
	}

	initialized, err := paths.Initialized()
	if err != nil {
		return err
	}
	if initialized && !initForce {
		return fmt.Errorf("ledger already initialized at %s\nUse --force to rewrite its config", paths.Root)
	}

	cfg := config.Default()
	cfg.MaxBackups = initMaxBackups
	cfg.BackupUnchanged = initBackupUnchanged
	cfg.UndoStore = initUndoStore
	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := engine.Init(paths.Root, cfg); err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
			"root":   paths.Root,
			"config": cfg,
		})
	}

	PrintSuccess(fmt.Sprintf("Initialized ledger at %s", paths.Root))
	fmt.Println()
	PrintInfo("Next steps:")
	fmt.Println("  1. Add a record:      ledgerfs put <name> <file|->")
	fmt.Println("  2. List records:      ledgerfs ls")
	fmt.Println("  3. Undo a change:     ledgerfs undo")
	return nil
}
