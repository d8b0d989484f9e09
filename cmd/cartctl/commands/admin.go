package commands

import (
	"fmt"

	"github.com/artfolio/cartstore/pkg/db"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/spf13/cobra"
)

var resetConfirm bool

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"status"},
	Short:   "Open the store, apply pending migrations, and print the schema version",
	RunE:    runMigrate,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the local store and recreate it empty",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "Confirm deleting all cart data")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	conn := db.NewConn(cfg.DBPath)
	defer conn.Close()

	version, err := conn.Version(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "migrate failed")
	}

	fmt.Printf("%-12s %s\n", "DATABASE", conn.Path())
	fmt.Printf("%-12s %d\n", "VERSION", version)
	fmt.Printf("%-12s %d\n", "TARGET", db.TargetVersion)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirm {
		return fmt.Errorf("reset deletes every cart line and snapshot in %s; pass --yes to confirm", cfg.DBPath)
	}

	conn := db.NewConn(cfg.DBPath)
	defer conn.Close()

	if err := conn.Reset(cmd.Context()); err != nil {
		return errors.Wrap(err, "reset failed")
	}
	fmt.Printf("Store at %s reset to schema version %d\n", conn.Path(), db.TargetVersion)
	return nil
}
