package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/artfolio/cartstore/internal/config"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LogLevel is raised or lowered from config before each command runs.
var LogLevel = new(slog.LevelVar)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cartctl",
	Short: "Artfolio offline cart store",
	Long:  `Manages the local shopping cart: artwork and art material lines, cached product snapshots, schema migrations, and S3 backups.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "config load failed")
		}
		if err := loaded.Validate(); err != nil {
			return errors.Wrap(err, "config invalid")
		}
		level, _ := loaded.SlogLevel()
		LogLevel.Set(level)
		cfg = loaded
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db-path", ".artifacts/cart.db", "SQLite cart database path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm", "FSM state directory")
	rootCmd.PersistentFlags().String("catalog-url", "", "Marketplace API base URL for snapshot refresh")
	rootCmd.PersistentFlags().String("catalog-token", "", "Bearer token for the marketplace API")
	rootCmd.PersistentFlags().Duration("catalog-timeout", 10*time.Second, "Marketplace API request timeout")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket for backups")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.PersistentFlags().String("s3-prefix", "cart-backups", "S3 key prefix for backups")
	rootCmd.PersistentFlags().Int("max-line-quantity", 0, "Max quantity on a single cart line (0 = unlimited)")
	rootCmd.PersistentFlags().Int("max-text-length", 2000, "Max length of cached snapshot text fields")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	for _, name := range []string{
		"db-path", "fsm-db-path",
		"catalog-url", "catalog-token", "catalog-timeout",
		"s3-bucket", "s3-region", "s3-prefix",
		"max-line-quantity", "max-text-length",
		"log-level",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}
