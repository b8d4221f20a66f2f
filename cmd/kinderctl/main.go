// Command kinderctl runs maintenance tasks against the order database:
// schema migrations, catalog imports and report exports.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kinder-supplies/api/internal/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "kinderctl",
	Short:         "Maintenance tool for the kindergarten supply ordering service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		var err error
		cfg, err = config.Load()
		return err
	},
}

func main() {
	rootCmd.AddCommand(newMigrateCmd(), newCatalogCmd(), newExportCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
