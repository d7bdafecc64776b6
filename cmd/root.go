package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pipeline-import",
	Short: "Weekly sales report ingestion and client matching",
	Long:  "Parses weekly sales pipeline reports (CSV, spreadsheet, PDF text, or screenshots), matches deals against the client registry, and imports them as client pipeline updates.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
