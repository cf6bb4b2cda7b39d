package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eventsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "eventsync",
	Short: "Yearly news-event extraction pipeline",
	Long:  "Pulls RavenPack news events from the WRDS warehouse year by year, normalizes and deduplicates them, links them to CUSIP/GVKEY/ticker identifiers, keeps keyword-matching headlines and writes one Parquet file per year.",
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
