package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eventsync/internal/sink"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply output database migrations",
	Long:  "Creates or upgrades the configured output table (output.schema, output.table) by applying pending SQL migrations in lexicographic order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := outputPool(ctx)
		if err != nil {
			return err
		}
		if pool == nil {
			return eris.New("migrate: no output database configured (set output.database_url)")
		}
		defer pool.Close()

		if err := sink.Migrate(ctx, pool, cfg.Output.Schema, cfg.Output.Table); err != nil {
			return eris.Wrap(err, "migrate")
		}

		zap.L().Info("all migrations applied successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
