package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eventsync/internal/runlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the run history",
	Long:  "Displays per-year run history from the local run log.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := runlog.Open(ctx, runLogPath(cfg))
		if err != nil {
			return eris.Wrap(err, "status")
		}
		defer l.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := l.List(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no runs found, run 'eventsync run' to process a year range")
			return nil
		}

		formatRunEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 50, "maximum number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

// formatRunEntries writes a tabular representation of run entries to w.
func formatRunEntries(out io.Writer, entries []runlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tSTATUS\tSTARTED\tDURATION\tFETCHED\tFILTERED\tERROR")
	_, _ = fmt.Fprintln(w, "----\t------\t-------\t--------\t-------\t--------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			d := e.CompletedAt.Sub(e.StartedAt).Round(time.Second)
			dur = d.String()
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.Year,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Counts.Fetched,
			e.Counts.Filtered,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
