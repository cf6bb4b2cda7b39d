package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eventsync/internal/config"
	"github.com/sells-group/eventsync/internal/events"
	"github.com/sells-group/eventsync/internal/events/keyword"
	"github.com/sells-group/eventsync/internal/events/resolve"
	"github.com/sells-group/eventsync/internal/events/transform"
	"github.com/sells-group/eventsync/internal/metrics"
	"github.com/sells-group/eventsync/internal/runlog"
	"github.com/sells-group/eventsync/internal/sink"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a range of years",
	Long:  "Fetches, normalizes, deduplicates, enriches and keyword-filters each year in [start, end] and writes the non-empty results to the configured sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		normOpts, err := normalizeOptions(cfg.Events)
		if err != nil {
			return err
		}
		pattern, err := keyword.Load(cfg.Events.KeywordsPath)
		if err != nil {
			return eris.Wrap(err, "run: load keywords")
		}

		wh, err := warehousePool(ctx)
		if err != nil {
			return err
		}
		defer wh.Close()

		sinks, closeSinks, err := buildSinks(ctx)
		if err != nil {
			return err
		}
		defer closeSinks()

		runs, err := runlog.Open(ctx, runLogPath(cfg))
		if err != nil {
			return eris.Wrap(err, "run: open run log")
		}
		defer runs.Close() //nolint:errcheck

		fetcher := events.NewFetcher(wh, events.FetcherOptions{
			Schema:           cfg.Warehouse.EventsSchema,
			TablePrefix:      cfg.Warehouse.EventsTablePrefix,
			QueriesPerMinute: cfg.Warehouse.QueriesPerMinute,
		})
		linker := resolve.NewLinker(wh, cfg.Warehouse.EntityLinkTable, cfg.Warehouse.CompanyLinkTable)

		rec := metrics.New()
		p, err := events.New(ctx, fetcher, linker, pattern, events.Options{
			Normalize: normOpts,
			Sinks:     sinks,
			Runs:      runs,
			Observer:  rec,
		})
		if err != nil {
			return eris.Wrap(err, "run: init pipeline")
		}

		start := time.Now()
		results, err := p.Run(ctx, cfg.Events.StartYear, cfg.Events.EndYear)
		formatRunResults(os.Stdout, results)
		writeMetrics(rec, cfg.Output.MetricsFile)
		zap.L().Info("run finished",
			zap.Int("years_with_rows", len(results)),
			zap.Duration("elapsed", time.Since(start)),
		)
		if err != nil {
			return eris.Wrap(err, "run")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Int("start", 0, "first year to process (default events.start_year)")
	runCmd.Flags().Int("end", 0, "last year to process, inclusive (default events.end_year)")
	runCmd.Flags().String("keywords", "", "keyword file, .txt list or .yaml taxonomy (default events.keywords_path)")
	runCmd.Flags().String("output", "", "directory for Parquet output (default output.dir)")
	runCmd.Flags().String("source", "", "source name used in output file names (default output.source)")
	runCmd.Flags().String("metrics-file", "", "write Prometheus textfile metrics here (default output.metrics_file)")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("start") {
		v, err := flags.GetInt("start")
		if err != nil {
			return eris.Wrap(err, "run: read --start")
		}
		c.Events.StartYear = v
	}
	if flags.Changed("end") {
		v, err := flags.GetInt("end")
		if err != nil {
			return eris.Wrap(err, "run: read --end")
		}
		c.Events.EndYear = v
	}
	if flags.Changed("keywords") {
		v, _ := flags.GetString("keywords")
		c.Events.KeywordsPath = v
	}
	if flags.Changed("output") {
		v, _ := flags.GetString("output")
		c.Output.Dir = v
	}
	if flags.Changed("source") {
		v, _ := flags.GetString("source")
		c.Output.Source = v
	}
	if flags.Changed("metrics-file") {
		v, _ := flags.GetString("metrics-file")
		c.Output.MetricsFile = v
	}
	return nil
}

// normalizeOptions builds the normalization rules from config.
func normalizeOptions(ec config.EventsConfig) (transform.Options, error) {
	tz := ec.Timezone
	if tz == "" {
		tz = transform.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return transform.Options{}, eris.Wrapf(err, "run: load timezone %q", tz)
	}

	opts := transform.Options{
		Location:     loc,
		CountryCode:  ec.CountryCode,
		MinRelevance: ec.MinRelevance,
	}
	if opts.CountryCode == "" {
		opts.CountryCode = transform.DefaultCountryCode
	}
	return opts, nil
}

// runLogPath returns runlog.path, or eventsync.db in the output dir.
func runLogPath(c *config.Config) string {
	if c.RunLog.Path != "" {
		return c.RunLog.Path
	}
	return filepath.Join(c.Output.Dir, "eventsync.db")
}

// buildSinks returns the Parquet sink plus, when output.database_url is set,
// a migrated Postgres sink. The returned func releases their resources.
func buildSinks(ctx context.Context) ([]events.Sink, func(), error) {
	pq, err := sink.NewParquetSink(cfg.Output.Dir, cfg.Output.Source)
	if err != nil {
		return nil, nil, err
	}
	sinks := []events.Sink{pq}
	closeFn := func() {}

	pool, err := outputPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	if pool != nil {
		if err := sink.Migrate(ctx, pool, cfg.Output.Schema, cfg.Output.Table); err != nil {
			pool.Close()
			return nil, nil, eris.Wrap(err, "run: migrate output database")
		}
		sinks = append(sinks, sink.NewPostgresSink(pool, cfg.Output.Schema, cfg.Output.Table))
		closeFn = pool.Close
	}

	return sinks, closeFn, nil
}

// writeMetrics stamps the run and writes the textfile when a path is set.
// A failed write is logged only.
func writeMetrics(rec *metrics.Recorder, path string) {
	rec.Finish(time.Now())
	if path == "" {
		return
	}
	if err := rec.WriteTextfile(path); err != nil {
		zap.L().Warn("failed to write metrics file", zap.String("path", path), zap.Error(err))
	}
}

// formatRunResults writes per-year stage counts for the years that produced rows.
func formatRunResults(out io.Writer, results []*events.YearResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tFETCHED\tNORMALIZED\tDEDUPED\tENRICHED\tFILTERED")
	_, _ = fmt.Fprintln(w, "----\t-------\t----------\t-------\t--------\t--------")

	total := 0
	for _, r := range results {
		c := r.Counts
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\n",
			r.Year, c.Fetched, c.Normalized, c.Deduplicated, c.Enriched, c.Filtered)
		total += c.Filtered
	}
	_, _ = fmt.Fprintf(w, "total\t\t\t\t\t%d\n", total)
	_ = w.Flush()
}
