// Package events runs the yearly news-event pipeline: fetch from the
// warehouse, normalize, deduplicate, enrich with company identifiers,
// filter by keyword, and hand the result to the output sinks.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/eventsync/internal/events/keyword"
	"github.com/sells-group/eventsync/internal/events/resolve"
	"github.com/sells-group/eventsync/internal/events/transform"
	"github.com/sells-group/eventsync/internal/model"
)

// Source returns one year of raw events. Implementations absorb their own
// failures and return an empty batch instead.
type Source interface {
	Fetch(ctx context.Context, year int) []model.RawEvent
}

// LinkLoader produces the reference link table once at startup.
type LinkLoader interface {
	Load(ctx context.Context) (*resolve.LinkTable, error)
}

// Sink persists one year's filtered events.
type Sink interface {
	Name() string
	Write(ctx context.Context, year int, rows []model.EnrichedEvent) error
}

// RunRecorder tracks the outcome of each year. Recording failures are
// logged and never interrupt a run.
type RunRecorder interface {
	Start(ctx context.Context, year int) (string, error)
	Complete(ctx context.Context, runID string, counts model.StageCounts) error
	Fail(ctx context.Context, runID string, msg string) error
}

// Observer receives per-year and per-sink outcomes, e.g. for metrics.
// ObserveSink may be called concurrently.
type Observer interface {
	ObserveYear(year int, counts model.StageCounts, elapsed time.Duration)
	ObserveSink(sink string, err error)
}

// Options configures a Pipeline.
type Options struct {
	Normalize transform.Options
	Sinks     []Sink
	Runs      RunRecorder // optional
	Observer  Observer    // optional
}

// YearResult is the output of one year's run.
type YearResult struct {
	Year   int
	Counts model.StageCounts
	Rows   []model.EnrichedEvent
}

// Pipeline composes the stages. Its link table and keyword pattern are
// built once and never mutated, so nothing is shared between years.
type Pipeline struct {
	source  Source
	links   *resolve.LinkTable
	pattern *keyword.Pattern
	opts    Options
}

// New loads the link table and returns a Pipeline filtering by pattern. It
// fails with resolve.ErrLinkTableUnavailable before any event is fetched.
func New(ctx context.Context, src Source, linker LinkLoader, pattern *keyword.Pattern, opts Options) (*Pipeline, error) {
	links, err := linker.Load(ctx)
	if err != nil {
		return nil, err
	}

	return NewWithTables(src, links, pattern, opts), nil
}

// NewWithTables assembles a Pipeline from an already built link table and
// pattern. A nil or empty link table leaves identifiers unset.
func NewWithTables(src Source, links *resolve.LinkTable, pattern *keyword.Pattern, opts Options) *Pipeline {
	return &Pipeline{source: src, links: links, pattern: pattern, opts: opts}
}

// Links returns the pipeline's link table.
func (p *Pipeline) Links() *resolve.LinkTable { return p.links }

// Pattern returns the pipeline's keyword pattern.
func (p *Pipeline) Pattern() *keyword.Pattern { return p.pattern }

// RunYear fetches, normalizes, deduplicates, enriches, and filters one year.
// An empty fetch short-circuits to an empty result.
func (p *Pipeline) RunYear(ctx context.Context, year int) *YearResult {
	log := zap.L().With(zap.String("component", "events.pipeline"), zap.Int("year", year))
	res := &YearResult{Year: year}

	raw := p.source.Fetch(ctx, year)
	res.Counts.Fetched = len(raw)
	if len(raw) == 0 {
		log.Info("no events fetched")
		return res
	}

	normalized := transform.Normalize(raw, p.opts.Normalize)
	res.Counts.Normalized = len(normalized)

	deduped := transform.Dedupe(normalized)
	res.Counts.Deduplicated = len(deduped)

	enriched := resolve.Enrich(deduped, p.links)
	res.Counts.Enriched = len(enriched)

	res.Rows = keyword.Filter(enriched, p.pattern)
	res.Counts.Filtered = len(res.Rows)

	log.Info("year processed",
		zap.Int("fetched", res.Counts.Fetched),
		zap.Int("normalized", res.Counts.Normalized),
		zap.Int("deduplicated", res.Counts.Deduplicated),
		zap.Int("enriched", res.Counts.Enriched),
		zap.Int("filtered", res.Counts.Filtered),
	)
	return res
}

// Run processes every year in [start, end] in ascending order, persists each
// non-empty result, and returns the non-empty results. A failed year never
// stops later years; only context cancellation ends the run early, in which
// case the results gathered so far are returned with ctx.Err(). An empty
// range (start > end) processes nothing.
func (p *Pipeline) Run(ctx context.Context, start, end int) ([]*YearResult, error) {
	log := zap.L().With(zap.String("component", "events.pipeline"))
	if start > end {
		log.Warn("empty year range", zap.Int("start", start), zap.Int("end", end))
		return nil, nil
	}

	total := end - start + 1
	var results []*YearResult

	for year := start; year <= end; year++ {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		log.Info("processing year", zap.Int("year", year), zap.Int("index", year-start+1), zap.Int("total", total))
		began := time.Now()
		runID := p.startRun(ctx, year)

		res := p.RunYear(ctx, year)
		if len(res.Rows) == 0 {
			log.Info("no processed data for year", zap.Int("year", year))
			p.completeRun(ctx, runID, res.Counts)
			p.observeYear(res, time.Since(began))
			continue
		}

		results = append(results, res)
		if err := p.Persist(ctx, res); err != nil {
			p.failRun(ctx, runID, err.Error())
		} else {
			p.completeRun(ctx, runID, res.Counts)
		}
		elapsed := time.Since(began)
		p.observeYear(res, elapsed)
		log.Info("year complete", zap.Int("year", year), zap.Int("rows", len(res.Rows)), zap.Duration("elapsed", elapsed))
	}

	log.Info("run complete", zap.Int("years", total), zap.Int("non_empty", len(results)))
	return results, nil
}

// Persist writes res to every sink concurrently. Each sink failure is logged;
// the returned error wraps ErrPersistence when at least one sink failed.
func (p *Pipeline) Persist(ctx context.Context, res *YearResult) error {
	log := zap.L().With(zap.String("component", "events.pipeline"), zap.Int("year", res.Year))

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []string
	)
	for _, s := range p.opts.Sinks {
		g.Go(func() error {
			err := s.Write(ctx, res.Year, res.Rows)
			if p.opts.Observer != nil {
				p.opts.Observer.ObserveSink(s.Name(), err)
			}
			if err != nil {
				log.Error("persist failed", zap.String("sink", s.Name()), zap.Error(err))
				mu.Lock()
				failed = append(failed, s.Name())
				mu.Unlock()
				return err
			}
			log.Info("persisted", zap.String("sink", s.Name()), zap.Int("rows", len(res.Rows)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrapf(ErrPersistence, "year %d: sinks %v: %v", res.Year, failed, err)
	}
	return nil
}

func (p *Pipeline) observeYear(res *YearResult, elapsed time.Duration) {
	if p.opts.Observer != nil {
		p.opts.Observer.ObserveYear(res.Year, res.Counts, elapsed)
	}
}

func (p *Pipeline) startRun(ctx context.Context, year int) string {
	if p.opts.Runs == nil {
		return ""
	}
	id, err := p.opts.Runs.Start(ctx, year)
	if err != nil {
		zap.L().Warn("failed to record run start", zap.Int("year", year), zap.Error(err))
		return ""
	}
	return id
}

func (p *Pipeline) completeRun(ctx context.Context, runID string, counts model.StageCounts) {
	if p.opts.Runs == nil || runID == "" {
		return
	}
	if err := p.opts.Runs.Complete(ctx, runID, counts); err != nil {
		zap.L().Warn("failed to record run completion", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) failRun(ctx context.Context, runID, msg string) {
	if p.opts.Runs == nil || runID == "" {
		return
	}
	if err := p.opts.Runs.Fail(ctx, runID, msg); err != nil {
		zap.L().Warn("failed to record run failure", zap.String("run_id", runID), zap.Error(err))
	}
}
