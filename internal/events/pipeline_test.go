package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eventsync/internal/events/keyword"
	"github.com/sells-group/eventsync/internal/events/resolve"
	"github.com/sells-group/eventsync/internal/events/transform"
	"github.com/sells-group/eventsync/internal/model"
)

// fakeSource serves canned batches per year and counts calls.
type fakeSource struct {
	mu      sync.Mutex
	batches map[int][]model.RawEvent
	calls   []int
}

func (s *fakeSource) Fetch(_ context.Context, year int) []model.RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, year)
	return s.batches[year]
}

type fakeLinker struct {
	table *resolve.LinkTable
	err   error
}

func (l *fakeLinker) Load(context.Context) (*resolve.LinkTable, error) {
	return l.table, l.err
}

type fakeSink struct {
	name   string
	err    error
	mu     sync.Mutex
	writes map[int]int
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Write(_ context.Context, year int, rows []model.EnrichedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes == nil {
		s.writes = map[int]int{}
	}
	s.writes[year] = len(rows)
	return s.err
}

type fakeRuns struct {
	started   []int
	completed map[string]model.StageCounts
	failed    map[string]string
	startErr  error
}

func (r *fakeRuns) Start(_ context.Context, year int) (string, error) {
	if r.startErr != nil {
		return "", r.startErr
	}
	r.started = append(r.started, year)
	return fmt.Sprintf("run-%d", year), nil
}

func (r *fakeRuns) Complete(_ context.Context, id string, c model.StageCounts) error {
	if r.completed == nil {
		r.completed = map[string]model.StageCounts{}
	}
	r.completed[id] = c
	return nil
}

func (r *fakeRuns) Fail(_ context.Context, id string, msg string) error {
	if r.failed == nil {
		r.failed = map[string]string{}
	}
	r.failed[id] = msg
	return nil
}

type fakeObserver struct {
	mu    sync.Mutex
	years map[int]model.StageCounts
	sinks map[string]int
	errs  int
}

func (o *fakeObserver) ObserveYear(year int, c model.StageCounts, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.years == nil {
		o.years = map[int]model.StageCounts{}
	}
	o.years[year] = c
}

func (o *fakeObserver) ObserveSink(sink string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sinks == nil {
		o.sinks = map[string]int{}
	}
	o.sinks[sink]++
	if err != nil {
		o.errs++
	}
}

func strPtr(s string) *string { return &s }

func rawEvent(entity, story, text, headline string, relevance float64, ts time.Time) model.RawEvent {
	return model.RawEvent{
		EntityID:     entity,
		StoryID:      story,
		EntityName:   "Entity " + entity,
		TimestampUTC: &ts,
		Relevance:    relevance,
		CountryCode:  "US",
		Headline:     strPtr(headline),
		EventText:    text,
	}
}

func sampleBatch() []model.RawEvent {
	ts := time.Date(2020, 6, 1, 13, 0, 0, 0, time.UTC)
	return []model.RawEvent{
		rawEvent("E1", "s2", "buyback", "Acme Announces Stock Buyback", 90, ts.Add(time.Hour)),
		rawEvent("E1", "s1", "buyback", "Acme Announces Stock   Buyback!", 90, ts),
		rawEvent("E1", "s3", "earnings", "Acme Earnings Beat", 90, ts),
		rawEvent("E2", "s4", "merger", "Beta Merger Approved", 75, ts),
		rawEvent("E2", "s5", "merger-rumor", "Beta Merger Rumor", 74, ts),
		rawEvent("E3", "s6", "merger", "Gamma Completes Merger", 99, ts),
	}
}

func sampleLinks() *resolve.LinkTable {
	return resolve.NewLinkTable([]model.Link{
		{EntityID: "E1", CUSIP: "C1", GVKEY: "G1", Ticker: strPtr("ACME")},
		{EntityID: "E2", CUSIP: "C2", GVKEY: "G2", Ticker: strPtr("BETA")},
		{EntityID: "E2", CUSIP: "C2B", GVKEY: "G2"},
	})
}

func samplePattern(t *testing.T) *keyword.Pattern {
	t.Helper()
	p, err := keyword.Compile([]string{"stock buyback", "merger"})
	require.NoError(t, err)
	return p
}

func normalizeOpts(t *testing.T) transform.Options {
	t.Helper()
	opts, err := transform.DefaultOptions()
	require.NoError(t, err)
	return opts
}

func TestNew_LinkTableUnavailable(t *testing.T) {
	src := &fakeSource{}
	linker := &fakeLinker{err: resolve.ErrLinkTableUnavailable}

	p, err := New(context.Background(), src, linker, samplePattern(t), Options{})
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, resolve.ErrLinkTableUnavailable))
	assert.Empty(t, src.calls, "no fetch may happen when reference data is missing")
}

func TestNew_Success(t *testing.T) {
	linker := &fakeLinker{table: sampleLinks()}

	p, err := New(context.Background(), &fakeSource{}, linker, samplePattern(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Links().Len())
	assert.Len(t, p.Pattern().Terms(), 2)
}

func TestRunYear_FullPipeline(t *testing.T) {
	src := &fakeSource{batches: map[int][]model.RawEvent{2020: sampleBatch()}}
	p := NewWithTables(src, sampleLinks(), samplePattern(t), Options{Normalize: normalizeOpts(t)})

	res := p.RunYear(context.Background(), 2020)
	assert.Equal(t, model.StageCounts{
		Fetched:      6,
		Normalized:   5, // relevance 74 dropped
		Deduplicated: 4, // later E1 buyback dropped
		Enriched:     5, // E2 fans out to two links
		Filtered:     4, // earnings headline dropped
	}, res.Counts)

	require.Len(t, res.Rows, 4)

	e1 := res.Rows[0]
	assert.Equal(t, "s1", e1.StoryID, "earliest duplicate wins")
	assert.Equal(t, "acme announces stock buyback", e1.Headline)
	require.NotNil(t, e1.Timestamp)
	assert.Equal(t, time.Date(2020, 6, 1, 9, 0, 0, 0, time.UTC), *e1.Timestamp)
	assert.Equal(t, "ACME", *e1.Ticker)

	assert.Equal(t, "E2", res.Rows[1].EntityID)
	assert.Equal(t, "C2", *res.Rows[1].CUSIP)
	assert.Equal(t, "E2", res.Rows[2].EntityID)
	assert.Equal(t, "C2B", *res.Rows[2].CUSIP)

	e3 := res.Rows[3]
	assert.Equal(t, "E3", e3.EntityID)
	assert.Nil(t, e3.CUSIP)
	assert.Nil(t, e3.GVKEY)
	assert.Nil(t, e3.Ticker)
}

func TestRunYear_EmptyLinkTable(t *testing.T) {
	src := &fakeSource{batches: map[int][]model.RawEvent{2020: sampleBatch()}}
	p := NewWithTables(src, resolve.NewLinkTable(nil), samplePattern(t), Options{Normalize: normalizeOpts(t)})

	res := p.RunYear(context.Background(), 2020)
	assert.Equal(t, res.Counts.Deduplicated, res.Counts.Enriched)
	require.Len(t, res.Rows, 3)
	for _, r := range res.Rows {
		assert.Nil(t, r.CUSIP)
		assert.Nil(t, r.GVKEY)
		assert.Nil(t, r.Ticker)
	}
}

func TestRunYear_EmptyFetchShortCircuits(t *testing.T) {
	p := NewWithTables(&fakeSource{}, sampleLinks(), samplePattern(t), Options{Normalize: normalizeOpts(t)})

	res := p.RunYear(context.Background(), 2019)
	assert.Equal(t, 2019, res.Year)
	assert.Equal(t, model.StageCounts{}, res.Counts)
	assert.Empty(t, res.Rows)
}

func TestRun_FailedYearIsIsolated(t *testing.T) {
	// 2019's fetch failed and came back empty; 2020 succeeds.
	src := &fakeSource{batches: map[int][]model.RawEvent{2020: sampleBatch()}}
	sink := &fakeSink{name: "memory"}
	runs := &fakeRuns{}
	p := NewWithTables(src, sampleLinks(), samplePattern(t), Options{
		Normalize: normalizeOpts(t),
		Sinks:     []Sink{sink},
		Runs:      runs,
	})

	results, err := p.Run(context.Background(), 2019, 2020)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2020, results[0].Year)

	assert.Equal(t, []int{2019, 2020}, src.calls)
	assert.Equal(t, map[int]int{2020: 4}, sink.writes)
	assert.Equal(t, []int{2019, 2020}, runs.started)
	assert.Equal(t, 0, runs.completed["run-2019"].Fetched)
	assert.Equal(t, 4, runs.completed["run-2020"].Filtered)
	assert.Empty(t, runs.failed)
}

func TestRun_PersistenceFailureKeepsResult(t *testing.T) {
	src := &fakeSource{batches: map[int][]model.RawEvent{
		2020: sampleBatch(),
		2021: sampleBatch(),
	}}
	good := &fakeSink{name: "good"}
	bad := &fakeSink{name: "bad", err: errors.New("disk full")}
	runs := &fakeRuns{}
	p := NewWithTables(src, sampleLinks(), samplePattern(t), Options{
		Normalize: normalizeOpts(t),
		Sinks:     []Sink{good, bad},
		Runs:      runs,
	})

	results, err := p.Run(context.Background(), 2020, 2021)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, map[int]int{2020: 4, 2021: 4}, good.writes)
	assert.Len(t, runs.failed, 2)
	assert.Contains(t, runs.failed["run-2020"], "disk full")
	assert.Contains(t, runs.failed["run-2020"], "bad")
}

func TestRun_RecorderErrorsDoNotStopRun(t *testing.T) {
	src := &fakeSource{batches: map[int][]model.RawEvent{2020: sampleBatch()}}
	p := NewWithTables(src, sampleLinks(), samplePattern(t), Options{
		Normalize: normalizeOpts(t),
		Runs:      &fakeRuns{startErr: errors.New("database is locked")},
	})

	results, err := p.Run(context.Background(), 2020, 2020)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRun_EmptyRange(t *testing.T) {
	src := &fakeSource{batches: map[int][]model.RawEvent{2020: sampleBatch(), 2021: sampleBatch()}}
	sk := &fakeSink{name: "parquet"}
	p := NewWithTables(src, sampleLinks(), samplePattern(t), Options{Normalize: normalizeOpts(t), Sinks: []Sink{sk}})

	results, err := p.Run(context.Background(), 2021, 2020)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, src.calls)
	assert.Empty(t, sk.writes)
}

func TestRun_Cancelled(t *testing.T) {
	src := &fakeSource{batches: map[int][]model.RawEvent{2020: sampleBatch()}}
	p := NewWithTables(src, sampleLinks(), samplePattern(t), Options{Normalize: normalizeOpts(t)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := p.Run(ctx, 2020, 2022)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Empty(t, src.calls)
}

func TestPersist_NoSinks(t *testing.T) {
	p := NewWithTables(&fakeSource{}, nil, samplePattern(t), Options{})
	assert.NoError(t, p.Persist(context.Background(), &YearResult{Year: 2020}))
}

func TestPersist_WrapsPersistenceError(t *testing.T) {
	p := NewWithTables(&fakeSource{}, nil, samplePattern(t), Options{
		Sinks: []Sink{&fakeSink{name: "bad", err: errors.New("boom")}},
	})
	err := p.Persist(context.Background(), &YearResult{Year: 2020})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
}

func TestRun_ObserverSeesEveryYearAndSink(t *testing.T) {
	src := &fakeSource{batches: map[int][]model.RawEvent{2020: sampleBatch()}}
	obs := &fakeObserver{}
	p := NewWithTables(src, sampleLinks(), samplePattern(t), Options{
		Normalize: normalizeOpts(t),
		Sinks:     []Sink{&fakeSink{name: "good"}, &fakeSink{name: "bad", err: errors.New("boom")}},
		Observer:  obs,
	})

	_, err := p.Run(context.Background(), 2019, 2020)
	require.NoError(t, err)

	require.Len(t, obs.years, 2)
	assert.Equal(t, 0, obs.years[2019].Fetched)
	assert.Equal(t, 4, obs.years[2020].Filtered)
	assert.Equal(t, map[string]int{"good": 1, "bad": 1}, obs.sinks)
	assert.Equal(t, 1, obs.errs)
}
