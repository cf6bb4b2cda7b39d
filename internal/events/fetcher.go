package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/eventsync/internal/db"
	"github.com/sells-group/eventsync/internal/model"
)

// Default location of the yearly event tables on the warehouse.
const (
	DefaultEventsSchema      = "ravenpack_dj"
	DefaultEventsTablePrefix = "rpa_djpr_equities_"
)

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Schema           string // e.g. "ravenpack_dj"
	TablePrefix      string // yearly tables are <prefix><year>
	QueriesPerMinute int    // 0 disables pacing
}

// Fetcher reads one year of raw events from the warehouse.
type Fetcher struct {
	pool        db.Pool
	schema      string
	tablePrefix string
	limiter     *rate.Limiter
}

// NewFetcher creates a Fetcher on an externally owned pool.
func NewFetcher(pool db.Pool, opts FetcherOptions) *Fetcher {
	if opts.Schema == "" {
		opts.Schema = DefaultEventsSchema
	}
	if opts.TablePrefix == "" {
		opts.TablePrefix = DefaultEventsTablePrefix
	}

	f := &Fetcher{pool: pool, schema: opts.Schema, tablePrefix: opts.TablePrefix}
	if opts.QueriesPerMinute > 0 {
		f.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.QueriesPerMinute)), 1)
	}
	return f
}

// Table returns the schema-qualified table holding year's events.
func (f *Fetcher) Table(year int) pgx.Identifier {
	return pgx.Identifier{f.schema, fmt.Sprintf("%s%d", f.tablePrefix, year)}
}

// Fetch returns every raw event of year. Failures are logged and yield an
// empty batch so that one bad year cannot stop a multi-year run.
func (f *Fetcher) Fetch(ctx context.Context, year int) []model.RawEvent {
	log := zap.L().With(zap.String("component", "events.fetcher"), zap.Int("year", year))

	log.Info("fetching events", zap.String("table", f.Table(year).Sanitize()))
	start := time.Now()
	rows, err := f.fetch(ctx, year)
	if err != nil {
		log.Error("fetch failed, continuing with empty batch",
			zap.Error(eris.Wrapf(ErrFetch, "year %d: %v", year, err)),
		)
		return nil
	}

	log.Info("fetched events", zap.Int("rows", len(rows)), zap.Duration("elapsed", time.Since(start)))
	return rows
}

func (f *Fetcher) fetch(ctx context.Context, year int) ([]model.RawEvent, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: wait for query slot")
		}
	}

	rows, err := f.pool.Query(ctx, EventsSQL(f.Table(year)))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: query %s", f.Table(year).Sanitize())
	}
	defer rows.Close()

	var out []model.RawEvent
	for rows.Next() {
		r, err := scanRawEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "fetcher: read rows")
	}
	return out, nil
}

// EventsSQL selects the raw event columns from a yearly table. Relevance is
// cast so integer and numeric columns scan alike.
func EventsSQL(table pgx.Identifier) string {
	return `SELECT rp_story_id, rp_entity_id, entity_name, timestamp_utc, type,
		relevance::float8 AS relevance, fact_level, news_type, headline, event_text, country_code
		FROM ` + table.Sanitize()
}

// scanRawEvent reads one row in EventsSQL column order. NULL text columns
// become "", a NULL relevance becomes 0, and a NULL headline stays nil.
func scanRawEvent(rows pgx.Rows) (model.RawEvent, error) {
	var (
		storyID, entityID, entityName, eventType pgtype.Text
		factLevel, newsType, headline, eventText pgtype.Text
		countryCode                              pgtype.Text
		relevance                                pgtype.Float8
		ts                                       *time.Time
	)
	if err := rows.Scan(&storyID, &entityID, &entityName, &ts, &eventType,
		&relevance, &factLevel, &newsType, &headline, &eventText, &countryCode); err != nil {
		return model.RawEvent{}, eris.Wrap(err, "fetcher: scan row")
	}

	r := model.RawEvent{
		EntityID:    entityID.String,
		StoryID:     storyID.String,
		EntityName:  entityName.String,
		EventType:   eventType.String,
		Relevance:   relevance.Float64,
		FactLevel:   factLevel.String,
		NewsType:    newsType.String,
		EventText:   eventText.String,
		CountryCode: countryCode.String,
	}
	if ts != nil {
		utc := ts.UTC()
		r.TimestampUTC = &utc
	}
	if headline.Valid {
		h := headline.String
		r.Headline = &h
	}
	return r, nil
}
