// Package sink persists yearly filtered events: Parquet files on disk and an
// optional Postgres output table.
package sink

import (
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/sells-group/eventsync/internal/model"
)

// DefaultSource names the event source in output file names.
const DefaultSource = "ravenpack_dj"

// Columns lists the output columns in table order.
var Columns = []string{
	"rp_entity_id", "entity_name", "rp_story_id", "timestamp", "type",
	"relevance", "fact_level", "news_type", "headline", "event_text",
	"cusip", "gvkey", "tic",
}

// localTimestamp is a nanosecond TIMESTAMP that is not adjusted to UTC:
// readers see the stored value as a wall-clock time with no zone.
type localTimestamp struct{ parquet.Type }

func (localTimestamp) LogicalType() *format.LogicalType {
	return &format.LogicalType{Timestamp: &format.TimestampType{
		IsAdjustedToUTC: false,
		Unit:            parquet.Nanosecond.TimeUnit(),
	}}
}

func (t localTimestamp) String() string { return t.LogicalType().Timestamp.String() }

// eventSchema is the Parquet layout of eventRow. Columns are stored in name
// order.
var eventSchema = parquet.NewSchema("ravenpack_event", parquet.Group{
	"rp_entity_id": parquet.String(),
	"entity_name":  parquet.String(),
	"rp_story_id":  parquet.String(),
	"timestamp":    parquet.Optional(parquet.Leaf(localTimestamp{parquet.Timestamp(parquet.Nanosecond).Type()})),
	"type":         parquet.String(),
	"relevance":    parquet.Leaf(parquet.DoubleType),
	"fact_level":   parquet.String(),
	"news_type":    parquet.String(),
	"headline":     parquet.String(),
	"event_text":   parquet.String(),
	"cusip":        parquet.Optional(parquet.String()),
	"gvkey":        parquet.Optional(parquet.String()),
	"tic":          parquet.Optional(parquet.String()),
})

// eventRow is the flat on-disk shape of an enriched event.
type eventRow struct {
	EntityID   string     `parquet:"rp_entity_id"`
	EntityName string     `parquet:"entity_name"`
	StoryID    string     `parquet:"rp_story_id"`
	Timestamp  *time.Time `parquet:"timestamp,optional"` // nil when the source timestamp is NULL
	EventType  string     `parquet:"type"`
	Relevance  float64    `parquet:"relevance"`
	FactLevel  string     `parquet:"fact_level"`
	NewsType   string     `parquet:"news_type"`
	Headline   string     `parquet:"headline"`
	EventText  string     `parquet:"event_text"`
	CUSIP      *string    `parquet:"cusip,optional"`
	GVKEY      *string    `parquet:"gvkey,optional"`
	Ticker     *string    `parquet:"tic,optional"`
}

func toRow(e model.EnrichedEvent) eventRow {
	return eventRow{
		EntityID:   e.EntityID,
		EntityName: e.EntityName,
		StoryID:    e.StoryID,
		Timestamp:  e.Timestamp,
		EventType:  e.EventType,
		Relevance:  e.Relevance,
		FactLevel:  e.FactLevel,
		NewsType:   e.NewsType,
		Headline:   e.Headline,
		EventText:  e.EventText,
		CUSIP:      e.CUSIP,
		GVKEY:      e.GVKEY,
		Ticker:     e.Ticker,
	}
}

// values returns the row in Columns order, for COPY.
func (r eventRow) values() []any {
	return []any{
		r.EntityID, r.EntityName, r.StoryID, r.Timestamp, r.EventType,
		r.Relevance, r.FactLevel, r.NewsType, r.Headline, r.EventText,
		r.CUSIP, r.GVKEY, r.Ticker,
	}
}
