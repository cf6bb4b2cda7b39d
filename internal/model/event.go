package model

import "time"

// RawEvent is one row of a yearly news-event table as returned by the warehouse.
type RawEvent struct {
	EntityID     string     `json:"rp_entity_id"`
	StoryID      string     `json:"rp_story_id"`
	EntityName   string     `json:"entity_name"`
	TimestampUTC *time.Time `json:"timestamp_utc"` // nil when the warehouse column is NULL
	EventType    string     `json:"type"`
	Relevance    float64    `json:"relevance"`
	FactLevel    string     `json:"fact_level"`
	NewsType     string     `json:"news_type"`
	Headline     *string    `json:"headline,omitempty"` // nil when the warehouse column is NULL
	EventText    string     `json:"event_text"`
	CountryCode  string     `json:"country_code"`
}

// Event is a normalized event row. Timestamp holds US-Eastern wall-clock time
// with no zone attached (it is tagged UTC so it round-trips as a naive value),
// or nil when the source timestamp is NULL.
type Event struct {
	EntityID    string     `json:"rp_entity_id"`
	EntityName  string     `json:"entity_name"`
	StoryID     string     `json:"rp_story_id"`
	Timestamp   *time.Time `json:"timestamp"`
	EventType   string     `json:"type"`
	Relevance   float64    `json:"relevance"`
	FactLevel   string     `json:"fact_level"`
	NewsType    string     `json:"news_type"`
	Headline    string     `json:"headline"`
	EventText   string     `json:"event_text"`
	CountryCode string     `json:"-"`
}

// EventKey identifies semantically identical events for deduplication.
type EventKey struct {
	EntityID  string
	EventText string
}

// Key returns the deduplication key of the event.
func (e Event) Key() EventKey {
	return EventKey{EntityID: e.EntityID, EventText: e.EventText}
}

// EnrichedEvent is an Event with the company identifiers attached.
// The identifier fields are nil when no link exists for the entity.
type EnrichedEvent struct {
	Event
	CUSIP  *string `json:"cusip"`
	GVKEY  *string `json:"gvkey"`
	Ticker *string `json:"tic"`
}
