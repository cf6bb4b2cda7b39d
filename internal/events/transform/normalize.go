// Package transform normalizes and deduplicates yearly news-event batches.
package transform

import (
	"regexp"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // America/New_York must resolve on hosts without zoneinfo

	"github.com/rotisserie/eris"

	"github.com/sells-group/eventsync/internal/model"
)

// Default selection rules for normalized events.
const (
	DefaultTimezone     = "America/New_York"
	DefaultCountryCode  = "US"
	DefaultMinRelevance = 75.0
)

var (
	// nonWordRe matches runs of characters that are neither word characters nor whitespace.
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{M}\p{Nd}_\s\p{Z}]+`)
	spaceRe   = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Options configures Normalize.
type Options struct {
	Location     *time.Location // local zone for timestamps
	CountryCode  string         // only rows from this country are kept
	MinRelevance float64        // rows below this relevance are dropped
}

// DefaultOptions returns the US-Eastern, US-only, relevance >= 75 rules.
func DefaultOptions() (Options, error) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return Options{}, eris.Wrapf(err, "transform: load location %s", DefaultTimezone)
	}
	return Options{
		Location:     loc,
		CountryCode:  DefaultCountryCode,
		MinRelevance: DefaultMinRelevance,
	}, nil
}

// Normalize converts timestamps to naive local time, keeps rows that pass the
// country and relevance rules, cleans headlines, and sorts the result by
// (entity, timestamp, story). The sort order is what Dedupe relies on.
func Normalize(raw []model.RawEvent, opts Options) []model.Event {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	out := make([]model.Event, 0, len(raw))
	for _, r := range raw {
		if r.CountryCode != opts.CountryCode || r.Relevance < opts.MinRelevance {
			continue
		}

		headline := ""
		if r.Headline != nil {
			headline = *r.Headline
		}

		out = append(out, model.Event{
			EntityID:    r.EntityID,
			EntityName:  r.EntityName,
			StoryID:     r.StoryID,
			Timestamp:   localTimestamp(r.TimestampUTC, loc),
			EventType:   r.EventType,
			Relevance:   r.Relevance,
			FactLevel:   r.FactLevel,
			NewsType:    r.NewsType,
			Headline:    NormalizeHeadline(headline),
			EventText:   r.EventText,
			CountryCode: r.CountryCode,
		})
	}

	SortEvents(out)
	return out
}

// LocalNaive reinterprets a UTC instant as wall-clock time in loc and drops
// the zone. The result carries time.UTC as a placeholder location, so it
// formats and compares as the local wall clock. Zero times stay zero.
func LocalNaive(ts time.Time, loc *time.Location) time.Time {
	if ts.IsZero() {
		return ts
	}
	l := ts.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

func localTimestamp(ts *time.Time, loc *time.Location) *time.Time {
	if ts == nil {
		return nil
	}
	l := LocalNaive(*ts, loc)
	return &l
}

// NormalizeHeadline lower-cases s, turns punctuation into spaces, collapses
// whitespace runs, and trims the ends.
func NormalizeHeadline(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SortEvents stably orders events by entity, then timestamp, then story id.
// Null timestamps sort first within an entity.
func SortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if c := compareTimestamps(a.Timestamp, b.Timestamp); c != 0 {
			return c < 0
		}
		return a.StoryID < b.StoryID
	})
}

func compareTimestamps(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
