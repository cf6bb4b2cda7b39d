package resolve

import "github.com/sells-group/eventsync/internal/model"

// Enrich left-joins events to table on entity id. Events without a link keep
// nil identifiers; events with several links fan out to one row per link, in
// link order. An empty table attaches nil identifiers to every row.
func Enrich(events []model.Event, table *LinkTable) []model.EnrichedEvent {
	out := make([]model.EnrichedEvent, 0, len(events))
	if table.IsEmpty() {
		for _, e := range events {
			out = append(out, model.EnrichedEvent{Event: e})
		}
		return out
	}

	for _, e := range events {
		links := table.Lookup(e.EntityID)
		if len(links) == 0 {
			out = append(out, model.EnrichedEvent{Event: e})
			continue
		}
		for _, l := range links {
			cusip, gvkey := l.CUSIP, l.GVKEY
			out = append(out, model.EnrichedEvent{
				Event:  e,
				CUSIP:  &cusip,
				GVKEY:  &gvkey,
				Ticker: l.Ticker,
			})
		}
	}
	return out
}
