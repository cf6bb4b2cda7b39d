package keyword

import "github.com/sells-group/eventsync/internal/model"

// Filter keeps the rows whose headline contains a match for p. Only the
// headline is consulted.
func Filter(rows []model.EnrichedEvent, p *Pattern) []model.EnrichedEvent {
	out := make([]model.EnrichedEvent, 0, len(rows))
	for _, r := range rows {
		if p.Match(r.Headline) {
			out = append(out, r)
		}
	}
	return out
}
