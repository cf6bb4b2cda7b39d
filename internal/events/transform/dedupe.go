package transform

import "github.com/sells-group/eventsync/internal/model"

// Dedupe keeps the first row of every (entity, event text) group, in the
// order of the input. Given Normalize's sort, that is the earliest
// occurrence. Dedupe is idempotent.
func Dedupe(events []model.Event) []model.Event {
	seen := make(map[model.EventKey]struct{}, len(events))
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		k := e.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		e.CountryCode = ""
		out = append(out, e)
	}
	return out
}
