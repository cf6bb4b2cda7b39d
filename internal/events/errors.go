package events

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/eventsync/internal/events/keyword"
	"github.com/sells-group/eventsync/internal/events/resolve"
)

var (
	// ErrConfig marks a missing, unreadable, or empty keyword source.
	ErrConfig = keyword.ErrConfig

	// ErrLinkTableUnavailable marks reference tables that could not be
	// queried or returned no rows.
	ErrLinkTableUnavailable = resolve.ErrLinkTableUnavailable

	// ErrFetch marks a failed yearly warehouse query. It never escapes the
	// fetcher; the year is processed as an empty batch.
	ErrFetch = eris.New("events: fetch failed")

	// ErrPersistence marks a failed write of one year's output. The year's
	// in-memory result is kept and later years still run.
	ErrPersistence = eris.New("events: persistence failed")
)
