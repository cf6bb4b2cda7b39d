package sink

import (
	"context"

	"github.com/sells-group/eventsync/internal/db"
	"github.com/sells-group/eventsync/internal/model"
)

// Default output table, created by the embedded migrations.
const (
	DefaultSchema = "events"
	DefaultTable  = "filtered_events"
)

// PostgresSink mirrors each year's rows into an output table keyed by year.
// Rewriting a year replaces its previous rows.
type PostgresSink struct {
	pool   db.Pool
	schema string
	table  string
}

// NewPostgresSink creates a sink on an already migrated pool. Empty schema or
// table fall back to events.filtered_events.
func NewPostgresSink(pool db.Pool, schema, table string) *PostgresSink {
	if schema == "" {
		schema = DefaultSchema
	}
	if table == "" {
		table = DefaultTable
	}
	return &PostgresSink{pool: pool, schema: schema, table: table}
}

// Name returns "postgres".
func (s *PostgresSink) Name() string { return "postgres" }

// Write replaces the year's partition with rows.
func (s *PostgresSink) Write(ctx context.Context, year int, rows []model.EnrichedEvent) error {
	cfg := db.PartitionConfig{
		Schema:  s.schema,
		Table:   s.table,
		KeyCol:  "year",
		Columns: append([]string{"year"}, Columns...),
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = append([]any{year}, toRow(r).values()...)
	}

	_, err := db.ReplacePartition(ctx, s.pool, cfg, year, values)
	return err
}
