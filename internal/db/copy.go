package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyRows loads rows into target with COPY. An empty rows slice is a no-op.
func CopyRows(ctx context.Context, c Copier, target pgx.Identifier, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := c.CopyFrom(ctx, target, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", strings.Join(target, "."))
	}
	return n, nil
}

// PartitionConfig describes a slice of a table keyed by one column, e.g. all
// rows of events.filtered_events for one year.
type PartitionConfig struct {
	Schema  string   // e.g. "events"
	Table   string   // e.g. "filtered_events"
	KeyCol  string   // partition column, e.g. "year"
	Columns []string // columns being copied, in row order
}

// ReplacePartition swaps the rows of one partition in a single transaction:
//  1. DELETE every row whose KeyCol equals key
//  2. COPY the new rows in
//
// Re-running the same partition is therefore idempotent. An empty rows slice
// still clears the partition.
func ReplacePartition(ctx context.Context, pool Pool, cfg PartitionConfig, key any, rows [][]any) (int64, error) {
	if cfg.Table == "" || cfg.KeyCol == "" {
		return 0, eris.New("db: replace partition: table and key column are required")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace partition: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace partition: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	target := qualify(cfg.Schema, cfg.Table)
	deleteSQL := "DELETE FROM " + target.Sanitize() + " WHERE " + pgx.Identifier{cfg.KeyCol}.Sanitize() + " = $1"
	if _, err := tx.Exec(ctx, deleteSQL, key); err != nil {
		return 0, eris.Wrapf(err, "db: replace partition: delete %s = %v", cfg.KeyCol, key)
	}

	n, err := CopyRows(ctx, tx, target, cfg.Columns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace partition: commit tx")
	}
	return n, nil
}

// qualify builds an identifier for an optionally schema-qualified table.
func qualify(schema, table string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}
