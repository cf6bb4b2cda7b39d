// Package runlog keeps a local SQLite history of per-year pipeline runs.
package runlog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/eventsync/internal/model"
)

// Status of a year run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusEmpty    Status = "empty"
	StatusFailed   Status = "failed"
)

// Entry is one row of year_runs.
type Entry struct {
	ID          string            `json:"id"`
	Year        int               `json:"year"`
	Status      Status            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Counts      model.StageCounts `json:"counts"`
	Error       string            `json:"error,omitempty"`
}

// Log records year runs in SQLite.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the run log at path and applies its schema.
func Open(ctx context.Context, path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "runlog: create dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}

	l := &Log{db: db}
	if err := l.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return l, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS year_runs (
	id           TEXT PRIMARY KEY,
	year         INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	fetched      INTEGER NOT NULL DEFAULT 0,
	normalized   INTEGER NOT NULL DEFAULT 0,
	deduplicated INTEGER NOT NULL DEFAULT 0,
	enriched     INTEGER NOT NULL DEFAULT 0,
	filtered     INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_year_runs_year ON year_runs(year);
CREATE INDEX IF NOT EXISTS idx_year_runs_started_at ON year_runs(started_at);
`

// Migrate creates the year_runs table if needed.
func (l *Log) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "runlog: migrate")
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Start records the beginning of a year run and returns its ID.
func (l *Log) Start(ctx context.Context, year int) (string, error) {
	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO year_runs (id, year, status, started_at) VALUES (?, ?, ?, ?)`,
		id, year, string(StatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start year %d", year)
	}
	return id, nil
}

// Complete marks a run finished with its stage counts. A run that produced no
// filtered rows is recorded as empty.
func (l *Log) Complete(ctx context.Context, runID string, counts model.StageCounts) error {
	status := StatusComplete
	if counts.Filtered == 0 {
		status = StatusEmpty
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE year_runs
		 SET status = ?, completed_at = ?, fetched = ?, normalized = ?, deduplicated = ?, enriched = ?, filtered = ?
		 WHERE id = ?`,
		string(status), time.Now().UTC(),
		counts.Fetched, counts.Normalized, counts.Deduplicated, counts.Enriched, counts.Filtered,
		runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// Fail marks a run failed with an error message.
func (l *Log) Fail(ctx context.Context, runID string, msg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE year_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(StatusFailed), time.Now().UTC(), msg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// List returns the most recent runs first. A limit <= 0 returns 100 rows.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, year, status, started_at, completed_at,
		        fetched, normalized, deduplicated, enriched, filtered, error
		 FROM year_runs ORDER BY started_at DESC, year DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			status      string
			completedAt sql.NullTime
			errMsg      sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Year, &status, &e.StartedAt, &completedAt,
			&e.Counts.Fetched, &e.Counts.Normalized, &e.Counts.Deduplicated,
			&e.Counts.Enriched, &e.Counts.Filtered, &errMsg); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.Status = Status(status)
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: list iterate")
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run not found: %s", runID)
	}
	return nil
}
