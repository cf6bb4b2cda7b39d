package sink

import (
	"bytes"
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"
	"text/template"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/eventsync/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ledgerTable records applied migrations per output table, inside the output
// schema.
const ledgerTable = "eventsync_migrations"

// migrationTarget is the output table a migration run works on. Migration
// files are text/template sources rendered against it.
type migrationTarget struct {
	schema string
	table  string
}

// Schema returns the quoted schema name.
func (t migrationTarget) Schema() string { return pgx.Identifier{t.schema}.Sanitize() }

// Table returns the quoted schema-qualified table name.
func (t migrationTarget) Table() string { return pgx.Identifier{t.schema, t.table}.Sanitize() }

// Index returns the quoted name of the table's index with the given suffix.
func (t migrationTarget) Index(suffix string) string {
	return pgx.Identifier{"idx_" + t.table + "_" + suffix}.Sanitize()
}

func (t migrationTarget) ledger() string {
	return pgx.Identifier{t.schema, ledgerTable}.Sanitize()
}

func (t migrationTarget) lockKey() string { return t.schema + "." + t.table }

type migration struct {
	name string
	sql  string
}

// renderMigrations returns every embedded migration rendered for t, ordered
// by file name.
func renderMigrations(t migrationTarget) ([]migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "sink: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		tmpl, err := template.ParseFS(migrationFS, path.Join("migrations", e.Name()))
		if err != nil {
			return nil, eris.Wrapf(err, "sink: parse migration %s", e.Name())
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, t); err != nil {
			return nil, eris.Wrapf(err, "sink: render migration %s", e.Name())
		}
		out = append(out, migration{name: e.Name(), sql: buf.String()})
	}
	return out, nil
}

// Migrate creates or upgrades the output table schema.table. Each embedded
// migration runs at most once per table, in its own transaction. Empty names
// fall back to DefaultSchema and DefaultTable.
func Migrate(ctx context.Context, pool db.Pool, schema, table string) error {
	if schema == "" {
		schema = DefaultSchema
	}
	if table == "" {
		table = DefaultTable
	}
	target := migrationTarget{schema: schema, table: table}
	log := zap.L().With(zap.String("component", "sink.migrate"), zap.String("table", target.lockKey()))

	migrations, err := renderMigrations(target)
	if err != nil {
		return err
	}

	// Runs against the same output table serialize here.
	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", target.lockKey()); err != nil {
		return eris.Wrapf(err, "sink: lock migrations for %s", target.lockKey())
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock(hashtext($1))", target.lockKey()); err != nil {
			log.Warn("sink: release migration lock", zap.Error(err))
		}
	}()

	if err := ensureLedger(ctx, pool, target); err != nil {
		return err
	}
	done, err := appliedMigrations(ctx, pool, target)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if done[m.name] {
			continue
		}
		log.Info("applying migration", zap.String("file", m.name))
		if err := applyMigration(ctx, pool, target, m); err != nil {
			return err
		}
	}
	return nil
}

func ensureLedger(ctx context.Context, pool db.Pool, t migrationTarget) error {
	sql := `CREATE SCHEMA IF NOT EXISTS ` + t.Schema() + `;
CREATE TABLE IF NOT EXISTS ` + t.ledger() + ` (
    table_name TEXT NOT NULL,
    filename   TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (table_name, filename)
);`
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "sink: create migration ledger in %s", t.schema)
	}
	return nil
}

func appliedMigrations(ctx context.Context, pool db.Pool, t migrationTarget) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM "+t.ledger()+" WHERE table_name = $1", t.table)
	if err != nil {
		return nil, eris.Wrap(err, "sink: query applied migrations")
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sink: scan migration row")
		}
		done[name] = true
	}
	return done, rows.Err()
}

// applyMigration runs m and records it in one transaction.
func applyMigration(ctx context.Context, pool db.Pool, t migrationTarget, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "sink: begin migration %s", m.name)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return eris.Wrapf(err, "sink: apply migration %s", m.name)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO "+t.ledger()+" (table_name, filename) VALUES ($1, $2)",
		t.table, m.name,
	); err != nil {
		return eris.Wrapf(err, "sink: record migration %s", m.name)
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "sink: commit migration %s", m.name)
	}
	return nil
}
