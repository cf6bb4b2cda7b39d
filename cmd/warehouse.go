package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// warehousePool connects to the source warehouse (warehouse.database_url).
func warehousePool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Warehouse.DatabaseURL == "" {
		return nil, eris.New("warehouse: no database_url configured (set warehouse.database_url)")
	}
	return connect(ctx, "warehouse", cfg.Warehouse.DatabaseURL)
}

// outputPool connects to the optional output database (output.database_url).
// It returns nil, nil when no output database is configured.
func outputPool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Output.DatabaseURL == "" {
		return nil, nil
	}
	return connect(ctx, "output", cfg.Output.DatabaseURL)
}

func connect(ctx context.Context, name, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create connection pool", name)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(err, "%s: ping database", name)
	}

	zap.L().Info("connected to database", zap.String("database", name))
	return pool, nil
}
