package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns        = 5
	defaultApplicationName = "domain-migrate"
)

// PoolOption tunes the connection pool.
type PoolOption func(*pgxpool.Config)

// WithMaxConns sets the pool size. Each domain migrating in parallel holds
// one connection for its advisory lock, so the pool must outgrow parallelism.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithApplicationName labels sessions in pg_stat_activity.
func WithApplicationName(name string) PoolOption {
	return func(c *pgxpool.Config) {
		c.ConnConfig.RuntimeParams["application_name"] = name
	}
}

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, applies options over a conservative
// default pool size, and pings the database to verify connectivity.
func NewPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = defaultApplicationName
	}

	for _, opt := range opts {
		opt(poolCfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}
