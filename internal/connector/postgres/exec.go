package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/parser"
)

// run executes DDL statements, choosing between transactional and
// non-transactional execution based on whether any statement is a
// CREATE INDEX CONCURRENTLY.
func (c *Connector) run(ctx context.Context, stmts ...string) error {
	concurrent, err := containsConcurrentIndex(parser.Script(stmts))
	if err != nil {
		return err
	}

	if concurrent {
		for _, stmt := range stmts {
			if err := execWithoutTransaction(ctx, c.pool, stmt); err != nil {
				return err
			}
		}

		return nil
	}

	return c.inTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("executing %q: %w", stmt, err)
			}
		}

		return nil
	})
}

// inTx runs fn in a transaction with the connector's lock and statement
// timeouts applied locally.
func (c *Connector) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return execInTransaction(ctx, c.pool, func(tx pgx.Tx) error {
		if c.lockTimeout > 0 {
			if err := setLocal(ctx, tx, "lock_timeout", c.lockTimeout); err != nil {
				return err
			}
		}

		if c.statementTimeout > 0 {
			if err := setLocal(ctx, tx, "statement_timeout", c.statementTimeout); err != nil {
				return err
			}
		}

		return fn(tx)
	})
}

// execInTransaction runs fn inside a database transaction.
// On success the transaction is committed; on error it is rolled back.
func execInTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// execWithoutTransaction executes SQL directly on the pool. Required for
// CREATE INDEX CONCURRENTLY, which cannot run inside a transaction block.
func execWithoutTransaction(ctx context.Context, pool *pgxpool.Pool, sql string) error {
	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("executing outside transaction: %w", err)
	}

	return nil
}

// setLocal sets a timeout for the rest of the transaction so a blocked DDL
// fails fast instead of queueing behind application traffic.
func setLocal(ctx context.Context, tx pgx.Tx, param string, timeout time.Duration) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL %s = '%dms'", param, timeout.Milliseconds())); err != nil {
		return fmt.Errorf("setting %s: %w", param, err)
	}

	return nil
}

// containsConcurrentIndex parses the SQL and reports whether any statement
// is a CREATE INDEX CONCURRENTLY.
func containsConcurrentIndex(sql string) (bool, error) {
	result, err := parser.Parse(sql)
	if err != nil {
		return false, fmt.Errorf("parsing SQL for concurrent index detection: %w", err)
	}

	for _, stmt := range result.Stmts {
		node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
		if !ok {
			continue
		}

		if node.IndexStmt != nil && node.IndexStmt.Concurrent {
			return true, nil
		}
	}

	return false, nil
}
