// Package postgres implements the connector on PostgreSQL through pgx.
// Every change runs in a transaction with local lock and statement
// timeouts, except concurrent index builds.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
	"github.com/aqasim81/domain-migration-engine/internal/tracker"
)

const columnsSQL = `SELECT a.attname,
       format_type(a.atttypid, a.atttypmod),
       NOT a.attnotnull,
       COALESCE(pg_get_expr(d.adbin, d.adrelid), '')
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE c.relname = $1 AND c.relkind = 'r' AND n.nspname = current_schema()
  AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

const indexesSQL = `SELECT i.relname,
       ix.indisprimary,
       ix.indisunique,
       ARRAY(SELECT a.attname
             FROM unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
             JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
             ORDER BY k.ord)
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE t.relname = $1 AND n.nspname = current_schema()
ORDER BY i.relname`

// queryer is satisfied by *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connector drives schema changes on PostgreSQL.
type Connector struct {
	pool              *pgxpool.Pool
	versions          *tracker.Tracker
	lockTimeout       time.Duration
	statementTimeout  time.Duration
	concurrentIndexes bool
}

var _ connector.Connector = (*Connector)(nil)

var _ connector.TableReplacer = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Connector) { c.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(c *Connector) { c.statementTimeout = d }
}

// WithConcurrentIndexes builds secondary indexes with CREATE INDEX CONCURRENTLY.
func WithConcurrentIndexes(b bool) Option {
	return func(c *Connector) { c.concurrentIndexes = b }
}

// New creates a Connector and ensures the domain_versions table exists.
func New(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Connector, error) {
	c := &Connector{pool: pool, versions: tracker.New(pool)}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.versions.EnsureTable(ctx); err != nil {
		return nil, connector.Wrap("create version table", connector.VersionTable, err)
	}

	return c, nil
}

// Tracker exposes the version store for status reporting.
func (c *Connector) Tracker() *tracker.Tracker {
	return c.versions
}

// ColumnType implements connector.TypeMapper.
func (c *Connector) ColumnType(col schema.ColumnSpec) string {
	return ColumnType(col)
}

// ConcurrentIndexes reports whether secondary indexes are built concurrently.
func (c *Connector) ConcurrentIndexes() bool {
	return c.concurrentIndexes
}

// TableExists reports whether a table is present in the current schema.
func (c *Connector) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool

	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = current_schema() AND tablename = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, connector.Wrap("table exists", name, err)
	}

	return exists, nil
}

// ListTables returns tables of the current schema, excluding domain_versions.
func (c *Connector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT tablename FROM pg_tables
		 WHERE schemaname = current_schema() AND tablename <> $1
		 ORDER BY tablename`,
		connector.VersionTable,
	)
	if err != nil {
		return nil, connector.Wrap("list tables", "", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, connector.Wrap("list tables", "", err)
	}

	return names, nil
}

// DescribeTable reports the table's columns and indexes, or nil when absent.
func (c *Connector) DescribeTable(ctx context.Context, name string) (*schema.TableSnapshot, error) {
	snap, err := describe(ctx, c.pool, name)
	if err != nil {
		return nil, connector.Wrap("describe table", name, err)
	}

	return snap, nil
}

func describe(ctx context.Context, q queryer, name string) (*schema.TableSnapshot, error) {
	rows, err := q.Query(ctx, columnsSQL, name)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}

	columns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.ColumnSnapshot, error) {
		var col schema.ColumnSnapshot
		err := row.Scan(&col.Name, &col.DataType, &col.Nullable, &col.Default)

		return col, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning columns: %w", err)
	}

	if len(columns) == 0 {
		return nil, nil //nolint:nilnil // nil snapshot means the table is absent
	}

	rows, err = q.Query(ctx, indexesSQL, name)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}

	indexes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.IndexSpec, error) {
		var (
			idx             schema.IndexSpec
			primary, unique bool
		)

		if err := row.Scan(&idx.Name, &primary, &unique, &idx.Columns); err != nil {
			return idx, err
		}

		switch {
		case primary:
			idx.Kind = schema.IndexPrimary
		case unique:
			idx.Kind = schema.IndexUnique
		default:
			idx.Kind = schema.IndexPlain
		}

		return idx, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning indexes: %w", err)
	}

	return &schema.TableSnapshot{Name: name, Columns: columns, Indexes: indexes}, nil
}

// CreateTable creates the table with its primary key and secondary indexes.
func (c *Connector) CreateTable(ctx context.Context, spec schema.TableSpec) error {
	return connector.Wrap("create table", spec.Name, c.run(ctx, CreateTableSQL(spec)...))
}

// AddColumn adds a column; PostgreSQL fills existing rows with the default.
func (c *Connector) AddColumn(ctx context.Context, table string, col schema.ColumnSpec) error {
	return connector.Wrap("add column", table, c.run(ctx, AddColumnSQL(table, col)))
}

// AlterColumn sets a column's type, nullability and default.
func (c *Connector) AlterColumn(ctx context.Context, table string, col schema.ColumnSpec) error {
	return connector.Wrap("alter column", table, c.run(ctx, AlterColumnSQL(table, col)))
}

// RenameColumn renames a column.
func (c *Connector) RenameColumn(ctx context.Context, table, from, to string) error {
	return connector.Wrap("rename column", table, c.run(ctx, RenameColumnSQL(table, from, to)))
}

// CreateIndex adds a primary key constraint or builds a secondary index.
func (c *Connector) CreateIndex(ctx context.Context, table string, idx schema.IndexSpec) error {
	return connector.Wrap("create index", table, c.run(ctx, CreateIndexSQL(table, idx, c.concurrentIndexes)))
}

// DropIndex removes an index, dropping the constraint when it backs the primary key.
func (c *Connector) DropIndex(ctx context.Context, table, name string) error {
	snap, err := describe(ctx, c.pool, table)
	if err != nil {
		return connector.Wrap("drop index", table, err)
	}

	idx := schema.IndexSpec{Name: name}
	if snap != nil {
		if found, ok := snap.Index(name); ok {
			idx = found
		}
	}

	return connector.Wrap("drop index", table, c.run(ctx, DropIndexSQL(table, idx)))
}

// CopyTableToTemp copies structure, rows and indexes to the temp name in one
// transaction. Copied index names carry the temp suffix.
func (c *Connector) CopyTableToTemp(ctx context.Context, table string) (string, error) {
	temp := connector.TempName(table)

	err := c.inTx(ctx, func(tx pgx.Tx) error {
		snap, err := describe(ctx, tx, table)
		if err != nil {
			return err
		}

		if snap == nil {
			return fmt.Errorf("table %s does not exist", table)
		}

		stmts := []string{
			fmt.Sprintf("CREATE TABLE %s (LIKE %s INCLUDING DEFAULTS)", QuoteIdent(temp), QuoteIdent(table)),
			fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", QuoteIdent(temp), QuoteIdent(table)),
		}

		for _, idx := range snap.Indexes {
			idx.Name += connector.TempSuffix
			stmts = append(stmts, CreateIndexSQL(temp, idx, false))
		}

		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("executing %q: %w", stmt, err)
			}
		}

		return nil
	})
	if err != nil {
		return "", connector.Wrap("copy table", table, err)
	}

	return temp, nil
}

// RenameTable renames a table.
func (c *Connector) RenameTable(ctx context.Context, from, to string) error {
	return connector.Wrap("rename table", from, c.run(ctx, RenameTableSQL(from, to)))
}

// DropTable drops a table if it exists.
func (c *Connector) DropTable(ctx context.Context, name string) error {
	return connector.Wrap("drop table", name, c.run(ctx, DropTableSQL(name)))
}

// ReplaceTable swaps a backup copy over the live table in one transaction and
// gives its indexes back their original names.
func (c *Connector) ReplaceTable(ctx context.Context, temp, live string) error {
	err := c.inTx(ctx, func(tx pgx.Tx) error {
		snap, err := describe(ctx, tx, temp)
		if err != nil {
			return err
		}

		if snap == nil {
			return fmt.Errorf("backup table %s does not exist", temp)
		}

		stmts := []string{DropTableSQL(live), RenameTableSQL(temp, live)}

		for _, idx := range snap.Indexes {
			if !connector.IsTempName(idx.Name) {
				continue
			}

			base := connector.BaseName(idx.Name)
			if idx.Kind == schema.IndexPrimary {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s",
					QuoteIdent(live), QuoteIdent(idx.Name), QuoteIdent(base)))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER INDEX %s RENAME TO %s", QuoteIdent(idx.Name), QuoteIdent(base)))
			}
		}

		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("executing %q: %w", stmt, err)
			}
		}

		return nil
	})

	return connector.Wrap("replace table", live, err)
}

// GetDomainVersion reads a domain's recorded version.
func (c *Connector) GetDomainVersion(ctx context.Context, domain string) (migration.Version, bool, error) {
	v, ok, err := c.versions.Get(ctx, domain)
	if err != nil {
		return migration.Version{}, false, connector.Wrap("get domain version", domain, err)
	}

	return v, ok, nil
}

// SetDomainVersion records a domain's version. It never lowers it.
func (c *Connector) SetDomainVersion(ctx context.Context, domain string, v migration.Version) error {
	return connector.Wrap("set domain version", domain, c.versions.Set(ctx, domain, v))
}
