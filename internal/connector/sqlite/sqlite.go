// Package sqlite implements the connector on SQLite through modernc.org/sqlite.
// Changes SQLite cannot express with ALTER TABLE (type changes, primary
// keys, non-constant defaults) are made by rebuilding the table inside
// a transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

const createVersionTableSQL = `CREATE TABLE IF NOT EXISTS domain_versions (
    domain      TEXT PRIMARY KEY,
    major       INTEGER NOT NULL,
    minor       INTEGER NOT NULL,
    patch       INTEGER NOT NULL,
    applied_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Connector drives schema changes on one SQLite database.
type Connector struct {
	db *sql.DB
}

var _ connector.Connector = (*Connector)(nil)

var _ connector.TableReplacer = (*Connector)(nil)

// Open opens the database at dsn (":memory:" for a private in-memory
// database) with a single connection and prepares the version table.
func Open(ctx context.Context, dsn string) (*Connector, error) {
	if dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}

		dsn += sep + "_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection serializes DDL and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	c, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

// New wraps an open database and creates the version table if needed.
func New(ctx context.Context, db *sql.DB) (*Connector, error) {
	if _, err := db.ExecContext(ctx, createVersionTableSQL); err != nil {
		return nil, connector.Wrap("create version table", connector.VersionTable, err)
	}

	return &Connector{db: db}, nil
}

// Close closes the underlying database.
func (c *Connector) Close() error {
	return c.db.Close()
}

// DB exposes the underlying handle for row-level access in tests and tools.
func (c *Connector) DB() *sql.DB {
	return c.db
}

// ColumnType returns the declared type SQLite echoes back in PRAGMA table_info.
func (c *Connector) ColumnType(col schema.ColumnSpec) string {
	switch col.Type {
	case schema.TypeTinyInt:
		return "TINYINT"
	case schema.TypeSmallInt:
		return "SMALLINT"
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeBigInt:
		return "BIGINT"
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", col.Length)
	case schema.TypeBinary:
		return "BLOB"
	case schema.TypeTimestamp:
		return "TIMESTAMP"
	case schema.TypeIdentifier:
		return fmt.Sprintf("CHAR(%d)", col.Length)
	case schema.TypeBool:
		return "TINYINT(1)"
	default:
		return "UNKNOWN"
	}
}

// TableExists reports whether a table is present.
func (c *Connector) TableExists(ctx context.Context, name string) (bool, error) {
	var n int

	err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, connector.Wrap("table exists", name, err)
	}

	return n > 0, nil
}

// ListTables returns user tables in sorted order, excluding the version table.
func (c *Connector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> ?
		 ORDER BY name`, connector.VersionTable,
	)
	if err != nil {
		return nil, connector.Wrap("list tables", "", err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, connector.Wrap("list tables", "", err)
		}

		out = append(out, name)
	}

	if err := rows.Err(); err != nil {
		return nil, connector.Wrap("list tables", "", err)
	}

	return out, nil
}

// DescribeTable reports columns, primary key and secondary indexes, or nil.
func (c *Connector) DescribeTable(ctx context.Context, name string) (*schema.TableSnapshot, error) {
	lay, err := readLayout(ctx, c.db, name)
	if err != nil {
		return nil, connector.Wrap("describe table", name, err)
	}

	if lay == nil {
		return nil, nil //nolint:nilnil // nil snapshot means the table is absent
	}

	snap := &schema.TableSnapshot{Name: name}

	for _, cd := range lay.cols {
		snap.Columns = append(snap.Columns, schema.ColumnSnapshot{
			Name:     cd.name,
			DataType: cd.typ,
			Nullable: !cd.notNull,
			Default:  cd.dflt,
		})
	}

	if pk := lay.primaryColumns(); len(pk) > 0 {
		snap.Indexes = append(snap.Indexes, schema.IndexSpec{Name: primaryName(name), Kind: schema.IndexPrimary, Columns: pk})
	}

	snap.Indexes = append(snap.Indexes, lay.indexes...)

	return snap, nil
}

// CreateTable creates the table and its secondary indexes in one transaction.
func (c *Connector) CreateTable(ctx context.Context, spec schema.TableSpec) error {
	spec = spec.Normalize()

	lay := &layout{}
	for _, col := range spec.Columns {
		lay.cols = append(lay.cols, c.columnDef(col))
	}

	if pk, ok := spec.Primary(); ok {
		lay.setPrimary(pk.Columns)
	}

	for _, idx := range spec.Indexes {
		if idx.Kind != schema.IndexPrimary {
			lay.indexes = append(lay.indexes, idx)
		}
	}

	err := inTx(ctx, c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createTableSQL(spec.Name, lay.cols)); err != nil {
			return err
		}

		return createIndexes(ctx, tx, spec.Name, lay.indexes)
	})

	return connector.Wrap("create table", spec.Name, err)
}

// AddColumn adds a column. Existing rows take the declared default.
func (c *Connector) AddColumn(ctx context.Context, table string, col schema.ColumnSpec) error {
	cd := c.columnDef(col)

	if canAlterAdd(cd) {
		_, err := c.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), cd.sql()))

		return connector.Wrap("add column", table, err)
	}

	err := c.rebuild(ctx, table, func(lay *layout) error {
		if lay.column(col.Name) >= 0 {
			return fmt.Errorf("column %s already exists", col.Name)
		}

		lay.cols = append(lay.cols, cd)

		return nil
	})

	return connector.Wrap("add column", table, err)
}

// AlterColumn changes a column's declared type, nullability and default.
func (c *Connector) AlterColumn(ctx context.Context, table string, col schema.ColumnSpec) error {
	err := c.rebuild(ctx, table, func(lay *layout) error {
		i := lay.column(col.Name)
		if i < 0 {
			return fmt.Errorf("column %s does not exist", col.Name)
		}

		cd := c.columnDef(col)
		cd.pk = lay.cols[i].pk
		lay.cols[i] = cd

		return nil
	})

	return connector.Wrap("alter column", table, err)
}

// RenameColumn renames a column; indexes follow automatically.
func (c *Connector) RenameColumn(ctx context.Context, table, from, to string) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		quoteIdent(table), quoteIdent(from), quoteIdent(to)))

	return connector.Wrap("rename column", table, err)
}

// CreateIndex creates a secondary index, or rebuilds the table to add a primary key.
func (c *Connector) CreateIndex(ctx context.Context, table string, idx schema.IndexSpec) error {
	if idx.Kind != schema.IndexPrimary {
		_, err := c.db.ExecContext(ctx, createIndexSQL(table, idx))

		return connector.Wrap("create index", table, err)
	}

	err := c.rebuild(ctx, table, func(lay *layout) error {
		if len(lay.primaryColumns()) > 0 {
			return errors.New("table already has a primary key")
		}

		for _, col := range idx.Columns {
			if lay.column(col) < 0 {
				return fmt.Errorf("column %s does not exist", col)
			}
		}

		lay.setPrimary(idx.Columns)

		return nil
	})

	return connector.Wrap("create index", table, err)
}

// DropIndex drops a secondary index, or rebuilds the table without its primary key.
func (c *Connector) DropIndex(ctx context.Context, table, name string) error {
	if name != primaryName(table) {
		_, err := c.db.ExecContext(ctx, "DROP INDEX "+quoteIdent(name))

		return connector.Wrap("drop index", table, err)
	}

	err := c.rebuild(ctx, table, func(lay *layout) error {
		lay.setPrimary(nil)

		return nil
	})

	return connector.Wrap("drop index", table, err)
}

// CopyTableToTemp copies structure, rows and indexes to the temp name.
// Copied indexes carry the temp suffix because SQLite index names are global.
func (c *Connector) CopyTableToTemp(ctx context.Context, table string) (string, error) {
	temp := connector.TempName(table)

	err := inTx(ctx, c.db, func(tx *sql.Tx) error {
		lay, err := readLayout(ctx, tx, table)
		if err != nil {
			return err
		}

		if lay == nil {
			return errors.New("table does not exist")
		}

		if _, err := tx.ExecContext(ctx, createTableSQL(temp, lay.cols)); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s",
			quoteIdent(temp), quoteIdent(table))); err != nil {
			return err
		}

		return createIndexes(ctx, tx, temp, suffixed(lay.indexes))
	})
	if err != nil {
		return "", connector.Wrap("copy table", table, err)
	}

	return temp, nil
}

// RenameTable renames a table.
func (c *Connector) RenameTable(ctx context.Context, from, to string) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(from), quoteIdent(to)))

	return connector.Wrap("rename table", from, err)
}

// DropTable drops a table if it exists.
func (c *Connector) DropTable(ctx context.Context, name string) error {
	_, err := c.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name))

	return connector.Wrap("drop table", name, err)
}

// ReplaceTable swaps a backup copy over the live table in one transaction
// and restores the copy's index names.
func (c *Connector) ReplaceTable(ctx context.Context, temp, live string) error {
	err := inTx(ctx, c.db, func(tx *sql.Tx) error {
		lay, err := readLayout(ctx, tx, temp)
		if err != nil {
			return err
		}

		if lay == nil {
			return fmt.Errorf("backup table %s does not exist", temp)
		}

		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(live)); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(temp), quoteIdent(live))); err != nil {
			return err
		}

		for _, idx := range lay.indexes {
			if _, err := tx.ExecContext(ctx, "DROP INDEX "+quoteIdent(idx.Name)); err != nil {
				return err
			}

			idx.Name = connector.BaseName(idx.Name)
			if _, err := tx.ExecContext(ctx, createIndexSQL(live, idx)); err != nil {
				return err
			}
		}

		return nil
	})

	return connector.Wrap("replace table", live, err)
}

// GetDomainVersion reads a domain's recorded version.
func (c *Connector) GetDomainVersion(ctx context.Context, domain string) (migration.Version, bool, error) {
	var v migration.Version

	err := c.db.QueryRowContext(ctx,
		`SELECT major, minor, patch FROM domain_versions WHERE domain = ?`, domain,
	).Scan(&v.Major, &v.Minor, &v.Patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return migration.Version{}, false, nil
		}

		return migration.Version{}, false, connector.Wrap("get domain version", domain, err)
	}

	return v, true, nil
}

// SetDomainVersion upserts a domain's version row. It never lowers the version.
func (c *Connector) SetDomainVersion(ctx context.Context, domain string, v migration.Version) error {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO domain_versions (domain, major, minor, patch)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (domain) DO UPDATE SET
		     major = excluded.major,
		     minor = excluded.minor,
		     patch = excluded.patch,
		     applied_at = CURRENT_TIMESTAMP
		 WHERE (major, minor, patch) <= (excluded.major, excluded.minor, excluded.patch)`,
		domain, v.Major, v.Minor, v.Patch,
	)
	if err != nil {
		return connector.Wrap("set domain version", domain, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return connector.Wrap("set domain version", domain, connector.ErrVersionRegression)
	}

	return nil
}

func (c *Connector) columnDef(col schema.ColumnSpec) colDef {
	return colDef{name: col.Name, typ: c.ColumnType(col), notNull: !col.Nullable, dflt: col.Default}
}

func primaryName(table string) string {
	return table + "_pkey"
}

func suffixed(indexes []schema.IndexSpec) []schema.IndexSpec {
	out := make([]schema.IndexSpec, len(indexes))
	for i, idx := range indexes {
		out[i] = schema.IndexSpec{Name: idx.Name + connector.TempSuffix, Kind: idx.Kind, Columns: idx.Columns}
	}

	return out
}

// canAlterAdd reports whether ALTER TABLE ADD COLUMN accepts the column.
// SQLite rejects non-constant defaults and NOT NULL without a default.
func canAlterAdd(cd colDef) bool {
	switch strings.ToUpper(cd.dflt) {
	case "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME":
		return false
	}

	if strings.HasPrefix(cd.dflt, "(") {
		return false
	}

	return !cd.notNull || cd.dflt != ""
}
