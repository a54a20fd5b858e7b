package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// ColumnType spells a declared type the way format_type reports it.
// PostgreSQL has no one-byte integer, so tinyint and bool use smallint.
func ColumnType(col schema.ColumnSpec) string {
	switch col.Type {
	case schema.TypeTinyInt, schema.TypeSmallInt, schema.TypeBool:
		return "smallint"
	case schema.TypeInt:
		return "integer"
	case schema.TypeBigInt:
		return "bigint"
	case schema.TypeString:
		return fmt.Sprintf("character varying(%d)", col.Length)
	case schema.TypeBinary:
		return "bytea"
	case schema.TypeTimestamp:
		return "timestamp with time zone"
	case schema.TypeIdentifier:
		return fmt.Sprintf("character(%d)", col.Length)
	default:
		return "unknown"
	}
}

// QuoteIdent quotes a table, column or index name.
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}

	return strings.Join(quoted, ", ")
}

// ColumnDef renders a column definition for CREATE TABLE and ADD COLUMN.
func ColumnDef(col schema.ColumnSpec) string {
	def := QuoteIdent(col.Name) + " " + ColumnType(col)

	if !col.Nullable {
		def += " NOT NULL"
	}

	if col.Default != "" {
		def += " DEFAULT " + col.Default
	}

	return def
}

// CreateTableSQL renders CREATE TABLE with the primary key inline, followed
// by one CREATE INDEX per secondary index.
func CreateTableSQL(spec schema.TableSpec) []string {
	spec = spec.Normalize()

	defs := make([]string, 0, len(spec.Columns)+1)
	for _, col := range spec.Columns {
		defs = append(defs, ColumnDef(col))
	}

	if pk, ok := spec.Primary(); ok {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", QuoteIdent(pk.Name), quoteList(pk.Columns)))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(spec.Name), strings.Join(defs, ", "))}

	for _, idx := range spec.Indexes {
		if idx.Kind != schema.IndexPrimary {
			stmts = append(stmts, CreateIndexSQL(spec.Name, idx, false))
		}
	}

	return stmts
}

// AddColumnSQL renders ALTER TABLE ... ADD COLUMN. Existing rows take the default.
func AddColumnSQL(table string, col schema.ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteIdent(table), ColumnDef(col))
}

// AlterColumnSQL renders one ALTER TABLE that sets type, nullability and default.
func AlterColumnSQL(table string, col schema.ColumnSpec) string {
	name := QuoteIdent(col.Name)
	typ := ColumnType(col)

	cmds := []string{fmt.Sprintf("ALTER COLUMN %s TYPE %s USING %s::%s", name, typ, name, typ)}

	if col.Nullable {
		cmds = append(cmds, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", name))
	} else {
		cmds = append(cmds, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", name))
	}

	if col.Default != "" {
		cmds = append(cmds, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", name, col.Default))
	} else {
		cmds = append(cmds, fmt.Sprintf("ALTER COLUMN %s DROP DEFAULT", name))
	}

	return fmt.Sprintf("ALTER TABLE %s %s", QuoteIdent(table), strings.Join(cmds, ", "))
}

// RenameColumnSQL renders ALTER TABLE ... RENAME COLUMN.
func RenameColumnSQL(table, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", QuoteIdent(table), QuoteIdent(from), QuoteIdent(to))
}

// CreateIndexSQL renders an index or primary key. Primary keys are table
// constraints and are never built concurrently.
func CreateIndexSQL(table string, idx schema.IndexSpec, concurrent bool) string {
	if idx.Kind == schema.IndexPrimary {
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
			QuoteIdent(table), QuoteIdent(idx.Name), quoteList(idx.Columns))
	}

	unique := ""
	if idx.Kind == schema.IndexUnique {
		unique = "UNIQUE "
	}

	conc := ""
	if concurrent {
		conc = "CONCURRENTLY "
	}

	return fmt.Sprintf("CREATE %sINDEX %s%s ON %s (%s)",
		unique, conc, QuoteIdent(idx.Name), QuoteIdent(table), quoteList(idx.Columns))
}

// DropIndexSQL renders the statement removing an index or primary key.
func DropIndexSQL(table string, idx schema.IndexSpec) string {
	if idx.Kind == schema.IndexPrimary {
		return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", QuoteIdent(table), QuoteIdent(idx.Name))
	}

	return "DROP INDEX " + QuoteIdent(idx.Name)
}

// RenameTableSQL renders ALTER TABLE ... RENAME TO.
func RenameTableSQL(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", QuoteIdent(from), QuoteIdent(to))
}

// DropTableSQL renders an idempotent DROP TABLE.
func DropTableSQL(name string) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(name)
}
