package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// colDef is a column as PRAGMA table_info reports it.
type colDef struct {
	name    string
	typ     string
	notNull bool
	dflt    string
	pk      int // 1-based position in the primary key, 0 when not part of it
}

func (cd colDef) sql() string {
	var b strings.Builder

	b.WriteString(quoteIdent(cd.name))
	b.WriteString(" ")
	b.WriteString(cd.typ)

	if cd.notNull {
		b.WriteString(" NOT NULL")
	}

	if cd.dflt != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(cd.dflt)
	}

	return b.String()
}

// layout is everything needed to recreate a table.
type layout struct {
	cols    []colDef
	indexes []schema.IndexSpec // secondary indexes only
}

func (l *layout) column(name string) int {
	for i := range l.cols {
		if l.cols[i].name == name {
			return i
		}
	}

	return -1
}

func (l *layout) primaryColumns() []string {
	var pk []colDef

	for _, cd := range l.cols {
		if cd.pk > 0 {
			pk = append(pk, cd)
		}
	}

	sort.Slice(pk, func(i, j int) bool { return pk[i].pk < pk[j].pk })

	out := make([]string, 0, len(pk))
	for _, cd := range pk {
		out = append(out, cd.name)
	}

	return out
}

func (l *layout) setPrimary(columns []string) {
	for i := range l.cols {
		l.cols[i].pk = 0
	}

	for pos, name := range columns {
		if i := l.column(name); i >= 0 {
			l.cols[i].pk = pos + 1
		}
	}
}

// readLayout returns nil when the table does not exist.
func readLayout(ctx context.Context, q querier, table string) (*layout, error) {
	cols, err := tableInfo(ctx, q, table)
	if err != nil {
		return nil, err
	}

	if len(cols) == 0 {
		return nil, nil //nolint:nilnil // absent table
	}

	indexes, err := indexList(ctx, q, table)
	if err != nil {
		return nil, err
	}

	return &layout{cols: cols, indexes: indexes}, nil
}

func tableInfo(ctx context.Context, q querier, table string) ([]colDef, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var cols []colDef

	for rows.Next() {
		var (
			cid     int
			cd      colDef
			notNull int
			dflt    sql.NullString
		)

		if err := rows.Scan(&cid, &cd.name, &cd.typ, &notNull, &dflt, &cd.pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}

		cd.notNull = notNull != 0
		cd.dflt = dflt.String
		cols = append(cols, cd)
	}

	return cols, rows.Err()
}

type indexEntry struct {
	name   string
	unique bool
}

// indexList reads secondary indexes. The index list is fully drained
// before index_info is queried because the pool holds one connection.
func indexList(ctx context.Context, q querier, table string) ([]schema.IndexSpec, error) {
	entries, err := indexEntries(ctx, q, table)
	if err != nil {
		return nil, err
	}

	out := make([]schema.IndexSpec, 0, len(entries))

	for _, e := range entries {
		cols, err := indexColumns(ctx, q, e.name)
		if err != nil {
			return nil, err
		}

		kind := schema.IndexPlain
		if e.unique {
			kind = schema.IndexUnique
		}

		out = append(out, schema.IndexSpec{Name: e.name, Kind: kind, Columns: cols})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func indexEntries(ctx context.Context, q querier, table string) ([]indexEntry, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("index list: %w", err)
	}
	defer rows.Close()

	var entries []indexEntry

	for rows.Next() {
		var (
			seq     int
			e       indexEntry
			unique  int
			origin  string
			partial int
		)

		if err := rows.Scan(&seq, &e.name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}

		if origin == "pk" {
			continue
		}

		e.unique = unique != 0
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func indexColumns(ctx context.Context, q querier, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(index)))
	if err != nil {
		return nil, fmt.Errorf("index info: %w", err)
	}
	defer rows.Close()

	var cols []string

	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)

		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("scan index column: %w", err)
		}

		cols = append(cols, name.String)
	}

	return cols, rows.Err()
}

func createTableSQL(name string, cols []colDef) string {
	defs := make([]string, 0, len(cols)+1)
	for _, cd := range cols {
		defs = append(defs, cd.sql())
	}

	l := layout{cols: cols}
	if pk := l.primaryColumns(); len(pk) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quoteList(pk)+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
}

func createIndexSQL(table string, idx schema.IndexSpec) string {
	unique := ""
	if idx.Kind == schema.IndexUnique {
		unique = "UNIQUE "
	}

	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, quoteIdent(idx.Name), quoteIdent(table), quoteList(idx.Columns))
}

func createIndexes(ctx context.Context, q querier, table string, indexes []schema.IndexSpec) error {
	for _, idx := range indexes {
		if _, err := q.ExecContext(ctx, createIndexSQL(table, idx)); err != nil {
			return fmt.Errorf("creating index %s: %w", idx.Name, err)
		}
	}

	return nil
}

// rebuild recreates a table with a changed layout, copying every column the
// old and new layouts share. The whole swap runs in one transaction.
func (c *Connector) rebuild(ctx context.Context, table string, change func(*layout) error) error {
	return inTx(ctx, c.db, func(tx *sql.Tx) error {
		lay, err := readLayout(ctx, tx, table)
		if err != nil {
			return err
		}

		if lay == nil {
			return errors.New("table does not exist")
		}

		oldNames := make(map[string]struct{}, len(lay.cols))
		for _, cd := range lay.cols {
			oldNames[cd.name] = struct{}{}
		}

		if err := change(lay); err != nil {
			return err
		}

		var shared []string

		for _, cd := range lay.cols {
			if _, ok := oldNames[cd.name]; ok {
				shared = append(shared, cd.name)
			}
		}

		tmp := table + "__rebuild"
		list := quoteList(shared)

		stmts := []string{
			createTableSQL(tmp, lay.cols),
			fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", quoteIdent(tmp), list, list, quoteIdent(table)),
			"DROP TABLE " + quoteIdent(table),
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(tmp), quoteIdent(table)),
		}

		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		return createIndexes(ctx, tx, table, lay.indexes)
	})
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback() //nolint:errcheck // rollback after commit returns ErrTxDone

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}

	return strings.Join(quoted, ", ")
}
