// Package memory is an in-process connector. It keeps tables as row maps,
// counts mutating calls and can inject faults, which makes it the backing
// store for dry runs and for exercising the runner's failure paths.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// Operation names used for fault injection and the call log.
const (
	OpCreateTable  = "create table"
	OpAddColumn    = "add column"
	OpAlterColumn  = "alter column"
	OpRenameColumn = "rename column"
	OpCreateIndex  = "create index"
	OpDropIndex    = "drop index"
	OpCopyTable    = "copy table"
	OpRenameTable  = "rename table"
	OpDropTable    = "drop table"
	OpReplaceTable = "replace table"
	OpSetVersion   = "set version"
)

var (
	errTableNotFound  = errors.New("table does not exist")
	errTableExists    = errors.New("table already exists")
	errColumnNotFound = errors.New("column does not exist")
	errColumnExists   = errors.New("column already exists")
	errIndexNotFound  = errors.New("index does not exist")
	errIndexExists    = errors.New("index already exists")
)

// Row is one table row; a missing key is NULL.
type Row map[string]string

type table struct {
	columns []schema.ColumnSnapshot
	indexes []schema.IndexSpec
	rows    []Row
}

func (t *table) clone() *table {
	out := &table{
		columns: slices.Clone(t.columns),
		indexes: make([]schema.IndexSpec, len(t.indexes)),
		rows:    make([]Row, len(t.rows)),
	}

	for i, idx := range t.indexes {
		out.indexes[i] = schema.IndexSpec{Name: idx.Name, Kind: idx.Kind, Columns: slices.Clone(idx.Columns)}
	}

	for i, r := range t.rows {
		out.rows[i] = maps.Clone(r)
	}

	return out
}

func (t *table) columnIndex(name string) int {
	return slices.IndexFunc(t.columns, func(c schema.ColumnSnapshot) bool { return c.Name == name })
}

func (t *table) indexIndex(name string) int {
	return slices.IndexFunc(t.indexes, func(i schema.IndexSpec) bool { return i.Name == name })
}

type fault struct {
	err    error
	ignore bool
}

// Connector is a goroutine-safe in-memory connector.
type Connector struct {
	mu        sync.Mutex
	tables    map[string]*table
	versions  map[string]migration.Version
	faults    map[string]fault
	calls     []string
	mutations int
}

var _ connector.Connector = (*Connector)(nil)

var _ connector.TableReplacer = (*Connector)(nil)

// New creates an empty in-memory store.
func New() *Connector {
	return &Connector{
		tables:   make(map[string]*table),
		versions: make(map[string]migration.Version),
		faults:   make(map[string]fault),
	}
}

// ColumnType spells declared types the way a MySQL-family engine reports them.
func (c *Connector) ColumnType(col schema.ColumnSpec) string {
	switch col.Type {
	case schema.TypeTinyInt:
		return "TINYINT"
	case schema.TypeSmallInt:
		return "SMALLINT"
	case schema.TypeInt:
		return "INT"
	case schema.TypeBigInt:
		return "BIGINT"
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", col.Length)
	case schema.TypeBinary:
		return "LONGBLOB"
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

// FailOn makes the named operation fail with err. An empty table matches any table.
func (c *Connector) FailOn(op, table string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faults[faultKey(op, table)] = fault{err: err}
}

// IgnoreOn makes the named operation report success without changing anything.
func (c *Connector) IgnoreOn(op, table string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faults[faultKey(op, table)] = fault{ignore: true}
}

// ClearFaults removes every injected fault.
func (c *Connector) ClearFaults() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faults = make(map[string]fault)
}

// Mutations returns the number of mutating calls made so far.
func (c *Connector) Mutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mutations
}

// Calls returns the log of mutating calls as "op table" strings.
func (c *Connector) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.calls)
}

// Insert appends a row to a table. Columns not declared on the table are rejected.
func (c *Connector) Insert(name string, row Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[name]
	if !ok {
		return connector.Wrap("insert", name, errTableNotFound)
	}

	for col := range row {
		if t.columnIndex(col) < 0 {
			return connector.Wrap("insert", name, fmt.Errorf("%w: %s", errColumnNotFound, col))
		}
	}

	t.rows = append(t.rows, maps.Clone(row))

	return nil
}

// Rows returns copies of a table's rows, or nil when the table is absent.
func (c *Connector) Rows(name string) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[name]
	if !ok {
		return nil
	}

	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = maps.Clone(r)
	}

	return out
}

func faultKey(op, table string) string {
	return op + "|" + table
}

// mutate records a mutating call and resolves injected faults. It reports
// skip=true when the call should succeed without effect. Callers hold c.mu.
func (c *Connector) mutate(op, table string) (skip bool, err error) {
	c.mutations++
	c.calls = append(c.calls, op+" "+table)

	f, ok := c.faults[faultKey(op, table)]
	if !ok {
		f, ok = c.faults[faultKey(op, "")]
	}

	if !ok {
		return false, nil
	}

	if f.err != nil {
		return false, connector.Wrap(op, table, f.err)
	}

	return f.ignore, nil
}

// TableExists reports whether a table is present.
func (c *Connector) TableExists(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.tables[name]

	return ok, nil
}

// DescribeTable returns a copy of the table's columns and indexes, or nil.
func (c *Connector) DescribeTable(_ context.Context, name string) (*schema.TableSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[name]
	if !ok {
		return nil, nil //nolint:nilnil // nil snapshot means the table is absent
	}

	cp := t.clone()

	return &schema.TableSnapshot{Name: name, Columns: cp.columns, Indexes: cp.indexes}, nil
}

// ListTables returns every table name in sorted order.
func (c *Connector) ListTables(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.tables))
	for name := range c.tables {
		out = append(out, name)
	}

	sort.Strings(out)

	return out, nil
}

// CreateTable creates an empty table with the declared columns and indexes.
func (c *Connector) CreateTable(_ context.Context, spec schema.TableSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpCreateTable, spec.Name); skip || err != nil {
		return err
	}

	if _, ok := c.tables[spec.Name]; ok {
		return connector.Wrap(OpCreateTable, spec.Name, errTableExists)
	}

	t := &table{}
	for _, col := range spec.Columns {
		t.columns = append(t.columns, c.snapshotColumn(col))
	}

	norm := spec.Normalize()
	t.indexes = norm.Indexes
	c.tables[spec.Name] = t

	return nil
}

func (c *Connector) snapshotColumn(col schema.ColumnSpec) schema.ColumnSnapshot {
	return schema.ColumnSnapshot{
		Name:     col.Name,
		DataType: c.ColumnType(col),
		Nullable: col.Nullable,
		Default:  col.Default,
	}
}

// AddColumn appends a column; existing rows take the column's default.
func (c *Connector) AddColumn(_ context.Context, name string, col schema.ColumnSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpAddColumn, name); skip || err != nil {
		return err
	}

	t, ok := c.tables[name]
	if !ok {
		return connector.Wrap(OpAddColumn, name, errTableNotFound)
	}

	if t.columnIndex(col.Name) >= 0 {
		return connector.Wrap(OpAddColumn, name, fmt.Errorf("%w: %s", errColumnExists, col.Name))
	}

	t.columns = append(t.columns, c.snapshotColumn(col))

	if col.Default != "" {
		value := literalValue(col.Default)
		for _, r := range t.rows {
			r[col.Name] = value
		}
	}

	return nil
}

// AlterColumn changes a column's type, nullability and default in place.
func (c *Connector) AlterColumn(_ context.Context, name string, col schema.ColumnSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpAlterColumn, name); skip || err != nil {
		return err
	}

	t, ok := c.tables[name]
	if !ok {
		return connector.Wrap(OpAlterColumn, name, errTableNotFound)
	}

	i := t.columnIndex(col.Name)
	if i < 0 {
		return connector.Wrap(OpAlterColumn, name, fmt.Errorf("%w: %s", errColumnNotFound, col.Name))
	}

	t.columns[i] = c.snapshotColumn(col)

	return nil
}

// RenameColumn renames a column and moves its values.
func (c *Connector) RenameColumn(_ context.Context, name, from, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpRenameColumn, name); skip || err != nil {
		return err
	}

	t, ok := c.tables[name]
	if !ok {
		return connector.Wrap(OpRenameColumn, name, errTableNotFound)
	}

	i := t.columnIndex(from)
	if i < 0 {
		return connector.Wrap(OpRenameColumn, name, fmt.Errorf("%w: %s", errColumnNotFound, from))
	}

	if t.columnIndex(to) >= 0 {
		return connector.Wrap(OpRenameColumn, name, fmt.Errorf("%w: %s", errColumnExists, to))
	}

	t.columns[i].Name = to

	for _, r := range t.rows {
		if v, ok := r[from]; ok {
			r[to] = v
			delete(r, from)
		}
	}

	for _, idx := range t.indexes {
		for j, col := range idx.Columns {
			if col == from {
				idx.Columns[j] = to
			}
		}
	}

	return nil
}

// CreateIndex adds an index. Its name must be resolved by the caller.
func (c *Connector) CreateIndex(_ context.Context, name string, idx schema.IndexSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpCreateIndex, name); skip || err != nil {
		return err
	}

	t, ok := c.tables[name]
	if !ok {
		return connector.Wrap(OpCreateIndex, name, errTableNotFound)
	}

	if t.indexIndex(idx.Name) >= 0 {
		return connector.Wrap(OpCreateIndex, name, fmt.Errorf("%w: %s", errIndexExists, idx.Name))
	}

	for _, col := range idx.Columns {
		if t.columnIndex(col) < 0 {
			return connector.Wrap(OpCreateIndex, name, fmt.Errorf("%w: %s", errColumnNotFound, col))
		}
	}

	if idx.Kind == schema.IndexPrimary {
		for _, existing := range t.indexes {
			if existing.Kind == schema.IndexPrimary {
				return connector.Wrap(OpCreateIndex, name, fmt.Errorf("%w: primary key %s", errIndexExists, existing.Name))
			}
		}
	}

	t.indexes = append(t.indexes, schema.IndexSpec{Name: idx.Name, Kind: idx.Kind, Columns: slices.Clone(idx.Columns)})

	return nil
}

// DropIndex removes an index by name.
func (c *Connector) DropIndex(_ context.Context, name, index string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpDropIndex, name); skip || err != nil {
		return err
	}

	t, ok := c.tables[name]
	if !ok {
		return connector.Wrap(OpDropIndex, name, errTableNotFound)
	}

	i := t.indexIndex(index)
	if i < 0 {
		return connector.Wrap(OpDropIndex, name, fmt.Errorf("%w: %s", errIndexNotFound, index))
	}

	t.indexes = slices.Delete(t.indexes, i, i+1)

	return nil
}

// CopyTableToTemp copies a table, rows included, to its temp name.
func (c *Connector) CopyTableToTemp(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	temp := connector.TempName(name)

	if skip, err := c.mutate(OpCopyTable, name); skip || err != nil {
		return temp, err
	}

	t, ok := c.tables[name]
	if !ok {
		return "", connector.Wrap(OpCopyTable, name, errTableNotFound)
	}

	if _, exists := c.tables[temp]; exists {
		return "", connector.Wrap(OpCopyTable, name, fmt.Errorf("%w: %s", errTableExists, temp))
	}

	c.tables[temp] = t.clone()

	return temp, nil
}

// RenameTable renames a table. The target name must be free.
func (c *Connector) RenameTable(_ context.Context, from, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpRenameTable, from); skip || err != nil {
		return err
	}

	t, ok := c.tables[from]
	if !ok {
		return connector.Wrap(OpRenameTable, from, errTableNotFound)
	}

	if _, exists := c.tables[to]; exists {
		return connector.Wrap(OpRenameTable, from, fmt.Errorf("%w: %s", errTableExists, to))
	}

	c.tables[to] = t
	delete(c.tables, from)

	return nil
}

// DropTable removes a table. Dropping an absent table is a no-op.
func (c *Connector) DropTable(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpDropTable, name); skip || err != nil {
		return err
	}

	delete(c.tables, name)

	return nil
}

// ReplaceTable moves temp over live in one step under the store lock.
func (c *Connector) ReplaceTable(_ context.Context, temp, live string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpReplaceTable, live); skip || err != nil {
		return err
	}

	t, ok := c.tables[temp]
	if !ok {
		return connector.Wrap(OpReplaceTable, live, fmt.Errorf("%w: %s", errTableNotFound, temp))
	}

	c.tables[live] = t
	delete(c.tables, temp)

	return nil
}

// GetDomainVersion returns the recorded version of a domain.
func (c *Connector) GetDomainVersion(_ context.Context, domain string) (migration.Version, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.versions[domain]

	return v, ok, nil
}

// SetDomainVersion records a domain's version. It never lowers the version.
func (c *Connector) SetDomainVersion(_ context.Context, domain string, v migration.Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skip, err := c.mutate(OpSetVersion, domain); skip || err != nil {
		return err
	}

	if cur, ok := c.versions[domain]; ok && v.Less(cur) {
		return connector.Wrap(OpSetVersion, domain, connector.ErrVersionRegression)
	}

	c.versions[domain] = v

	return nil
}

// literalValue turns a SQL default literal into the stored row value.
func literalValue(lit string) string {
	if len(lit) >= 2 && strings.HasPrefix(lit, "'") && strings.HasSuffix(lit, "'") {
		return strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
	}

	return lit
}
