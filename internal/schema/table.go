package schema

import (
	"fmt"
	"slices"
	"strings"
)

// ColumnSpec declares one column of a table.
type ColumnSpec struct {
	Name     string
	Type     LogicalType
	Length   int    // max length for TypeString, exact length for TypeIdentifier
	Nullable bool
	Default  string // SQL literal such as 0, 'pending' or CURRENT_TIMESTAMP; empty means none
}

// Validate checks the column in isolation.
func (c ColumnSpec) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: column name is empty", ErrInvalidSchema)
	}

	if c.Type == TypeUnknown || c.Type.String() == "unknown" {
		return fmt.Errorf("%w: column %s has no concrete type", ErrInvalidSchema, c.Name)
	}

	if c.Type.NeedsLength() && c.Length <= 0 {
		return fmt.Errorf("%w: column %s of type %s requires a length", ErrInvalidSchema, c.Name, c.Type)
	}

	return nil
}

// Equal reports whether two columns are declared identically.
func (c ColumnSpec) Equal(o ColumnSpec) bool {
	return c == o
}

// IndexSpec declares a primary key, unique constraint or index.
type IndexSpec struct {
	Name    string
	Kind    IndexKind
	Columns []string
}

// SameShape reports whether two indexes have the same kind and ordered columns.
func (i IndexSpec) SameShape(o IndexSpec) bool {
	return i.Kind == o.Kind && slices.Equal(i.Columns, o.Columns)
}

// TableSpec declares the shape a table must have.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	Indexes []IndexSpec
}

// NewTable builds a validated TableSpec with default index names filled in.
func NewTable(name string, columns []ColumnSpec, indexes []IndexSpec) (TableSpec, error) {
	t := TableSpec{Name: name, Columns: columns, Indexes: indexes}
	if err := t.Validate(); err != nil {
		return TableSpec{}, err
	}

	return t.Normalize(), nil
}

// Validate checks the table declaration for structural consistency.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: table name is empty", ErrInvalidSchema)
	}

	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %s declares no columns", ErrInvalidSchema, t.Name)
	}

	seen := make(map[string]struct{}, len(t.Columns))

	for _, c := range t.Columns {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}

		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: table %s declares column %s twice", ErrInvalidSchema, t.Name, c.Name)
		}

		seen[c.Name] = struct{}{}
	}

	return t.validateIndexes(seen)
}

func (t TableSpec) validateIndexes(columns map[string]struct{}) error {
	primaries := 0
	names := make(map[string]struct{}, len(t.Indexes))

	for _, idx := range t.Indexes {
		if len(idx.Columns) == 0 {
			return fmt.Errorf("%w: table %s has an index with no columns", ErrInvalidSchema, t.Name)
		}

		for _, col := range idx.Columns {
			if _, ok := columns[col]; !ok {
				return fmt.Errorf("%w: table %s index references unknown column %s", ErrInvalidSchema, t.Name, col)
			}
		}

		if idx.Kind == IndexPrimary {
			primaries++
		}

		name := t.IndexName(idx)
		if _, dup := names[name]; dup {
			return fmt.Errorf("%w: table %s declares index %s twice", ErrInvalidSchema, t.Name, name)
		}

		names[name] = struct{}{}
	}

	if primaries > 1 {
		return fmt.Errorf("%w: table %s declares %d primary indexes", ErrInvalidSchema, t.Name, primaries)
	}

	return nil
}

// IndexName returns the index's declared name, or the deterministic default
// derived from the table name, kind and columns.
func (t TableSpec) IndexName(idx IndexSpec) string {
	if idx.Name != "" {
		return idx.Name
	}

	switch idx.Kind {
	case IndexPrimary:
		return t.Name + "_pkey"
	case IndexUnique:
		return "uq_" + t.Name + "_" + strings.Join(idx.Columns, "_")
	default:
		return "idx_" + t.Name + "_" + strings.Join(idx.Columns, "_")
	}
}

// Normalize returns a deep copy with every index name resolved.
func (t TableSpec) Normalize() TableSpec {
	out := t.Clone()
	for i := range out.Indexes {
		out.Indexes[i].Name = t.IndexName(out.Indexes[i])
	}

	return out
}

// Clone returns a deep copy of the table declaration.
func (t TableSpec) Clone() TableSpec {
	out := TableSpec{
		Name:    t.Name,
		Columns: slices.Clone(t.Columns),
		Indexes: make([]IndexSpec, len(t.Indexes)),
	}

	for i, idx := range t.Indexes {
		out.Indexes[i] = IndexSpec{Name: idx.Name, Kind: idx.Kind, Columns: slices.Clone(idx.Columns)}
	}

	return out
}

// Column looks up a declared column by name.
func (t TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}

	return ColumnSpec{}, false
}

// Primary returns the table's primary index, if declared.
func (t TableSpec) Primary() (IndexSpec, bool) {
	for _, idx := range t.Indexes {
		if idx.Kind == IndexPrimary {
			return idx, true
		}
	}

	return IndexSpec{}, false
}
