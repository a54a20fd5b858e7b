// Package validator compares declared table shapes against what a connector
// reports. It is pure and safe for concurrent use.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// Kind classifies a single difference between declared and actual state.
type Kind int

const (
	// TableMissing means a declared table does not exist.
	TableMissing Kind = iota
	// ColumnMissing means a declared column does not exist.
	ColumnMissing
	// ColumnMismatch means a column exists with a different physical type.
	ColumnMismatch
	// IndexMissing means no index matches a declared one by name or shape.
	IndexMissing
	// IndexMismatch means an index exists under the declared name, or as the
	// primary key, with a different kind or column list.
	IndexMismatch
	// TablePresent means a table scheduled for removal still exists.
	TablePresent
)

func (k Kind) String() string {
	switch k {
	case TableMissing:
		return "table missing"
	case ColumnMissing:
		return "column missing"
	case ColumnMismatch:
		return "column type mismatch"
	case IndexMissing:
		return "index missing"
	case IndexMismatch:
		return "index mismatch"
	case TablePresent:
		return "table not removed"
	default:
		return "unknown"
	}
}

// Finding is one difference. Name is the column or index concerned; Actual
// is the name of the existing index for IndexMismatch.
type Finding struct {
	Kind   Kind
	Table  string
	Name   string
	Want   string
	Got    string
	Actual string
}

func (f Finding) String() string {
	var b strings.Builder

	b.WriteString(f.Kind.String())
	b.WriteString(": ")
	b.WriteString(f.Table)

	if f.Name != "" {
		b.WriteString(".")
		b.WriteString(f.Name)
	}

	if f.Want != "" || f.Got != "" {
		fmt.Fprintf(&b, " (want %s, got %s)", f.Want, orNone(f.Got))
	}

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}

// Diff lists every difference found. An empty Diff means a match.
type Diff []Finding

// Empty reports whether nothing differs.
func (d Diff) Empty() bool { return len(d) == 0 }

func (d Diff) String() string {
	lines := make([]string, len(d))
	for i, f := range d {
		lines[i] = f.String()
	}

	return strings.Join(lines, "; ")
}

// Validator compares declarations using a connector's type spelling.
type Validator struct {
	types connector.TypeMapper
}

// New creates a Validator.
func New(types connector.TypeMapper) *Validator {
	return &Validator{types: types}
}

// Validate compares one declared table with its snapshot. A nil snapshot
// means the table is absent. Undeclared columns and indexes are ignored,
// as are defaults and nullability.
func (v *Validator) Validate(spec schema.TableSpec, actual *schema.TableSnapshot) Diff {
	if actual == nil {
		return Diff{{Kind: TableMissing, Table: spec.Name}}
	}

	var diff Diff

	for _, col := range spec.Columns {
		got, ok := actual.Column(col.Name)
		want := v.types.ColumnType(col)

		switch {
		case !ok:
			diff = append(diff, Finding{Kind: ColumnMissing, Table: spec.Name, Name: col.Name, Want: want})
		case !strings.EqualFold(got.DataType, want):
			diff = append(diff, Finding{Kind: ColumnMismatch, Table: spec.Name, Name: col.Name, Want: want, Got: got.DataType})
		}
	}

	for _, idx := range spec.Indexes {
		idx.Name = spec.IndexName(idx)
		if f, ok := compareIndex(spec.Name, idx, actual); !ok {
			diff = append(diff, f)
		}
	}

	return diff
}

func compareIndex(table string, want schema.IndexSpec, actual *schema.TableSnapshot) (Finding, bool) {
	if want.Kind == schema.IndexPrimary {
		for _, got := range actual.Indexes {
			if got.Kind != schema.IndexPrimary {
				continue
			}

			if slices.Equal(got.Columns, want.Columns) {
				return Finding{}, true
			}

			return mismatch(table, want, got), false
		}

		return Finding{Kind: IndexMissing, Table: table, Name: want.Name, Want: describe(want)}, false
	}

	if got, ok := actual.Index(want.Name); ok {
		if got.SameShape(want) {
			return Finding{}, true
		}

		return mismatch(table, want, got), false
	}

	for _, got := range actual.Indexes {
		if got.SameShape(want) {
			return Finding{}, true
		}
	}

	return Finding{Kind: IndexMissing, Table: table, Name: want.Name, Want: describe(want)}, false
}

func mismatch(table string, want, got schema.IndexSpec) Finding {
	return Finding{
		Kind:   IndexMismatch,
		Table:  table,
		Name:   want.Name,
		Want:   describe(want),
		Got:    describe(got),
		Actual: got.Name,
	}
}

func describe(idx schema.IndexSpec) string {
	return idx.Kind.String() + "(" + strings.Join(idx.Columns, ",") + ")"
}

// ValidateUnit validates every table a unit declares and reports removal
// targets that still exist. Snapshots are keyed by table name; a missing
// key means the table is absent.
func (v *Validator) ValidateUnit(u *migration.Unit, snapshots map[string]*schema.TableSnapshot) Diff {
	var diff Diff

	for _, spec := range u.Tables {
		diff = append(diff, v.Validate(spec, snapshots[spec.Name])...)
	}

	for _, name := range u.Removals {
		if snapshots[name] != nil {
			diff = append(diff, Finding{Kind: TablePresent, Table: name})
		}
	}

	return diff
}
