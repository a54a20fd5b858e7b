// Package plan turns a unit and the described state of its tables into the
// ordered list of connector calls that brings storage to the declared shape.
package plan

import (
	"context"
	"fmt"
	"slices"

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
	"github.com/aqasim81/domain-migration-engine/internal/validator"
)

// Phase is the runner state a step executes in.
type Phase int

const (
	// Renaming reconciles legacy column names.
	Renaming Phase = iota
	// Applying creates and alters declared structure.
	Applying
	// Removing drops tables the unit retires.
	Removing
)

func (p Phase) String() string {
	switch p {
	case Renaming:
		return "renaming"
	case Applying:
		return "applying"
	case Removing:
		return "removing"
	default:
		return "unknown"
	}
}

// Action is the connector primitive a step invokes.
type Action int

// Actions, in the order Build emits them within a table.
const (
	RenameColumn Action = iota
	CreateTable
	AddColumn
	AlterColumn
	DropIndex
	CreateIndex
	DropTable
)

var actionNames = map[Action]string{ //nolint:gochecknoglobals // lookup table
	RenameColumn: "rename column",
	CreateTable:  "create table",
	AddColumn:    "add column",
	AlterColumn:  "alter column",
	DropIndex:    "drop index",
	CreateIndex:  "create index",
	DropTable:    "drop table",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}

	return "unknown"
}

// Step is one connector call. Only the fields its Action needs are set.
type Step struct {
	Phase  Phase
	Action Action
	Table  string

	Spec   schema.TableSpec  // CreateTable
	Column schema.ColumnSpec // AddColumn, AlterColumn
	Index  schema.IndexSpec  // CreateIndex, DropIndex (Name only)
	From   string            // RenameColumn
	To     string            // RenameColumn
}

func (s Step) String() string {
	switch s.Action {
	case RenameColumn:
		return fmt.Sprintf("rename column %s.%s to %s", s.Table, s.From, s.To)
	case CreateTable:
		return fmt.Sprintf("create table %s (%d columns, %d indexes)", s.Table, len(s.Spec.Columns), len(s.Spec.Indexes))
	case AddColumn, AlterColumn:
		return fmt.Sprintf("%s %s.%s %s", s.Action, s.Table, s.Column.Name, s.Column.Type)
	case CreateIndex:
		return fmt.Sprintf("create %s %s on %s", s.Index.Kind, s.Index.Name, s.Table)
	case DropIndex:
		return fmt.Sprintf("drop index %s on %s", s.Index.Name, s.Table)
	case DropTable:
		return "drop table " + s.Table
	default:
		return s.Action.String()
	}
}

// Apply performs the step on the connector.
func (s Step) Apply(ctx context.Context, conn connector.Connector) error {
	switch s.Action {
	case RenameColumn:
		return conn.RenameColumn(ctx, s.Table, s.From, s.To)
	case CreateTable:
		return conn.CreateTable(ctx, s.Spec)
	case AddColumn:
		return conn.AddColumn(ctx, s.Table, s.Column)
	case AlterColumn:
		return conn.AlterColumn(ctx, s.Table, s.Column)
	case DropIndex:
		return conn.DropIndex(ctx, s.Table, s.Index.Name)
	case CreateIndex:
		return conn.CreateIndex(ctx, s.Table, s.Index)
	case DropTable:
		return conn.DropTable(ctx, s.Table)
	default:
		return fmt.Errorf("unknown plan action %d", s.Action)
	}
}

// Build computes the steps for a unit. Snapshots are keyed by table name and
// are not modified; renames are simulated on copies so later steps see the
// renamed columns. Undeclared columns and indexes never produce a step.
func Build(u *migration.Unit, snapshots map[string]*schema.TableSnapshot, types connector.TypeMapper) []Step {
	state := make(map[string]*schema.TableSnapshot, len(snapshots))
	for name, snap := range snapshots {
		state[name] = cloneSnapshot(snap)
	}

	var steps []Step

	for _, r := range u.Renames {
		snap := state[r.Table]
		if snap == nil {
			continue
		}

		if _, hasOld := snap.Column(r.From); !hasOld {
			continue
		}

		if _, hasNew := snap.Column(r.To); hasNew {
			continue
		}

		renameInSnapshot(snap, r.From, r.To)
		steps = append(steps, Step{Phase: Renaming, Action: RenameColumn, Table: r.Table, From: r.From, To: r.To})
	}

	v := validator.New(types)

	for _, spec := range u.Tables {
		spec = spec.Normalize()
		steps = append(steps, applySteps(spec, v.Validate(spec, state[spec.Name]))...)
	}

	for _, name := range u.Removals {
		if state[name] != nil {
			steps = append(steps, Step{Phase: Removing, Action: DropTable, Table: name})
		}
	}

	return steps
}

func applySteps(spec schema.TableSpec, diff validator.Diff) []Step {
	var steps []Step

	for _, f := range diff {
		switch f.Kind {
		case validator.TableMissing:
			steps = append(steps, Step{Phase: Applying, Action: CreateTable, Table: spec.Name, Spec: spec})
		case validator.ColumnMissing, validator.ColumnMismatch:
			col, _ := spec.Column(f.Name)

			action := AddColumn
			if f.Kind == validator.ColumnMismatch {
				action = AlterColumn
			}

			steps = append(steps, Step{Phase: Applying, Action: action, Table: spec.Name, Column: col})
		case validator.IndexMissing, validator.IndexMismatch:
			idx := declaredIndex(spec, f.Name)

			if f.Kind == validator.IndexMismatch {
				steps = append(steps, Step{
					Phase: Applying, Action: DropIndex, Table: spec.Name,
					Index: schema.IndexSpec{Name: f.Actual},
				})
			}

			steps = append(steps, Step{Phase: Applying, Action: CreateIndex, Table: spec.Name, Index: idx})
		}
	}

	return steps
}

func declaredIndex(spec schema.TableSpec, name string) schema.IndexSpec {
	for _, idx := range spec.Indexes {
		if idx.Name == name {
			return idx
		}
	}

	return schema.IndexSpec{Name: name}
}

// Tables returns the distinct tables the steps touch, in step order.
func Tables(steps []Step) []string {
	var out []string

	for _, s := range steps {
		if !slices.Contains(out, s.Table) {
			out = append(out, s.Table)
		}
	}

	return out
}

func cloneSnapshot(s *schema.TableSnapshot) *schema.TableSnapshot {
	if s == nil {
		return nil
	}

	out := &schema.TableSnapshot{
		Name:    s.Name,
		Columns: slices.Clone(s.Columns),
		Indexes: make([]schema.IndexSpec, len(s.Indexes)),
	}

	for i, idx := range s.Indexes {
		out.Indexes[i] = schema.IndexSpec{Name: idx.Name, Kind: idx.Kind, Columns: slices.Clone(idx.Columns)}
	}

	return out
}

func renameInSnapshot(s *schema.TableSnapshot, from, to string) {
	for i := range s.Columns {
		if s.Columns[i].Name == from {
			s.Columns[i].Name = to
		}
	}

	for _, idx := range s.Indexes {
		for j, col := range idx.Columns {
			if col == from {
				idx.Columns[j] = to
			}
		}
	}
}

// Project returns the state the snapshots would reach after the steps run,
// without touching storage. It lets a plan for several pending units be
// built before any of them is applied.
func Project(
	snapshots map[string]*schema.TableSnapshot, steps []Step, types connector.TypeMapper,
) map[string]*schema.TableSnapshot {
	out := make(map[string]*schema.TableSnapshot, len(snapshots))
	for name, snap := range snapshots {
		out[name] = cloneSnapshot(snap)
	}

	for _, s := range steps {
		snap := out[s.Table]

		switch s.Action {
		case CreateTable:
			out[s.Table] = snapshotOf(s.Spec, types)
		case DropTable:
			out[s.Table] = nil
		case RenameColumn:
			if snap != nil {
				renameInSnapshot(snap, s.From, s.To)
			}
		case AddColumn:
			if snap != nil {
				snap.Columns = append(snap.Columns, columnOf(s.Column, types))
			}
		case AlterColumn:
			if snap != nil {
				for i := range snap.Columns {
					if snap.Columns[i].Name == s.Column.Name {
						snap.Columns[i] = columnOf(s.Column, types)
					}
				}
			}
		case CreateIndex:
			if snap != nil {
				snap.Indexes = append(snap.Indexes, schema.IndexSpec{
					Name: s.Index.Name, Kind: s.Index.Kind, Columns: slices.Clone(s.Index.Columns),
				})
			}
		case DropIndex:
			if snap != nil {
				snap.Indexes = slices.DeleteFunc(snap.Indexes, func(i schema.IndexSpec) bool { return i.Name == s.Index.Name })
			}
		}
	}

	return out
}

func snapshotOf(spec schema.TableSpec, types connector.TypeMapper) *schema.TableSnapshot {
	spec = spec.Normalize()

	snap := &schema.TableSnapshot{Name: spec.Name, Indexes: spec.Indexes}
	for _, col := range spec.Columns {
		snap.Columns = append(snap.Columns, columnOf(col, types))
	}

	return snap
}

func columnOf(col schema.ColumnSpec, types connector.TypeMapper) schema.ColumnSnapshot {
	return schema.ColumnSnapshot{Name: col.Name, DataType: types.ColumnType(col), Nullable: col.Nullable, Default: col.Default}
}
