package domains

import (
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// schedulerColumns returns the scheduler table as of the given patch level.
func schedulerColumns(patch int) []schema.ColumnSpec {
	cols := []schema.ColumnSpec{
		id("id"),
		str("fire_function", 128),
		nullable(typed("fire_params", schema.TypeBinary)),
		withDefault(typed("run_once", schema.TypeBool), "0"),
	}

	if patch >= 2 {
		cols = append(cols, withDefault(str("status", 16), "'pending'"))
	}

	if patch >= 3 {
		cols = append(cols, withDefault(typed("run_every", schema.TypeInt), "0"))
	}

	if patch >= 4 {
		cols = append(cols, withDefault(typed("schedule_for", schema.TypeBigInt), "0"))
	}

	return cols
}

func schedulerTable(patch int) schema.TableSpec {
	indexes := []schema.IndexSpec{primary("id")}
	if patch >= 2 {
		indexes = append(indexes, index("status"))
	}

	return table("scheduler", schedulerColumns(patch), indexes...)
}

func schedulerUnits() []migration.Unit {
	return []migration.Unit{
		unit(Scheduler, "0.0.1", "create_scheduler", schedulerTable(1)),
		unit(Scheduler, "0.0.2", "add_status", schedulerTable(2)),
		unit(Scheduler, "0.0.3", "add_run_every", schedulerTable(3)),
		unit(Scheduler, "0.0.4", "add_schedule_for", schedulerTable(4)),
	}
}
