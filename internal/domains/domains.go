// Package domains holds the compiled-in schema history of every data domain.
// Adding a version means appending a unit to the domain's list; the registry
// rejects duplicate versions at start-up.
package domains

import (
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// Domain names.
const (
	Asset        = "Asset"
	Estate       = "Estate"
	Scheduler    = "Scheduler"
	Stats        = "Stats"
	UserAccounts = "UserAccounts"
)

// All returns every compiled-in unit.
func All() []migration.Unit {
	var out []migration.Unit

	for _, units := range [][]migration.Unit{
		assetUnits(),
		estateUnits(),
		schedulerUnits(),
		statsUnits(),
		userAccountUnits(),
	} {
		out = append(out, units...)
	}

	return out
}

// Register adds every compiled-in unit to the registry.
func Register(reg *migration.Registry) error {
	return reg.Register(All()...)
}

func unit(domain, version, name string, tables ...schema.TableSpec) migration.Unit {
	return migration.Unit{
		Domain:  domain,
		Version: migration.MustParseVersion(version),
		Name:    name,
		Tables:  tables,
	}
}

func table(name string, columns []schema.ColumnSpec, indexes ...schema.IndexSpec) schema.TableSpec {
	return schema.TableSpec{Name: name, Columns: columns, Indexes: indexes}
}

func primary(columns ...string) schema.IndexSpec {
	return schema.IndexSpec{Kind: schema.IndexPrimary, Columns: columns}
}

func unique(columns ...string) schema.IndexSpec {
	return schema.IndexSpec{Kind: schema.IndexUnique, Columns: columns}
}

func index(columns ...string) schema.IndexSpec {
	return schema.IndexSpec{Kind: schema.IndexPlain, Columns: columns}
}

func id(name string) schema.ColumnSpec {
	return schema.ColumnSpec{Name: name, Type: schema.TypeIdentifier, Length: 36}
}

func str(name string, length int) schema.ColumnSpec {
	return schema.ColumnSpec{Name: name, Type: schema.TypeString, Length: length}
}

func typed(name string, t schema.LogicalType) schema.ColumnSpec {
	return schema.ColumnSpec{Name: name, Type: t}
}

func nullable(c schema.ColumnSpec) schema.ColumnSpec {
	c.Nullable = true

	return c
}

func withDefault(c schema.ColumnSpec, literal string) schema.ColumnSpec {
	c.Default = literal

	return c
}

func created() schema.ColumnSpec {
	return withDefault(typed("created_at", schema.TypeTimestamp), "CURRENT_TIMESTAMP")
}
