// Package connector defines the storage primitives the migration engine
// drives. Implementations live in the memory, sqlite and postgres subpackages.
package connector

import (
	"context"
	"strings"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

// TempSuffix marks backup copies taken before a destructive change.
const TempSuffix = "__premig"

// StaleSuffix marks backup copies from committed units that could not be
// dropped. They hold no state a later run needs.
const StaleSuffix = "__stale"

// VersionTable is the reserved table holding one version row per domain.
const VersionTable = "domain_versions"

// TypeMapper maps a declared column to the physical type string the
// storage reports for it, so declared and actual shapes compare exactly.
type TypeMapper interface {
	ColumnType(c schema.ColumnSpec) string
}

// Connector is the set of schema primitives a storage engine must offer.
// Every call either completes or fails within the connector's own timeouts.
type Connector interface {
	TypeMapper

	TableExists(ctx context.Context, name string) (bool, error)
	// DescribeTable returns nil when the table is absent.
	DescribeTable(ctx context.Context, name string) (*schema.TableSnapshot, error)
	ListTables(ctx context.Context) ([]string, error)

	CreateTable(ctx context.Context, t schema.TableSpec) error
	AddColumn(ctx context.Context, table string, c schema.ColumnSpec) error
	AlterColumn(ctx context.Context, table string, c schema.ColumnSpec) error
	RenameColumn(ctx context.Context, table, from, to string) error
	CreateIndex(ctx context.Context, table string, idx schema.IndexSpec) error
	DropIndex(ctx context.Context, table, name string) error

	// CopyTableToTemp copies structure and rows to TempName(table).
	CopyTableToTemp(ctx context.Context, table string) (string, error)
	RenameTable(ctx context.Context, from, to string) error
	DropTable(ctx context.Context, name string) error

	// GetDomainVersion reports ok=false when the domain was never migrated.
	GetDomainVersion(ctx context.Context, domain string) (v migration.Version, ok bool, err error)
	SetDomainVersion(ctx context.Context, domain string, v migration.Version) error
}

// TableReplacer is implemented by connectors that can swap a backup copy
// back over a live table in one atomic step.
type TableReplacer interface {
	ReplaceTable(ctx context.Context, temp, live string) error
}

// TempName returns the backup copy name for a table.
func TempName(table string) string {
	return table + TempSuffix
}

// IsTempName reports whether name is a backup copy.
func IsTempName(name string) bool {
	return strings.HasSuffix(name, TempSuffix) && len(name) > len(TempSuffix)
}

// StaleName returns the name a committed unit's undroppable copy is moved to.
func StaleName(table string) string {
	return table + StaleSuffix
}

// IsStaleName reports whether name is a retired backup copy.
func IsStaleName(name string) bool {
	return strings.HasSuffix(name, StaleSuffix) && len(name) > len(StaleSuffix)
}

// StaleBaseName strips the retired-copy suffix from a stale table name.
func StaleBaseName(stale string) string {
	return strings.TrimSuffix(stale, StaleSuffix)
}

// BaseName strips the backup suffix from a temp table name.
func BaseName(temp string) string {
	return strings.TrimSuffix(temp, TempSuffix)
}
