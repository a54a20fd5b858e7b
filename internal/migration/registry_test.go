package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func unit(domain, version string, tables ...schema.TableSpec) migration.Unit {
	return migration.Unit{
		Domain:  domain,
		Version: migration.MustParseVersion(version),
		Name:    "u" + version,
		Tables:  tables,
	}
}

func table(name string) schema.TableSpec {
	return schema.TableSpec{
		Name:    name,
		Columns: []schema.ColumnSpec{{Name: "id", Type: schema.TypeBigInt}},
		Indexes: []schema.IndexSpec{{Kind: schema.IndexPrimary, Columns: []string{"id"}}},
	}
}

func TestRegistry_Register_duplicateVersionIsConfigurationError(t *testing.T) {
	t.Parallel()

	reg := migration.NewRegistry()
	require.NoError(t, reg.Register(unit("Asset", "0.0.1", table("assets"))))

	err := reg.Register(unit("Asset", "0.0.1", table("assets")))

	require.ErrorIs(t, err, migration.ErrConfiguration)
	require.ErrorIs(t, err, migration.ErrDuplicateVersion)
	assert.Contains(t, err.Error(), "Asset@0.0.1")
}

func TestRegistry_Register_duplicateWithinBatchRegistersNothing(t *testing.T) {
	t.Parallel()

	reg := migration.NewRegistry()

	err := reg.Register(
		unit("Stats", "0.0.1", table("stats")),
		unit("Stats", "0.0.1", table("stats")),
	)

	require.ErrorIs(t, err, migration.ErrDuplicateVersion)
	assert.Empty(t, reg.Domains())
}

func TestRegistry_Register_invalidTableIsConfigurationError(t *testing.T) {
	t.Parallel()

	bad := table("assets")
	bad.Indexes = append(bad.Indexes, schema.IndexSpec{Kind: schema.IndexPlain, Columns: []string{"ghost"}})

	err := migration.NewRegistry().Register(unit("Asset", "0.0.1", bad))

	require.ErrorIs(t, err, migration.ErrConfiguration)
	require.ErrorIs(t, err, schema.ErrInvalidSchema)
}

func TestRegistry_MustRegister_panics(t *testing.T) {
	t.Parallel()

	reg := migration.NewRegistry()
	reg.MustRegister(unit("Asset", "0.0.1", table("assets")))

	assert.Panics(t, func() {
		reg.MustRegister(unit("Asset", "0.0.1", table("assets")))
	})
}

func TestRegistry_orderingIndependentOfRegistration(t *testing.T) {
	t.Parallel()

	reg := migration.NewRegistry()
	reg.MustRegister(
		unit("Scheduler", "0.0.4", table("scheduler")),
		unit("Asset", "0.0.1", table("assets")),
		unit("Scheduler", "0.0.1", table("scheduler")),
	)
	reg.MustRegister(unit("Scheduler", "0.0.2", table("scheduler")))

	assert.Equal(t, []string{"Asset", "Scheduler"}, reg.Domains())
	assert.Equal(t, []string{"0.0.1", "0.0.2", "0.0.4"}, versionStrings(t, reg.Units("Scheduler")))

	latest, ok := reg.Latest("Scheduler")
	require.True(t, ok)
	assert.Equal(t, "0.0.4", latest.Version.String())
}

func TestRegistry_Next(t *testing.T) {
	t.Parallel()

	reg := migration.NewRegistry()
	reg.MustRegister(
		unit("Scheduler", "0.0.1", table("scheduler")),
		unit("Scheduler", "0.0.4", table("scheduler")),
	)

	next, ok := reg.Next("Scheduler", migration.Version{})
	require.True(t, ok)
	assert.Equal(t, "0.0.1", next.Version.String())

	// Gaps are permitted: 0.0.1 is followed directly by 0.0.4.
	next, ok = reg.Next("Scheduler", migration.MustParseVersion("0.0.1"))
	require.True(t, ok)
	assert.Equal(t, "0.0.4", next.Version.String())

	_, ok = reg.Next("Scheduler", migration.MustParseVersion("0.0.4"))
	assert.False(t, ok)

	_, ok = reg.Next("Unknown", migration.Version{})
	assert.False(t, ok)

	assert.Len(t, reg.Pending("Scheduler", migration.Version{}), 2)
}

func TestRegistry_unitsAreImmutable(t *testing.T) {
	t.Parallel()

	u := unit("Asset", "0.0.1", table("assets"))
	reg := migration.NewRegistry()
	reg.MustRegister(u)

	u.Tables[0].Columns[0].Name = "mutated"

	got := reg.Units("Asset")
	got[0].Tables[0].Name = "also-mutated"

	again := reg.Units("Asset")
	assert.Equal(t, "assets", again[0].Tables[0].Name)
	assert.Equal(t, "id", again[0].Tables[0].Columns[0].Name)
	assert.Equal(t, "assets_pkey", again[0].Tables[0].Indexes[0].Name)
	assert.Len(t, again[0].Checksum, 64)
}

func TestRegistry_Tables(t *testing.T) {
	t.Parallel()

	blob := unit("Asset", "0.0.2")
	blob.Removals = []string{"assetblob"}

	reg := migration.NewRegistry()
	reg.MustRegister(unit("Asset", "0.0.1", table("assets"), table("assetblob")), blob)

	assert.Equal(t, []string{"assetblob", "assets"}, reg.Tables("Asset"))
}
