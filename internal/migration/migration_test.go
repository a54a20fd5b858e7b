package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    migration.Version
		wantErr bool
	}{
		{input: "0.0.1", want: migration.Version{Patch: 1}},
		{input: "v1.2.3", want: migration.Version{Major: 1, Minor: 2, Patch: 3}},
		{input: "V10.0.0", want: migration.Version{Major: 10}},
		{input: "1.2", wantErr: true},
		{input: "1.2.x", wantErr: true},
		{input: "1.-1.0", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := migration.ParseVersion(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, migration.ErrInvalidVersion)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	t.Parallel()

	v := migration.MustParseVersion

	assert.Equal(t, -1, v("0.0.9").Compare(v("0.0.10")))
	assert.Equal(t, 1, v("0.1.0").Compare(v("0.0.99")))
	assert.Equal(t, 0, v("1.2.3").Compare(v("1.2.3")))
	assert.True(t, migration.Version{}.IsZero())
	assert.Equal(t, "0.0.4", v("v0.0.4").String())
}

func TestComputeChecksum(t *testing.T) {
	t.Parallel()

	a := migration.ComputeChecksum("tables: []")
	b := migration.ComputeChecksum("tables: []")
	c := migration.ComputeChecksum("remove: [x]")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestUnit_AffectedTables(t *testing.T) {
	t.Parallel()

	u := migration.Unit{
		Domain:  "Asset",
		Version: migration.MustParseVersion("0.0.2"),
		Tables: []schema.TableSpec{
			{Name: "assets", Columns: []schema.ColumnSpec{{Name: "id", Type: schema.TypeInt}}},
		},
		Renames:  []migration.ColumnRename{{Table: "assets", From: "a", To: "b"}, {Table: "owners", From: "x", To: "y"}},
		Removals: []string{"assetblob"},
	}

	assert.Equal(t, []string{"assets", "owners", "assetblob"}, u.AffectedTables())
}

func TestUnit_Validate(t *testing.T) {
	t.Parallel()

	cols := []schema.ColumnSpec{{Name: "id", Type: schema.TypeInt}}

	tests := []struct {
		name    string
		unit    migration.Unit
		wantErr error
	}{
		{
			name:    "no domain",
			unit:    migration.Unit{Version: migration.Version{Patch: 1}},
			wantErr: migration.ErrInvalidUnit,
		},
		{
			name:    "zero version",
			unit:    migration.Unit{Domain: "Asset"},
			wantErr: migration.ErrInvalidVersion,
		},
		{
			name: "table declared twice",
			unit: migration.Unit{Domain: "Asset", Version: migration.Version{Patch: 1}, Tables: []schema.TableSpec{
				{Name: "a", Columns: cols}, {Name: "a", Columns: cols},
			}},
			wantErr: migration.ErrInvalidUnit,
		},
		{
			name: "rename to same name",
			unit: migration.Unit{Domain: "Asset", Version: migration.Version{Patch: 1},
				Renames: []migration.ColumnRename{{Table: "a", From: "x", To: "x"}}},
			wantErr: migration.ErrInvalidUnit,
		},
		{
			name: "declared and removed",
			unit: migration.Unit{Domain: "Asset", Version: migration.Version{Patch: 1},
				Tables: []schema.TableSpec{{Name: "a", Columns: cols}}, Removals: []string{"a"}},
			wantErr: migration.ErrInvalidUnit,
		},
		{
			name: "bad table",
			unit: migration.Unit{Domain: "Asset", Version: migration.Version{Patch: 1},
				Tables: []schema.TableSpec{{Name: "a"}}},
			wantErr: schema.ErrInvalidSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.unit.Validate()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
