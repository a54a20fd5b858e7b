package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/connector/memory"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
	"github.com/aqasim81/domain-migration-engine/internal/validator"
)

func assetSpec() schema.TableSpec {
	return schema.TableSpec{
		Name: "assets",
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: schema.TypeIdentifier, Length: 36},
			{Name: "title", Type: schema.TypeString, Length: 128, Nullable: true},
			{Name: "archived", Type: schema.TypeBool, Default: "0"},
		},
		Indexes: []schema.IndexSpec{
			{Kind: schema.IndexPrimary, Columns: []string{"id"}},
			{Kind: schema.IndexPlain, Columns: []string{"title"}},
		},
	}.Normalize()
}

func matchingSnapshot() *schema.TableSnapshot {
	return &schema.TableSnapshot{
		Name: "assets",
		Columns: []schema.ColumnSnapshot{
			{Name: "id", DataType: "CHAR(36)"},
			{Name: "title", DataType: "VARCHAR(128)", Nullable: true},
			{Name: "archived", DataType: "TINYINT(1)", Default: "0"},
		},
		Indexes: []schema.IndexSpec{
			{Name: "assets_pkey", Kind: schema.IndexPrimary, Columns: []string{"id"}},
			{Name: "idx_assets_title", Kind: schema.IndexPlain, Columns: []string{"title"}},
		},
	}
}

func TestValidate_Match(t *testing.T) {
	t.Parallel()

	v := validator.New(memory.New())

	diff := v.Validate(assetSpec(), matchingSnapshot())

	assert.True(t, diff.Empty(), diff.String())
}

func TestValidate_Differences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(s *schema.TableSnapshot)
		want   validator.Finding
	}{
		{
			name:   "missing column",
			mutate: func(s *schema.TableSnapshot) { s.Columns = s.Columns[:2] },
			want:   validator.Finding{Kind: validator.ColumnMissing, Table: "assets", Name: "archived", Want: "TINYINT(1)"},
		},
		{
			name:   "column size differs",
			mutate: func(s *schema.TableSnapshot) { s.Columns[1].DataType = "VARCHAR(64)" },
			want: validator.Finding{
				Kind: validator.ColumnMismatch, Table: "assets", Name: "title",
				Want: "VARCHAR(128)", Got: "VARCHAR(64)",
			},
		},
		{
			name:   "missing secondary index",
			mutate: func(s *schema.TableSnapshot) { s.Indexes = s.Indexes[:1] },
			want: validator.Finding{
				Kind: validator.IndexMissing, Table: "assets", Name: "idx_assets_title", Want: "index(title)",
			},
		},
		{
			name:   "index with wrong kind under declared name",
			mutate: func(s *schema.TableSnapshot) { s.Indexes[1].Kind = schema.IndexUnique },
			want: validator.Finding{
				Kind: validator.IndexMismatch, Table: "assets", Name: "idx_assets_title",
				Want: "index(title)", Got: "unique(title)", Actual: "idx_assets_title",
			},
		},
		{
			name:   "primary key on other columns",
			mutate: func(s *schema.TableSnapshot) { s.Indexes[0].Columns = []string{"title"} },
			want: validator.Finding{
				Kind: validator.IndexMismatch, Table: "assets", Name: "assets_pkey",
				Want: "primary(id)", Got: "primary(title)", Actual: "assets_pkey",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			snap := matchingSnapshot()
			tt.mutate(snap)

			diff := validator.New(memory.New()).Validate(assetSpec(), snap)

			require.Len(t, diff, 1)
			assert.Equal(t, tt.want, diff[0])
		})
	}
}

func TestValidate_IgnoresDefaultsNullabilityAndExtras(t *testing.T) {
	t.Parallel()

	snap := matchingSnapshot()
	snap.Columns[0].Nullable = true
	snap.Columns[2].Default = "1"
	snap.Columns = append(snap.Columns, schema.ColumnSnapshot{Name: "legacy", DataType: "INT"})
	snap.Indexes = append(snap.Indexes, schema.IndexSpec{Name: "idx_legacy", Columns: []string{"legacy"}})

	diff := validator.New(memory.New()).Validate(assetSpec(), snap)

	assert.True(t, diff.Empty(), diff.String())
}

func TestValidate_MatchesIndexByShapeAndPrimaryByKind(t *testing.T) {
	t.Parallel()

	snap := matchingSnapshot()
	snap.Indexes[0].Name = "PRIMARY"
	snap.Indexes[1].Name = "title_lookup"

	diff := validator.New(memory.New()).Validate(assetSpec(), snap)

	assert.True(t, diff.Empty(), diff.String())
}

func TestValidate_TableMissing(t *testing.T) {
	t.Parallel()

	diff := validator.New(memory.New()).Validate(assetSpec(), nil)

	require.Len(t, diff, 1)
	assert.Equal(t, validator.TableMissing, diff[0].Kind)
	assert.Equal(t, "table missing: assets", diff.String())
}

func TestValidateUnit(t *testing.T) {
	t.Parallel()

	unit := &migration.Unit{
		Domain:   "Asset",
		Version:  migration.MustParseVersion("0.0.2"),
		Tables:   []schema.TableSpec{assetSpec()},
		Removals: []string{"assetblob"},
	}

	v := validator.New(memory.New())

	t.Run("removal target still present", func(t *testing.T) {
		t.Parallel()

		diff := v.ValidateUnit(unit, map[string]*schema.TableSnapshot{
			"assets":    matchingSnapshot(),
			"assetblob": {Name: "assetblob"},
		})

		require.Len(t, diff, 1)
		assert.Equal(t, validator.TablePresent, diff[0].Kind)
		assert.Equal(t, "assetblob", diff[0].Table)
	})

	t.Run("satisfied", func(t *testing.T) {
		t.Parallel()

		diff := v.ValidateUnit(unit, map[string]*schema.TableSnapshot{"assets": matchingSnapshot()})

		assert.True(t, diff.Empty())
	})
}

func TestFinding_String(t *testing.T) {
	t.Parallel()

	f := validator.Finding{Kind: validator.ColumnMissing, Table: "assets", Name: "owner", Want: "CHAR(36)"}

	assert.Equal(t, "column missing: assets.owner (want CHAR(36), got none)", f.String())
}
