package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqasim81/domain-migration-engine/internal/connector/postgres"
	"github.com/aqasim81/domain-migration-engine/internal/plan"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func TestColumnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		col  schema.ColumnSpec
		want string
	}{
		{col: schema.ColumnSpec{Type: schema.TypeBool}, want: "smallint"},
		{col: schema.ColumnSpec{Type: schema.TypeTinyInt}, want: "smallint"},
		{col: schema.ColumnSpec{Type: schema.TypeInt}, want: "integer"},
		{col: schema.ColumnSpec{Type: schema.TypeBigInt}, want: "bigint"},
		{col: schema.ColumnSpec{Type: schema.TypeString, Length: 64}, want: "character varying(64)"},
		{col: schema.ColumnSpec{Type: schema.TypeIdentifier, Length: 36}, want: "character(36)"},
		{col: schema.ColumnSpec{Type: schema.TypeBinary}, want: "bytea"},
		{col: schema.ColumnSpec{Type: schema.TypeTimestamp}, want: "timestamp with time zone"},
	}

	for _, tt := range tests {
		t.Run(tt.col.Type.String(), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, postgres.ColumnType(tt.col))
		})
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	spec := schema.TableSpec{
		Name: "scheduler",
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: schema.TypeIdentifier, Length: 36},
			{Name: "status", Type: schema.TypeString, Length: 16, Default: "'pending'"},
			{Name: "note", Type: schema.TypeString, Length: 255, Nullable: true},
		},
		Indexes: []schema.IndexSpec{
			{Kind: schema.IndexPrimary, Columns: []string{"id"}},
			{Kind: schema.IndexPlain, Columns: []string{"status"}},
		},
	}

	got := postgres.CreateTableSQL(spec)

	assert.Equal(t, []string{
		`CREATE TABLE "scheduler" ("id" character(36) NOT NULL, ` +
			`"status" character varying(16) NOT NULL DEFAULT 'pending', ` +
			`"note" character varying(255), ` +
			`CONSTRAINT "scheduler_pkey" PRIMARY KEY ("id"))`,
		`CREATE INDEX "idx_scheduler_status" ON "scheduler" ("status")`,
	}, got)
}

func TestCreateIndexSQL(t *testing.T) {
	t.Parallel()

	uq := schema.IndexSpec{Name: "uq_names", Kind: schema.IndexUnique, Columns: []string{"first_name", "last_name"}}
	pk := schema.IndexSpec{Name: "stats_pkey", Kind: schema.IndexPrimary, Columns: []string{"region_id", "sampled_at"}}

	assert.Equal(t,
		`CREATE UNIQUE INDEX CONCURRENTLY "uq_names" ON "users" ("first_name", "last_name")`,
		postgres.CreateIndexSQL("users", uq, true))
	assert.Equal(t,
		`ALTER TABLE "stats" ADD CONSTRAINT "stats_pkey" PRIMARY KEY ("region_id", "sampled_at")`,
		postgres.CreateIndexSQL("stats", pk, true))
}

func TestDropIndexSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `DROP INDEX "idx_a"`, postgres.DropIndexSQL("t", schema.IndexSpec{Name: "idx_a"}))
	assert.Equal(t, `ALTER TABLE "t" DROP CONSTRAINT "t_pkey"`,
		postgres.DropIndexSQL("t", schema.IndexSpec{Name: "t_pkey", Kind: schema.IndexPrimary}))
}

func TestAlterColumnSQL(t *testing.T) {
	t.Parallel()

	col := schema.ColumnSpec{Name: "run_every", Type: schema.TypeBigInt, Nullable: true}

	assert.Equal(t,
		`ALTER TABLE "scheduler" ALTER COLUMN "run_every" TYPE bigint USING "run_every"::bigint, `+
			`ALTER COLUMN "run_every" DROP NOT NULL, ALTER COLUMN "run_every" DROP DEFAULT`,
		postgres.AlterColumnSQL("scheduler", col))
}

func TestQuoteIdent_EscapesQuotes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"we""ird"`, postgres.QuoteIdent(`we"ird`))
}

func TestDropTableSQL_IsIdempotent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `DROP TABLE IF EXISTS "assetblob"`, postgres.DropTableSQL("assetblob"))
}

func TestRender(t *testing.T) {
	t.Parallel()

	col := schema.ColumnSpec{Name: "schedule_for", Type: schema.TypeBigInt, Default: "0"}
	idx := schema.IndexSpec{Name: "idx_scheduler_status", Kind: schema.IndexPlain, Columns: []string{"status"}}

	steps := []plan.Step{
		{Action: plan.RenameColumn, Table: "users", From: "email", To: "email_address"},
		{Action: plan.AddColumn, Table: "scheduler", Column: col},
		{Action: plan.CreateIndex, Table: "scheduler", Index: idx},
		{Action: plan.DropTable, Table: "assetblob"},
	}

	assert.Equal(t, []string{
		`ALTER TABLE "users" RENAME COLUMN "email" TO "email_address"`,
		`ALTER TABLE "scheduler" ADD COLUMN "schedule_for" bigint NOT NULL DEFAULT 0`,
		`CREATE INDEX CONCURRENTLY "idx_scheduler_status" ON "scheduler" ("status")`,
		`DROP TABLE IF EXISTS "assetblob"`,
	}, postgres.RenderAll(steps, true))
}
