package parser_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/parser"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sql       string
		wantErr   bool
		wantStmts int
		checkNode func(t *testing.T, result *parser.ParseResult)
	}{
		{
			name:      "CREATE TABLE with inline primary key",
			sql:       `CREATE TABLE "stats" ("region_id" character(36) NOT NULL, CONSTRAINT "stats_pkey" PRIMARY KEY ("region_id"));`,
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				_, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_CreateStmt)
				assert.True(t, ok, "expected CreateStmt node")
			},
		},
		{
			name:      "multi-statement SQL returns correct count",
			sql:       "CREATE TABLE a (id INT); CREATE TABLE b (id INT); CREATE TABLE c (id INT);",
			wantStmts: 3,
		},
		{
			name:      "CREATE INDEX CONCURRENTLY parses correctly",
			sql:       `CREATE INDEX CONCURRENTLY "idx_scheduler_status" ON "scheduler" ("status");`,
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				node, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_IndexStmt)
				require.True(t, ok, "expected IndexStmt node")
				assert.True(t, node.IndexStmt.Concurrent, "expected Concurrent to be true")
			},
		},
		{
			name:      "ALTER TABLE ADD COLUMN parses correctly",
			sql:       `ALTER TABLE "scheduler" ADD COLUMN "schedule_for" bigint NOT NULL DEFAULT 0;`,
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				_, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_AlterTableStmt)
				assert.True(t, ok, "expected AlterTableStmt node")
			},
		},
		{
			name:    "invalid SQL returns error",
			sql:     "SELECT * FROM WHERE;",
			wantErr: true,
		},
		{
			name:      "empty string returns zero statements",
			sql:       "",
			wantStmts: 0,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				assert.Empty(t, result.SQL)
			},
		},
		{
			name:      "whitespace-only returns zero statements",
			sql:       "   \n\t  ",
			wantStmts: 0,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				assert.Equal(t, "   \n\t  ", result.SQL, "original SQL preserved")
			},
		},
		{
			name:      "DROP TABLE IF EXISTS parses as DropStmt",
			sql:       `DROP TABLE IF EXISTS "assetblob";`,
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				node, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_DropStmt)
				require.True(t, ok, "expected DropStmt node")
				assert.True(t, node.DropStmt.MissingOk)
			},
		},
		{
			name:      "RENAME COLUMN parses as RenameStmt",
			sql:       `ALTER TABLE "users" RENAME COLUMN "email" TO "email_address";`,
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				_, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_RenameStmt)
				assert.True(t, ok, "expected RenameStmt node")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := parser.Parse(tt.sql)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, result)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Len(t, result.Stmts, tt.wantStmts)
			assert.Equal(t, tt.sql, result.SQL)

			if tt.checkNode != nil {
				tt.checkNode(t, result)
			}
		})
	}
}

func TestScript(t *testing.T) {
	t.Parallel()

	got := parser.Script([]string{"DROP TABLE a", "  ", "DROP TABLE b;"})
	assert.Equal(t, "DROP TABLE a;\nDROP TABLE b;\n", got)
}

func TestParseStatements(t *testing.T) {
	t.Parallel()

	result, err := parser.ParseStatements([]string{
		`CREATE TABLE "jobs" ("id" integer NOT NULL)`,
		`CREATE INDEX "idx_jobs_id" ON "jobs" ("id")`,
	})
	require.NoError(t, err)
	require.Len(t, result.Stmts, 2)

	assert.Equal(t, "jobs", parser.Relation(result.Stmts[0]))
	assert.Equal(t, "jobs", parser.Relation(result.Stmts[1]))
}

func TestRelation_NoTable(t *testing.T) {
	t.Parallel()

	result, err := parser.Parse(`DROP TABLE IF EXISTS "assetblob"`)
	require.NoError(t, err)

	assert.Empty(t, parser.Relation(result.Stmts[0]))
	assert.Empty(t, parser.Relation(nil))
}
