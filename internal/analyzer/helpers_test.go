package analyzer_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

func TestTableName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "public.scheduler", analyzer.TableName(&pg_query.RangeVar{Schemaname: "public", Relname: "scheduler"}))
	assert.Equal(t, "assetmeta", analyzer.TableName(&pg_query.RangeVar{Relname: "assetmeta"}))
	assert.Equal(t, "<unknown>", analyzer.TableName(nil))
}

func TestTruncateSQL(t *testing.T) {
	t.Parallel()

	long := `ALTER TABLE "scheduler" ADD COLUMN "retries" INTEGER`

	tests := []struct {
		name   string
		sql    string
		maxLen int
		want   string
	}{
		{name: "shorter than limit", sql: "SELECT 1", maxLen: 100, want: "SELECT 1"},
		{name: "exact length", sql: "SELECT 1", maxLen: 8, want: "SELECT 1"},
		{name: "truncated", sql: long, maxLen: 20, want: `ALTER TABLE "sche...`},
		{name: "limit too small for ellipsis", sql: "SELECT 1", maxLen: 3, want: "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := analyzer.TruncateSQL(tt.sql, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), max(tt.maxLen, len(tt.sql)))
		})
	}
}

func TestExtractStmtSQL(t *testing.T) {
	t.Parallel()

	script := `CREATE TABLE "a" ("id" INTEGER); CREATE INDEX "idx_a" ON "a" ("id");`
	stmts := parseStmts(t, script)

	assert.Equal(t, `CREATE TABLE "a" ("id" INTEGER);`, analyzer.ExtractStmtSQL(stmts, 0, script))
	assert.Equal(t, `CREATE INDEX "idx_a" ON "a" ("id");`, analyzer.ExtractStmtSQL(stmts, 1, script))
	assert.Empty(t, analyzer.ExtractStmtSQL(stmts, 2, script))
	assert.Empty(t, analyzer.ExtractStmtSQL(stmts, -1, script))
	assert.Empty(t, analyzer.ExtractStmtSQL(nil, 0, script))
}

func TestHasHighOrCritical(t *testing.T) {
	t.Parallel()

	for s := analyzer.Safe; s <= analyzer.Critical; s++ {
		r := &analyzer.AnalysisResult{MaxSeverity: s}
		assert.Equal(t, s >= analyzer.High, r.HasHighOrCritical(), s.String())
	}
}

func TestAtLeast_dropsLowerFindings(t *testing.T) {
	t.Parallel()

	r := analyzer.AnalysisResult{
		Statements: 3,
		Findings: []analyzer.Finding{
			{Rule: "rename", Severity: analyzer.Medium},
			{Rule: "drop-table", Severity: analyzer.Critical},
			{Rule: "create-index-not-concurrent", Severity: analyzer.High},
		},
		MaxSeverity: analyzer.Critical,
	}

	high := r.AtLeast(analyzer.High)
	require.Len(t, high.Findings, 2)
	assert.Equal(t, "drop-table", high.Findings[0].Rule)
	assert.Equal(t, analyzer.Critical, high.MaxSeverity)
	assert.Equal(t, 3, high.Statements)
	assert.Len(t, r.Findings, 3, "receiver is not modified")

	none := r.AtLeast(analyzer.Severity(99))
	assert.Empty(t, none.Findings)
	assert.Equal(t, analyzer.Safe, none.MaxSeverity)
}

// parseStmts parses SQL and returns the raw statements.
func parseStmts(t *testing.T, sql string) []*pg_query.RawStmt {
	t.Helper()

	result, err := pg_query.Parse(sql)
	require.NoError(t, err)

	return result.Stmts
}
