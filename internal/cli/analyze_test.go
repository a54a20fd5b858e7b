package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
	"github.com/aqasim81/domain-migration-engine/internal/config"
	"github.com/aqasim81/domain-migration-engine/internal/domains"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/plan"
	"github.com/aqasim81/domain-migration-engine/internal/runner"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func statusIndexPlan() []runner.PlannedUnit {
	return []runner.PlannedUnit{{
		Unit: migration.Unit{Domain: domains.Scheduler, Version: migration.MustParseVersion("0.0.2"), Name: "add_status"},
		Steps: []plan.Step{{
			Phase:  plan.Applying,
			Action: plan.CreateIndex,
			Table:  "scheduler",
			Index:  schema.IndexSpec{Name: "idx_scheduler_status", Kind: schema.IndexPlain, Columns: []string{"status"}},
		}},
	}}
}

func TestAnalyzePlanned_existingTableIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		concurrent bool
		wantRules  []string
	}{
		{name: "plain build is flagged", wantRules: []string{"create-index-not-concurrent"}},
		{name: "concurrent build is safe", concurrent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			results, err := analyzePlanned(statusIndexPlan(), 14, tt.concurrent)
			require.NoError(t, err)
			require.Len(t, results, 1)

			var got []string
			for _, f := range results[0].Findings {
				got = append(got, f.Rule)
			}

			assert.Equal(t, tt.wantRules, got)
		})
	}
}

func TestPrintAnalysisResults(t *testing.T) {
	t.Parallel()

	results, err := analyzePlanned(statusIndexPlan(), 14, false)
	require.NoError(t, err)

	var buf bytes.Buffer

	assert.True(t, printAnalysisResults(&buf, results))
	assert.Contains(t, buf.String(), "=== Scheduler@0.0.2 (add_status) ===")
	assert.Contains(t, buf.String(), "[HIGH]")
	assert.Contains(t, buf.String(), "Found 1 finding(s) across 1 unit(s).")
}

func TestPrintAnalysisResults_noFindings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	assert.False(t, printAnalysisResults(&buf, []analyzer.AnalysisResult{{}}))
	assert.Contains(t, buf.String(), "No dangerous operations detected.")
}

func TestCountUnitsWithFindings(t *testing.T) {
	t.Parallel()

	results := []analyzer.AnalysisResult{
		{},
		{Findings: []analyzer.Finding{{Rule: "a"}, {Rule: "b"}}},
		{Findings: []analyzer.Finding{{Rule: "c"}}},
	}

	assert.Equal(t, 2, countUnitsWithFindings(results))
	assert.Zero(t, countUnitsWithFindings(nil))
}

func TestRunAnalyze_freshStorage(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, nil)

	// Tables created in the same run are safe; scheduler only builds new tables.
	out, err := runCmd(t, runAnalyze, addAnalyzeFlags, map[string]string{"domain": domains.Scheduler})
	require.NoError(t, err)
	assert.Contains(t, out, "No dangerous operations detected.")

	// Asset retires assetblob, which is always critical.
	out, err = runCmd(t, runAnalyze, addAnalyzeFlags, map[string]string{"domain": domains.Asset, "fail-on-high": "true"})
	require.ErrorIs(t, err, errHighSeverityFindings)
	assert.Contains(t, out, "drop-table")
}

func TestRunAnalyze_jsonAboveFloor(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, func(c *config.Config) { c.Format = formatJSON })

	out, err := runCmd(t, runAnalyze, addAnalyzeFlags, map[string]string{
		"domain":       domains.Asset,
		"min-severity": "critical",
	})
	require.NoError(t, err)

	var rows []analysisJSON
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.NotEmpty(t, rows)

	for _, row := range rows {
		for _, f := range row.Findings {
			assert.Equal(t, analyzer.Critical, f.Severity, f.Rule)
		}
	}

	assert.Equal(t, "drop-table", rows[len(rows)-1].Findings[0].Rule)
}

func TestRunAnalyze_unknownSeverity_returnsError(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	setupTestConfig(t, nil)

	_, err := runCmd(t, runAnalyze, addAnalyzeFlags, map[string]string{"min-severity": "severe"})
	require.ErrorIs(t, err, analyzer.ErrUnknownSeverity)
}
