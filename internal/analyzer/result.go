package analyzer

import "github.com/aqasim81/domain-migration-engine/internal/migration"

// Finding represents a single dangerous pattern detected in a unit's DDL.
type Finding struct {
	Rule       string   `json:"rule"` // e.g. "create-index-not-concurrent"
	Severity   Severity `json:"severity"`
	Table      string   `json:"table"`
	Statement  string   `json:"statement,omitempty"` // truncated for display
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion"`          // safer alternative
	LockType   string   `json:"lock_type,omitempty"` // e.g. "ACCESS EXCLUSIVE"
	StmtIndex  int      `json:"stmt_index"`          // 0-based, in the rendered statement list
}

// AnalysisResult holds all findings for a single unit.
type AnalysisResult struct {
	Unit        *migration.Unit
	Statements  int
	Findings    []Finding
	MaxSeverity Severity // Highest severity across all findings
}

// HasHighOrCritical returns true if any finding is High or Critical severity.
func (r *AnalysisResult) HasHighOrCritical() bool {
	return r.MaxSeverity >= High
}

// AtLeast returns a copy of r keeping only findings of severity floor or
// above. MaxSeverity is recomputed from what remains.
func (r AnalysisResult) AtLeast(floor Severity) AnalysisResult {
	kept := make([]Finding, 0, len(r.Findings))
	r.MaxSeverity = Safe

	for _, f := range r.Findings {
		if f.Severity < floor {
			continue
		}

		kept = append(kept, f)
		r.MaxSeverity = max(r.MaxSeverity, f.Severity)
	}

	r.Findings = kept

	return r
}

// TruncateSQL truncates a SQL string to maxLen characters for display.
// A maxLen too small to hold the ellipsis returns the string unchanged.
func TruncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen || maxLen < 4 { //nolint:mnd // room for "..." plus one character
		return sql
	}

	return sql[:maxLen-3] + "..."
}
