// Package analyzer flags lock-heavy or destructive statements in the
// PostgreSQL DDL rendered for a unit's planned steps, so an operator can
// review a plan before it runs against a busy database.
package analyzer

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/parser"
)

// statementWidth bounds the statement text kept on a finding.
const statementWidth = 120

// Option configures the Analyzer.
type Option func(*Analyzer)

// Analyzer runs registered rules against rendered statements.
type Analyzer struct {
	registry  *Registry
	parseFn   func(string) (*parser.ParseResult, error)
	pgVersion int
}

// New creates a new Analyzer with the given options.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		registry:  NewRegistry(),
		parseFn:   parser.Parse,
		pgVersion: 14, //nolint:mnd // default PostgreSQL version
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithRegistry sets a custom rule registry.
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) { a.registry = r }
}

// WithPGVersion sets the target PostgreSQL version.
func WithPGVersion(v int) Option {
	return func(a *Analyzer) { a.pgVersion = v }
}

// WithParser overrides the SQL parser function (useful for testing).
func WithParser(fn func(string) (*parser.ParseResult, error)) Option {
	return func(a *Analyzer) { a.parseFn = fn }
}

// Target is one unit together with the statements rendered for its steps.
type Target struct {
	Unit       *migration.Unit
	Statements []string
}

// Analyze runs every rule over a single target.
func (a *Analyzer) Analyze(target Target) (*AnalysisResult, error) {
	return a.analyze(target, make(map[string]bool))
}

// AnalyzeAll analyzes targets in order. A table created by an earlier
// target counts as new for the ones after it.
func (a *Analyzer) AnalyzeAll(targets []Target) ([]AnalysisResult, error) {
	created := make(map[string]bool)
	results := make([]AnalysisResult, 0, len(targets))

	for _, t := range targets {
		r, err := a.analyze(t, created)
		if err != nil {
			return nil, err
		}

		results = append(results, *r)
	}

	return results, nil
}

func (a *Analyzer) analyze(target Target, created map[string]bool) (*AnalysisResult, error) {
	sql := parser.Script(target.Statements)

	result, err := a.parseFn(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing statements for %s: %w", unitID(target.Unit), err)
	}

	var findings []Finding

	maxSeverity := Safe

	for i, stmt := range result.Stmts {
		ctx := &RuleContext{
			Unit:            target.Unit,
			TargetPGVersion: a.pgVersion,
			StmtIndex:       i,
			SQL:             sql,
			Created:         created,
		}

		text := TruncateSQL(ExtractStmtSQL(result.Stmts, i, sql), statementWidth)

		for _, rule := range a.registry.Rules() {
			fs := rule.Check(stmt, ctx)
			for j := range fs {
				if fs[j].Statement == "" {
					fs[j].Statement = text
				}

				if fs[j].Severity > maxSeverity {
					maxSeverity = fs[j].Severity
				}
			}

			findings = append(findings, fs...)
		}

		if _, ok := stmt.Stmt.Node.(*pg_query.Node_CreateStmt); ok {
			created[parser.Relation(stmt)] = true
		}
	}

	return &AnalysisResult{
		Unit:        target.Unit,
		Statements:  len(result.Stmts),
		Findings:    findings,
		MaxSeverity: maxSeverity,
	}, nil
}

func unitID(u *migration.Unit) string {
	if u == nil {
		return "statements"
	}

	return u.ID()
}
