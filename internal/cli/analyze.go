package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
	"github.com/aqasim81/domain-migration-engine/internal/analyzer/rules"
	"github.com/aqasim81/domain-migration-engine/internal/connector/postgres"
	"github.com/aqasim81/domain-migration-engine/internal/runner"
)

var analyzeCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "analyze",
	Short: "Analyze pending units for dangerous PostgreSQL operations",
	Long: `Render the DDL each pending unit would run on PostgreSQL and report
operations that take heavy locks, rewrite tables or drop data, with
severity levels and safer alternatives.`,
	RunE: runAnalyze,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addAnalyzeFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func addAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("domain", nil, "analyze only these domains (repeatable)")
	cmd.Flags().Bool("fail-on-high", false, "exit with non-zero code if high/critical findings exist")
	cmd.Flags().String("min-severity", "low", "hide findings below this severity (low, medium, high, critical)")
}

// errHighSeverityFindings is returned when --fail-on-high is set and high/critical findings exist.
var errHighSeverityFindings = errors.New("high or critical severity findings detected")

type analysisJSON struct {
	Unit     string             `json:"unit"`
	Name     string             `json:"name"`
	Findings []analyzer.Finding `json:"findings"`
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	requested, _ := cmd.Flags().GetStringSlice("domain")
	label, _ := cmd.Flags().GetString("min-severity")

	floor, err := analyzer.ParseSeverity(label)
	if err != nil {
		return fmt.Errorf("--min-severity: %w", err)
	}

	ctx := commandContext(cmd)

	s, err := openSession(ctx, cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	selected, err := s.selectDomains(requested)
	if err != nil {
		return err
	}

	results, err := analyzeDomains(ctx, s, selected)
	if err != nil {
		return err
	}

	for i := range results {
		results[i] = results[i].AtLeast(floor)
	}

	out := cmd.OutOrStdout()

	var hasHighOrCritical bool

	if s.cfg.Format == formatJSON {
		rows := make([]analysisJSON, 0, len(results))

		for _, r := range results {
			if len(r.Findings) == 0 {
				continue
			}

			rows = append(rows, analysisJSON{Unit: r.Unit.ID(), Name: r.Unit.Name, Findings: r.Findings})
			hasHighOrCritical = hasHighOrCritical || r.HasHighOrCritical()
		}

		if err := writeJSON(out, rows); err != nil {
			return err
		}
	} else {
		hasHighOrCritical = printAnalysisResults(out, results)
	}

	failOnHigh, _ := cmd.Flags().GetBool("fail-on-high")
	if failOnHigh && hasHighOrCritical {
		return errHighSeverityFindings
	}

	return nil
}

// checkDangerousMigrations prints the high and critical findings for the
// selected domains. It returns true if there were any.
func checkDangerousMigrations(ctx context.Context, out io.Writer, s *session, domains []string) (bool, error) {
	results, err := analyzeDomains(ctx, s, domains)
	if err != nil {
		return false, err
	}

	for i := range results {
		results[i] = results[i].AtLeast(analyzer.High)
	}

	return printAnalysisResults(out, results), nil
}

// analyzeDomains plans the domains in order and analyzes the rendered DDL.
func analyzeDomains(ctx context.Context, s *session, domains []string) ([]analyzer.AnalysisResult, error) {
	r := s.runner()

	var planned []runner.PlannedUnit

	for _, domain := range domains {
		units, err := r.Plan(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("planning %s: %w", domain, err)
		}

		planned = append(planned, units...)
	}

	return analyzePlanned(planned, s.cfg.TargetPGVersion, s.cfg.ConcurrentIndexes)
}

// analyzePlanned runs the default rules over the PostgreSQL DDL of each
// planned unit, in plan order.
func analyzePlanned(planned []runner.PlannedUnit, pgVersion int, concurrent bool) ([]analyzer.AnalysisResult, error) {
	targets := make([]analyzer.Target, len(planned))
	for i := range planned {
		targets[i] = analyzer.Target{
			Unit:       &planned[i].Unit,
			Statements: postgres.RenderAll(planned[i].Steps, concurrent),
		}
	}

	a := analyzer.New(
		analyzer.WithRegistry(rules.NewDefaultRegistry()),
		analyzer.WithPGVersion(pgVersion),
	)

	results, err := a.AnalyzeAll(targets)
	if err != nil {
		return nil, fmt.Errorf("analyzing migrations: %w", err)
	}

	return results, nil
}

func printAnalysisResults(out io.Writer, results []analyzer.AnalysisResult) bool {
	totalFindings := 0
	hasHighOrCritical := false

	for _, r := range results {
		if len(r.Findings) == 0 {
			continue
		}

		fmt.Fprintf(out, "\n=== %s (%s) ===\n", r.Unit.ID(), r.Unit.Name)

		for _, f := range r.Findings {
			fmt.Fprintf(out, "  [%s] %s\n", f.Severity, f.Message)
			fmt.Fprintf(out, "    Table: %s\n", f.Table)
			fmt.Fprintf(out, "    Rule:  %s\n", f.Rule)

			if f.Statement != "" {
				fmt.Fprintf(out, "    SQL:   %s\n", f.Statement)
			}

			fmt.Fprintf(out, "    Fix:   %s\n\n", f.Suggestion)
		}

		totalFindings += len(r.Findings)

		if r.HasHighOrCritical() {
			hasHighOrCritical = true
		}
	}

	if totalFindings == 0 {
		fmt.Fprintln(out, "No dangerous operations detected.")
	} else {
		fmt.Fprintf(out, "Found %d finding(s) across %d unit(s).\n", totalFindings, countUnitsWithFindings(results))
	}

	return hasHighOrCritical
}

func countUnitsWithFindings(results []analyzer.AnalysisResult) int {
	count := 0

	for _, r := range results {
		if len(r.Findings) > 0 {
			count++
		}
	}

	return count
}
