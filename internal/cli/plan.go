package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aqasim81/domain-migration-engine/internal/config"
	"github.com/aqasim81/domain-migration-engine/internal/connector/postgres"
	"github.com/aqasim81/domain-migration-engine/internal/runner"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan",
	Short: "Show the steps pending units would run",
	Long: `Display each pending unit in execution order with the steps it would
run against current storage. On PostgreSQL the rendered DDL is shown
and checked for lock-heavy operations.`,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addPlanFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("domain", nil, "plan only these domains (repeatable)")
	cmd.Flags().Bool("sql", false, "show rendered PostgreSQL DDL for any driver")
}

type stepJSON struct {
	Phase  string   `json:"phase"`
	Action string   `json:"action"`
	Table  string   `json:"table"`
	Detail string   `json:"detail"`
	SQL    []string `json:"sql,omitempty"`
}

type unitPlanJSON struct {
	Domain  string     `json:"domain"`
	Version string     `json:"version"`
	Name    string     `json:"name"`
	Steps   []stepJSON `json:"steps"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
	requested, _ := cmd.Flags().GetStringSlice("domain")
	showSQL, _ := cmd.Flags().GetBool("sql")
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

	r := s.runner()

	var planned []runner.PlannedUnit

	for _, domain := range selected {
		units, err := r.Plan(ctx, domain)
		if err != nil {
			return fmt.Errorf("planning %s: %w", domain, err)
		}

		planned = append(planned, units...)
	}

	onPostgres := s.cfg.Driver == config.DriverPostgres
	showSQL = showSQL || onPostgres
	out := cmd.OutOrStdout()

	if s.cfg.Format == formatJSON {
		return writeJSON(out, planJSON(planned, showSQL, s.cfg.ConcurrentIndexes))
	}

	printPlan(out, planned, showSQL, s.cfg.ConcurrentIndexes)

	if !onPostgres || len(planned) == 0 {
		return nil
	}

	results, err := analyzePlanned(planned, s.cfg.TargetPGVersion, s.cfg.ConcurrentIndexes)
	if err != nil {
		return err
	}

	printAnalysisResults(out, results)

	return nil
}

func printPlan(out io.Writer, planned []runner.PlannedUnit, showSQL, concurrent bool) {
	if len(planned) == 0 {
		fmt.Fprintln(out, "Every domain is up to date.")

		return
	}

	for _, p := range planned {
		fmt.Fprintf(out, "%s (%s)\n", p.Unit.ID(), p.Unit.Name)

		if len(p.Steps) == 0 {
			fmt.Fprintln(out, "  storage already matches; version is recorded only")
		}

		for _, step := range p.Steps {
			fmt.Fprintf(out, "  [%s] %s\n", step.Phase, step)

			if !showSQL {
				continue
			}

			for _, stmt := range postgres.Render(step, concurrent) {
				fmt.Fprintf(out, "      %s;\n", stmt)
			}
		}
	}

	fmt.Fprintf(out, "\n%d pending unit(s).\n", len(planned))
}

func planJSON(planned []runner.PlannedUnit, showSQL, concurrent bool) []unitPlanJSON {
	out := make([]unitPlanJSON, len(planned))

	for i, p := range planned {
		steps := make([]stepJSON, len(p.Steps))

		for j, step := range p.Steps {
			steps[j] = stepJSON{
				Phase:  step.Phase.String(),
				Action: step.Action.String(),
				Table:  step.Table,
				Detail: step.String(),
			}

			if showSQL {
				steps[j].SQL = postgres.Render(step, concurrent)
			}
		}

		out[i] = unitPlanJSON{
			Domain:  p.Unit.Domain,
			Version: p.Unit.Version.String(),
			Name:    p.Unit.Name,
			Steps:   steps,
		}
	}

	return out
}
