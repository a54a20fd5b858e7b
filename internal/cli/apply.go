package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/domain-migration-engine/internal/config"
	"github.com/aqasim81/domain-migration-engine/internal/runner"
)

// errDangerousMigrations is returned when apply is blocked by high/critical findings.
var errDangerousMigrations = errors.New("apply aborted: dangerous migrations detected (use --force to override)")

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply",
	Short: "Bring domains to their latest version",
	Long: `Apply every pending unit of each registered domain, or only of the
domains named with --domain. A domain that fails is rolled back to its
last committed version; the others still run.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addApplyFlags(applyCmd)
	rootCmd.AddCommand(applyCmd)
}

func addApplyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	cmd.Flags().Bool("force", false, "skip the PostgreSQL lock analysis gate")
	cmd.Flags().StringSlice("domain", nil, "migrate only these domains (repeatable)")
	cmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	cmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
	cmd.Flags().Int("parallelism", 0, "override how many domains migrate at once")
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg := applyOverrides(cmd, AppConfig)
	if err := cfg.Validate(); err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	requested, _ := cmd.Flags().GetStringSlice("domain")

	ctx := commandContext(cmd)

	s, err := openSession(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	selected, err := s.selectDomains(requested)
	if err != nil {
		return err
	}

	if cfg.Driver == config.DriverPostgres && !force && !dryRun {
		// Findings go to stderr when stdout carries JSON.
		findings := cmd.OutOrStdout()
		if cfg.Format == formatJSON {
			findings = cmd.ErrOrStderr()
		}

		blocked, err := checkDangerousMigrations(ctx, findings, s, selected)
		if err != nil {
			return err
		}

		if blocked {
			return errDangerousMigrations
		}
	}

	out := cmd.OutOrStdout()

	opts := []runner.Option{runner.WithDryRun(dryRun)}
	if cfg.Format == formatText {
		opts = append(opts, runner.WithProgressCallback(progressPrinter(out)))
	}

	if dryRun && cfg.Format == formatText {
		fmt.Fprintln(out, "--- DRY RUN (no changes will be made) ---")
	}

	report, err := migrate(ctx, s.runner(opts...), selected, len(requested) > 0)
	if err != nil {
		return err
	}

	if err := printReport(out, cfg.Format, report); err != nil {
		return err
	}

	return report.Err()
}

// applyOverrides returns a copy of cfg with apply's explicitly-set flags applied.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) *config.Config {
	c := *cfg

	if cmd.Flags().Changed("lock-timeout") {
		c.LockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	if cmd.Flags().Changed("statement-timeout") {
		c.StatementTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	if cmd.Flags().Changed("parallelism") {
		if n, _ := cmd.Flags().GetInt("parallelism"); n > 0 {
			c.Parallelism = n
		}
	}

	return &c
}

// migrate runs the whole registry, or only the selected domains in order.
func migrate(ctx context.Context, r *runner.Runner, selected []string, only bool) (*runner.Report, error) {
	if !only {
		report, err := r.MigrateAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("starting migration: %w", err)
		}

		return report, nil
	}

	report := &runner.Report{}
	for _, domain := range selected {
		report.Results = append(report.Results, r.Migrate(ctx, domain))
	}

	return report, nil
}

// progressPrinter reports the transitions an operator cares about. The
// runner may call it from several goroutines.
func progressPrinter(out io.Writer) func(runner.Event) {
	var mu sync.Mutex

	return func(e runner.Event) {
		mu.Lock()
		defer mu.Unlock()

		switch e.State { //nolint:exhaustive // only terminal and rollback states are printed
		case runner.Committing:
			fmt.Fprintf(out, "  %s %s ... committing\n", e.Domain, e.Version)
		case runner.RollingBack:
			fmt.Fprintf(out, "  %s %s ... rolling back\n", e.Domain, e.Version)
		case runner.Failed:
			fmt.Fprintf(out, "  %s %s ... FAILED\n", e.Domain, e.Version)
		case runner.Current:
			if e.Duration > 0 {
				fmt.Fprintf(out, "  %s at %s (%s)\n", e.Domain, e.Version, e.Duration.Truncate(time.Millisecond))
			}
		}
	}
}
