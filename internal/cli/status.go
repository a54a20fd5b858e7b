package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/domain-migration-engine/internal/tracker"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show recorded and latest version per domain",
	Long: `Display every registered domain with the version recorded in storage,
the latest declared version, and how many units are pending.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

// versionHistory is implemented by connectors that record when a version
// was applied.
type versionHistory interface {
	Tracker() *tracker.Tracker
}

type domainStatus struct {
	Domain    string     `json:"domain"`
	Recorded  string     `json:"recorded"`
	Latest    string     `json:"latest"`
	Pending   int        `json:"pending"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	s, err := openSession(ctx, cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := collectStatus(ctx, s)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if s.cfg.Format == formatJSON {
		return writeJSON(out, rows)
	}

	return printStatus(out, rows)
}

func collectStatus(ctx context.Context, s *session) ([]domainStatus, error) {
	appliedAt, err := appliedTimes(ctx, s)
	if err != nil {
		return nil, err
	}

	domains := s.registry.Domains()
	rows := make([]domainStatus, len(domains))

	for i, domain := range domains {
		current, ok, err := s.conn.GetDomainVersion(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("reading version of %s: %w", domain, err)
		}

		latest, _ := s.registry.Latest(domain)

		rows[i] = domainStatus{
			Domain:   domain,
			Recorded: "-",
			Latest:   latest.Version.String(),
			Pending:  len(s.registry.Pending(domain, current)),
		}

		if ok {
			rows[i].Recorded = current.String()
		}

		if at, ok := appliedAt[domain]; ok {
			rows[i].AppliedAt = &at
		}
	}

	return rows, nil
}

func appliedTimes(ctx context.Context, s *session) (map[string]time.Time, error) {
	h, ok := s.conn.(versionHistory)
	if !ok {
		return nil, nil
	}

	records, err := h.Tracker().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing domain versions: %w", err)
	}

	out := make(map[string]time.Time, len(records))
	for _, rec := range records {
		out[rec.Domain] = rec.AppliedAt
	}

	return out, nil
}

func printStatus(out io.Writer, rows []domainStatus) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "DOMAIN\tRECORDED\tLATEST\tPENDING\tAPPLIED AT")

	pending := 0

	for _, row := range rows {
		at := "-"
		if row.AppliedAt != nil {
			at = row.AppliedAt.Format(time.RFC3339)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", row.Domain, row.Recorded, row.Latest, row.Pending, at)

		pending += row.Pending
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Fprintf(out, "\n%d domain(s), %d pending unit(s).\n", len(rows), pending)

	return nil
}
