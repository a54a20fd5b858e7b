package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errDrift is returned when storage differs from what a domain's recorded version declares.
var errDrift = errors.New("schema drift detected")

var verifyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "verify",
	Short: "Check storage against each domain's recorded version",
	Long: `Compare every table of each domain with the declarations up to the
domain's recorded version and list the differences. Nothing is changed.`,
	RunE: runVerify,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	verifyCmd.Flags().StringSlice("domain", nil, "verify only these domains (repeatable)")
	rootCmd.AddCommand(verifyCmd)
}

type driftJSON struct {
	Domain   string   `json:"domain"`
	Findings []string `json:"findings"`
}

func runVerify(cmd *cobra.Command, _ []string) error {
	requested, _ := cmd.Flags().GetStringSlice("domain")
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
	rows := make([]driftJSON, 0, len(selected))
	drifted := 0

	for _, domain := range selected {
		diff, err := r.Verify(ctx, domain)
		if err != nil {
			return fmt.Errorf("verifying %s: %w", domain, err)
		}

		row := driftJSON{Domain: domain, Findings: make([]string, len(diff))}
		for i, f := range diff {
			row.Findings[i] = f.String()
		}

		if !diff.Empty() {
			drifted++
		}

		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()

	if s.cfg.Format == formatJSON {
		if err := writeJSON(out, rows); err != nil {
			return err
		}
	} else {
		for _, row := range rows {
			if len(row.Findings) == 0 {
				fmt.Fprintf(out, "%s: ok\n", row.Domain)

				continue
			}

			fmt.Fprintf(out, "%s: %d difference(s)\n", row.Domain, len(row.Findings))

			for _, f := range row.Findings {
				fmt.Fprintf(out, "  %s\n", f)
			}
		}
	}

	if drifted > 0 {
		return fmt.Errorf("%w in %d domain(s)", errDrift, drifted)
	}

	return nil
}
