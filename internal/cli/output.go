package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/runner"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd // two-space column gap
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	return nil
}

type resultJSON struct {
	Domain  string   `json:"domain"`
	Status  string   `json:"status"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Applied []string `json:"applied"`
	Error   string   `json:"error,omitempty"`
}

func versionStrings(vs []migration.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}

	return out
}

// printReport writes one line per domain and then every failure in full.
func printReport(out io.Writer, format string, report *runner.Report) error {
	if format == formatJSON {
		rows := make([]resultJSON, len(report.Results))

		for i, res := range report.Results {
			rows[i] = resultJSON{
				Domain:  res.Domain,
				Status:  string(res.Status),
				From:    res.From.String(),
				To:      res.To.String(),
				Applied: versionStrings(res.Applied),
			}

			if res.Err != nil {
				rows[i].Error = res.Err.Error()
			}
		}

		return writeJSON(out, rows)
	}

	fmt.Fprintln(out)

	tw := newTable(out)
	fmt.Fprintln(tw, "DOMAIN\tSTATUS\tFROM\tTO\tAPPLIED")

	for _, res := range report.Results {
		applied := strings.Join(versionStrings(res.Applied), ",")
		if applied == "" {
			applied = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", res.Domain, res.Status, res.From, res.To, applied)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	failed := report.Failed()
	for _, res := range failed {
		fmt.Fprintf(out, "\n%s: %v\n", res.Domain, res.Err)
	}

	fmt.Fprintf(out, "\n%d domain(s), %d failed.\n", len(report.Results), len(failed))

	return nil
}
