package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSeverity is returned by ParseSeverity for an unrecognized label.
var ErrUnknownSeverity = errors.New("unknown severity")

// Severity ranks how much a statement can hurt a live table.
type Severity int

const (
	// Safe means no lock or rewrite concern.
	Safe Severity = iota
	// Low is a brief lock on a small or new table.
	Low
	// Medium is a lock that blocks writes for a bounded time.
	Medium
	// High blocks reads or writes for the duration of a scan or rewrite.
	High
	// Critical loses data or drops a table outright.
	Critical
)

var severityLabels = [...]string{"SAFE", "LOW", "MEDIUM", "HIGH", "CRITICAL"} //nolint:gochecknoglobals // lookup table

func (s Severity) String() string {
	if s < Safe || int(s) >= len(severityLabels) {
		return "UNKNOWN"
	}

	return severityLabels[s]
}

// MarshalText encodes the severity as its label.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a label produced by MarshalText.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}

	*s = v

	return nil
}

// ParseSeverity accepts a label in any case, e.g. "high" or "HIGH".
func ParseSeverity(label string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(label))

	for i, l := range severityLabels {
		if l == upper {
			return Severity(i), nil
		}
	}

	return Safe, fmt.Errorf("%w: %q", ErrUnknownSeverity, label)
}
