package runner

import (
	"errors"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
)

// Status is the outcome of one domain.
type Status string

// Domain outcomes.
const (
	StatusUpToDate Status = "up-to-date"
	StatusMigrated Status = "migrated"
	StatusFailed   Status = "failed"
	StatusDryRun   Status = "dry-run"
)

// DomainResult describes what happened to one domain. In a dry run Applied
// lists the units that would be applied.
type DomainResult struct {
	Domain  string
	Status  Status
	From    migration.Version
	To      migration.Version
	Applied []migration.Version
	Err     error
}

// Report aggregates every domain of a batch, in the order they were run.
type Report struct {
	Results []DomainResult
}

// Failed returns the failed domains.
func (r *Report) Failed() []DomainResult {
	var out []DomainResult

	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}

	return out
}

// Err joins every domain failure, or returns nil when all succeeded.
func (r *Report) Err() error {
	var errs []error

	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}

	return errors.Join(errs...)
}
