// Package runner brings every registered domain to its latest version. Each
// domain is migrated one unit at a time through a validate, back up, apply,
// validate, commit cycle, and rolled back from the backup on any failure.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aqasim81/domain-migration-engine/internal/backup"
	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/logging"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/plan"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
	"github.com/aqasim81/domain-migration-engine/internal/validator"
)

// Runner applies pending units from a registry through a connector.
type Runner struct {
	conn        connector.Connector
	registry    *migration.Registry
	validator   *validator.Validator
	backups     *backup.Manager
	locker      Locker
	logger      *slog.Logger
	parallelism int
	dryRun      bool
	onProgress  func(Event)
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism bounds how many domains migrate at once. Values below 1 mean 1.
func WithParallelism(n int) Option {
	return func(r *Runner) { r.parallelism = n }
}

// WithDryRun resolves and validates without changing storage.
func WithDryRun(b bool) Option {
	return func(r *Runner) { r.dryRun = b }
}

// WithLocker replaces the in-process per-domain lock.
func WithLocker(l Locker) Option {
	return func(r *Runner) { r.locker = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithProgressCallback sets a function called on every state transition.
// It may be called from several goroutines when parallelism is above 1.
func WithProgressCallback(fn func(Event)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// New creates a Runner.
func New(conn connector.Connector, registry *migration.Registry, opts ...Option) *Runner {
	r := &Runner{
		conn:        conn,
		registry:    registry,
		validator:   validator.New(conn),
		parallelism: 1,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logging.Discard()
	}

	if r.locker == nil {
		r.locker = newLocalLocker()
	}

	if r.parallelism < 1 {
		r.parallelism = 1
	}

	r.backups = backup.New(conn, r.logger)

	return r
}

// MigrateAll migrates every registered domain, in sorted name order. A
// returned error means the batch could not start; domain failures are
// reported in the Report.
func (r *Runner) MigrateAll(ctx context.Context) (*Report, error) {
	domains := r.registry.Domains()

	blocked, err := r.leftoverBackups(ctx, domains)
	if err != nil {
		return nil, err
	}

	report := &Report{Results: make([]DomainResult, len(domains))}
	sem := semaphore.NewWeighted(int64(r.parallelism))

	var wg sync.WaitGroup

	for i, domain := range domains {
		if tables, ok := blocked[domain]; ok {
			report.Results[i] = r.blockedResult(ctx, domain, tables)

			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			report.Results[i] = DomainResult{Domain: domain, Status: StatusFailed, Err: fmt.Errorf("domain %s: %w", domain, err)}

			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer sem.Release(1)

			report.Results[i] = r.migrate(ctx, domain)
		}()
	}

	wg.Wait()

	return report, nil
}

// Migrate migrates a single domain. A domain with no registered units is
// already current and storage is not consulted.
func (r *Runner) Migrate(ctx context.Context, domain string) DomainResult {
	if len(r.registry.Units(domain)) == 0 {
		r.fireProgress(Event{Domain: domain, State: Current})

		return DomainResult{Domain: domain, Status: StatusUpToDate}
	}

	blocked, err := r.leftoverBackups(ctx, []string{domain})
	if err != nil {
		return DomainResult{Domain: domain, Status: StatusFailed, Err: err}
	}

	if tables, ok := blocked[domain]; ok {
		return r.blockedResult(ctx, domain, tables)
	}

	return r.migrate(ctx, domain)
}

// leftoverBackups attributes backup tables from an interrupted run to the
// domains that declare their base table. A leftover that none of the
// registered domains declares fails the whole call.
func (r *Runner) leftoverBackups(ctx context.Context, domains []string) (map[string][]string, error) {
	if !r.dryRun {
		var declared []string
		for _, domain := range r.registry.Domains() {
			declared = append(declared, r.registry.Tables(domain)...)
		}

		if err := r.backups.DropStale(ctx, declared); err != nil {
			return nil, fmt.Errorf("scanning for leftover backups: %w", err)
		}
	}

	temps, err := r.backups.FindIncomplete(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning for leftover backups: %w", err)
	}

	blocked := make(map[string][]string)

	var orphans []string

	for _, temp := range temps {
		base := connector.BaseName(temp)
		owned := false

		for _, domain := range r.registry.Domains() {
			if !slices.Contains(r.registry.Tables(domain), base) {
				continue
			}

			owned = true

			if slices.Contains(domains, domain) {
				blocked[domain] = append(blocked[domain], temp)
			}
		}

		if !owned {
			orphans = append(orphans, temp)
		}
	}

	if len(orphans) > 0 {
		return nil, &backup.IncompleteError{Tables: orphans}
	}

	return blocked, nil
}

func (r *Runner) blockedResult(ctx context.Context, domain string, tables []string) DomainResult {
	err := fmt.Errorf("domain %s: %w", domain, &backup.IncompleteError{Tables: tables})

	r.logger.ErrorContext(ctx, "leftover backup blocks domain", "domain", domain, "tables", tables)
	r.fireProgress(Event{Domain: domain, State: Failed, Err: err})

	return DomainResult{Domain: domain, Status: StatusFailed, Err: err}
}

// migrate runs the state machine for one domain until it is current or failed.
func (r *Runner) migrate(ctx context.Context, domain string) DomainResult {
	start := time.Now()
	res := DomainResult{Domain: domain, Status: StatusUpToDate}

	r.fireProgress(Event{Domain: domain, State: Resolving})

	current, _, err := r.conn.GetDomainVersion(ctx, domain)
	if err != nil {
		return r.fail(ctx, res, start, fmt.Errorf("resolving %s: %w", domain, err))
	}

	res.From = current
	res.To = current

	if r.dryRun {
		return r.dryRunResult(ctx, res, start)
	}

	for {
		unit, ok := r.registry.Next(domain, current)
		if !ok {
			break
		}

		r.fireProgress(Event{Domain: domain, Version: unit.Version, State: Resolving})

		applied, err := r.applyUnit(ctx, &unit)
		if err != nil {
			return r.fail(ctx, res, start, fmt.Errorf("migrating %s: %w", unit.ID(), err))
		}

		current = unit.Version
		res.To = current

		if !applied {
			r.logger.InfoContext(ctx, "unit recorded by another migrator", "domain", domain, "version", current.String())

			continue
		}

		res.Applied = append(res.Applied, current)
		res.Status = StatusMigrated

		r.logger.InfoContext(ctx, "unit applied", "domain", domain, "version", current.String(), "name", unit.Name)
	}

	r.fireProgress(Event{Domain: domain, Version: current, State: Current, Duration: time.Since(start)})

	return res
}

func (r *Runner) dryRunResult(ctx context.Context, res DomainResult, start time.Time) DomainResult {
	planned, err := r.planFrom(ctx, res.Domain, res.From)
	if err != nil {
		return r.fail(ctx, res, start, err)
	}

	for _, p := range planned {
		res.Applied = append(res.Applied, p.Unit.Version)
		res.To = p.Unit.Version
	}

	if len(planned) > 0 {
		res.Status = StatusDryRun
	}

	r.fireProgress(Event{Domain: res.Domain, Version: res.From, State: Current, Duration: time.Since(start)})

	return res
}

func (r *Runner) fail(ctx context.Context, res DomainResult, start time.Time, err error) DomainResult {
	res.Status = StatusFailed
	res.Err = err

	r.logger.ErrorContext(ctx, "domain failed", "domain", res.Domain, "version", res.To.String(), "error", err)
	r.fireProgress(Event{Domain: res.Domain, Version: res.To, State: Failed, Err: err, Duration: time.Since(start)})

	return res
}

// applyUnit takes one unit from PreValidating through Committing. It
// reports false when the unit was already recorded by the time the domain
// lock was held.
func (r *Runner) applyUnit(ctx context.Context, u *migration.Unit) (bool, error) {
	r.transition(ctx, u, PreValidating)

	snaps, err := r.describe(ctx, u.AffectedTables())
	if err != nil {
		return false, err
	}

	steps := plan.Build(u, snaps, r.conn)
	satisfied := r.validator.ValidateUnit(u, snaps).Empty() && len(steps) == 0

	release, err := r.locker.Acquire(ctx, u.Domain)
	if err != nil {
		return false, fmt.Errorf("acquiring domain lock: %w", err)
	}
	defer release()

	// Another process may have committed this unit while we waited.
	recorded, _, err := r.conn.GetDomainVersion(ctx, u.Domain)
	if err != nil {
		return false, err
	}

	if !recorded.Less(u.Version) {
		return false, nil
	}

	if satisfied {
		r.transition(ctx, u, Committing)

		return true, r.conn.SetDomainVersion(ctx, u.Domain, u.Version)
	}

	r.transition(ctx, u, BackingUp)

	h, err := r.backups.Snapshot(ctx, u.AffectedTables())
	if err != nil {
		return false, err
	}

	if err := r.applyBackedUp(ctx, u, steps); err != nil {
		return false, r.rollback(ctx, u, h, err)
	}

	r.backups.Retire(ctx, h)

	return true, nil
}

// applyBackedUp runs the steps, validates and commits. Any error it returns
// must be rolled back by the caller.
func (r *Runner) applyBackedUp(ctx context.Context, u *migration.Unit, steps []plan.Step) error {
	state := State(-1)

	for _, step := range steps {
		if s := stateOf(step.Phase); s != state {
			state = s
			r.transition(ctx, u, state)
		}

		if err := step.Apply(ctx, r.conn); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}

	r.transition(ctx, u, PostValidating)

	snaps, err := r.describe(ctx, u.AffectedTables())
	if err != nil {
		return err
	}

	if diff := r.validator.ValidateUnit(u, snaps); !diff.Empty() {
		return &ValidationError{Domain: u.Domain, Version: u.Version, Diff: diff}
	}

	r.transition(ctx, u, Committing)

	if err := r.conn.SetDomainVersion(ctx, u.Domain, u.Version); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}

	return nil
}

// rollback restores the snapshot. It runs even when ctx is cancelled.
func (r *Runner) rollback(ctx context.Context, u *migration.Unit, h *backup.Handle, cause error) error {
	r.transition(ctx, u, RollingBack)
	r.logger.WarnContext(ctx, "rolling back", "domain", u.Domain, "version", u.Version.String(), "error", cause)

	if err := r.backups.Restore(context.WithoutCancel(ctx), h); err != nil {
		return errors.Join(cause, fmt.Errorf("rolling back: %w", err))
	}

	return cause
}

func (r *Runner) describe(ctx context.Context, tables []string) (map[string]*schema.TableSnapshot, error) {
	out := make(map[string]*schema.TableSnapshot, len(tables))

	for _, name := range tables {
		snap, err := r.conn.DescribeTable(ctx, name)
		if err != nil {
			return nil, err
		}

		out[name] = snap
	}

	return out, nil
}

func (r *Runner) transition(ctx context.Context, u *migration.Unit, s State) {
	r.logger.DebugContext(ctx, "state", "domain", u.Domain, "version", u.Version.String(), "state", s.String())
	r.fireProgress(Event{Domain: u.Domain, Version: u.Version, State: s})
}

func (r *Runner) fireProgress(event Event) {
	if r.onProgress != nil {
		r.onProgress(event)
	}
}
