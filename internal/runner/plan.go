package runner

import (
	"context"
	"fmt"
	"slices"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/plan"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
	"github.com/aqasim81/domain-migration-engine/internal/validator"
)

// PlannedUnit is a pending unit with the steps it would run. Steps of later
// units assume the earlier ones succeed.
type PlannedUnit struct {
	Unit  migration.Unit
	Steps []plan.Step
}

// Plan lists a domain's pending units and their steps without changing
// storage. A domain with no registered units has nothing pending.
func (r *Runner) Plan(ctx context.Context, domain string) ([]PlannedUnit, error) {
	if len(r.registry.Units(domain)) == 0 {
		return nil, nil
	}

	current, _, err := r.conn.GetDomainVersion(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", domain, err)
	}

	return r.planFrom(ctx, domain, current)
}

func (r *Runner) planFrom(ctx context.Context, domain string, after migration.Version) ([]PlannedUnit, error) {
	pending := r.registry.Pending(domain, after)
	if len(pending) == 0 {
		return nil, nil
	}

	state, err := r.describe(ctx, r.registry.Tables(domain))
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", domain, err)
	}

	out := make([]PlannedUnit, 0, len(pending))

	for i := range pending {
		u := &pending[i]

		r.transition(ctx, u, PreValidating)

		steps := plan.Build(u, state, r.conn)
		state = plan.Project(state, steps, r.conn)

		out = append(out, PlannedUnit{Unit: *u, Steps: steps})
	}

	return out, nil
}

// Verify compares storage with what the domain's recorded version declares:
// the latest declaration of every table still in use, and the absence of
// every table removed along the way.
func (r *Runner) Verify(ctx context.Context, domain string) (validator.Diff, error) {
	if len(r.registry.Units(domain)) == 0 {
		return nil, nil
	}

	recorded, ok, err := r.conn.GetDomainVersion(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", domain, err)
	}

	if !ok {
		return nil, nil
	}

	expected := &migration.Unit{Domain: domain, Version: recorded}
	tables := map[string]schema.TableSpec{}
	removed := map[string]bool{}

	var order []string

	for _, u := range r.registry.Units(domain) {
		if recorded.Less(u.Version) {
			break
		}

		for _, t := range u.Tables {
			if _, seen := tables[t.Name]; !seen {
				order = append(order, t.Name)
			}

			tables[t.Name] = t
			delete(removed, t.Name)
		}

		for _, name := range u.Removals {
			delete(tables, name)
			removed[name] = true
		}
	}

	for _, name := range order {
		if t, ok := tables[name]; ok {
			expected.Tables = append(expected.Tables, t)
		}
	}

	for name := range removed {
		expected.Removals = append(expected.Removals, name)
	}

	slices.Sort(expected.Removals)

	snaps, err := r.describe(ctx, expected.AffectedTables())
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", domain, err)
	}

	return r.validator.ValidateUnit(expected, snaps), nil
}
