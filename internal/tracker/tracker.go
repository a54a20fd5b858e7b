package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
)

// Record is one row of the domain_versions table.
type Record struct {
	Domain    string
	Version   migration.Version
	AppliedAt time.Time
}

// Tracker manages the domain_versions table.
type Tracker struct {
	pool *pgxpool.Pool
}

// New creates a Tracker backed by the given connection pool.
func New(pool *pgxpool.Pool) *Tracker {
	return &Tracker{pool: pool}
}

// EnsureTable creates the domain_versions table if it does not exist.
func (t *Tracker) EnsureTable(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, createSchemaSQL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTableCreation, err)
	}

	return nil
}

// Get returns the recorded version of a domain. ok is false when the
// domain has never been migrated.
func (t *Tracker) Get(ctx context.Context, domain string) (migration.Version, bool, error) {
	var v migration.Version

	err := t.pool.QueryRow(ctx, getVersionSQL, domain).Scan(&v.Major, &v.Minor, &v.Patch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return migration.Version{}, false, nil
		}

		return migration.Version{}, false, fmt.Errorf("getting version of domain %s: %w", domain, err)
	}

	return v, true, nil
}

// List returns every recorded domain ordered by name.
func (t *Tracker) List(ctx context.Context) ([]Record, error) {
	rows, err := t.pool.Query(ctx, listVersionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying domain versions: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		if scanErr := row.Scan(&r.Domain, &r.Version.Major, &r.Version.Minor, &r.Version.Patch, &r.AppliedAt); scanErr != nil {
			return Record{}, fmt.Errorf("scanning domain version row: %w", scanErr)
		}

		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning domain versions: %w", err)
	}

	return records, nil
}

// Set records v as the domain's version. The row is updated only when v is
// not lower than what is stored; a lower version returns connector.ErrVersionRegression.
func (t *Tracker) Set(ctx context.Context, domain string, v migration.Version) error {
	tag, err := t.pool.Exec(ctx, setVersionSQL, domain, v.Major, v.Minor, v.Patch)
	if err != nil {
		return fmt.Errorf("recording domain %s at %s: %w", domain, v, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("domain %s at %s: %w", domain, v, connector.ErrVersionRegression)
	}

	return nil
}
