// Package backup copies tables aside before a destructive change and puts
// them back when the change has to be undone.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/logging"
)

// Copy pairs a live table with its backup copy.
type Copy struct {
	Table string `json:"table"`
	Temp  string `json:"temp"`
}

// Handle records what a snapshot captured.
type Handle struct {
	Copies  []Copy
	Created []string // tables absent at snapshot time; Restore drops them
}

// Temps returns the backup copy names.
func (h *Handle) Temps() []string {
	out := make([]string, len(h.Copies))
	for i, c := range h.Copies {
		out[i] = c.Temp
	}

	return out
}

// HandleFor builds a handle over existing backup copies, as found by
// FindIncomplete, so an operator can restore or discard them.
func HandleFor(temps ...string) *Handle {
	h := &Handle{Copies: make([]Copy, len(temps))}
	for i, t := range temps {
		h.Copies[i] = Copy{Table: connector.BaseName(t), Temp: t}
	}

	return h
}

// Manager takes and restores backups through a connector.
type Manager struct {
	conn   connector.Connector
	logger *slog.Logger
}

// New creates a Manager. A nil logger discards output.
func New(conn connector.Connector, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Manager{conn: conn, logger: logger}
}

// Snapshot copies every existing table to its temp name and records the
// ones that do not exist yet. When a copy fails, copies already taken are
// dropped best-effort and the error is returned.
func (m *Manager) Snapshot(ctx context.Context, tables []string) (*Handle, error) {
	h := &Handle{}

	for _, table := range tables {
		exists, err := m.conn.TableExists(ctx, table)
		if err != nil {
			m.Discard(ctx, h)

			return nil, fmt.Errorf("checking %s: %w", table, err)
		}

		if !exists {
			h.Created = append(h.Created, table)

			continue
		}

		m.dropStale(ctx, table)

		temp, err := m.conn.CopyTableToTemp(ctx, table)
		if err != nil {
			m.Discard(ctx, h)

			return nil, fmt.Errorf("backing up %s: %w", table, err)
		}

		h.Copies = append(h.Copies, Copy{Table: table, Temp: temp})
		m.logger.DebugContext(ctx, "table backed up", "table", table, "temp", temp)
	}

	return h, nil
}

// Restore drops tables created since the snapshot and puts every copy back
// under its original name. It attempts every table and joins the failures;
// a copy that could not be restored is left in place for the next start-up.
func (m *Manager) Restore(ctx context.Context, h *Handle) error {
	var errs []error

	for _, table := range h.Created {
		if err := m.conn.DropTable(ctx, table); err != nil {
			errs = append(errs, fmt.Errorf("dropping %s: %w", table, err))
		}
	}

	for _, c := range h.Copies {
		if err := m.restoreOne(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", c.Table, err))

			continue
		}

		m.logger.InfoContext(ctx, "table restored", "table", c.Table)
	}

	return errors.Join(errs...)
}

func (m *Manager) restoreOne(ctx context.Context, c Copy) error {
	if r, ok := m.conn.(connector.TableReplacer); ok {
		return r.ReplaceTable(ctx, c.Temp, c.Table)
	}

	if err := m.conn.DropTable(ctx, c.Table); err != nil {
		return err
	}

	return m.conn.RenameTable(ctx, c.Temp, c.Table)
}

// Discard drops the backup copies. Failures are logged; a copy left behind
// is reported by FindIncomplete on the next run.
func (m *Manager) Discard(ctx context.Context, h *Handle) {
	for _, c := range h.Copies {
		if err := m.conn.DropTable(ctx, c.Temp); err != nil {
			m.logger.WarnContext(ctx, "could not discard backup", "table", c.Table, "temp", c.Temp, "error", err)
		}
	}
}

// Retire drops the copies of a committed unit. A copy that cannot be
// dropped is renamed to its stale name, so it neither blocks the next
// snapshot of the same table nor reads as an interrupted run.
func (m *Manager) Retire(ctx context.Context, h *Handle) {
	for _, c := range h.Copies {
		err := m.conn.DropTable(ctx, c.Temp)
		if err == nil {
			continue
		}

		m.logger.WarnContext(ctx, "could not discard backup", "table", c.Table, "temp", c.Temp, "error", err)

		stale := connector.StaleName(c.Table)
		if err := m.conn.DropTable(ctx, stale); err != nil {
			m.logger.WarnContext(ctx, "backup left in place", "temp", c.Temp, "error", err)

			continue
		}

		if err := m.conn.RenameTable(ctx, c.Temp, stale); err != nil {
			m.logger.WarnContext(ctx, "backup left in place", "temp", c.Temp, "error", err)

			continue
		}

		m.logger.InfoContext(ctx, "backup retired", "temp", c.Temp, "stale", stale)
	}
}

// DropStale drops the retired copies of the given tables. Stale copies of
// any other table are left alone. Failures are logged.
func (m *Manager) DropStale(ctx context.Context, declared []string) error {
	tables, err := m.conn.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	for _, t := range tables {
		if !connector.IsStaleName(t) || !slices.Contains(declared, connector.StaleBaseName(t)) {
			continue
		}

		if err := m.conn.DropTable(ctx, t); err != nil {
			m.logger.WarnContext(ctx, "could not drop stale backup", "table", t, "error", err)
		}
	}

	return nil
}

// dropStale removes the retired copy of table before a new snapshot, so the
// index names the copy carries are free again.
func (m *Manager) dropStale(ctx context.Context, table string) {
	stale := connector.StaleName(table)

	exists, err := m.conn.TableExists(ctx, stale)
	if err != nil {
		m.logger.WarnContext(ctx, "could not check for stale backup", "table", stale, "error", err)

		return
	}

	if !exists {
		return
	}

	if err := m.conn.DropTable(ctx, stale); err != nil {
		m.logger.WarnContext(ctx, "could not drop stale backup", "table", stale, "error", err)
	}
}

// FindIncomplete lists backup copies left over from an interrupted run.
func (m *Manager) FindIncomplete(ctx context.Context) ([]string, error) {
	tables, err := m.conn.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	var out []string

	for _, t := range tables {
		if connector.IsTempName(t) {
			out = append(out, t)
		}
	}

	return out, nil
}
