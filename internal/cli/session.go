package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aqasim81/domain-migration-engine/internal/config"
	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/connector/memory"
	"github.com/aqasim81/domain-migration-engine/internal/connector/postgres"
	"github.com/aqasim81/domain-migration-engine/internal/connector/sqlite"
	"github.com/aqasim81/domain-migration-engine/internal/database"
	"github.com/aqasim81/domain-migration-engine/internal/domains"
	"github.com/aqasim81/domain-migration-engine/internal/logging"
	"github.com/aqasim81/domain-migration-engine/internal/migration"
	"github.com/aqasim81/domain-migration-engine/internal/runner"
)

// errDatabaseURLRequired is returned when a storage driver has no database URL.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, MIGRATE_DATABASE_URL, or database_url in config)",
)

// session is everything a command needs to talk to storage.
type session struct {
	cfg      *config.Config
	conn     connector.Connector
	registry *migration.Registry
	locker   runner.Locker
	logger   *slog.Logger
	closeFn  func()
}

// commandContext returns the command's context, or Background when the
// command was invoked directly rather than through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// openSession builds the registry, the logger and the connector for cfg.
func openSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*session, error) {
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	logger = logger.With("run_id", uuid.NewString())

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, registry: reg, logger: logger, closeFn: func() {}}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// loadRegistry registers the compiled-in domains and any YAML declarations
// under the migrations directory.
func loadRegistry(cfg *config.Config) (*migration.Registry, error) {
	reg := migration.NewRegistry()

	if err := domains.Register(reg); err != nil {
		return nil, fmt.Errorf("registering domains: %w", err)
	}

	if cfg.MigrationsDir == "" {
		return reg, nil
	}

	units, err := migration.LoadFromDir(cfg.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	if err := reg.Register(units...); err != nil {
		return nil, fmt.Errorf("registering migrations from %s: %w", cfg.MigrationsDir, err)
	}

	return reg, nil
}

func (s *session) connect(ctx context.Context) error {
	switch s.cfg.Driver {
	case config.DriverMemory:
		s.conn = memory.New()

		return nil
	case config.DriverSQLite:
		return s.connectSQLite(ctx)
	case config.DriverPostgres:
		return s.connectPostgres(ctx)
	default:
		return fmt.Errorf("%w: driver %q", config.ErrInvalidConfig, s.cfg.Driver)
	}
}

func (s *session) connectSQLite(ctx context.Context) error {
	if s.cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	s.logger.InfoContext(ctx, "opening database", "driver", s.cfg.Driver, "dsn", s.cfg.DatabaseURL)

	conn, err := sqlite.Open(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.conn = conn
	s.closeFn = func() { _ = conn.Close() }

	return nil
}

func (s *session) connectPostgres(ctx context.Context) error {
	if s.cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	s.logger.InfoContext(ctx, "connecting", "driver", s.cfg.Driver, "url", config.RedactURL(s.cfg.DatabaseURL))

	// One connection per parallel advisory lock, plus headroom for DDL.
	pool, err := database.NewPool(ctx, s.cfg.DatabaseURL,
		database.WithMaxConns(int32(s.cfg.Parallelism)*2+2), //nolint:gosec,mnd // Validate bounds parallelism to [1, MaxParallelism]
	)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	conn, err := postgres.New(ctx, pool,
		postgres.WithLockTimeout(s.cfg.LockTimeout),
		postgres.WithStatementTimeout(s.cfg.StatementTimeout),
		postgres.WithConcurrentIndexes(s.cfg.ConcurrentIndexes),
	)
	if err != nil {
		pool.Close()

		return fmt.Errorf("connecting to database: %w", err)
	}

	s.conn = conn
	s.locker = database.NewAdvisoryLocker(pool, database.WithLockLogger(s.logger))
	s.closeFn = pool.Close

	return nil
}

// runner builds a Runner over the session's connector and registry.
func (s *session) runner(opts ...runner.Option) *runner.Runner {
	base := []runner.Option{
		runner.WithLogger(s.logger),
		runner.WithParallelism(s.cfg.Parallelism),
	}

	if s.locker != nil {
		base = append(base, runner.WithLocker(s.locker))
	}

	return runner.New(s.conn, s.registry, append(base, opts...)...)
}

// selectDomains returns the requested domains, or every registered one when
// none was requested. An unknown name is an error.
func (s *session) selectDomains(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return s.registry.Domains(), nil
	}

	for _, d := range requested {
		if len(s.registry.Units(d)) == 0 {
			return nil, fmt.Errorf("%w: %s", runner.ErrUnknownDomain, d)
		}
	}

	return requested, nil
}

func (s *session) Close() {
	s.closeFn()
}
