// Package config loads settings from a YAML file and MIGRATE_* environment
// variables. Command-line flags override both and are applied by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Default values for configuration fields.
const (
	DefaultDriver           = DriverPostgres
	DefaultLockTimeout      = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultTargetPGVersion  = 14
	DefaultParallelism      = 1
	MaxParallelism          = 64
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultFormat           = "text"
)

// ErrInvalidConfig indicates a field holds a value outside its allowed set.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	Driver            string
	DatabaseURL       string
	MigrationsDir     string // optional directory of YAML unit declarations
	LockTimeout       time.Duration
	StatementTimeout  time.Duration
	ConcurrentIndexes bool
	TargetPGVersion   int
	Parallelism       int
	LogLevel          string
	LogFormat         string
	Format            string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	Driver            string `yaml:"driver"`
	DatabaseURL       string `yaml:"database_url"`
	MigrationsDir     string `yaml:"migrations_dir"`
	LockTimeout       string `yaml:"lock_timeout"`
	StatementTimeout  string `yaml:"statement_timeout"`
	ConcurrentIndexes bool   `yaml:"concurrent_indexes"`
	TargetPGVersion   int    `yaml:"target_pg_version"`
	Parallelism       int    `yaml:"parallelism"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	Format            string `yaml:"format"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Driver:           DefaultDriver,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
		TargetPGVersion:  DefaultTargetPGVersion,
		Parallelism:      DefaultParallelism,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		Format:           DefaultFormat,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.Driver, raw.Driver)
	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.MigrationsDir, raw.MigrationsDir)
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.LogFormat, raw.LogFormat)
	setString(&cfg.Format, raw.Format)

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing statement_timeout %q: %w", raw.StatementTimeout, err)
		}

		cfg.StatementTimeout = d
	}

	if raw.TargetPGVersion != 0 {
		cfg.TargetPGVersion = raw.TargetPGVersion
	}

	if raw.Parallelism != 0 {
		cfg.Parallelism = raw.Parallelism
	}

	cfg.ConcurrentIndexes = raw.ConcurrentIndexes

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// envConfig holds the MIGRATE_* overlay. Unset variables leave their
// pointer nil so Config keeps the file or default value.
type envConfig struct {
	Driver            *string        `env:"MIGRATE_DRIVER"`
	DatabaseURL       *string        `env:"MIGRATE_DATABASE_URL"`
	MigrationsDir     *string        `env:"MIGRATE_MIGRATIONS_DIR"`
	LockTimeout       *time.Duration `env:"MIGRATE_LOCK_TIMEOUT"`
	StatementTimeout  *time.Duration `env:"MIGRATE_STATEMENT_TIMEOUT"`
	ConcurrentIndexes *bool          `env:"MIGRATE_CONCURRENT_INDEXES"`
	TargetPGVersion   *int           `env:"MIGRATE_TARGET_PG_VERSION"`
	Parallelism       *int           `env:"MIGRATE_PARALLELISM"`
	LogLevel          *string        `env:"MIGRATE_LOG_LEVEL"`
	LogFormat         *string        `env:"MIGRATE_LOG_FORMAT"`
	Format            *string        `env:"MIGRATE_FORMAT"`
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
func MergeEnv(cfg *Config) error {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	override(&cfg.Driver, raw.Driver)
	override(&cfg.DatabaseURL, raw.DatabaseURL)
	override(&cfg.MigrationsDir, raw.MigrationsDir)
	override(&cfg.LockTimeout, raw.LockTimeout)
	override(&cfg.StatementTimeout, raw.StatementTimeout)
	override(&cfg.ConcurrentIndexes, raw.ConcurrentIndexes)
	override(&cfg.TargetPGVersion, raw.TargetPGVersion)
	override(&cfg.Parallelism, raw.Parallelism)
	override(&cfg.LogLevel, raw.LogLevel)
	override(&cfg.LogFormat, raw.LogFormat)
	override(&cfg.Format, raw.Format)

	return nil
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	if !slices.Contains([]string{DriverPostgres, DriverSQLite, DriverMemory}, c.Driver) {
		return fmt.Errorf("%w: driver %q (want postgres, sqlite or memory)", ErrInvalidConfig, c.Driver)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	if !slices.Contains([]string{"text", "json"}, c.Format) {
		return fmt.Errorf("%w: format %q", ErrInvalidConfig, c.Format)
	}

	if c.Parallelism < 1 || c.Parallelism > MaxParallelism {
		return fmt.Errorf("%w: parallelism must be between 1 and %d, got %d", ErrInvalidConfig, MaxParallelism, c.Parallelism)
	}

	return nil
}
