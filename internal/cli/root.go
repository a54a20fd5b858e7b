package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aqasim81/domain-migration-engine/internal/config"
)

const version = "0.1.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// rootCmd is the base command for the migrate CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "migrate",
	Version: version,
	Short:   "Versioned schema migrations for independent domains",
	Long: `migrate brings every registered domain to its latest declared schema.
Each domain carries its own version chain; units are validated, backed up,
applied and validated again, and rolled back from the backup on any failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	addRootFlags(rootCmd.PersistentFlags())
}

func addRootFlags(fs *pflag.FlagSet) {
	fs.String("config", "migrate.yml", "path to configuration file")
	fs.String("driver", "", "storage driver (postgres, sqlite, memory)")
	fs.String("database-url", "", "connection string or SQLite path")
	fs.String("migrations-dir", "", "directory of YAML unit declarations")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (text, json)")
	fs.String("format", "", "output format (text, json)")
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := config.MergeEnv(cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	mergeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	fields := map[string]*string{
		"driver":         &cfg.Driver,
		"database-url":   &cfg.DatabaseURL,
		"migrations-dir": &cfg.MigrationsDir,
		"log-level":      &cfg.LogLevel,
		"log-format":     &cfg.LogFormat,
		"format":         &cfg.Format,
	}

	for name, dst := range fields {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
}
