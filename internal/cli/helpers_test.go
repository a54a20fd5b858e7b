package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/config"
	"github.com/aqasim81/domain-migration-engine/internal/connector/sqlite"
)

// setupTestConfig sets AppConfig for the duration of the test and restores it on cleanup.
func setupTestConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()

	old := AppConfig
	cfg := config.New()
	cfg.Driver = config.DriverMemory
	cfg.LogLevel = "error"

	if mutate != nil {
		mutate(cfg)
	}

	AppConfig = cfg

	t.Cleanup(func() { AppConfig = old })

	return cfg
}

// useSQLite points AppConfig at a fresh database file and returns its path.
func useSQLite(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "domains.db")

	setupTestConfig(t, func(c *config.Config) {
		c.Driver = config.DriverSQLite
		c.DatabaseURL = path
	})

	return path
}

// openSQLite opens the database file behind a test configuration directly.
func openSQLite(t *testing.T, path string) *sqlite.Connector {
	t.Helper()

	conn, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return conn
}

// newTestCmd builds a command wired to run with stdout captured. Logs go to
// a separate buffer so they never mix with command output.
func newTestCmd(run func(*cobra.Command, []string) error, addFlags func(*cobra.Command)) (*cobra.Command, *bytes.Buffer) {
	out := new(bytes.Buffer)
	cmd := &cobra.Command{RunE: run}

	if addFlags != nil {
		addFlags(cmd)
	}

	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))

	return cmd, out
}

// runCmd executes run with the given flag values.
func runCmd(
	t *testing.T,
	run func(*cobra.Command, []string) error,
	addFlags func(*cobra.Command),
	flags map[string]string,
	args ...string,
) (string, error) {
	t.Helper()

	cmd, out := newTestCmd(run, addFlags)

	for name, value := range flags {
		require.NoError(t, cmd.Flags().Set(name, value))
	}

	err := cmd.RunE(cmd, args)

	return out.String(), err
}
