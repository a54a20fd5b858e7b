//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/domain-migration-engine/internal/connector/postgres"
	"github.com/aqasim81/domain-migration-engine/internal/database"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its connection string.
// The container is automatically terminated when the test completes.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// SetupPostgres starts a container and returns a pool sized for parallel
// domains. The pool is closed when the test completes.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := database.NewPool(context.Background(), SetupPostgresDSN(t), database.WithMaxConns(10))
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	return pool
}

// SetupConnector returns a PostgreSQL connector over a fresh container.
func SetupConnector(t *testing.T, opts ...postgres.Option) (*postgres.Connector, *pgxpool.Pool) {
	t.Helper()

	pool := SetupPostgres(t)

	conn, err := postgres.New(context.Background(), pool, opts...)
	require.NoError(t, err)

	return conn, pool
}
