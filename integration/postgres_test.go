//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/connector"
	"github.com/aqasim81/domain-migration-engine/internal/connector/postgres"
	"github.com/aqasim81/domain-migration-engine/internal/schema"
)

func scheduleSpec() schema.TableSpec {
	return schema.TableSpec{
		Name: "schedule",
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: schema.TypeIdentifier, Length: 36},
			{Name: "status", Type: schema.TypeString, Length: 16, Default: "'pending'"},
			{Name: "run_every", Type: schema.TypeInt, Nullable: true},
		},
		Indexes: []schema.IndexSpec{
			{Kind: schema.IndexPrimary, Columns: []string{"id"}},
			{Kind: schema.IndexPlain, Columns: []string{"status"}},
		},
	}
}

func TestConnector_describeMatchesDeclaredTypes(t *testing.T) {
	t.Parallel()

	conn, _ := SetupConnector(t)
	ctx := context.Background()

	require.NoError(t, conn.CreateTable(ctx, scheduleSpec()))

	snap, err := conn.DescribeTable(ctx, "schedule")
	require.NoError(t, err)
	require.NotNil(t, snap)

	for _, col := range scheduleSpec().Columns {
		got, ok := snap.Column(col.Name)
		require.True(t, ok, col.Name)
		assert.Equal(t, postgres.ColumnType(col), got.DataType, col.Name)
	}

	pk, ok := snap.Index("schedule_pkey")
	require.True(t, ok)
	assert.Equal(t, schema.IndexPrimary, pk.Kind)

	idx, ok := snap.Index("idx_schedule_status")
	require.True(t, ok)
	assert.Equal(t, []string{"status"}, idx.Columns)

	absent, err := conn.DescribeTable(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestConnector_concurrentIndexAndDrop(t *testing.T) {
	t.Parallel()

	conn, _ := SetupConnector(t, postgres.WithConcurrentIndexes(true))
	ctx := context.Background()

	spec := scheduleSpec()
	spec.Indexes = spec.Indexes[:1]
	require.NoError(t, conn.CreateTable(ctx, spec))

	idx := schema.IndexSpec{Name: "idx_schedule_run_every", Kind: schema.IndexPlain, Columns: []string{"run_every"}}
	require.NoError(t, conn.CreateIndex(ctx, "schedule", idx))
	require.NoError(t, conn.DropIndex(ctx, "schedule", "idx_schedule_run_every"))
	require.NoError(t, conn.DropIndex(ctx, "schedule", "schedule_pkey"))

	snap, err := conn.DescribeTable(ctx, "schedule")
	require.NoError(t, err)
	assert.Empty(t, snap.Indexes)
}

func TestConnector_copyAndReplaceRestoresIndexNames(t *testing.T) {
	t.Parallel()

	conn, pool := SetupConnector(t)
	ctx := context.Background()

	require.NoError(t, conn.CreateTable(ctx, scheduleSpec()))

	_, err := pool.Exec(ctx, `INSERT INTO schedule (id) VALUES ('a'), ('b')`)
	require.NoError(t, err)

	temp, err := conn.CopyTableToTemp(ctx, "schedule")
	require.NoError(t, err)
	assert.Equal(t, connector.TempName("schedule"), temp)

	// Damage the live table, then put the backup back.
	require.NoError(t, conn.AddColumn(ctx, "schedule", schema.ColumnSpec{Name: "extra", Type: schema.TypeInt, Nullable: true}))
	_, err = pool.Exec(ctx, `DELETE FROM schedule`)
	require.NoError(t, err)

	require.NoError(t, conn.ReplaceTable(ctx, temp, "schedule"))

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schedule`).Scan(&rows))
	assert.Equal(t, 2, rows)

	snap, err := conn.DescribeTable(ctx, "schedule")
	require.NoError(t, err)

	_, hasExtra := snap.Column("extra")
	assert.False(t, hasExtra)

	_, ok := snap.Index("schedule_pkey")
	assert.True(t, ok)
	_, ok = snap.Index("idx_schedule_status")
	assert.True(t, ok)

	tables, err := conn.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"schedule"}, tables)
}

func TestConnector_lockTimeoutAbortsBlockedDDL(t *testing.T) {
	t.Parallel()

	conn, pool := SetupConnector(t, postgres.WithLockTimeout(200*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, conn.CreateTable(ctx, scheduleSpec()))

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })

	_, err = tx.Exec(ctx, `LOCK TABLE schedule IN ACCESS EXCLUSIVE MODE`)
	require.NoError(t, err)

	err = conn.AddColumn(ctx, "schedule", schema.ColumnSpec{Name: "extra", Type: schema.TypeInt, Nullable: true})
	require.ErrorIs(t, err, connector.ErrStorage)
}
