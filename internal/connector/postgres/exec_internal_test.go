package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsConcurrentIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{name: "concurrent", sql: `CREATE INDEX CONCURRENTLY idx_a ON t (a)`, want: true},
		{name: "plain", sql: `CREATE INDEX idx_a ON t (a)`, want: false},
		{name: "mixed", sql: "ALTER TABLE t ADD COLUMN b int;\nCREATE UNIQUE INDEX CONCURRENTLY uq_b ON t (b)", want: true},
		{name: "not an index", sql: `DROP TABLE IF EXISTS t`, want: false},
		{name: "empty", sql: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := containsConcurrentIndex(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainsConcurrentIndex_InvalidSQL(t *testing.T) {
	t.Parallel()

	_, err := containsConcurrentIndex("CREATE INDEXX")
	require.Error(t, err)
}
