package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := logging.New(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("unit applied", "domain", "Asset", "version", "0.0.1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "unit applied", rec["msg"])
	assert.Equal(t, "Asset", rec["domain"])
}

func TestNew_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := logging.New(&buf, "debug", "text")
	require.NoError(t, err)

	logger.Debug("state", "state", "applying")
	assert.Contains(t, buf.String(), "state=applying")
}

func TestNew_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := logging.New(&bytes.Buffer{}, "info", "xml")
	require.Error(t, err)
}
