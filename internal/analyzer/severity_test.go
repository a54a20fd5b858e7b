package analyzer_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/domain-migration-engine/internal/analyzer"
)

func TestSeverity_labels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity analyzer.Severity
		label    string
	}{
		{analyzer.Safe, "SAFE"},
		{analyzer.Low, "LOW"},
		{analyzer.Medium, "MEDIUM"},
		{analyzer.High, "HIGH"},
		{analyzer.Critical, "CRITICAL"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.label, tt.severity.String())

			parsed, err := analyzer.ParseSeverity(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.severity, parsed)
		})
	}
}

func TestSeverity_outOfRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "UNKNOWN", analyzer.Severity(99).String())
	assert.Equal(t, "UNKNOWN", analyzer.Severity(-1).String())
}

func TestParseSeverity_caseInsensitive(t *testing.T) {
	t.Parallel()

	s, err := analyzer.ParseSeverity(" medium ")
	require.NoError(t, err)
	assert.Equal(t, analyzer.Medium, s)
}

func TestParseSeverity_unknown(t *testing.T) {
	t.Parallel()

	_, err := analyzer.ParseSeverity("severe")
	require.ErrorIs(t, err, analyzer.ErrUnknownSeverity)
}

func TestSeverity_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(struct {
		S analyzer.Severity `json:"s"`
	}{S: analyzer.High})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"HIGH"}`, string(b))

	var got struct {
		S analyzer.Severity `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"critical"}`), &got))
	assert.Equal(t, analyzer.Critical, got.S)
}
