package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqasim81/domain-migration-engine/internal/migration"
)

func makeUnits(t *testing.T, versions ...string) []migration.Unit {
	t.Helper()

	us := make([]migration.Unit, len(versions))
	for i, v := range versions {
		us[i] = migration.Unit{Domain: "Test", Version: migration.MustParseVersion(v), Name: "test"}
	}

	return us
}

func versionStrings(t *testing.T, us []migration.Unit) []string {
	t.Helper()

	vs := make([]string, len(us))
	for i, u := range us {
		vs[i] = u.Version.String()
	}

	return vs
}

func TestSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "already sorted stays sorted",
			input:    []string{"0.0.1", "0.0.2", "0.0.3"},
			expected: []string{"0.0.1", "0.0.2", "0.0.3"},
		},
		{
			name:     "reverse order is corrected",
			input:    []string{"0.0.3", "0.0.2", "0.0.1"},
			expected: []string{"0.0.1", "0.0.2", "0.0.3"},
		},
		{
			name:     "numeric not lexicographic",
			input:    []string{"0.0.10", "0.0.9", "0.10.0", "0.2.0"},
			expected: []string{"0.0.9", "0.0.10", "0.2.0", "0.10.0"},
		},
		{
			name:     "major dominates",
			input:    []string{"1.0.0", "0.99.99"},
			expected: []string{"0.99.99", "1.0.0"},
		},
		{
			name:     "empty input",
			input:    []string{},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sorted := migration.Sort(makeUnits(t, tt.input...))
			assert.Equal(t, tt.expected, versionStrings(t, sorted))
		})
	}
}

func TestSort_doesNotMutateInput(t *testing.T) {
	t.Parallel()

	input := makeUnits(t, "0.0.2", "0.0.1")
	_ = migration.Sort(input)

	assert.Equal(t, []string{"0.0.2", "0.0.1"}, versionStrings(t, input))
}
