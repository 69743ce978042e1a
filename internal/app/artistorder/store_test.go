package artistorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		expected []string
	}{
		{
			name:     "json",
			file:     "artist_order.json",
			content:  `{"artist_order": ["Bob", "Alice"]}`,
			expected: []string{"Bob", "Alice"},
		},
		{
			name:     "yaml",
			file:     "artist_order.yaml",
			content:  "artist_order:\n  - Bob\n  - Alice\n",
			expected: []string{"Bob", "Alice"},
		},
		{
			name:     "yml",
			file:     "order.yml",
			content:  "artist_order: [Bob]\n",
			expected: []string{"Bob"},
		},
		{
			name:     "toml",
			file:     "artist_order.toml",
			content:  `artist_order = ["Bob", "Alice"]`,
			expected: []string{"Bob", "Alice"},
		},
		{
			name:     "unknown extension parsed as json",
			file:     "artists.conf",
			content:  `{"artist_order": ["Zeta"]}`,
			expected: []string{"Zeta"},
		},
		{
			name:     "blank entries dropped and names trimmed",
			file:     "artist_order.json",
			content:  `{"artist_order": [" Bob ", "", "   ", "Alice"]}`,
			expected: []string{"Bob", "Alice"},
		},
		{
			name:     "missing key yields empty order",
			file:     "artist_order.json",
			content:  `{"artists": ["Bob"]}`,
			expected: []string{},
		},
		{
			name:     "empty list",
			file:     "artist_order.json",
			content:  `{"artist_order": []}`,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)

			o, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, o.Names())
			assert.Equal(t, len(tt.expected), o.Len())
		})
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") },
		},
		{
			name: "malformed json",
			path: func(t *testing.T) string { return writeFile(t, "artist_order.json", `{"artist_order": [`) },
		},
		{
			name: "wrong type",
			path: func(t *testing.T) string { return writeFile(t, "artist_order.json", `{"artist_order": "Bob"}`) },
		},
		{
			name: "malformed toml",
			path: func(t *testing.T) string { return writeFile(t, "artist_order.toml", `artist_order = [`) },
		},
		{
			name: "directory instead of file",
			path: func(t *testing.T) string { return t.TempDir() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Load(tt.path(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
			assert.Equal(t, 0, o.Len())
		})
	}
}

func TestOrder_Rank(t *testing.T) {
	o := New([]string{"Bob", "Alice", "Bob"})

	rank, ok := o.Rank("Bob")
	assert.True(t, ok)
	assert.Equal(t, 0, rank, "duplicates resolve to the first occurrence")

	rank, ok = o.Rank("Alice")
	assert.True(t, ok)
	assert.Equal(t, 1, rank)

	_, ok = o.Rank("Zeta")
	assert.False(t, ok)

	assert.Equal(t, 3, o.Len())
}

func TestOrder_Zero(t *testing.T) {
	var o Order

	_, ok := o.Rank("Bob")
	assert.False(t, ok)
	assert.Equal(t, 0, o.Len())
	assert.Empty(t, o.Names())
}
