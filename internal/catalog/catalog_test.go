package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplica(t *testing.T) {
	c := Replica()
	require.Equal(t, 4, c.Len())

	ids := []string{"sintese_contestacao", "preliminares", "merito", "pedidos"}
	for i, id := range ids {
		s, ok := c.At(i)
		require.True(t, ok)
		assert.Equal(t, id, s.ID)
		assert.NotEmpty(t, s.Title)
		assert.NotEmpty(t, s.RequiredElements)
		assert.LessOrEqual(t, s.MinTokens, s.MaxTokens)
		assert.Equal(t, i, c.IndexOf(id))
	}

	_, ok := c.At(4)
	assert.False(t, ok)
	assert.Equal(t, -1, c.IndexOf("missing"))
}

func TestSectionsAreCopies(t *testing.T) {
	c := Replica()
	sections := c.Sections()
	sections[0].Title = "changed"
	sections[0].RequiredElements[0] = "changed"

	s, _ := c.At(0)
	assert.NotEqual(t, "changed", s.Title)
	assert.NotEqual(t, "changed", s.RequiredElements[0])
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty payload", yaml: "  "},
		{name: "no sections", yaml: "sections: []"},
		{name: "missing id", yaml: "sections:\n  - title: A\n    minTokens: 1\n    maxTokens: 2\n"},
		{name: "missing title", yaml: "sections:\n  - id: a\n    minTokens: 1\n    maxTokens: 2\n"},
		{name: "duplicate id", yaml: "sections:\n  - {id: a, title: A, minTokens: 1, maxTokens: 2}\n  - {id: a, title: B, minTokens: 1, maxTokens: 2}\n"},
		{name: "inverted bounds", yaml: "sections:\n  - {id: a, title: A, minTokens: 5, maxTokens: 2}\n"},
		{name: "zero min", yaml: "sections:\n  - {id: a, title: A, minTokens: 0, maxTokens: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("sections: [\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCatalog)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := "sections:\n  - id: only\n    title: ÚNICA\n    minTokens: 10\n    maxTokens: 20\n    requiredElements: [x]\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	s, _ := c.At(0)
	assert.Equal(t, "ÚNICA", s.Title)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
