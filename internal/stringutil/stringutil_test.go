package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"score: 7", 7, true},
		{"first 3 then 9.5", 9.5, true},
		{"rating 8/10", 10, true},
		{"no numbers here", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			n, ok := LastNumber(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, n)
		})
	}
}

func TestElideArtifacts(t *testing.T) {
	t.Parallel()

	in := "before\n```artifact\n{huge geojson}\n```\nafter"
	assert.Equal(t, "before\n[artifact removed]\nafter", ElideArtifacts(in))
	assert.Equal(t, "plain text", ElideArtifacts("plain text"))
}

func TestSubstituteVariables(t *testing.T) {
	t.Parallel()

	vars := map[string]string{"name": "gennaro", "n": "2"}
	assert.Equal(t, "hi gennaro x2", SubstituteVariables("hi {var:name} x{var:n}", vars))
	assert.Equal(t, "keep {var:missing}", SubstituteVariables("keep {var:missing}", vars))
}

func TestSplitWindows(t *testing.T) {
	t.Parallel()

	t.Run("ShortTextSingleWindow", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"abc"}, SplitWindows("abc", 10, 2))
	})

	t.Run("OverlapWindows", func(t *testing.T) {
		t.Parallel()
		windows := SplitWindows("abcdefghij", 4, 1)
		require.NotEmpty(t, windows)
		assert.Equal(t, "abcd", windows[0])
		assert.Equal(t, "defg", windows[1])
	})
}

func TestKeyCaseConversion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "maxResults", SnakeToCamel("max_results"))
	assert.Equal(t, "_currentDepth", SnakeToCamel("_current_depth"))
	assert.Equal(t, "query", SnakeToCamel("query"))
	assert.Equal(t, "max_results", CamelToSnake("maxResults"))
	assert.Equal(t, "query", CamelToSnake("query"))
}
