package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	store := Store{
		"HOST":     "example.test",
		"PASSWORD": "hunter2",
		"EMPTY":    "",
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no placeholders", "https://plain.test/path", "https://plain.test/path"},
		{"single placeholder round-trip", "${{HOST}}", "example.test"},
		{"placeholder inside string", "https://${{HOST}}/login", "https://example.test/login"},
		{"two placeholders", "${{HOST}}:${{PASSWORD}}", "example.test:hunter2"},
		{"inner whitespace", "${{ HOST }}", "example.test"},
		{"defined but empty value", "x${{EMPTY}}y", "xy"},
		{"dollar without braces left alone", "$HOST and ${HOST}", "$HOST and ${HOST}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Expand(tt.input, store)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestExpandMissingVariable(t *testing.T) {
	_, err := Expand("https://${{NOPE}}/x", Store{"HOST": "h"})
	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "NOPE", missing.Name)
}

func TestInterpolateRecursive(t *testing.T) {
	store := Store{"HOST": "h"}

	input := map[string]any{
		"url": "${{HOST}}/x",
		"body": map[string]any{
			"k": "${{HOST}}",
		},
		"list":  []any{"${{HOST}}", 42, true},
		"count": 7,
	}

	out, err := Interpolate(input, store)
	require.NoError(t, err)

	expected := map[string]any{
		"url": "h/x",
		"body": map[string]any{
			"k": "h",
		},
		"list":  []any{"h", 42, true},
		"count": 7,
	}
	assert.Equal(t, expected, out)

	// The input must not be mutated.
	assert.Equal(t, "${{HOST}}/x", input["url"])
}

func TestInterpolateMissingVariableNoPartialResult(t *testing.T) {
	store := Store{"HOST": "h"}

	input := map[string]any{
		"first":  "${{HOST}}",
		"second": "${{UNDEFINED}}",
	}

	out, err := Interpolate(input, store)
	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "UNDEFINED", missing.Name)
	assert.Nil(t, out)
}

func TestInterpolateNonStringPassThrough(t *testing.T) {
	store := Store{}

	out, err := Interpolate(123, store)
	require.NoError(t, err)
	assert.Equal(t, 123, out)

	out, err = Interpolate(nil, store)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestInterpolateDeterministic(t *testing.T) {
	store := Store{"A": "1", "B": "2"}
	input := []any{"${{A}}-${{B}}", map[string]any{"x": "${{B}}"}}

	first, err := Interpolate(input, store)
	require.NoError(t, err)
	second, err := Interpolate(input, store)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
