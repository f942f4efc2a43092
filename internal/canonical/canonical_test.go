package canonical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"string slice", []string{"a 1", "b 2"}, `["a 1","b 2"]`},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"install": []any{"A 1.0.0"}}, `{"install":["A 1.0.0"]}`},
		{"html not escaped", "<a & b>", `"<a & b>"`},
		{"quote escaped", `say "hi"`, `"say \"hi\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"y": true, "x": false},
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":false,"y":true},"zebra":1}`, string(result))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	high := string(rune(0x10000))
	private := string(rune(0xE000))

	result, err := Marshal(map[string]any{private: 1, high: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"`+high+`":2,"`+private+`":1}`, string(result))
}

func TestMarshalLineSeparatorsLiteral(t *testing.T) {
	ls := string(rune(0x2028))
	ps := string(rune(0x2029))

	result, err := Marshal("a" + ls + "b" + ps + "c")
	require.NoError(t, err)
	assert.Equal(t, `"a`+ls+"b"+ps+`c"`, string(result))
}

func TestMarshalKeepsEscapedBackslashBeforeU(t *testing.T) {
	// A literal backslash followed by the text u2028 must stay escaped.
	input := `\` + "u2028"
	result, err := Marshal(input)
	require.NoError(t, err)
	assert.Equal(t, `"\\`+"u2028"+`"`, string(result))
}

func TestMarshalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	decomposed := "e" + string(rune(0x0301))
	composed := string(rune(0x00E9))

	result, err := Marshal(decomposed)
	require.NoError(t, err)
	assert.Equal(t, `"`+composed+`"`, string(result))
}

func TestMarshalRejects(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		errMsg string
	}{
		{"nil", nil, "null is forbidden"},
		{"float", 1.5, "floats are forbidden"},
		{"nested nil", map[string]any{"a": []any{nil}}, "null is forbidden"},
		{"struct", struct{}{}, "unsupported type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestHash(t *testing.T) {
	a, err := Hash(DomainCase, map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	b, err := Hash(DomainCase, map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Domain separation changes the digest.
	c, err := Hash(DomainOutcome, map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = Hash(DomainCase, 1.5)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "hash pipyaml/case/v1"))
}
