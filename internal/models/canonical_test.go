package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	raw, err := CanonicalJSON(map[string]interface{}{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(raw))
}

func TestCanonicalJSONNumberNormalization(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{"v": 3.0})
	require.NoError(t, err)
	b, err := CanonicalJSON(map[string]interface{}{"v": 3})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	c, err := CanonicalJSON(map[string]interface{}{"v": 0.25})
	require.NoError(t, err)
	assert.Equal(t, `{"v":0.25}`, string(c))
}

func TestCanonicalJSONASCIIOnly(t *testing.T) {
	raw, err := CanonicalJSON(map[string]interface{}{"s": "café \U0001F680"})
	require.NoError(t, err)
	for _, b := range raw {
		assert.LessOrEqual(t, b, byte(0x7e))
	}
	assert.Contains(t, string(raw), `\u00e9`)
	// Astral plane characters encode as surrogate pairs.
	assert.Contains(t, string(raw), `\ud83d\ude80`)
}

func TestHashBlockStableAcrossFieldOrder(t *testing.T) {
	type block struct {
		A string  `json:"a"`
		B float64 `json:"b"`
	}
	h1 := HashBlock(block{A: "x", B: 1.5})
	h2 := HashBlock(map[string]interface{}{"b": 1.5, "a": "x"})
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
}

func TestHashBlockDistinguishesContent(t *testing.T) {
	h1 := HashBlock(map[string]interface{}{"a": 1})
	h2 := HashBlock(map[string]interface{}{"a": 2})
	assert.NotEqual(t, h1, h2)
}

func TestDirectionRoundTrip(t *testing.T) {
	for _, d := range []Direction{DirUp, DirDown, DirNeutral} {
		assert.Equal(t, d, ParseDirection(d.String()))
	}
	assert.Equal(t, DirNeutral, ParseDirection("garbage"))
}

func TestClipHelpers(t *testing.T) {
	assert.Equal(t, 0.0, Clip100(-5))
	assert.Equal(t, 100.0, Clip100(200))
	assert.Equal(t, 42.0, Clip100(42))
	assert.Equal(t, 1.0, Clip1(7))
	assert.Equal(t, -1.0, Clip1(-7))
}
