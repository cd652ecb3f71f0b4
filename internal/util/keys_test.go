package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsKey_NoArgsIsMethod(t *testing.T) {
	k, err := ArgsKey("DoubleValue", nil)
	require.NoError(t, err)
	assert.Equal(t, "DoubleValue", k)
}

func TestArgsKey_EqualArgsEqualKeys(t *testing.T) {
	a, err := ArgsKey("Scale", []any{2, "x", map[string]int{"b": 2, "a": 1}})
	require.NoError(t, err)
	b, err := ArgsKey("Scale", []any{2, "x", map[string]int{"a": 1, "b": 2}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, len("Scale#")+16)

	c, err := ArgsKey("Scale", []any{3, "x", map[string]int{"a": 1, "b": 2}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestArgsKey_SameArgsDifferentMethods(t *testing.T) {
	a, _ := ArgsKey("A", []any{1})
	b, _ := ArgsKey("B", []any{1})
	assert.NotEqual(t, a, b)
}

func TestArgsKey_UnencodableArgs(t *testing.T) {
	_, err := ArgsKey("Run", []any{func() {}})
	assert.Error(t, err)
}
