package vars_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/sieve/vars"
)

func TestScopeSetGet(t *testing.T) {
	s := vars.NewScope(0, 0)
	require.True(t, s.Set("Name", "value"))
	require.Equal(t, "value", s.Get("name"))
	require.Equal(t, "", s.Get("missing"))
}

func TestScopeTruncatesOversizedValue(t *testing.T) {
	s := vars.NewScope(0, 4)
	s.Set("x", "hello world")
	require.Equal(t, "hell", s.Get("x"))
}

func TestScopeRejectsOverflowOfNewVariables(t *testing.T) {
	s := vars.NewScope(1, 0)
	require.True(t, s.Set("a", "1"))
	require.False(t, s.Set("b", "2"))
	require.True(t, s.Set("a", "3")) // overwrite of an existing var still allowed
}

func TestApplyModifiersRespectsPrecedenceNotOrder(t *testing.T) {
	// :upper then :length must still compute length-of-original
	// because :length (10) outranks :upper (40).
	out := vars.ApplyModifiers("abc", []string{"upper", "length"})
	require.Equal(t, "3", out)
}

func TestApplyModifiersUpperFirst(t *testing.T) {
	require.Equal(t, "Hello", vars.ApplyModifiers("hello", []string{"upperfirst"}))
}

func TestInterpolate(t *testing.T) {
	s := vars.NewScope(0, 0)
	s.Set("name", "world")
	out := vars.Interpolate("hello ${name}!", vars.ScopeResolver{Scope: s})
	require.Equal(t, "hello world!", out)
}

func TestInterpolateMatchValue(t *testing.T) {
	s := vars.NewScope(0, 0)
	s.SetMatchValues([]string{"foo", "bar"})
	out := vars.Interpolate("${1}-${2}", vars.ScopeResolver{Scope: s})
	require.Equal(t, "foo-bar", out)
}
