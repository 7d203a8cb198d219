package match_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sievegate/sievegate/sieve/match"
)

func TestGlobMatch(t *testing.T) {
	cmp, _ := match.Lookup("")
	ok, err := match.Eval(match.Matches, cmp, "hello.world", "*.world")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = match.Eval(match.Matches, cmp, "hello.world", "h?llo.*")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = match.Eval(match.Matches, cmp, "hello", "x*")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAsciiCasemapEqual(t *testing.T) {
	cmp, ok := match.Lookup("i;ascii-casemap")
	require.True(t, ok)
	require.True(t, cmp.Equal("Hello", "HELLO"))
	require.False(t, cmp.Equal("Hello", "World"))
}

func TestOctetComparatorIsCaseSensitive(t *testing.T) {
	cmp, ok := match.Lookup("i;octet")
	require.True(t, ok)
	require.False(t, cmp.Equal("Hello", "hello"))
}

func TestSplitAddress(t *testing.T) {
	require.Equal(t, "alice", match.SplitAddress(match.AddrLocalPart, "alice@example.com"))
	require.Equal(t, "example.com", match.SplitAddress(match.AddrDomain, "alice@example.com"))
	require.Equal(t, "alice@example.com", match.SplitAddress(match.AddrAll, "alice@example.com"))
}

func TestCompareCount(t *testing.T) {
	require.True(t, match.CompareCount(3, "2", match.RelGT))
	require.False(t, match.CompareCount(1, "2", match.RelGT))
	require.True(t, match.CompareCount(2, "2", match.RelEQ))
}
