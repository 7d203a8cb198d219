package bincache

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Put("abcdef0123456789", []byte("compiled-bytecode")))

	data, err := c.Get("abcdef0123456789")
	require.NoError(t, err)
	assert.Equal(t, []byte("compiled-bytecode"), data)
}

func TestGetMissingReturnsError(t *testing.T) {
	c, err := New(t.TempDir(), 10)
	require.NoError(t, err)

	_, err = c.Get("nonexistent0000000000")
	assert.Error(t, err)
}

func TestDeleteRemovesEntry(t *testing.T) {
	c, err := New(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Put("deadbeefcafef00d", []byte("x")))
	require.NoError(t, c.Delete("deadbeefcafef00d"))

	_, err = c.Get("deadbeefcafef00d")
	assert.Error(t, err)
}

func TestPurgeIfNeededEvictsEntriesOverCap(t *testing.T) {
	c, err := New(t.TempDir(), 0) // 0 MB cap forces eviction of everything over time
	require.NoError(t, err)

	require.NoError(t, c.Put("hash000000000000", []byte("0123456789")))
	require.NoError(t, c.PurgeIfNeeded(context.Background()))

	_, err = c.Get("hash000000000000")
	assert.Error(t, err, "entry should have been purged once over the zero-byte cap")
}

func TestRemoveStaleDBEntriesDropsMissingFiles(t *testing.T) {
	c, err := New(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Put("stalehash0000000", []byte("x")))
	require.NoError(t, os.Remove(c.pathFor("stalehash0000000"))) // file gone, index row left behind

	require.NoError(t, c.RemoveStaleDBEntries(context.Background()))

	var count int
	require.NoError(t, c.db.QueryRow(`SELECT COUNT(*) FROM bincache_index WHERE hash = ?`, "stalehash0000000").Scan(&count))
	assert.Equal(t, 0, count)
}
