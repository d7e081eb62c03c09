package rangeindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertOverlap(t *testing.T) {
	ix := New()
	ix.Insert(0, 8, "a")
	ix.Insert(100, 108, "b")
	ix.Insert(4, 12, "c")

	hits := ix.Overlap(2, 6)
	require.Len(t, hits, 2)
	payloads := []interface{}{hits[0].Payload, hits[1].Payload}
	assert.Contains(t, payloads, "a")
	assert.Contains(t, payloads, "c")
}

func TestOverlapInclusiveBoundary(t *testing.T) {
	ix := New()
	ix.Insert(10, 20, "x")

	// a partial overlap past the stored upper bound still counts: [10,20)
	// and [15,25) share bytes 15..19.
	assert.Len(t, ix.Overlap(15, 25), 1)
	// adjacent, non-overlapping ranges share no byte.
	assert.Len(t, ix.Overlap(20, 30), 0)
	assert.Len(t, ix.Overlap(0, 10), 0)
}

func TestOverlapNoMatch(t *testing.T) {
	ix := New()
	ix.Insert(0, 8, "a")
	assert.Empty(t, ix.Overlap(100, 200))
}

func TestRemoveOverlap(t *testing.T) {
	ix := New()
	ix.Insert(0, 8, "a")
	ix.Insert(100, 108, "b")

	ix.RemoveOverlap(0, 8)

	assert.Empty(t, ix.Overlap(0, 8))
	assert.Len(t, ix.Overlap(100, 108), 1)
	assert.Equal(t, 1, ix.Len())
}

func TestClear(t *testing.T) {
	ix := New()
	ix.Insert(0, 8, "a")
	ix.Insert(8, 16, "b")

	ix.Clear()

	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Overlap(0, 16))
}

func TestMultipleEntriesSameRangeCoexist(t *testing.T) {
	ix := New()
	ix.Insert(0, 8, "first")
	ix.Insert(0, 8, "second")

	hits := ix.Overlap(0, 8)
	require.Len(t, hits, 2)
}

func TestIterOrder(t *testing.T) {
	ix := New()
	ix.Insert(16, 24, "c")
	ix.Insert(0, 8, "a")
	ix.Insert(8, 16, "b")

	entries := ix.Iter()
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(0), entries[0].Lo)
	assert.Equal(t, uint64(8), entries[1].Lo)
	assert.Equal(t, uint64(16), entries[2].Lo)
}
