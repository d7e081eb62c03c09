package pmtrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStack() []Frame {
	return []Frame{
		{Function: "flush_cacheline", File: "pmdk.c", Line: 42},
		{Function: "do_write", File: "app.c", Line: 17},
	}
}

func TestNewStoreEventValid(t *testing.T) {
	ev, err := NewStoreEvent(1, 100, 8, "do_write", "app.c", 17, sampleStack())
	require.NoError(t, err)
	assert.Equal(t, Store, ev.Kind)
	assert.False(t, ev.IsBug)

	lo, hi := ev.Range()
	assert.Equal(t, uint64(100), lo)
	assert.Equal(t, uint64(108), hi)
}

func TestNewStoreEventRejectsZeroLength(t *testing.T) {
	_, err := NewStoreEvent(1, 100, 0, "do_write", "app.c", 17, sampleStack())
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "length", verr.Field)
}

func TestNewFenceEventRejectsRange(t *testing.T) {
	ev := &Event{Timestamp: 1, Kind: Fence, Function: "f", File: "a.c", Line: 1, Addr: 4}
	err := ev.validate()
	require.Error(t, err)
}

func TestBugKindMatchesIsBug(t *testing.T) {
	_, err := NewAssertPersistedEvent(1, 0, 8, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)

	bad := &Event{Timestamp: 1, Kind: AssertPersisted, Function: "f", File: "a.c", Line: 1, IsBug: false, Addr: 0, Len: 8}
	err = bad.validate()
	require.Error(t, err)
}

func TestBugKeySameStackSameKey(t *testing.T) {
	a, err := NewAssertPersistedEvent(1, 0, 8, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)
	b, err := NewAssertPersistedEvent(99, 500, 16, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)

	assert.Equal(t, a.BugKey(), b.BugKey())
}

func TestBugKeyDifferentKindDifferentKey(t *testing.T) {
	persisted, err := NewAssertPersistedEvent(1, 0, 8, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)
	flush, err := NewRequiredFlushEvent(1, 0, 8, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)

	assert.NotEqual(t, persisted.BugKey(), flush.BugKey())
}

func TestBugKeyDifferentStackDifferentKey(t *testing.T) {
	a, err := NewAssertPersistedEvent(1, 0, 8, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)
	other := []Frame{{Function: "other", File: "b.c", Line: 2}}
	b, err := NewAssertPersistedEvent(1, 0, 8, "f", "a.c", 1, other)
	require.NoError(t, err)

	assert.NotEqual(t, a.BugKey(), b.BugKey())
}

func TestEventEqual(t *testing.T) {
	a, err := NewStoreEvent(1, 100, 8, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)
	b, err := NewStoreEvent(1, 100, 8, "f", "a.c", 1, sampleStack())
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	b.Timestamp = 2
	assert.False(t, a.Equal(b))
}

func TestNewEventFromMapRoundTrip(t *testing.T) {
	m := map[string]interface{}{
		"timestamp": uint64(5),
		"kind":      "ASSERT_ORDERED",
		"function":  "f",
		"file":      "a.c",
		"line":      uint32(10),
		"is_bug":    true,
		"address_a": uint64(0),
		"length_a":  uint64(8),
		"address_b": uint64(64),
		"length_b":  uint64(8),
		"stack": []interface{}{
			map[string]interface{}{"function": "f", "file": "a.c", "line": uint32(10)},
		},
	}

	ev, err := NewEventFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, AssertOrdered, ev.Kind)
	lo, hi := ev.RangeB()
	assert.Equal(t, uint64(64), lo)
	assert.Equal(t, uint64(72), hi)
}

func TestNewEventFromMapMissingField(t *testing.T) {
	m := map[string]interface{}{"kind": "FENCE"}
	_, err := NewEventFromMap(m)
	require.Error(t, err)
}

func TestNewEventFromMapUnknownKind(t *testing.T) {
	m := map[string]interface{}{
		"kind":      "BOGUS",
		"timestamp": uint64(1),
		"function":  "f",
		"file":      "a.c",
		"line":      uint32(1),
		"is_bug":    false,
		"stack":     []interface{}{},
	}
	_, err := NewEventFromMap(m)
	require.Error(t, err)
}

func TestKindStringRoundTrip(t *testing.T) {
	kinds := []Kind{Store, Flush, Fence, AssertPersisted, AssertOrdered, RequiredFlush}
	for _, k := range kinds {
		parsed, ok := kindFromString(k.String())
		require.True(t, ok)
		assert.Equal(t, k, parsed)
	}
}
