package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efeslab/pmtrace"
	"github.com/efeslab/pmtrace/serialize"
)

func TestDumpWithoutSourceReturnsMetadataError(t *testing.T) {
	dir := t.TempDir()
	b := New(filepath.Join(dir, "trace.yaml"), Config{}, log.NewNopLogger())

	err := b.Dump()
	require.Error(t, err)
	_, ok := err.(*pmtrace.MetadataError)
	assert.True(t, ok, "expected *pmtrace.MetadataError, got %T", err)
}

func TestDumpWritesOptimizedTrace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.yaml")
	b := New(path, Config{}, log.NewNopLogger())
	b.SetSource(PMTEST)

	stack := []pmtrace.Frame{{Function: "f", File: "a.c", Line: 1}}
	store, err := pmtrace.NewStoreEvent(1, 0, 8, "f", "a.c", 1, stack)
	require.NoError(t, err)
	bug, err := pmtrace.NewAssertPersistedEvent(2, 0, 8, "f", "a.c", 1, stack)
	require.NoError(t, err)

	b.AddEvent(store)
	b.AddEvent(bug)
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.Dump())

	meta, events, err := serialize.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "PMTEST", meta.Source)
	assert.Len(t, events, 2)
}

func TestDumpIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.yaml")
	b := New(path, Config{}, log.NewNopLogger())
	b.SetSource(GENERIC)

	stack := []pmtrace.Frame{{Function: "f", File: "a.c", Line: 1}}
	s1, err := pmtrace.NewStoreEvent(1, 0, 8, "f", "a.c", 1, stack)
	require.NoError(t, err)
	s2, err := pmtrace.NewStoreEvent(2, 0, 8, "f", "a.c", 1, stack)
	require.NoError(t, err)
	bug, err := pmtrace.NewAssertPersistedEvent(3, 0, 8, "f", "a.c", 1, stack)
	require.NoError(t, err)

	b.AddEvent(s1)
	b.AddEvent(s2)
	b.AddEvent(bug)

	require.NoError(t, b.Dump())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, b.Dump())
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDumpErrorOnUnwritablePath(t *testing.T) {
	// A directory component that does not exist makes the destination
	// unwritable, and the temp-file creation step fails first, since
	// CreateTemp targets the same (missing) directory.
	b := New(filepath.Join(t.TempDir(), "missing-subdir", "trace.yaml"), Config{}, log.NewNopLogger())
	b.SetSource(GENERIC)

	stack := []pmtrace.Frame{{Function: "f", File: "a.c", Line: 1}}
	store, err := pmtrace.NewStoreEvent(1, 0, 8, "f", "a.c", 1, stack)
	require.NoError(t, err)
	b.AddEvent(store)

	err = b.Dump()
	assert.Error(t, err)
}
