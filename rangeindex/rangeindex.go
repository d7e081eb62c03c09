// Package rangeindex implements the interval structure the optimizer
// passes use to answer overlap queries over byte ranges: in-flight
// store sets, flushed-store sets, and bug ranges.
package rangeindex

import "sort"

// Entry is one interval stored in an Index: the half-open byte range
// [Lo, Hi) plus an opaque payload.
type Entry struct {
	Lo, Hi  uint64
	Payload interface{}
}

func (e Entry) overlaps(lo, hi uint64) bool {
	return e.Lo < hi && e.Hi > lo
}

// Index is an interval structure over half-open byte ranges,
// supporting insert, overlap query, overlap removal, and clear.
//
// Entries are kept sorted by Lo and queried with a linear scan guarded
// by a running maximum Hi for early exit. This is the "simpler
// sorted-by-lo structure with linear overlap scan" deliberately
// sanctioned as sufficient for small traces, rather than a balanced,
// subtree-max-hi augmented interval tree. Overlap is O(n) worst case
// (an entry with a very large Hi inserted early still has to be
// checked for every later query), O(k) best case once maxHi rules a
// query out entirely.
type Index struct {
	entries []Entry
	maxHi   uint64
}

// New returns an empty Index.
func New() *Index {
	return &Index{}
}

// Insert adds the half-open range [lo, hi) with the given payload.
// Multiple entries at the same range coexist; Insert never dedups.
func (ix *Index) Insert(lo, hi uint64, payload interface{}) {
	e := Entry{Lo: lo, Hi: hi, Payload: payload}

	pos := sort.Search(len(ix.entries), func(i int) bool { return ix.entries[i].Lo >= lo })
	ix.entries = append(ix.entries, Entry{})
	copy(ix.entries[pos+1:], ix.entries[pos:])
	ix.entries[pos] = e

	if hi > ix.maxHi {
		ix.maxHi = hi
	}
}

// Overlap returns every stored entry intersecting [lo, hi) on any
// byte, inclusive on both sides of the query.
func (ix *Index) Overlap(lo, hi uint64) []Entry {
	if len(ix.entries) == 0 || lo >= ix.maxHi {
		return nil
	}

	var out []Entry
	for _, e := range ix.entries {
		if e.Lo >= hi {
			break
		}
		if e.overlaps(lo, hi) {
			out = append(out, e)
		}
	}
	return out
}

// RemoveOverlap deletes every entry overlapping [lo, hi).
func (ix *Index) RemoveOverlap(lo, hi uint64) {
	if len(ix.entries) == 0 {
		return
	}

	kept := ix.entries[:0]
	var newMax uint64
	for _, e := range ix.entries {
		if e.overlaps(lo, hi) {
			continue
		}
		kept = append(kept, e)
		if e.Hi > newMax {
			newMax = e.Hi
		}
	}
	ix.entries = kept
	ix.maxHi = newMax
}

// Clear empties the index.
func (ix *Index) Clear() {
	ix.entries = nil
	ix.maxHi = 0
}

// Iter returns a copy of every stored entry, in ascending Lo order.
func (ix *Index) Iter() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Len reports the number of stored entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}
