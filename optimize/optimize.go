// Package optimize implements the fixed, deterministic pass pipeline
// that compacts a PM event trace down to the events needed to
// reproduce and localize each reported bug.
//
// The pipeline mirrors a fixed-sequence, bookmark-driven compaction
// loop run over trace blocks (compact over a bounded accumulation,
// attribute/dedup, then re-sort); here the "blocks" are optimizer
// passes over an in-memory event slice instead of on-disk segments.
package optimize

import (
	"sort"

	"github.com/efeslab/pmtrace"
)

// Run attributes each bug to its root-cause write and deduplicates by
// fix location, prunes events that never overlap a retained bug,
// coalesces in-flight stores down to the most recent write per range,
// collapses consecutive fences, and returns the compacted,
// timestamp-ordered trace.
//
// Attribution runs first to stabilize the bug set before the
// range-index analyses that follow depend on it. Pruning shrinks the
// working set ahead of store/flush coalescing. Fence coalescing is a
// cosmetic tail cleanup.
func Run(events []*pmtrace.Event) []*pmtrace.Event {
	out := attributeAndDedup(events)
	out = pruneIrrelevant(out)
	out = coalesceStores(out)
	out = coalesceFences(out)
	return out
}

func byTimestamp(events []*pmtrace.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
}
