package optimize

import (
	"github.com/efeslab/pmtrace"
	"github.com/efeslab/pmtrace/rangeindex"
)

// coalesceStores keeps only the most recent store to a range between
// successive flushes covering it.
//
// A new store overwrites any in-flight store it overlaps, so the
// index retrieves only the most recent write at any point. On a
// flush, every in-flight entry it overlaps is emitted once and
// removed, so double-counting across multiple flushes of the same
// store is impossible. A partial-overlap flush still emits and
// removes the entire store entry: the smallest retained unit is the
// original store event, never a fragment of it. Stores that are never
// flushed are emitted at the end, since they may still be root causes
// found by attribution.
func coalesceStores(events []*pmtrace.Event) []*pmtrace.Event {
	inFlight := rangeindex.New()
	out := make([]*pmtrace.Event, 0, len(events))

	for _, ev := range events {
		switch ev.Kind {
		case pmtrace.Store:
			lo, hi := ev.Range()
			inFlight.RemoveOverlap(lo, hi)
			inFlight.Insert(lo, hi, ev)

		case pmtrace.Flush:
			lo, hi := ev.Range()
			for _, e := range inFlight.Overlap(lo, hi) {
				out = append(out, e.Payload.(*pmtrace.Event))
			}
			inFlight.RemoveOverlap(lo, hi)
			out = append(out, ev)

		default:
			out = append(out, ev)
		}
	}

	for _, e := range inFlight.Iter() {
		out = append(out, e.Payload.(*pmtrace.Event))
	}

	byTimestamp(out)
	return out
}
