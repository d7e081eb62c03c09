package optimize

import (
	"github.com/efeslab/pmtrace"
	"github.com/efeslab/pmtrace/rangeindex"
)

// attributeAndDedup simulates the trace forward, maintaining a
// store_tree and a flush_tree of in-scope writes, and attributes each
// AssertPersisted bug to the write-side call site (store or flush)
// that should have been persisted before the read it reports on. Two
// bugs that would be fixed by editing the same source site collapse
// to one.
//
// AssertOrdered and RequiredFlush bugs are attributed by range
// pruning downstream instead and pass through this pass unchanged;
// the final identity-based dedup applies only to the AssertPersisted
// bugs retained through fix-location attribution.
func attributeAndDedup(events []*pmtrace.Event) []*pmtrace.Event {
	storeTree := rangeindex.New()
	flushTree := rangeindex.New()
	fixLocs := make(map[pmtrace.BugKey]*pmtrace.Event)

	passthrough := make([]*pmtrace.Event, 0, len(events))

	for _, ev := range events {
		switch ev.Kind {
		case pmtrace.Store:
			lo, hi := ev.Range()
			storeTree.Insert(lo, hi, ev)
			passthrough = append(passthrough, ev)

		case pmtrace.Flush:
			lo, hi := ev.Range()
			for _, e := range storeTree.Overlap(lo, hi) {
				flushTree.Insert(e.Lo, e.Hi, e.Payload)
			}
			storeTree.RemoveOverlap(lo, hi)
			passthrough = append(passthrough, ev)

		case pmtrace.Fence:
			flushTree.Clear()
			passthrough = append(passthrough, ev)

		case pmtrace.AssertPersisted:
			lo, hi := ev.Range()
			storeHits := storeTree.Overlap(lo, hi)
			flushHits := flushTree.Overlap(lo, hi)

			if len(storeHits) == 0 && len(flushHits) == 0 {
				// Nothing was ever written to this range: the
				// assertion has no write-side call site to attribute
				// to. Surface it under its own identity rather than
				// silently dropping a bug report that can't be
				// attributed.
				recordFixLoc(fixLocs, ev, ev)
			}
			for _, e := range storeHits {
				recordFixLoc(fixLocs, e.Payload.(*pmtrace.Event), ev)
			}
			for _, e := range flushHits {
				recordFixLoc(fixLocs, e.Payload.(*pmtrace.Event), ev)
			}

		default:
			// ASSERT_ORDERED, REQUIRED_FLUSH
			passthrough = append(passthrough, ev)
		}
	}

	out := make([]*pmtrace.Event, 0, len(passthrough)+len(fixLocs))
	out = append(out, passthrough...)

	// Visit retained bugs in timestamp order so that, among bugs sharing
	// an identity, the earliest one is kept regardless of map order.
	retained := make([]*pmtrace.Event, 0, len(fixLocs))
	for _, bug := range fixLocs {
		retained = append(retained, bug)
	}
	byTimestamp(retained)

	seen := make(map[pmtrace.BugKey]bool, len(fixLocs))
	for _, bug := range retained {
		key := bug.BugKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, bug)
	}

	byTimestamp(out)
	return out
}

// recordFixLoc records the first bug attributed to originator's
// (kind, stack) fix location; later bugs attributed to the same
// location are redundant and dropped.
func recordFixLoc(fixLocs map[pmtrace.BugKey]*pmtrace.Event, originator, bug *pmtrace.Event) {
	key := originator.BugKey()
	if _, ok := fixLocs[key]; !ok {
		fixLocs[key] = bug
	}
}
