package optimize

import (
	"github.com/efeslab/pmtrace"
	"github.com/efeslab/pmtrace/rangeindex"
)

// pruneIrrelevant drops stores and flushes that touch no range any
// retained bug cares about.
//
// Both stores and flushes are pruned by range overlap. An earlier
// iteration of this optimizer pruned flushes only; that asymmetry is
// not carried forward here (see DESIGN.md).
func pruneIrrelevant(events []*pmtrace.Event) []*pmtrace.Event {
	bugRanges := rangeindex.New()
	for _, ev := range events {
		if !ev.Kind.IsBugKind() {
			continue
		}
		lo, hi := ev.Range()
		bugRanges.Insert(lo, hi, nil)
		if ev.Kind == pmtrace.AssertOrdered {
			lo, hi = ev.RangeB()
			bugRanges.Insert(lo, hi, nil)
		}
	}

	// Walk in reverse so a future variant could remove each bug range
	// after its most recent producer is found; this variant keeps
	// every overlapping producer, not just the most recent.
	kept := make([]*pmtrace.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind != pmtrace.Store && ev.Kind != pmtrace.Flush {
			kept = append(kept, ev)
			continue
		}

		lo, hi := ev.Range()
		if len(bugRanges.Overlap(lo, hi)) > 0 {
			kept = append(kept, ev)
		}
	}

	reverse(kept)
	return kept
}

func reverse(events []*pmtrace.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
