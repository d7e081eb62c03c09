package optimize

import "github.com/efeslab/pmtrace"

// coalesceFences collapses consecutive fences with no intervening
// non-bug event into one. A fence adjacent to a bug event is never
// dropped, and a bug event is always emitted unconditionally without
// updating the "previous event" cursor.
func coalesceFences(events []*pmtrace.Event) []*pmtrace.Event {
	out := make([]*pmtrace.Event, 0, len(events))
	var prev *pmtrace.Event

	for _, ev := range events {
		if ev.Kind.IsBugKind() {
			out = append(out, ev)
			continue
		}
		if ev.Kind == pmtrace.Fence && prev != nil && prev.Kind == pmtrace.Fence {
			continue
		}
		out = append(out, ev)
		prev = ev
	}

	return out
}
