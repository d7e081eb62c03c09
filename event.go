package pmtrace

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Kind is the tagged variant of a trace Event: one of the three PM
// operations (store, flush, fence) or one of the three analyzer
// findings (missing-flush, misordering, required-flush).
type Kind int

const (
	Store Kind = iota
	Flush
	Fence
	AssertPersisted
	AssertOrdered
	RequiredFlush
)

// String returns the symbolic name used on the wire (e.g. "STORE").
func (k Kind) String() string {
	switch k {
	case Store:
		return "STORE"
	case Flush:
		return "FLUSH"
	case Fence:
		return "FENCE"
	case AssertPersisted:
		return "ASSERT_PERSISTED"
	case AssertOrdered:
		return "ASSERT_ORDERED"
	case RequiredFlush:
		return "REQUIRED_FLUSH"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// kindFromString is the inverse of Kind.String, used when decoding a
// front-end mapping.
func kindFromString(s string) (Kind, bool) {
	switch s {
	case "STORE":
		return Store, true
	case "FLUSH":
		return Flush, true
	case "FENCE":
		return Fence, true
	case "ASSERT_PERSISTED":
		return AssertPersisted, true
	case "ASSERT_ORDERED":
		return AssertOrdered, true
	case "REQUIRED_FLUSH":
		return RequiredFlush, true
	default:
		return 0, false
	}
}

// IsBugKind reports whether events of this kind are analyzer findings
// rather than raw PM operations.
func (k Kind) IsBugKind() bool {
	return k == AssertPersisted || k == AssertOrdered || k == RequiredFlush
}

// Frame is one entry of a captured call stack.
type Frame struct {
	Function string
	File     string
	Line     uint32
}

// Event is a single entry in a PM trace. Which of Addr/Len/AddrB/LenB
// are meaningful, and whether they must be present at all, is
// determined by Kind (see Range and RangeB).
type Event struct {
	Timestamp uint64
	Kind      Kind
	Function  string
	File      string
	Line      uint32
	IsBug     bool
	Stack     []Frame

	// Addr/Len is the range for Store, Flush, AssertPersisted,
	// RequiredFlush, and the "a" side of AssertOrdered. Fence carries
	// no range at all.
	Addr uint64
	Len  uint64

	// AddrB/LenB is the "b" side of AssertOrdered only.
	AddrB uint64
	LenB  uint64
}

// Range returns the event's primary half-open byte range [lo, hi).
func (e *Event) Range() (lo, hi uint64) {
	return e.Addr, e.Addr + e.Len
}

// RangeB returns the second half-open range of an AssertOrdered event.
func (e *Event) RangeB() (lo, hi uint64) {
	return e.AddrB, e.AddrB + e.LenB
}

// BugKey is the (kind, stack) identity used to deduplicate logical
// bugs (invariant I4). StackHash is a stable hash of the frame
// sequence computed with xxhash so BugKey is usable as a map key.
type BugKey struct {
	Kind      Kind
	StackHash uint64
}

// BugKey computes the event's bug identity.
func (e *Event) BugKey() BugKey {
	return BugKey{Kind: e.Kind, StackHash: hashStack(e.Stack)}
}

func hashStack(stack []Frame) uint64 {
	h := xxhash.New()
	var line [4]byte
	for _, f := range stack {
		_, _ = h.WriteString(f.Function)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(f.File)
		_, _ = h.Write([]byte{0})
		binary.LittleEndian.PutUint32(line[:], f.Line)
		_, _ = h.Write(line[:])
		_, _ = h.Write([]byte{0xff})
	}
	return h.Sum64()
}

// Equal reports whether e and o are field-wise equal, including deep
// equality of the stack sequence.
func (e *Event) Equal(o *Event) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Timestamp != o.Timestamp || e.Kind != o.Kind || e.Function != o.Function ||
		e.File != o.File || e.Line != o.Line || e.IsBug != o.IsBug ||
		e.Addr != o.Addr || e.Len != o.Len || e.AddrB != o.AddrB || e.LenB != o.LenB {
		return false
	}
	if len(e.Stack) != len(o.Stack) {
		return false
	}
	for i := range e.Stack {
		if e.Stack[i] != o.Stack[i] {
			return false
		}
	}
	return true
}

// validate enforces I1 (kind determines which range fields are
// present) and I2 (len >= 1 for range-bearing events).
func (e *Event) validate() error {
	if e.IsBug != e.Kind.IsBugKind() {
		return &ValidationError{Field: "is_bug", Reason: fmt.Sprintf("must be %v for %s", e.Kind.IsBugKind(), e.Kind)}
	}

	switch e.Kind {
	case Store, Flush, AssertPersisted, RequiredFlush:
		if e.Len == 0 {
			return &ValidationError{Field: "length", Reason: fmt.Sprintf("must be >= 1 for %s", e.Kind)}
		}
		if e.AddrB != 0 || e.LenB != 0 {
			return &ValidationError{Field: "address_b/length_b", Reason: fmt.Sprintf("%s does not take a second range", e.Kind)}
		}
	case AssertOrdered:
		if e.Len == 0 {
			return &ValidationError{Field: "length_a", Reason: "must be >= 1 for ASSERT_ORDERED"}
		}
		if e.LenB == 0 {
			return &ValidationError{Field: "length_b", Reason: "must be >= 1 for ASSERT_ORDERED"}
		}
	case Fence:
		if e.Addr != 0 || e.Len != 0 || e.AddrB != 0 || e.LenB != 0 {
			return &ValidationError{Field: "address/length", Reason: "FENCE does not take a range"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %d", int(e.Kind))}
	}

	return nil
}

// NewStoreEvent constructs and validates a Store event.
func NewStoreEvent(timestamp, addr, length uint64, function, file string, line uint32, stack []Frame) (*Event, error) {
	return newRangeEvent(Store, false, timestamp, addr, length, function, file, line, stack)
}

// NewFlushEvent constructs and validates a Flush event.
func NewFlushEvent(timestamp, addr, length uint64, function, file string, line uint32, stack []Frame) (*Event, error) {
	return newRangeEvent(Flush, false, timestamp, addr, length, function, file, line, stack)
}

// NewFenceEvent constructs and validates a Fence event.
func NewFenceEvent(timestamp uint64, function, file string, line uint32, stack []Frame) (*Event, error) {
	ev := &Event{
		Timestamp: timestamp,
		Kind:      Fence,
		Function:  function,
		File:      file,
		Line:      line,
		IsBug:     false,
		Stack:     stack,
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// NewAssertPersistedEvent constructs and validates an AssertPersisted
// bug finding: the range was depended upon without being persisted.
func NewAssertPersistedEvent(timestamp, addr, length uint64, function, file string, line uint32, stack []Frame) (*Event, error) {
	return newRangeEvent(AssertPersisted, true, timestamp, addr, length, function, file, line, stack)
}

// NewRequiredFlushEvent constructs and validates a RequiredFlush bug
// finding: a flush is required on the range but absent.
func NewRequiredFlushEvent(timestamp, addr, length uint64, function, file string, line uint32, stack []Frame) (*Event, error) {
	return newRangeEvent(RequiredFlush, true, timestamp, addr, length, function, file, line, stack)
}

// NewAssertOrderedEvent constructs and validates an AssertOrdered bug
// finding: two ranges were ordered incorrectly relative to each other.
func NewAssertOrderedEvent(timestamp, addrA, lenA, addrB, lenB uint64, function, file string, line uint32, stack []Frame) (*Event, error) {
	ev := &Event{
		Timestamp: timestamp,
		Kind:      AssertOrdered,
		Function:  function,
		File:      file,
		Line:      line,
		IsBug:     true,
		Stack:     stack,
		Addr:      addrA,
		Len:       lenA,
		AddrB:     addrB,
		LenB:      lenB,
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func newRangeEvent(kind Kind, isBug bool, timestamp, addr, length uint64, function, file string, line uint32, stack []Frame) (*Event, error) {
	ev := &Event{
		Timestamp: timestamp,
		Kind:      kind,
		Function:  function,
		File:      file,
		Line:      line,
		IsBug:     isBug,
		Stack:     stack,
		Addr:      addr,
		Len:       length,
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// NewEventFromMap builds and validates an Event from a decoded
// front-end mapping: "kind" is the symbolic event name,
// "address"/"length"/"address_a"/"length_a"/... are non-negative
// integers, and "stack" is an ordered sequence of {function, file,
// line} maps.
func NewEventFromMap(m map[string]interface{}) (*Event, error) {
	kindStr, err := getString(m, "kind")
	if err != nil {
		return nil, err
	}
	kind, ok := kindFromString(kindStr)
	if !ok {
		return nil, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unrecognized event kind %q", kindStr)}
	}

	timestamp, err := getUint64(m, "timestamp")
	if err != nil {
		return nil, err
	}
	function, err := getString(m, "function")
	if err != nil {
		return nil, err
	}
	file, err := getString(m, "file")
	if err != nil {
		return nil, err
	}
	line, err := getUint32(m, "line")
	if err != nil {
		return nil, err
	}
	isBug, err := getBool(m, "is_bug")
	if err != nil {
		return nil, err
	}
	stack, err := getStack(m, "stack")
	if err != nil {
		return nil, err
	}

	ev := &Event{
		Timestamp: timestamp,
		Kind:      kind,
		Function:  function,
		File:      file,
		Line:      line,
		IsBug:     isBug,
		Stack:     stack,
	}

	switch kind {
	case Store, Flush, AssertPersisted, RequiredFlush:
		if ev.Addr, err = getUint64(m, "address"); err != nil {
			return nil, err
		}
		if ev.Len, err = getUint64(m, "length"); err != nil {
			return nil, err
		}
	case AssertOrdered:
		if ev.Addr, err = getUint64(m, "address_a"); err != nil {
			return nil, err
		}
		if ev.Len, err = getUint64(m, "length_a"); err != nil {
			return nil, err
		}
		if ev.AddrB, err = getUint64(m, "address_b"); err != nil {
			return nil, err
		}
		if ev.LenB, err = getUint64(m, "length_b"); err != nil {
			return nil, err
		}
	case Fence:
		// no range fields
	}

	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func getString(m map[string]interface{}, field string) (string, error) {
	v, ok := m[field]
	if !ok {
		return "", &ValidationError{Field: field, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: field, Reason: "expected a string"}
	}
	return s, nil
}

func getBool(m map[string]interface{}, field string) (bool, error) {
	v, ok := m[field]
	if !ok {
		return false, &ValidationError{Field: field, Reason: "missing"}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ValidationError{Field: field, Reason: "expected a bool"}
	}
	return b, nil
}

func getUint64(m map[string]interface{}, field string) (uint64, error) {
	v, ok := m[field]
	if !ok {
		return 0, &ValidationError{Field: field, Reason: "missing"}
	}
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, &ValidationError{Field: field, Reason: "expected a non-negative integer"}
	}
	return uint64(n), nil
}

func getUint32(m map[string]interface{}, field string) (uint32, error) {
	n, err := getUint64(m, field)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func getStack(m map[string]interface{}, field string) ([]Frame, error) {
	v, ok := m[field]
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "missing"}
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "expected a sequence"}
	}

	stack := make([]Frame, 0, len(raw))
	for i, item := range raw {
		fm, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: fmt.Sprintf("stack[%d]", i), Reason: "expected a mapping"}
		}
		function, err := getString(fm, "function")
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("stack[%d].function", i), Reason: err.Error()}
		}
		file, err := getString(fm, "file")
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("stack[%d].file", i), Reason: err.Error()}
		}
		line, err := getUint32(fm, "line")
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("stack[%d].line", i), Reason: err.Error()}
		}
		stack = append(stack, Frame{Function: function, File: file, Line: line})
	}
	return stack, nil
}
