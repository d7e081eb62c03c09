// Package serialize implements the portable document format the
// optimizer's output is written in: a YAML document with a metadata
// section and an ordered trace section.
//
// Writing is atomic from the caller's perspective: the document is
// built in a temp file next to the destination and renamed into
// place, the same write-then-place sequence used to land block
// artifacts to a local backend.
package serialize

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/efeslab/pmtrace"
)

// Metadata is the document's top-level metadata section. RunID is a
// caller-facing run identifier stamped by the builder so two
// independently dumped traces never collide in downstream tooling;
// Source keeps the documented {GENERIC, PMTEST} contract.
type Metadata struct {
	Source string    `yaml:"source"`
	RunID  uuid.UUID `yaml:"run_id"`
}

type frameDoc struct {
	Function string `yaml:"function"`
	File     string `yaml:"file"`
	Line     uint32 `yaml:"line"`
}

type eventDoc struct {
	Timestamp uint64     `yaml:"timestamp"`
	Kind      string     `yaml:"kind"`
	Function  string     `yaml:"function"`
	File      string     `yaml:"file"`
	Line      uint32     `yaml:"line"`
	IsBug     bool       `yaml:"is_bug"`
	Stack     []frameDoc `yaml:"stack"`

	Address  *uint64 `yaml:"address,omitempty"`
	Length   *uint64 `yaml:"length,omitempty"`
	AddressA *uint64 `yaml:"address_a,omitempty"`
	LengthA  *uint64 `yaml:"length_a,omitempty"`
	AddressB *uint64 `yaml:"address_b,omitempty"`
	LengthB  *uint64 `yaml:"length_b,omitempty"`
}

type document struct {
	Metadata Metadata   `yaml:"metadata"`
	Trace    []eventDoc `yaml:"trace"`
}

// Write marshals meta and events into the document format and writes
// it to path, overwriting any existing file atomically.
func Write(path string, meta Metadata, events []*pmtrace.Event) error {
	docs := make([]eventDoc, len(events))
	for i, ev := range events {
		docs[i] = toEventDoc(ev)
	}

	b, err := yaml.Marshal(document{Metadata: meta, Trace: docs})
	if err != nil {
		return errors.Wrap(err, "marshal trace document")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pmtrace-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp trace file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp trace file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp trace file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "rename temp trace file into place")
	}
	return nil
}

// Read parses a document previously written by Write. It exists
// primarily to let callers (and this package's round-trip tests)
// verify that parsing a written document reproduces the original trace.
func Read(path string) (Metadata, []*pmtrace.Event, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, nil, errors.Wrap(err, "read trace document")
	}

	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Metadata{}, nil, errors.Wrap(err, "unmarshal trace document")
	}

	events := make([]*pmtrace.Event, 0, len(doc.Trace))
	for i, d := range doc.Trace {
		ev, err := fromEventDoc(d)
		if err != nil {
			return Metadata{}, nil, errors.Wrapf(err, "trace[%d]", i)
		}
		events = append(events, ev)
	}
	return doc.Metadata, events, nil
}

func toEventDoc(ev *pmtrace.Event) eventDoc {
	stack := make([]frameDoc, len(ev.Stack))
	for i, f := range ev.Stack {
		stack[i] = frameDoc{Function: f.Function, File: f.File, Line: f.Line}
	}

	d := eventDoc{
		Timestamp: ev.Timestamp,
		Kind:      ev.Kind.String(),
		Function:  ev.Function,
		File:      ev.File,
		Line:      ev.Line,
		IsBug:     ev.IsBug,
		Stack:     stack,
	}

	switch ev.Kind {
	case pmtrace.Store, pmtrace.Flush, pmtrace.AssertPersisted, pmtrace.RequiredFlush:
		addr, length := ev.Addr, ev.Len
		d.Address, d.Length = &addr, &length
	case pmtrace.AssertOrdered:
		addrA, lenA := ev.Addr, ev.Len
		addrB, lenB := ev.AddrB, ev.LenB
		d.AddressA, d.LengthA = &addrA, &lenA
		d.AddressB, d.LengthB = &addrB, &lenB
	}

	return d
}

func fromEventDoc(d eventDoc) (*pmtrace.Event, error) {
	stack := make([]pmtrace.Frame, len(d.Stack))
	for i, f := range d.Stack {
		stack[i] = pmtrace.Frame{Function: f.Function, File: f.File, Line: f.Line}
	}

	switch d.Kind {
	case "STORE":
		return pmtrace.NewStoreEvent(d.Timestamp, deref(d.Address), deref(d.Length), d.Function, d.File, d.Line, stack)
	case "FLUSH":
		return pmtrace.NewFlushEvent(d.Timestamp, deref(d.Address), deref(d.Length), d.Function, d.File, d.Line, stack)
	case "FENCE":
		return pmtrace.NewFenceEvent(d.Timestamp, d.Function, d.File, d.Line, stack)
	case "ASSERT_PERSISTED":
		return pmtrace.NewAssertPersistedEvent(d.Timestamp, deref(d.Address), deref(d.Length), d.Function, d.File, d.Line, stack)
	case "REQUIRED_FLUSH":
		return pmtrace.NewRequiredFlushEvent(d.Timestamp, deref(d.Address), deref(d.Length), d.Function, d.File, d.Line, stack)
	case "ASSERT_ORDERED":
		return pmtrace.NewAssertOrderedEvent(d.Timestamp, deref(d.AddressA), deref(d.LengthA), deref(d.AddressB), deref(d.LengthB), d.Function, d.File, d.Line, stack)
	default:
		return nil, errors.Errorf("unrecognized event kind %q", d.Kind)
	}
}

func deref(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}
