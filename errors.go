package pmtrace

import "fmt"

// ValidationError reports that an Event failed structural validation
// against invariants I1/I2. Raised at construction; the caller must
// fix the input, it is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pmtrace: invalid field %q: %s", e.Field, e.Reason)
}

// MetadataError reports that Dump was called on a Builder before
// SetSource. Fatal for that Dump call; the trace held by the builder
// is left intact and the caller may retry after calling SetSource.
type MetadataError struct {
	Reason string
}

func (e *MetadataError) Error() string {
	return "pmtrace: " + e.Reason
}
