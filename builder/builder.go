// Package builder assembles a raw event stream into the optimized
// trace document. It is the glue between the event model, the pass
// pipeline, and the serializer, in the same role a backing store's
// reader/writer plays for its subsystems.
package builder

import (
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/efeslab/pmtrace"
	"github.com/efeslab/pmtrace/optimize"
	"github.com/efeslab/pmtrace/serialize"
)

var (
	metricEventsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pmtrace",
		Name:      "events_added_total",
		Help:      "Total number of events added to a builder.",
	})
	metricDumpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pmtrace",
		Name:      "dump_duration_seconds",
		Help:      "Time spent optimizing and serializing a trace on Dump.",
		Buckets:   prometheus.ExponentialBuckets(.001, 2, 10),
	})
	metricDumpErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pmtrace",
		Name:      "dump_errors_total",
		Help:      "Total number of Dump calls that returned an error.",
	})
)

// Source identifies which harness produced the events a Builder
// collects, recorded in the output document's metadata.
type Source int

const (
	// GENERIC marks a trace assembled from a source-agnostic harness.
	GENERIC Source = iota
	// PMTEST marks a trace assembled from the pmtest record/replay harness.
	PMTEST
)

func (s Source) String() string {
	switch s {
	case GENERIC:
		return "GENERIC"
	case PMTEST:
		return "PMTEST"
	default:
		return "UNKNOWN"
	}
}

// Config holds builder tuning knobs. It is currently empty; it exists
// so future pass-tuning options don't require an API break.
type Config struct{}

// Builder accumulates events from a single trace run and, on Dump,
// runs them through the optimizer and writes the result to disk.
//
// A Builder is safe for concurrent use. Dump does not clear the
// accumulated events: the trace is treated as append-only for the
// lifetime of the Builder, and Dump is idempotent — calling it twice
// re-optimizes and rewrites the same logical trace.
type Builder struct {
	mu         sync.Mutex
	outputPath string
	logger     log.Logger
	cfg        Config
	runID      uuid.UUID

	events    []*pmtrace.Event
	source    Source
	sourceSet bool
}

// New creates a Builder that will write its optimized trace to
// outputPath on Dump.
func New(outputPath string, cfg Config, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Builder{
		outputPath: outputPath,
		logger:     logger,
		cfg:        cfg,
		runID:      uuid.New(),
	}
}

// SetSource records which harness produced the events this Builder
// will collect. It must be called before Dump.
func (b *Builder) SetSource(src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.source = src
	b.sourceSet = true
}

// AddEvent appends ev to the trace being built.
func (b *Builder) AddEvent(ev *pmtrace.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, ev)
	metricEventsAdded.Inc()
}

// Len reports the number of events currently accumulated.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Dump runs the accumulated events through the optimizer pipeline and
// writes the result to the Builder's output path. It returns a
// *pmtrace.MetadataError if SetSource was never called.
func (b *Builder) Dump() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.sourceSet {
		return &pmtrace.MetadataError{Reason: "source not set: call SetSource before Dump"}
	}

	start := time.Now()
	defer func() { metricDumpDuration.Observe(time.Since(start).Seconds()) }()

	level.Debug(b.logger).Log("msg", "optimizing trace", "events", len(b.events), "source", b.source.String())

	optimized := optimize.Run(b.events)

	meta := serialize.Metadata{
		Source: b.source.String(),
		RunID:  b.runID,
	}

	if err := serialize.Write(b.outputPath, meta, optimized); err != nil {
		metricDumpErrors.Inc()
		level.Error(b.logger).Log("msg", "failed to write trace document", "path", b.outputPath, "err", err)
		return errors.Wrap(err, "dump trace")
	}

	level.Info(b.logger).Log("msg", "wrote trace document", "path", b.outputPath, "in_events", len(b.events), "out_events", len(optimized))
	return nil
}
