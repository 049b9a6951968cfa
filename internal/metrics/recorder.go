package metrics

import "time"

// ResultLabel enumerates per-collection result categories for counters.
type ResultLabel string

const (
	ResultRendered ResultLabel = "rendered"
	ResultSkipped  ResultLabel = "skipped"
	ResultFailed   ResultLabel = "failed"
)

// Recorder defines observability hooks for run and collection metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveRunDuration(kind string, d time.Duration)
	IncRunOutcome(kind, outcome string) // outcome: success|failed
	IncCollectionResult(collection string, result ResultLabel)
	ObserveEntriesResolved(collection string, n int)
	IncDeliveryResult(success bool)
	IncCommit(committed bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(string, time.Duration)      {}
func (NoopRecorder) IncRunOutcome(string, string)                  {}
func (NoopRecorder) IncCollectionResult(string, ResultLabel)       {}
func (NoopRecorder) ObserveEntriesResolved(string, int)            {}
func (NoopRecorder) IncDeliveryResult(bool)                        {}
func (NoopRecorder) IncCommit(bool)                                {}
