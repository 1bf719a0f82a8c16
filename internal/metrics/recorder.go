// Package metrics records export counters and durations. Components take a
// Recorder; NoopRecorder is the default when metrics are not configured.
package metrics

import "time"

// OutcomeLabel enumerates per-element export outcomes.
type OutcomeLabel string

const (
	// OutcomeGeometry: element written with a faceted representation.
	OutcomeGeometry OutcomeLabel = "geometry"
	// OutcomeEmpty: element written, solid produced no facets.
	OutcomeEmpty OutcomeLabel = "empty"
	// OutcomeTimeout: element written without geometry after its deadline.
	OutcomeTimeout OutcomeLabel = "timeout"
	// OutcomeFailed: element written without geometry after an error.
	OutcomeFailed OutcomeLabel = "failed"
)

// Recorder defines the export observability hooks.
type Recorder interface {
	IncElement(kind string, outcome OutcomeLabel)
	AddFacets(kind string, n int)
	ObserveElementDuration(kind string, d time.Duration)
	ObserveExportDuration(d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncElement(string, OutcomeLabel)              {}
func (NoopRecorder) AddFacets(string, int)                        {}
func (NoopRecorder) ObserveElementDuration(string, time.Duration) {}
func (NoopRecorder) ObserveExportDuration(time.Duration, bool)    {}
