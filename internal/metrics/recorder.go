// Package metrics records sequencer observability data. Components take a
// Recorder and default to NoopRecorder, so metrics stay optional.
package metrics

import "time"

// Outcome labels the way a run ended.
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeResumed   Outcome = "resumed"
	OutcomeCancelled Outcome = "cancelled"
)

// Recorder defines the sequencer's observability hooks. Implementations must
// be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(pipeline, stage string, d time.Duration)
	IncItemResult(pipeline, stage string, ok bool)
	IncStageError(pipeline, stage string)
	IncRunOutcome(pipeline string, outcome Outcome)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, string, time.Duration) {}
func (NoopRecorder) IncItemResult(string, string, bool)                 {}
func (NoopRecorder) IncStageError(string, string)                       {}
func (NoopRecorder) IncRunOutcome(string, Outcome)                      {}
