package sequencer

import (
	"context"
	"fmt"
	"time"
)

// State is the sequencer's lifecycle state.
//
//	Idle --start--> Running --allStagesFinished--> Complete
//	Running --cancel--> Cancelling --stageFinished--> Idle
//	Complete --restart--> Running
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateRunning, StateCancelling, StateComplete} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("sequencer: unknown state %q", b)
}

// active reports whether a run goroutine owns the sequencer.
func (s State) active() bool {
	return s == StateRunning || s == StateCancelling
}

// Stage describes one ordered phase of a pipeline.
type Stage struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StageFunc does a stage's work. A returned error is recorded against the
// stage and does not stop the run.
type StageFunc func(ctx context.Context, sc *StageContext) error

// ResumeFunc reports whether the project's pipeline already produced its
// final artifacts. When it returns true it has loaded them.
type ResumeFunc func(ctx context.Context, projectID string) (bool, error)

// Counters are the per-item results recorded for a stage.
type Counters struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Progress is the read-only view of a sequencer offered to presentation
// layers.
type Progress struct {
	ProjectID    string     `json:"projectId"`
	Pipeline     string     `json:"pipeline"`
	RunID        string     `json:"runId,omitempty"`
	State        State      `json:"state"`
	IsGenerating bool       `json:"isGenerating"`
	IsComplete   bool       `json:"isComplete"`
	CurrentStep  int        `json:"currentStepIndex"`
	Percent      float64    `json:"progressPercent"`
	Steps        []Stage    `json:"steps"`
	StepErrors   []string   `json:"stepErrors"`
	StepStats    []Counters `json:"stepStats"`
	StartedAt    time.Time  `json:"startedAt,omitzero"`
	FinishedAt   time.Time  `json:"finishedAt,omitzero"`
	// Failure is set when the last run stopped on an internal fault rather
	// than a cancel.
	Failure      string     `json:"failure,omitempty"`
}

// ErrorCount returns how many stages recorded an error.
func (p Progress) ErrorCount() int {
	n := 0
	for _, e := range p.StepErrors {
		if e != "" {
			n++
		}
	}
	return n
}

// EventKind classifies sequencer events.
type EventKind string

const (
	EventStarted       EventKind = "started"
	EventResumed       EventKind = "resumed"
	EventStageStarted  EventKind = "stage_started"
	EventItem          EventKind = "item"
	EventProgress      EventKind = "progress"
	EventStageFinished EventKind = "stage_finished"
	EventCompleted     EventKind = "completed"
	EventCancelled     EventKind = "cancelled"
)

// Event is emitted to observers as a run advances. Run-level events carry
// Stage -1.
type Event struct {
	Kind      EventKind `json:"kind"`
	ProjectID string    `json:"projectId"`
	Pipeline  string    `json:"pipeline"`
	RunID     string    `json:"runId"`
	Stage     int       `json:"stage"`
	StageName string    `json:"stageName,omitempty"`
	Percent   float64   `json:"percent"`
	OK        bool      `json:"ok,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// Terminal reports whether ev ends a run.
func (ev Event) Terminal() bool {
	switch ev.Kind {
	case EventCompleted, EventCancelled, EventResumed:
		return true
	}
	return false
}
