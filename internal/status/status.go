package status

import (
	"fmt"
	"io"
	"strings"

	"github.com/dusk-indust/elicit/internal/sequencer"
)

// StageInfo describes the display state of a single stage.
type StageInfo struct {
	Stage       int
	Name        string
	Description string
	Label       string // pending, running, complete, error
	Error       string
	Counters    sequencer.Counters
}

// RunStatus is the display model of one pipeline run.
type RunStatus struct {
	ProjectID string
	Pipeline  string
	Outcome   string
	Percent   float64
	Current   int // -1 when no stage is active
	Stages    []StageInfo
	Errors    int
}

// Outcome classifies a snapshot: running, cancelling, complete, failed
// (the run loop stopped on a fault), cancelled (idle with partial progress)
// or idle.
func Outcome(p sequencer.Progress) string {
	switch p.State {
	case sequencer.StateRunning:
		return "running"
	case sequencer.StateCancelling:
		return "cancelling"
	case sequencer.StateComplete:
		return "complete"
	}
	if p.Failure != "" {
		return "failed"
	}
	if p.RunID != "" && !p.FinishedAt.IsZero() {
		return "cancelled"
	}
	return "idle"
}

// FromProgress builds the display model for a snapshot.
func FromProgress(p sequencer.Progress) RunStatus {
	rs := RunStatus{
		ProjectID: p.ProjectID,
		Pipeline:  p.Pipeline,
		Outcome:   Outcome(p),
		Percent:   p.Percent,
		Current:   -1,
		Stages:    make([]StageInfo, len(p.Steps)),
		Errors:    p.ErrorCount(),
	}
	active := p.State == sequencer.StateRunning || p.State == sequencer.StateCancelling
	if active {
		rs.Current = p.CurrentStep
	}
	for i, st := range p.Steps {
		si := StageInfo{Stage: i, Name: st.Name, Description: st.Description, Label: "pending"}
		if i < len(p.StepStats) {
			si.Counters = p.StepStats[i]
		}
		if i < len(p.StepErrors) {
			si.Error = p.StepErrors[i]
		}
		switch {
		case si.Error != "":
			si.Label = "error"
		case p.State == sequencer.StateComplete, i < p.CurrentStep:
			si.Label = "complete"
		case active && i == p.CurrentStep:
			si.Label = "running"
		}
		rs.Stages[i] = si
	}
	return rs
}

// Render writes the progress view for a snapshot: the step header,
// a percentage bar, one line per stage and the error banner.
func Render(w io.Writer, p sequencer.Progress) error {
	rs := FromProgress(p)
	var b strings.Builder

	fmt.Fprintf(&b, "Pipeline: %s  Project: %s  [%s]\n", rs.Pipeline, rs.ProjectID, rs.Outcome)
	if n := len(rs.Stages); n > 0 {
		step := p.CurrentStep + 1
		if step > n {
			step = n
		}
		fmt.Fprintf(&b, "Step %d of %d  %s %6.2f%%\n", step, n, bar(rs.Percent, 30), rs.Percent)
	}
	b.WriteString("\n")

	for _, si := range rs.Stages {
		marker := "  "
		if si.Stage == rs.Current {
			marker = "->"
		}
		fmt.Fprintf(&b, "  %s Stage %d: %-26s [%s]", marker, si.Stage+1, si.Name, si.Label)
		if c := si.Counters; c.Processed+c.Failed > 0 {
			fmt.Fprintf(&b, "  %d ok, %d failed", c.Processed, c.Failed)
		}
		b.WriteString("\n")
		detail := si.Description
		if si.Error != "" {
			detail = "error: " + si.Error
		}
		if detail != "" {
			fmt.Fprintf(&b, "       %s\n", detail)
		}
	}

	if rs.Errors > 0 {
		noun := "steps"
		if rs.Errors == 1 {
			noun = "step"
		}
		fmt.Fprintf(&b, "\n  %d %s reporting errors (continuing)\n", rs.Errors, noun)
	}
	if rs.Outcome == "failed" {
		fmt.Fprintf(&b, "\n  Run stopped: %s\n", p.Failure)
	}
	if rs.Outcome == "complete" {
		b.WriteString("  All stages complete.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// bar draws a fixed-width percentage bar.
func bar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
