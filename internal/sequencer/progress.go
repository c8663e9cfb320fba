package sequencer

import (
	"fmt"
	"math"
	"sync"
)

// ProgressReporter delivers events through a buffered channel.
type ProgressReporter struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan Event, 64),
	}
}

// Emit sends an event without blocking. If the channel is full or closed,
// the event is dropped.
func (pr *ProgressReporter) Emit(event Event) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return
	}
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming events.
func (pr *ProgressReporter) Subscribe() <-chan Event {
	return pr.ch
}

// Close closes the event channel. Safe to call more than once.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return
	}
	pr.closed = true
	close(pr.ch)
}

// FormatEvent formats an event as a human-readable status line.
func FormatEvent(ev Event) string {
	switch ev.Kind {
	case EventStarted:
		return fmt.Sprintf("▶ %s started for %s", ev.Pipeline, ev.ProjectID)
	case EventResumed:
		return fmt.Sprintf("✓ %s already complete for %s", ev.Pipeline, ev.ProjectID)
	case EventStageStarted:
		return fmt.Sprintf("  ● %s...", ev.StageName)
	case EventItem:
		if ev.OK {
			return fmt.Sprintf("    + item ok (%.2f%%)", ev.Percent)
		}
		return fmt.Sprintf("    - item failed (%.2f%%)", ev.Percent)
	case EventProgress:
		return fmt.Sprintf("    %.2f%%", ev.Percent)
	case EventStageFinished:
		if ev.Message != "" {
			return fmt.Sprintf("  ✗ %s: %s (continuing)", ev.StageName, ev.Message)
		}
		return fmt.Sprintf("  ✓ %s complete", ev.StageName)
	case EventCompleted:
		return "✓ generation complete"
	case EventCancelled:
		return "■ generation cancelled"
	default:
		return fmt.Sprintf("  ? %s", ev.Kind)
	}
}

// stagePercent maps a position within the stage list onto [0,100], rounded
// to two decimals.
func stagePercent(index int, fraction float64, total int) float64 {
	if total == 0 {
		return 100
	}
	fraction = math.Max(0, math.Min(1, fraction))
	p := (float64(index) + fraction) / float64(total) * 100
	return math.Round(p*100) / 100
}
