package status

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/elicit/internal/sequencer"
)

func steps() []sequencer.Stage {
	return []sequencer.Stage{
		{Name: "AI Processing", Description: "Aggregating sources, cleaning content, and extracting stories"},
		{Name: "Finalizing Stories", Description: "Structuring and mapping evidence"},
		{Name: "Generating Use Cases", Description: "Creating system interactions and diagrams"},
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		p    sequencer.Progress
		want string
	}{
		{"never started", sequencer.Progress{}, "idle"},
		{"running", sequencer.Progress{State: sequencer.StateRunning}, "running"},
		{"cancelling", sequencer.Progress{State: sequencer.StateCancelling}, "cancelling"},
		{"complete", sequencer.Progress{State: sequencer.StateComplete}, "complete"},
		{"cancelled", sequencer.Progress{RunID: "r1", FinishedAt: time.Now()}, "cancelled"},
		{"failed", sequencer.Progress{RunID: "r1", FinishedAt: time.Now(), Failure: "run panicked: boom"}, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.p))
		})
	}
}

func TestFromProgress_Labels(t *testing.T) {
	p := sequencer.Progress{
		State:       sequencer.StateRunning,
		CurrentStep: 1,
		Steps:       steps(),
		StepErrors:  []string{"", "", ""},
		StepStats:   []sequencer.Counters{{Processed: 4, Failed: 1}, {}, {}},
	}
	rs := FromProgress(p)
	assert.Equal(t, 1, rs.Current)
	assert.Equal(t, "complete", rs.Stages[0].Label)
	assert.Equal(t, "running", rs.Stages[1].Label)
	assert.Equal(t, "pending", rs.Stages[2].Label)
	assert.Equal(t, sequencer.Counters{Processed: 4, Failed: 1}, rs.Stages[0].Counters)
}

func TestRender_RunningWithErrors(t *testing.T) {
	p := sequencer.Progress{
		ProjectID:   "p1",
		Pipeline:    "ai",
		RunID:       "r1",
		State:       sequencer.StateRunning,
		CurrentStep: 2,
		Percent:     66.67,
		Steps:       steps(),
		StepErrors:  []string{"", "backend: GET /get-project-user-stories-ai failed (500)", ""},
		StepStats:   []sequencer.Counters{{Processed: 60, Failed: 10}, {}, {}},
	}

	var sb strings.Builder
	require.NoError(t, Render(&sb, p))
	out := sb.String()

	assert.Contains(t, out, "Pipeline: ai  Project: p1  [running]")
	assert.Contains(t, out, "Step 3 of 3")
	assert.Contains(t, out, " 66.67%")
	assert.Contains(t, out, "60 ok, 10 failed")
	assert.Contains(t, out, "error: backend: GET /get-project-user-stories-ai failed (500)")
	assert.Contains(t, out, "-> Stage 3: Generating Use Cases")
	assert.Contains(t, out, "1 step reporting errors (continuing)")
	assert.NotContains(t, out, "All stages complete.")
}

func TestRender_Complete(t *testing.T) {
	p := sequencer.Progress{
		ProjectID:  "p1",
		Pipeline:   "requirements",
		State:      sequencer.StateComplete,
		IsComplete: true,
		Percent:    100,
		Steps:      steps(),
		StepErrors: []string{"", "", ""},
		StepStats:  make([]sequencer.Counters, 3),
	}

	var sb strings.Builder
	require.NoError(t, Render(&sb, p))
	out := sb.String()

	assert.Contains(t, out, "[##############################] 100.00%")
	assert.Contains(t, out, "Structuring and mapping evidence")
	assert.Contains(t, out, "All stages complete.")
	assert.NotContains(t, out, "->")
	assert.NotContains(t, out, "reporting errors")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[.....]", bar(0, 5))
	assert.Equal(t, "[##...]", bar(40, 5))
	assert.Equal(t, "[#####]", bar(150, 5))
}

func TestRender_Failed(t *testing.T) {
	p := sequencer.Progress{
		ProjectID:   "p1",
		Pipeline:    "ai",
		RunID:       "r1",
		CurrentStep: 1,
		Steps:       steps(),
		StepErrors:  []string{"", "run panicked: boom", ""},
		StepStats:   make([]sequencer.Counters, 3),
		FinishedAt:  time.Now(),
		Failure:     "run panicked: boom",
	}
	var b strings.Builder
	require.NoError(t, Render(&b, p))
	out := b.String()
	assert.Contains(t, out, "[failed]")
	assert.NotContains(t, out, "cancelled")
	assert.Contains(t, out, "Run stopped: run panicked: boom")
}
