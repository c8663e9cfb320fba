package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/sequencer"
	"github.com/dusk-indust/elicit/internal/status"
)

// RunExport is the top-level JSON export structure.
type RunExport struct {
	ProjectID  string                     `json:"projectId"`
	Pipeline   string                     `json:"pipeline"`
	RunID      string                     `json:"runId,omitempty"`
	Outcome    string                     `json:"outcome"`
	Percent    float64                    `json:"progressPercent"`
	ExportedAt string                     `json:"exportedAt"`
	Stages     []StageExport              `json:"stages"`
	Stories    []backend.Story            `json:"stories,omitempty"`
	AIStories  []backend.AIStory          `json:"aiStories,omitempty"`
	UseCases   *backend.UseCaseGeneration `json:"useCases,omitempty"`
}

// StageExport describes one pipeline stage.
type StageExport struct {
	Stage     int    `json:"stage"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// Artifacts are the stage outputs included in a run export.
type Artifacts struct {
	Stories   []backend.Story
	AIStories []backend.AIStory
	UseCases  *backend.UseCaseGeneration
}

// BuildRun assembles a RunExport from a snapshot and its artifacts.
func BuildRun(p sequencer.Progress, a Artifacts) *RunExport {
	rs := status.FromProgress(p)
	out := &RunExport{
		ProjectID:  p.ProjectID,
		Pipeline:   p.Pipeline,
		RunID:      p.RunID,
		Outcome:    rs.Outcome,
		Percent:    p.Percent,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Stages:     make([]StageExport, 0, len(rs.Stages)),
		Stories:    a.Stories,
		AIStories:  a.AIStories,
		UseCases:   a.UseCases,
	}
	for _, si := range rs.Stages {
		out.Stages = append(out.Stages, StageExport{
			Stage:     si.Stage + 1,
			Name:      si.Name,
			Status:    si.Label,
			Error:     si.Error,
			Processed: si.Counters.Processed,
			Failed:    si.Counters.Failed,
		})
	}
	return out
}

// RunJSON renders a snapshot and its artifacts as indented JSON.
func RunJSON(p sequencer.Progress, a Artifacts) ([]byte, error) {
	data, err := json.MarshalIndent(BuildRun(p, a), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal run: %w", err)
	}
	return data, nil
}
