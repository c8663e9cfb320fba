package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/graph"
	"github.com/dusk-indust/elicit/internal/sequencer"
	"github.com/dusk-indust/elicit/internal/status"
)

// GenerationService holds the run manager and graph used by MCP tool
// handlers.
type GenerationService struct {
	manager *generation.Manager
	graph   graph.Store
}

// NewGenerationService creates a GenerationService. store may be nil, in
// which case list_clusters fails.
func NewGenerationService(m *generation.Manager, store graph.Store) *GenerationService {
	return &GenerationService{manager: m, graph: store}
}

// StartGeneration activates a project's pipeline, resuming where it stopped.
func (s *GenerationService) StartGeneration(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunInput,
) (*mcp.CallToolResult, ProgressOutput, error) {
	projectID, kind, err := parseRunInput(input)
	if err != nil {
		return nil, ProgressOutput{}, err
	}
	run, err := s.manager.Start(ctx, projectID, kind)
	if err != nil {
		return nil, ProgressOutput{}, err
	}
	return s.finish(ctx, run, input.Wait)
}

// RestartGeneration runs a project's pipeline again from the first stage.
func (s *GenerationService) RestartGeneration(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunInput,
) (*mcp.CallToolResult, ProgressOutput, error) {
	projectID, kind, err := parseRunInput(input)
	if err != nil {
		return nil, ProgressOutput{}, err
	}
	run, err := s.manager.Restart(ctx, projectID, kind)
	if err != nil {
		return nil, ProgressOutput{}, err
	}
	return s.finish(ctx, run, input.Wait)
}

// CancelGeneration asks a project's active run to stop.
func (s *GenerationService) CancelGeneration(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input RunInput,
) (*mcp.CallToolResult, ProgressOutput, error) {
	projectID, kind, err := parseRunInput(input)
	if err != nil {
		return nil, ProgressOutput{}, err
	}
	if !s.manager.Cancel(projectID, kind) {
		return nil, ProgressOutput{}, fmt.Errorf("no %s run for project %s", kind, projectID)
	}
	run, _ := s.manager.Lookup(projectID, kind)
	return nil, progressOutput(run.Snapshot()), nil
}

// GetProgress returns the current snapshot of a project's pipeline. It
// does not create a run.
func (s *GenerationService) GetProgress(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input RunInput,
) (*mcp.CallToolResult, ProgressOutput, error) {
	projectID, kind, err := parseRunInput(input)
	if err != nil {
		return nil, ProgressOutput{}, err
	}
	run, ok := s.manager.Lookup(projectID, kind)
	if !ok {
		return nil, ProgressOutput{}, fmt.Errorf("no %s run for project %s", kind, projectID)
	}
	return nil, progressOutput(run.Snapshot()), nil
}

// ListClusters returns a project's indexed clusters and graph stats.
func (s *GenerationService) ListClusters(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListClustersInput,
) (*mcp.CallToolResult, ListClustersOutput, error) {
	if s.graph == nil {
		return nil, ListClustersOutput{}, errors.New("graph store is not configured")
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, ListClustersOutput{}, errors.New("projectId is required")
	}

	clusters, err := s.graph.Clusters(ctx, input.ProjectID)
	if err != nil {
		return nil, ListClustersOutput{}, fmt.Errorf("get clusters: %w", err)
	}
	stats, err := s.graph.Stats(ctx, input.ProjectID)
	if err != nil {
		return nil, ListClustersOutput{}, fmt.Errorf("get stats: %w", err)
	}
	out := ListClustersOutput{Clusters: clusters, Stats: *stats}
	if out.Clusters == nil {
		out.Clusters = []graph.ClusterNode{}
	}
	if input.Persona != "" {
		out.Stories, err = s.graph.StoriesByPersona(ctx, input.ProjectID, input.Persona)
		if err != nil {
			return nil, ListClustersOutput{}, fmt.Errorf("stories by persona: %w", err)
		}
	}
	return nil, out, nil
}

func (s *GenerationService) finish(ctx context.Context, run *generation.Run, wait bool) (*mcp.CallToolResult, ProgressOutput, error) {
	if wait {
		if err := run.Wait(ctx); err != nil {
			return nil, ProgressOutput{}, err
		}
	}
	return nil, progressOutput(run.Snapshot()), nil
}

func parseRunInput(input RunInput) (string, generation.Kind, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return "", "", errors.New("projectId is required")
	}
	pipeline := input.Pipeline
	if pipeline == "" {
		pipeline = string(generation.KindAI)
	}
	kind, err := generation.ParseKind(pipeline)
	if err != nil {
		return "", "", err
	}
	return projectID, kind, nil
}

func progressOutput(p sequencer.Progress) ProgressOutput {
	rs := status.FromProgress(p)
	var view strings.Builder
	_ = status.Render(&view, p)

	out := ProgressOutput{
		ProjectID:   p.ProjectID,
		Pipeline:    p.Pipeline,
		RunID:       p.RunID,
		State:       p.State.String(),
		Outcome:     rs.Outcome,
		Percent:     p.Percent,
		CurrentStep: p.CurrentStep,
		Steps:       make([]StepOutput, len(rs.Stages)),
		View:        view.String(),
	}
	for i, si := range rs.Stages {
		out.Steps[i] = StepOutput{
			Name:        si.Name,
			Description: si.Description,
			Status:      si.Label,
			Error:       si.Error,
			Processed:   si.Counters.Processed,
			Failed:      si.Counters.Failed,
		}
	}
	return out
}
