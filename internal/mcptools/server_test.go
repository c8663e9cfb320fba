package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/graph"
)

// doneBackend reports AI generation as already finished for every project,
// serving one cluster of two stories.
type doneBackend struct {
	backend.Backend
}

func (doneBackend) FetchState(context.Context, string) (*backend.FetchState, error) {
	return &backend.FetchState{AIUserStories: true}, nil
}

func (doneBackend) AIStories(context.Context, string) ([]backend.AIStory, error) {
	return []backend.AIStory{{ID: "s1", Who: "driver"}, {ID: "s2", Who: "Commuter"}}, nil
}

func (doneBackend) AIClusters(_ context.Context, projectID string) (*backend.ClusteringData, error) {
	return &backend.ClusteringData{
		ProjectID: projectID,
		Clusters: []backend.Cluster{{
			ID:   0,
			Size: 2,
			Representative: backend.ClusterStory{
				ID: "s1", Who: "driver", What: "see traffic",
				FullSentence: "As a driver, I want to see traffic", SimilarityScore: 0.9,
			},
			Stories: []backend.ClusterStory{
				{ID: "s1", Who: "driver", What: "see traffic", FullSentence: "As a driver, I want to see traffic", SimilarityScore: 0.9},
				{ID: "s2", Who: "Commuter", What: "get reroutes", SimilarityScore: 0.6},
			},
			Sources: []string{"review"},
		}},
	}, nil
}

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T, store graph.Store) *mcp.ClientSession {
	t.Helper()

	m := generation.NewManager(generation.Deps{Backend: doneBackend{}, Graph: store})
	t.Cleanup(func() { m.Close() })
	server := NewMCPServer(NewGenerationService(m, store))

	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session
}

// callTool invokes a tool and decodes its structured output into out.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any, out any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	if result.IsError || out == nil {
		return result
	}
	require.NotNil(t, result.StructuredContent, "expected structured content from %s", name)
	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
	return result
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t, graph.NewMemStore())

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)

	assert.Equal(t, []string{
		"cancel_generation",
		"get_progress",
		"list_clusters",
		"restart_generation",
		"start_generation",
	}, names)
}

func TestMCPStartGeneration_Wait(t *testing.T) {
	session := setupServerClient(t, graph.NewMemStore())

	var out ProgressOutput
	result := callTool(t, session, "start_generation", RunInput{ProjectID: "p1", Wait: true}, &out)
	require.False(t, result.IsError)

	assert.Equal(t, "p1", out.ProjectID)
	assert.Equal(t, "ai", out.Pipeline)
	assert.Equal(t, "complete", out.State)
	assert.Equal(t, "complete", out.Outcome)
	assert.Equal(t, 100.0, out.Percent)
	require.Len(t, out.Steps, len(generation.AIStages))
	assert.Contains(t, out.View, "All stages complete.")
}

func TestMCPGetProgress_AfterStart(t *testing.T) {
	session := setupServerClient(t, graph.NewMemStore())

	result := callTool(t, session, "get_progress", RunInput{ProjectID: "p1"}, nil)
	require.True(t, result.IsError, "no run before start")

	callTool(t, session, "start_generation", RunInput{ProjectID: "p1", Wait: true}, nil)

	var out ProgressOutput
	result = callTool(t, session, "get_progress", RunInput{ProjectID: "p1"}, &out)
	require.False(t, result.IsError)
	assert.Equal(t, "complete", out.Outcome)
	assert.Len(t, out.Steps, len(generation.AIStages))

	result = callTool(t, session, "get_progress", RunInput{ProjectID: "p1", Pipeline: "requirements"}, nil)
	assert.True(t, result.IsError, "other pipelines stay unstarted")
}

func TestMCPRunTools_InvalidInput(t *testing.T) {
	session := setupServerClient(t, graph.NewMemStore())

	tests := []struct {
		tool string
		args RunInput
	}{
		{"start_generation", RunInput{}},
		{"get_progress", RunInput{ProjectID: "p1", Pipeline: "bogus"}},
		{"get_progress", RunInput{ProjectID: "never-started"}},
		{"cancel_generation", RunInput{ProjectID: "never-started"}},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			result := callTool(t, session, tt.tool, tt.args, nil)
			assert.True(t, result.IsError)
		})
	}
}

func TestMCPRestartGeneration(t *testing.T) {
	session := setupServerClient(t, graph.NewMemStore())

	var first, second ProgressOutput
	callTool(t, session, "start_generation", RunInput{ProjectID: "p1", Wait: true}, &first)
	callTool(t, session, "restart_generation", RunInput{ProjectID: "p1", Wait: true}, &second)

	assert.Equal(t, "complete", second.Outcome)
	assert.NotEqual(t, first.RunID, second.RunID)

	var cancelled ProgressOutput
	result := callTool(t, session, "cancel_generation", RunInput{ProjectID: "p1"}, &cancelled)
	require.False(t, result.IsError, "cancel on a finished run is a no-op")
	assert.Equal(t, "complete", cancelled.State)
}

func TestMCPListClusters(t *testing.T) {
	session := setupServerClient(t, graph.NewMemStore())
	callTool(t, session, "start_generation", RunInput{ProjectID: "p1", Wait: true}, &ProgressOutput{})

	var out ListClustersOutput
	callTool(t, session, "list_clusters", ListClustersInput{ProjectID: "p1", Persona: "commuter"}, &out)

	require.Len(t, out.Clusters, 1)
	assert.Equal(t, "As a driver, I want to see traffic", out.Clusters[0].Headline)
	assert.Equal(t, graph.GraphStats{StoryCount: 2, ClusterCount: 1, MembershipCount: 2, PersonaCount: 2}, out.Stats)
	require.Len(t, out.Stories, 1)
	assert.Equal(t, "s2", out.Stories[0].ID)
}

func TestMCPListClusters_NoGraph(t *testing.T) {
	session := setupServerClient(t, nil)
	result := callTool(t, session, "list_clusters", ListClustersInput{ProjectID: "p1"}, nil)
	assert.True(t, result.IsError)
}

func TestMCPCallUnknownTool(t *testing.T) {
	session := setupServerClient(t, graph.NewMemStore())

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "nonexistent_tool",
		Arguments: map[string]any{},
	})
	// The SDK may fail at the protocol level or set IsError.
	if err != nil {
		return
	}
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}
