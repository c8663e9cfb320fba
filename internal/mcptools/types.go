package mcptools

import "github.com/dusk-indust/elicit/internal/graph"

// --- MCP Tool Input Types ---
// The MCP Go SDK generates each tool's JSON schema from these struct tags.

// RunInput selects a project's pipeline. It is the input of
// start_generation, restart_generation, cancel_generation and get_progress.
type RunInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project identifier"`
	Pipeline  string `json:"pipeline,omitempty" jsonschema:"requirements, ai or collection (default: ai)"`
	Wait      bool   `json:"wait,omitempty" jsonschema:"block until the run finishes (start and restart only)"`
}

// ListClustersInput is the input for the list_clusters MCP tool.
type ListClustersInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project identifier"`
	Persona   string `json:"persona,omitempty" jsonschema:"only return stories whose persona matches, ignoring case"`
}

// --- MCP Tool Output Types ---

// StepOutput is one stage of a run.
type StepOutput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
}

// ProgressOutput is the result of every run tool.
type ProgressOutput struct {
	ProjectID   string       `json:"projectId"`
	Pipeline    string       `json:"pipeline"`
	RunID       string       `json:"runId,omitempty"`
	State       string       `json:"state"`
	Outcome     string       `json:"outcome"`
	Percent     float64      `json:"progressPercent"`
	CurrentStep int          `json:"currentStepIndex"`
	Steps       []StepOutput `json:"steps"`
	View        string       `json:"view"`
}

// ListClustersOutput is the result of the list_clusters MCP tool.
type ListClustersOutput struct {
	Clusters []graph.ClusterNode `json:"clusters"`
	Stories  []graph.StoryNode   `json:"stories,omitempty"`
	Stats    graph.GraphStats    `json:"stats"`
}
