package graph

import "strconv"

// --- Enums ---

// NodeKind classifies nodes in the requirements graph.
type NodeKind string

const (
	NodeKindStory   NodeKind = "story"
	NodeKindCluster NodeKind = "cluster"
)

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	EdgeKindMemberOf   EdgeKind = "MEMBER_OF"
	EdgeKindRepresents EdgeKind = "REPRESENTS"
)

// --- Models ---

// StoryNode is an AI user story placed in the graph.
type StoryNode struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"projectId"`
	Who        string  `json:"who"`
	What       string  `json:"what"`
	Why        string  `json:"why,omitempty"`
	Sentence   string  `json:"sentence"`
	Source     string  `json:"source"`
	SourceID   string  `json:"sourceId"`
	Confidence float64 `json:"confidence"`
}

// ClusterNode is one backend-computed cluster of similar stories.
type ClusterNode struct {
	ProjectID      string   `json:"projectId"`
	ClusterID      int      `json:"clusterId"`
	Size           int      `json:"size"`
	Sources        []string `json:"sources"`
	Representative string   `json:"representative"` // story ID
	Headline       string   `json:"headline,omitempty"`
}

// Key identifies the cluster across projects.
func (c ClusterNode) Key() string {
	return clusterKey(c.ProjectID, c.ClusterID)
}

// Membership places a story in a cluster.
type Membership struct {
	StoryID    string  `json:"storyId"`
	ProjectID  string  `json:"projectId"`
	ClusterID  int     `json:"clusterId"`
	Similarity float64 `json:"similarity"`
}

// GraphStats summarizes the graph for one project.
type GraphStats struct {
	StoryCount      int `json:"storyCount"`
	ClusterCount    int `json:"clusterCount"`
	MembershipCount int `json:"membershipCount"`
	PersonaCount    int `json:"personaCount"`
}

// clusterKey produces a deterministic identifier: "projectID#clusterID".
func clusterKey(projectID string, clusterID int) string {
	return projectID + "#" + strconv.Itoa(clusterID)
}
