package graph

import (
	"context"
	"io"
)

// Store is the interface for the story/cluster graph backend.
// Implementations: KuzuStore (production), MemStore (testing and cgo-free builds).
// Writes are upserts so a project can be re-indexed after every run.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddStory(ctx context.Context, node StoryNode) error
	AddCluster(ctx context.Context, node ClusterNode) error
	AddMembership(ctx context.Context, m Membership) error

	// Read operations. Clusters are ordered by ClusterID, stories by
	// descending similarity.
	Clusters(ctx context.Context, projectID string) ([]ClusterNode, error)
	ClusterStories(ctx context.Context, projectID string, clusterID int) ([]StoryNode, error)
	StoriesByPersona(ctx context.Context, projectID, who string) ([]StoryNode, error)

	// Stats.
	Stats(ctx context.Context, projectID string) (*GraphStats, error)
}
