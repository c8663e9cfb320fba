package graph

import (
	"context"
	"fmt"

	"github.com/dusk-indust/elicit/internal/backend"
)

// IndexClusters loads a project's clustered stories into store: one Story
// node per distinct story, one Cluster node per cluster, and a MEMBER_OF
// edge for every story listed in a cluster. Re-indexing the same data is a
// no-op. It returns the number of clusters written.
func IndexClusters(ctx context.Context, store Store, data *backend.ClusteringData) (int, error) {
	if data == nil {
		return 0, nil
	}
	for _, c := range data.Clusters {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		stories := c.Stories
		if c.Representative.ID != "" {
			stories = append([]backend.ClusterStory{c.Representative}, stories...)
		}
		for _, cs := range stories {
			if err := store.AddStory(ctx, storyNode(data.ProjectID, cs)); err != nil {
				return 0, fmt.Errorf("graph: index story %s: %w", cs.ID, err)
			}
		}

		node := ClusterNode{
			ProjectID:      data.ProjectID,
			ClusterID:      c.ID,
			Size:           c.Size,
			Sources:        c.Sources,
			Representative: c.Representative.ID,
			Headline:       c.Representative.FullSentence,
		}
		if err := store.AddCluster(ctx, node); err != nil {
			return 0, fmt.Errorf("graph: index cluster %d: %w", c.ID, err)
		}
		for _, cs := range c.Stories {
			m := Membership{
				StoryID:    cs.ID,
				ProjectID:  data.ProjectID,
				ClusterID:  c.ID,
				Similarity: cs.SimilarityScore,
			}
			if err := store.AddMembership(ctx, m); err != nil {
				return 0, fmt.Errorf("graph: index cluster %d: %w", c.ID, err)
			}
		}
	}
	return len(data.Clusters), nil
}

func storyNode(projectID string, cs backend.ClusterStory) StoryNode {
	n := StoryNode{
		ID:         cs.ID,
		ProjectID:  cs.ProjectID,
		Who:        cs.Who,
		What:       cs.What,
		Sentence:   cs.FullSentence,
		Source:     string(cs.Source),
		SourceID:   cs.SourceID,
		Confidence: cs.SimilarityScore,
	}
	if n.ProjectID == "" {
		n.ProjectID = projectID
	}
	if cs.Why != nil {
		n.Why = *cs.Why
	}
	return n
}
