package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/elicit/internal/graph"
)

// ClustersMermaid produces a Mermaid graph TD diagram of a project's
// clusters. Each cluster is a subgraph of its member stories; the
// representative story points at the cluster headline.
func ClustersMermaid(ctx context.Context, store graph.Store, projectID string) (string, error) {
	clusters, err := store.Clusters(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("export: get clusters: %w", err)
	}

	// Mermaid node IDs must be alphanumeric.
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, c := range clusters {
		members, err := store.ClusterStories(ctx, projectID, c.ClusterID)
		if err != nil {
			return "", fmt.Errorf("export: cluster %d stories: %w", c.ClusterID, err)
		}
		if len(members) == 0 {
			continue
		}

		title := fmt.Sprintf("Cluster %d (%d)", c.ClusterID, c.Size)
		fmt.Fprintf(&sb, "  subgraph %s[\"%s\"]\n", getID(c.Key()), label(title, 40))
		for _, s := range members {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(s.ID), label(s.Who+": "+s.What, 60))
		}
		sb.WriteString("  end\n")

		if c.Representative != "" && c.Headline != "" {
			head := getID(c.Key() + "/headline")
			fmt.Fprintf(&sb, "  %s([\"%s\"])\n", head, label(c.Headline, 80))
			fmt.Fprintf(&sb, "  %s --> %s\n", getID(c.Representative), head)
		}
	}

	return sb.String(), nil
}

// label truncates to max runes and strips characters that break Mermaid
// labels.
func label(s string, max int) string {
	s = strings.NewReplacer(`"`, "'", "\n", " ", "[", "(", "]", ")").Replace(s)
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
