package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dusk-indust/elicit/internal/export"
	"github.com/dusk-indust/elicit/internal/graph"
	"github.com/dusk-indust/elicit/internal/logfields"
)

// ClustersCmd implements the 'clusters' command.
type ClustersCmd struct {
	Project string `arg:"" help:"Project id"`
	Mermaid bool   `help:"Print a Mermaid flowchart instead of a table"`
	Persona string `help:"List the stories of one persona instead of the clusters"`
	Cached  bool   `help:"Read the graph as indexed by earlier runs without refetching"`
}

func (c *ClustersCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{graph: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if !c.Cached {
		data, err := a.backend.AIClusters(ctx, c.Project)
		if err != nil {
			return err
		}
		n, err := graph.IndexClusters(ctx, a.graph, data)
		if err != nil {
			return err
		}
		a.logger.Debug("Indexed clusters", logfields.ProjectID(c.Project), slog.Int("stories", n))
	}

	switch {
	case c.Mermaid:
		out, err := export.ClustersMermaid(ctx, a.graph, c.Project)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	case c.Persona != "":
		return c.printPersona(ctx, a.graph)
	default:
		return c.printClusters(ctx, a.graph)
	}
}

func (c *ClustersCmd) printClusters(ctx context.Context, g graph.Store) error {
	clusters, err := g.Clusters(ctx, c.Project)
	if err != nil {
		return err
	}
	stats, err := g.Stats(ctx, c.Project)
	if err != nil {
		return err
	}
	fmt.Printf("%d clusters, %d stories, %d personas\n\n", stats.ClusterCount, stats.StoryCount, stats.PersonaCount)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLUSTER\tSIZE\tSOURCES\tHEADLINE")
	for _, cl := range clusters {
		fmt.Fprintf(tw, "%d\t%d\t%v\t%s\n", cl.ClusterID, cl.Size, cl.Sources, cl.Headline)
	}
	return tw.Flush()
}

func (c *ClustersCmd) printPersona(ctx context.Context, g graph.Store) error {
	stories, err := g.StoriesByPersona(ctx, c.Project, c.Persona)
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		fmt.Printf("No stories for persona %q.\n", c.Persona)
		return nil
	}
	for _, s := range stories {
		fmt.Printf("%s  %s\n", s.ID, s.Sentence)
	}
	return nil
}
