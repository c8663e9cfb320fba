package main

import (
	"context"
	"fmt"
)

// AnalyticsCmd groups analytics commands. Blacklisted projects are left out
// of cross-project views.
type AnalyticsCmd struct {
	Overview AnalyticsOverviewCmd `cmd:"" help:"Summarize every project"`
	Project  AnalyticsProjectCmd  `cmd:"" help:"Collection, story, rating, engagement, NFR and cluster statistics for one project"`
	Compare  AnalyticsCompareCmd  `cmd:"" help:"Compare projects side by side"`
}

// AnalyticsOverviewCmd implements 'analytics overview'.
type AnalyticsOverviewCmd struct{}

func (c *AnalyticsOverviewCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	exclude, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	ov, err := a.backend.ProjectsOverview(ctx, exclude)
	if err != nil {
		return err
	}
	return printJSON(ov)
}

// AnalyticsProjectCmd implements 'analytics project'.
type AnalyticsProjectCmd struct {
	Project string `arg:"" help:"Project id"`
}

func (c *AnalyticsProjectCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	sections := []struct {
		name  string
		fetch func(context.Context, string) (any, error)
	}{
		{"dataCollection", func(ctx context.Context, id string) (any, error) { return a.backend.DataCollectionStats(ctx, id) }},
		{"requirements", func(ctx context.Context, id string) (any, error) { return a.backend.RequirementsStats(ctx, id) }},
		{"ratings", func(ctx context.Context, id string) (any, error) { return a.backend.RatingsDistribution(ctx, id) }},
		{"engagement", func(ctx context.Context, id string) (any, error) { return a.backend.EngagementMetrics(ctx, id) }},
		{"nfr", func(ctx context.Context, id string) (any, error) { return a.backend.NFRAnalysis(ctx, id) }},
		{"clusters", func(ctx context.Context, id string) (any, error) { return a.backend.ClusterStats(ctx, id) }},
	}
	out := make(map[string]any, len(sections))
	for _, sec := range sections {
		v, err := sec.fetch(ctx, c.Project)
		if err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
		out[sec.name] = v
	}
	return printJSON(out)
}

// AnalyticsCompareCmd implements 'analytics compare'.
type AnalyticsCompareCmd struct {
	Projects []string `arg:"" help:"Project ids"`
}

func (c *AnalyticsCompareCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	exclude, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	cmp, err := a.backend.Comparison(ctx, c.Projects, exclude)
	if err != nil {
		return err
	}
	return printJSON(cmp)
}
