package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/store"
)

// ProjectCmd groups project management commands.
type ProjectCmd struct {
	Create    ProjectCreateCmd    `cmd:"" help:"Create a project from a case study"`
	Show      ProjectShowCmd      `cmd:"" help:"Show a project's configuration"`
	List      ProjectListCmd      `cmd:"" help:"List projects"`
	Configure ProjectConfigureCmd `cmd:"" help:"Replace a project's queries and data sources"`
}

// ProjectCreateCmd implements 'project create'.
type ProjectCreateCmd struct {
	Name      string `arg:"" help:"Project name"`
	CaseStudy string `help:"Case study text, or @file to read it from a file" required:""`
}

func (c *ProjectCreateCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	caseStudy := c.CaseStudy
	if path, ok := strings.CutPrefix(caseStudy, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read case study: %w", err)
		}
		caseStudy = string(data)
	}

	np, err := a.backend.CreateProject(ctx, c.Name, caseStudy)
	if err != nil {
		return err
	}
	fmt.Printf("Created project %s\n", np.SessionID)
	for _, q := range np.Queries {
		fmt.Printf("  query: %s\n", q)
	}
	return nil
}

// ProjectShowCmd implements 'project show'.
type ProjectShowCmd struct {
	Project string `arg:"" help:"Project id"`
}

func (c *ProjectShowCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.backend.Project(ctx, c.Project)
	if err != nil {
		return err
	}
	return printJSON(p)
}

// ProjectListCmd implements 'project list'.
type ProjectListCmd struct {
	All bool `help:"Include blacklisted projects"`
}

func (c *ProjectListCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	projects, err := a.backend.ListProjects(ctx)
	if err != nil {
		return err
	}
	if !c.All {
		if projects, err = store.FilterProjects(ctx, a.store, projects); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSOURCES\tQUERIES")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Status, sourceList(p.DataSources), len(p.Queries))
	}
	return tw.Flush()
}

// ProjectConfigureCmd implements 'project configure'.
type ProjectConfigureCmd struct {
	Project   string   `arg:"" help:"Project id"`
	Query     []string `short:"q" help:"Search query (repeatable); the current queries are kept when omitted"`
	AppStores bool     `help:"Collect app store reviews"`
	News      bool     `help:"Collect news articles"`
	Social    bool     `help:"Collect social media posts"`
}

func (c *ProjectConfigureCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	queries := c.Query
	if len(queries) == 0 {
		if queries, err = a.backend.ProjectQueries(ctx, c.Project); err != nil {
			return err
		}
	}
	sources := backend.DataSources{AppStores: c.AppStores, News: c.News, SocialMedia: c.Social}
	if err := a.backend.UpdateProjectConfig(ctx, c.Project, queries, sources); err != nil {
		return err
	}
	fmt.Printf("Updated %s: %d queries, sources %s\n", c.Project, len(queries), sourceList(sources))
	return nil
}

func sourceList(ds backend.DataSources) string {
	var out []string
	if ds.AppStores {
		out = append(out, "app_stores")
	}
	if ds.News {
		out = append(out, "news")
	}
	if ds.SocialMedia {
		out = append(out, "social")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
