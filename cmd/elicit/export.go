package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/export"
	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/sequencer"
)

// ExportCmd implements the 'export' command.
type ExportCmd struct {
	Project  string `arg:"" help:"Project id"`
	Pipeline string `short:"p" help:"Pipeline whose artifacts to export" enum:"requirements,ai" default:"requirements"`
	Format   string `short:"f" help:"Output format" enum:"csv,json" default:"json"`
	Output   string `short:"o" help:"Write to this file instead of stdout" type:"path"`
	Upload   bool   `help:"Upload the export to the configured object store"`
}

func (e *ExportCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{upload: e.Upload})
	if err != nil {
		return err
	}
	defer a.Close()

	kind := parseKind(e.Pipeline)
	snap, err := e.snapshot(ctx, a, kind)
	if err != nil {
		return err
	}
	arts, err := e.artifacts(ctx, a.backend, kind)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch e.Format {
	case "csv":
		if kind == generation.KindAI {
			err = export.AIStoriesCSV(&buf, arts.AIStories)
		} else {
			err = export.StoriesCSV(&buf, arts.Stories)
		}
	default:
		var data []byte
		data, err = export.RunJSON(snap, arts)
		buf.Write(data)
	}
	if err != nil {
		return err
	}

	if e.Upload {
		if err := a.uploader.EnsureBucket(ctx); err != nil {
			return err
		}
		key := export.ObjectKey(e.Project, string(kind), "export."+e.Format)
		if err := export.Publish(ctx, a.uploader, key, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Uploaded s3://%s/%s\n", a.uploader.Bucket(), key)
	}

	switch {
	case e.Output != "":
		if err := os.WriteFile(e.Output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", e.Output)
	case !e.Upload:
		_, err = os.Stdout.Write(buf.Bytes())
	}
	return err
}

// snapshot returns the latest recorded run, or an idle snapshot when the
// pipeline never ran here.
func (e *ExportCmd) snapshot(ctx context.Context, a *app, kind generation.Kind) (sequencer.Progress, error) {
	rec, err := a.store.LatestRun(ctx, e.Project, string(kind))
	if err != nil {
		return sequencer.Progress{}, err
	}
	if rec != nil {
		return rec.Snapshot, nil
	}
	run, err := a.manager.Get(e.Project, kind)
	if err != nil {
		return sequencer.Progress{}, err
	}
	return run.Snapshot(), nil
}

// artifacts reads the pipeline's stories and use cases from the backend.
// Missing use cases are not an error.
func (e *ExportCmd) artifacts(ctx context.Context, api backend.Backend, kind generation.Kind) (export.Artifacts, error) {
	var (
		arts export.Artifacts
		err  error
	)
	if kind == generation.KindAI {
		if arts.AIStories, err = api.AIStories(ctx, e.Project); err != nil {
			return arts, err
		}
		arts.UseCases, err = api.AIUseCases(ctx, e.Project)
	} else {
		if arts.Stories, err = api.Stories(ctx, e.Project); err != nil {
			return arts, err
		}
		arts.UseCases, err = api.UseCases(ctx, e.Project)
	}
	if err != nil && !backend.IsNotFound(err) {
		return arts, err
	}
	return arts, nil
}
