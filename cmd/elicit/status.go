package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/status"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Project  string `arg:"" help:"Project id"`
	Pipeline string `short:"p" help:"Pipeline to show" enum:"requirements,ai,collection" default:"requirements"`
}

func (s *StatusCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.store.LatestRun(ctx, s.Project, s.Pipeline)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Printf("No recorded %s run for project %s.\n", s.Pipeline, s.Project)
		return nil
	}
	return status.Render(os.Stdout, rec.Snapshot)
}

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Project string `arg:"" help:"Project id"`
	Limit   int    `short:"n" help:"Maximum runs to list" default:"20"`
}

func (h *HistoryCmd) Run(root *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, root, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.ListRuns(ctx, h.Project, h.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("No recorded runs for project %s.\n", h.Project)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPIPELINE\tOUTCOME\tPROGRESS\tERRORS\tSTARTED\tFINISHED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f%%\t%d\t%s\t%s\n",
			r.RunID, r.Pipeline, status.Outcome(r.Snapshot), r.Percent,
			r.Snapshot.ErrorCount(), timestamp(r.StartedAt), timestamp(r.FinishedAt))
	}
	return tw.Flush()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func parseKind(s string) generation.Kind {
	k, err := generation.ParseKind(s)
	if err != nil {
		return generation.KindRequirements
	}
	return k
}
