package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/sequencer"
	"github.com/dusk-indust/elicit/internal/status"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Project string `arg:"" help:"Project id"`
	AI      bool   `help:"Run the AI story pipeline" xor:"pipeline"`
	Collect bool   `help:"Run the data collection pipeline" xor:"pipeline"`
	Restart bool   `help:"Clear previous progress and start from the first step"`
	Quiet   bool   `short:"q" help:"Only print the final status"`
}

func (g *GenerateCmd) kind() generation.Kind {
	switch {
	case g.AI:
		return generation.KindAI
	case g.Collect:
		return generation.KindCollection
	default:
		return generation.KindRequirements
	}
}

func (g *GenerateCmd) Run(root *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kind := g.kind()
	a, err := newApp(ctx, root, appOptions{graph: kind == generation.KindAI, events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.manager.Get(g.Project, kind)
	if err != nil {
		return err
	}
	pr := run.Subscribe()
	defer run.Unsubscribe(pr)

	if g.Restart {
		_, err = a.manager.Restart(ctx, g.Project, kind)
	} else {
		_, err = a.manager.Start(ctx, g.Project, kind)
	}
	if err != nil {
		return err
	}

	if err := follow(ctx, run, pr.Subscribe(), g.Quiet); err != nil {
		return err
	}

	fmt.Println()
	return status.Render(os.Stdout, run.Snapshot())
}

// follow prints events until the run finishes. The first interrupt asks the
// run to cancel; the run still stops at its next item or step boundary.
func follow(ctx context.Context, run *generation.Run, events <-chan sequencer.Event, quiet bool) error {
	done := make(chan error, 1)
	go func() { done <- run.Wait(context.Background()) }()

	show := func(ev sequencer.Event) {
		if !quiet {
			fmt.Println(sequencer.FormatEvent(ev))
		}
	}

	interrupted := ctx.Done()
	for {
		select {
		case <-interrupted:
			fmt.Fprintln(os.Stderr, "Cancelling after the current item...")
			run.Cancel()
			interrupted = nil
		case ev, ok := <-events:
			if !ok {
				return <-done
			}
			show(ev)
		case err := <-done:
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return err
					}
					show(ev)
				default:
					return err
				}
			}
		}
	}
}
