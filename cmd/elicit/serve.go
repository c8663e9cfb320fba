package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/httpapi"
	"github.com/dusk-indust/elicit/internal/logfields"
	"github.com/dusk-indust/elicit/internal/mcptools"
	"github.com/dusk-indust/elicit/internal/metrics"
	"github.com/dusk-indust/elicit/internal/schedule"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides listenAddr)"`
}

func (s *ServeCmd) Run(root *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, root, appOptions{graph: true, events: true, metrics: true})
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.ListenAddr
	if s.Addr != "" {
		addr = s.Addr
	}
	srv := httpapi.NewServer(a.manager,
		httpapi.WithGraph(a.graph),
		httpapi.WithMetrics(metrics.HTTPHandler(a.registry)),
		httpapi.WithLogger(a.logger),
	)
	if err := srv.Start(ctx, addr); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			a.logger.Warn("HTTP shutdown failed", logfields.Error(err))
		}
	}()

	sched, err := startSchedule(a)
	if err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("Shutting down")

	if sched != nil {
		if err := sched.Stop(); err != nil {
			a.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}
	return nil
}

// startSchedule schedules the configured projects, or returns nil when
// none are configured.
func startSchedule(a *app) (*schedule.Scheduler, error) {
	sc := a.cfg.Schedule
	if len(sc.Projects) == 0 {
		return nil, nil
	}
	kind, err := generation.ParseKind(sc.Pipeline)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.NewScheduler(a.manager, a.logger)
	if err != nil {
		return nil, err
	}
	if _, err := sched.SchedulePipeline(sc.Interval, kind, sc.Projects); err != nil {
		return nil, err
	}
	sched.Start()
	a.logger.Info("Scheduled generation",
		logfields.Pipeline(string(kind)),
		slog.Int("projects", len(sc.Projects)),
		slog.Duration("interval", sc.Interval))
	return sched, nil
}

// ServeMCPCmd implements the 'serve-mcp' command.
type ServeMCPCmd struct {
	HTTP string `name:"http" help:"Serve streamable HTTP on this address instead of stdio"`
}

func (s *ServeMCPCmd) Run(root *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, root, appOptions{graph: true, events: true})
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcptools.NewMCPServer(mcptools.NewGenerationService(a.manager, a.graph))
	if s.HTTP != "" {
		a.logger.Info("Serving MCP over HTTP", slog.String("addr", s.HTTP))
		return mcptools.RunHTTP(ctx, server, s.HTTP)
	}
	return mcptools.RunStdio(ctx, server)
}
