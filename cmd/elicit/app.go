package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/config"
	"github.com/dusk-indust/elicit/internal/events"
	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/graph"
	"github.com/dusk-indust/elicit/internal/logfields"
	"github.com/dusk-indust/elicit/internal/metrics"
	"github.com/dusk-indust/elicit/internal/objectstore"
	"github.com/dusk-indust/elicit/internal/store"
)

// app holds the collaborators shared by commands. Optional parts stay nil
// when they are not configured.
type app struct {
	cfg      *config.Config
	backend  *backend.HTTPClient
	store    *store.SQLiteStore
	graph    graph.Store
	pub      events.Publisher
	registry *prom.Registry
	recorder metrics.Recorder
	uploader *objectstore.MinioStore
	logger   *slog.Logger

	manager *generation.Manager
}

type appOptions struct {
	graph   bool
	events  bool
	metrics bool
	upload  bool
}

// newApp loads configuration from root.Dir and opens what opts ask for.
func newApp(ctx context.Context, root *CLI, opts appOptions) (*app, error) {
	cfg, err := config.Load(root.Dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	a := &app{
		cfg:      cfg,
		backend:  backend.NewHTTPClient(cfg.API.Endpoint, backend.WithTimeout(cfg.API.Timeout)),
		pub:      events.Noop{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}

	a.store, err = store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	if opts.graph {
		if a.graph, err = openGraph(ctx, cfg.GraphPath); err != nil {
			a.Close()
			return nil, err
		}
	}

	if opts.events && cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(ctx, events.NATSConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Stream:  cfg.NATS.Stream,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.pub = pub
	}

	if opts.metrics {
		a.registry = prom.NewRegistry()
		a.recorder = metrics.NewPrometheusRecorder(a.registry)
	}

	if opts.upload {
		if cfg.ObjectStore.Endpoint == "" {
			a.Close()
			return nil, errors.New("object store is not configured (objectStore.endpoint)")
		}
		a.uploader, err = objectstore.NewMinioStore(objectstore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Region:    cfg.ObjectStore.Region,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	deps := generation.Deps{
		Backend:      a.backend,
		Runs:         a.store,
		Blacklist:    a.store,
		Graph:        a.graph,
		Publisher:    a.pub,
		Recorder:     a.recorder,
		Logger:       a.logger,
		AIStoryLimit: cfg.AIStoryLimit,
		Concurrency:  cfg.Concurrency,
	}
	a.manager = generation.NewManager(deps)
	return a, nil
}

// Close releases everything newApp opened, logging failures.
func (a *app) Close() {
	closers := []struct {
		name string
		fn   func() error
	}{
		{"manager", func() error {
			if a.manager == nil {
				return nil
			}
			return a.manager.Close()
		}},
		{"publisher", a.pub.Close},
		{"graph", func() error {
			if a.graph == nil {
				return nil
			}
			return a.graph.Close()
		}},
		{"store", func() error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		}},
	}
	for _, c := range closers {
		if err := c.fn(); err != nil {
			a.logger.Warn("Close failed", slog.String("component", c.name), logfields.Error(err))
		}
	}
}
