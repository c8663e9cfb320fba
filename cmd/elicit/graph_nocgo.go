//go:build !cgo

package main

import (
	"context"
	"log/slog"

	"github.com/dusk-indust/elicit/internal/graph"
)

// openGraph falls back to an in-memory graph; Kuzu needs cgo.
func openGraph(ctx context.Context, path string) (graph.Store, error) {
	slog.Warn("Built without cgo, cluster graph is not persisted", slog.String("path", path))
	store := graph.NewMemStore()
	return store, store.InitSchema(ctx)
}
