//go:build cgo

package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/elicit/internal/graph"
)

// openGraph opens the persistent Kuzu graph at path.
func openGraph(ctx context.Context, path string) (graph.Store, error) {
	store, err := graph.NewKuzuFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("open graph: %w", err)
	}
	return store, nil
}
