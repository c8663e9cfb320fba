//go:build cgo

package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a fresh in-memory KuzuStore with an initialized schema.
// It registers a cleanup function to close the store when the test finishes.
func newTestStore(t *testing.T) *KuzuStore {
	t.Helper()
	s, err := NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.InitSchema(context.Background()), "InitSchema should not fail")
	return s
}

func TestKuzuStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return newTestStore(t) })
}

func TestKuzuStore_InitSchema(t *testing.T) {
	s, err := NewKuzuStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx))
	// Second call should be idempotent (IF NOT EXISTS).
	require.NoError(t, s.InitSchema(ctx))
}

func TestKuzuStore_EmptyStats(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Stats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, &GraphStats{}, st)
}

func TestKuzuFileStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphs", "elicit.kuzu")
	ctx := context.Background()

	s, err := NewKuzuFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	_, err = IndexClusters(ctx, s, sampleClusters())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewKuzuFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	require.NoError(t, reopened.InitSchema(ctx))

	clusters, err := reopened.Clusters(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, clusters, 2)
}
