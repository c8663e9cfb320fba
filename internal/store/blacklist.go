package store

import (
	"context"
	"strings"
	"sync"

	"github.com/dusk-indust/elicit/internal/backend"
)

// Blacklist hides projects from generation and analytics.
type Blacklist interface {
	Add(ctx context.Context, projectID string) error
	Remove(ctx context.Context, projectID string) error
	List(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, projectID string) (bool, error)
}

var _ Blacklist = (*MemBlacklist)(nil)

// MemBlacklist is an in-process Blacklist.
type MemBlacklist struct {
	mu  sync.RWMutex
	ids []string
}

// NewMemBlacklist returns a blacklist seeded with ids.
func NewMemBlacklist(ids ...string) *MemBlacklist {
	b := &MemBlacklist{}
	for _, id := range ids {
		_ = b.Add(context.Background(), id)
	}
	return b
}

func (b *MemBlacklist) Add(_ context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ErrEmptyProjectID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.ids {
		if id == projectID {
			return nil
		}
	}
	b.ids = append(b.ids, projectID)
	return nil
}

func (b *MemBlacklist) Remove(_ context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, id := range b.ids {
		if id == projectID {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *MemBlacklist) List(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.ids...), nil
}

func (b *MemBlacklist) Contains(_ context.Context, projectID string) (bool, error) {
	projectID = strings.TrimSpace(projectID)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range b.ids {
		if id == projectID {
			return true, nil
		}
	}
	return false, nil
}

// FilterProjects drops blacklisted projects, keeping order.
func FilterProjects(ctx context.Context, bl Blacklist, projects []backend.Project) ([]backend.Project, error) {
	ids, err := bl.List(ctx)
	if err != nil {
		return nil, err
	}
	hidden := make(map[string]bool, len(ids))
	for _, id := range ids {
		hidden[id] = true
	}
	out := make([]backend.Project, 0, len(projects))
	for _, p := range projects {
		if !hidden[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}
