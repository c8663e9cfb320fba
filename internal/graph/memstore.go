package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	stories  map[string]StoryNode
	clusters map[string]ClusterNode
	members  map[string]map[string]float64 // cluster key -> story ID -> similarity
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		stories:  make(map[string]StoryNode),
		clusters: make(map[string]ClusterNode),
		members:  make(map[string]map[string]float64),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddStory stores a story keyed by ID, replacing any earlier version.
func (m *MemStore) AddStory(_ context.Context, node StoryNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[node.ID] = node
	return nil
}

// AddCluster stores a cluster keyed by project and cluster ID.
func (m *MemStore) AddCluster(_ context.Context, node ClusterNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[node.Key()] = node
	return nil
}

// AddMembership links an existing story to an existing cluster.
func (m *MemStore) AddMembership(_ context.Context, mem Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := clusterKey(mem.ProjectID, mem.ClusterID)
	if _, ok := m.clusters[key]; !ok {
		return fmt.Errorf("graph: membership: unknown cluster %s", key)
	}
	if _, ok := m.stories[mem.StoryID]; !ok {
		return fmt.Errorf("graph: membership: unknown story %s", mem.StoryID)
	}
	set, ok := m.members[key]
	if !ok {
		set = make(map[string]float64)
		m.members[key] = set
	}
	set[mem.StoryID] = mem.Similarity
	return nil
}

// Clusters returns the project's clusters ordered by ClusterID.
func (m *MemStore) Clusters(_ context.Context, projectID string) ([]ClusterNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ClusterNode
	for _, c := range m.clusters {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out, nil
}

// ClusterStories returns a cluster's members, most similar first.
func (m *MemStore) ClusterStories(_ context.Context, projectID string, clusterID int) ([]StoryNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.members[clusterKey(projectID, clusterID)]
	type scored struct {
		node StoryNode
		sim  float64
	}
	rows := make([]scored, 0, len(set))
	for id, sim := range set {
		rows = append(rows, scored{node: m.stories[id], sim: sim})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].sim != rows[j].sim {
			return rows[i].sim > rows[j].sim
		}
		return rows[i].node.ID < rows[j].node.ID
	})
	out := make([]StoryNode, len(rows))
	for i, r := range rows {
		out[i] = r.node
	}
	return out, nil
}

// StoriesByPersona returns the project's stories whose "who" matches,
// ignoring case and surrounding space, ordered by ID.
func (m *MemStore) StoriesByPersona(_ context.Context, projectID, who string) ([]StoryNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := normalizePersona(who)
	var out []StoryNode
	for _, s := range m.stories {
		if s.ProjectID == projectID && normalizePersona(s.Who) == want {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stats returns the project's node and edge counts.
func (m *MemStore) Stats(_ context.Context, projectID string) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st GraphStats
	personas := make(map[string]bool)
	for _, s := range m.stories {
		if s.ProjectID != projectID {
			continue
		}
		st.StoryCount++
		personas[normalizePersona(s.Who)] = true
	}
	st.PersonaCount = len(personas)
	for key, c := range m.clusters {
		if c.ProjectID != projectID {
			continue
		}
		st.ClusterCount++
		st.MembershipCount += len(m.members[key])
	}
	return &st, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

func normalizePersona(who string) string {
	return strings.ToLower(strings.TrimSpace(who))
}
