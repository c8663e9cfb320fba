package generation

import (
	"sync"

	"github.com/dusk-indust/elicit/internal/backend"
)

// Result holds the artifacts a pipeline has loaded for its project. Stage
// functions write it from the run goroutine while presentation layers read
// it concurrently.
type Result struct {
	mu        sync.RWMutex
	stories   []backend.Story
	aiStories []backend.AIStory
	useCases  *backend.UseCaseGeneration
	clusters  *backend.ClusteringData
}

// Stories returns the rule-based stories.
func (r *Result) Stories() []backend.Story {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]backend.Story(nil), r.stories...)
}

// AIStories returns the AI stories.
func (r *Result) AIStories() []backend.AIStory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]backend.AIStory(nil), r.aiStories...)
}

// UseCases returns the generated diagrams, or nil.
func (r *Result) UseCases() *backend.UseCaseGeneration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.useCases
}

// Clusters returns the clustered AI stories, or nil.
func (r *Result) Clusters() *backend.ClusteringData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clusters
}

func (r *Result) setStories(s []backend.Story) {
	r.mu.Lock()
	r.stories = s
	r.mu.Unlock()
}

func (r *Result) setAIStories(s []backend.AIStory) {
	r.mu.Lock()
	r.aiStories = s
	r.mu.Unlock()
}

func (r *Result) setUseCases(uc *backend.UseCaseGeneration) {
	r.mu.Lock()
	r.useCases = uc
	r.mu.Unlock()
}

func (r *Result) setClusters(c *backend.ClusteringData) {
	r.mu.Lock()
	r.clusters = c
	r.mu.Unlock()
}

// Reset drops every loaded artifact.
func (r *Result) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stories = nil
	r.aiStories = nil
	r.useCases = nil
	r.clusters = nil
}
