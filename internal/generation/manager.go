// Package generation builds the elicitation pipelines on top of the step
// sequencer and keeps one live run per project and pipeline kind.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/events"
	"github.com/dusk-indust/elicit/internal/graph"
	"github.com/dusk-indust/elicit/internal/logfields"
	"github.com/dusk-indust/elicit/internal/metrics"
	"github.com/dusk-indust/elicit/internal/sequencer"
)

// Kind selects a pipeline.
type Kind string

const (
	KindRequirements Kind = "requirements"
	KindAI           Kind = "ai"
	KindCollection   Kind = "collection"
)

// Kinds lists every pipeline kind.
var Kinds = []Kind{KindRequirements, KindAI, KindCollection}

// ParseKind validates a pipeline kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("generation: unknown pipeline %q", s)
}

// Stages returns the kind's stage descriptors.
func (k Kind) Stages() []sequencer.Stage {
	switch k {
	case KindAI:
		return AIStages
	case KindCollection:
		return CollectionStages
	default:
		return RequirementsStages
	}
}

var (
	// ErrBlacklisted is returned when starting a blacklisted project.
	ErrBlacklisted = errors.New("generation: project is blacklisted")

	// ErrClosed is returned once the Manager has been closed.
	ErrClosed = errors.New("generation: manager closed")
)

// RunStore persists run snapshots.
type RunStore interface {
	SaveRun(ctx context.Context, p sequencer.Progress) error
}

// Blacklist reports hidden projects.
type Blacklist interface {
	Contains(ctx context.Context, projectID string) (bool, error)
}

// Deps are the collaborators pipelines run against. Only Backend is
// required.
type Deps struct {
	Backend   backend.Backend
	Runs      RunStore
	Blacklist Blacklist
	Graph     graph.Store
	Publisher events.Publisher
	Recorder  metrics.Recorder
	Logger    *slog.Logger

	// AIStoryLimit caps items per AI run; DefaultAIStoryLimit when zero.
	AIStoryLimit int
	// Concurrency bounds concurrent item calls; 1 when zero.
	Concurrency int
	// Shuffle orders AI content before the limit; RandomShuffle when nil.
	Shuffle ShuffleFunc
	Collect CollectOptions
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Recorder == nil {
		d.Recorder = metrics.NoopRecorder{}
	}
	if d.Publisher == nil {
		d.Publisher = events.Noop{}
	}
	if d.AIStoryLimit <= 0 {
		d.AIStoryLimit = DefaultAIStoryLimit
	}
	if d.Concurrency <= 0 {
		d.Concurrency = 1
	}
	if d.Shuffle == nil {
		d.Shuffle = RandomShuffle
	}
	d.Collect = d.Collect.withDefaults()
	return d
}

// Run is one project's pipeline: its sequencer plus the artifacts the
// stages loaded.
type Run struct {
	*sequencer.Sequencer
	Kind   Kind
	Result *Result
}

// NewRun builds a pipeline of the given kind for a project. Events are
// persisted to deps.Runs and forwarded to deps.Publisher.
func NewRun(projectID string, kind Kind, deps Deps) (*Run, error) {
	if deps.Backend == nil {
		return nil, errors.New("generation: backend is required")
	}
	deps = deps.withDefaults()
	result := &Result{}
	logger := deps.Logger

	var (
		funcs  []sequencer.StageFunc
		resume sequencer.ResumeFunc
	)
	switch kind {
	case KindRequirements:
		p := &requirementsPipeline{api: deps.Backend, result: result}
		funcs, resume = p.funcs(), p.resume
	case KindAI:
		p := &aiPipeline{
			api:     deps.Backend,
			result:  result,
			limit:   deps.AIStoryLimit,
			shuffle: deps.Shuffle,
			graph:   deps.Graph,
			logger:  logger,
		}
		funcs, resume = p.funcs(), p.resume
	case KindCollection:
		p := &collectionPipeline{api: deps.Backend, opts: deps.Collect}
		funcs, resume = p.funcs(), p.resume
	default:
		return nil, fmt.Errorf("generation: unknown pipeline %q", kind)
	}

	run := &Run{Kind: kind, Result: result}
	seq, err := sequencer.New(sequencer.Options{
		ProjectID:   projectID,
		Pipeline:    string(kind),
		Stages:      kind.Stages(),
		Funcs:       funcs,
		Resume:      resume,
		Reset:       result.Reset,
		Concurrency: deps.Concurrency,
		Recorder:    deps.Recorder,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	run.Sequencer = seq
	seq.AddObserver(forward(deps.Publisher, logger))
	if deps.Runs != nil {
		seq.AddObserver(persist(seq, deps.Runs, logger))
	}
	return run, nil
}

// forward publishes every event, logging failures.
func forward(pub events.Publisher, logger *slog.Logger) func(sequencer.Event) {
	return func(ev sequencer.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pub.Publish(ctx, ev); err != nil {
			logger.Debug("Event publish failed", logfields.ProjectID(ev.ProjectID), logfields.Error(err))
		}
	}
}

// persist saves the run's snapshot at run and stage boundaries.
func persist(seq *sequencer.Sequencer, runs RunStore, logger *slog.Logger) func(sequencer.Event) {
	return func(ev sequencer.Event) {
		switch ev.Kind {
		case sequencer.EventStarted, sequencer.EventStageFinished,
			sequencer.EventCompleted, sequencer.EventCancelled, sequencer.EventResumed:
		default:
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := runs.SaveRun(ctx, seq.Snapshot()); err != nil {
			logger.Warn("Saving run failed", logfields.ProjectID(ev.ProjectID), logfields.RunID(ev.RunID), logfields.Error(err))
		}
	}
}

type runKey struct {
	projectID string
	kind      Kind
}

// Manager keeps one Run per (project, kind) for the life of the process.
type Manager struct {
	deps Deps

	mu     sync.Mutex
	runs   map[runKey]*Run
	closed bool
}

// NewManager creates a Manager.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps: deps.withDefaults(),
		runs: make(map[runKey]*Run),
	}
}

// Get returns the project's run of the given kind, creating it idle on
// first use.
func (m *Manager) Get(projectID string, kind Kind) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	key := runKey{projectID, kind}
	if run, ok := m.runs[key]; ok {
		return run, nil
	}
	run, err := NewRun(projectID, kind, m.deps)
	if err != nil {
		return nil, err
	}
	m.runs[key] = run
	return run, nil
}

// Lookup returns an existing run without creating one.
func (m *Manager) Lookup(projectID string, kind Kind) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runKey{projectID, kind}]
	return run, ok
}

// Start activates the project's pipeline, resuming where it stopped.
func (m *Manager) Start(ctx context.Context, projectID string, kind Kind) (*Run, error) {
	run, err := m.activatable(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	run.Start()
	return run, nil
}

// Restart runs the project's pipeline again from its first stage.
func (m *Manager) Restart(ctx context.Context, projectID string, kind Kind) (*Run, error) {
	run, err := m.activatable(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	run.Restart()
	return run, nil
}

func (m *Manager) activatable(ctx context.Context, projectID string, kind Kind) (*Run, error) {
	if m.deps.Blacklist != nil && projectID != "" {
		hidden, err := m.deps.Blacklist.Contains(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("generation: check blacklist: %w", err)
		}
		if hidden {
			return nil, ErrBlacklisted
		}
	}
	return m.Get(projectID, kind)
}

// Cancel asks the project's active run to stop. It reports whether a run
// existed.
func (m *Manager) Cancel(projectID string, kind Kind) bool {
	run, ok := m.Lookup(projectID, kind)
	if ok {
		run.Cancel()
	}
	return ok
}

// Runs returns every known run ordered by project and kind.
func (m *Manager) Runs() []*Run {
	m.mu.Lock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID() != out[j].ProjectID() {
			return out[i].ProjectID() < out[j].ProjectID()
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Close cancels and closes every run. Later calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	runs := m.runs
	m.runs = make(map[runKey]*Run)
	m.mu.Unlock()

	var errs []error
	for _, r := range runs {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
