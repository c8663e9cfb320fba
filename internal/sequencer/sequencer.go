package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/elicit/internal/logfields"
	"github.com/dusk-indust/elicit/internal/metrics"
)

// unknownError stands in for errors that carry no message.
const unknownError = "unknown error"

// Options configures a Sequencer.
type Options struct {
	// ProjectID scopes every remote call. When empty, the resume check and
	// every stage function are skipped and the run completes trivially.
	ProjectID string

	// Pipeline names the pipeline in events, logs and metrics.
	Pipeline string

	// Stages and Funcs are parallel slices in execution order.
	Stages []Stage
	Funcs  []StageFunc

	// Resume runs once per activation before any stage. Optional.
	Resume ResumeFunc

	// Reset clears derived result data on restart. Optional.
	Reset func()

	// Concurrency bounds how many items ForEachItem runs at once.
	// Values below 2 process items one at a time.
	Concurrency int

	Recorder metrics.Recorder
	Logger   *slog.Logger

	// Observers are called synchronously, in order, for every event.
	Observers []func(Event)
}

// Sequencer drives an ordered list of stage functions for one project,
// tracking progress, per-stage errors and per-item counters. At most one
// run is active at a time. Start, Restart and Cancel never fail.
type Sequencer struct {
	projectID   string
	pipeline    string
	stages      []Stage
	funcs       []StageFunc
	resume      ResumeFunc
	reset       func()
	concurrency int
	recorder    metrics.Recorder
	logger      *slog.Logger

	// base is cancelled only by Close; Cancel lets in-flight calls finish.
	base context.Context
	stop context.CancelFunc

	mu              sync.Mutex
	state           State
	cancelRequested bool
	runID           string
	current         int
	percent         float64
	errs            []string
	counters        []Counters
	startedAt       time.Time
	finishedAt      time.Time
	failure         string
	done            chan struct{}
	observers       []func(Event)
	subscribers     map[*ProgressReporter]struct{}
}

// New validates opts and returns an idle Sequencer.
func New(opts Options) (*Sequencer, error) {
	if len(opts.Stages) == 0 {
		return nil, errors.New("sequencer: no stages")
	}
	if len(opts.Stages) != len(opts.Funcs) {
		return nil, fmt.Errorf("sequencer: %d stages but %d stage functions", len(opts.Stages), len(opts.Funcs))
	}
	for i, fn := range opts.Funcs {
		if fn == nil {
			return nil, fmt.Errorf("sequencer: stage %d (%s) has no function", i, opts.Stages[i].Name)
		}
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	base, stop := context.WithCancel(context.Background())
	s := &Sequencer{
		projectID:   opts.ProjectID,
		pipeline:    opts.Pipeline,
		stages:      append([]Stage(nil), opts.Stages...),
		funcs:       append([]StageFunc(nil), opts.Funcs...),
		resume:      opts.Resume,
		reset:       opts.Reset,
		concurrency: opts.Concurrency,
		recorder:    opts.Recorder,
		logger: opts.Logger.With(
			logfields.ProjectID(opts.ProjectID),
			logfields.Pipeline(opts.Pipeline),
		),
		base:        base,
		stop:        stop,
		observers:   slices.Clone(opts.Observers),
		subscribers: make(map[*ProgressReporter]struct{}),
	}
	s.clearLocked()
	return s, nil
}

// ProjectID returns the project the sequencer runs for.
func (s *Sequencer) ProjectID() string { return s.projectID }

// Pipeline returns the pipeline name.
func (s *Sequencer) Pipeline() string { return s.pipeline }

// Stages returns a copy of the stage descriptors.
func (s *Sequencer) Stages() []Stage { return append([]Stage(nil), s.stages...) }

// Start activates the sequencer, resuming from the current stage. It is a
// no-op while a run is active, after completion (which requires Restart)
// and after Close.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if s.state != StateIdle || s.base.Err() != nil {
		s.mu.Unlock()
		return
	}
	done := s.beginLocked()
	s.mu.Unlock()
	go s.run(done)
}

// Restart resets every counter, error and result and starts again from the
// first stage. It is a no-op while a run is active.
func (s *Sequencer) Restart() {
	s.mu.Lock()
	if s.state.active() || s.base.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	if s.reset != nil {
		s.reset()
	}
	done := s.beginLocked()
	s.mu.Unlock()
	go s.run(done)
}

// Cancel asks the active run to stop before its next item or stage.
// Results recorded so far are kept. Idempotent.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = true
	if s.state == StateRunning {
		s.state = StateCancelling
		s.logger.Info("Cancellation requested", logfields.StageIndex(s.current))
	}
}

// Wait blocks until the current run, if any, has finished.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the active run, aborts its in-flight calls, waits for it
// and closes every subscriber.
func (s *Sequencer) Close() error {
	s.Cancel()
	s.stop()
	_ = s.Wait(context.Background())

	s.mu.Lock()
	subs := s.subscribers
	s.subscribers = make(map[*ProgressReporter]struct{})
	s.mu.Unlock()
	for pr := range subs {
		pr.Close()
	}
	return nil
}

// Snapshot returns the current presentation view.
func (s *Sequencer) Snapshot() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		ProjectID:    s.projectID,
		Pipeline:     s.pipeline,
		RunID:        s.runID,
		State:        s.state,
		IsGenerating: s.state == StateRunning,
		IsComplete:   s.state == StateComplete,
		CurrentStep:  s.current,
		Percent:      s.percent,
		Steps:        append([]Stage(nil), s.stages...),
		StepErrors:   append([]string(nil), s.errs...),
		StepStats:    append([]Counters(nil), s.counters...),
		StartedAt:    s.startedAt,
		FinishedAt:   s.finishedAt,
		Failure:      s.failure,
	}
}

// AddObserver registers fn for every later event.
func (s *Sequencer) AddObserver(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Subscribe returns a reporter that receives every later event. Slow
// subscribers drop events rather than stall the run.
func (s *Sequencer) Subscribe() *ProgressReporter {
	pr := NewProgressReporter()
	s.mu.Lock()
	s.subscribers[pr] = struct{}{}
	s.mu.Unlock()
	return pr
}

// Unsubscribe detaches and closes pr.
func (s *Sequencer) Unsubscribe(pr *ProgressReporter) {
	s.mu.Lock()
	_, ok := s.subscribers[pr]
	delete(s.subscribers, pr)
	s.mu.Unlock()
	if ok {
		pr.Close()
	}
}

// ---------- Run loop ----------

func (s *Sequencer) clearLocked() {
	s.current = 0
	s.percent = 0
	s.errs = make([]string, len(s.stages))
	s.counters = make([]Counters, len(s.stages))
}

func (s *Sequencer) beginLocked() chan struct{} {
	s.state = StateRunning
	s.cancelRequested = false
	s.runID = uuid.NewString()
	s.startedAt = time.Now()
	s.finishedAt = time.Time{}
	s.failure = ""
	s.done = make(chan struct{})
	return s.done
}

// run owns the sequencer from Running until a terminal transition. done is
// closed last so Wait observes the final state.
func (s *Sequencer) run(done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Run loop panicked", slog.Any("panic", r))
			s.fail(fmt.Sprintf("run panicked: %v", r))
		}
	}()

	ctx := s.base
	s.mu.Lock()
	runID, from := s.runID, s.current
	s.mu.Unlock()
	log := s.logger.With(logfields.RunID(runID))
	log.Info("Generation started", logfields.StageIndex(from))
	s.emit(Event{Kind: EventStarted, Stage: from})

	if s.projectID != "" && s.resume != nil {
		complete, err := s.checkResume(ctx)
		if err != nil {
			log.Warn("Resume check failed, running stages", logfields.Error(err))
		}
		if complete {
			s.mu.Lock()
			s.state = StateComplete
			s.percent = 100
			s.finishedAt = time.Now()
			s.mu.Unlock()
			s.recorder.IncRunOutcome(s.pipeline, metrics.OutcomeResumed)
			log.Info("Pipeline already complete, skipping stages")
			s.emit(Event{Kind: EventResumed, Stage: -1})
			return
		}
	}

	for i := from; i < len(s.stages); i++ {
		s.mu.Lock()
		if s.cancelRequested {
			s.mu.Unlock()
			break
		}
		s.current = i
		s.mu.Unlock()
		s.runStage(ctx, log, i)
	}

	cancelled := s.finish()
	if cancelled {
		s.recorder.IncRunOutcome(s.pipeline, metrics.OutcomeCancelled)
		log.Info("Generation cancelled")
		s.emit(Event{Kind: EventCancelled, Stage: -1})
		return
	}
	s.recorder.IncRunOutcome(s.pipeline, metrics.OutcomeComplete)
	snap := s.Snapshot()
	log.Info("Generation complete", slog.Int("stages_with_errors", snap.ErrorCount()))
	s.emit(Event{Kind: EventCompleted, Stage: -1})
}

// finish applies the terminal transition and reports whether the run was
// cancelled.
func (s *Sequencer) finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedAt = time.Now()
	if s.cancelRequested {
		s.state = StateIdle
		return true
	}
	s.state = StateComplete
	s.percent = 100
	return false
}

// fail ends a run whose loop panicked. It ends idle so Start can retry,
// with the failure recorded against the current stage and the run.
func (s *Sequencer) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedAt = time.Now()
	s.state = StateIdle
	s.failure = msg
	if s.current < len(s.errs) && s.errs[s.current] == "" {
		s.errs[s.current] = msg
	}
}

func (s *Sequencer) checkResume(ctx context.Context) (complete bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			complete, err = false, fmt.Errorf("resume check panicked: %v", r)
		}
	}()
	return s.resume(ctx, s.projectID)
}

// runStage wraps one stage: fraction 0 before, 1 after, errors and panics
// recorded against the stage.
func (s *Sequencer) runStage(ctx context.Context, log *slog.Logger, i int) {
	stage := s.stages[i]
	s.advance(i, 0)
	s.emit(Event{Kind: EventStageStarted, Stage: i})

	began := time.Now()
	var msg string
	if s.projectID != "" {
		if err := s.invoke(ctx, i); err != nil {
			msg = err.Error()
			if msg == "" {
				msg = unknownError
			}
			s.mu.Lock()
			s.errs[i] = msg
			s.mu.Unlock()
			s.recorder.IncStageError(s.pipeline, stage.Name)
			log.Warn("Stage failed, continuing", logfields.Stage(stage.Name), logfields.Error(err))
		}
	}
	elapsed := time.Since(began)
	s.advance(i, 1)
	s.recorder.ObserveStageDuration(s.pipeline, stage.Name, elapsed)
	log.Debug("Stage finished", logfields.Stage(stage.Name), logfields.Duration(elapsed))
	s.emit(Event{Kind: EventStageFinished, Stage: i, Message: msg})
}

func (s *Sequencer) invoke(ctx context.Context, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return s.funcs[i](ctx, &StageContext{seq: s, index: i})
}

// ---------- State updates ----------

// advance publishes a fraction within stage i. Overall progress never
// moves backwards within a run.
func (s *Sequencer) advance(i int, fraction float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(i, fraction)
}

func (s *Sequencer) advanceLocked(i int, fraction float64) float64 {
	if p := stagePercent(i, fraction, len(s.stages)); p > s.percent {
		s.percent = p
	}
	return s.percent
}

// count increments stage i's counters.
func (s *Sequencer) count(i int, ok bool) {
	s.mu.Lock()
	if ok {
		s.counters[i].Processed++
	} else {
		s.counters[i].Failed++
	}
	s.mu.Unlock()
	s.recorder.IncItemResult(s.pipeline, s.stages[i].Name, ok)
}

func (s *Sequencer) cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested
}

// emit stamps ev and delivers it to observers and subscribers. It must be
// called without s.mu held.
func (s *Sequencer) emit(ev Event) {
	s.mu.Lock()
	ev.ProjectID = s.projectID
	ev.Pipeline = s.pipeline
	ev.RunID = s.runID
	if ev.Stage >= 0 && ev.Stage < len(s.stages) {
		ev.StageName = s.stages[ev.Stage].Name
	}
	ev.Percent = s.percent
	ev.Time = time.Now()
	observers := slices.Clone(s.observers)
	subs := make([]*ProgressReporter, 0, len(s.subscribers))
	for pr := range s.subscribers {
		subs = append(subs, pr)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
	for _, pr := range subs {
		pr.Emit(ev)
	}
}
