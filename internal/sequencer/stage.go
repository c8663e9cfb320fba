package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/elicit/internal/logfields"
)

// ItemFunc does the work for item i. A non-nil error counts the item as
// failed; it never aborts the stage.
type ItemFunc func(ctx context.Context, i int) error

// StageContext is handed to a StageFunc for the duration of one stage.
type StageContext struct {
	seq   *Sequencer
	index int
}

// ProjectID returns the project the run is for.
func (sc *StageContext) ProjectID() string { return sc.seq.projectID }

// Index returns the stage's position in the pipeline.
func (sc *StageContext) Index() int { return sc.index }

// Stage returns the stage descriptor.
func (sc *StageContext) Stage() Stage { return sc.seq.stages[sc.index] }

// Logger returns a logger tagged with the project, pipeline and stage.
func (sc *StageContext) Logger() *slog.Logger {
	return sc.seq.logger.With(logfields.Stage(sc.Stage().Name))
}

// Cancelled reports whether the run has been asked to stop.
func (sc *StageContext) Cancelled() bool { return sc.seq.cancelled() }

// RecordItem counts one item as processed or failed. Safe for concurrent use.
func (sc *StageContext) RecordItem(ok bool) {
	sc.seq.count(sc.index, ok)
	sc.seq.emit(Event{Kind: EventItem, Stage: sc.index, OK: ok})
}

// SetFraction publishes progress within the stage, clamped to [0,1].
func (sc *StageContext) SetFraction(fraction float64) {
	sc.seq.advance(sc.index, fraction)
	sc.seq.emit(Event{Kind: EventProgress, Stage: sc.index})
}

// ForEachItem runs fn for items 0..n-1, counting each as processed or failed
// and publishing completed/n as the stage fraction after every item. No item
// starts once the run is cancelled; items already started finish and are
// counted. Zero items move the stage straight to fraction 1.
//
// With a concurrency limit above 1, up to that many items run at once on an
// errgroup; otherwise items run one at a time in order.
func (sc *StageContext) ForEachItem(ctx context.Context, n int, fn ItemFunc) {
	if n <= 0 {
		sc.SetFraction(1)
		return
	}

	var (
		mu        sync.Mutex
		completed int
	)
	finish := func(i int, err error) {
		ok := err == nil
		if !ok {
			sc.Logger().Debug("Item failed", slog.Int("item", i), logfields.Error(err))
		}
		// Held across the update so fractions are published in order.
		mu.Lock()
		defer mu.Unlock()
		completed++
		sc.seq.count(sc.index, ok)
		sc.seq.advance(sc.index, float64(completed)/float64(n))
		sc.seq.emit(Event{Kind: EventItem, Stage: sc.index, OK: ok})
	}

	limit := sc.seq.concurrency
	if limit <= 1 {
		for i := 0; i < n; i++ {
			if sc.Cancelled() {
				return
			}
			finish(i, runItem(ctx, fn, i))
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if sc.Cancelled() {
			break
		}
		g.Go(func() error {
			// Go may have waited for a slot; a cancel during that wait
			// must not start the item.
			if sc.Cancelled() {
				return nil
			}
			finish(i, runItem(ctx, fn, i))
			return nil
		})
	}
	_ = g.Wait()
}

// runItem calls fn, converting a panic into an item failure.
func runItem(ctx context.Context, fn ItemFunc, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("item %d panicked: %v", i, r)
		}
	}()
	return fn(ctx, i)
}
