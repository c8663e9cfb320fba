// Package schedule starts configured projects' pipelines on an interval.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/logfields"
)

// Starter activates a project's pipeline. generation.Manager implements it.
type Starter interface {
	Start(ctx context.Context, projectID string, kind generation.Kind) (*generation.Run, error)
}

// Scheduler wraps a gocron scheduler that periodically starts pipelines.
// Completed pipelines short-circuit through their resume check, and active
// ones ignore the start.
type Scheduler struct {
	scheduler gocron.Scheduler
	starter   Starter
	logger    *slog.Logger
}

// NewScheduler creates a scheduler over starter.
func NewScheduler(starter Starter, logger *slog.Logger) (*Scheduler, error) {
	if starter == nil {
		return nil, errors.New("schedule: starter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("schedule: create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, starter: starter, logger: logger}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", slog.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SchedulePipeline starts kind for every project each interval, the first
// time immediately. It returns the job ID.
func (s *Scheduler) SchedulePipeline(interval time.Duration, kind generation.Kind, projectIDs []string) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("schedule: interval must be positive, got %s", interval)
	}
	if len(projectIDs) == 0 {
		return "", errors.New("schedule: no projects to schedule")
	}
	ids := append([]string(nil), projectIDs...)
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.startAll, kind, ids),
		gocron.WithName(fmt.Sprintf("%s-generation", kind)),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("schedule: create job: %w", err)
	}
	return job.ID().String(), nil
}

// startAll is called by gocron. A failing project does not stop the rest.
func (s *Scheduler) startAll(kind generation.Kind, projectIDs []string) int {
	started := 0
	for _, id := range projectIDs {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := s.starter.Start(ctx, id, kind)
		cancel()
		if err != nil {
			s.logger.Warn("Scheduled start failed",
				logfields.ProjectID(id),
				logfields.Pipeline(string(kind)),
				logfields.Error(err))
			continue
		}
		started++
	}
	s.logger.Info("Scheduled pipelines started",
		logfields.Pipeline(string(kind)),
		slog.Int("started", started),
		slog.Int("projects", len(projectIDs)))
	return started
}
