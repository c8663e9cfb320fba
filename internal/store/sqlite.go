// Package store persists run history and the project blacklist.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dusk-indust/elicit/internal/sequencer"
)

var _ Blacklist = (*SQLiteStore)(nil)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	RunID       string             `json:"runId"`
	ProjectID   string             `json:"projectId"`
	Pipeline    string             `json:"pipeline"`
	State       sequencer.State    `json:"state"`
	Percent     float64            `json:"progressPercent"`
	CurrentStep int                `json:"currentStepIndex"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt,omitzero"`
	Snapshot    sequencer.Progress `json:"snapshot"`
}

// SQLiteStore implements run history and Blacklist using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		pipeline TEXT NOT NULL,
		state TEXT NOT NULL,
		percent REAL NOT NULL,
		current_step INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		snapshot BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id, pipeline, started_at);
	CREATE TABLE IF NOT EXISTS blacklist (
		project_id TEXT PRIMARY KEY,
		added_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------- Runs ----------

// SaveRun inserts or updates the run described by p. Snapshots that
// belong to no run (never started) are ignored.
func (s *SQLiteStore) SaveRun(ctx context.Context, p sequencer.Progress) error {
	if p.RunID == "" {
		return nil
	}
	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, project_id, pipeline, state, percent, current_step, started_at, finished_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			state = excluded.state,
			percent = excluded.percent,
			current_step = excluded.current_step,
			finished_at = excluded.finished_at,
			snapshot = excluded.snapshot`,
		p.RunID, p.ProjectID, p.Pipeline, p.State.String(), p.Percent, p.CurrentStep,
		unixNano(p.StartedAt), unixNano(p.FinishedAt), snapshot,
	)
	if err != nil {
		return fmt.Errorf("store: save run %s: %w", p.RunID, err)
	}
	return nil
}

// LatestRun returns the most recently started run of a pipeline, or nil
// when the project has none.
func (s *SQLiteStore) LatestRun(ctx context.Context, projectID, pipeline string) (*RunRecord, error) {
	runs, err := s.queryRuns(ctx,
		`WHERE project_id = ? AND pipeline = ? ORDER BY started_at DESC LIMIT 1`,
		projectID, pipeline)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// ListRuns returns a project's runs across pipelines, newest first. A
// limit of zero or less returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, projectID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRuns(ctx,
		`WHERE project_id = ? ORDER BY started_at DESC LIMIT ?`,
		projectID, limit)
}

func (s *SQLiteStore) queryRuns(ctx context.Context, where string, args ...any) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, project_id, pipeline, state, percent, current_step, started_at, finished_at, snapshot
		FROM runs `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r                 RunRecord
			state             string
			started, finished int64
			snapshot          []byte
		)
		if err := rows.Scan(&r.RunID, &r.ProjectID, &r.Pipeline, &state, &r.Percent, &r.CurrentStep,
			&started, &finished, &snapshot); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if err := r.State.UnmarshalText([]byte(state)); err != nil {
			return nil, fmt.Errorf("store: run %s: %w", r.RunID, err)
		}
		r.StartedAt = fromUnixNano(started)
		r.FinishedAt = fromUnixNano(finished)
		if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
			return nil, fmt.Errorf("store: run %s: unmarshal snapshot: %w", r.RunID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate runs: %w", err)
	}
	return out, nil
}

// ---------- Blacklist ----------

// ErrEmptyProjectID is returned when a blacklist entry has no project ID.
var ErrEmptyProjectID = errors.New("store: empty project id")

// Add blacklists a project. Adding an existing entry is a no-op.
func (s *SQLiteStore) Add(ctx context.Context, projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ErrEmptyProjectID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blacklist (project_id, added_at) VALUES (?, ?)`,
		projectID, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("store: blacklist %s: %w", projectID, err)
	}
	return nil
}

// Remove drops a project from the blacklist. Removing a missing entry is a
// no-op.
func (s *SQLiteStore) Remove(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE project_id = ?`, strings.TrimSpace(projectID))
	if err != nil {
		return fmt.Errorf("store: unblacklist %s: %w", projectID, err)
	}
	return nil
}

// List returns blacklisted project IDs in the order they were added.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT project_id FROM blacklist ORDER BY added_at, project_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list blacklist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan blacklist: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Contains reports whether a project is blacklisted.
func (s *SQLiteStore) Contains(ctx context.Context, projectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blacklist WHERE project_id = ?`, strings.TrimSpace(projectID)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: check blacklist: %w", err)
	}
	return n > 0, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
