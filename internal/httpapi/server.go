// Package httpapi exposes pipeline runs over HTTP: snapshots, lifecycle
// actions and a Server-Sent Events stream of progress.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dusk-indust/elicit/internal/generation"
	"github.com/dusk-indust/elicit/internal/graph"
	"github.com/dusk-indust/elicit/internal/logfields"
	"github.com/dusk-indust/elicit/internal/sequencer"
)

// Server serves the run API for a generation.Manager.
type Server struct {
	manager *generation.Manager
	graph   graph.Store
	metrics http.Handler
	logger  *slog.Logger
	http    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithGraph serves GET /projects/{id}/clusters from store.
func WithGraph(store graph.Store) Option {
	return func(s *Server) { s.graph = store }
}

// WithMetrics serves GET /metrics from h.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server over m.
func NewServer(m *generation.Manager, opts ...Option) *Server {
	s := &Server{manager: m, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /projects/{id}/runs/{kind}", s.handleSnapshot)
	mux.HandleFunc("POST /projects/{id}/runs/{kind}/start", s.handleAction(actionStart))
	mux.HandleFunc("POST /projects/{id}/runs/{kind}/restart", s.handleAction(actionRestart))
	mux.HandleFunc("POST /projects/{id}/runs/{kind}/cancel", s.handleAction(actionCancel))
	mux.HandleFunc("GET /projects/{id}/runs/{kind}/events", s.handleEvents)
	if s.graph != nil {
		mux.HandleFunc("GET /projects/{id}/clusters", s.handleClusters)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start binds addr and serves in a background goroutine.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", logfields.Error(err))
		}
	}()
	s.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.manager.Runs()
	out := make([]sequencer.Progress, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

type action string

const (
	actionStart   action = "start"
	actionRestart action = "restart"
	actionCancel  action = "cancel"
)

func (s *Server) handleAction(a action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := r.PathValue("id")
		kind, err := generation.ParseKind(r.PathValue("kind"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		var run *generation.Run
		switch a {
		case actionStart:
			run, err = s.manager.Start(r.Context(), projectID, kind)
		case actionRestart:
			run, err = s.manager.Restart(r.Context(), projectID, kind)
		case actionCancel:
			if !s.manager.Cancel(projectID, kind) {
				writeError(w, http.StatusNotFound, errors.New("no run for project"))
				return
			}
			run, _ = s.manager.Lookup(projectID, kind)
		}
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		s.logger.Debug("Run action", logfields.ProjectID(projectID), logfields.Pipeline(string(kind)), slog.String("action", string(a)))
		writeJSON(w, http.StatusAccepted, run.Snapshot())
	}
}

// handleEvents streams the run's events. The current snapshot is sent
// first; the stream ends with it when the run is not active, and otherwise
// after a terminal event, when the run finishes or when the client goes
// away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	sub := run.Subscribe()
	defer run.Unsubscribe(sub)

	sw := NewSSEWriter(w)
	sw.Init()
	snap := run.Snapshot()
	if err := sw.WriteEvent("snapshot", snap); err != nil {
		return
	}
	if snap.State != sequencer.StateRunning && snap.State != sequencer.StateCancelling {
		return
	}

	// The reporter drops events when a slow client falls behind, so the
	// terminal event is not guaranteed to arrive.
	done := make(chan struct{})
	go func() {
		_ = run.Wait(r.Context())
		close(done)
	}()

	ch := sub.Subscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := sw.WriteEvent(string(ev.Kind), ev); err != nil {
				return
			}
			if ev.Terminal() {
				return
			}
		case <-done:
			drain(sw, ch)
			return
		}
	}
}

// drain writes events already buffered for the subscriber.
func drain(sw *SSEWriter, ch <-chan sequencer.Event) {
	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := sw.WriteEvent(string(ev.Kind), ev); err != nil || ev.Terminal() {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	clusters, err := s.graph.Clusters(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if clusters == nil {
		clusters = []graph.ClusterNode{}
	}
	writeJSON(w, http.StatusOK, clusters)
}

// run resolves the path's project and kind to an existing run, writing the
// error response itself when it cannot. Reads never create runs.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*generation.Run, bool) {
	kind, err := generation.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	projectID := r.PathValue("id")
	run, found := s.manager.Lookup(projectID, kind)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("no %s run for project %s", kind, projectID))
		return nil, false
	}
	return run, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generation.ErrBlacklisted):
		return http.StatusForbidden
	case errors.Is(err, generation.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
