// Package statusserver exposes a read-only HTTP view of the
// supervisor's current task snapshot and tick history. It has no
// mutation path: every handler only reads from the task store, the
// claim tracker, and the history ledger, mirroring the way the
// teacher's own web.Server separates its health/status surface from
// anything that writes state.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/taskswarm/supervisor/internal/core"
	"github.com/taskswarm/supervisor/internal/history"
	"github.com/taskswarm/supervisor/internal/logging"
	"github.com/taskswarm/supervisor/internal/planner"
	"github.com/taskswarm/supervisor/internal/taskstore"
	"github.com/taskswarm/supervisor/internal/vcs"
)

// Config configures the HTTP server itself.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig mirrors the conservative timeouts the teacher's own
// web.Server.DefaultConfig ships with.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8090",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Deps are the read-only collaborators the server reports on.
type Deps struct {
	Tasks   *taskstore.Store
	Claims  *vcs.ClaimTracker
	History *history.Store // nil disables the /history endpoint
	Logger  *logging.Logger
}

// Server serves the status endpoints over HTTP.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New builds a Server; call Start to begin listening.
func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept"},
		MaxAge:         300,
	})
	r.Use(corsMiddleware.Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/history", s.handleHistory)
	return r
}

// Handler exposes the router directly, for tests and for embedding
// inside a larger mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving in the background. It returns immediately; call
// Shutdown to stop.
func (s *Server) Start() error {
	s.deps.Logger.Info("statusserver: listening", "addr", s.cfg.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error("statusserver: serve error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the live {done,claimed,ready} snapshot spec.md's
// ambient observability surface asks for.
type statusResponse struct {
	Done    []string `json:"done"`
	Claimed []string `json:"claimed"`
	Ready   []string `json:"ready"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := s.deps.Tasks.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	doneIDs := map[core.TaskID]bool{}
	var backlog []*core.Task
	for _, t := range all {
		if t.State == core.StateDone {
			doneIDs[t.ID] = true
		}
		if t.State == core.StateBacklog {
			backlog = append(backlog, t)
		}
	}

	claimedIDs, err := s.deps.Claims.ClaimedTaskIDs(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	ready := planner.ComputeReady(backlog, doneIDs, claimedIDs)

	writeJSON(w, http.StatusOK, statusResponse{
		Done:    sortedTaskIDStrings(doneIDs),
		Claimed: sortedTaskIDStrings(claimedIDs),
		Ready:   taskIDStrings(ready),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("tick history is disabled"))
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err == nil && n > 0 {
			limit = n
		}
	}

	recs, err := s.deps.History.RecentTicks(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func sortedTaskIDStrings(ids map[core.TaskID]bool) []string {
	out := make([]string, 0, len(ids))
	for id, present := range ids {
		if present {
			out = append(out, string(id))
		}
	}
	sort.Strings(out)
	return out
}

func taskIDStrings(tasks []*core.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = string(t.ID)
	}
	return out
}
