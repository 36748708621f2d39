package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/parleysim/parley/internal/bus"
	"github.com/parleysim/parley/internal/engine"
	"github.com/parleysim/parley/internal/persona"
	"github.com/parleysim/parley/internal/store"
)

const defaultListLimit = 50

// Launcher starts negotiation runs. Satisfied by *runner.Runner.
type Launcher interface {
	Run(ctx context.Context, req bus.RunRequest) (engine.Result, error)
	Scenarios() []string
}

// RunReader serves persisted runs. Satisfied by *store.Store; nil disables
// the read endpoints.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*store.RunRecord, error)
	ListRecent(ctx context.Context, limit int) ([]store.RunSummary, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	launcher Launcher
	runs     RunReader
}

func NewServer(port int, apiToken string, launcher Launcher, runs RunReader) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		launcher: launcher,
		runs:     runs,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/parley/status", s.status)
	router.Get("/api/v1/personas", s.listPersonas)
	router.Get("/api/v1/scenarios", s.listScenarios)

	router.Route("/api/v1/negotiations", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/", s.startNegotiation)
		r.Get("/", s.listNegotiations)
		r.Get("/{id}", s.getNegotiation)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":     "parley",
		"status":    "ready",
		"scenarios": len(s.launcher.Scenarios()),
	})
}

func (s *Server) listPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"personas": persona.List()})
}

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	names := s.launcher.Scenarios()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": names})
}

// startNegotiation runs a negotiation synchronously and returns the full
// result. Request validation failures are 400; a run aborted mid-flight by a
// non-recoverable generation failure is 502.
func (s *Server) startNegotiation(w http.ResponseWriter, r *http.Request) {
	var req bus.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Scenario == "" {
		writeError(w, http.StatusBadRequest, "scenario is required")
		return
	}

	res, err := s.launcher.Run(r.Context(), req)
	if err != nil {
		// A zero run ID means the request never produced a run.
		if res.ID == uuid.Nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) listNegotiations(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"negotiations": runs})
}

func (s *Server) getNegotiation(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	rec, err := s.runs.GetRun(r.Context(), id)
	if err == store.ErrRunNotFound {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
