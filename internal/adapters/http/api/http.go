// Package api exposes the intent and view endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/mapty/internal/adapters/repository"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	IntentDependencies
	ReadDependencies
	StatsProvider
}

// Server wires HTTP routes for the workout API.
type Server struct {
	router chi.Router

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	intentsHandler *IntentsHandler
	viewHandler    *ViewHandler
}

// NewServer creates a new API server with all handlers and routes.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		intentsHandler: NewIntentsHandler(deps),
		viewHandler:    NewViewHandler(deps),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	s.router.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	s.router.Post("/intents", MetricsMiddleware(s.intentsHandler.HandlePostIntent, "intents"))
	s.router.Get("/view", MetricsMiddleware(s.viewHandler.HandleGetView, "view"))
	s.router.Get("/workouts", MetricsMiddleware(s.viewHandler.HandleGetWorkouts, "workouts"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func isBadSort(err error) bool {
	return errors.Is(err, repository.ErrInvalidSortKey)
}
