// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/planetforge/engine/internal/adapters/identity"
	"github.com/planetforge/engine/internal/app"
	"github.com/planetforge/engine/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Analyze performs a one-shot session round trip for a single sample.
	Analyze(ctx context.Context, userID string, meta model.SessionMeta, sample model.MetricsSample) (app.StreamResult, model.SessionSummary, error)

	// Read operations expose planet and evolution data.
	PlanetByOwner(ctx context.Context, ownerID string) (*model.Planet, error)
	TopPlanets(ctx context.Context, n int) ([]*model.Planet, error)
	Events(ctx context.Context, ownerID string, limit int) ([]model.EvolutionEvent, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	identity       identity.Provider
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	analyzeHandler *AnalyzeHandler
	planetHandler  *PlanetHandler
	planetsHandler *PlanetsHandler
	eventsHandler  *EventsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, provider identity.Provider, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		identity:       provider,
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		analyzeHandler: NewAnalyzeHandler(deps),
		planetHandler:  NewPlanetHandler(deps),
		planetsHandler: NewPlanetsHandler(deps, maxLimit),
		eventsHandler:  NewEventsHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux. The business API requires a
// bearer credential; health and stats stay open for operators.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/v1/analyze", s.protected(s.analyzeHandler.HandlePostAnalyze, "analyze"))
	mux.HandleFunc("/api/v1/planet", s.protected(s.planetHandler.HandleGetPlanet, "planet"))
	mux.HandleFunc("/api/v1/planets", s.protected(s.planetsHandler.HandleGetPlanets, "planets"))
	mux.HandleFunc("/api/v1/evolution/events", s.protected(s.eventsHandler.HandleGetEvents, "events"))
}

func (s *Server) protected(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(AuthMiddleware(s.identity, next), endpoint)
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
