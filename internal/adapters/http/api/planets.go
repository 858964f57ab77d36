// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/planetforge/engine/internal/domain/model"
)

// PlanetsDependencies defines the interface for planet listing.
type PlanetsDependencies interface {
	TopPlanets(ctx context.Context, n int) ([]*model.Planet, error)
}

// PlanetsHandler handles planet listing requests.
type PlanetsHandler struct {
	deps     PlanetsDependencies
	maxLimit int
}

// NewPlanetsHandler creates a new planets handler.
func NewPlanetsHandler(deps PlanetsDependencies, maxLimit int) *PlanetsHandler {
	return &PlanetsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetPlanets handles GET /api/v1/planets?limit=N requests. The listing
// is ordered by evolution points and served from a periodic snapshot, so it
// may lag recent writes.
func (h *PlanetsHandler) HandleGetPlanets(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_planets"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limitStr := r.URL.Query().Get("limit")
	n, err := strconv.Atoi(limitStr)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	planets, err := h.deps.TopPlanets(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, planets)
}
