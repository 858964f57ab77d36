// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/planetforge/engine/internal/adapters/repository"
	"github.com/planetforge/engine/internal/domain/model"
)

// PlanetDependencies defines the interface for single-planet reads.
type PlanetDependencies interface {
	PlanetByOwner(ctx context.Context, ownerID string) (*model.Planet, error)
}

// PlanetHandler handles single-planet requests.
type PlanetHandler struct {
	deps PlanetDependencies
}

// NewPlanetHandler creates a new planet handler.
func NewPlanetHandler(deps PlanetDependencies) *PlanetHandler {
	return &PlanetHandler{deps: deps}
}

// HandleGetPlanet handles GET /api/v1/planet requests, returning the
// authenticated caller's planet.
func (h *PlanetHandler) HandleGetPlanet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_planet"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	planet, err := h.deps.PlanetByOwner(r.Context(), callerID(r.Context()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, planet)
}
