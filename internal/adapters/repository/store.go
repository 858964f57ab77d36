// Package repository defines the durable store contract and its in-memory implementation.
package repository

import (
	"context"

	"github.com/planetforge/engine/internal/domain/model"
)

// Store is the persistence collaborator consumed by the core. All methods may
// fail with ErrUnavailable; hot-path callers treat writes as best-effort.
type Store interface {
	// SavePlanet upserts a planet snapshot.
	SavePlanet(ctx context.Context, p *model.Planet) error

	// Planet returns a planet by id. Returns ErrNotFound if unknown.
	Planet(ctx context.Context, id string) (*model.Planet, error)

	// PlanetByOwner returns the planet owned by a user. Returns ErrNotFound if unknown.
	PlanetByOwner(ctx context.Context, ownerID string) (*model.Planet, error)

	// TopPlanets returns up to n planets ordered by evolution points desc.
	// The listing is best-effort: it is served from a periodically rebuilt
	// snapshot and may lag recent writes.
	TopPlanets(ctx context.Context, n int) ([]*model.Planet, error)

	// AppendEvent appends an immutable evolution event.
	AppendEvent(ctx context.Context, e model.EvolutionEvent) error

	// Events returns up to limit events for a planet, newest first.
	Events(ctx context.Context, planetID string, limit int) ([]model.EvolutionEvent, error)

	// SaveSession stores a closed-session summary record.
	SaveSession(ctx context.Context, s model.SessionSummary) error

	// PlanetCount returns the number of planets tracked.
	PlanetCount(ctx context.Context) int
}
