// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/planetforge/engine/internal/adapters/repository"
	"github.com/planetforge/engine/internal/domain/model"
)

// defaultEventLimit is used when the query omits limit.
const defaultEventLimit = 20

// EventsDependencies defines the interface for evolution history reads.
type EventsDependencies interface {
	Events(ctx context.Context, ownerID string, limit int) ([]model.EvolutionEvent, error)
}

// EventsHandler handles evolution history requests.
type EventsHandler struct {
	deps     EventsDependencies
	maxLimit int
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventsDependencies, maxLimit int) *EventsHandler {
	return &EventsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetEvents handles GET /api/v1/evolution/events?limit=N requests,
// returning the authenticated caller's planet timeline newest first.
func (h *EventsHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_events"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := defaultEventLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	events, err := h.deps.Events(r.Context(), callerID(r.Context()), limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}
