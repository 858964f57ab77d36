// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/planetforge/engine/internal/app"
	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/internal/domain/session"
)

// AnalyzeDependencies defines the interface for one-shot analysis.
type AnalyzeDependencies interface {
	Analyze(ctx context.Context, userID string, meta model.SessionMeta, sample model.MetricsSample) (app.StreamResult, model.SessionSummary, error)
}

// AnalyzeHandler handles one-shot analysis requests.
type AnalyzeHandler struct {
	deps AnalyzeDependencies
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps AnalyzeDependencies) *AnalyzeHandler {
	return &AnalyzeHandler{deps: deps}
}

// analyzeRequest mirrors the schema for POST /api/v1/analyze. The caller is
// identified by the bearer credential, never by the body.
type analyzeRequest struct {
	Language    string              `json:"language"`
	ProjectName string              `json:"project_name"`
	Metrics     model.MetricsSample `json:"metrics"`
}

// analyzeResponse carries the per-sample analysis and the resulting planet change.
type analyzeResponse struct {
	Analysis  model.Analysis        `json:"analysis"`
	Evolution model.EvolutionResult `json:"evolution"`
	Summary   model.SessionSummary  `json:"session_summary"`
}

// HandlePostAnalyze handles POST /api/v1/analyze requests: a full
// start/process/end round trip for a single sample.
func (h *AnalyzeHandler) HandlePostAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_analyze"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, summary, err := h.deps.Analyze(r.Context(), callerID(r.Context()), model.SessionMeta{
		Language:    req.Language,
		ProjectName: req.ProjectName,
	}, req.Metrics)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateSession) {
			writeError(w, http.StatusConflict, "session_open", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Analysis:  res.Update.Analysis,
		Evolution: res.Evolution,
		Summary:   summary,
	})
}
