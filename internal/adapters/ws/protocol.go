// Package ws serves the client-facing WebSocket connection layer: one
// connection per user, a JSON message protocol, and server-side pushes for
// evolution milestones.
package ws

import (
	"encoding/json"

	"github.com/planetforge/engine/internal/domain/model"
)

// Client-to-server message types.
const (
	TypeStartSession = "start_session"
	TypeCodeStream   = "code_stream"
	TypeEndSession   = "end_session"
	TypePing         = "ping"
)

// Server-to-client message types.
const (
	TypeSessionStarted      = "session_started"
	TypeAnalysisUpdate      = "analysis_update"
	TypeSessionEnded        = "session_ended"
	TypePong                = "pong"
	TypeError               = "error"
	TypePlanetEvolution     = "planet_evolution"
	TypeAchievementUnlocked = "achievement_unlocked"
)

// Error codes carried by error messages.
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeSessionNotFound  = "session_not_found"
	ErrorCodeDuplicateSession = "duplicate_session"
	ErrorCodeInternal         = "internal_error"
)

// Envelope is the tagged union every message travels in. Payload is decoded
// lazily per Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartSessionPayload is the client request to open a session.
type StartSessionPayload struct {
	Language    string `json:"language"`
	ProjectName string `json:"project_name"`
}

// CodeStreamPayload carries one behavioral metrics sample.
type CodeStreamPayload struct {
	SessionID string              `json:"session_id"`
	Metrics   model.MetricsSample `json:"metrics"`
}

// EndSessionPayload is the client request to close a session.
type EndSessionPayload struct {
	SessionID string `json:"session_id"`
}

// SessionStartedPayload acknowledges a new session.
type SessionStartedPayload struct {
	SessionID string        `json:"session_id"`
	StartedAt int64         `json:"started_at"`
	Planet    *model.Planet `json:"planet,omitempty"`
}

// AnalysisUpdatePayload is the per-sample response on the owning connection.
type AnalysisUpdatePayload struct {
	SessionID   string            `json:"session_id"`
	EditCount   int               `json:"edit_count"`
	SampleCount int               `json:"sample_count"`
	Analysis    model.Analysis    `json:"analysis"`
	PlanetState model.PlanetState `json:"planet_state"`
}

// SessionEndedPayload carries the closing summary.
type SessionEndedPayload struct {
	Summary model.SessionSummary `json:"summary"`
}

// PlanetEvolutionPayload announces a stage transition.
type PlanetEvolutionPayload struct {
	PlanetID string            `json:"planet_id"`
	From     model.Stage       `json:"from_stage"`
	To       model.Stage       `json:"to_stage"`
	State    model.PlanetState `json:"state"`
}

// AchievementUnlockedPayload announces a newly unlocked achievement.
type AchievementUnlockedPayload struct {
	PlanetID    string            `json:"planet_id"`
	Achievement model.Achievement `json:"achievement"`
}

// PongPayload answers a client ping with the server clock.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorPayload reports a per-message failure without closing the connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encode wraps a payload into an envelope, marshaling once.
func encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
