package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/planetforge/engine/internal/adapters/identity"
	"github.com/planetforge/engine/internal/adapters/ws"
	"github.com/planetforge/engine/internal/app"
	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/internal/domain/session"
	"github.com/planetforge/engine/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeService records calls and returns canned results.
type fakeService struct {
	mu sync.Mutex

	startErr   error
	streamRes  app.StreamResult
	streamErr  error
	endErr     error
	endedUsers []string
}

func (f *fakeService) StartSession(_ context.Context, userID string, _ model.SessionMeta) (model.Session, error) {
	if f.startErr != nil {
		return model.Session{}, f.startErr
	}
	return model.Session{ID: "session-1", UserID: userID, StartedAt: time.Now()}, nil
}

func (f *fakeService) ProcessStream(_ context.Context, _, _ string, _ model.MetricsSample) (app.StreamResult, error) {
	if f.streamErr != nil {
		return app.StreamResult{}, f.streamErr
	}
	return f.streamRes, nil
}

func (f *fakeService) EndSession(_ context.Context, _, sessionID string) (model.SessionSummary, error) {
	if f.endErr != nil {
		return model.SessionSummary{}, f.endErr
	}
	return model.SessionSummary{SessionID: sessionID, SampleCount: 3}, nil
}

func (f *fakeService) EndSessionsForUser(_ context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endedUsers = append(f.endedUsers, userID)
}

func (f *fakeService) PlanetByOwner(_ context.Context, ownerID string) (*model.Planet, error) {
	return &model.Planet{ID: "planet-1", OwnerID: ownerID, Stage: model.StageProtoplanet}, nil
}

func (f *fakeService) endedFor(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.endedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

func newWSServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	server := ws.NewServer(svc, identity.StaticProvider{}, ws.NewHub())
	ts := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	if err := conn.WriteJSON(ws.Envelope{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("writing message: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) ws.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env ws.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("reading message: %v", err)
	}
	return env
}

func recvError(t *testing.T, conn *websocket.Conn) ws.ErrorPayload {
	t.Helper()
	env := recv(t, conn)
	if env.Type != ws.TypeError {
		t.Fatalf("expected error message, got %q", env.Type)
	}
	var p ws.ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	return p
}

func TestServer_RejectsUnauthenticated(t *testing.T) {
	ts := newWSServer(t, &fakeService{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %+v", resp)
	}
}

func TestServer_StartSession(t *testing.T) {
	svc := &fakeService{}
	conn := dial(t, newWSServer(t, svc), "user-1")

	send(t, conn, ws.TypeStartSession, ws.StartSessionPayload{Language: "go"})
	env := recv(t, conn)
	if env.Type != ws.TypeSessionStarted {
		t.Fatalf("expected session_started, got %q", env.Type)
	}

	var ack ws.SessionStartedPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	if ack.SessionID != "session-1" {
		t.Errorf("unexpected session id %q", ack.SessionID)
	}
	if ack.Planet == nil || ack.Planet.OwnerID != "user-1" {
		t.Errorf("expected the user's planet in the ack, got %+v", ack.Planet)
	}
}

func TestServer_StartSessionDuplicate(t *testing.T) {
	svc := &fakeService{startErr: session.ErrDuplicateSession}
	conn := dial(t, newWSServer(t, svc), "user-1")

	send(t, conn, ws.TypeStartSession, ws.StartSessionPayload{})
	p := recvError(t, conn)
	if p.Code != ws.ErrorCodeDuplicateSession {
		t.Errorf("expected duplicate_session, got %q", p.Code)
	}
}

func TestServer_CodeStream(t *testing.T) {
	svc := &fakeService{
		streamRes: app.StreamResult{
			Update: model.LiveUpdate{
				SessionID:   "session-1",
				EditCount:   4,
				SampleCount: 4,
				Analysis:    model.Analysis{CodingStyle: "modular"},
			},
			Evolution: model.EvolutionResult{
				PlanetID: "planet-1",
				After:    model.PlanetState{Stage: model.StageYoungWorld},
			},
		},
	}
	conn := dial(t, newWSServer(t, svc), "user-1")

	send(t, conn, ws.TypeCodeStream, ws.CodeStreamPayload{
		SessionID: "session-1",
		Metrics:   model.MetricsSample{Lines: 10},
	})

	env := recv(t, conn)
	if env.Type != ws.TypeAnalysisUpdate {
		t.Fatalf("expected analysis_update, got %q", env.Type)
	}
	var update ws.AnalysisUpdatePayload
	if err := json.Unmarshal(env.Payload, &update); err != nil {
		t.Fatalf("decoding update: %v", err)
	}
	if update.EditCount != 4 || update.Analysis.CodingStyle != "modular" {
		t.Errorf("unexpected update %+v", update)
	}
	if update.PlanetState.Stage != model.StageYoungWorld {
		t.Errorf("unexpected planet state %+v", update.PlanetState)
	}
}

func TestServer_CodeStreamPushesMilestones(t *testing.T) {
	svc := &fakeService{
		streamRes: app.StreamResult{
			Update: model.LiveUpdate{SessionID: "session-1"},
			Evolution: model.EvolutionResult{
				PlanetID:     "planet-1",
				StageChanged: true,
				Before:       model.PlanetState{Stage: model.StageProtoplanet},
				After:        model.PlanetState{Stage: model.StageYoungWorld},
				Achievements: []model.Achievement{
					{ID: "documentation_champion", Points: 50},
				},
			},
		},
	}
	conn := dial(t, newWSServer(t, svc), "user-1")

	send(t, conn, ws.TypeCodeStream, ws.CodeStreamPayload{SessionID: "session-1"})

	if env := recv(t, conn); env.Type != ws.TypeAnalysisUpdate {
		t.Fatalf("expected analysis_update, got %q", env.Type)
	}

	env := recv(t, conn)
	if env.Type != ws.TypePlanetEvolution {
		t.Fatalf("expected planet_evolution, got %q", env.Type)
	}
	var evo ws.PlanetEvolutionPayload
	if err := json.Unmarshal(env.Payload, &evo); err != nil {
		t.Fatalf("decoding evolution: %v", err)
	}
	if evo.From != model.StageProtoplanet || evo.To != model.StageYoungWorld {
		t.Errorf("unexpected transition %+v", evo)
	}

	env = recv(t, conn)
	if env.Type != ws.TypeAchievementUnlocked {
		t.Fatalf("expected achievement_unlocked, got %q", env.Type)
	}
	var ach ws.AchievementUnlockedPayload
	if err := json.Unmarshal(env.Payload, &ach); err != nil {
		t.Fatalf("decoding achievement: %v", err)
	}
	if ach.Achievement.ID != "documentation_champion" {
		t.Errorf("unexpected achievement %+v", ach)
	}
}

func TestServer_CodeStreamErrors(t *testing.T) {
	t.Run("unknown session", func(t *testing.T) {
		svc := &fakeService{streamErr: session.ErrSessionNotFound}
		conn := dial(t, newWSServer(t, svc), "user-1")

		send(t, conn, ws.TypeCodeStream, ws.CodeStreamPayload{SessionID: "nope"})
		if p := recvError(t, conn); p.Code != ws.ErrorCodeSessionNotFound {
			t.Errorf("expected session_not_found, got %q", p.Code)
		}
	})

	t.Run("missing session id", func(t *testing.T) {
		conn := dial(t, newWSServer(t, &fakeService{}), "user-1")

		send(t, conn, ws.TypeCodeStream, ws.CodeStreamPayload{})
		if p := recvError(t, conn); p.Code != ws.ErrorCodeInvalidMessage {
			t.Errorf("expected invalid_message, got %q", p.Code)
		}
	})

	t.Run("internal failure", func(t *testing.T) {
		svc := &fakeService{streamErr: errors.New("boom")}
		conn := dial(t, newWSServer(t, svc), "user-1")

		send(t, conn, ws.TypeCodeStream, ws.CodeStreamPayload{SessionID: "session-1"})
		if p := recvError(t, conn); p.Code != ws.ErrorCodeInternal {
			t.Errorf("expected internal_error, got %q", p.Code)
		}
	})
}

func TestServer_EndSession(t *testing.T) {
	conn := dial(t, newWSServer(t, &fakeService{}), "user-1")

	send(t, conn, ws.TypeEndSession, ws.EndSessionPayload{SessionID: "session-1"})
	env := recv(t, conn)
	if env.Type != ws.TypeSessionEnded {
		t.Fatalf("expected session_ended, got %q", env.Type)
	}
	var ended ws.SessionEndedPayload
	if err := json.Unmarshal(env.Payload, &ended); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if ended.Summary.SessionID != "session-1" || ended.Summary.SampleCount != 3 {
		t.Errorf("unexpected summary %+v", ended.Summary)
	}
}

func TestServer_MalformedMessages(t *testing.T) {
	conn := dial(t, newWSServer(t, &fakeService{}), "user-1")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("writing message: %v", err)
	}
	if p := recvError(t, conn); p.Code != ws.ErrorCodeInvalidMessage {
		t.Errorf("expected invalid_message, got %q", p.Code)
	}

	send(t, conn, "shutdown", struct{}{})
	if p := recvError(t, conn); p.Code != ws.ErrorCodeInvalidMessage {
		t.Errorf("expected invalid_message, got %q", p.Code)
	}
}

func TestServer_Ping(t *testing.T) {
	conn := dial(t, newWSServer(t, &fakeService{}), "user-1")

	send(t, conn, ws.TypePing, struct{}{})
	env := recv(t, conn)
	if env.Type != ws.TypePong {
		t.Fatalf("expected pong, got %q", env.Type)
	}
	var pong ws.PongPayload
	if err := json.Unmarshal(env.Payload, &pong); err != nil {
		t.Fatalf("decoding pong: %v", err)
	}
	if pong.Timestamp <= 0 {
		t.Errorf("expected a server timestamp, got %d", pong.Timestamp)
	}
}

func TestServer_DisconnectEndsSessions(t *testing.T) {
	svc := &fakeService{}
	conn := dial(t, newWSServer(t, svc), "user-1")

	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !svc.endedFor("user-1") {
		if time.Now().After(deadline) {
			t.Fatal("sessions were not ended after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
