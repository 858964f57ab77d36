package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/planetforge/engine/internal/adapters/identity"
	"github.com/planetforge/engine/internal/app"
	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/internal/domain/session"
	"github.com/planetforge/engine/pkg/logger"
	"github.com/planetforge/engine/pkg/metrics"
)

// Connection timing and buffer constants.
const (
	defaultReadLimit  = 64 * 1024
	defaultSendBuffer = 64
	writeTimeout      = 10 * time.Second
	pongTimeout       = 60 * time.Second
	pingInterval      = 50 * time.Second
)

// Service is the application surface the connection layer drives.
type Service interface {
	StartSession(ctx context.Context, userID string, meta model.SessionMeta) (model.Session, error)
	ProcessStream(ctx context.Context, userID, sessionID string, sample model.MetricsSample) (app.StreamResult, error)
	EndSession(ctx context.Context, userID, sessionID string) (model.SessionSummary, error)
	EndSessionsForUser(ctx context.Context, userID string)
	PlanetByOwner(ctx context.Context, ownerID string) (*model.Planet, error)
}

// Server upgrades HTTP requests and runs the per-connection message loop.
type Server struct {
	service  Service
	identity identity.Provider
	hub      *Hub
	upgrader websocket.Upgrader

	readLimit  int64
	sendBuffer int

	logger logger.Logger
}

// NewServer creates a WebSocket server with configuration options.
func NewServer(service Service, provider identity.Provider, hub *Hub, opts ...Option) *Server {
	s := &Server{
		service:    service,
		identity:   provider,
		hub:        hub,
		readLimit:  defaultReadLimit,
		sendBuffer: defaultSendBuffer,
		logger:     logger.Get().Named("ws"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return s
}

// HandleWS authenticates the request, upgrades it and runs the connection
// until the client goes away.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identity.Authenticate(bearerToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	conn := newConnection(ws, s.sendBuffer)
	s.hub.Register(r.Context(), userID, conn)

	go conn.writePump()
	s.readLoop(userID, conn)
}

// readLoop consumes client messages in order. Messages on one connection are
// handled sequentially so per-session sample order is preserved.
func (s *Server) readLoop(userID string, conn *connection) {
	ctx := context.Background()
	defer s.disconnect(ctx, userID, conn)

	conn.ws.SetReadLimit(s.readLimit)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug(ctx, "connection read failed",
					logger.String("user_id", userID), logger.Error(err))
			}
			return
		}
		s.handleMessage(ctx, userID, conn, data)
	}
}

// disconnect is the single teardown path: the hub slot is released and every
// open session of the user is closed without blocking on persistence.
func (s *Server) disconnect(ctx context.Context, userID string, conn *connection) {
	s.hub.Unregister(ctx, userID, conn)
	conn.CloseNow()
	go s.service.EndSessionsForUser(context.WithoutCancel(ctx), userID)
}

func (s *Server) handleMessage(ctx context.Context, userID string, conn *connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "malformed JSON")
		return
	}
	metrics.RecordWSMessage(env.Type)

	switch env.Type {
	case TypeStartSession:
		s.handleStartSession(ctx, userID, conn, env.Payload)
	case TypeCodeStream:
		s.handleCodeStream(ctx, userID, conn, env.Payload)
	case TypeEndSession:
		s.handleEndSession(ctx, userID, conn, env.Payload)
	case TypePing:
		s.send(conn, TypePong, PongPayload{Timestamp: time.Now().Unix()})
	default:
		s.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+env.Type)
	}
}

func (s *Server) handleStartSession(ctx context.Context, userID string, conn *connection, payload json.RawMessage) {
	var req StartSessionPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(conn, ErrorCodeInvalidMessage, "malformed start_session payload")
			return
		}
	}

	sess, err := s.service.StartSession(ctx, userID, model.SessionMeta{
		Language:    req.Language,
		ProjectName: req.ProjectName,
	})
	if err != nil {
		if errors.Is(err, session.ErrDuplicateSession) {
			s.sendError(conn, ErrorCodeDuplicateSession, "a session is already open")
			return
		}
		s.sendError(conn, ErrorCodeInternal, "could not start session")
		return
	}

	ack := SessionStartedPayload{
		SessionID: sess.ID,
		StartedAt: sess.StartedAt.Unix(),
	}
	if planet, err := s.service.PlanetByOwner(ctx, userID); err == nil {
		ack.Planet = planet
	}
	s.send(conn, TypeSessionStarted, ack)
}

func (s *Server) handleCodeStream(ctx context.Context, userID string, conn *connection, payload json.RawMessage) {
	var req CodeStreamPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "malformed code_stream payload")
		return
	}
	if req.SessionID == "" {
		s.sendError(conn, ErrorCodeInvalidMessage, "missing session_id")
		return
	}

	res, err := s.service.ProcessStream(ctx, userID, req.SessionID, req.Metrics)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.sendError(conn, ErrorCodeSessionNotFound, "session not found or closed")
			return
		}
		s.sendError(conn, ErrorCodeInternal, "could not process sample")
		return
	}

	s.send(conn, TypeAnalysisUpdate, AnalysisUpdatePayload{
		SessionID:   res.Update.SessionID,
		EditCount:   res.Update.EditCount,
		SampleCount: res.Update.SampleCount,
		Analysis:    res.Update.Analysis,
		PlanetState: res.Evolution.After,
	})

	if res.Evolution.StageChanged {
		s.send(conn, TypePlanetEvolution, PlanetEvolutionPayload{
			PlanetID: res.Evolution.PlanetID,
			From:     res.Evolution.Before.Stage,
			To:       res.Evolution.After.Stage,
			State:    res.Evolution.After,
		})
	}
	for _, a := range res.Evolution.Achievements {
		s.send(conn, TypeAchievementUnlocked, AchievementUnlockedPayload{
			PlanetID:    res.Evolution.PlanetID,
			Achievement: a,
		})
	}
}

func (s *Server) handleEndSession(ctx context.Context, userID string, conn *connection, payload json.RawMessage) {
	var req EndSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		s.sendError(conn, ErrorCodeInvalidMessage, "malformed end_session payload")
		return
	}

	summary, err := s.service.EndSession(ctx, userID, req.SessionID)
	if err != nil {
		s.sendError(conn, ErrorCodeSessionNotFound, "session not found or closed")
		return
	}
	s.send(conn, TypeSessionEnded, SessionEndedPayload{Summary: summary})
}

func (s *Server) send(conn *connection, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		s.logger.Error(context.Background(), "encoding message",
			logger.String("type", msgType), logger.Error(err))
		return
	}
	if !conn.Enqueue(data) {
		metrics.RecordSendDrop()
	}
}

func (s *Server) sendError(conn *connection, code, message string) {
	s.send(conn, TypeError, ErrorPayload{Code: code, Message: message})
}

// bearerToken pulls the credential from the Authorization header or, for
// browser clients that cannot set headers on WebSocket requests, the token
// query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// connection wraps a websocket connection with a buffered outbound channel
// drained by a single writer goroutine.
type connection struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(ws *websocket.Conn, sendBuffer int) *connection {
	if sendBuffer < 1 {
		sendBuffer = defaultSendBuffer
	}
	return &connection{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Enqueue implements Conn. Non-blocking: a full buffer reports failure
// instead of stalling the caller.
func (c *connection) Enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// CloseNow implements Conn. Safe to call multiple times.
func (c *connection) CloseNow() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// writePump serializes all writes to the underlying connection and keeps the
// client alive with periodic pings.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.CloseNow()
	}()

	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
