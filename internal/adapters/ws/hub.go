package ws

import (
	"context"
	"sync"

	"github.com/planetforge/engine/pkg/logger"
	"github.com/planetforge/engine/pkg/metrics"
)

// Conn is the minimal write surface the hub needs from a connection. The
// concrete implementation wraps a gorilla websocket connection.
type Conn interface {
	// Enqueue hands data to the connection's writer. Returns false when the
	// outbound buffer is full or the connection is gone.
	Enqueue(data []byte) bool

	// CloseNow tears the underlying connection down.
	CloseNow()
}

// Hub is the registry of live connections, at most one per user. A second
// connection for the same user displaces the first.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn // user id -> live connection

	logger logger.Logger
}

// NewHub creates an empty connection registry.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]Conn),
		logger: logger.Get().Named("ws-hub"),
	}
}

// Register binds a connection to a user, displacing any previous one. The
// displaced connection is closed.
func (h *Hub) Register(ctx context.Context, userID string, c Conn) {
	h.mu.Lock()
	prev := h.conns[userID]
	h.conns[userID] = c
	n := len(h.conns)
	h.mu.Unlock()

	if prev != nil && prev != c {
		prev.CloseNow()
		h.logger.Debug(ctx, "displaced previous connection", logger.String("user_id", userID))
	}
	metrics.UpdateLiveConnections(n)
}

// Unregister removes the user's connection if it is still the given one.
// Idempotent: a displaced or already-removed connection is a no-op.
func (h *Hub) Unregister(ctx context.Context, userID string, c Conn) {
	h.mu.Lock()
	if h.conns[userID] == c {
		delete(h.conns, userID)
	}
	n := len(h.conns)
	h.mu.Unlock()

	metrics.UpdateLiveConnections(n)
}

// Send delivers a message to one user. Failures are swallowed: the offending
// connection is removed and counted, other users are unaffected.
func (h *Hub) Send(ctx context.Context, userID string, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error(ctx, "encoding push message",
			logger.String("type", msgType), logger.Error(err))
		return
	}

	h.mu.RLock()
	c := h.conns[userID]
	h.mu.RUnlock()
	if c == nil {
		return
	}

	if !c.Enqueue(data) {
		metrics.RecordSendDrop()
		h.Unregister(ctx, userID, c)
		c.CloseNow()
		h.logger.Warn(ctx, "send buffer full, dropping connection",
			logger.String("user_id", userID))
	}
	metrics.RecordWSMessage(msgType)
}

// Broadcast sends a message to every live connection. A failing recipient is
// dropped without affecting the rest.
func (h *Hub) Broadcast(ctx context.Context, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error(ctx, "encoding broadcast message",
			logger.String("type", msgType), logger.Error(err))
		return
	}

	h.mu.RLock()
	targets := make(map[string]Conn, len(h.conns))
	for id, c := range h.conns {
		targets[id] = c
	}
	h.mu.RUnlock()

	for userID, c := range targets {
		if !c.Enqueue(data) {
			metrics.RecordSendDrop()
			h.Unregister(ctx, userID, c)
			c.CloseNow()
		}
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
