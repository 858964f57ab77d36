package ws

import (
	"context"
	"sync"
	"testing"

	"github.com/planetforge/engine/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeConn records deliveries and can be told to refuse them.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	refuse   bool
	closed   bool
}

func (c *fakeConn) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse {
		return false
	}
	c.messages = append(c.messages, data)
	return true
}

func (c *fakeConn) CloseNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHub_RegisterDisplacesPrevious(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	first := &fakeConn{}
	second := &fakeConn{}

	h.Register(ctx, "user-1", first)
	h.Register(ctx, "user-1", second)

	if !first.isClosed() {
		t.Error("displaced connection was not closed")
	}
	if second.isClosed() {
		t.Error("new connection must stay open")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 connection, got %d", h.Len())
	}

	h.Send(ctx, "user-1", TypePong, nil)
	if first.received() != 0 {
		t.Error("displaced connection received a message")
	}
	if second.received() != 1 {
		t.Errorf("expected 1 message on the live connection, got %d", second.received())
	}
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	c := &fakeConn{}
	h.Register(ctx, "user-1", c)
	h.Unregister(ctx, "user-1", c)
	h.Unregister(ctx, "user-1", c)

	if h.Len() != 0 {
		t.Errorf("expected empty hub, got %d", h.Len())
	}
}

func TestHub_UnregisterSkipsDisplacedConn(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	first := &fakeConn{}
	second := &fakeConn{}
	h.Register(ctx, "user-1", first)
	h.Register(ctx, "user-1", second)

	// The displaced connection's deferred cleanup must not evict its successor.
	h.Unregister(ctx, "user-1", first)

	if h.Len() != 1 {
		t.Fatalf("expected 1 connection, got %d", h.Len())
	}
	h.Send(ctx, "user-1", TypePong, nil)
	if second.received() != 1 {
		t.Errorf("expected 1 message, got %d", second.received())
	}
}

func TestHub_SendToUnknownUserIsNoop(t *testing.T) {
	h := NewHub()
	h.Send(context.Background(), "nobody", TypePong, nil)
}

func TestHub_SendDropsFailingConnection(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	bad := &fakeConn{refuse: true}
	good := &fakeConn{}
	h.Register(ctx, "user-bad", bad)
	h.Register(ctx, "user-good", good)

	h.Send(ctx, "user-bad", TypePong, nil)

	if !bad.isClosed() {
		t.Error("failing connection was not closed")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 connection after drop, got %d", h.Len())
	}

	// Other users are unaffected.
	h.Send(ctx, "user-good", TypePong, nil)
	if good.received() != 1 {
		t.Errorf("expected 1 message, got %d", good.received())
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	conns := make([]*fakeConn, 3)
	for i := range conns {
		conns[i] = &fakeConn{}
		h.Register(ctx, string(rune('a'+i)), conns[i])
	}
	bad := &fakeConn{refuse: true}
	h.Register(ctx, "z", bad)

	h.Broadcast(ctx, TypePong, nil)

	for i, c := range conns {
		if c.received() != 1 {
			t.Errorf("conn %d: expected 1 message, got %d", i, c.received())
		}
	}
	if !bad.isClosed() {
		t.Error("failing recipient was not dropped")
	}
	if h.Len() != 3 {
		t.Errorf("expected 3 connections after broadcast, got %d", h.Len())
	}
}
