package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ghostrecon/internal/app/registry"
	"ghostrecon/internal/app/router"
	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConn feeds scripted inbound frames and records outbound ones.
type pipeConn struct {
	id      string
	in      chan []byte
	mu      sync.Mutex
	out     [][]byte
	closed  bool
	closeCh chan struct{}
	once    sync.Once
}

func newPipeConn(id string) *pipeConn {
	return &pipeConn{id: id, in: make(chan []byte, 16), closeCh: make(chan struct{})}
}

func (c *pipeConn) ID() string { return c.id }

func (c *pipeConn) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.out = append(c.out, data)
	return nil
}

func (c *pipeConn) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.closeCh)
	})
}

func (c *pipeConn) ReadMessage() ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-c.closeCh:
		return nil, io.ErrClosedPipe
	}
}

func (c *pipeConn) sent() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.out {
		var m map[string]any
		_ = json.Unmarshal(f, &m)
		out = append(out, m)
	}
	return out
}

type members map[string][]string

func (m members) ConversationMembers(_ context.Context, id string) ([]string, error) {
	if ids, ok := m[id]; ok {
		return ids, nil
	}
	return nil, domain.ErrConversationNotFound
}

type panicNotifier struct{}

func (panicNotifier) SendToUser(context.Context, string, domain.Event) {}
func (panicNotifier) BroadcastToConversation(context.Context, string, domain.Event, string) {
	panic("boom")
}

func fixture(m members) (*Handler, *registry.Registry) {
	reg := registry.NewRegistry(nil, nil, nil)
	r := router.NewRouter(nil, reg, m, nil)
	return NewHandler(nil, reg, r, nil), reg
}

func serveAsync(h *Handler, ctx context.Context, userID string, c *pipeConn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Serve(ctx, userID, c)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestPingRepliesPongOnSameConnectionOnly(t *testing.T) {
	h, reg := fixture(members{})
	a, b := newPipeConn("a"), newPipeConn("b")
	reg.Admit("x", a)
	reg.Admit("x", b)

	a.in <- []byte(`{"type":"ping"}`)
	close(a.in)
	waitDone(t, serveAsync(h, context.Background(), "x", a))

	assert.Equal(t, []map[string]any{{"type": "pong"}}, a.sent())
	assert.Empty(t, b.sent())
}

func TestTypingBroadcastsToOtherMembers(t *testing.T) {
	h, reg := fixture(members{"c": {"x", "y"}})
	x1, x2, y := newPipeConn("x1"), newPipeConn("x2"), newPipeConn("y")
	reg.Admit("x", x1)
	reg.Admit("x", x2)
	reg.Admit("y", y)

	y.in <- []byte(`{"type":"typing","conversation_id":"c","extra":1}`)
	close(y.in)
	waitDone(t, serveAsync(h, context.Background(), "y", y))

	want := []map[string]any{{"type": "typing", "user_id": "y", "conversation_id": "c"}}
	assert.Equal(t, want, x1.sent())
	assert.Equal(t, want, x2.sent())
	assert.Empty(t, y.sent())
}

func TestUnknownTypesAreIgnored(t *testing.T) {
	h, reg := fixture(members{})
	a := newPipeConn("a")
	reg.Admit("x", a)

	a.in <- []byte(`{"type":"dance"}`)
	a.in <- []byte(`{"type":"typing"}`)
	a.in <- []byte(`{"type":"ping"}`)
	close(a.in)
	waitDone(t, serveAsync(h, context.Background(), "x", a))

	assert.Equal(t, []map[string]any{{"type": "pong"}}, a.sent(), "loop survives ignored frames")
}

func TestMalformedFrameTearsDown(t *testing.T) {
	h, reg := fixture(members{})
	a := newPipeConn("a")
	reg.Admit("x", a)

	a.in <- []byte(`not json`)
	a.in <- []byte(`{"type":"ping"}`)
	waitDone(t, serveAsync(h, context.Background(), "x", a))

	assert.Empty(t, a.sent())
	assert.False(t, reg.IsOnline("x"))
	assert.True(t, a.closed)
}

func TestNullFrameTearsDown(t *testing.T) {
	h, reg := fixture(members{})
	a := newPipeConn("a")
	reg.Admit("x", a)

	a.in <- []byte(`null`)
	a.in <- []byte(`{"type":"ping"}`)
	waitDone(t, serveAsync(h, context.Background(), "x", a))

	assert.Empty(t, a.sent())
	assert.False(t, reg.IsOnline("x"))
	assert.True(t, a.closed)
}

func TestFramesHandledInOrder(t *testing.T) {
	h, reg := fixture(members{"c": {"x", "y"}})
	x, y := newPipeConn("x"), newPipeConn("y")
	reg.Admit("x", x)
	reg.Admit("y", y)

	y.in <- []byte(`{"type":"ping"}`)
	y.in <- []byte(`{"type":"typing","conversation_id":"c"}`)
	y.in <- []byte(`{"type":"ping"}`)
	close(y.in)
	waitDone(t, serveAsync(h, context.Background(), "y", y))

	assert.Len(t, y.sent(), 2)
	assert.Len(t, x.sent(), 1)
}

func TestContextCancelEndsSession(t *testing.T) {
	h, reg := fixture(members{})
	a := newPipeConn("a")
	reg.Admit("x", a)

	ctx, cancel := context.WithCancel(context.Background())
	done := serveAsync(h, ctx, "x", a)
	cancel()
	waitDone(t, done)

	assert.False(t, reg.IsOnline("x"))
}

func TestPanicInDispatchStillRemoves(t *testing.T) {
	reg := registry.NewRegistry(nil, nil, nil)
	h := NewHandler(nil, reg, panicNotifier{}, nil)
	a, b := newPipeConn("a"), newPipeConn("b")
	reg.Admit("x", a)
	reg.Admit("x", b)

	a.in <- []byte(`{"type":"typing","conversation_id":"c"}`)
	require.NotPanics(t, func() { h.Serve(context.Background(), "x", a) })

	conns := reg.ConnectionsFor("x")
	require.Len(t, conns, 1)
	assert.Equal(t, contracts.Conn(b), conns[0])
	assert.True(t, a.closed)
}
