package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ghostrecon/internal/app/gate"
	"ghostrecon/internal/app/protocol"
	"ghostrecon/internal/app/registry"
	"ghostrecon/internal/app/router"
	"ghostrecon/internal/app/server/handlers"
	"ghostrecon/internal/app/server/ws"
	"ghostrecon/internal/config"
	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/core/services"
	"ghostrecon/internal/platform/metrics"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type oneConversation map[string][]string

func (c oneConversation) ConversationMembers(_ context.Context, id string) ([]string, error) {
	m, ok := c[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return m, nil
}

type harness struct {
	srv      *httptest.Server
	tokens   *services.TokenService
	registry *registry.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Service: &config.ServiceConfig{Name: "ghostrecon-test", Version: "4.0.0", Add: ":0"},
		HTTP:    &config.HTTPConfig{AllowedOrigins: []string{"*"}},
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tokens := services.NewTokenService("secret", "ghostrecon", time.Hour)
	conns := registry.NewRegistry(nil, nil, m)
	rt := router.NewRouter(nil, conns, oneConversation{"c1": {"alice", "bob"}}, m)
	sessions := protocol.NewHandler(nil, conns, rt, m)

	h := Handlers{
		Auth:          handlers.NewAuthHandler(nil),
		Security:      handlers.NewSecurityHandler(nil),
		Contacts:      handlers.NewContactHandler(nil),
		Conversations: handlers.NewConversationHandler(nil),
		Messages:      handlers.NewMessageHandler(nil),
		Calls:         handlers.NewCallHandler(nil),
		Groups:        handlers.NewGroupHandler(nil),
		WebRTC:        handlers.NewWebRTCHandler([]string{"stun:a", "stun:b"}, 10),
		WS: handlers.NewWSHandler(ctx, gate.NewGate(nil, tokens, m), conns, sessions,
			ws.Options{WriteTimeout: time.Second}, []string{"*"}),
	}
	s := NewServer(nil, cfg, h, tokens, reg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &harness{srv: ts, tokens: tokens, registry: conns}
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	raw, err := h.tokens.GenerateToken(userID, "")
	require.NoError(t, err)
	return raw
}

func (h *harness) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + path
	c, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHealthAndRoot(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/api/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, err = http.Get(h.srv.URL + "/api/")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"operational","app":"GhostRecon","version":"4.0.0"}`, string(body))
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.srv.URL + "/api/webrtc/config")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/api/webrtc/config", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, "alice"))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg struct {
		ICEServers []struct {
			URLs string `json:"urls"`
		} `json:"iceServers"`
		PoolSize int `json:"iceCandidatePoolSize"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, 10, cfg.PoolSize)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "/api/ws/not-a-token")

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, gate.CloseCodeRejected, ce.Code)
	users, _ := h.registry.Stats()
	assert.Equal(t, 0, users)
}

func TestWebsocketPingAndTyping(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, "/api/ws/"+h.token(t, "alice"))
	bob := h.dial(t, "/api/ws?token="+h.token(t, "bob"))

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, map[string]any{"type": "pong"}, readEvent(t, alice))

	require.Eventually(t, func() bool { return h.registry.IsOnline("bob") }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","conversation_id":"c1"}`)))
	assert.Equal(t, map[string]any{"type": "typing", "user_id": "alice", "conversation_id": "c1"}, readEvent(t, bob))
}

func TestWebsocketDisconnectRemovesConnection(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "/api/ws/"+h.token(t, "alice"))
	require.Eventually(t, func() bool { return h.registry.IsOnline("alice") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return !h.registry.IsOnline("alice") }, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.dial(t, "/api/ws/bad")

	assert.Eventually(t, func() bool {
		resp, err := http.Get(h.srv.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), "ghostrecon_sessions_rejected_total 1")
	}, 2*time.Second, 20*time.Millisecond)
}
