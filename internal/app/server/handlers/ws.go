package handlers

import (
	"context"
	"net/http"
	"strings"

	"ghostrecon/internal/app/gate"
	"ghostrecon/internal/app/protocol"
	"ghostrecon/internal/app/server/ws"
	"ghostrecon/internal/core/contracts"
	"ghostrecon/pkg/logging"
	"ghostrecon/pkg/middleware"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type authenticator interface {
	Authenticate(raw string) (string, error)
}

type sessionServer interface {
	Serve(ctx context.Context, userID string, conn protocol.Session)
}

// WSHandler upgrades realtime sessions, gates them and hands admitted
// connections to the protocol handler.
type WSHandler struct {
	gate     authenticator
	registry contracts.Registry
	sessions sessionServer
	upgrader websocket.Upgrader
	opts     ws.Options
	base     context.Context
}

// NewWSHandler serves sessions under base, which outlives any single request
// and is cancelled on shutdown.
func NewWSHandler(
	base context.Context,
	g authenticator,
	registry contracts.Registry,
	sessions sessionServer,
	opts ws.Options,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		gate:     g,
		registry: registry,
		sessions: sessions,
		opts:     opts,
		base:     base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// credential prefers the path segment, then the bearer header, then ?token=.
func credential(r *http.Request) string {
	if t := r.PathValue("token"); t != "" {
		return t
	}
	if t := middleware.BearerToken(r); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarnContext(r.Context(), "ws handler - upgrade - upgrade failed", logging.Err(err))
		return
	}
	socket := ws.NewWebSocket(conn, h.opts)

	userID, err := h.gate.Authenticate(credential(r))
	if err != nil {
		span.SetAttributes(attribute.Bool("ws.rejected", true))
		_ = socket.CloseWithCode(gate.CloseCodeRejected, "unauthorized")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	client := ws.NewClient(log.With(logging.User(userID)), socket)
	h.registry.Admit(userID, client)
	ctx := logging.Enrich(logging.WithContext(h.base, log), logging.User(userID), logging.Conn(client.ID()))
	connLog := logging.FromContext(ctx)
	connLog.InfoContext(r.Context(), "ws handler - admit - connection established")

	// Serve blocks until the connection ends. It owns removal and close.
	h.sessions.Serve(ctx, userID, client)
	connLog.InfoContext(r.Context(), "ws handler - serve - connection ended")
}

