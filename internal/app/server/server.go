package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ghostrecon/internal/app/server/handlers"
	"ghostrecon/internal/config"
	"ghostrecon/internal/core/contracts"
	"ghostrecon/pkg/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles every HTTP surface the server routes to.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Security      *handlers.SecurityHandler
	Contacts      *handlers.ContactHandler
	Conversations *handlers.ConversationHandler
	Messages      *handlers.MessageHandler
	Calls         *handlers.CallHandler
	Groups        *handlers.GroupHandler
	WebRTC        *handlers.WebRTCHandler
	WS            *handlers.WSHandler
}

type Server struct {
	log      *slog.Logger
	cfg      *config.Config
	mux      *http.ServeMux
	h        Handlers
	verifier contracts.CredentialVerifier
	gatherer prometheus.Gatherer
	srv      *http.Server
}

func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	h Handlers,
	verifier contracts.CredentialVerifier,
	gatherer prometheus.Gatherer,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:      log,
		cfg:      cfg,
		mux:      http.NewServeMux(),
		h:        h,
		verifier: verifier,
		gatherer: gatherer,
	}
	s.routes()
	s.srv = &http.Server{
		Addr:              cfg.Service.Add,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = middleware.CORS(s.cfg.HTTP.AllowedOrigins)(h)
	h = middleware.RequestLogger(s.log)(h)
	h = middleware.TracerMiddleware(s.cfg.Service.Name)(h)
	return h
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.verifier)
	protect := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	s.mux.HandleFunc("GET /api/{$}", s.root)
	s.mux.HandleFunc("GET /api/health", health)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("POST /api/auth/register/anonymous", s.h.Auth.RegisterAnonymous)
	s.mux.HandleFunc("POST /api/auth/register/pseudonym", s.h.Auth.RegisterPseudonym)
	s.mux.HandleFunc("POST /api/auth/login", s.h.Auth.Login)
	s.mux.Handle("GET /api/auth/me", protect(s.h.Auth.Me))
	s.mux.Handle("GET /api/users/search", protect(s.h.Auth.Search))

	s.mux.Handle("GET /api/security/settings", protect(s.h.Security.Settings))
	s.mux.Handle("PUT /api/security/settings", protect(s.h.Security.UpdateSettings))
	s.mux.Handle("POST /api/security/rotate-keys", protect(s.h.Security.RotateKeys))
	s.mux.Handle("POST /api/security/panic-wipe", protect(s.h.Security.PanicWipe))
	s.mux.Handle("GET /api/security/session-info", protect(s.h.Security.SessionInfo))
	s.mux.Handle("POST /api/keys/publish", protect(s.h.Security.PublishKey))
	s.mux.Handle("GET /api/keys/{user_id}", protect(s.h.Security.PublicKey))
	s.mux.Handle("POST /api/notifications/register", protect(s.h.Security.RegisterPushToken))
	s.mux.Handle("GET /api/webrtc/config", protect(s.h.WebRTC.Config))

	s.mux.Handle("POST /api/contacts", protect(s.h.Contacts.Add))
	s.mux.Handle("GET /api/contacts", protect(s.h.Contacts.List))
	s.mux.Handle("PUT /api/contacts/{id}/trust", protect(s.h.Contacts.UpdateTrust))
	s.mux.Handle("DELETE /api/contacts/{id}", protect(s.h.Contacts.Delete))

	s.mux.Handle("POST /api/conversations", protect(s.h.Conversations.Create))
	s.mux.Handle("GET /api/conversations", protect(s.h.Conversations.List))
	s.mux.Handle("GET /api/conversations/{id}", protect(s.h.Conversations.Get))

	s.mux.Handle("POST /api/messages", protect(s.h.Messages.Send))
	s.mux.Handle("GET /api/messages/{conv_id}", protect(s.h.Messages.List))
	s.mux.Handle("DELETE /api/messages/{id}", protect(s.h.Messages.Recall))

	s.mux.Handle("POST /api/calls", protect(s.h.Calls.Initiate))
	s.mux.Handle("GET /api/calls", protect(s.h.Calls.History))
	s.mux.Handle("POST /api/calls/signal", protect(s.h.Calls.Signal))
	s.mux.Handle("PUT /api/calls/{id}/end", protect(s.h.Calls.End))
	s.mux.Handle("PUT /api/calls/{id}/accept", protect(s.h.Calls.Accept))
	s.mux.Handle("PUT /api/calls/{id}/reject", protect(s.h.Calls.Reject))

	s.mux.Handle("POST /api/groups/distribute-key", protect(s.h.Groups.Distribute))
	s.mux.Handle("POST /api/groups/{conv_id}/rotate-key", protect(s.h.Groups.Rotate))
	s.mux.Handle("GET /api/groups/{conv_id}/key", protect(s.h.Groups.Key))

	// The session gate authenticates websocket upgrades itself so a bad
	// credential gets a close frame rather than an HTTP 401.
	s.mux.HandleFunc("GET /api/ws/{token}", s.h.WS.Handler)
	s.mux.HandleFunc("GET /api/ws", s.h.WS.Handler)
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "operational",
		"app":     "GhostRecon",
		"version": s.cfg.Service.Version,
	})
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server - start - listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.log.Info("server - shutdown - draining connections")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
