package protocol

import (
	"context"
	"log/slog"
	"sync"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/platform/metrics"
)

// Session is an admitted connection that can also be read from. Reads are
// blocking and return an error once the transport is gone.
type Session interface {
	contracts.Conn
	ReadMessage() ([]byte, error)
}

// Handler drives the inbound side of one admitted connection.
type Handler struct {
	registry contracts.Registry
	notifier contracts.Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger

	// stopping is cancelled by Shutdown and tears every session down.
	stopping context.Context
	stopAll  context.CancelFunc
	mu       sync.Mutex
	closing  bool
	active   sync.WaitGroup
}

func NewHandler(
	log *slog.Logger,
	registry contracts.Registry,
	notifier contracts.Notifier,
	m *metrics.Metrics,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	stopping, stopAll := context.WithCancel(context.Background())
	return &Handler{
		registry: registry,
		notifier: notifier,
		metrics:  m,
		log:      log,
		stopping: stopping,
		stopAll:  stopAll,
	}
}

// enter registers a session unless Shutdown has started.
func (h *Handler) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.active.Add(1)
	return true
}

// Shutdown closes every session and waits until each one has been removed
// from the registry, so their offline transitions are already queued when it
// returns. Sessions admitted afterwards are torn down immediately.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.stopAll()

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve reads frames until the connection ends. The caller must have admitted
// conn under userID; Serve removes and closes it on every exit path.
func (h *Handler) Serve(ctx context.Context, userID string, conn Session) {
	log := h.log.With("user_id", userID, "conn_id", conn.ID())
	if !h.enter() {
		h.registry.Remove(userID, conn)
		conn.Close()
		return
	}
	defer h.active.Done()
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "protocol - serve - recovered panic", "panic", r)
		}
		h.registry.Remove(userID, conn)
		conn.Close()
		log.DebugContext(ctx, "protocol - serve - connection closed")
	}()
	// unblocks ReadMessage on shutdown
	stop := context.AfterFunc(ctx, conn.Close)
	defer stop()
	stopOnShutdown := context.AfterFunc(h.stopping, conn.Close)
	defer stopOnShutdown()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			log.DebugContext(ctx, "protocol - serve - read ended", "err", err)
			return
		}
		frame, err := domain.DecodeFrame(data)
		if err != nil {
			h.metrics.FrameIgnored("malformed")
			log.WarnContext(ctx, "protocol - serve - malformed frame", "err", err)
			return
		}
		if !h.dispatch(ctx, log, userID, conn, frame) {
			return
		}
	}
}

func (h *Handler) dispatch(
	ctx context.Context,
	log *slog.Logger,
	userID string,
	conn Session,
	frame domain.InboundFrame,
) bool {
	switch frame.Type {
	case domain.FramePing:
		data, err := domain.EncodeEvent(domain.PongEvent{})
		if err != nil {
			log.ErrorContext(ctx, "protocol - ping - encode pong failed", "err", err)
			return true
		}
		if err := conn.Send(ctx, data); err != nil {
			log.DebugContext(ctx, "protocol - ping - send pong failed", "err", err)
			return false
		}
		h.metrics.Delivered(domain.TypePong)
	case domain.FrameTyping:
		if frame.ConversationID == "" {
			h.metrics.FrameIgnored("missing_conversation")
			return true
		}
		h.notifier.BroadcastToConversation(ctx, frame.ConversationID, domain.TypingEvent{
			UserID:         userID,
			ConversationID: frame.ConversationID,
		}, userID)
	default:
		h.metrics.FrameIgnored("unknown_type")
		log.DebugContext(ctx, "protocol - dispatch - ignored frame", "type", frame.Type)
	}
	return true
}
