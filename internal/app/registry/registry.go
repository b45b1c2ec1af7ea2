package registry

import (
	"log/slog"
	"sync"
	"time"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/platform/metrics"
)

// Registry maps user_id -> set of live connections. Connections are used as
// map keys, so implementations must be comparable (pointer types).
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]map[contracts.Conn]struct{}
	presence contracts.PresenceNotifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewRegistry(log *slog.Logger, presence contracts.PresenceNotifier, m *metrics.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		clients:  make(map[string]map[contracts.Conn]struct{}),
		presence: presence,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (h *Registry) Admit(userID string, c contracts.Conn) {
	if userID == "" || c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, exists := h.clients[userID]
	if !exists {
		conns = make(map[contracts.Conn]struct{})
		h.clients[userID] = conns
	}
	if _, dup := conns[c]; dup {
		return
	}
	conns[c] = struct{}{}
	h.metrics.ConnAdmitted(!exists)
	h.log.Debug("registry - admit - connection registered", "user_id", userID, "conn_id", c.ID(), "user_conns", len(conns))
	// Submitted under the lock so per-user transitions reach the notifier in order.
	if !exists && h.presence != nil {
		h.presence.NotifyPresence(userID, true, h.now())
	}
}

func (h *Registry) Remove(userID string, c contracts.Conn) {
	if userID == "" || c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	last := len(conns) == 0
	if last {
		delete(h.clients, userID)
	}
	h.metrics.ConnRemoved(last)
	h.log.Debug("registry - remove - connection unregistered", "user_id", userID, "conn_id", c.ID(), "user_conns", len(conns))
	if last && h.presence != nil {
		h.presence.NotifyPresence(userID, false, h.now())
	}
}

func (h *Registry) ConnectionsFor(userID string) []contracts.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.clients[userID]
	out := make([]contracts.Conn, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (h *Registry) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Stats returns the number of online users and live connections.
func (h *Registry) Stats() (users, conns int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		conns += len(set)
	}
	return len(h.clients), conns
}
