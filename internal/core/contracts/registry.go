package contracts

import (
	"context"

	"ghostrecon/internal/core/domain"
)

// Conn is one live delivery channel owned by the registry while open.
type Conn interface {
	ID() string
	// Send pushes one encoded event. A non-nil error means the connection is dead.
	Send(ctx context.Context, data []byte) error
	Close()
}

// Registry tracks, per user, the set of live connections.
type Registry interface {
	// Admit adds conn under userID; the first connection flips the user online.
	Admit(userID string, conn Conn)
	// Remove drops conn; the last removal flips the user offline. Never fails.
	Remove(userID string, conn Conn)
	// ConnectionsFor returns a snapshot of the user's live connections.
	ConnectionsFor(userID string) []Conn
}

// Notifier pushes events to live participants. Delivery is best-effort.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, event domain.Event)
	BroadcastToConversation(ctx context.Context, convID string, event domain.Event, excludeUserID string)
}
