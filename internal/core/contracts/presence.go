package contracts

import (
	"context"
	"time"

	"ghostrecon/internal/core/domain"
)

// PresenceNotifier receives online/offline transitions. Implementations must
// return promptly and must not report failures to the caller.
type PresenceNotifier interface {
	NotifyPresence(userID string, online bool, at time.Time)
}

// PresenceStore persists a presence transition.
type PresenceStore interface {
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// PresenceReader serves the fast presence mirror.
type PresenceReader interface {
	// Presence returns entries only for users found in the mirror.
	Presence(ctx context.Context, userIDs []string) (map[string]domain.Presence, error)
}
