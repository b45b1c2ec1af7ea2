package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghostrecon/internal/core/contracts"
)

// Store writes a transition to the durable user record and to the fast
// mirror. Both writes are always attempted.
type Store struct {
	durable contracts.PresenceStore
	mirror  contracts.PresenceStore
}

func NewStore(durable, mirror contracts.PresenceStore) *Store {
	return &Store{durable: durable, mirror: mirror}
}

func (s *Store) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	var errs []error
	if s.durable != nil {
		if err := s.durable.SetPresence(ctx, userID, online, at); err != nil {
			errs = append(errs, fmt.Errorf("durable presence: %w", err))
		}
	}
	if s.mirror != nil {
		if err := s.mirror.SetPresence(ctx, userID, online, at); err != nil {
			errs = append(errs, fmt.Errorf("presence mirror: %w", err))
		}
	}
	return errors.Join(errs...)
}
