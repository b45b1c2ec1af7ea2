package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	minTrustLevel = 0
	maxTrustLevel = 5
)

type ContactService struct {
	log      *slog.Logger
	users    domain.UserRepository
	contacts domain.ContactRepository
	presence contracts.PresenceReader
	now      func() time.Time
}

func NewContactService(
	log *slog.Logger,
	users domain.UserRepository,
	contacts domain.ContactRepository,
	presence contracts.PresenceReader,
) *ContactService {
	if log == nil {
		log = slog.Default()
	}
	return &ContactService{
		log:      log,
		users:    users,
		contacts: contacts,
		presence: presence,
		now:      time.Now,
	}
}

func validTrust(level int) bool {
	return level >= minTrustLevel && level <= maxTrustLevel
}

func (s *ContactService) Add(ctx context.Context, userID, targetID string, trust int) (*domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "ContactService.Add", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("contact.target", targetID),
	))
	defer span.End()
	if !validTrust(trust) {
		return nil, fail(span, domain.ErrInvalidTrustLevel)
	}
	if targetID == "" || targetID == userID {
		return nil, fail(span, fmt.Errorf("%w: target_user_id must name another user", domain.ErrInvalidArgument))
	}
	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, fail(span, err)
	}
	exists, err := s.contacts.ContactExists(ctx, userID, targetID)
	if err != nil {
		return nil, fail(span, err)
	}
	if exists {
		return nil, fail(span, domain.ErrContactExists)
	}
	c := &domain.Contact{
		ID:           uuid.NewString(),
		UserID:       userID,
		ContactID:    targetID,
		ContactAlias: target.Alias,
		TrustLevel:   trust,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.contacts.CreateContact(ctx, c); err != nil {
		return nil, fail(span, err)
	}
	s.log.InfoContext(ctx, "contact - add - contact created", "user_id", userID, "contact_id", targetID)
	return c, nil
}

// List returns the caller's contacts. Online state comes from the presence
// mirror when it answers, otherwise from the durable user record.
func (s *ContactService) List(ctx context.Context, userID string) ([]domain.Contact, error) {
	ctx, span := tracer.Start(ctx, "ContactService.List")
	defer span.End()
	list, err := s.contacts.ListContacts(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	if list == nil {
		return []domain.Contact{}, nil
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ContactID)
	}
	live := overlayPresence(ctx, s.log, s.presence, ids)
	for i := range list {
		p, ok := live[list[i].ContactID]
		if !ok || list[i].Info == nil {
			continue
		}
		list[i].Info.IsOnline = p.Online
		if !p.LastSeen.IsZero() {
			ts := p.LastSeen
			list[i].Info.LastSeen = &ts
		}
	}
	return list, nil
}

func (s *ContactService) UpdateTrust(ctx context.Context, userID, contactID string, trust int) error {
	ctx, span := tracer.Start(ctx, "ContactService.UpdateTrust")
	defer span.End()
	if !validTrust(trust) {
		return fail(span, domain.ErrInvalidTrustLevel)
	}
	if err := s.contacts.UpdateTrust(ctx, contactID, userID, trust); err != nil {
		return fail(span, err)
	}
	return nil
}

func (s *ContactService) Delete(ctx context.Context, userID, contactID string) error {
	ctx, span := tracer.Start(ctx, "ContactService.Delete")
	defer span.End()
	if err := s.contacts.DeleteContact(ctx, contactID, userID); err != nil {
		return fail(span, err)
	}
	return nil
}

// overlayPresence reads the mirror; a failing or absent mirror yields an
// empty map and the caller keeps the durable values.
func overlayPresence(
	ctx context.Context,
	log *slog.Logger,
	reader contracts.PresenceReader,
	ids []string,
) map[string]domain.Presence {
	if reader == nil || len(ids) == 0 {
		return nil
	}
	live, err := reader.Presence(ctx, ids)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.WarnContext(ctx, "presence - overlay - mirror read failed", "err", err)
		}
		return nil
	}
	return live
}
