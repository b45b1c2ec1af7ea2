package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const conversationListLimit = 100

type CreateConversationInput struct {
	ParticipantIDs []string
	Name           *string
	IsGroup        bool
}

type ConversationService struct {
	log           *slog.Logger
	users         domain.UserRepository
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	presence      contracts.PresenceReader
	tx            domain.TxManager
	now           func() time.Time
}

func NewConversationService(
	log *slog.Logger,
	users domain.UserRepository,
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	presence contracts.PresenceReader,
	tx domain.TxManager,
) *ConversationService {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationService{
		log:           log,
		users:         users,
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		tx:            tx,
		now:           time.Now,
	}
}

// Create opens a conversation between the caller and the given users. A
// direct conversation that already exists between the same two users is
// returned instead of a new one.
func (s *ConversationService) Create(ctx context.Context, userID string, in CreateConversationInput) (*domain.Conversation, error) {
	ctx, span := tracer.Start(ctx, "ConversationService.Create", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Bool("conversation.group", in.IsGroup),
	))
	defer span.End()

	participants := []string{userID}
	seen := map[string]struct{}{userID: {}}
	for _, id := range in.ParticipantIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return nil, fail(span, fmt.Errorf("%w: at least one other participant is required", domain.ErrInvalidArgument))
	}

	var conv *domain.Conversation
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if !in.IsGroup && len(participants) == 2 {
			existing, err := s.conversations.FindDirect(ctx, participants[0], participants[1])
			if err == nil {
				conv = existing
				return nil
			}
			if !errors.Is(err, domain.ErrConversationNotFound) {
				return err
			}
		}
		for _, id := range participants[1:] {
			if _, err := s.users.GetUserByID(ctx, id); err != nil {
				return err
			}
		}
		now := s.now().UTC()
		conv = &domain.Conversation{
			ID:                 uuid.NewString(),
			Name:               in.Name,
			IsGroup:            in.IsGroup,
			Participants:       participants,
			CreatedBy:          userID,
			CreatedAt:          now,
			LastMessageAt:      now,
			EncryptionProtocol: domain.ConversationProtocol,
		}
		return s.conversations.CreateConversation(ctx, conv)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "conversation - create - failed", "user_id", userID, "err", err)
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))
	return conv, nil
}

// List returns the caller's conversations, most recent activity first, with
// the other participants' identities and the caller's unread count.
func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	ctx, span := tracer.Start(ctx, "ConversationService.List")
	defer span.End()
	convs, err := s.conversations.ListForUser(ctx, userID, conversationListLimit)
	if err != nil {
		return nil, fail(span, err)
	}

	others := make(map[string]*domain.User)
	var ids []string
	for _, c := range convs {
		for _, p := range c.Participants {
			if p == userID {
				continue
			}
			if _, ok := others[p]; ok {
				continue
			}
			u, err := s.users.GetUserByID(ctx, p)
			if err != nil {
				if !errors.Is(err, domain.ErrUserNotFound) {
					return nil, fail(span, err)
				}
				u = nil
			}
			others[p] = u
			if u != nil {
				ids = append(ids, p)
			}
		}
	}
	live := overlayPresence(ctx, s.log, s.presence, ids)

	out := make([]domain.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary := domain.ConversationSummary{Conversation: c, ParticipantInfo: []domain.ParticipantInfo{}}
		for _, p := range c.Participants {
			u := others[p]
			if u == nil {
				continue
			}
			online := u.IsOnline
			if l, ok := live[p]; ok {
				online = l.Online
			}
			summary.ParticipantInfo = append(summary.ParticipantInfo, domain.ParticipantInfo{
				ID: u.ID, Alias: u.Alias, IsOnline: online,
			})
		}
		unread, err := s.messages.CountUnread(ctx, c.ID, userID)
		if err != nil {
			return nil, fail(span, err)
		}
		summary.UnreadCount = unread
		out = append(out, summary)
	}
	return out, nil
}

func (s *ConversationService) Get(ctx context.Context, userID, convID string) (*domain.Conversation, error) {
	ctx, span := tracer.Start(ctx, "ConversationService.Get", trace.WithAttributes(attribute.String("conversation.id", convID)))
	defer span.End()
	conv, err := s.conversations.GetConversationByID(ctx, convID)
	if err != nil {
		return nil, fail(span, err)
	}
	// Non-members get the same answer as for a missing conversation.
	if !slices.Contains(conv.Participants, userID) {
		return nil, fail(span, domain.ErrConversationNotFound)
	}
	return conv, nil
}
