package services

import (
	"context"
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
	messageListLimit = 500
	previewRunes     = 50
)

type SendMessageInput struct {
	ConversationID      string
	Content             string
	SelfDestructSeconds *int
	ForwardProtected    bool
}

type MessageService struct {
	log           *slog.Logger
	users         domain.UserRepository
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	notifier      contracts.Notifier
	tx            domain.TxManager
	now           func() time.Time
}

func NewMessageService(
	log *slog.Logger,
	users domain.UserRepository,
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	notifier contracts.Notifier,
	tx domain.TxManager,
) *MessageService {
	if log == nil {
		log = slog.Default()
	}
	return &MessageService{
		log:           log,
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		tx:            tx,
		now:           time.Now,
	}
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewRunes {
		return content
	}
	return string(r[:previewRunes])
}

func requireParticipant(ctx context.Context, convs domain.ConversationRepository, convID, userID string) error {
	ok, err := convs.IsParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotParticipant
	}
	return nil
}

// Send stores the message and pushes it to the other live participants once
// the write has committed.
func (s *MessageService) Send(ctx context.Context, userID string, in SendMessageInput) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Send", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("conversation.id", in.ConversationID),
	))
	defer span.End()

	if in.SelfDestructSeconds != nil && *in.SelfDestructSeconds < 0 {
		return nil, fail(span, fmt.Errorf("%w: self_destruct_seconds must not be negative", domain.ErrInvalidArgument))
	}
	if err := requireParticipant(ctx, s.conversations, in.ConversationID, userID); err != nil {
		return nil, fail(span, err)
	}
	sender, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}

	now := s.now().UTC()
	msg := &domain.Message{
		ID:               uuid.NewString(),
		ConversationID:   in.ConversationID,
		SenderID:         userID,
		SenderAlias:      sender.Alias,
		Content:          in.Content,
		Encrypted:        true,
		ForwardProtected: in.ForwardProtected,
		CreatedAt:        now,
	}
	if in.SelfDestructSeconds != nil && *in.SelfDestructSeconds > 0 {
		secs := *in.SelfDestructSeconds
		exp := now.Add(time.Duration(secs) * time.Second)
		msg.SelfDestructSeconds = &secs
		msg.ExpiresAt = &exp
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.messages.CreateMessage(ctx, msg); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := s.conversations.UpdateLastMessage(ctx, msg.ConversationID, preview(msg.Content), now); err != nil {
			return fmt.Errorf("update last message: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "message - send - store failed", "conv_id", in.ConversationID, "err", err)
		return nil, fail(span, err)
	}

	s.notifier.BroadcastToConversation(ctx, msg.ConversationID, domain.NewMessageEvent{Message: *msg}, userID)
	return msg, nil
}

// List purges the conversation's expired messages, returns what is left in
// chronological order and marks the other participants' messages as read.
func (s *MessageService) List(ctx context.Context, userID, convID string) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.List", trace.WithAttributes(attribute.String("conversation.id", convID)))
	defer span.End()
	if err := requireParticipant(ctx, s.conversations, convID, userID); err != nil {
		return nil, fail(span, err)
	}
	if n, err := s.messages.DeleteExpired(ctx, convID, s.now().UTC()); err != nil {
		return nil, fail(span, err)
	} else if n > 0 {
		s.log.DebugContext(ctx, "message - list - expired purged", "conv_id", convID, "count", n)
	}
	msgs, err := s.messages.ListVisible(ctx, convID, messageListLimit)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.messages.MarkRead(ctx, convID, userID); err != nil {
		return nil, fail(span, err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// Recall blanks the sender's own message and tells the conversation.
func (s *MessageService) Recall(ctx context.Context, userID, messageID string) error {
	ctx, span := tracer.Start(ctx, "MessageService.Recall", trace.WithAttributes(attribute.String("message.id", messageID)))
	defer span.End()
	msg, err := s.messages.Recall(ctx, messageID, userID)
	if err != nil {
		return fail(span, err)
	}
	s.notifier.BroadcastToConversation(ctx, msg.ConversationID, domain.MessageRecalledEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	}, "")
	return nil
}
