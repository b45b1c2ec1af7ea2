package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GroupKeyService stores per-participant copies of a conversation key. The
// blobs are encrypted client side and never inspected here.
type GroupKeyService struct {
	log           *slog.Logger
	conversations domain.ConversationRepository
	keys          domain.GroupKeyRepository
	notifier      contracts.Notifier
	tx            domain.TxManager
	now           func() time.Time
}

func NewGroupKeyService(
	log *slog.Logger,
	conversations domain.ConversationRepository,
	keys domain.GroupKeyRepository,
	notifier contracts.Notifier,
	tx domain.TxManager,
) *GroupKeyService {
	if log == nil {
		log = slog.Default()
	}
	return &GroupKeyService{
		log:           log,
		conversations: conversations,
		keys:          keys,
		notifier:      notifier,
		tx:            tx,
		now:           time.Now,
	}
}

// Distribute stores a fresh key set and resets the rotation counter.
// It returns the number of participants that received a key.
func (s *GroupKeyService) Distribute(ctx context.Context, userID, convID string, encrypted map[string]string) (int, error) {
	return s.store(ctx, "GroupKeyService.Distribute", userID, convID, encrypted, false)
}

// Rotate replaces the key set and bumps both the per-recipient and the
// conversation rotation counters.
func (s *GroupKeyService) Rotate(ctx context.Context, userID, convID string, encrypted map[string]string) (int, error) {
	return s.store(ctx, "GroupKeyService.Rotate", userID, convID, encrypted, true)
}

func (s *GroupKeyService) store(
	ctx context.Context,
	op, userID, convID string,
	encrypted map[string]string,
	rotate bool,
) (int, error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("conversation.id", convID),
	))
	defer span.End()

	conv, err := s.conversations.GetConversationByID(ctx, convID)
	if err != nil {
		return 0, fail(span, err)
	}
	if !slices.Contains(conv.Participants, userID) {
		return 0, fail(span, domain.ErrNotParticipant)
	}

	now := s.now().UTC()
	keys := make([]domain.GroupKey, 0, len(encrypted))
	for uid, blob := range encrypted {
		if !slices.Contains(conv.Participants, uid) {
			continue
		}
		keys = append(keys, domain.GroupKey{
			ConversationID: convID,
			UserID:         uid,
			EncryptedKey:   blob,
			DistributedBy:  userID,
			DistributedAt:  now,
		})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].UserID < keys[j].UserID })

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.keys.StoreKeys(ctx, keys, rotate); err != nil {
			return fmt.Errorf("store keys: %w", err)
		}
		if rotate {
			if err := s.conversations.IncrementKeyRotation(ctx, convID); err != nil {
				return fmt.Errorf("increment rotation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "group key - store - transaction failed", "conv_id", convID, "rotate", rotate, "err", err)
		return 0, fail(span, err)
	}

	rotation := 0
	if rotate {
		rotation = conv.KeyRotationCount + 1
	}
	event := domain.GroupKeyEvent{ConversationID: convID, DistributedBy: userID, RotationCount: rotation}
	for _, k := range keys {
		if k.UserID == userID {
			continue
		}
		s.notifier.SendToUser(ctx, k.UserID, event)
	}
	span.SetAttributes(attribute.Int("recipients", len(keys)))
	s.log.InfoContext(ctx, "group key - store - keys distributed", "conv_id", convID, "recipients", len(keys), "rotate", rotate)
	return len(keys), nil
}

// Key returns the caller's copy of the conversation key.
func (s *GroupKeyService) Key(ctx context.Context, userID, convID string) (*domain.GroupKey, error) {
	ctx, span := tracer.Start(ctx, "GroupKeyService.Key", trace.WithAttributes(attribute.String("conversation.id", convID)))
	defer span.End()
	k, err := s.keys.GetKey(ctx, convID, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	return k, nil
}
