package services

import (
	"context"
	"errors"
	"fmt"

	"ghostrecon/internal/core/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PanicWipeCode must be echoed back to confirm a panic wipe.
const PanicWipeCode = "WIPE-CONFIRM"

// WipeReport counts what a panic wipe removed.
type WipeReport struct {
	Messages      int64 `json:"messages"`
	Conversations int64 `json:"conversations"`
	Contacts      int64 `json:"contacts"`
	Calls         int64 `json:"calls"`
}

func (s *UserService) SecuritySettings(ctx context.Context, userID string) (domain.SecuritySettings, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return domain.SecuritySettings{}, err
	}
	return u.Settings, nil
}

func (s *UserService) UpdateSecuritySettings(ctx context.Context, userID string, settings domain.SecuritySettings) error {
	ctx, span := tracer.Start(ctx, "UserService.UpdateSecuritySettings")
	defer span.End()
	if settings.AutoDeleteDays != nil && *settings.AutoDeleteDays < 0 {
		return fail(span, fmt.Errorf("%w: auto_delete_days must not be negative", domain.ErrInvalidArgument))
	}
	if err := s.stores.Users.UpdateSecuritySettings(ctx, userID, settings); err != nil {
		return fail(span, err)
	}
	return nil
}

// RotateKeys replaces the caller's key hash and returns the new one.
func (s *UserService) RotateKeys(ctx context.Context, userID string) (string, error) {
	ctx, span := tracer.Start(ctx, "UserService.RotateKeys", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	hash, err := newKeyHash()
	if err != nil {
		return "", fail(span, err)
	}
	if err := s.stores.Users.UpdateEncryptionKeyHash(ctx, userID, hash); err != nil {
		return "", fail(span, err)
	}
	s.log.InfoContext(ctx, "user - rotate keys - key hash rotated", "user_id", userID)
	return hash, nil
}

// PanicWipe destroys the caller's messages, created conversations, contacts
// and calls in one transaction. The identity itself survives.
func (s *UserService) PanicWipe(ctx context.Context, userID, confirmCode string) (*WipeReport, error) {
	ctx, span := tracer.Start(ctx, "UserService.PanicWipe", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	if confirmCode != PanicWipeCode {
		return nil, fail(span, domain.ErrInvalidConfirmCode)
	}
	var report WipeReport
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if report.Messages, err = s.stores.Messages.DeleteBySender(ctx, userID); err != nil {
			return fmt.Errorf("wipe messages: %w", err)
		}
		if report.Conversations, err = s.stores.Conversations.DeleteCreatedBy(ctx, userID); err != nil {
			return fmt.Errorf("wipe conversations: %w", err)
		}
		if report.Contacts, err = s.stores.Contacts.DeleteContactsByUser(ctx, userID); err != nil {
			return fmt.Errorf("wipe contacts: %w", err)
		}
		if report.Calls, err = s.stores.Calls.DeleteForUser(ctx, userID); err != nil {
			return fmt.Errorf("wipe calls: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "user - panic wipe - transaction failed", "user_id", userID, "err", err)
		return nil, fail(span, err)
	}
	s.log.WarnContext(ctx, "user - panic wipe - data destroyed", "user_id", userID,
		"messages", report.Messages, "conversations", report.Conversations,
		"contacts", report.Contacts, "calls", report.Calls)
	return &report, nil
}

func (s *UserService) SessionInfo(ctx context.Context, userID string) (*domain.SessionInfo, error) {
	ctx, span := tracer.Start(ctx, "UserService.SessionInfo")
	defer span.End()
	u, err := s.stores.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	convs, err := s.stores.Conversations.CountForUser(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	contacts, err := s.stores.Contacts.CountContacts(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	return &domain.SessionInfo{
		UserID:               u.ID,
		Alias:                u.Alias,
		EncryptionKeyHash:    u.EncryptionKeyHash,
		PublicKey:            u.PublicKey,
		RegistrationType:     u.RegistrationType,
		TrustLevel:           u.TrustLevel,
		KeyRotationAvailable: true,
		ActiveConversations:  convs,
		TotalContacts:        contacts,
	}, nil
}

// PublishPublicKey stores the caller's public key verbatim.
func (s *UserService) PublishPublicKey(ctx context.Context, userID, key string) error {
	ctx, span := tracer.Start(ctx, "UserService.PublishPublicKey")
	defer span.End()
	if key == "" {
		return fail(span, fmt.Errorf("%w: public_key is required", domain.ErrInvalidArgument))
	}
	if err := s.stores.Users.UpdatePublicKey(ctx, userID, key); err != nil {
		return fail(span, err)
	}
	return nil
}

// PublicKey returns the target's identity when it has published a key.
func (s *UserService) PublicKey(ctx context.Context, targetID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.PublicKey")
	defer span.End()
	u, err := s.stores.Users.GetUserByID(ctx, targetID)
	if errors.Is(err, domain.ErrUserNotFound) || (err == nil && u.PublicKey == "") {
		return nil, fail(span, domain.ErrPublicKeyNotFound)
	}
	if err != nil {
		return nil, fail(span, err)
	}
	return u, nil
}

func (s *UserService) RegisterPushToken(ctx context.Context, userID, token string) error {
	ctx, span := tracer.Start(ctx, "UserService.RegisterPushToken")
	defer span.End()
	if token == "" {
		return fail(span, fmt.Errorf("%w: push_token is required", domain.ErrInvalidArgument))
	}
	if err := s.stores.Users.UpdatePushToken(ctx, userID, token); err != nil {
		return fail(span, err)
	}
	return nil
}
