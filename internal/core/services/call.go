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

const callHistoryLimit = 100

type SignalInput struct {
	CallID     string
	SignalType string
	SignalData string
}

type CallService struct {
	log      *slog.Logger
	users    domain.UserRepository
	calls    domain.CallRepository
	notifier contracts.Notifier
	now      func() time.Time
}

func NewCallService(
	log *slog.Logger,
	users domain.UserRepository,
	calls domain.CallRepository,
	notifier contracts.Notifier,
) *CallService {
	if log == nil {
		log = slog.Default()
	}
	return &CallService{
		log:      log,
		users:    users,
		calls:    calls,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *CallService) Initiate(ctx context.Context, userID, targetID string, callType domain.CallType) (*domain.Call, error) {
	ctx, span := tracer.Start(ctx, "CallService.Initiate", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("call.type", string(callType)),
	))
	defer span.End()
	if callType != domain.CallVoice && callType != domain.CallVideo {
		return nil, fail(span, domain.ErrInvalidCallType)
	}
	if targetID == "" || targetID == userID {
		return nil, fail(span, fmt.Errorf("%w: target_user_id must name another user", domain.ErrInvalidArgument))
	}
	caller, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	receiver, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, fail(span, err)
	}
	call := &domain.Call{
		ID:            uuid.NewString(),
		CallerID:      caller.ID,
		CallerAlias:   caller.Alias,
		ReceiverID:    receiver.ID,
		ReceiverAlias: receiver.Alias,
		CallType:      callType,
		Status:        domain.CallInitiated,
		Encryption:    domain.CallEncryption,
		StartedAt:     s.now().UTC(),
	}
	if err := s.calls.CreateCall(ctx, call); err != nil {
		return nil, fail(span, err)
	}
	s.log.InfoContext(ctx, "call - initiate - call created", "call_id", call.ID, "caller", caller.ID, "receiver", receiver.ID)
	s.notifier.SendToUser(ctx, receiver.ID, domain.IncomingCallEvent{Call: *call})
	return call, nil
}

func (s *CallService) History(ctx context.Context, userID string) ([]domain.Call, error) {
	ctx, span := tracer.Start(ctx, "CallService.History")
	defer span.End()
	calls, err := s.calls.ListForUser(ctx, userID, callHistoryLimit)
	if err != nil {
		return nil, fail(span, err)
	}
	if calls == nil {
		calls = []domain.Call{}
	}
	return calls, nil
}

// partyCall loads the call and returns the peer of userID.
func (s *CallService) partyCall(ctx context.Context, callID, userID string) (*domain.Call, string, error) {
	call, err := s.calls.GetCallByID(ctx, callID)
	if err != nil {
		return nil, "", err
	}
	peer := call.Peer(userID)
	if peer == "" {
		return nil, "", domain.ErrNotCallParty
	}
	return call, peer, nil
}

// End closes the call and reports its duration to the other party.
func (s *CallService) End(ctx context.Context, userID, callID string) (int, error) {
	ctx, span := tracer.Start(ctx, "CallService.End", trace.WithAttributes(attribute.String("call.id", callID)))
	defer span.End()
	call, peer, err := s.partyCall(ctx, callID, userID)
	if err != nil {
		return 0, fail(span, err)
	}
	now := s.now().UTC()
	duration := int(now.Sub(call.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	if err := s.calls.EndCall(ctx, call.ID, now, duration); err != nil {
		return 0, fail(span, err)
	}
	s.notifier.SendToUser(ctx, peer, domain.CallEndedEvent{
		CallID:          call.ID,
		EndedBy:         userID,
		DurationSeconds: duration,
	})
	return duration, nil
}

// Signal relays opaque WebRTC signalling data to the other party.
func (s *CallService) Signal(ctx context.Context, userID string, in SignalInput) error {
	ctx, span := tracer.Start(ctx, "CallService.Signal", trace.WithAttributes(
		attribute.String("call.id", in.CallID),
		attribute.String("signal.type", in.SignalType),
	))
	defer span.End()
	_, peer, err := s.partyCall(ctx, in.CallID, userID)
	if err != nil {
		return fail(span, err)
	}
	s.notifier.SendToUser(ctx, peer, domain.CallSignalEvent{
		CallID:     in.CallID,
		SignalType: in.SignalType,
		SignalData: in.SignalData,
		FromUserID: userID,
	})
	return nil
}

func (s *CallService) Accept(ctx context.Context, userID, callID string) error {
	ctx, span := tracer.Start(ctx, "CallService.Accept", trace.WithAttributes(attribute.String("call.id", callID)))
	defer span.End()
	call, err := s.answer(ctx, userID, callID, domain.CallConnected)
	if err != nil {
		return fail(span, err)
	}
	s.notifier.SendToUser(ctx, call.CallerID, domain.CallAcceptedEvent{CallID: call.ID, AcceptedBy: userID})
	return nil
}

func (s *CallService) Reject(ctx context.Context, userID, callID string) error {
	ctx, span := tracer.Start(ctx, "CallService.Reject", trace.WithAttributes(attribute.String("call.id", callID)))
	defer span.End()
	call, err := s.answer(ctx, userID, callID, domain.CallRejected)
	if err != nil {
		return fail(span, err)
	}
	s.notifier.SendToUser(ctx, call.CallerID, domain.CallRejectedEvent{CallID: call.ID})
	return nil
}

// answer is only open to the receiver.
func (s *CallService) answer(ctx context.Context, userID, callID string, status domain.CallStatus) (*domain.Call, error) {
	call, err := s.calls.GetCallByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.ReceiverID != userID {
		return nil, domain.ErrCallNotFound
	}
	if err := s.calls.UpdateStatus(ctx, call.ID, status); err != nil {
		return nil, err
	}
	return call, nil
}
