package router

import (
	"context"
	"errors"
	"log/slog"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/platform/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("delivery-router")

// Router fans events out to live connections. Delivery is best-effort and
// at-most-once per connection: nothing is queued for offline users.
type Router struct {
	registry contracts.Registry
	members  contracts.MembershipResolver
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewRouter(
	log *slog.Logger,
	registry contracts.Registry,
	members contracts.MembershipResolver,
	m *metrics.Metrics,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		registry: registry,
		members:  members,
		metrics:  m,
		log:      log,
	}
}

func (r *Router) SendToUser(ctx context.Context, userID string, event domain.Event) {
	data, err := domain.EncodeEvent(event)
	if err != nil {
		r.log.ErrorContext(ctx, "router - send to user - encode event failed", "user_id", userID, "err", err)
		return
	}
	r.push(ctx, userID, event.EventType(), data)
}

func (r *Router) push(ctx context.Context, userID, eventType string, data []byte) {
	conns := r.registry.ConnectionsFor(userID)
	if len(conns) == 0 {
		return
	}
	var dead []contracts.Conn
	for _, c := range conns {
		if err := c.Send(ctx, data); err != nil {
			r.log.WarnContext(ctx, "router - push - connection dead", "user_id", userID, "conn_id", c.ID(), "type", eventType, "err", err)
			r.metrics.PushFailed()
			dead = append(dead, c)
			continue
		}
		r.metrics.Delivered(eventType)
	}
	for _, c := range dead {
		r.registry.Remove(userID, c)
		c.Close()
	}
}

func (r *Router) BroadcastToConversation(
	ctx context.Context,
	convID string,
	event domain.Event,
	excludeUserID string,
) {
	if event == nil {
		return
	}
	ctx, span := tracer.Start(ctx, "Router.BroadcastToConversation", trace.WithAttributes(
		attribute.String("conv_id", convID),
		attribute.String("event.type", event.EventType()),
	))
	defer span.End()
	// Membership is resolved on every call so the fan-out reflects the current participants.
	members, err := r.members.ConversationMembers(ctx, convID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			r.log.DebugContext(ctx, "router - broadcast - conversation not found", "conv_id", convID)
		} else {
			span.RecordError(err)
			r.log.ErrorContext(ctx, "router - broadcast - resolve members failed", "conv_id", convID, "err", err)
		}
		return
	}
	data, err := domain.EncodeEvent(event)
	if err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - broadcast - encode event failed", "conv_id", convID, "err", err)
		return
	}
	span.SetAttributes(attribute.Int("members", len(members)))
	for _, uid := range members {
		if uid == excludeUserID {
			continue
		}
		r.push(ctx, uid, event.EventType(), data)
	}
}
