package contracts

import "context"

// MembershipResolver returns the current participants of a conversation, or
// domain.ErrConversationNotFound.
type MembershipResolver interface {
	ConversationMembers(ctx context.Context, convID string) ([]string, error)
}
