package domain

import (
	"context"
	"time"
)

// TxManager runs fn inside a transaction carried by the context.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository handles the persistent identity
type UserRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*User, error)
	// FindByIdentifier matches email, phone or device fingerprint.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	SearchByAlias(ctx context.Context, query, excludeID string, limit int) ([]User, error)
	// SetPresence is the durable online/last_seen write.
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
	UpdateSecuritySettings(ctx context.Context, id string, s SecuritySettings) error
	UpdateEncryptionKeyHash(ctx context.Context, id, hash string) error
	UpdatePublicKey(ctx context.Context, id, key string) error
	UpdatePushToken(ctx context.Context, id, token string) error
}

type ContactRepository interface {
	CreateContact(ctx context.Context, c *Contact) error
	ContactExists(ctx context.Context, userID, contactID string) (bool, error)
	// ListContacts returns the user's contacts joined with the target identity.
	ListContacts(ctx context.Context, userID string) ([]Contact, error)
	UpdateTrust(ctx context.Context, id, userID string, level int) error
	DeleteContact(ctx context.Context, id, userID string) error
	DeleteContactsByUser(ctx context.Context, userID string) (int64, error)
	CountContacts(ctx context.Context, userID string) (int, error)
}

type ConversationRepository interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversationByID(ctx context.Context, id string) (*Conversation, error)
	// FindDirect returns the non-group conversation between exactly a and b.
	FindDirect(ctx context.Context, a, b string) (*Conversation, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]Conversation, error)
	ConversationMembers(ctx context.Context, id string) ([]string, error)
	IsParticipant(ctx context.Context, id, userID string) (bool, error)
	UpdateLastMessage(ctx context.Context, id, preview string, at time.Time) error
	IncrementKeyRotation(ctx context.Context, id string) error
	DeleteCreatedBy(ctx context.Context, userID string) (int64, error)
	CountForUser(ctx context.Context, userID string) (int, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, m *Message) error
	// ListVisible returns non-recalled messages, oldest first.
	ListVisible(ctx context.Context, convID string, limit int) ([]Message, error)
	// DeleteExpired removes messages whose expires_at is before now; an empty
	// convID sweeps every conversation.
	DeleteExpired(ctx context.Context, convID string, now time.Time) (int64, error)
	MarkRead(ctx context.Context, convID, readerID string) error
	Recall(ctx context.Context, id, senderID string) (*Message, error)
	CountUnread(ctx context.Context, convID, userID string) (int, error)
	DeleteBySender(ctx context.Context, senderID string) (int64, error)
}

type CallRepository interface {
	CreateCall(ctx context.Context, c *Call) error
	GetCallByID(ctx context.Context, id string) (*Call, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]Call, error)
	UpdateStatus(ctx context.Context, id string, status CallStatus) error
	EndCall(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}

type GroupKeyRepository interface {
	// StoreKeys upserts one row per recipient. With rotate set the existing
	// rotation counter is incremented, otherwise it is reset to zero.
	StoreKeys(ctx context.Context, keys []GroupKey, rotate bool) error
	GetKey(ctx context.Context, convID, userID string) (*GroupKey, error)
}
