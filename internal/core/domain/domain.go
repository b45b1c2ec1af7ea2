package domain

import (
	"time"
)

type RegistrationType string

const (
	RegistrationAnonymous RegistrationType = "anonymous"
	RegistrationPseudonym RegistrationType = "pseudonym"
)

type CallType string

const (
	CallVoice CallType = "voice"
	CallVideo CallType = "video"
)

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallConnected CallStatus = "connected"
	CallRejected  CallStatus = "rejected"
	CallEnded     CallStatus = "ended"
)

const (
	// Stored in place of the content of a recalled message.
	RecalledContent = "[Message Recalled]"
	// Informational only, the backend never encrypts.
	ConversationProtocol = "AES-256-GCM + X25519"
	CallEncryption       = "SRTP + ZRTP"
)

// SecuritySettings are client-side privacy toggles persisted per user.
type SecuritySettings struct {
	ScreenshotProtection bool `json:"screenshot_protection"`
	ReadReceipts         bool `json:"read_receipts"`
	TypingIndicators     bool `json:"typing_indicators"`
	LinkPreviews         bool `json:"link_previews"`
	AutoDeleteDays       *int `json:"auto_delete_days"`
}

func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{ScreenshotProtection: true}
}

// User is a pseudonymous or anonymous identity.
type User struct {
	ID                string           `json:"id"`
	Alias             string           `json:"alias"`
	RegistrationType  RegistrationType `json:"registration_type"`
	DeviceFingerprint string           `json:"-"`
	Email             string           `json:"email,omitempty"`
	Phone             string           `json:"phone,omitempty"`
	PasswordHash      string           `json:"-"`
	TrustLevel        int              `json:"trust_level"`
	EncryptionKeyHash string           `json:"encryption_key_hash"`
	PublicKey         string           `json:"public_key"`
	PushToken         string           `json:"-"`
	IsOnline          bool             `json:"is_online"`
	LastSeen          *time.Time       `json:"last_seen"`
	Settings          SecuritySettings `json:"security_settings"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Presence is the online state of a user as last mirrored to storage.
type Presence struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceUpdate is one online/offline transition waiting to be persisted.
type PresenceUpdate struct {
	UserID string
	Online bool
	At     time.Time
}

type ContactInfo struct {
	Alias      string     `json:"alias"`
	IsOnline   bool       `json:"is_online"`
	LastSeen   *time.Time `json:"last_seen"`
	TrustLevel int        `json:"trust_level"`
}

type Contact struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	ContactID    string       `json:"contact_id"`
	ContactAlias string       `json:"contact_alias"`
	TrustLevel   int          `json:"trust_level"`
	Verified     bool         `json:"verified"`
	CreatedAt    time.Time    `json:"created_at"`
	Info         *ContactInfo `json:"contact_info,omitempty"`
}

// Conversation is a direct or group chat; Participants is always populated.
type Conversation struct {
	ID                 string    `json:"id"`
	Name               *string   `json:"name"`
	IsGroup            bool      `json:"is_group"`
	Participants       []string  `json:"participants"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	LastMessage        *string   `json:"last_message"`
	LastMessageAt      time.Time `json:"last_message_at"`
	EncryptionProtocol string    `json:"encryption_protocol"`
	KeyRotationCount   int       `json:"key_rotation_count"`
}

type ParticipantInfo struct {
	ID       string `json:"id"`
	Alias    string `json:"alias"`
	IsOnline bool   `json:"is_online"`
}

type ConversationSummary struct {
	Conversation
	ParticipantInfo []ParticipantInfo `json:"participant_info"`
	UnreadCount     int               `json:"unread_count"`
}

// Message content is an opaque, client-encrypted blob.
type Message struct {
	ID                  string     `json:"id"`
	ConversationID      string     `json:"conversation_id"`
	SenderID            string     `json:"sender_id"`
	SenderAlias         string     `json:"sender_alias"`
	Content             string     `json:"content"`
	Encrypted           bool       `json:"encrypted"`
	SelfDestructSeconds *int       `json:"self_destruct_seconds"`
	ForwardProtected    bool       `json:"forward_protected"`
	CreatedAt           time.Time  `json:"created_at"`
	ExpiresAt           *time.Time `json:"expires_at"`
	Read                bool       `json:"read"`
	Recalled            bool       `json:"recalled"`
}

type Call struct {
	ID              string     `json:"id"`
	CallerID        string     `json:"caller_id"`
	CallerAlias     string     `json:"caller_alias"`
	ReceiverID      string     `json:"receiver_id"`
	ReceiverAlias   string     `json:"receiver_alias"`
	CallType        CallType   `json:"call_type"`
	Status          CallStatus `json:"status"`
	Encryption      string     `json:"encryption"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds *int       `json:"duration_seconds"`
}

// Peer returns the other party of the call, or "" when userID is not a party.
func (c *Call) Peer(userID string) string {
	switch userID {
	case c.CallerID:
		return c.ReceiverID
	case c.ReceiverID:
		return c.CallerID
	}
	return ""
}

// GroupKey is one participant's copy of a conversation key, encrypted by the
// distributing client for that participant. Stored verbatim.
type GroupKey struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	EncryptedKey   string    `json:"encrypted_key"`
	DistributedBy  string    `json:"distributed_by"`
	DistributedAt  time.Time `json:"distributed_at"`
	RotationCount  int       `json:"rotation_count"`
}

// SessionInfo summarises the caller's identity and key material.
type SessionInfo struct {
	UserID               string           `json:"user_id"`
	Alias                string           `json:"alias"`
	EncryptionKeyHash    string           `json:"encryption_key_hash"`
	PublicKey            string           `json:"public_key"`
	RegistrationType     RegistrationType `json:"registration_type"`
	TrustLevel           int              `json:"trust_level"`
	KeyRotationAvailable bool             `json:"key_rotation_available"`
	ActiveConversations  int              `json:"active_conversations"`
	TotalContacts        int              `json:"total_contacts"`
}
