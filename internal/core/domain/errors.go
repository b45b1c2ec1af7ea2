package domain

import "errors"

var (
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrPhoneTaken            = errors.New("phone already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPublicKeyNotFound     = errors.New("public key not found")
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrNotParticipant        = errors.New("not a conversation participant")
	ErrContactNotFound       = errors.New("contact not found")
	ErrContactExists         = errors.New("contact already exists")
	ErrInvalidTrustLevel     = errors.New("trust level must be 0-5")
	ErrMessageNotFound       = errors.New("message not found or not yours")
	ErrCallNotFound          = errors.New("call not found")
	ErrNotCallParty          = errors.New("not a party of this call")
	ErrInvalidCallType       = errors.New("call type must be voice or video")
	ErrGroupKeyNotFound      = errors.New("no group key distributed for this conversation")
	ErrInvalidConfirmCode    = errors.New("invalid confirmation code")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrUnknownEvent          = errors.New("unknown event type")
	ErrMalformedFrame        = errors.New("malformed frame")
)
