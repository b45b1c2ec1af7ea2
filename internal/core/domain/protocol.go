package domain

import (
	"encoding/json"
	"fmt"
)

// Inbound frame types (client -> server).
const (
	FramePing   = "ping"
	FrameTyping = "typing"
)

// Outbound event types (server -> client).
const (
	TypePong            = "pong"
	TypeTyping          = "typing"
	TypeNewMessage      = "new_message"
	TypeMessageRecalled = "message_recalled"
	TypeIncomingCall    = "incoming_call"
	TypeCallSignal      = "call_signal"
	TypeCallAccepted    = "call_accepted"
	TypeCallRejected    = "call_rejected"
	TypeCallEnded       = "call_ended"
	TypeGroupKey        = "group_key"
)

// Event is a server -> client payload. The set of implementations is closed:
// only the types in this file satisfy it, and EncodeEvent handles every one.
type Event interface {
	EventType() string
	sealed()
}

type PongEvent struct{}

type TypingEvent struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

type NewMessageEvent struct {
	Message Message `json:"message"`
}

type MessageRecalledEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type IncomingCallEvent struct {
	Call Call `json:"call"`
}

type CallSignalEvent struct {
	CallID     string `json:"call_id"`
	SignalType string `json:"signal_type"`
	SignalData string `json:"signal_data"`
	FromUserID string `json:"from_user_id"`
}

type CallAcceptedEvent struct {
	CallID     string `json:"call_id"`
	AcceptedBy string `json:"accepted_by"`
}

type CallRejectedEvent struct {
	CallID string `json:"call_id"`
}

type CallEndedEvent struct {
	CallID          string `json:"call_id"`
	EndedBy         string `json:"ended_by"`
	DurationSeconds int    `json:"duration_seconds"`
}

type GroupKeyEvent struct {
	ConversationID string `json:"conversation_id"`
	DistributedBy  string `json:"distributed_by"`
	RotationCount  int    `json:"rotation_count"`
}

func (PongEvent) EventType() string            { return TypePong }
func (TypingEvent) EventType() string          { return TypeTyping }
func (NewMessageEvent) EventType() string      { return TypeNewMessage }
func (MessageRecalledEvent) EventType() string { return TypeMessageRecalled }
func (IncomingCallEvent) EventType() string    { return TypeIncomingCall }
func (CallSignalEvent) EventType() string      { return TypeCallSignal }
func (CallAcceptedEvent) EventType() string    { return TypeCallAccepted }
func (CallRejectedEvent) EventType() string    { return TypeCallRejected }
func (CallEndedEvent) EventType() string       { return TypeCallEnded }
func (GroupKeyEvent) EventType() string        { return TypeGroupKey }

func (PongEvent) sealed()            {}
func (TypingEvent) sealed()          {}
func (NewMessageEvent) sealed()      {}
func (MessageRecalledEvent) sealed() {}
func (IncomingCallEvent) sealed()    {}
func (CallSignalEvent) sealed()      {}
func (CallAcceptedEvent) sealed()    {}
func (CallRejectedEvent) sealed()    {}
func (CallEndedEvent) sealed()       {}
func (GroupKeyEvent) sealed()        {}

// EncodeEvent serializes an event with its "type" discriminator.
func EncodeEvent(e Event) ([]byte, error) {
	switch ev := e.(type) {
	case PongEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{TypePong})
	case TypingEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			TypingEvent
		}{TypeTyping, ev})
	case NewMessageEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			NewMessageEvent
		}{TypeNewMessage, ev})
	case MessageRecalledEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			MessageRecalledEvent
		}{TypeMessageRecalled, ev})
	case IncomingCallEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			IncomingCallEvent
		}{TypeIncomingCall, ev})
	case CallSignalEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			CallSignalEvent
		}{TypeCallSignal, ev})
	case CallAcceptedEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			CallAcceptedEvent
		}{TypeCallAccepted, ev})
	case CallRejectedEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			CallRejectedEvent
		}{TypeCallRejected, ev})
	case CallEndedEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			CallEndedEvent
		}{TypeCallEnded, ev})
	case GroupKeyEvent:
		return json.Marshal(struct {
			Type string `json:"type"`
			GroupKeyEvent
		}{TypeGroupKey, ev})
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, e)
}

// InboundFrame is a decoded client -> server frame. Unknown fields are ignored.
type InboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// DecodeFrame parses one text frame. A frame must be a JSON object with a
// non-empty "type"; null, arrays and typeless objects are malformed.
func DecodeFrame(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return InboundFrame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, nil
}
