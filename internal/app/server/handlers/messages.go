package handlers

import (
	"context"
	"net/http"

	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/core/services"
)

type messageService interface {
	Send(ctx context.Context, userID string, in services.SendMessageInput) (*domain.Message, error)
	List(ctx context.Context, userID, convID string) ([]domain.Message, error)
	Recall(ctx context.Context, userID, messageID string) error
}

type MessageHandler struct {
	messages messageService
}

func NewMessageHandler(messages messageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type sendMessageRequest struct {
	ConversationID      string `json:"conversation_id" validate:"required"`
	Content             string `json:"content" validate:"required"`
	SelfDestructSeconds *int   `json:"self_destruct_seconds" validate:"omitempty,min=0"`
	ForwardProtected    bool   `json:"forward_protected"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.messages.Send(r.Context(), userID, services.SendMessageInput{
		ConversationID:      req.ConversationID,
		Content:             req.Content,
		SelfDestructSeconds: req.SelfDestructSeconds,
		ForwardProtected:    req.ForwardProtected,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	msgs, err := h.messages.List(r.Context(), userID, r.PathValue("conv_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) Recall(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.messages.Recall(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recalled"})
}
