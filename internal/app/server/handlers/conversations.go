package handlers

import (
	"context"
	"net/http"

	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/core/services"
)

type conversationService interface {
	Create(ctx context.Context, userID string, in services.CreateConversationInput) (*domain.Conversation, error)
	List(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	Get(ctx context.Context, userID, convID string) (*domain.Conversation, error)
}

type ConversationHandler struct {
	conversations conversationService
}

func NewConversationHandler(conversations conversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type createConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1,dive,required"`
	Name           *string  `json:"name"`
	IsGroup        bool     `json:"is_group"`
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req createConversationRequest
	if !decode(w, r, &req) {
		return
	}
	conv, err := h.conversations.Create(r.Context(), userID, services.CreateConversationInput{
		ParticipantIDs: req.ParticipantIDs,
		Name:           req.Name,
		IsGroup:        req.IsGroup,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	conv, err := h.conversations.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
