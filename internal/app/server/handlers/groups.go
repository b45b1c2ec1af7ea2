package handlers

import (
	"context"
	"net/http"

	"ghostrecon/internal/core/domain"
)

type groupKeyService interface {
	Distribute(ctx context.Context, userID, convID string, encrypted map[string]string) (int, error)
	Rotate(ctx context.Context, userID, convID string, encrypted map[string]string) (int, error)
	Key(ctx context.Context, userID, convID string) (*domain.GroupKey, error)
}

type GroupHandler struct {
	keys groupKeyService
}

func NewGroupHandler(keys groupKeyService) *GroupHandler {
	return &GroupHandler{keys: keys}
}

type distributeKeyRequest struct {
	ConversationID string            `json:"conversation_id"`
	EncryptedKeys  map[string]string `json:"encrypted_keys" validate:"required"`
}

func (h *GroupHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req distributeKeyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ConversationID == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "conversation_id is required")
		return
	}
	n, err := h.keys.Distribute(r.Context(), userID, req.ConversationID, req.EncryptedKeys)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "distributed", "recipients": n})
}

// Rotate takes the conversation from the path; a body conversation_id is ignored.
func (h *GroupHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req distributeKeyRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.keys.Rotate(r.Context(), userID, r.PathValue("conv_id"), req.EncryptedKeys)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "rotated", "recipients": n})
}

func (h *GroupHandler) Key(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	k, err := h.keys.Key(r.Context(), userID, r.PathValue("conv_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}
