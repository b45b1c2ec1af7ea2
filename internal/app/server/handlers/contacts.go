package handlers

import (
	"context"
	"net/http"
	"strconv"

	"ghostrecon/internal/core/domain"
)

type contactService interface {
	Add(ctx context.Context, userID, targetID string, trust int) (*domain.Contact, error)
	List(ctx context.Context, userID string) ([]domain.Contact, error)
	UpdateTrust(ctx context.Context, userID, contactID string, trust int) error
	Delete(ctx context.Context, userID, contactID string) error
}

type ContactHandler struct {
	contacts contactService
}

func NewContactHandler(contacts contactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

type addContactRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	TrustLevel   int    `json:"trust_level" validate:"min=0,max=5"`
}

func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	req := addContactRequest{TrustLevel: 1}
	if !decode(w, r, &req) {
		return
	}
	c, err := h.contacts.Add(r.Context(), userID, req.TargetUserID, req.TrustLevel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := h.contacts.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateTrust takes the level as a query parameter.
func (h *ContactHandler) UpdateTrust(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	level, err := strconv.Atoi(r.URL.Query().Get("trust_level"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "trust_level must be an integer")
		return
	}
	if err := h.contacts.UpdateTrust(r.Context(), userID, r.PathValue("id"), level); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "trust_level": level})
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.contacts.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
