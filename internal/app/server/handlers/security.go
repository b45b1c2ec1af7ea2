package handlers

import (
	"context"
	"net/http"

	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/core/services"
)

type securityService interface {
	SecuritySettings(ctx context.Context, userID string) (domain.SecuritySettings, error)
	UpdateSecuritySettings(ctx context.Context, userID string, s domain.SecuritySettings) error
	RotateKeys(ctx context.Context, userID string) (string, error)
	PanicWipe(ctx context.Context, userID, confirmCode string) (*services.WipeReport, error)
	SessionInfo(ctx context.Context, userID string) (*domain.SessionInfo, error)
	PublishPublicKey(ctx context.Context, userID, key string) error
	PublicKey(ctx context.Context, targetID string) (*domain.User, error)
	RegisterPushToken(ctx context.Context, userID, token string) error
}

// SecurityHandler serves settings, key material and device registration.
type SecurityHandler struct {
	users securityService
}

func NewSecurityHandler(users securityService) *SecurityHandler {
	return &SecurityHandler{users: users}
}

type panicWipeRequest struct {
	ConfirmCode string `json:"confirm_code" validate:"required"`
}

type publishKeyRequest struct {
	PublicKey string `json:"public_key" validate:"required"`
}

type pushTokenRequest struct {
	PushToken string `json:"push_token" validate:"required"`
}

func (h *SecurityHandler) Settings(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	s, err := h.users.SecuritySettings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SecurityHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req domain.SecuritySettings
	if !decode(w, r, &req) {
		return
	}
	if err := h.users.UpdateSecuritySettings(r.Context(), userID, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "settings": req})
}

func (h *SecurityHandler) RotateKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	hash, err := h.users.RotateKeys(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "keys_rotated",
		"new_key_hash": hash,
	})
}

func (h *SecurityHandler) PanicWipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req panicWipeRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := h.users.PanicWipe(r.Context(), userID, req.ConfirmCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "wiped",
		"message": "All data has been permanently destroyed",
		"deleted": report,
	})
}

func (h *SecurityHandler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	info, err := h.users.SessionInfo(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *SecurityHandler) PublishKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req publishKeyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.users.PublishPublicKey(r.Context(), userID, req.PublicKey); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "published"})
}

func (h *SecurityHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	u, err := h.users.PublicKey(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":    u.ID,
		"alias":      u.Alias,
		"public_key": u.PublicKey,
	})
}

func (h *SecurityHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req pushTokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.users.RegisterPushToken(r.Context(), userID, req.PushToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}
