package handlers

import (
	"context"
	"net/http"

	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/core/services"
)

type identityService interface {
	RegisterAnonymous(ctx context.Context, fingerprint, alias string) (*services.AuthResult, error)
	RegisterPseudonym(ctx context.Context, in services.PseudonymInput) (*services.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*services.AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	Search(ctx context.Context, userID, q string) ([]domain.User, error)
}

type AuthHandler struct {
	users identityService
}

func NewAuthHandler(users identityService) *AuthHandler {
	return &AuthHandler{users: users}
}

type anonymousRequest struct {
	DeviceFingerprint string `json:"device_fingerprint" validate:"required"`
	Alias             string `json:"alias"`
}

type pseudonymRequest struct {
	Alias    string `json:"alias" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"`
}

func (h *AuthHandler) RegisterAnonymous(w http.ResponseWriter, r *http.Request) {
	var req anonymousRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.users.RegisterAnonymous(r.Context(), req.DeviceFingerprint, req.Alias)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) RegisterPseudonym(w http.ResponseWriter, r *http.Request) {
	var req pseudonymRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.users.RegisterPseudonym(r.Context(), services.PseudonymInput{
		Alias:    req.Alias,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.users.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	u, err := h.users.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	users, err := h.users.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
