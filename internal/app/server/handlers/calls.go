package handlers

import (
	"context"
	"net/http"

	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/core/services"
)

type callService interface {
	Initiate(ctx context.Context, userID, targetID string, callType domain.CallType) (*domain.Call, error)
	History(ctx context.Context, userID string) ([]domain.Call, error)
	End(ctx context.Context, userID, callID string) (int, error)
	Signal(ctx context.Context, userID string, in services.SignalInput) error
	Accept(ctx context.Context, userID, callID string) error
	Reject(ctx context.Context, userID, callID string) error
}

type CallHandler struct {
	calls callService
}

func NewCallHandler(calls callService) *CallHandler {
	return &CallHandler{calls: calls}
}

type initiateCallRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	CallType     string `json:"call_type" validate:"omitempty,oneof=voice video"`
}

type signalRequest struct {
	CallID     string `json:"call_id" validate:"required"`
	SignalType string `json:"signal_type" validate:"required"`
	SignalData string `json:"signal_data"`
}

func (h *CallHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	req := initiateCallRequest{CallType: string(domain.CallVoice)}
	if !decode(w, r, &req) {
		return
	}
	call, err := h.calls.Initiate(r.Context(), userID, req.TargetUserID, domain.CallType(req.CallType))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (h *CallHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	calls, err := h.calls.History(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calls)
}

func (h *CallHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	d, err := h.calls.End(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ended", "duration_seconds": d})
}

func (h *CallHandler) Signal(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req signalRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.calls.Signal(r.Context(), userID, services.SignalInput{
		CallID:     req.CallID,
		SignalType: req.SignalType,
		SignalData: req.SignalData,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signaled"})
}

func (h *CallHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.calls.Accept, "accepted")
}

func (h *CallHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.calls.Reject, "rejected")
}

func (h *CallHandler) answer(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, userID, callID string) error,
	status string,
) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
