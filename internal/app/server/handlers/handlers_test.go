package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/core/services"
	"ghostrecon/pkg/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authed(method, target, body, userID string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != "" {
		r = r.WithContext(middleware.WithUserID(r.Context(), userID))
	}
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		detail string
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{fmt.Errorf("lookup: %w", domain.ErrUserNotFound), http.StatusNotFound, "User not found"},
		{domain.ErrEmailTaken, http.StatusBadRequest, "Email already registered"},
		{domain.ErrNotParticipant, http.StatusNotFound, "Conversation not found"},
		{domain.ErrNotCallParty, http.StatusNotFound, "Call not found"},
		{domain.ErrMessageNotFound, http.StatusNotFound, "Message not found or not yours"},
		{domain.ErrGroupKeyNotFound, http.StatusNotFound, "No group key distributed"},
		{fmt.Errorf("%w: alias is required", domain.ErrInvalidArgument), http.StatusBadRequest, "alias is required"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.detail, decodeBody(t, w)["detail"])
		})
	}
}

type stubIdentity struct {
	identityService
	gotFingerprint string
}

func (s *stubIdentity) RegisterAnonymous(_ context.Context, fp, alias string) (*services.AuthResult, error) {
	s.gotFingerprint = fp
	return &services.AuthResult{Token: "t", User: &domain.User{ID: "u1", Alias: alias}}, nil
}

func (s *stubIdentity) Login(context.Context, string, string) (*services.AuthResult, error) {
	return nil, domain.ErrInvalidCredentials
}

func TestRegisterAnonymousValidation(t *testing.T) {
	stub := &stubIdentity{}
	h := NewAuthHandler(stub)

	w := httptest.NewRecorder()
	h.RegisterAnonymous(w, authed(http.MethodPost, "/", `{"alias":"x"}`, ""))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "device_fingerprint is required", decodeBody(t, w)["detail"])

	w = httptest.NewRecorder()
	h.RegisterAnonymous(w, authed(http.MethodPost, "/", `{`, ""))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	h.RegisterAnonymous(w, authed(http.MethodPost, "/", `{"device_fingerprint":"fp","alias":"Raven"}`, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fp", stub.gotFingerprint)
	body := decodeBody(t, w)
	assert.Equal(t, "t", body["token"])
	assert.Equal(t, "Raven", body["user"].(map[string]any)["alias"])
}

func TestLoginFailureIs401(t *testing.T) {
	w := httptest.NewRecorder()
	NewAuthHandler(&stubIdentity{}).Login(w, authed(http.MethodPost, "/", `{"identifier":"x","password":"y"}`, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeWithoutCallerIs401(t *testing.T) {
	w := httptest.NewRecorder()
	NewAuthHandler(&stubIdentity{}).Me(w, authed(http.MethodGet, "/", "", ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type stubContacts struct {
	contactService
	level int
	id    string
}

func (s *stubContacts) UpdateTrust(_ context.Context, _, id string, level int) error {
	s.id, s.level = id, level
	if level > 5 {
		return domain.ErrInvalidTrustLevel
	}
	return nil
}

func TestUpdateTrustReadsQuery(t *testing.T) {
	stub := &stubContacts{}
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /contacts/{id}/trust", NewContactHandler(stub).UpdateTrust)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, authed(http.MethodPut, "/contacts/k1/trust?trust_level=4", "", "me"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "k1", stub.id)
	assert.Equal(t, 4, stub.level)
	assert.Equal(t, float64(4), decodeBody(t, w)["trust_level"])

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, authed(http.MethodPut, "/contacts/k1/trust?trust_level=9", "", "me"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, authed(http.MethodPut, "/contacts/k1/trust?trust_level=high", "", "me"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

type stubCalls struct {
	callService
	callType domain.CallType
}

func (s *stubCalls) Initiate(_ context.Context, _, target string, ct domain.CallType) (*domain.Call, error) {
	s.callType = ct
	return &domain.Call{ID: "c", ReceiverID: target, CallType: ct}, nil
}

func TestInitiateCallDefaultsToVoice(t *testing.T) {
	stub := &stubCalls{}
	h := NewCallHandler(stub)

	w := httptest.NewRecorder()
	h.Initiate(w, authed(http.MethodPost, "/", `{"target_user_id":"u2"}`, "me"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.CallVoice, stub.callType)

	w = httptest.NewRecorder()
	h.Initiate(w, authed(http.MethodPost, "/", `{"target_user_id":"u2","call_type":"fax"}`, "me"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

type stubGroups struct {
	groupKeyService
	conv string
}

func (s *stubGroups) Rotate(_ context.Context, _, conv string, keys map[string]string) (int, error) {
	s.conv = conv
	return len(keys), nil
}

func TestRotateUsesPathConversation(t *testing.T) {
	stub := &stubGroups{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /groups/{conv_id}/rotate-key", NewGroupHandler(stub).Rotate)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, authed(http.MethodPost, "/groups/g1/rotate-key",
		`{"conversation_id":"other","encrypted_keys":{"a":"k","b":"k"}}`, "a"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "g1", stub.conv)
	assert.Equal(t, map[string]any{"status": "rotated", "recipients": float64(2)}, decodeBody(t, w))
}

func TestWebRTCConfigSkipsBlankServers(t *testing.T) {
	w := httptest.NewRecorder()
	NewWebRTCHandler([]string{"stun:a", "", "turn:b"}, 10).Config(w, authed(http.MethodGet, "/", "", "me"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"iceServers":[{"urls":"stun:a"},{"urls":"turn:b"}],"iceCandidatePoolSize":10}`, w.Body.String())
}

func TestCredentialSources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/ws?token=q", nil)
	assert.Equal(t, "q", credential(r))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", credential(r))

	r.SetPathValue("token", "p")
	assert.Equal(t, "p", credential(r))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(r), "no origin header")
	r.Header.Set("Origin", "https://APP.example")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))
	assert.True(t, originChecker([]string{"*"})(r))
}
