package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"ghostrecon/internal/core/domain"
	"ghostrecon/pkg/logging"
	"ghostrecon/pkg/middleware"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorMapping struct {
	target error
	status int
	detail string
}

// errorTable is checked in order with errors.Is. Outsiders of a
// conversation or call see the same 404 as for a missing one.
var errorTable = []errorMapping{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{domain.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{domain.ErrEmailTaken, http.StatusBadRequest, "Email already registered"},
	{domain.ErrPhoneTaken, http.StatusBadRequest, "Phone already registered"},
	{domain.ErrPublicKeyNotFound, http.StatusNotFound, "Public key not found"},
	{domain.ErrConversationNotFound, http.StatusNotFound, "Conversation not found"},
	{domain.ErrNotParticipant, http.StatusNotFound, "Conversation not found"},
	{domain.ErrContactNotFound, http.StatusNotFound, "Contact not found"},
	{domain.ErrContactExists, http.StatusBadRequest, "Contact already exists"},
	{domain.ErrInvalidTrustLevel, http.StatusBadRequest, "Trust level must be 0-5"},
	{domain.ErrMessageNotFound, http.StatusNotFound, "Message not found or not yours"},
	{domain.ErrCallNotFound, http.StatusNotFound, "Call not found"},
	{domain.ErrNotCallParty, http.StatusNotFound, "Call not found"},
	{domain.ErrInvalidCallType, http.StatusBadRequest, "Call type must be voice or video"},
	{domain.ErrGroupKeyNotFound, http.StatusNotFound, "No group key distributed"},
	{domain.ErrInvalidConfirmCode, http.StatusBadRequest, "Invalid confirmation code"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps domain errors to a status and a client-safe detail.
// Anything unmapped is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			writeDetail(w, m.status, m.detail)
			return
		}
	}
	if errors.Is(err, domain.ErrInvalidArgument) {
		writeDetail(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrInvalidArgument.Error()+": "))
		return
	}
	logging.FromContext(r.Context()).ErrorContext(r.Context(), "http - handler - unexpected error", logging.Err(err))
	writeDetail(w, http.StatusInternalServerError, "Internal server error")
}

// decode reads a JSON body into dst and runs struct validation.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// caller returns the authenticated user id set by the auth middleware.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
	}
	return id, ok
}
