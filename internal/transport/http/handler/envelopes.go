package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/migrant-health-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorEnvelope carries the machine-readable reason code plus the optional
// lockout fields clients render.
type ErrorEnvelope struct {
	Error             string     `json:"error"`
	Code              string     `json:"code,omitempty"`
	UnlockTime        *time.Time `json:"unlock_time,omitempty"`
	RemainingAttempts *int       `json:"remaining_attempts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorEnvelope{Error: msg})
}

// httpError maps a service error to its HTTP status. AuthError values carry
// their reason code and lockout fields through to the body.
func httpError(w http.ResponseWriter, err error) {
	env := ErrorEnvelope{Error: err.Error()}

	var ae *domain.AuthError
	if errors.As(err, &ae) {
		env.Error = ae.Message
		env.Code = ae.Code
		env.UnlockTime = ae.UnlockAt
		env.RemainingAttempts = ae.RemainingAttempts
	}

	writeJSON(w, statusFor(err), env)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
