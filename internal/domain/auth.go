package domain

import (
	"fmt"
	"time"
)

// Machine-readable reason codes surfaced on every auth response.
// These are stable API contract values; clients switch on them.
const (
	CodeOTPSent            = "OTP_SENT"
	CodeOTPSentDev         = "OTP_SENT_DEV"
	CodeLoginSuccess       = "LOGIN_SUCCESS"
	CodeUserExists         = "USER_EXISTS"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeInvalidOTP         = "INVALID_OTP"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeUserNotVerified    = "USER_NOT_VERIFIED"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeSMSSendFailed      = "SMS_SEND_FAILED"
)

// AuthError carries a reason code alongside the sentinel used for HTTP status
// mapping. Optional fields are populated per code: UnlockAt for ACCOUNT_LOCKED,
// RemainingAttempts for INVALID_OTP during login.
type AuthError struct {
	Code              string
	Message           string
	UnlockAt          *time.Time
	RemainingAttempts *int
	Sentinel          error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Sentinel }

// NewAuthError builds an AuthError wrapping the given sentinel.
func NewAuthError(code, message string, sentinel error) *AuthError {
	return &AuthError{Code: code, Message: message, Sentinel: sentinel}
}
