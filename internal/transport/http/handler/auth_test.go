package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/migrant-health-api/internal/application/auth"
	"github.com/migrant-health-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestRegistrationChallenge(ctx context.Context, req domain.RegistrationChallengeRequest) (*auth.ChallengeResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.ChallengeResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ConfirmRegistration(ctx context.Context, req domain.CompleteRegistrationRequest) (*auth.AuthResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) RequestLoginChallenge(ctx context.Context, req domain.LoginChallengeRequest) (*auth.ChallengeResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.ChallengeResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ConfirmLogin(ctx context.Context, req domain.ConfirmLoginRequest) (*auth.AuthResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// --- SendLoginOTP ---

func TestSendLoginOTP_InvalidAadhaar(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := postJSON(t, h.SendLoginOTP, "/v1/auth/send-otp-login",
		domain.LoginChallengeRequest{AadhaarNumber: "not-a-number"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendLoginOTP_Success(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestLoginChallenge", mock.Anything, domain.LoginChallengeRequest{AadhaarNumber: "123456789012"}).
		Return(&auth.ChallengeResult{
			Code:         domain.CodeOTPSent,
			MaskedMobile: "987*****10",
			FullName:     "Ravi Kumar",
		}, nil)

	h := NewAuthHandler(svc)
	rr := postJSON(t, h.SendLoginOTP, "/v1/auth/send-otp-login",
		domain.LoginChallengeRequest{AadhaarNumber: "123456789012"})

	assert.Equal(t, http.StatusOK, rr.Code)
	var res auth.ChallengeResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, domain.CodeOTPSent, res.Code)
	assert.Equal(t, "987*****10", res.MaskedMobile)
}

func TestSendLoginOTP_UserNotFound(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestLoginChallenge", mock.Anything, mock.Anything).
		Return(nil, domain.NewAuthError(domain.CodeUserNotFound, "no account for this aadhaar number", domain.ErrNotFound))

	h := NewAuthHandler(svc)
	rr := postJSON(t, h.SendLoginOTP, "/v1/auth/send-otp-login",
		domain.LoginChallengeRequest{AadhaarNumber: "123456789012"})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, domain.CodeUserNotFound, env.Code)
}

// --- VerifyLoginOTP ---

func TestVerifyLoginOTP_InvalidOTPFormat(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	rr := postJSON(t, h.VerifyLoginOTP, "/v1/auth/verify-otp-login",
		domain.ConfirmLoginRequest{AadhaarNumber: "123456789012", OTP: "12ab"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyLoginOTP_WrongCodeCarriesRemainingAttempts(t *testing.T) {
	remaining := 3
	ae := domain.NewAuthError(domain.CodeInvalidOTP, "incorrect OTP", domain.ErrUnauthorized)
	ae.RemainingAttempts = &remaining

	svc := &mockAuthSvc{}
	svc.On("ConfirmLogin", mock.Anything, mock.Anything).Return(nil, ae)

	h := NewAuthHandler(svc)
	rr := postJSON(t, h.VerifyLoginOTP, "/v1/auth/verify-otp-login",
		domain.ConfirmLoginRequest{AadhaarNumber: "123456789012", OTP: "000000"})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, domain.CodeInvalidOTP, env.Code)
	require.NotNil(t, env.RemainingAttempts)
	assert.Equal(t, 3, *env.RemainingAttempts)
}

func TestVerifyLoginOTP_LockedMapsTo423(t *testing.T) {
	unlockAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ae := domain.NewAuthError(domain.CodeAccountLocked, "too many failed logins, account locked", domain.ErrLocked)
	ae.UnlockAt = &unlockAt

	svc := &mockAuthSvc{}
	svc.On("ConfirmLogin", mock.Anything, mock.Anything).Return(nil, ae)

	h := NewAuthHandler(svc)
	rr := postJSON(t, h.VerifyLoginOTP, "/v1/auth/verify-otp-login",
		domain.ConfirmLoginRequest{AadhaarNumber: "123456789012", OTP: "000000"})

	assert.Equal(t, http.StatusLocked, rr.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, domain.CodeAccountLocked, env.Code)
	require.NotNil(t, env.UnlockTime)
	assert.Equal(t, unlockAt, env.UnlockTime.UTC())
}

func TestVerifyLoginOTP_Success(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ConfirmLogin", mock.Anything, mock.Anything).Return(&auth.AuthResult{
		Code:  domain.CodeLoginSuccess,
		Token: "jwt-token",
		User:  &domain.User{UserID: "u1", FirstName: "Ravi"},
	}, nil)

	h := NewAuthHandler(svc)
	rr := postJSON(t, h.VerifyLoginOTP, "/v1/auth/verify-otp-login",
		domain.ConfirmLoginRequest{AadhaarNumber: "123456789012", OTP: "123456"})

	assert.Equal(t, http.StatusOK, rr.Code)
	var res auth.AuthResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "jwt-token", res.Token)
	assert.Equal(t, domain.CodeLoginSuccess, res.Code)
}

// --- SendRegistrationOTP ---

func TestSendRegistrationOTP_BadBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthSvc{})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/send-otp-registration", bytes.NewReader([]byte("{")))
	rr := httptest.NewRecorder()
	h.SendRegistrationOTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendRegistrationOTP_DuplicateMapsTo409(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestRegistrationChallenge", mock.Anything, mock.Anything).
		Return(nil, domain.NewAuthError(domain.CodeUserExists, "mobile number already registered", domain.ErrConflict))

	h := NewAuthHandler(svc)
	rr := postJSON(t, h.SendRegistrationOTP, "/v1/auth/send-otp-registration",
		domain.RegistrationChallengeRequest{MobileNumber: "9876543210", AadhaarNumber: "123456789012"})

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestVerifyRegistrationOTP_MalformedDateOfBirth(t *testing.T) {
	svc := &mockAuthSvc{}
	h := NewAuthHandler(svc)
	rr := postJSON(t, h.VerifyRegistrationOTP, "/v1/auth/verify-otp-registration",
		domain.CompleteRegistrationRequest{
			MobileNumber: "9876543210",
			OTP:          "123456",
			FirstName:    "Ravi",
			LastName:     "Kumar",
			DateOfBirth:  "15-04-1990",
			Gender:       "Male",
		})

	// Rejected before the service runs, so the OTP session is not consumed.
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "ConfirmRegistration", mock.Anything, mock.Anything)
}

func TestVerifyRegistrationOTP_Created(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ConfirmRegistration", mock.Anything, mock.Anything).Return(&auth.AuthResult{
		Code:  domain.CodeLoginSuccess,
		Token: "jwt-token",
		User:  &domain.User{UserID: "u1"},
	}, nil)

	h := NewAuthHandler(svc)
	rr := postJSON(t, h.VerifyRegistrationOTP, "/v1/auth/verify-otp-registration",
		domain.CompleteRegistrationRequest{
			MobileNumber: "9876543210",
			OTP:          "123456",
			FirstName:    "Ravi",
			LastName:     "Kumar",
			DateOfBirth:  "1990-04-15",
			Gender:       "Male",
		})

	assert.Equal(t, http.StatusCreated, rr.Code)
}
