package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/migrant-health-api/internal/domain"
	"github.com/migrant-health-api/internal/pkg/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) GetByMobile(ctx context.Context, mobile string) (*domain.User, error) {
	args := m.Called(ctx, mobile)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByAadhaar(ctx context.Context, aadhaar string) (*domain.User, error) {
	args := m.Called(ctx, aadhaar)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

type mockTokenSigner struct{ mock.Mock }

func (m *mockTokenSigner) Sign(userID, mobileNumber string, verified bool) (string, error) {
	args := m.Called(userID, mobileNumber, verified)
	return args.String(0), args.Error(1)
}

// --- builder ---

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(us userStore, sms smsSender, signer tokenSigner, clock *testClock, expose bool) (Service, *RegistrationStore) {
	store := NewRegistrationStore(10*time.Minute, clock.now)
	svc := NewService(ServiceDeps{
		UserRepo:            us,
		Registrations:       store,
		SMSSender:           sms,
		JWTProvider:         signer,
		OTPTTL:              10 * time.Minute,
		MaxOTPAttempts:      3,
		MaxLoginFailures:    5,
		LockDuration:        2 * time.Hour,
		ExposeChallengeCode: expose,
		Now:                 clock.now,
	})
	return svc, store
}

func newClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func mustHash(t *testing.T, code string) string {
	t.Helper()
	h, err := otp.HashCode(code)
	require.NoError(t, err)
	return h
}

func authCode(t *testing.T, err error) *domain.AuthError {
	t.Helper()
	var ae *domain.AuthError
	require.ErrorAs(t, err, &ae)
	return ae
}

const (
	testMobile  = "9876543210"
	testAadhaar = "123456789012"
)

// --- RequestRegistrationChallenge ---

func TestRequestRegistrationChallenge_MobileAlreadyRegistered(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByMobile", mock.Anything, testMobile).Return(&domain.User{UserID: "u1"}, nil)

	svc, _ := newTestService(us, nil, nil, newClock(), false)
	_, err := svc.RequestRegistrationChallenge(context.Background(), domain.RegistrationChallengeRequest{
		MobileNumber: testMobile, AadhaarNumber: testAadhaar,
	})

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeUserExists, ae.Code)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRequestRegistrationChallenge_AadhaarAlreadyRegistered(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByMobile", mock.Anything, testMobile).Return(nil, domain.ErrNotFound)
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(&domain.User{UserID: "u1"}, nil)

	svc, _ := newTestService(us, nil, nil, newClock(), false)
	_, err := svc.RequestRegistrationChallenge(context.Background(), domain.RegistrationChallengeRequest{
		MobileNumber: testMobile, AadhaarNumber: testAadhaar,
	})

	assert.Equal(t, domain.CodeUserExists, authCode(t, err).Code)
}

func TestRequestRegistrationChallenge_SendsOTPAndMasksMobile(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByMobile", mock.Anything, testMobile).Return(nil, domain.ErrNotFound)
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(nil, domain.ErrNotFound)

	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, "+91"+testMobile, mock.MatchedBy(func(msg string) bool {
		return regexp.MustCompile(`\b\d{6}\b`).MatchString(msg)
	})).Return(nil)

	clock := newClock()
	svc, store := newTestService(us, sms, nil, clock, false)
	res, err := svc.RequestRegistrationChallenge(context.Background(), domain.RegistrationChallengeRequest{
		MobileNumber: testMobile, AadhaarNumber: testAadhaar,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeOTPSent, res.Code)
	assert.Equal(t, "987*****10", res.MaskedMobile)
	assert.Empty(t, res.DevCode)
	assert.Equal(t, clock.t.Add(10*time.Minute), res.ExpiresAt)

	sess, ok, _ := store.Get(testMobile)
	require.True(t, ok)
	assert.Equal(t, testAadhaar, sess.AadhaarNumber)
	sms.AssertExpectations(t)
}

func TestRequestRegistrationChallenge_SMSFailureDiscardsSession(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByMobile", mock.Anything, testMobile).Return(nil, domain.ErrNotFound)
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(nil, domain.ErrNotFound)

	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sns down"))

	svc, store := newTestService(us, sms, nil, newClock(), false)
	_, err := svc.RequestRegistrationChallenge(context.Background(), domain.RegistrationChallengeRequest{
		MobileNumber: testMobile, AadhaarNumber: testAadhaar,
	})

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeSMSSendFailed, ae.Code)
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, ok, _ := store.Get(testMobile)
	assert.False(t, ok, "a code the user never received must not stay redeemable")
}

func TestRequestRegistrationChallenge_ExposedCodeSkipsSMS(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByMobile", mock.Anything, testMobile).Return(nil, domain.ErrNotFound)
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(nil, domain.ErrNotFound)

	sms := &mockSMSSender{}

	svc, _ := newTestService(us, sms, nil, newClock(), true)
	res, err := svc.RequestRegistrationChallenge(context.Background(), domain.RegistrationChallengeRequest{
		MobileNumber: testMobile, AadhaarNumber: testAadhaar,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeOTPSentDev, res.Code)
	assert.Regexp(t, `^\d{6}$`, res.DevCode)
	sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)
}

// --- ConfirmRegistration ---

func completeReq(code string) domain.CompleteRegistrationRequest {
	return domain.CompleteRegistrationRequest{
		MobileNumber: testMobile,
		OTP:          code,
		FirstName:    "Ravi",
		LastName:     "Kumar",
		DateOfBirth:  "1990-04-15",
		Gender:       "Male",
	}
}

func TestConfirmRegistration_NoSession(t *testing.T) {
	svc, _ := newTestService(&mockUserStore{}, nil, nil, newClock(), false)
	_, err := svc.ConfirmRegistration(context.Background(), completeReq("123456"))

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeSessionNotFound, ae.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmRegistration_ExpiredSession(t *testing.T) {
	clock := newClock()
	svc, store := newTestService(&mockUserStore{}, nil, nil, clock, false)
	store.Begin(testMobile, testAadhaar, mustHash(t, "123456"))
	clock.advance(10*time.Minute + time.Second)

	_, err := svc.ConfirmRegistration(context.Background(), completeReq("123456"))
	assert.Equal(t, domain.CodeSessionExpired, authCode(t, err).Code)

	// Expired session is gone, a retry now reports not-found.
	_, err = svc.ConfirmRegistration(context.Background(), completeReq("123456"))
	assert.Equal(t, domain.CodeSessionNotFound, authCode(t, err).Code)
}

func TestConfirmRegistration_ThreeWrongCodesBurnTheSession(t *testing.T) {
	svc, store := newTestService(&mockUserStore{}, nil, nil, newClock(), false)
	store.Begin(testMobile, testAadhaar, mustHash(t, "123456"))

	_, err := svc.ConfirmRegistration(context.Background(), completeReq("000000"))
	assert.Equal(t, domain.CodeInvalidOTP, authCode(t, err).Code)

	_, err = svc.ConfirmRegistration(context.Background(), completeReq("000001"))
	assert.Equal(t, domain.CodeInvalidOTP, authCode(t, err).Code)

	_, err = svc.ConfirmRegistration(context.Background(), completeReq("000002"))
	assert.Equal(t, domain.CodeTooManyAttempts, authCode(t, err).Code)

	// Even the right code is dead now.
	_, err = svc.ConfirmRegistration(context.Background(), completeReq("123456"))
	assert.Equal(t, domain.CodeSessionNotFound, authCode(t, err).Code)
}

func TestConfirmRegistration_NewChallengeInvalidatesOldCode(t *testing.T) {
	svc, store := newTestService(&mockUserStore{}, nil, nil, newClock(), false)
	store.Begin(testMobile, testAadhaar, mustHash(t, "111111"))
	store.Begin(testMobile, testAadhaar, mustHash(t, "222222"))

	_, err := svc.ConfirmRegistration(context.Background(), completeReq("111111"))
	assert.Equal(t, domain.CodeInvalidOTP, authCode(t, err).Code)
}

func TestConfirmRegistration_Success(t *testing.T) {
	us := &mockUserStore{}
	var created *domain.User
	us.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.User)
	}).Return(nil)

	signer := &mockTokenSigner{}
	signer.On("Sign", mock.AnythingOfType("string"), testMobile, true).Return("jwt-token", nil)

	svc, store := newTestService(us, nil, signer, newClock(), false)
	store.Begin(testMobile, testAadhaar, mustHash(t, "123456"))

	res, err := svc.ConfirmRegistration(context.Background(), completeReq("123456"))
	require.NoError(t, err)

	assert.Equal(t, domain.CodeLoginSuccess, res.Code)
	assert.Equal(t, "jwt-token", res.Token)
	require.NotNil(t, created)
	assert.Equal(t, testMobile, created.MobileNumber)
	assert.Equal(t, testAadhaar, created.AadhaarNumber)
	assert.True(t, created.Verified)
	assert.True(t, created.Active)
	assert.NotEmpty(t, created.UserID)

	// The session is consumed, a replay of the same code fails.
	_, err = svc.ConfirmRegistration(context.Background(), completeReq("123456"))
	assert.Equal(t, domain.CodeSessionNotFound, authCode(t, err).Code)
}

// --- RequestLoginChallenge ---

func activeUser() *domain.User {
	return &domain.User{
		UserID:        "u1",
		FirstName:     "Ravi",
		LastName:      "Kumar",
		MobileNumber:  testMobile,
		AadhaarNumber: testAadhaar,
		Verified:      true,
		Active:        true,
	}
}

func TestRequestLoginChallenge_UserNotFound(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(nil, domain.ErrNotFound)

	svc, _ := newTestService(us, nil, nil, newClock(), false)
	_, err := svc.RequestLoginChallenge(context.Background(), domain.LoginChallengeRequest{AadhaarNumber: testAadhaar})

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeUserNotFound, ae.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestLoginChallenge_UserNotVerified(t *testing.T) {
	u := activeUser()
	u.Verified = false
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)

	svc, _ := newTestService(us, nil, nil, newClock(), false)
	_, err := svc.RequestLoginChallenge(context.Background(), domain.LoginChallengeRequest{AadhaarNumber: testAadhaar})

	assert.Equal(t, domain.CodeUserNotVerified, authCode(t, err).Code)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRequestLoginChallenge_AccountDeactivated(t *testing.T) {
	u := activeUser()
	u.Active = false
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)

	svc, _ := newTestService(us, nil, nil, newClock(), false)
	_, err := svc.RequestLoginChallenge(context.Background(), domain.LoginChallengeRequest{AadhaarNumber: testAadhaar})

	assert.Equal(t, domain.CodeAccountDeactivated, authCode(t, err).Code)
}

func TestRequestLoginChallenge_AccountLocked(t *testing.T) {
	clock := newClock()
	unlockAt := clock.t.Add(90 * time.Minute)
	u := activeUser()
	u.LockUntil = &unlockAt
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)

	svc, _ := newTestService(us, nil, nil, clock, false)
	_, err := svc.RequestLoginChallenge(context.Background(), domain.LoginChallengeRequest{AadhaarNumber: testAadhaar})

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeAccountLocked, ae.Code)
	assert.ErrorIs(t, err, domain.ErrLocked)
	require.NotNil(t, ae.UnlockAt)
	assert.Equal(t, unlockAt, *ae.UnlockAt)
}

func TestRequestLoginChallenge_StoresChallengeAndSendsSMS(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(activeUser(), nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		p, ok := m["pending_otp"].(*domain.PendingOTP)
		return ok && p.CodeHash != "" && p.Attempts == 0
	})).Return(nil)

	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, "+91"+testMobile, mock.Anything).Return(nil)

	clock := newClock()
	svc, _ := newTestService(us, sms, nil, clock, false)
	res, err := svc.RequestLoginChallenge(context.Background(), domain.LoginChallengeRequest{AadhaarNumber: testAadhaar})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeOTPSent, res.Code)
	assert.Equal(t, "987*****10", res.MaskedMobile)
	assert.Equal(t, "Ravi Kumar", res.FullName)
	us.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestRequestLoginChallenge_SMSFailureClearsChallenge(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(activeUser(), nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		_, ok := m["pending_otp"].(*domain.PendingOTP)
		return ok
	})).Return(nil).Once()
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		v, present := m["pending_otp"]
		return present && v == nil
	})).Return(nil).Once()

	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sns down"))

	svc, _ := newTestService(us, sms, nil, newClock(), false)
	_, err := svc.RequestLoginChallenge(context.Background(), domain.LoginChallengeRequest{AadhaarNumber: testAadhaar})

	assert.Equal(t, domain.CodeSMSSendFailed, authCode(t, err).Code)
	us.AssertExpectations(t)
}

// --- ConfirmLogin (mock store, single-shot behaviors) ---

func userWithPending(t *testing.T, code string, expiresAt time.Time, attempts int) *domain.User {
	u := activeUser()
	u.PendingOTP = &domain.PendingOTP{
		CodeHash:  mustHash(t, code),
		ExpiresAt: expiresAt.Unix(),
		Attempts:  attempts,
	}
	return u
}

func TestConfirmLogin_NoPendingChallenge(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(activeUser(), nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		return m["login_attempts"] == 1
	})).Return(nil)

	svc, _ := newTestService(us, nil, nil, newClock(), false)
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "123456"})

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeSessionNotFound, ae.Code)
	require.NotNil(t, ae.RemainingAttempts)
	assert.Equal(t, 4, *ae.RemainingAttempts)
	us.AssertExpectations(t)
}

func TestConfirmLogin_ExpiredChallengeDiscardsAndCounts(t *testing.T) {
	clock := newClock()
	u := userWithPending(t, "123456", clock.t.Add(-time.Minute), 0)
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		v, present := m["pending_otp"]
		return present && v == nil && m["login_attempts"] == 1
	})).Return(nil)

	svc, _ := newTestService(us, nil, nil, clock, false)
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "123456"})

	assert.Equal(t, domain.CodeSessionExpired, authCode(t, err).Code)
	us.AssertExpectations(t)
}

func TestConfirmLogin_WrongCodeIncrementsBothCounters(t *testing.T) {
	clock := newClock()
	u := userWithPending(t, "123456", clock.t.Add(5*time.Minute), 0)
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		p, ok := m["pending_otp"].(*domain.PendingOTP)
		return ok && p.Attempts == 1 && m["login_attempts"] == 1
	})).Return(nil)

	svc, _ := newTestService(us, nil, nil, clock, false)
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "000000"})

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeInvalidOTP, ae.Code)
	require.NotNil(t, ae.RemainingAttempts)
	assert.Equal(t, 4, *ae.RemainingAttempts)
	us.AssertExpectations(t)
}

func TestConfirmLogin_ThirdWrongCodeBurnsChallenge(t *testing.T) {
	clock := newClock()
	u := userWithPending(t, "123456", clock.t.Add(5*time.Minute), 2)
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		v, present := m["pending_otp"]
		return present && v == nil
	})).Return(nil)

	svc, _ := newTestService(us, nil, nil, clock, false)
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "000000"})

	assert.Equal(t, domain.CodeTooManyAttempts, authCode(t, err).Code)
	us.AssertExpectations(t)
}

func TestConfirmLogin_FifthFailureLocksForTwoHours(t *testing.T) {
	clock := newClock()
	u := userWithPending(t, "123456", clock.t.Add(5*time.Minute), 0)
	u.LoginAttempts = 4
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		return m["login_attempts"] == 5 && m["lock_until"] != nil
	})).Return(nil)

	svc, _ := newTestService(us, nil, nil, clock, false)
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "000000"})

	// The lock-setting failure itself still reads as a failed code; the
	// caller only meets ACCOUNT_LOCKED on the next attempt.
	ae := authCode(t, err)
	assert.Equal(t, domain.CodeInvalidOTP, ae.Code)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	require.NotNil(t, ae.RemainingAttempts)
	assert.Equal(t, 0, *ae.RemainingAttempts)
	assert.Nil(t, ae.UnlockAt)
	us.AssertExpectations(t)
}

func TestConfirmLogin_LockedAccountRejectsCorrectCode(t *testing.T) {
	clock := newClock()
	u := userWithPending(t, "123456", clock.t.Add(5*time.Minute), 0)
	unlockAt := clock.t.Add(time.Hour)
	u.LockUntil = &unlockAt
	u.LoginAttempts = 5
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)

	svc, _ := newTestService(us, nil, nil, clock, false)
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "123456"})

	assert.Equal(t, domain.CodeAccountLocked, authCode(t, err).Code)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmLogin_ExpiredLockRestartsFailureCountAtOne(t *testing.T) {
	clock := newClock()
	u := userWithPending(t, "123456", clock.t.Add(5*time.Minute), 0)
	pastLock := clock.t.Add(-time.Minute)
	u.LockUntil = &pastLock
	u.LoginAttempts = 5
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		v, present := m["lock_until"]
		return m["login_attempts"] == 1 && present && v == nil
	})).Return(nil)

	svc, _ := newTestService(us, nil, nil, clock, false)
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "000000"})

	ae := authCode(t, err)
	assert.Equal(t, domain.CodeInvalidOTP, ae.Code)
	require.NotNil(t, ae.RemainingAttempts)
	assert.Equal(t, 4, *ae.RemainingAttempts)
	us.AssertExpectations(t)
}

func TestConfirmLogin_SuccessResetsCountersAndSignsToken(t *testing.T) {
	clock := newClock()
	u := userWithPending(t, "123456", clock.t.Add(5*time.Minute), 1)
	u.LoginAttempts = 3
	us := &mockUserStore{}
	us.On("GetByAadhaar", mock.Anything, testAadhaar).Return(u, nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		pv, pok := m["pending_otp"]
		lv, lok := m["lock_until"]
		_, tok := m["last_login_at"]
		return pok && pv == nil && lok && lv == nil && m["login_attempts"] == 0 && tok
	})).Return(nil)

	signer := &mockTokenSigner{}
	signer.On("Sign", "u1", testMobile, true).Return("jwt-token", nil)

	svc, _ := newTestService(us, nil, signer, clock, false)
	res, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "123456"})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeLoginSuccess, res.Code)
	assert.Equal(t, "jwt-token", res.Token)
	assert.Equal(t, 0, res.User.LoginAttempts)
	assert.Nil(t, res.User.PendingOTP)
	assert.Nil(t, res.User.LockUntil)
	require.NotNil(t, res.User.LastLoginAt)
	us.AssertExpectations(t)
}

// --- full lockout scenarios against a stateful fake ---

// fakeUsers applies Update maps to an in-memory user the way the DynamoDB
// repo would, so multi-step flows observe their own writes.
type fakeUsers struct{ u *domain.User }

func (f *fakeUsers) Put(_ context.Context, u *domain.User) error { f.u = u; return nil }

func (f *fakeUsers) GetByMobile(_ context.Context, mobile string) (*domain.User, error) {
	if f.u != nil && f.u.MobileNumber == mobile {
		cp := *f.u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsers) GetByAadhaar(_ context.Context, aadhaar string) (*domain.User, error) {
	if f.u != nil && f.u.AadhaarNumber == aadhaar {
		cp := *f.u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsers) Update(_ context.Context, _ string, updates map[string]interface{}) error {
	for k, v := range updates {
		switch k {
		case "pending_otp":
			if v == nil {
				f.u.PendingOTP = nil
			} else {
				f.u.PendingOTP = v.(*domain.PendingOTP)
			}
		case "login_attempts":
			f.u.LoginAttempts = v.(int)
		case "lock_until":
			if v == nil {
				f.u.LockUntil = nil
			} else {
				ts, err := time.Parse(time.RFC3339, v.(string))
				if err != nil {
					return err
				}
				f.u.LockUntil = &ts
			}
		case "last_login_at":
			ts, err := time.Parse(time.RFC3339, v.(string))
			if err != nil {
				return err
			}
			f.u.LastLoginAt = &ts
		}
	}
	return nil
}

func TestLoginScenario_FourFailuresThenSuccessResets(t *testing.T) {
	clock := newClock()
	fu := &fakeUsers{u: userWithPending(t, "123456", clock.t.Add(10*time.Minute), 0)}
	svc, _ := newTestService(fu, nil, sign("jwt-token"), clock, false)

	// Two wrong codes burn through the challenge attempts without locking.
	for i := 0; i < 2; i++ {
		_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "000000"})
		assert.Equal(t, domain.CodeInvalidOTP, authCode(t, err).Code)
	}
	assert.Equal(t, 2, fu.u.LoginAttempts)

	// Third wrong code exhausts the challenge.
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "000000"})
	assert.Equal(t, domain.CodeTooManyAttempts, authCode(t, err).Code)
	assert.Nil(t, fu.u.PendingOTP)
	assert.Equal(t, 3, fu.u.LoginAttempts)

	// A fresh challenge and the right code clear everything.
	fu.u.PendingOTP = &domain.PendingOTP{
		CodeHash:  mustHash(t, "654321"),
		ExpiresAt: clock.t.Add(10 * time.Minute).Unix(),
	}
	res, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "654321"})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLoginSuccess, res.Code)
	assert.Equal(t, 0, fu.u.LoginAttempts)
	assert.Nil(t, fu.u.PendingOTP)
	assert.Nil(t, fu.u.LockUntil)
}

func TestLoginScenario_FifthCumulativeFailureLocksDespiteFreshCode(t *testing.T) {
	clock := newClock()
	fu := &fakeUsers{u: userWithPending(t, "123456", clock.t.Add(10*time.Minute), 0)}
	svc, _ := newTestService(fu, nil, sign("jwt-token"), clock, false)

	wrong := func() error {
		_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "000000"})
		return err
	}

	// Failures 1-3 exhaust the first challenge.
	require.Equal(t, domain.CodeInvalidOTP, authCode(t, wrong()).Code)
	require.Equal(t, domain.CodeInvalidOTP, authCode(t, wrong()).Code)
	require.Equal(t, domain.CodeTooManyAttempts, authCode(t, wrong()).Code)

	// Failure 4 on a fresh challenge.
	fu.u.PendingOTP = &domain.PendingOTP{CodeHash: mustHash(t, "654321"), ExpiresAt: clock.t.Add(10 * time.Minute).Unix()}
	require.Equal(t, domain.CodeInvalidOTP, authCode(t, wrong()).Code)
	assert.Equal(t, 4, fu.u.LoginAttempts)

	// Failure 5 locks the account for two hours but still reports the
	// wrong code, with no attempts left.
	fu.u.PendingOTP = &domain.PendingOTP{CodeHash: mustHash(t, "654321"), ExpiresAt: clock.t.Add(10 * time.Minute).Unix()}
	ae := authCode(t, wrong())
	require.Equal(t, domain.CodeInvalidOTP, ae.Code)
	require.NotNil(t, ae.RemainingAttempts)
	assert.Equal(t, 0, *ae.RemainingAttempts)
	require.NotNil(t, fu.u.LockUntil)
	assert.Equal(t, clock.t.Add(2*time.Hour).UTC(), fu.u.LockUntil.UTC())

	// The lock holds even with a valid fresh code.
	fu.u.PendingOTP = &domain.PendingOTP{CodeHash: mustHash(t, "999999"), ExpiresAt: clock.t.Add(10 * time.Minute).Unix()}
	_, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "999999"})
	assert.Equal(t, domain.CodeAccountLocked, authCode(t, err).Code)

	// Once the window passes, the correct code logs in and the counter resets.
	clock.advance(2*time.Hour + time.Minute)
	fu.u.PendingOTP = &domain.PendingOTP{CodeHash: mustHash(t, "999999"), ExpiresAt: clock.t.Add(10 * time.Minute).Unix()}
	res, err := svc.ConfirmLogin(context.Background(), domain.ConfirmLoginRequest{AadhaarNumber: testAadhaar, OTP: "999999"})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeLoginSuccess, res.Code)
	assert.Equal(t, 0, fu.u.LoginAttempts)
	assert.Nil(t, fu.u.LockUntil)
}

func sign(token string) *mockTokenSigner {
	s := &mockTokenSigner{}
	s.On("Sign", mock.Anything, mock.Anything, mock.Anything).Return(token, nil)
	return s
}
