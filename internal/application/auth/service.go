package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/migrant-health-api/internal/domain"
	"github.com/migrant-health-api/internal/pkg/id"
	"github.com/migrant-health-api/internal/pkg/otp"
	"github.com/migrant-health-api/internal/pkg/phone"
)

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	GetByMobile(ctx context.Context, mobile string) (*domain.User, error)
	GetByAadhaar(ctx context.Context, aadhaar string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type tokenSigner interface {
	Sign(userID, mobileNumber string, verified bool) (string, error)
}

// ChallengeResult is the response to a send-otp operation.
type ChallengeResult struct {
	Code         string    `json:"code"`
	MaskedMobile string    `json:"mobile_number,omitempty"`
	FullName     string    `json:"name,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	DevCode      string    `json:"otp,omitempty"` // populated only when code exposure is enabled
}

// AuthResult is the response to a successful verify-otp operation.
type AuthResult struct {
	Code  string       `json:"code"`
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type Service interface {
	RequestRegistrationChallenge(ctx context.Context, req domain.RegistrationChallengeRequest) (*ChallengeResult, error)
	ConfirmRegistration(ctx context.Context, req domain.CompleteRegistrationRequest) (*AuthResult, error)
	RequestLoginChallenge(ctx context.Context, req domain.LoginChallengeRequest) (*ChallengeResult, error)
	ConfirmLogin(ctx context.Context, req domain.ConfirmLoginRequest) (*AuthResult, error)
}

// ServiceDeps bundles the collaborators and policy knobs for NewService.
type ServiceDeps struct {
	UserRepo            userStore
	Registrations       *RegistrationStore
	SMSSender           smsSender
	JWTProvider         tokenSigner
	OTPTTL              time.Duration
	MaxOTPAttempts      int
	MaxLoginFailures    int
	LockDuration        time.Duration
	ExposeChallengeCode bool
	Now                 func() time.Time
}

type service struct {
	users         userStore
	registrations *RegistrationStore
	sms           smsSender
	signer        tokenSigner

	otpTTL         time.Duration
	maxOTPAttempts int
	maxLoginFails  int
	lockDuration   time.Duration
	exposeCode     bool
	now            func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:          deps.UserRepo,
		registrations:  deps.Registrations,
		sms:            deps.SMSSender,
		signer:         deps.JWTProvider,
		otpTTL:         deps.OTPTTL,
		maxOTPAttempts: deps.MaxOTPAttempts,
		maxLoginFails:  deps.MaxLoginFailures,
		lockDuration:   deps.LockDuration,
		exposeCode:     deps.ExposeChallengeCode,
		now:            now,
	}
}

func (s *service) RequestRegistrationChallenge(ctx context.Context, req domain.RegistrationChallengeRequest) (*ChallengeResult, error) {
	if _, err := s.users.GetByMobile(ctx, req.MobileNumber); err == nil {
		return nil, domain.NewAuthError(domain.CodeUserExists, "mobile number already registered", domain.ErrConflict)
	}
	if _, err := s.users.GetByAadhaar(ctx, req.AadhaarNumber); err == nil {
		return nil, domain.NewAuthError(domain.CodeUserExists, "aadhaar number already registered", domain.ErrConflict)
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, err
	}
	hash, err := otp.HashCode(code)
	if err != nil {
		return nil, err
	}
	s.registrations.Begin(req.MobileNumber, req.AadhaarNumber, hash)
	expiresAt := s.now().Add(s.otpTTL)

	if s.exposeCode {
		return &ChallengeResult{
			Code:         domain.CodeOTPSentDev,
			MaskedMobile: phone.Mask(req.MobileNumber),
			ExpiresAt:    expiresAt,
			DevCode:      code,
		}, nil
	}

	msg := fmt.Sprintf("Your registration OTP is %s. Valid for %d minutes.", code, int(s.otpTTL.Minutes()))
	if err := s.sms.SendSMS(ctx, phone.Normalize(req.MobileNumber), msg); err != nil {
		s.registrations.Discard(req.MobileNumber)
		slog.Error("registration otp dispatch failed", "mobile", phone.Mask(req.MobileNumber), "err", err)
		return nil, domain.NewAuthError(domain.CodeSMSSendFailed, "could not deliver OTP", domain.ErrUnavailable)
	}

	slog.Info("registration otp sent", "mobile", phone.Mask(req.MobileNumber))
	return &ChallengeResult{
		Code:         domain.CodeOTPSent,
		MaskedMobile: phone.Mask(req.MobileNumber),
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *service) ConfirmRegistration(ctx context.Context, req domain.CompleteRegistrationRequest) (*AuthResult, error) {
	sess, ok, expired := s.registrations.Get(req.MobileNumber)
	if expired {
		return nil, domain.NewAuthError(domain.CodeSessionExpired, "OTP expired, request a new one", domain.ErrUnauthorized)
	}
	if !ok {
		return nil, domain.NewAuthError(domain.CodeSessionNotFound, "no pending registration for this mobile number", domain.ErrNotFound)
	}

	if !otp.VerifyCode(sess.CodeHash, req.OTP) {
		attempts := s.registrations.Fail(req.MobileNumber)
		if attempts >= s.maxOTPAttempts {
			s.registrations.Discard(req.MobileNumber)
			return nil, domain.NewAuthError(domain.CodeTooManyAttempts, "too many wrong codes, request a new OTP", domain.ErrUnauthorized)
		}
		return nil, domain.NewAuthError(domain.CodeInvalidOTP, "incorrect OTP", domain.ErrUnauthorized)
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("invalid date_of_birth: %w", domain.ErrBadRequest)
	}

	nowT := s.now().UTC()
	u := &domain.User{
		UserID:             id.New(),
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		MobileNumber:       req.MobileNumber,
		AadhaarNumber:      sess.AadhaarNumber,
		Email:              req.Email,
		DateOfBirth:        dob,
		Gender:             req.Gender,
		Address:            req.Address,
		EmergencyContact:   req.EmergencyContact,
		WorkDetails:        req.WorkDetails,
		BloodGroup:         req.BloodGroup,
		Allergies:          req.Allergies,
		CurrentMedications: req.CurrentMedications,
		Verified:           true,
		Active:             true,
		CreatedAt:          nowT,
		UpdatedAt:          nowT,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.registrations.Discard(req.MobileNumber)

	token, err := s.signer.Sign(u.UserID, u.MobileNumber, u.Verified)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	slog.Info("user registered", "user_id", u.UserID, "mobile", phone.Mask(u.MobileNumber))
	return &AuthResult{Code: domain.CodeLoginSuccess, Token: token, User: u}, nil
}

func (s *service) RequestLoginChallenge(ctx context.Context, req domain.LoginChallengeRequest) (*ChallengeResult, error) {
	u, err := s.gateUser(ctx, req.AadhaarNumber)
	if err != nil {
		return nil, err
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, err
	}
	hash, err := otp.HashCode(code)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.otpTTL)
	pending := &domain.PendingOTP{CodeHash: hash, ExpiresAt: expiresAt.Unix(), Attempts: 0}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{"pending_otp": pending}); err != nil {
		return nil, fmt.Errorf("store pending otp: %w", err)
	}

	result := &ChallengeResult{
		MaskedMobile: phone.Mask(u.MobileNumber),
		FullName:     u.FullName(),
		ExpiresAt:    expiresAt,
	}
	if s.exposeCode {
		result.Code = domain.CodeOTPSentDev
		result.DevCode = code
		return result, nil
	}

	msg := fmt.Sprintf("Your login OTP is %s. Valid for %d minutes.", code, int(s.otpTTL.Minutes()))
	if err := s.sms.SendSMS(ctx, phone.Normalize(u.MobileNumber), msg); err != nil {
		// Drop the challenge so a code the user never saw cannot linger.
		_ = s.users.Update(ctx, u.UserID, map[string]interface{}{"pending_otp": nil})
		slog.Error("login otp dispatch failed", "user_id", u.UserID, "err", err)
		return nil, domain.NewAuthError(domain.CodeSMSSendFailed, "could not deliver OTP", domain.ErrUnavailable)
	}

	slog.Info("login otp sent", "user_id", u.UserID, "mobile", phone.Mask(u.MobileNumber))
	result.Code = domain.CodeOTPSent
	return result, nil
}

func (s *service) ConfirmLogin(ctx context.Context, req domain.ConfirmLoginRequest) (*AuthResult, error) {
	u, err := s.gateUser(ctx, req.AadhaarNumber)
	if err != nil {
		return nil, err
	}

	nowT := s.now()
	pending := u.PendingOTP
	switch {
	case pending == nil:
		return nil, s.registerLoginFailure(ctx, u, domain.CodeSessionNotFound, "no pending OTP, request a new one", false)
	case pending.ExpiresAt <= nowT.Unix():
		return nil, s.registerLoginFailure(ctx, u, domain.CodeSessionExpired, "OTP expired, request a new one", true)
	case pending.Attempts >= s.maxOTPAttempts:
		return nil, s.registerLoginFailure(ctx, u, domain.CodeTooManyAttempts, "too many wrong codes, request a new OTP", true)
	case !otp.VerifyCode(pending.CodeHash, req.OTP):
		return nil, s.registerLoginFailure(ctx, u, domain.CodeInvalidOTP, "incorrect OTP", false)
	}

	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{
		"pending_otp":    nil,
		"login_attempts": 0,
		"lock_until":     nil,
		"last_login_at":  nowT.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("finalize login: %w", err)
	}

	token, err := s.signer.Sign(u.UserID, u.MobileNumber, u.Verified)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	llt := nowT.UTC()
	u.PendingOTP = nil
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.LastLoginAt = &llt

	slog.Info("login succeeded", "user_id", u.UserID)
	return &AuthResult{Code: domain.CodeLoginSuccess, Token: token, User: u}, nil
}

// gateUser resolves the user by Aadhaar number and applies the shared gate
// checks in order: existence, verification, active flag, lockout.
func (s *service) gateUser(ctx context.Context, aadhaar string) (*domain.User, error) {
	u, err := s.users.GetByAadhaar(ctx, aadhaar)
	if err != nil {
		return nil, domain.NewAuthError(domain.CodeUserNotFound, "no account for this aadhaar number", domain.ErrNotFound)
	}
	if !u.Verified {
		return nil, domain.NewAuthError(domain.CodeUserNotVerified, "account is not verified", domain.ErrForbidden)
	}
	if !u.Active {
		return nil, domain.NewAuthError(domain.CodeAccountDeactivated, "account is deactivated", domain.ErrForbidden)
	}
	if u.IsLocked(s.now()) {
		ae := domain.NewAuthError(domain.CodeAccountLocked, "account temporarily locked", domain.ErrLocked)
		ae.UnlockAt = u.LockUntil
		return nil, ae
	}
	return u, nil
}

// registerLoginFailure records one failed login: the OTP attempt counter
// advances (the challenge is discarded once exhausted or unusable), the
// cumulative login failure counter advances, and the 5th failure in a row
// locks the account. A previous lock that has already expired restarts the
// count at 1 rather than resuming the old tally.
func (s *service) registerLoginFailure(ctx context.Context, u *domain.User, code, message string, discardOTP bool) error {
	nowT := s.now()
	updates := map[string]interface{}{}

	if u.PendingOTP != nil {
		attempts := u.PendingOTP.Attempts + 1
		if discardOTP || attempts >= s.maxOTPAttempts {
			updates["pending_otp"] = nil
			if code == domain.CodeInvalidOTP && attempts >= s.maxOTPAttempts {
				code = domain.CodeTooManyAttempts
				message = "too many wrong codes, request a new OTP"
			}
		} else {
			refreshed := *u.PendingOTP
			refreshed.Attempts = attempts
			updates["pending_otp"] = &refreshed
		}
	}

	prev := u.LoginAttempts
	if u.LockUntil != nil && !u.IsLocked(nowT) {
		prev = 0
		updates["lock_until"] = nil
	}
	failures := prev + 1
	updates["login_attempts"] = failures

	// The lock-setting failure still reports the failure itself; the caller
	// sees ACCOUNT_LOCKED only on the next attempt, from the gate check.
	if failures >= s.maxLoginFails {
		lockUntil := nowT.Add(s.lockDuration)
		updates["lock_until"] = lockUntil.UTC().Format(time.RFC3339)
		slog.Warn("account locked", "user_id", u.UserID, "unlock_at", lockUntil)
	}

	if err := s.users.Update(ctx, u.UserID, updates); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	remaining := s.maxLoginFails - failures
	if remaining < 0 {
		remaining = 0
	}
	ae := domain.NewAuthError(code, message, domain.ErrUnauthorized)
	ae.RemainingAttempts = &remaining
	return ae
}
