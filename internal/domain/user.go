package domain

import "time"

// Gender values accepted at registration.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// BloodGroups is the closed set of accepted blood group values.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// PendingOTP is the time-boxed, attempt-limited login challenge attached to a
// user record between "code issued" and "code consumed". Only a bcrypt hash of
// the code is persisted. A PendingOTP past its ExpiresAt is treated as absent.
type PendingOTP struct {
	CodeHash  string `json:"-" dynamodbav:"code_hash"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	Attempts  int    `json:"attempts" dynamodbav:"attempts"`
}

// Address holds the user's residential address.
type Address struct {
	Street   string `json:"street,omitempty" dynamodbav:"street"`
	City     string `json:"city,omitempty" dynamodbav:"city"`
	District string `json:"district,omitempty" dynamodbav:"district"`
	State    string `json:"state,omitempty" dynamodbav:"state"`
	Pincode  string `json:"pincode,omitempty" dynamodbav:"pincode"`
	Country  string `json:"country,omitempty" dynamodbav:"country"`
}

// EmergencyContact is the person to reach when the health card is scanned in an emergency.
type EmergencyContact struct {
	Name         string `json:"name,omitempty" dynamodbav:"name"`
	Relationship string `json:"relationship,omitempty" dynamodbav:"relationship"`
	MobileNumber string `json:"mobile_number,omitempty" dynamodbav:"mobile_number"`
}

// WorkDetails holds employment information for migrant-worker records.
type WorkDetails struct {
	Occupation   string `json:"occupation,omitempty" dynamodbav:"occupation"`
	Employer     string `json:"employer,omitempty" dynamodbav:"employer"`
	WorkLocation string `json:"work_location,omitempty" dynamodbav:"work_location"`
	WorkID       string `json:"work_id,omitempty" dynamodbav:"work_id"`
}

type User struct {
	UserID        string    `json:"id" dynamodbav:"user_id"`
	FirstName     string    `json:"first_name" dynamodbav:"first_name"`
	LastName      string    `json:"last_name" dynamodbav:"last_name"`
	MobileNumber  string    `json:"mobile_number" dynamodbav:"mobile_number"`
	AadhaarNumber string    `json:"-" dynamodbav:"aadhaar_number"`
	Email         string    `json:"email,omitempty" dynamodbav:"email"`
	DateOfBirth   time.Time `json:"date_of_birth" dynamodbav:"date_of_birth"`
	Gender        string    `json:"gender" dynamodbav:"gender"`

	Address          *Address          `json:"address,omitempty" dynamodbav:"address"`
	EmergencyContact *EmergencyContact `json:"emergency_contact,omitempty" dynamodbav:"emergency_contact"`
	WorkDetails      *WorkDetails      `json:"work_details,omitempty" dynamodbav:"work_details"`

	BloodGroup         string   `json:"blood_group,omitempty" dynamodbav:"blood_group"`
	Allergies          []string `json:"allergies,omitempty" dynamodbav:"allergies"`
	CurrentMedications []string `json:"current_medications,omitempty" dynamodbav:"current_medications"`

	Verified      bool        `json:"verified" dynamodbav:"verified"`
	Active        bool        `json:"active" dynamodbav:"active"`
	LastLoginAt   *time.Time  `json:"last_login_at,omitempty" dynamodbav:"last_login_at"`
	LoginAttempts int         `json:"-" dynamodbav:"login_attempts"`
	LockUntil     *time.Time  `json:"-" dynamodbav:"lock_until"`
	PendingOTP    *PendingOTP `json:"-" dynamodbav:"pending_otp"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// FullName returns "FirstName LastName".
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsLocked reports whether the lockout window is still open at the given instant.
// Expired locks are not cleared here; clearing happens lazily on the next attempt.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// RegistrationChallengeRequest starts the OTP-gated registration flow.
type RegistrationChallengeRequest struct {
	MobileNumber  string `json:"mobile_number" validate:"required,in_mobile"`
	AadhaarNumber string `json:"aadhaar_number" validate:"required,aadhaar"`
}

// CompleteRegistrationRequest confirms the registration OTP and supplies the profile.
type CompleteRegistrationRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required,in_mobile"`
	OTP          string `json:"otp" validate:"required,len=6,numeric"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	DateOfBirth  string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender       string `json:"gender" validate:"required,oneof=Male Female Other"`

	Email              string            `json:"email,omitempty" validate:"omitempty,email"`
	Address            *Address          `json:"address,omitempty"`
	EmergencyContact   *EmergencyContact `json:"emergency_contact,omitempty"`
	BloodGroup         string            `json:"blood_group,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies          []string          `json:"allergies,omitempty"`
	CurrentMedications []string          `json:"current_medications,omitempty"`
	WorkDetails        *WorkDetails      `json:"work_details,omitempty"`
}

// LoginChallengeRequest starts the OTP-gated login flow.
type LoginChallengeRequest struct {
	AadhaarNumber string `json:"aadhaar_number" validate:"required,aadhaar"`
}

// ConfirmLoginRequest submits the login OTP.
type ConfirmLoginRequest struct {
	AadhaarNumber string `json:"aadhaar_number" validate:"required,aadhaar"`
	OTP           string `json:"otp" validate:"required,len=6,numeric"`
}

// UpdateProfileRequest carries the profile fields a user may change after registration.
// Mobile and Aadhaar numbers are immutable once verified and are deliberately absent.
type UpdateProfileRequest struct {
	FirstName          *string           `json:"first_name"`
	LastName           *string           `json:"last_name"`
	Email              *string           `json:"email" validate:"omitempty,email"`
	Address            *Address          `json:"address"`
	EmergencyContact   *EmergencyContact `json:"emergency_contact"`
	BloodGroup         *string           `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies          []string          `json:"allergies"`
	CurrentMedications []string          `json:"current_medications"`
	WorkDetails        *WorkDetails      `json:"work_details"`
}
