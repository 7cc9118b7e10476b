package domain

import "time"

// QR access levels. Restricted cards require the access token on scan;
// Public and Emergency cards do not.
const (
	QRAccessPublic     = "Public"
	QRAccessRestricted = "Restricted"
	QRAccessEmergency  = "Emergency"
)

// QR card types.
const (
	QRTypeHealthCard     = "Health Card"
	QRTypeEmergency      = "Emergency"
	QRTypeMedicalHistory = "Medical History"
	QRTypeContact        = "Contact"
)

// QRCode is the per-user scannable health card. One per user; the Code is the
// value embedded in the rendered image, the AccessToken gates Restricted scans.
type QRCode struct {
	QRID        string `json:"id" dynamodbav:"qr_id"`
	UserID      string `json:"user_id" dynamodbav:"user_id"`
	Code        string `json:"code" dynamodbav:"code"`
	AccessToken string `json:"-" dynamodbav:"access_token"`
	QRType      string `json:"qr_type" dynamodbav:"qr_type"`
	AccessLevel string `json:"access_level" dynamodbav:"access_level"`

	Valid     bool       `json:"valid" dynamodbav:"valid"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" dynamodbav:"expires_at"`

	ScanCount     int        `json:"scan_count" dynamodbav:"scan_count"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty" dynamodbav:"last_scanned_at"`

	// Snapshot of emergency data baked into the QR payload.
	EmergencyContact   string   `json:"emergency_contact,omitempty" dynamodbav:"emergency_contact"`
	BloodGroup         string   `json:"blood_group,omitempty" dynamodbav:"blood_group"`
	Allergies          []string `json:"allergies,omitempty" dynamodbav:"allergies"`
	CurrentMedications []string `json:"current_medications,omitempty" dynamodbav:"current_medications"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Usable reports whether the card may be scanned at the given instant.
func (q *QRCode) Usable(now time.Time) bool {
	if !q.Valid {
		return false
	}
	return q.ExpiresAt == nil || q.ExpiresAt.After(now)
}

// GenerateQRRequest creates or refreshes the caller's health card.
type GenerateQRRequest struct {
	QRType string `json:"qr_type" validate:"omitempty,oneof='Health Card' 'Emergency' 'Medical History' 'Contact'"`
}

// ScanQRRequest resolves a scanned code to its emergency summary.
type ScanQRRequest struct {
	Code        string `json:"qr_code" validate:"required"`
	AccessToken string `json:"access_token,omitempty"`
}
