package qr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/migrant-health-api/internal/domain"
	"github.com/migrant-health-api/internal/pkg/id"
	pkgtoken "github.com/migrant-health-api/internal/pkg/token"
	qrcode "github.com/skip2/go-qrcode"
)

// imageSize is the pixel width of the rendered PNG.
const imageSize = 256

// Card is a QR record together with its rendered image.
type Card struct {
	QR       *domain.QRCode `json:"qr"`
	ImageURI string         `json:"qr_image"` // data:image/png;base64,...
}

// ScanResult is what a scanner sees: the card holder's emergency info plus
// recent medical context.
type ScanResult struct {
	Name               string                 `json:"name"`
	BloodGroup         string                 `json:"blood_group,omitempty"`
	EmergencyContact   string                 `json:"emergency_contact,omitempty"`
	Allergies          []string               `json:"allergies,omitempty"`
	CurrentMedications []string               `json:"current_medications,omitempty"`
	LatestRecord       *domain.HealthSummary  `json:"latest_record,omitempty"`
	RecentReports      []domain.ReportSummary `json:"recent_reports,omitempty"`
	ScannedAt          time.Time              `json:"scanned_at"`
}

// qrPayload is the JSON embedded in the rendered image.
type qrPayload struct {
	Code       string `json:"code"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	BloodGroup string `json:"blood_group,omitempty"`
	Emergency  string `json:"emergency_contact,omitempty"`
}

type Service interface {
	Generate(ctx context.Context, userID string, req domain.GenerateQRRequest) (*Card, error)
	GetCard(ctx context.Context, userID string) (*Card, error)
	Scan(ctx context.Context, req domain.ScanQRRequest) (*ScanResult, error)
}

type qrStore interface {
	Put(ctx context.Context, qr *domain.QRCode) error
	GetByUser(ctx context.Context, userID string) (*domain.QRCode, error)
	GetByCode(ctx context.Context, code string) (*domain.QRCode, error)
	Update(ctx context.Context, qrID string, updates map[string]interface{}) error
	Invalidate(ctx context.Context, qrID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type recordStore interface {
	Latest(ctx context.Context, userID string) (*domain.HealthRecord, error)
}

type reportStore interface {
	QueryByUser(ctx context.Context, userID, reportType string, limit int32, cursor string) ([]domain.MedicalReport, string, error)
}

type service struct {
	qrCodes qrStore
	users   userStore
	records recordStore
	reports reportStore
	now     func() time.Time
}

type ServiceDeps struct {
	QRRepo     qrStore
	UserRepo   userStore
	RecordRepo recordStore
	ReportRepo reportStore
	Now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		qrCodes: deps.QRRepo,
		users:   deps.UserRepo,
		records: deps.RecordRepo,
		reports: deps.ReportRepo,
		now:     now,
	}
}

func (s *service) Generate(ctx context.Context, userID string, req domain.GenerateQRRequest) (*Card, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrForbidden)
	}

	qrType := req.QRType
	if qrType == "" {
		qrType = domain.QRTypeHealthCard
	}

	// Reuse a live card of the same type instead of minting a new one.
	if existing, err := s.qrCodes.GetByUser(ctx, userID); err == nil {
		if existing.Usable(s.now()) && existing.QRType == qrType {
			return s.render(u, existing)
		}
		if err := s.qrCodes.Invalidate(ctx, existing.QRID); err != nil {
			return nil, fmt.Errorf("retire old qr code: %w", err)
		}
	}

	accessToken, err := pkgtoken.NewAccessToken()
	if err != nil {
		return nil, err
	}

	nowT := s.now().UTC()
	qr := &domain.QRCode{
		QRID:        id.New(),
		UserID:      userID,
		Code:        "MH" + id.New(),
		AccessToken: accessToken,
		QRType:      qrType,
		AccessLevel: domain.QRAccessEmergency,
		Valid:       true,

		EmergencyContact:   emergencyContact(u),
		BloodGroup:         u.BloodGroup,
		Allergies:          u.Allergies,
		CurrentMedications: u.CurrentMedications,

		CreatedAt: nowT,
		UpdatedAt: nowT,
	}
	if err := s.qrCodes.Put(ctx, qr); err != nil {
		return nil, fmt.Errorf("create qr code: %w", err)
	}
	return s.render(u, qr)
}

func (s *service) GetCard(ctx context.Context, userID string) (*Card, error) {
	qr, err := s.qrCodes.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !qr.Usable(s.now()) {
		return nil, fmt.Errorf("qr code expired or revoked: %w", domain.ErrNotFound)
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.render(u, qr)
}

func (s *service) Scan(ctx context.Context, req domain.ScanQRRequest) (*ScanResult, error) {
	qr, err := s.qrCodes.GetByCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("unknown qr code: %w", domain.ErrNotFound)
	}
	if !qr.Usable(s.now()) {
		return nil, fmt.Errorf("qr code expired or revoked: %w", domain.ErrForbidden)
	}
	if qr.AccessLevel == domain.QRAccessRestricted && req.AccessToken != qr.AccessToken {
		return nil, fmt.Errorf("access token required: %w", domain.ErrForbidden)
	}

	u, err := s.users.Get(ctx, qr.UserID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrForbidden)
	}

	nowT := s.now().UTC()
	if err := s.qrCodes.Update(ctx, qr.QRID, map[string]interface{}{
		"scan_count":      qr.ScanCount + 1,
		"last_scanned_at": nowT.Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("record scan: %w", err)
	}

	res := &ScanResult{
		Name:               u.FullName(),
		BloodGroup:         u.BloodGroup,
		EmergencyContact:   emergencyContact(u),
		Allergies:          u.Allergies,
		CurrentMedications: u.CurrentMedications,
		ScannedAt:          nowT,
	}

	if latest, err := s.records.Latest(ctx, qr.UserID); err == nil {
		res.LatestRecord = latest.Summary()
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	reps, _, err := s.reports.QueryByUser(ctx, qr.UserID, "", 3, "")
	if err != nil {
		return nil, err
	}
	for i := range reps {
		res.RecentReports = append(res.RecentReports, *reps[i].Summary())
	}
	return res, nil
}

// render encodes the card payload as a PNG data URL.
func (s *service) render(u *domain.User, qr *domain.QRCode) (*Card, error) {
	payload, err := json.Marshal(qrPayload{
		Code:       qr.Code,
		Type:       qr.QRType,
		Name:       u.FullName(),
		BloodGroup: qr.BloodGroup,
		Emergency:  qr.EmergencyContact,
	})
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, imageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr image: %w", err)
	}
	return &Card{
		QR:       qr,
		ImageURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

func emergencyContact(u *domain.User) string {
	if u.EmergencyContact == nil {
		return ""
	}
	c := u.EmergencyContact
	if c.Name != "" && c.MobileNumber != "" {
		return c.Name + " " + c.MobileNumber
	}
	if c.MobileNumber != "" {
		return c.MobileNumber
	}
	return c.Name
}
