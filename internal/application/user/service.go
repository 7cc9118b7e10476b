package user

import (
	"context"
	"fmt"
	"time"

	"github.com/migrant-health-api/internal/domain"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldFirstName          = "first_name"
	fieldLastName           = "last_name"
	fieldEmail              = "email"
	fieldAddress            = "address"
	fieldEmergencyContact   = "emergency_contact"
	fieldBloodGroup         = "blood_group"
	fieldAllergies          = "allergies"
	fieldCurrentMedications = "current_medications"
	fieldWorkDetails        = "work_details"
)

// Dashboard aggregates the data the home screen renders in one call.
type Dashboard struct {
	User              *domain.User           `json:"user"`
	RecentRecords     []domain.HealthRecord  `json:"recent_records"`
	RecentReports     []domain.ReportSummary `json:"recent_reports"`
	ActiveConditions  []domain.Diagnosis     `json:"active_conditions"`
	UpcomingFollowUps []domain.FollowUp      `json:"upcoming_follow_ups"`
	Statistics        *Statistics            `json:"statistics"`
}

// Statistics holds record and report counts, optionally limited to a period.
type Statistics struct {
	Period        string         `json:"period"`
	TotalRecords  int            `json:"total_records"`
	TotalReports  int            `json:"total_reports"`
	ByCheckupType map[string]int `json:"by_checkup_type"`
	ByReportType  map[string]int `json:"by_report_type"`
	LastCheckup   *time.Time     `json:"last_checkup,omitempty"`
}

type Service interface {
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	GetDashboard(ctx context.Context, userID string) (*Dashboard, error)
	GetStatistics(ctx context.Context, userID, period string) (*Statistics, error)
	Deactivate(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Deactivate(ctx context.Context, userID string) error
}

type recordStore interface {
	QueryByUser(ctx context.Context, userID, checkupType string, limit int32, cursor string) ([]domain.HealthRecord, string, error)
}

type reportStore interface {
	QueryByUser(ctx context.Context, userID, reportType string, limit int32, cursor string) ([]domain.MedicalReport, string, error)
}

type qrStore interface {
	GetByUser(ctx context.Context, userID string) (*domain.QRCode, error)
	Invalidate(ctx context.Context, qrID string) error
}

type service struct {
	users   userStore
	records recordStore
	reports reportStore
	qrCodes qrStore
	now     func() time.Time
}

type ServiceDeps struct {
	UserRepo   userStore
	RecordRepo recordStore
	ReportRepo reportStore
	QRRepo     qrStore
	Now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:   deps.UserRepo,
		records: deps.RecordRepo,
		reports: deps.ReportRepo,
		qrCodes: deps.QRRepo,
		now:     now,
	}
}

func (s *service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrForbidden)
	}
	return u, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates[fieldFirstName] = *req.FirstName
	}
	if req.LastName != nil {
		updates[fieldLastName] = *req.LastName
	}
	if req.Email != nil {
		updates[fieldEmail] = *req.Email
	}
	if req.Address != nil {
		updates[fieldAddress] = req.Address
	}
	if req.EmergencyContact != nil {
		updates[fieldEmergencyContact] = req.EmergencyContact
	}
	if req.BloodGroup != nil {
		updates[fieldBloodGroup] = *req.BloodGroup
	}
	if req.Allergies != nil {
		updates[fieldAllergies] = req.Allergies
	}
	if req.CurrentMedications != nil {
		updates[fieldCurrentMedications] = req.CurrentMedications
	}
	if req.WorkDetails != nil {
		updates[fieldWorkDetails] = req.WorkDetails
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrBadRequest)
	}
	if err := s.users.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, userID)
}

func (s *service) GetDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, _, err := s.records.QueryByUser(ctx, userID, "", 50, "")
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	reports, _, err := s.reports.QueryByUser(ctx, userID, "", 50, "")
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}

	d := &Dashboard{
		User:          u,
		RecentRecords: records,
		Statistics:    buildStatistics("all", records, reports, s.now()),
	}
	if len(d.RecentRecords) > 5 {
		d.RecentRecords = d.RecentRecords[:5]
	}
	for i, rep := range reports {
		if i == 5 {
			break
		}
		d.RecentReports = append(d.RecentReports, *rep.Summary())
	}

	nowT := s.now()
	for _, rec := range records {
		for _, diag := range rec.Diagnosis {
			if diag.Status == domain.DiagnosisActive || diag.Status == domain.DiagnosisChronic {
				d.ActiveConditions = append(d.ActiveConditions, diag)
			}
		}
		if rec.FollowUp != nil && rec.FollowUp.Required &&
			rec.FollowUp.NextAppointment != nil && rec.FollowUp.NextAppointment.After(nowT) {
			d.UpcomingFollowUps = append(d.UpcomingFollowUps, *rec.FollowUp)
		}
	}
	return d, nil
}

func (s *service) GetStatistics(ctx context.Context, userID, period string) (*Statistics, error) {
	switch period {
	case "", "all", "week", "month", "year":
	default:
		return nil, fmt.Errorf("unknown period %q: %w", period, domain.ErrBadRequest)
	}
	if period == "" {
		period = "all"
	}

	records, _, err := s.records.QueryByUser(ctx, userID, "", 200, "")
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	reports, _, err := s.reports.QueryByUser(ctx, userID, "", 200, "")
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	return buildStatistics(period, records, reports, s.now()), nil
}

func (s *service) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	// A deactivated account must not stay reachable through its health card.
	if qr, err := s.qrCodes.GetByUser(ctx, userID); err == nil {
		if err := s.qrCodes.Invalidate(ctx, qr.QRID); err != nil {
			return fmt.Errorf("invalidate qr code: %w", err)
		}
	}
	return nil
}

func periodStart(period string, now time.Time) (time.Time, bool) {
	switch period {
	case "week":
		return now.AddDate(0, 0, -7), true
	case "month":
		return now.AddDate(0, -1, 0), true
	case "year":
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

func buildStatistics(period string, records []domain.HealthRecord, reports []domain.MedicalReport, now time.Time) *Statistics {
	st := &Statistics{
		Period:        period,
		ByCheckupType: map[string]int{},
		ByReportType:  map[string]int{},
	}
	start, bounded := periodStart(period, now)

	for _, rec := range records {
		if bounded && rec.CheckupDate.Before(start) {
			continue
		}
		st.TotalRecords++
		st.ByCheckupType[rec.CheckupType]++
		if st.LastCheckup == nil || rec.CheckupDate.After(*st.LastCheckup) {
			d := rec.CheckupDate
			st.LastCheckup = &d
		}
	}
	for _, rep := range reports {
		if bounded && rep.ReportDate.Before(start) {
			continue
		}
		st.TotalReports++
		st.ByReportType[rep.ReportType]++
	}
	return st
}
