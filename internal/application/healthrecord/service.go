package healthrecord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/migrant-health-api/internal/domain"
	"github.com/migrant-health-api/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldCheckupDate     = "checkup_date"
	fieldCheckupType     = "checkup_type"
	fieldVitals          = "vitals"
	fieldCurrentSymptoms = "current_symptoms"
	fieldDiagnosis       = "diagnosis"
	fieldTreatment       = "treatment"
	fieldDoctor          = "doctor"
	fieldFollowUp        = "follow_up"
	fieldLabResults      = "lab_results"
	fieldNotes           = "notes"
	fieldStatus          = "status"
)

// SearchQuery narrows a record search; empty fields match everything.
type SearchQuery struct {
	Term     string // matched against diagnosis conditions, doctor name, notes
	DateFrom string // YYYY-MM-DD
	DateTo   string // YYYY-MM-DD
}

// RecordSummary condenses a user's history: the latest record plus
// derived views the health-card and dashboard screens share.
type RecordSummary struct {
	Latest           *domain.HealthSummary `json:"latest,omitempty"`
	CurrentDiseases  []domain.Diagnosis    `json:"current_diseases"`
	PastDiseases     []domain.Diagnosis    `json:"past_diseases"`
	RecentLabResults []domain.LabResult    `json:"recent_lab_results"`
	TotalRecords     int                   `json:"total_records"`
}

type Service interface {
	Create(ctx context.Context, userID string, req domain.CreateHealthRecordRequest) (*domain.HealthRecord, error)
	Get(ctx context.Context, userID, recordID string) (*domain.HealthRecord, error)
	List(ctx context.Context, userID, checkupType string, limit int, cursor string) ([]domain.HealthRecord, string, error)
	Update(ctx context.Context, userID, recordID string, req domain.UpdateHealthRecordRequest) (*domain.HealthRecord, error)
	Delete(ctx context.Context, userID, recordID string) error
	Timeline(ctx context.Context, userID string, limit int) ([]domain.HealthSummary, error)
	Search(ctx context.Context, userID string, q SearchQuery) ([]domain.HealthRecord, error)
	Summary(ctx context.Context, userID string) (*RecordSummary, error)
}

type recordStore interface {
	Put(ctx context.Context, rec *domain.HealthRecord) error
	Get(ctx context.Context, recordID string) (*domain.HealthRecord, error)
	Update(ctx context.Context, recordID string, updates map[string]interface{}) error
	Delete(ctx context.Context, recordID string) error
	QueryByUser(ctx context.Context, userID, checkupType string, limit int32, cursor string) ([]domain.HealthRecord, string, error)
	CountByUser(ctx context.Context, userID string) (int32, error)
}

type service struct {
	records recordStore
	now     func() time.Time
}

type ServiceDeps struct {
	RecordRepo recordStore
	Now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{records: deps.RecordRepo, now: now}
}

func (s *service) Create(ctx context.Context, userID string, req domain.CreateHealthRecordRequest) (*domain.HealthRecord, error) {
	date, err := time.Parse("2006-01-02", req.CheckupDate)
	if err != nil {
		return nil, fmt.Errorf("invalid checkup_date: %w", domain.ErrBadRequest)
	}
	nowT := s.now().UTC()
	rec := &domain.HealthRecord{
		RecordID:        id.New(),
		UserID:          userID,
		CheckupDate:     date,
		CheckupType:     req.CheckupType,
		Vitals:          req.Vitals,
		CurrentSymptoms: req.CurrentSymptoms,
		Diagnosis:       req.Diagnosis,
		Treatment:       req.Treatment,
		Doctor:          req.Doctor,
		FollowUp:        req.FollowUp,
		LabResults:      req.LabResults,
		Notes:           req.Notes,
		Status:          domain.RecordActive,
		CreatedAt:       nowT,
		UpdatedAt:       nowT,
	}
	if err := s.records.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("create health record: %w", err)
	}
	return rec, nil
}

func (s *service) Get(ctx context.Context, userID, recordID string) (*domain.HealthRecord, error) {
	return s.owned(ctx, userID, recordID)
}

func (s *service) List(ctx context.Context, userID, checkupType string, limit int, cursor string) ([]domain.HealthRecord, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.records.QueryByUser(ctx, userID, checkupType, int32(limit), cursor)
}

func (s *service) Update(ctx context.Context, userID, recordID string, req domain.UpdateHealthRecordRequest) (*domain.HealthRecord, error) {
	if _, err := s.owned(ctx, userID, recordID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.CheckupDate != nil {
		date, err := time.Parse("2006-01-02", *req.CheckupDate)
		if err != nil {
			return nil, fmt.Errorf("invalid checkup_date: %w", domain.ErrBadRequest)
		}
		updates[fieldCheckupDate] = date.Format(time.RFC3339)
	}
	if req.CheckupType != nil {
		updates[fieldCheckupType] = *req.CheckupType
	}
	if req.Vitals != nil {
		updates[fieldVitals] = req.Vitals
	}
	if req.CurrentSymptoms != nil {
		updates[fieldCurrentSymptoms] = req.CurrentSymptoms
	}
	if req.Diagnosis != nil {
		updates[fieldDiagnosis] = req.Diagnosis
	}
	if req.Treatment != nil {
		updates[fieldTreatment] = req.Treatment
	}
	if req.Doctor != nil {
		updates[fieldDoctor] = req.Doctor
	}
	if req.FollowUp != nil {
		updates[fieldFollowUp] = req.FollowUp
	}
	if req.LabResults != nil {
		updates[fieldLabResults] = req.LabResults
	}
	if req.Notes != nil {
		updates[fieldNotes] = *req.Notes
	}
	if req.Status != nil {
		updates[fieldStatus] = *req.Status
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrBadRequest)
	}
	if err := s.records.Update(ctx, recordID, updates); err != nil {
		return nil, err
	}
	return s.records.Get(ctx, recordID)
}

func (s *service) Delete(ctx context.Context, userID, recordID string) error {
	if _, err := s.owned(ctx, userID, recordID); err != nil {
		return err
	}
	return s.records.Delete(ctx, recordID)
}

func (s *service) Timeline(ctx context.Context, userID string, limit int) ([]domain.HealthSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	recs, _, err := s.records.QueryByUser(ctx, userID, "", int32(limit), "")
	if err != nil {
		return nil, err
	}
	timeline := make([]domain.HealthSummary, 0, len(recs))
	for i := range recs {
		timeline = append(timeline, *recs[i].Summary())
	}
	return timeline, nil
}

func (s *service) Search(ctx context.Context, userID string, q SearchQuery) ([]domain.HealthRecord, error) {
	var from, to time.Time
	var err error
	if q.DateFrom != "" {
		if from, err = time.Parse("2006-01-02", q.DateFrom); err != nil {
			return nil, fmt.Errorf("invalid date_from: %w", domain.ErrBadRequest)
		}
	}
	if q.DateTo != "" {
		if to, err = time.Parse("2006-01-02", q.DateTo); err != nil {
			return nil, fmt.Errorf("invalid date_to: %w", domain.ErrBadRequest)
		}
		to = to.AddDate(0, 0, 1) // inclusive upper bound
	}

	recs, _, err := s.records.QueryByUser(ctx, userID, "", 200, "")
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(q.Term)
	var out []domain.HealthRecord
	for _, rec := range recs {
		if !from.IsZero() && rec.CheckupDate.Before(from) {
			continue
		}
		if !to.IsZero() && !rec.CheckupDate.Before(to) {
			continue
		}
		if term != "" && !matchesTerm(&rec, term) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *service) Summary(ctx context.Context, userID string) (*RecordSummary, error) {
	recs, _, err := s.records.QueryByUser(ctx, userID, "", 200, "")
	if err != nil {
		return nil, err
	}
	count, err := s.records.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := &RecordSummary{TotalRecords: int(count)}
	if len(recs) > 0 {
		sum.Latest = recs[0].Summary()
	}
	for _, rec := range recs {
		for _, diag := range rec.Diagnosis {
			switch diag.Status {
			case domain.DiagnosisActive, domain.DiagnosisChronic, domain.DiagnosisUnderTreatment:
				sum.CurrentDiseases = append(sum.CurrentDiseases, diag)
			case domain.DiagnosisResolved:
				sum.PastDiseases = append(sum.PastDiseases, diag)
			}
		}
	}
	for _, rec := range recs {
		sum.RecentLabResults = append(sum.RecentLabResults, rec.LabResults...)
		if len(sum.RecentLabResults) >= 10 {
			sum.RecentLabResults = sum.RecentLabResults[:10]
			break
		}
	}
	return sum, nil
}

// owned fetches the record and enforces that it belongs to the user. A foreign
// record reads as not-found so record IDs cannot be probed.
func (s *service) owned(ctx context.Context, userID, recordID string) (*domain.HealthRecord, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, fmt.Errorf("health record %s: %w", recordID, domain.ErrNotFound)
	}
	return rec, nil
}

func matchesTerm(rec *domain.HealthRecord, term string) bool {
	for _, diag := range rec.Diagnosis {
		if strings.Contains(strings.ToLower(diag.Condition), term) {
			return true
		}
	}
	if rec.Doctor != nil && strings.Contains(strings.ToLower(rec.Doctor.Name), term) {
		return true
	}
	return strings.Contains(strings.ToLower(rec.Notes), term)
}
