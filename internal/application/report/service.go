package report

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/migrant-health-api/internal/domain"
	"github.com/migrant-health-api/internal/pkg/id"
)

// MaxFileSize caps report uploads at 10 MB.
const MaxFileSize = 10 << 20

// DynamoDB attribute names used in partial update maps.
const (
	fieldReportType    = "report_type"
	fieldReportName    = "report_name"
	fieldReportDate    = "report_date"
	fieldReportDetails = "report_details"
	fieldLabInfo       = "lab_info"
	fieldIsPublic      = "is_public"
	fieldAccessCode    = "access_code"
	fieldStatus        = "status"
	fieldScanCount     = "scan_count"
	fieldLastScannedAt = "last_scanned_at"
)

var allowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// UploadInput bundles the multipart file part with its report metadata.
type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	Meta        domain.CreateReportRequest
}

type Service interface {
	Upload(ctx context.Context, userID string, input UploadInput) (*domain.MedicalReport, error)
	Get(ctx context.Context, userID, reportID string) (*domain.MedicalReport, error)
	List(ctx context.Context, userID, reportType string, limit int, cursor string) ([]domain.ReportSummary, string, error)
	Update(ctx context.Context, userID, reportID string, req domain.UpdateReportRequest) (*domain.MedicalReport, error)
	Delete(ctx context.Context, userID, reportID string) error
	Download(ctx context.Context, userID, reportID string) (io.ReadCloser, *domain.MedicalReport, error)
	AccessByCode(ctx context.Context, code string) (*domain.MedicalReport, error)
}

type reportStore interface {
	Put(ctx context.Context, rep *domain.MedicalReport) error
	Get(ctx context.Context, reportID string) (*domain.MedicalReport, error)
	GetByAccessCode(ctx context.Context, code string) (*domain.MedicalReport, error)
	Update(ctx context.Context, reportID string, updates map[string]interface{}) error
	Delete(ctx context.Context, reportID string) error
	QueryByUser(ctx context.Context, userID, reportType string, limit int32, cursor string) ([]domain.MedicalReport, string, error)
}

type recordStore interface {
	Get(ctx context.Context, recordID string) (*domain.HealthRecord, error)
}

type fileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	reports reportStore
	records recordStore
	files   fileStore
	now     func() time.Time
}

type ServiceDeps struct {
	ReportRepo reportStore
	RecordRepo recordStore
	FileStore  fileStore
	Now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		reports: deps.ReportRepo,
		records: deps.RecordRepo,
		files:   deps.FileStore,
		now:     now,
	}
}

func (s *service) Upload(ctx context.Context, userID string, input UploadInput) (*domain.MedicalReport, error) {
	if input.Size > MaxFileSize {
		return nil, fmt.Errorf("file exceeds 10 MB limit: %w", domain.ErrBadRequest)
	}
	if !allowedTypes[input.ContentType] {
		return nil, fmt.Errorf("unsupported file type %s: %w", input.ContentType, domain.ErrBadRequest)
	}

	// The linked checkup record must exist and belong to the uploader.
	rec, err := s.records.Get(ctx, input.Meta.HealthRecordID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, fmt.Errorf("health record %s: %w", input.Meta.HealthRecordID, domain.ErrNotFound)
	}

	reportDate, err := time.Parse("2006-01-02", input.Meta.ReportDate)
	if err != nil {
		return nil, fmt.Errorf("invalid report_date: %w", domain.ErrBadRequest)
	}

	reportID := id.New()
	safeName := sanitizeFilename(input.Filename)
	key := fmt.Sprintf("reports/%s/%s_%s", userID, reportID, safeName)
	if _, err := s.files.Upload(ctx, key, io.LimitReader(input.Reader, MaxFileSize), input.ContentType); err != nil {
		return nil, fmt.Errorf("store report file: %w", err)
	}

	nowT := s.now().UTC()
	rep := &domain.MedicalReport{
		ReportID:       reportID,
		UserID:         userID,
		HealthRecordID: input.Meta.HealthRecordID,
		ReportType:     input.Meta.ReportType,
		ReportName:     input.Meta.ReportName,
		ReportDate:     reportDate,
		FileInfo: &domain.FileInfo{
			OriginalName: safeName,
			ObjectKey:    key,
			Size:         input.Size,
			ContentType:  input.ContentType,
			UploadedAt:   nowT,
		},
		ReportDetails: input.Meta.ReportDetails,
		LabInfo:       input.Meta.LabInfo,
		IsPublic:      input.Meta.IsPublic,
		Status:        domain.ReportFinal,
		CreatedAt:     nowT,
		UpdatedAt:     nowT,
	}
	if rep.IsPublic {
		rep.AccessCode = id.NewAccessCode()
	}

	if err := s.reports.Put(ctx, rep); err != nil {
		// Do not leave an orphaned object behind.
		_ = s.files.Delete(ctx, key)
		return nil, fmt.Errorf("create report: %w", err)
	}
	return rep, nil
}

func (s *service) Get(ctx context.Context, userID, reportID string) (*domain.MedicalReport, error) {
	return s.owned(ctx, userID, reportID)
}

func (s *service) List(ctx context.Context, userID, reportType string, limit int, cursor string) ([]domain.ReportSummary, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	reps, next, err := s.reports.QueryByUser(ctx, userID, reportType, int32(limit), cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]domain.ReportSummary, 0, len(reps))
	for i := range reps {
		out = append(out, *reps[i].Summary())
	}
	return out, next, nil
}

func (s *service) Update(ctx context.Context, userID, reportID string, req domain.UpdateReportRequest) (*domain.MedicalReport, error) {
	rep, err := s.owned(ctx, userID, reportID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.ReportType != nil {
		updates[fieldReportType] = *req.ReportType
	}
	if req.ReportName != nil {
		updates[fieldReportName] = *req.ReportName
	}
	if req.ReportDate != nil {
		date, err := time.Parse("2006-01-02", *req.ReportDate)
		if err != nil {
			return nil, fmt.Errorf("invalid report_date: %w", domain.ErrBadRequest)
		}
		updates[fieldReportDate] = date.Format(time.RFC3339)
	}
	if req.ReportDetails != nil {
		updates[fieldReportDetails] = req.ReportDetails
	}
	if req.LabInfo != nil {
		updates[fieldLabInfo] = req.LabInfo
	}
	if req.Status != nil {
		updates[fieldStatus] = *req.Status
	}
	if req.IsPublic != nil {
		updates[fieldIsPublic] = *req.IsPublic
		switch {
		case *req.IsPublic && rep.AccessCode == "":
			updates[fieldAccessCode] = id.NewAccessCode()
		case !*req.IsPublic:
			updates[fieldAccessCode] = nil
		}
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrBadRequest)
	}
	if err := s.reports.Update(ctx, reportID, updates); err != nil {
		return nil, err
	}
	return s.reports.Get(ctx, reportID)
}

func (s *service) Delete(ctx context.Context, userID, reportID string) error {
	rep, err := s.owned(ctx, userID, reportID)
	if err != nil {
		return err
	}
	if rep.FileInfo != nil && rep.FileInfo.ObjectKey != "" {
		if err := s.files.Delete(ctx, rep.FileInfo.ObjectKey); err != nil {
			return fmt.Errorf("delete report file: %w", err)
		}
	}
	return s.reports.Delete(ctx, reportID)
}

func (s *service) Download(ctx context.Context, userID, reportID string) (io.ReadCloser, *domain.MedicalReport, error) {
	rep, err := s.owned(ctx, userID, reportID)
	if err != nil {
		return nil, nil, err
	}
	if rep.FileInfo == nil || rep.FileInfo.ObjectKey == "" {
		return nil, nil, fmt.Errorf("report %s has no file: %w", reportID, domain.ErrNotFound)
	}
	rc, err := s.files.Download(ctx, rep.FileInfo.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, rep, nil
}

// AccessByCode resolves a publicly shared report and records the access.
func (s *service) AccessByCode(ctx context.Context, code string) (*domain.MedicalReport, error) {
	rep, err := s.reports.GetByAccessCode(ctx, strings.ToUpper(code))
	if err != nil {
		return nil, err
	}
	if !rep.IsPublic {
		return nil, fmt.Errorf("report sharing disabled: %w", domain.ErrForbidden)
	}

	nowT := s.now().UTC()
	if err := s.reports.Update(ctx, rep.ReportID, map[string]interface{}{
		fieldScanCount:     rep.ScanCount + 1,
		fieldLastScannedAt: nowT.Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("record report access: %w", err)
	}
	rep.ScanCount++
	rep.LastScannedAt = &nowT
	return rep, nil
}

// owned fetches the report and enforces that it belongs to the user. A foreign
// report reads as not-found so report IDs cannot be probed.
func (s *service) owned(ctx context.Context, userID, reportID string) (*domain.MedicalReport, error) {
	rep, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rep.UserID != userID {
		return nil, fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
	}
	return rep, nil
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
