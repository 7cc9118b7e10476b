package domain

import "time"

// Report types accepted on medical reports.
var ReportTypes = []string{
	"Blood Test", "X-Ray", "CT Scan", "MRI", "ECG",
	"Ultrasound", "Pathology", "Microbiology", "Other",
}

// Report lifecycle status values.
const (
	ReportDraft    = "Draft"
	ReportFinal    = "Final"
	ReportArchived = "Archived"
)

// FileInfo describes the uploaded report document stored in the object store.
type FileInfo struct {
	OriginalName string    `json:"original_name" dynamodbav:"original_name"`
	ObjectKey    string    `json:"-" dynamodbav:"object_key"`
	Size         int64     `json:"size" dynamodbav:"size"`
	ContentType  string    `json:"content_type" dynamodbav:"content_type"`
	UploadedAt   time.Time `json:"uploaded_at" dynamodbav:"uploaded_at"`
}

// ReportDetails holds the clinical content of the report.
type ReportDetails struct {
	Findings        string `json:"findings,omitempty" dynamodbav:"findings"`
	Conclusion      string `json:"conclusion,omitempty" dynamodbav:"conclusion"`
	Recommendations string `json:"recommendations,omitempty" dynamodbav:"recommendations"`
	NormalRange     string `json:"normal_range,omitempty" dynamodbav:"normal_range"`
	ActualValue     string `json:"actual_value,omitempty" dynamodbav:"actual_value"`
	Status          string `json:"status,omitempty" dynamodbav:"status"` // Normal | Abnormal | Critical | Pending
}

// LabInfo identifies the issuing lab or hospital.
type LabInfo struct {
	Name          string `json:"name,omitempty" dynamodbav:"name"`
	Address       string `json:"address,omitempty" dynamodbav:"address"`
	ContactNumber string `json:"contact_number,omitempty" dynamodbav:"contact_number"`
	LicenseNumber string `json:"license_number,omitempty" dynamodbav:"license_number"`
	DoctorName    string `json:"doctor_name,omitempty" dynamodbav:"doctor_name"`
}

type MedicalReport struct {
	ReportID       string    `json:"id" dynamodbav:"report_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	HealthRecordID string    `json:"health_record_id" dynamodbav:"health_record_id"`
	ReportType     string    `json:"report_type" dynamodbav:"report_type"`
	ReportName     string    `json:"report_name" dynamodbav:"report_name"`
	ReportDate     time.Time `json:"report_date" dynamodbav:"report_date"`

	FileInfo      *FileInfo      `json:"file_info,omitempty" dynamodbav:"file_info"`
	ReportDetails *ReportDetails `json:"report_details,omitempty" dynamodbav:"report_details"`
	LabInfo       *LabInfo       `json:"lab_info,omitempty" dynamodbav:"lab_info"`

	// Public reports are reachable without auth via AccessCode (QR-linked sharing).
	IsPublic   bool   `json:"is_public" dynamodbav:"is_public"`
	AccessCode string `json:"access_code,omitempty" dynamodbav:"access_code"`
	Status     string `json:"status" dynamodbav:"status"`

	ScanCount     int        `json:"scan_count" dynamodbav:"scan_count"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty" dynamodbav:"last_scanned_at"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// ReportSummary is the condensed listing/QR view of a report.
type ReportSummary struct {
	ReportID   string    `json:"id"`
	ReportType string    `json:"report_type"`
	ReportName string    `json:"report_name"`
	ReportDate time.Time `json:"report_date"`
	Status     string    `json:"status"`
	AccessCode string    `json:"access_code,omitempty"`
}

// Summary builds the condensed view of the report.
func (r *MedicalReport) Summary() *ReportSummary {
	return &ReportSummary{
		ReportID:   r.ReportID,
		ReportType: r.ReportType,
		ReportName: r.ReportName,
		ReportDate: r.ReportDate,
		Status:     r.Status,
		AccessCode: r.AccessCode,
	}
}

// CreateReportRequest carries the metadata fields of a report upload.
// The file itself arrives as a multipart part alongside these fields.
type CreateReportRequest struct {
	HealthRecordID string `json:"health_record_id" validate:"required"`
	ReportType     string `json:"report_type" validate:"required,oneof='Blood Test' 'X-Ray' 'CT Scan' 'MRI' 'ECG' 'Ultrasound' 'Pathology' 'Microbiology' 'Other'"`
	ReportName     string `json:"report_name" validate:"required"`
	ReportDate     string `json:"report_date" validate:"required"` // expected format: YYYY-MM-DD

	ReportDetails *ReportDetails `json:"report_details,omitempty"`
	LabInfo       *LabInfo       `json:"lab_info,omitempty"`
	IsPublic      bool           `json:"is_public,omitempty"`
}

// UpdateReportRequest carries partial updates to a report's metadata.
type UpdateReportRequest struct {
	ReportType    *string        `json:"report_type"`
	ReportName    *string        `json:"report_name"`
	ReportDate    *string        `json:"report_date"`
	ReportDetails *ReportDetails `json:"report_details"`
	LabInfo       *LabInfo       `json:"lab_info"`
	IsPublic      *bool          `json:"is_public"`
	Status        *string        `json:"status" validate:"omitempty,oneof=Draft Final Archived"`
}
