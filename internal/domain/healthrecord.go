package domain

import (
	"math"
	"time"
)

// Checkup types accepted on health records.
const (
	CheckupRoutine       = "Routine"
	CheckupEmergency     = "Emergency"
	CheckupFollowUp      = "Follow-up"
	CheckupPreEmployment = "Pre-employment"
	CheckupAnnual        = "Annual"
)

// Diagnosis status values.
const (
	DiagnosisActive         = "Active"
	DiagnosisResolved       = "Resolved"
	DiagnosisChronic        = "Chronic"
	DiagnosisUnderTreatment = "Under Treatment"
)

// Record status values.
const (
	RecordActive    = "Active"
	RecordCompleted = "Completed"
	RecordCancelled = "Cancelled"
)

// Measurement is a numeric reading with its unit ("120 mmHg", "72 bpm", ...).
type Measurement struct {
	Value float64 `json:"value" dynamodbav:"value"`
	Unit  string  `json:"unit,omitempty" dynamodbav:"unit"`
}

type BloodPressure struct {
	Systolic  float64 `json:"systolic" dynamodbav:"systolic"`
	Diastolic float64 `json:"diastolic" dynamodbav:"diastolic"`
	Unit      string  `json:"unit,omitempty" dynamodbav:"unit"`
}

type Vitals struct {
	BloodPressure    *BloodPressure `json:"blood_pressure,omitempty" dynamodbav:"blood_pressure"`
	HeartRate        *Measurement   `json:"heart_rate,omitempty" dynamodbav:"heart_rate"`
	Temperature      *Measurement   `json:"temperature,omitempty" dynamodbav:"temperature"`
	Weight           *Measurement   `json:"weight,omitempty" dynamodbav:"weight"`
	Height           *Measurement   `json:"height,omitempty" dynamodbav:"height"`
	OxygenSaturation *Measurement   `json:"oxygen_saturation,omitempty" dynamodbav:"oxygen_saturation"`
}

type Diagnosis struct {
	Condition string `json:"condition" dynamodbav:"condition"`
	Severity  string `json:"severity,omitempty" dynamodbav:"severity"` // Mild | Moderate | Severe | Critical
	Status    string `json:"status,omitempty" dynamodbav:"status"`
	Notes     string `json:"notes,omitempty" dynamodbav:"notes"`
}

type Medicine struct {
	Name         string `json:"name" dynamodbav:"name"`
	Dosage       string `json:"dosage,omitempty" dynamodbav:"dosage"`
	Frequency    string `json:"frequency,omitempty" dynamodbav:"frequency"`
	Duration     string `json:"duration,omitempty" dynamodbav:"duration"`
	Instructions string `json:"instructions,omitempty" dynamodbav:"instructions"`
}

type Procedure struct {
	Name  string     `json:"name" dynamodbav:"name"`
	Date  *time.Time `json:"date,omitempty" dynamodbav:"date"`
	Notes string     `json:"notes,omitempty" dynamodbav:"notes"`
}

type Treatment struct {
	PrescribedMedicines []Medicine  `json:"prescribed_medicines,omitempty" dynamodbav:"prescribed_medicines"`
	Procedures          []Procedure `json:"procedures,omitempty" dynamodbav:"procedures"`
	Recommendations     []string    `json:"recommendations,omitempty" dynamodbav:"recommendations"`
}

type Doctor struct {
	Name           string `json:"name,omitempty" dynamodbav:"name"`
	Specialization string `json:"specialization,omitempty" dynamodbav:"specialization"`
	LicenseNumber  string `json:"license_number,omitempty" dynamodbav:"license_number"`
	Hospital       string `json:"hospital,omitempty" dynamodbav:"hospital"`
	ContactNumber  string `json:"contact_number,omitempty" dynamodbav:"contact_number"`
}

type FollowUp struct {
	Required        bool       `json:"required" dynamodbav:"required"`
	NextAppointment *time.Time `json:"next_appointment,omitempty" dynamodbav:"next_appointment"`
	Instructions    string     `json:"instructions,omitempty" dynamodbav:"instructions"`
}

type LabResult struct {
	TestName    string     `json:"test_name" dynamodbav:"test_name"`
	Result      string     `json:"result,omitempty" dynamodbav:"result"`
	NormalRange string     `json:"normal_range,omitempty" dynamodbav:"normal_range"`
	Status      string     `json:"status,omitempty" dynamodbav:"status"` // Normal | Abnormal | Critical
	LabName     string     `json:"lab_name,omitempty" dynamodbav:"lab_name"`
	TestDate    *time.Time `json:"test_date,omitempty" dynamodbav:"test_date"`
}

type HealthRecord struct {
	RecordID    string    `json:"id" dynamodbav:"record_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	CheckupDate time.Time `json:"checkup_date" dynamodbav:"checkup_date"`
	CheckupType string    `json:"checkup_type" dynamodbav:"checkup_type"`

	Vitals          *Vitals     `json:"vitals,omitempty" dynamodbav:"vitals"`
	CurrentSymptoms []string    `json:"current_symptoms,omitempty" dynamodbav:"current_symptoms"`
	Diagnosis       []Diagnosis `json:"diagnosis,omitempty" dynamodbav:"diagnosis"`
	Treatment       *Treatment  `json:"treatment,omitempty" dynamodbav:"treatment"`
	Doctor          *Doctor     `json:"doctor,omitempty" dynamodbav:"doctor"`
	FollowUp        *FollowUp   `json:"follow_up,omitempty" dynamodbav:"follow_up"`
	LabResults      []LabResult `json:"lab_results,omitempty" dynamodbav:"lab_results"`
	Notes           string      `json:"notes,omitempty" dynamodbav:"notes"`
	Status          string      `json:"status" dynamodbav:"status"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// BMI computes body mass index from the record's weight (kg) and height (cm).
// Returns 0 when either reading is missing.
func (r *HealthRecord) BMI() float64 {
	if r.Vitals == nil || r.Vitals.Weight == nil || r.Vitals.Height == nil || r.Vitals.Height.Value == 0 {
		return 0
	}
	h := r.Vitals.Height.Value / 100
	return math.Round(r.Vitals.Weight.Value/(h*h)*100) / 100
}

// HealthSummary is the condensed view of a record used by the dashboard and QR scan responses.
type HealthSummary struct {
	CheckupDate time.Time   `json:"checkup_date"`
	CheckupType string      `json:"checkup_type"`
	Vitals      *Vitals     `json:"vitals,omitempty"`
	Diagnosis   []Diagnosis `json:"diagnosis,omitempty"`
	Doctor      *Doctor     `json:"doctor,omitempty"`
	FollowUp    *FollowUp   `json:"follow_up,omitempty"`
	BMI         float64     `json:"bmi,omitempty"`
}

// Summary builds the condensed view of the record.
func (r *HealthRecord) Summary() *HealthSummary {
	return &HealthSummary{
		CheckupDate: r.CheckupDate,
		CheckupType: r.CheckupType,
		Vitals:      r.Vitals,
		Diagnosis:   r.Diagnosis,
		Doctor:      r.Doctor,
		FollowUp:    r.FollowUp,
		BMI:         r.BMI(),
	}
}

// CreateHealthRecordRequest creates a new checkup record.
type CreateHealthRecordRequest struct {
	CheckupDate     string      `json:"checkup_date" validate:"required"` // expected format: YYYY-MM-DD
	CheckupType     string      `json:"checkup_type" validate:"required,oneof=Routine Emergency Follow-up Pre-employment Annual"`
	Vitals          *Vitals     `json:"vitals,omitempty"`
	CurrentSymptoms []string    `json:"current_symptoms,omitempty"`
	Diagnosis       []Diagnosis `json:"diagnosis,omitempty"`
	Treatment       *Treatment  `json:"treatment,omitempty"`
	Doctor          *Doctor     `json:"doctor,omitempty"`
	FollowUp        *FollowUp   `json:"follow_up,omitempty"`
	LabResults      []LabResult `json:"lab_results,omitempty"`
	Notes           string      `json:"notes,omitempty"`
}

// UpdateHealthRecordRequest carries partial updates to an existing record.
type UpdateHealthRecordRequest struct {
	CheckupDate     *string     `json:"checkup_date" validate:"omitempty"`
	CheckupType     *string     `json:"checkup_type" validate:"omitempty,oneof=Routine Emergency Follow-up Pre-employment Annual"`
	Vitals          *Vitals     `json:"vitals"`
	CurrentSymptoms []string    `json:"current_symptoms"`
	Diagnosis       []Diagnosis `json:"diagnosis"`
	Treatment       *Treatment  `json:"treatment"`
	Doctor          *Doctor     `json:"doctor"`
	FollowUp        *FollowUp   `json:"follow_up"`
	LabResults      []LabResult `json:"lab_results"`
	Notes           *string     `json:"notes"`
	Status          *string     `json:"status" validate:"omitempty,oneof=Active Completed Cancelled"`
}
