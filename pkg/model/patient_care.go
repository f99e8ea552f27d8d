package model

import "time"

// Remark categories a doctor can file against a patient record.
const (
	RemarkGeneral      = "general"
	RemarkSessionNotes = "session_notes"
	RemarkDiagnosis    = "diagnosis"
	RemarkImprovement  = "improvement"
	RemarkConcern      = "concern"
	RemarkFollowUp     = "follow_up"
)

// Medication statuses.
const (
	MedicationActive       = "active"
	MedicationCompleted    = "completed"
	MedicationDiscontinued = "discontinued"
)

type Remark struct {
	DoctorID  string    `json:"doctor_id" bson:"doctor_id" validate:"required,mongodb"`
	Body      string    `json:"body" bson:"body" validate:"required,min=2,max=5000"`
	Type      string    `json:"type" bson:"type" validate:"required,oneof=general session_notes diagnosis improvement concern follow_up"`
	Private   bool      `json:"private" bson:"private"`
	BookingID string    `json:"booking_id,omitempty" bson:"booking_id,omitempty" validate:"omitempty,mongodb"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type Medication struct {
	Name         string     `json:"name" bson:"name" validate:"required,min=2,max=200"`
	Dosage       string     `json:"dosage" bson:"dosage" validate:"required,min=1,max=100"`
	Frequency    string     `json:"frequency" bson:"frequency" validate:"required,min=1,max=100"`
	Instructions string     `json:"instructions,omitempty" bson:"instructions,omitempty" validate:"omitempty,max=1000"`
	PrescribedBy string     `json:"prescribed_by" bson:"prescribed_by" validate:"required,mongodb"`
	Status       string     `json:"status" bson:"status" validate:"required,oneof=active completed discontinued"`
	StartDate    time.Time  `json:"start_date" bson:"start_date" validate:"omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty" bson:"end_date,omitempty" validate:"omitempty"`
}

// PatientCare is the doctor-side care document, one per patient.
type PatientCare struct {
	ID          string       `json:"id,omitempty" bson:"_id,omitempty"`
	PatientID   string       `json:"patient_id" bson:"patient_id"`
	Remarks     []Remark     `json:"remarks" bson:"remarks"`
	Medications []Medication `json:"medications" bson:"medications"`
	RiskLevel   string       `json:"risk_level" bson:"risk_level"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" bson:"updated_at"`
}
