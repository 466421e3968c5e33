package clinical

import "time"

// Diagnosis maps to the diagnoses table.
type Diagnosis struct {
	ID            string    `json:"diagnosis_id"`
	VisitID       string    `json:"visit_id"`
	DiagnosisCode string    `json:"diagnosis_code"`
	Description   *string   `json:"description,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DiagnosisPatch carries the fields to change. VisitID is accepted only so a
// request naming another visit can be rejected.
type DiagnosisPatch struct {
	VisitID       *string
	DiagnosisCode *string
	Description   *string
	Notes         *string
}

// Prescription maps to the prescriptions table.
type Prescription struct {
	ID             string    `json:"prescription_id"`
	VisitID        string    `json:"visit_id"`
	MedicationID   int       `json:"medication_id"`
	Dosage         *string   `json:"dosage,omitempty"`
	Frequency      *string   `json:"frequency,omitempty"`
	DurationDays   int       `json:"duration_days"`
	Instructions   *string   `json:"instructions,omitempty"`
	PrescribedDate time.Time `json:"prescribed_date"`
	RefillsAllowed int       `json:"refills_allowed"`
}

type PrescriptionPatch struct {
	VisitID        *string
	MedicationID   *int
	Dosage         *string
	Frequency      *string
	DurationDays   *int
	Instructions   *string
	RefillsAllowed *int
}
