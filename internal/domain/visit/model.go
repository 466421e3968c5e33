package visit

import (
	"time"

	"github.com/orms/orms/internal/domain/reference"
)

// Visit maps to the visits table.
type Visit struct {
	ID              string                `json:"visit_id"`
	PatientID       string                `json:"patient_id"`
	DoctorID        string                `json:"doctor_id"`
	VisitDatetime   time.Time             `json:"visit_datetime"`
	CheckInDatetime *time.Time            `json:"check_in_datetime,omitempty"`
	DurationMinutes *int                  `json:"duration_minutes,omitempty"`
	ChiefComplaint  *string               `json:"chief_complaint,omitempty"`
	Status          reference.VisitStatus `json:"status"`
	Notes           *string               `json:"notes,omitempty"`
	FollowUpDate    *time.Time            `json:"follow_up_date,omitempty"`
	CreatedByUserID string                `json:"created_by_user_id"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Patch carries the fields to change; nil leaves a field untouched.
type Patch struct {
	VisitDatetime   *time.Time
	DoctorID        *string
	DurationMinutes *int
	ChiefComplaint  *string
	Notes           *string
	FollowUpDate    *time.Time
}

// Filter narrows ListVisits. Zero values match everything.
type Filter struct {
	PatientID string
	DoctorID  string
	Status    *reference.VisitStatus
	From      *time.Time
	To        *time.Time
}

// StatusChange maps to the visit_status_history table. From is nil for the
// row written when the visit is created.
type StatusChange struct {
	ID        int64                  `json:"history_id"`
	VisitID   string                 `json:"visit_id"`
	From      *reference.VisitStatus `json:"from_status,omitempty"`
	To        reference.VisitStatus  `json:"to_status"`
	ChangedAt time.Time              `json:"changed_at"`
}

// Stats are the front-desk dashboard counters. Every patient counts toward
// Total; the other counters look at each patient's latest visit only.
type Stats struct {
	Total     int `json:"total"`
	CheckedIn int `json:"checked_in"`
	Waiting   int `json:"waiting"`
	Completed int `json:"completed"`
	NewToday  int `json:"new_today"`
}
