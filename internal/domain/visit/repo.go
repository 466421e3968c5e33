package visit

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id string) (*Visit, error)
	// GetForUpdate reads the visit and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error)
	Queue(ctx context.Context, doctorID string) ([]*Visit, error)
	Stats(ctx context.Context, dayStart, dayEnd time.Time) (*Stats, error)

	AddStatusChange(ctx context.Context, sc *StatusChange) error
	StatusHistory(ctx context.Context, visitID string) ([]*StatusChange, error)

	CountByPatient(ctx context.Context, patientID string) (int, error)
	CountByDoctor(ctx context.Context, doctorID string) (int, error)
	CountByCreator(ctx context.Context, userID string) (int, error)
}

// ParticipantChecker confirms the patient, doctor and creating user of a
// visit exist. The identity registry implements it.
type ParticipantChecker interface {
	PatientExists(ctx context.Context, id string) (bool, error)
	DoctorExists(ctx context.Context, id string) (bool, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// ClinicalPurger removes the diagnoses and prescriptions of a visit that is
// being deleted.
type ClinicalPurger interface {
	DeleteByVisit(ctx context.Context, visitID string) error
}

// BillCounter reports how many bills reference a visit.
type BillCounter interface {
	CountByVisit(ctx context.Context, visitID string) (int, error)
}
