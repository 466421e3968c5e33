package clinical

import (
	"context"
)

type DiagnosisRepository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id string) (*Diagnosis, error)
	Update(ctx context.Context, d *Diagnosis) error
	Delete(ctx context.Context, id string) error
	ListByVisit(ctx context.Context, visitID string) ([]*Diagnosis, error)
	DeleteByVisit(ctx context.Context, visitID string) (int64, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id string) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	Delete(ctx context.Context, id string) error
	ListByVisit(ctx context.Context, visitID string) ([]*Prescription, error)
	DeleteByVisit(ctx context.Context, visitID string) (int64, error)
	CountByMedication(ctx context.Context, medicationID int) (int, error)
}

// VisitChecker confirms the visit a record is attached to exists.
type VisitChecker interface {
	VisitExists(ctx context.Context, id string) (bool, error)
}

// MedicationChecker confirms a prescribed medication is in the catalog.
type MedicationChecker interface {
	MedicationExists(ctx context.Context, id int) (bool, error)
}
