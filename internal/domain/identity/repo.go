package identity

import (
	"context"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	GetByLicense(ctx context.Context, license string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error)
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

// VisitCounter reports how many visits reference a patient, doctor or user.
// The visit ledger implements it.
type VisitCounter interface {
	CountByPatient(ctx context.Context, patientID string) (int, error)
	CountByDoctor(ctx context.Context, doctorID string) (int, error)
	CountByCreator(ctx context.Context, userID string) (int, error)
}

// DepartmentChecker confirms a department exists before a doctor joins it.
type DepartmentChecker interface {
	DepartmentExists(ctx context.Context, id string) (bool, error)
}
