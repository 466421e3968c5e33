package reference

import (
	"context"
)

// MedicationFilter narrows ListMedications. Empty fields match everything.
type MedicationFilter struct {
	Search   string
	Category string
}

type Repository interface {
	// Lookup tables
	LookupRows(ctx context.Context, table LookupTable) (map[int]string, error)

	// Medications
	CreateMedication(ctx context.Context, m *Medication) error
	GetMedication(ctx context.Context, id int) (*Medication, error)
	ListMedications(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error)
	UpdateMedication(ctx context.Context, m *Medication) error
	DeleteMedication(ctx context.Context, id int) error

	// Departments
	CreateDepartment(ctx context.Context, d *Department) error
	GetDepartment(ctx context.Context, id string) (*Department, error)
	ListDepartments(ctx context.Context) ([]*Department, error)
	UpdateDepartment(ctx context.Context, d *Department) error
	DeleteDepartment(ctx context.Context, id string) error

	// Medical services
	CreateService(ctx context.Context, s *MedicalService) error
	GetService(ctx context.Context, id string) (*MedicalService, error)
	GetServiceByName(ctx context.Context, name string) (*MedicalService, error)
	ListServices(ctx context.Context, activeOnly bool) ([]*MedicalService, error)
	UpdateService(ctx context.Context, s *MedicalService) error
}

// PrescriptionCounter reports how many prescriptions reference a medication.
type PrescriptionCounter interface {
	CountByMedication(ctx context.Context, medicationID int) (int, error)
}

// DoctorCounter reports how many doctors belong to a department.
type DoctorCounter interface {
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
}
