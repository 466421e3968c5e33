package reference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/orms/orms/internal/platform/cache"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/ids"
)

// Cache keys for the catalog lists.
const (
	keyMedications    = "catalog:medications"
	keyDepartments    = "catalog:departments"
	keyServicesAll    = "catalog:services:all"
	keyServicesActive = "catalog:services:active"
)

type Service struct {
	repo          Repository
	tx            db.TxRunner
	catalog       *cache.Catalog
	prescriptions PrescriptionCounter
	doctors       DoctorCounter
}

// NewService builds the reference store. catalog may be nil to disable caching.
func NewService(repo Repository, tx db.TxRunner, catalog *cache.Catalog) *Service {
	if tx == nil {
		tx = db.NopTxRunner{}
	}
	return &Service{repo: repo, tx: tx, catalog: catalog}
}

// SetPrescriptionCounter wires the clinical store for medication restrict checks.
func (s *Service) SetPrescriptionCounter(c PrescriptionCounter) {
	s.prescriptions = c
}

// SetDoctorCounter wires the identity registry for department restrict checks.
func (s *Service) SetDoctorCounter(c DoctorCounter) {
	s.doctors = c
}

// -- Lookups --

func (s *Service) Lookups() Lookups {
	return Lookups{
		Sex:            sexSet.values(),
		GenderIdentity: genderSet.values(),
		VisitStatus:    visitStatusSet.values(),
		PaymentMethod:  paymentMethodSet.values(),
	}
}

// VerifyLookupTables checks that every seeded lookup table holds exactly the
// codes and names of its enum.
func (s *Service) VerifyLookupTables(ctx context.Context) error {
	var problems []string
	for _, t := range lookupTables() {
		rows, err := s.repo.LookupRows(ctx, t)
		if err != nil {
			return err
		}
		want := make(map[int]string, len(t.Values))
		for _, v := range t.Values {
			want[v.Code] = v.Name
			got, ok := rows[v.Code]
			switch {
			case !ok:
				problems = append(problems, fmt.Sprintf("%s: missing code %d (%s)", t.Table, v.Code, v.Name))
			case !strings.EqualFold(got, v.Name):
				problems = append(problems, fmt.Sprintf("%s: code %d is %q, expected %q", t.Table, v.Code, got, v.Name))
			}
		}
		for code, name := range rows {
			if _, ok := want[code]; !ok {
				problems = append(problems, fmt.Sprintf("%s: unexpected code %d (%s)", t.Table, code, name))
			}
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return apperrors.Internal("lookup tables out of sync", fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

// -- Medications --

func normalizeMedication(m *Medication) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return apperrors.Validation("medication", "name", "name is required")
	}
	if m.ID < 0 {
		return apperrors.Validation("medication", "medication_id", "medication_id must be positive")
	}
	m.GenericName = trimOptional(m.GenericName)
	m.Category = trimOptional(m.Category)
	m.CommonDose = trimOptional(m.CommonDose)
	m.CommonFrequency = trimOptional(m.CommonFrequency)
	return nil
}

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	if err := normalizeMedication(m); err != nil {
		return err
	}
	if err := s.repo.CreateMedication(ctx, m); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyMedications)
	return nil
}

func (s *Service) GetMedication(ctx context.Context, id int) (*Medication, error) {
	return s.repo.GetMedication(ctx, id)
}

func (s *Service) MedicationExists(ctx context.Context, id int) (bool, error) {
	return exists(s.repo.GetMedication(ctx, id))
}

// ListMedications serves unfiltered pages from the cached catalog.
func (s *Service) ListMedications(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	if f.Search != "" || f.Category != "" {
		return s.repo.ListMedications(ctx, f, limit, offset)
	}
	all, err := cache.Load(ctx, s.catalog, keyMedications, func(ctx context.Context) ([]*Medication, error) {
		meds, _, err := s.repo.ListMedications(ctx, MedicationFilter{}, 0, 0)
		return meds, err
	})
	if err != nil {
		return nil, 0, err
	}
	return pageOf(all, limit, offset), len(all), nil
}

func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	if err := normalizeMedication(m); err != nil {
		return err
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetMedication(ctx, m.ID); err != nil {
			return err
		}
		if err := s.ensureUnprescribed(ctx, m.ID); err != nil {
			return err
		}
		return s.repo.UpdateMedication(ctx, m)
	})
	if err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyMedications)
	return nil
}

func (s *Service) DeleteMedication(ctx context.Context, id int) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetMedication(ctx, id); err != nil {
			return err
		}
		if err := s.ensureUnprescribed(ctx, id); err != nil {
			return err
		}
		return s.repo.DeleteMedication(ctx, id)
	})
	if err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyMedications)
	return nil
}

func (s *Service) ensureUnprescribed(ctx context.Context, id int) error {
	if s.prescriptions == nil {
		return nil
	}
	n, err := s.prescriptions.CountByMedication(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperrors.Conflict("medication", "medication %d is referenced by %d prescription(s)", id, n)
	}
	return nil
}

// -- Departments --

func normalizeDepartment(d *Department) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Code = strings.TrimSpace(d.Code)
	if d.Name == "" {
		return apperrors.Validation("department", "name", "name is required")
	}
	if d.Code == "" {
		return apperrors.Validation("department", "code", "code is required")
	}
	d.Description = trimOptional(d.Description)
	return nil
}

func (s *Service) CreateDepartment(ctx context.Context, d *Department) error {
	if err := normalizeDepartment(d); err != nil {
		return err
	}
	d.ID = ids.OrNew(d.ID, ids.PrefixDepartment)
	if err := s.repo.CreateDepartment(ctx, d); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyDepartments)
	return nil
}

func (s *Service) GetDepartment(ctx context.Context, id string) (*Department, error) {
	return s.repo.GetDepartment(ctx, id)
}

func (s *Service) DepartmentExists(ctx context.Context, id string) (bool, error) {
	return exists(s.repo.GetDepartment(ctx, id))
}

func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	return cache.Load(ctx, s.catalog, keyDepartments, s.repo.ListDepartments)
}

func (s *Service) UpdateDepartment(ctx context.Context, d *Department) error {
	if err := normalizeDepartment(d); err != nil {
		return err
	}
	if err := s.repo.UpdateDepartment(ctx, d); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyDepartments)
	return nil
}

func (s *Service) DeleteDepartment(ctx context.Context, id string) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetDepartment(ctx, id); err != nil {
			return err
		}
		if s.doctors != nil {
			n, err := s.doctors.CountByDepartment(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperrors.Conflict("department", "department %s has %d doctor(s)", id, n)
			}
		}
		return s.repo.DeleteDepartment(ctx, id)
	})
	if err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyDepartments)
	return nil
}

// -- Medical services --

func normalizeService(m *MedicalService) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return apperrors.Validation("medical_service", "name", "name is required")
	}
	if m.Price < 0 {
		return apperrors.Validation("medical_service", "price", "price must be >= 0")
	}
	return nil
}

func (s *Service) CreateService(ctx context.Context, m *MedicalService) error {
	if err := normalizeService(m); err != nil {
		return err
	}
	m.ID = ids.OrNew(m.ID, ids.PrefixMedicalSvc)
	if err := s.repo.CreateService(ctx, m); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyServicesAll, keyServicesActive)
	return nil
}

func (s *Service) GetService(ctx context.Context, id string) (*MedicalService, error) {
	return s.repo.GetService(ctx, id)
}

func (s *Service) ListServices(ctx context.Context, activeOnly bool) ([]*MedicalService, error) {
	key := keyServicesAll
	if activeOnly {
		key = keyServicesActive
	}
	return cache.Load(ctx, s.catalog, key, func(ctx context.Context) ([]*MedicalService, error) {
		return s.repo.ListServices(ctx, activeOnly)
	})
}

func (s *Service) UpdateService(ctx context.Context, m *MedicalService) error {
	if err := normalizeService(m); err != nil {
		return err
	}
	if err := s.repo.UpdateService(ctx, m); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, keyServicesAll, keyServicesActive)
	return nil
}

// PriceOf returns the price of the active service called name, or fallback
// when the catalog has no such active entry.
func (s *Service) PriceOf(ctx context.Context, name string, fallback float64) (float64, error) {
	svc, err := s.repo.GetServiceByName(ctx, name)
	if apperrors.IsNotFound(err) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	if !svc.Active {
		return fallback, nil
	}
	return svc.Price, nil
}

func exists[T any](_ T, err error) (bool, error) {
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func pageOf[T any](all []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
