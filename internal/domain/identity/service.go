package identity

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/ids"
)

const minPasswordLength = 6

type Service struct {
	patients    PatientRepository
	doctors     DoctorRepository
	users       UserRepository
	tx          db.TxRunner
	departments DepartmentChecker
	visits      VisitCounter
	bcryptCost  int
	now         func() time.Time
}

func NewService(patients PatientRepository, doctors DoctorRepository, users UserRepository,
	tx db.TxRunner, departments DepartmentChecker, bcryptCost int) *Service {
	if tx == nil {
		tx = db.NopTxRunner{}
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		patients:    patients,
		doctors:     doctors,
		users:       users,
		tx:          tx,
		departments: departments,
		bcryptCost:  bcryptCost,
		now:         time.Now,
	}
}

// SetVisitCounter attaches the visit ledger used by the delete restrict checks.
func (s *Service) SetVisitCounter(vc VisitCounter) {
	s.visits = vc
}

// -- Patient --

func (s *Service) validatePatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.FirstName == "" || p.LastName == "" {
		return apperrors.Validation("patient", "name", "first_name and last_name are required")
	}
	if p.DateOfBirth.IsZero() {
		return apperrors.Validation("patient", "date_of_birth", "date_of_birth is required")
	}
	if p.DateOfBirth.After(s.now()) {
		return apperrors.Validation("patient", "date_of_birth", "date_of_birth cannot be in the future")
	}
	if err := reference.CheckAssigned("patient", "sex", p.Sex); err != nil {
		return err
	}
	if p.GenderIdentity != nil {
		if err := reference.CheckAssigned("patient", "gender_identity", *p.GenderIdentity); err != nil {
			return err
		}
	}
	if p.Phone == "" {
		return apperrors.Validation("patient", "phone", "phone is required")
	}
	p.Email = trimOptional(p.Email)
	if p.Email != nil && !strings.Contains(*p.Email, "@") {
		return apperrors.Validation("patient", "email", "invalid email %q", *p.Email)
	}
	p.Address = trimOptional(p.Address)
	p.EmergencyContactName = trimOptional(p.EmergencyContactName)
	p.EmergencyContactRelationship = trimOptional(p.EmergencyContactRelationship)
	p.EmergencyContactPhone = trimOptional(p.EmergencyContactPhone)
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validatePatient(p); err != nil {
		return err
	}
	p.ID = ids.OrNew(p.ID, ids.PrefixPatient)
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) PatientExists(ctx context.Context, id string) (bool, error) {
	return exists(s.patients.GetByID(ctx, id))
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, PatientFilter{}, limit, offset)
}

// SearchPatients matches query against full name or phone.
func (s *Service) SearchPatients(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	if f.Sex != nil && !f.Sex.Valid() {
		return nil, 0, apperrors.Validation("patient", "sex", "unknown sex")
	}
	return s.patients.List(ctx, f, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, id string, patch PatientPatch) (*Patient, error) {
	var out *Patient
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return err
		}
		p := *cur
		applyPatientPatch(&p, patch)
		if err := s.validatePatient(&p); err != nil {
			return err
		}
		if err := s.patients.Update(ctx, &p); err != nil {
			return err
		}
		out = &p
		return nil
	})
	return out, err
}

func applyPatientPatch(p *Patient, patch PatientPatch) {
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	if patch.DateOfBirth != nil {
		p.DateOfBirth = *patch.DateOfBirth
	}
	if patch.Sex != nil {
		p.Sex = *patch.Sex
	}
	if patch.GenderIdentity != nil {
		g := *patch.GenderIdentity
		p.GenderIdentity = &g
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Email != nil {
		p.Email = patch.Email
	}
	if patch.Address != nil {
		p.Address = patch.Address
	}
	if patch.EmergencyContactName != nil {
		p.EmergencyContactName = patch.EmergencyContactName
	}
	if patch.EmergencyContactRelationship != nil {
		p.EmergencyContactRelationship = patch.EmergencyContactRelationship
	}
	if patch.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = patch.EmergencyContactPhone
	}
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, id); err != nil {
			return err
		}
		if s.visits != nil {
			n, err := s.visits.CountByPatient(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperrors.Conflict("patient", "patient %s has %d visit(s)", id, n)
			}
		}
		return s.patients.Delete(ctx, id)
	})
}

// -- Doctor --

func (s *Service) validateDoctor(ctx context.Context, d *Doctor) error {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.LicenseNumber = strings.TrimSpace(d.LicenseNumber)
	d.DepartmentID = strings.TrimSpace(d.DepartmentID)
	if d.FirstName == "" || d.LastName == "" {
		return apperrors.Validation("doctor", "name", "first_name and last_name are required")
	}
	if d.LicenseNumber == "" {
		return apperrors.Validation("doctor", "license_number", "license_number is required")
	}
	if err := reference.CheckAssigned("doctor", "sex", d.Sex); err != nil {
		return err
	}
	if d.DepartmentID == "" {
		return apperrors.Validation("doctor", "department_id", "department_id is required")
	}
	d.Phone = trimOptional(d.Phone)
	d.Email = trimOptional(d.Email)
	if s.departments != nil {
		ok, err := s.departments.DepartmentExists(ctx, d.DepartmentID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFoundRef("department", "department_id", d.DepartmentID)
		}
	}
	return nil
}

func (s *Service) ensureLicenseFree(ctx context.Context, license, doctorID string) error {
	existing, err := s.doctors.GetByLicense(ctx, license)
	if apperrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != doctorID {
		return apperrors.Duplicate("doctor", "license_number", license)
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.validateDoctor(ctx, d); err != nil {
			return err
		}
		d.ID = ids.OrNew(d.ID, ids.PrefixDoctor)
		if err := s.ensureLicenseFree(ctx, d.LicenseNumber, d.ID); err != nil {
			return err
		}
		return s.doctors.Create(ctx, d)
	})
}

func (s *Service) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) DoctorExists(ctx context.Context, id string) (bool, error) {
	return exists(s.doctors.GetByID(ctx, id))
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, f, limit, offset)
}

// CountByDepartment lets the reference store guard department deletes.
func (s *Service) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	return s.doctors.CountByDepartment(ctx, departmentID)
}

func (s *Service) UpdateDoctor(ctx context.Context, id string, patch DoctorPatch) (*Doctor, error) {
	var out *Doctor
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.doctors.GetByID(ctx, id)
		if err != nil {
			return err
		}
		d := *cur
		applyDoctorPatch(&d, patch)
		if err := s.validateDoctor(ctx, &d); err != nil {
			return err
		}
		if patch.LicenseNumber != nil {
			if err := s.ensureLicenseFree(ctx, d.LicenseNumber, d.ID); err != nil {
				return err
			}
		}
		if err := s.doctors.Update(ctx, &d); err != nil {
			return err
		}
		out = &d
		return nil
	})
	return out, err
}

func applyDoctorPatch(d *Doctor, patch DoctorPatch) {
	if patch.FirstName != nil {
		d.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		d.LastName = *patch.LastName
	}
	if patch.LicenseNumber != nil {
		d.LicenseNumber = *patch.LicenseNumber
	}
	if patch.Sex != nil {
		d.Sex = *patch.Sex
	}
	if patch.DepartmentID != nil {
		d.DepartmentID = *patch.DepartmentID
	}
	if patch.Phone != nil {
		d.Phone = patch.Phone
	}
	if patch.Email != nil {
		d.Email = patch.Email
	}
	if patch.HireDate != nil {
		d.HireDate = patch.HireDate
	}
}

func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.doctors.GetByID(ctx, id); err != nil {
			return err
		}
		if s.visits != nil {
			n, err := s.visits.CountByDoctor(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperrors.Conflict("doctor", "doctor %s has %d visit(s)", id, n)
			}
		}
		return s.doctors.Delete(ctx, id)
	})
}

// -- User --

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperrors.Validation("user", "password", "password must be at least %d characters", minPasswordLength)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", apperrors.Internal("hash password", err)
	}
	return string(b), nil
}

func (s *Service) validateUser(ctx context.Context, u *User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return apperrors.Validation("user", "username", "username is required")
	}
	if !u.Role.Valid() {
		return apperrors.Validation("user", "role", "unknown role %q", string(u.Role))
	}
	existing, err := s.users.GetByUsername(ctx, u.Username)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if existing != nil && existing.ID != u.ID {
		return apperrors.Duplicate("user", "username", u.Username)
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	u := &User{
		ID:       ids.OrNew(in.ID, ids.PrefixUser),
		Username: in.Username,
		Role:     in.Role,
		IsActive: true,
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.validateUser(ctx, u); err != nil {
			return err
		}
		hash, err := s.hash(in.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return s.users.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ImportUser stores a user whose password is already hashed.
func (s *Service) ImportUser(ctx context.Context, u *User) error {
	if strings.TrimSpace(u.PasswordHash) == "" {
		return apperrors.Validation("user", "password_hash", "password_hash is required")
	}
	u.ID = ids.OrNew(u.ID, ids.PrefixUser)
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.validateUser(ctx, u); err != nil {
			return err
		}
		return s.users.Create(ctx, u)
	})
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) UserExists(ctx context.Context, id string) (bool, error) {
	return exists(s.users.GetByID(ctx, id))
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	var out *User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		u := *cur
		if patch.Role != nil {
			if !patch.Role.Valid() {
				return apperrors.Validation("user", "role", "unknown role %q", string(*patch.Role))
			}
			u.Role = *patch.Role
		}
		if patch.IsActive != nil {
			u.IsActive = *patch.IsActive
		}
		if patch.Password != nil {
			hash, err := s.hash(*patch.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		if err := s.users.Update(ctx, &u); err != nil {
			return err
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return err
		}
		if s.visits != nil {
			n, err := s.visits.CountByCreator(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperrors.Conflict("user", "user %s created %d visit(s)", id, n)
			}
		}
		return s.users.Delete(ctx, id)
	})
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
