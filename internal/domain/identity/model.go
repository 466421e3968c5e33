package identity

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/orms/orms/internal/domain/reference"
)

type Doctor struct {
	ID            string        `json:"doctor_id"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	LicenseNumber string        `json:"license_number"`
	Sex           reference.Sex `json:"sex"`
	DepartmentID  string        `json:"department_id"`
	Phone         *string       `json:"phone,omitempty"`
	Email         *string       `json:"email,omitempty"`
	HireDate      *time.Time    `json:"hire_date,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

// DoctorPatch carries the fields to change; nil leaves a field untouched.
type DoctorPatch struct {
	FirstName     *string
	LastName      *string
	LicenseNumber *string
	Sex           *reference.Sex
	DepartmentID  *string
	Phone         *string
	Email         *string
	HireDate      *time.Time
}

type Patient struct {
	ID                           string                    `json:"patient_id"`
	FirstName                    string                    `json:"first_name"`
	LastName                     string                    `json:"last_name"`
	DateOfBirth                  time.Time                 `json:"date_of_birth"`
	Sex                          reference.Sex             `json:"sex"`
	GenderIdentity               *reference.GenderIdentity `json:"gender_identity,omitempty"`
	Phone                        string                    `json:"phone"`
	Email                        *string                   `json:"email,omitempty"`
	Address                      *string                   `json:"address,omitempty"`
	EmergencyContactName         *string                   `json:"emergency_contact_name,omitempty"`
	EmergencyContactRelationship *string                   `json:"emergency_contact_relationship,omitempty"`
	EmergencyContactPhone        *string                   `json:"emergency_contact_phone,omitempty"`
	CreatedAt                    time.Time                 `json:"created_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age in whole years on the given day.
func (p *Patient) Age(on time.Time) int {
	dob := p.DateOfBirth
	years := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		years--
	}
	return years
}

type PatientPatch struct {
	FirstName                    *string
	LastName                     *string
	DateOfBirth                  *time.Time
	Sex                          *reference.Sex
	GenderIdentity               *reference.GenderIdentity
	Phone                        *string
	Email                        *string
	Address                      *string
	EmergencyContactName         *string
	EmergencyContactRelationship *string
	EmergencyContactPhone        *string
}

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleCashier      Role = "cashier"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleReceptionist, RoleDoctor, RoleNurse, RoleCashier:
		return true
	}
	return false
}

type User struct {
	ID           string     `json:"user_id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// NewUser is the input to CreateUser.
type NewUser struct {
	ID       string
	Username string
	Password string
	Role     Role
	IsActive *bool
}

type UserPatch struct {
	Role     *Role
	IsActive *bool
	Password *string
}

type DoctorFilter struct {
	DepartmentID string
	Search       string
}

type PatientFilter struct {
	// Search matches "first last" or phone, case-insensitive substring.
	Search string
	Sex    *reference.Sex
}
