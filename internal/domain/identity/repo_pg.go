package identity

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `patient_id, first_name, last_name, date_of_birth, sex_id, gender_identity_id,
	phone, email, address, emergency_contact_name, emergency_contact_relationship,
	emergency_contact_phone, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var sex int
	var gender *int
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &sex, &gender,
		&p.Phone, &p.Email, &p.Address, &p.EmergencyContactName, &p.EmergencyContactRelationship,
		&p.EmergencyContactPhone, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Sex = reference.Sex(sex)
	if gender != nil {
		g := reference.GenderIdentity(*gender)
		p.GenderIdentity = &g
	}
	return &p, nil
}

func genderCode(g *reference.GenderIdentity) *int {
	if g == nil {
		return nil
	}
	c := g.Code()
	return &c
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			patient_id, first_name, last_name, date_of_birth, sex_id, gender_identity_id,
			phone, email, address, emergency_contact_name, emergency_contact_relationship,
			emergency_contact_phone
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Sex.Code(), genderCode(p.GenderIdentity),
		p.Phone, p.Email, p.Address, p.EmergencyContactName, p.EmergencyContactRelationship,
		p.EmergencyContactPhone,
	).Scan(&p.CreatedAt)
	return db.TranslateError(err, "patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "patient", id)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			first_name=$2, last_name=$3, date_of_birth=$4, sex_id=$5, gender_identity_id=$6,
			phone=$7, email=$8, address=$9, emergency_contact_name=$10,
			emergency_contact_relationship=$11, emergency_contact_phone=$12
		WHERE patient_id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Sex.Code(), genderCode(p.GenderIdentity),
		p.Phone, p.Email, p.Address, p.EmergencyContactName,
		p.EmergencyContactRelationship, p.EmergencyContactPhone,
	)
	if err != nil {
		return db.TranslateError(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "patient", p.ID)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE patient_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "patient", id)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	ds := db.From("patients")
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		ds = ds.Where(goqu.Or(
			goqu.L(`(first_name || ' ' || last_name) ILIKE ?`, pattern),
			goqu.C("phone").Like(pattern),
		))
	}
	if f.Sex != nil {
		ds = ds.Where(goqu.Ex{"sex_id": f.Sex.Code()})
	}

	rows, total, err := db.Page(ctx, r.conn(ctx), ds, patientCols,
		[]exp.OrderedExpression{goqu.C("created_at").Desc(), goqu.C("patient_id").Asc()}, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, "patient")
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "patient")
		}
		out = append(out, p)
	}
	return out, total, db.TranslateError(rows.Err(), "patient")
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `doctor_id, first_name, last_name, license_number, sex_id, department_id,
	phone, email, hire_date, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var sex int
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.LicenseNumber, &sex, &d.DepartmentID,
		&d.Phone, &d.Email, &d.HireDate, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Sex = reference.Sex(sex)
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (
			doctor_id, first_name, last_name, license_number, sex_id, department_id,
			phone, email, hire_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		d.ID, d.FirstName, d.LastName, d.LicenseNumber, d.Sex.Code(), d.DepartmentID,
		d.Phone, d.Email, d.HireDate,
	).Scan(&d.CreatedAt)
	return db.TranslateError(err, "doctor")
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id string) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE doctor_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "doctor", id)
	}
	return d, nil
}

func (r *doctorRepoPG) GetByLicense(ctx context.Context, license string) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE license_number = $1`, license))
	if err != nil {
		return nil, db.TranslateRowError(err, "doctor", license)
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctors SET
			first_name=$2, last_name=$3, license_number=$4, sex_id=$5, department_id=$6,
			phone=$7, email=$8, hire_date=$9
		WHERE doctor_id = $1`,
		d.ID, d.FirstName, d.LastName, d.LicenseNumber, d.Sex.Code(), d.DepartmentID,
		d.Phone, d.Email, d.HireDate,
	)
	if err != nil {
		return db.TranslateError(err, "doctor")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "doctor", d.ID)
	}
	return nil
}

func (r *doctorRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE doctor_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "doctor")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "doctor", id)
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	ds := db.From("doctors")
	if f.DepartmentID != "" {
		ds = ds.Where(goqu.Ex{"department_id": f.DepartmentID})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		ds = ds.Where(goqu.L(`(first_name || ' ' || last_name) ILIKE ?`, "%"+s+"%"))
	}

	rows, total, err := db.Page(ctx, r.conn(ctx), ds, doctorCols,
		[]exp.OrderedExpression{goqu.C("last_name").Asc(), goqu.C("first_name").Asc()}, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, "doctor")
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "doctor")
		}
		out = append(out, d)
	}
	return out, total, db.TranslateError(rows.Err(), "doctor")
}

func (r *doctorRepoPG) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	n, err := db.Count(ctx, r.conn(ctx), "doctors", goqu.Ex{"department_id": departmentID})
	return n, db.TranslateError(err, "doctor")
}

// -- User Repository --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `user_id, username, password_hash, role, is_active, created_at, last_login`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.LastLogin); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (user_id, username, password_hash, role, is_active, last_login)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	args := []interface{}{u.ID, u.Username, u.PasswordHash, string(u.Role), u.IsActive, u.LastLogin}
	if !u.CreatedAt.IsZero() {
		query = `
			INSERT INTO users (user_id, username, password_hash, role, is_active, last_login, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`
		args = append(args, u.CreatedAt)
	}
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&u.CreatedAt)
	return db.TranslateError(err, "user")
}

func (r *userRepoPG) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE user_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "user", id)
	}
	return u, nil
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, db.TranslateRowError(err, "user", username)
	}
	return u, nil
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET password_hash=$2, role=$3, is_active=$4, last_login=$5 WHERE user_id = $1`,
		u.ID, u.PasswordHash, string(u.Role), u.IsActive, u.LastLogin)
	if err != nil {
		return db.TranslateError(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "user", u.ID)
	}
	return nil
}

func (r *userRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "user", id)
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	rows, total, err := db.Page(ctx, r.conn(ctx), db.From("users"), userCols,
		[]exp.OrderedExpression{goqu.C("username").Asc()}, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, "user")
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "user")
		}
		out = append(out, u)
	}
	return out, total, db.TranslateError(rows.Err(), "user")
}
