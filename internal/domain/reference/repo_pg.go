package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orms/orms/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) LookupRows(ctx context.Context, t LookupTable) (map[int]string, error) {
	query := fmt.Sprintf(`SELECT %s, name FROM %s`,
		pgx.Identifier{t.IDColumn}.Sanitize(), pgx.Identifier{t.Table}.Sanitize())
	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, db.TranslateError(err, t.Table)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var code int
		var name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, db.TranslateError(err, t.Table)
		}
		out[code] = name
	}
	return out, db.TranslateError(rows.Err(), t.Table)
}

// -- Medications --

const medCols = `medication_id, name, generic_name, category, common_dose, common_frequency, created_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.GenericName, &m.Category, &m.CommonDose, &m.CommonFrequency, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) CreateMedication(ctx context.Context, m *Medication) error {
	q := r.conn(ctx)
	if m.ID > 0 {
		err := q.QueryRow(ctx, `
			INSERT INTO medications (medication_id, name, generic_name, category, common_dose, common_frequency)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			m.ID, m.Name, m.GenericName, m.Category, m.CommonDose, m.CommonFrequency,
		).Scan(&m.CreatedAt)
		if err != nil {
			return db.TranslateError(err, "medication")
		}
		// Keep the serial ahead of explicitly assigned ids.
		_, err = q.Exec(ctx, `SELECT setval(pg_get_serial_sequence('medications', 'medication_id'),
			GREATEST((SELECT MAX(medication_id) FROM medications), 1))`)
		return db.TranslateError(err, "medication")
	}
	err := q.QueryRow(ctx, `
		INSERT INTO medications (name, generic_name, category, common_dose, common_frequency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING medication_id, created_at`,
		m.Name, m.GenericName, m.Category, m.CommonDose, m.CommonFrequency,
	).Scan(&m.ID, &m.CreatedAt)
	return db.TranslateError(err, "medication")
}

func (r *repoPG) GetMedication(ctx context.Context, id int) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medications WHERE medication_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "medication", id)
	}
	return m, nil
}

func (r *repoPG) ListMedications(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	ds := db.From("medications")
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("generic_name").ILike(pattern),
		))
	}
	if f.Category != "" {
		ds = ds.Where(goqu.C("category").ILike(f.Category))
	}

	rows, total, err := db.Page(ctx, r.conn(ctx), ds, medCols,
		[]exp.OrderedExpression{goqu.C("name").Asc(), goqu.C("medication_id").Asc()}, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, "medication")
	}
	defer rows.Close()

	var out []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "medication")
		}
		out = append(out, m)
	}
	return out, total, db.TranslateError(rows.Err(), "medication")
}

func (r *repoPG) UpdateMedication(ctx context.Context, m *Medication) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medications SET name=$2, generic_name=$3, category=$4, common_dose=$5, common_frequency=$6
		WHERE medication_id = $1`,
		m.ID, m.Name, m.GenericName, m.Category, m.CommonDose, m.CommonFrequency)
	if err != nil {
		return db.TranslateError(err, "medication")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "medication", m.ID)
	}
	return nil
}

func (r *repoPG) DeleteMedication(ctx context.Context, id int) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medications WHERE medication_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "medication")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "medication", id)
	}
	return nil
}

// -- Departments --

const deptCols = `department_id, name, code, description, created_at`

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	if err := row.Scan(&d.ID, &d.Name, &d.Code, &d.Description, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) CreateDepartment(ctx context.Context, d *Department) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO departments (department_id, name, code, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		d.ID, d.Name, d.Code, d.Description,
	).Scan(&d.CreatedAt)
	return db.TranslateError(err, "department")
}

func (r *repoPG) GetDepartment(ctx context.Context, id string) (*Department, error) {
	d, err := scanDepartment(r.conn(ctx).QueryRow(ctx, `SELECT `+deptCols+` FROM departments WHERE department_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "department", id)
	}
	return d, nil
}

func (r *repoPG) ListDepartments(ctx context.Context) ([]*Department, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+deptCols+` FROM departments ORDER BY name, department_id`)
	if err != nil {
		return nil, db.TranslateError(err, "department")
	}
	defer rows.Close()

	var out []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, db.TranslateError(err, "department")
		}
		out = append(out, d)
	}
	return out, db.TranslateError(rows.Err(), "department")
}

func (r *repoPG) UpdateDepartment(ctx context.Context, d *Department) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE departments SET name=$2, code=$3, description=$4 WHERE department_id = $1`,
		d.ID, d.Name, d.Code, d.Description)
	if err != nil {
		return db.TranslateError(err, "department")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "department", d.ID)
	}
	return nil
}

func (r *repoPG) DeleteDepartment(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM departments WHERE department_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "department")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "department", id)
	}
	return nil
}

// -- Medical services --

const svcCols = `medical_service_id, name, price, active, created_at`

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	if err := row.Scan(&s.ID, &s.Name, &s.Price, &s.Active, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) CreateService(ctx context.Context, s *MedicalService) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_services (medical_service_id, name, price, active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		s.ID, s.Name, s.Price, s.Active,
	).Scan(&s.CreatedAt)
	return db.TranslateError(err, "medical_service")
}

func (r *repoPG) GetService(ctx context.Context, id string) (*MedicalService, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+svcCols+` FROM medical_services WHERE medical_service_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "medical_service", id)
	}
	return s, nil
}

func (r *repoPG) GetServiceByName(ctx context.Context, name string) (*MedicalService, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+svcCols+` FROM medical_services WHERE lower(name) = lower($1)`, name))
	if err != nil {
		return nil, db.TranslateRowError(err, "medical_service", name)
	}
	return s, nil
}

func (r *repoPG) ListServices(ctx context.Context, activeOnly bool) ([]*MedicalService, error) {
	query := `SELECT ` + svcCols + ` FROM medical_services`
	if activeOnly {
		query += ` WHERE active`
	}
	rows, err := r.conn(ctx).Query(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, db.TranslateError(err, "medical_service")
	}
	defer rows.Close()

	var out []*MedicalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, db.TranslateError(err, "medical_service")
		}
		out = append(out, s)
	}
	return out, db.TranslateError(rows.Err(), "medical_service")
}

func (r *repoPG) UpdateService(ctx context.Context, s *MedicalService) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_services SET name=$2, price=$3, active=$4 WHERE medical_service_id = $1`,
		s.ID, s.Name, s.Price, s.Active)
	if err != nil {
		return db.TranslateError(err, "medical_service")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "medical_service", s.ID)
	}
	return nil
}
