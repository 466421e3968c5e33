package clinical

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orms/orms/internal/platform/db"
)

// -- Diagnosis Repository --

type diagnosisRepoPG struct {
	pool *pgxpool.Pool
}

func NewDiagnosisRepo(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const diagCols = `diagnosis_id, visit_id, diagnosis_code, description, notes, created_at`

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	if err := row.Scan(&d.ID, &d.VisitID, &d.DiagnosisCode, &d.Description, &d.Notes, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *Diagnosis) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (diagnosis_id, visit_id, diagnosis_code, description, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		d.ID, d.VisitID, d.DiagnosisCode, d.Description, d.Notes,
	).Scan(&d.CreatedAt)
	return db.TranslateError(err, "diagnosis")
}

func (r *diagnosisRepoPG) GetByID(ctx context.Context, id string) (*Diagnosis, error) {
	d, err := scanDiagnosis(r.conn(ctx).QueryRow(ctx, `SELECT `+diagCols+` FROM diagnoses WHERE diagnosis_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "diagnosis", id)
	}
	return d, nil
}

func (r *diagnosisRepoPG) Update(ctx context.Context, d *Diagnosis) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE diagnoses SET diagnosis_code=$2, description=$3, notes=$4
		WHERE diagnosis_id = $1`,
		d.ID, d.DiagnosisCode, d.Description, d.Notes,
	)
	if err != nil {
		return db.TranslateError(err, "diagnosis")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "diagnosis", d.ID)
	}
	return nil
}

func (r *diagnosisRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnoses WHERE diagnosis_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "diagnosis")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "diagnosis", id)
	}
	return nil
}

func (r *diagnosisRepoPG) ListByVisit(ctx context.Context, visitID string) ([]*Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+diagCols+` FROM diagnoses WHERE visit_id = $1
		ORDER BY created_at, diagnosis_id`, visitID)
	if err != nil {
		return nil, db.TranslateError(err, "diagnosis")
	}
	defer rows.Close()

	var out []*Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, db.TranslateError(err, "diagnosis")
		}
		out = append(out, d)
	}
	return out, db.TranslateError(rows.Err(), "diagnosis")
}

func (r *diagnosisRepoPG) DeleteByVisit(ctx context.Context, visitID string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnoses WHERE visit_id = $1`, visitID)
	if err != nil {
		return 0, db.TranslateError(err, "diagnosis")
	}
	return tag.RowsAffected(), nil
}

// -- Prescription Repository --

type prescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepo(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const rxCols = `prescription_id, visit_id, medication_id, dosage, frequency, duration_days,
	instructions, prescribed_date, refills_allowed`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.VisitID, &p.MedicationID, &p.Dosage, &p.Frequency, &p.DurationDays,
		&p.Instructions, &p.PrescribedDate, &p.RefillsAllowed)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (
			prescription_id, visit_id, medication_id, dosage, frequency, duration_days,
			instructions, prescribed_date, refills_allowed
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.VisitID, p.MedicationID, p.Dosage, p.Frequency, p.DurationDays,
		p.Instructions, p.PrescribedDate, p.RefillsAllowed,
	)
	return db.TranslateError(err, "prescription")
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id string) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE prescription_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "prescription", id)
	}
	return p, nil
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET
			medication_id=$2, dosage=$3, frequency=$4, duration_days=$5,
			instructions=$6, refills_allowed=$7
		WHERE prescription_id = $1`,
		p.ID, p.MedicationID, p.Dosage, p.Frequency, p.DurationDays,
		p.Instructions, p.RefillsAllowed,
	)
	if err != nil {
		return db.TranslateError(err, "prescription")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "prescription", p.ID)
	}
	return nil
}

func (r *prescriptionRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescriptions WHERE prescription_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "prescription")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "prescription", id)
	}
	return nil
}

func (r *prescriptionRepoPG) ListByVisit(ctx context.Context, visitID string) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+rxCols+` FROM prescriptions WHERE visit_id = $1
		ORDER BY prescribed_date, prescription_id`, visitID)
	if err != nil {
		return nil, db.TranslateError(err, "prescription")
	}
	defer rows.Close()

	var out []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, db.TranslateError(err, "prescription")
		}
		out = append(out, p)
	}
	return out, db.TranslateError(rows.Err(), "prescription")
}

func (r *prescriptionRepoPG) DeleteByVisit(ctx context.Context, visitID string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescriptions WHERE visit_id = $1`, visitID)
	if err != nil {
		return 0, db.TranslateError(err, "prescription")
	}
	return tag.RowsAffected(), nil
}

func (r *prescriptionRepoPG) CountByMedication(ctx context.Context, medicationID int) (int, error) {
	n, err := db.Count(ctx, r.conn(ctx), "prescriptions", goqu.Ex{"medication_id": medicationID})
	return n, db.TranslateError(err, "prescription")
}
