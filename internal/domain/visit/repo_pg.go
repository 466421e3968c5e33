package visit

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orms/orms/internal/domain/reference"
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

const visitCols = `visit_id, patient_id, doctor_id, visit_datetime, check_in_datetime,
	duration_minutes, chief_complaint, status_id, notes, follow_up_date,
	created_by_user_id, created_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	var status int
	err := row.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.VisitDatetime, &v.CheckInDatetime,
		&v.DurationMinutes, &v.ChiefComplaint, &status, &v.Notes, &v.FollowUpDate,
		&v.CreatedByUserID, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Status = reference.VisitStatus(status)
	return &v, nil
}

func collectVisits(rows pgx.Rows) ([]*Visit, error) {
	defer rows.Close()
	var out []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visits (
			visit_id, patient_id, doctor_id, visit_datetime, check_in_datetime,
			duration_minutes, chief_complaint, status_id, notes, follow_up_date,
			created_by_user_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		v.ID, v.PatientID, v.DoctorID, v.VisitDatetime, v.CheckInDatetime,
		v.DurationMinutes, v.ChiefComplaint, v.Status.Code(), v.Notes, v.FollowUpDate,
		v.CreatedByUserID,
	).Scan(&v.CreatedAt)
	return db.TranslateError(err, "visit")
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE visit_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "visit", id)
	}
	return v, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id string) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE visit_id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "visit", id)
	}
	return v, nil
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visits SET
			doctor_id=$2, visit_datetime=$3, check_in_datetime=$4, duration_minutes=$5,
			chief_complaint=$6, status_id=$7, notes=$8, follow_up_date=$9
		WHERE visit_id = $1`,
		v.ID, v.DoctorID, v.VisitDatetime, v.CheckInDatetime, v.DurationMinutes,
		v.ChiefComplaint, v.Status.Code(), v.Notes, v.FollowUpDate,
	)
	if err != nil {
		return db.TranslateError(err, "visit")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "visit", v.ID)
	}
	return nil
}

// Delete removes the visit. Its status history goes with it through the
// ON DELETE CASCADE foreign key.
func (r *repoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visits WHERE visit_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "visit")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "visit", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Visit, int, error) {
	ds := db.From("visits")
	if f.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": f.PatientID})
	}
	if f.DoctorID != "" {
		ds = ds.Where(goqu.Ex{"doctor_id": f.DoctorID})
	}
	if f.Status != nil {
		ds = ds.Where(goqu.Ex{"status_id": f.Status.Code()})
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("visit_datetime").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("visit_datetime").Lt(*f.To))
	}

	rows, total, err := db.Page(ctx, r.conn(ctx), ds, visitCols,
		[]exp.OrderedExpression{goqu.C("visit_datetime").Desc(), goqu.C("visit_id").Asc()}, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, "visit")
	}
	out, err := collectVisits(rows)
	if err != nil {
		return nil, 0, db.TranslateError(err, "visit")
	}
	return out, total, nil
}

func (r *repoPG) Queue(ctx context.Context, doctorID string) ([]*Visit, error) {
	ds := db.From("visits").
		Select(goqu.L(visitCols)).
		Where(goqu.C("status_id").In(reference.VisitScheduled.Code(), reference.VisitCheckedIn.Code())).
		Order(goqu.C("visit_datetime").Asc(), goqu.C("visit_id").Asc())
	if doctorID != "" {
		ds = ds.Where(goqu.Ex{"doctor_id": doctorID})
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, db.TranslateError(err, "visit")
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, db.TranslateError(err, "visit")
	}
	out, err := collectVisits(rows)
	if err != nil {
		return nil, db.TranslateError(err, "visit")
	}
	return out, nil
}

// Stats counts every patient, then classifies each by the status of their
// most recent visit.
func (r *repoPG) Stats(ctx context.Context, dayStart, dayEnd time.Time) (*Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (patient_id) patient_id, status_id, visit_datetime
			FROM visits
			ORDER BY patient_id, visit_datetime DESC, created_at DESC
		)
		SELECT
			COUNT(p.patient_id),
			COUNT(*) FILTER (WHERE l.status_id = $1),
			COUNT(*) FILTER (WHERE l.status_id = $2),
			COUNT(*) FILTER (WHERE l.status_id = $3),
			COUNT(*) FILTER (WHERE l.visit_datetime >= $4 AND l.visit_datetime < $5)
		FROM patients p
		LEFT JOIN latest l ON l.patient_id = p.patient_id`,
		reference.VisitCheckedIn.Code(), reference.VisitScheduled.Code(), reference.VisitCompleted.Code(),
		dayStart, dayEnd,
	).Scan(&s.Total, &s.CheckedIn, &s.Waiting, &s.Completed, &s.NewToday)
	if err != nil {
		return nil, db.TranslateError(err, "visit")
	}
	return &s, nil
}

func (r *repoPG) AddStatusChange(ctx context.Context, sc *StatusChange) error {
	var from *int
	if sc.From != nil {
		c := sc.From.Code()
		from = &c
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit_status_history (visit_id, from_status_id, to_status_id, changed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING history_id`,
		sc.VisitID, from, sc.To.Code(), sc.ChangedAt,
	).Scan(&sc.ID)
	return db.TranslateError(err, "visit_status_history")
}

func (r *repoPG) StatusHistory(ctx context.Context, visitID string) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT history_id, visit_id, from_status_id, to_status_id, changed_at
		FROM visit_status_history
		WHERE visit_id = $1
		ORDER BY changed_at, history_id`, visitID)
	if err != nil {
		return nil, db.TranslateError(err, "visit_status_history")
	}
	defer rows.Close()

	var out []*StatusChange
	for rows.Next() {
		var sc StatusChange
		var from *int
		var to int
		if err := rows.Scan(&sc.ID, &sc.VisitID, &from, &to, &sc.ChangedAt); err != nil {
			return nil, db.TranslateError(err, "visit_status_history")
		}
		if from != nil {
			f := reference.VisitStatus(*from)
			sc.From = &f
		}
		sc.To = reference.VisitStatus(to)
		out = append(out, &sc)
	}
	return out, db.TranslateError(rows.Err(), "visit_status_history")
}

func (r *repoPG) CountByPatient(ctx context.Context, patientID string) (int, error) {
	n, err := db.Count(ctx, r.conn(ctx), "visits", goqu.Ex{"patient_id": patientID})
	return n, db.TranslateError(err, "visit")
}

func (r *repoPG) CountByDoctor(ctx context.Context, doctorID string) (int, error) {
	n, err := db.Count(ctx, r.conn(ctx), "visits", goqu.Ex{"doctor_id": doctorID})
	return n, db.TranslateError(err, "visit")
}

func (r *repoPG) CountByCreator(ctx context.Context, userID string) (int, error) {
	n, err := db.Count(ctx, r.conn(ctx), "visits", goqu.Ex{"created_by_user_id": userID})
	return n, db.TranslateError(err, "visit")
}
