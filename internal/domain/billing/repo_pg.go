package billing

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/pkg/ids"
)

// -- Bill Repository --

type billRepoPG struct {
	pool *pgxpool.Pool
}

func NewBillRepo(pool *pgxpool.Pool) BillRepository {
	return &billRepoPG{pool: pool}
}

func (r *billRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const billCols = `bill_id, visit_id, patient_id, subtotal, tax, amount_total, status,
	payment_method_id, payment_date, billing_date, created_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var (
		b      Bill
		status string
		method *int
	)
	err := row.Scan(&b.ID, &b.VisitID, &b.PatientID, &b.Subtotal, &b.Tax, &b.AmountTotal, &status,
		&method, &b.PaymentDate, &b.BillingDate, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	if method != nil {
		pm := reference.PaymentMethod(*method)
		b.PaymentMethod = &pm
	}
	return &b, nil
}

func methodCode(pm *reference.PaymentMethod) *int {
	if pm == nil {
		return nil
	}
	code := pm.Code()
	return &code
}

func collectBills(rows pgx.Rows) ([]*Bill, error) {
	defer rows.Close()
	var out []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bills (
			bill_id, visit_id, patient_id, subtotal, tax, amount_total, status,
			payment_method_id, payment_date, billing_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		b.ID, b.VisitID, b.PatientID, b.Subtotal, b.Tax, b.AmountTotal, string(b.Status),
		methodCode(b.PaymentMethod), b.PaymentDate, b.BillingDate,
	).Scan(&b.CreatedAt)
	return db.TranslateError(err, "bill")
}

func (r *billRepoPG) GetByID(ctx context.Context, id string) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+` FROM bills WHERE bill_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "bill", id)
	}
	return b, nil
}

func (r *billRepoPG) GetForUpdate(ctx context.Context, id string) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+` FROM bills WHERE bill_id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "bill", id)
	}
	return b, nil
}

func (r *billRepoPG) Update(ctx context.Context, b *Bill) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bills SET visit_id=$2, patient_id=$3, subtotal=$4, tax=$5, amount_total=$6,
			status=$7, payment_method_id=$8, payment_date=$9, billing_date=$10
		WHERE bill_id = $1`,
		b.ID, b.VisitID, b.PatientID, b.Subtotal, b.Tax, b.AmountTotal,
		string(b.Status), methodCode(b.PaymentMethod), b.PaymentDate, b.BillingDate,
	)
	if err != nil {
		return db.TranslateError(err, "bill")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "bill", b.ID)
	}
	return nil
}

func (r *billRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM bills WHERE bill_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "bill")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "bill", id)
	}
	return nil
}

func (r *billRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Bill, int, error) {
	ds := db.From("bills")
	if f.Status != nil {
		ds = ds.Where(goqu.Ex{"status": string(*f.Status)})
	}
	if f.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": f.PatientID})
	}
	if f.VisitID != "" {
		ds = ds.Where(goqu.Ex{"visit_id": f.VisitID})
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		byName := db.Dialect.From("patients").Select("patient_id").Where(goqu.Or(
			goqu.C("first_name").ILike(like),
			goqu.C("last_name").ILike(like),
		))
		ds = ds.Where(goqu.Or(
			goqu.C("bill_id").ILike("%"+ids.BillIDFromInvoice(term)+"%"),
			goqu.C("patient_id").In(byName),
		))
	}

	rows, total, err := db.Page(ctx, r.conn(ctx), ds, billCols,
		[]exp.OrderedExpression{goqu.C("billing_date").Desc(), goqu.C("bill_id").Asc()}, limit, offset)
	if err != nil {
		return nil, 0, db.TranslateError(err, "bill")
	}
	out, err := collectBills(rows)
	if err != nil {
		return nil, 0, db.TranslateError(err, "bill")
	}
	return out, total, nil
}

func (r *billRepoPG) ListByVisit(ctx context.Context, visitID string) ([]*Bill, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+billCols+` FROM bills WHERE visit_id = $1
		ORDER BY billing_date, bill_id`, visitID)
	if err != nil {
		return nil, db.TranslateError(err, "bill")
	}
	out, err := collectBills(rows)
	return out, db.TranslateError(err, "bill")
}

func (r *billRepoPG) CountByVisit(ctx context.Context, visitID string) (int, error) {
	n, err := db.Count(ctx, r.conn(ctx), "bills", goqu.Ex{"visit_id": visitID})
	return n, db.TranslateError(err, "bill")
}

func (r *billRepoPG) Totals(ctx context.Context) ([]*ReconcileReport, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.bill_id, b.amount_total, b.tax,
			COALESCE(SUM(s.amount * s.quantity), 0)::float8,
			COUNT(s.service_id)
		FROM bills b
		LEFT JOIN bill_services s ON s.bill_id = b.bill_id
		GROUP BY b.bill_id, b.amount_total, b.tax
		ORDER BY b.bill_id`)
	if err != nil {
		return nil, db.TranslateError(err, "bill")
	}
	defer rows.Close()

	var out []*ReconcileReport
	for rows.Next() {
		var rep ReconcileReport
		if err := rows.Scan(&rep.BillID, &rep.AmountTotal, &rep.Tax, &rep.ServicesTotal, &rep.ServiceCount); err != nil {
			return nil, db.TranslateError(err, "bill")
		}
		out = append(out, &rep)
	}
	return out, db.TranslateError(rows.Err(), "bill")
}

// -- Bill Service Repository --

type billServiceRepoPG struct {
	pool *pgxpool.Pool
}

func NewBillServiceRepo(pool *pgxpool.Pool) BillServiceRepository {
	return &billServiceRepoPG{pool: pool}
}

func (r *billServiceRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const lineCols = `service_id, bill_id, service_name, amount, quantity`

func scanBillService(row pgx.Row) (*BillService, error) {
	var s BillService
	if err := row.Scan(&s.ID, &s.BillID, &s.ServiceName, &s.Amount, &s.Quantity); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *billServiceRepoPG) Create(ctx context.Context, s *BillService) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bill_services (service_id, bill_id, service_name, amount, quantity)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.BillID, s.ServiceName, s.Amount, s.Quantity,
	)
	return db.TranslateError(err, "bill_service")
}

func (r *billServiceRepoPG) GetByID(ctx context.Context, id string) (*BillService, error) {
	s, err := scanBillService(r.conn(ctx).QueryRow(ctx, `SELECT `+lineCols+` FROM bill_services WHERE service_id = $1`, id))
	if err != nil {
		return nil, db.TranslateRowError(err, "bill_service", id)
	}
	return s, nil
}

func (r *billServiceRepoPG) Update(ctx context.Context, s *BillService) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bill_services SET service_name=$2, amount=$3, quantity=$4
		WHERE service_id = $1`,
		s.ID, s.ServiceName, s.Amount, s.Quantity,
	)
	if err != nil {
		return db.TranslateError(err, "bill_service")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "bill_service", s.ID)
	}
	return nil
}

func (r *billServiceRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM bill_services WHERE service_id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "bill_service")
	}
	if tag.RowsAffected() == 0 {
		return db.TranslateRowError(pgx.ErrNoRows, "bill_service", id)
	}
	return nil
}

func (r *billServiceRepoPG) ListByBill(ctx context.Context, billID string) ([]*BillService, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+lineCols+` FROM bill_services WHERE bill_id = $1
		ORDER BY service_id`, billID)
	if err != nil {
		return nil, db.TranslateError(err, "bill_service")
	}
	defer rows.Close()

	var out []*BillService
	for rows.Next() {
		s, err := scanBillService(rows)
		if err != nil {
			return nil, db.TranslateError(err, "bill_service")
		}
		out = append(out, s)
	}
	return out, db.TranslateError(rows.Err(), "bill_service")
}

func (r *billServiceRepoPG) DeleteByBill(ctx context.Context, billID string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM bill_services WHERE bill_id = $1`, billID)
	if err != nil {
		return 0, db.TranslateError(err, "bill_service")
	}
	return tag.RowsAffected(), nil
}
