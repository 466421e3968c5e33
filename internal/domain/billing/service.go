package billing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/domain/visit"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/ids"
)

// DefaultTolerance is the largest difference, in currency units, that still
// reconciles as balanced.
const DefaultTolerance = 0.01

// Config carries the billing policy. TaxRate is a fraction, 0.10 for ten
// percent.
type Config struct {
	TaxRate   float64
	Tolerance float64
}

type Service struct {
	bills    BillRepository
	lines    BillServiceRepository
	tx       db.TxRunner
	visits   VisitReader
	patients PatientChecker
	cfg      Config
	now      func() time.Time
}

func NewService(bills BillRepository, lines BillServiceRepository, tx db.TxRunner, visits VisitReader, patients PatientChecker, cfg Config) *Service {
	if tx == nil {
		tx = db.NopTxRunner{}
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Service{bills: bills, lines: lines, tx: tx, visits: visits, patients: patients, cfg: cfg, now: time.Now}
}

// TaxRate is the configured default rate.
func (s *Service) TaxRate() float64 { return s.cfg.TaxRate }

func validateAmounts(b *Bill) error {
	for _, f := range []struct {
		name string
		v    *float64
	}{{"subtotal", &b.Subtotal}, {"tax", &b.Tax}, {"amount_total", &b.AmountTotal}} {
		if *f.v < 0 || math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return apperrors.Validation("bill", f.name, "%s must be zero or greater", f.name)
		}
		*f.v = round2(*f.v)
	}
	return nil
}

// checkParties confirms the visit exists and that the billed patient is the
// visit's patient. A blank patient id takes the visit's.
func (s *Service) checkParties(ctx context.Context, b *Bill) error {
	b.VisitID = strings.TrimSpace(b.VisitID)
	b.PatientID = strings.TrimSpace(b.PatientID)
	if b.VisitID == "" {
		return apperrors.Validation("bill", "visit_id", "visit_id is required")
	}
	v, err := s.visits.GetVisit(ctx, b.VisitID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NotFoundRef("visit", "visit_id", b.VisitID)
		}
		return err
	}
	if b.PatientID == "" {
		b.PatientID = v.PatientID
	}
	if s.patients != nil {
		ok, err := s.patients.PatientExists(ctx, b.PatientID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFoundRef("patient", "patient_id", b.PatientID)
		}
	}
	if b.PatientID != v.PatientID {
		return apperrors.Validation("bill", "patient_id",
			"patient %s does not match visit %s patient %s", b.PatientID, v.ID, v.PatientID)
	}
	return nil
}

// CreateBill records a new Pending bill for a visit.
func (s *Service) CreateBill(ctx context.Context, b *Bill) error {
	if err := validateAmounts(b); err != nil {
		return err
	}
	b.Status = StatusPending
	b.PaymentMethod = nil
	b.PaymentDate = nil
	if b.BillingDate.IsZero() {
		b.BillingDate = s.now()
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkParties(ctx, b); err != nil {
			return err
		}
		b.ID = ids.OrNew(b.ID, ids.PrefixBill)
		return s.bills.Create(ctx, b)
	})
}

// ImportBill stores a historical bill, which may already be Paid. A Paid
// bill without a method is taken as Cash and without a date as paid on
// its billing date.
func (s *Service) ImportBill(ctx context.Context, b *Bill) error {
	if err := validateAmounts(b); err != nil {
		return err
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	if !b.Status.Valid() {
		return apperrors.Validation("bill", "status", "status must be Pending or Paid")
	}
	if b.BillingDate.IsZero() {
		b.BillingDate = s.now()
	}
	if b.PaymentMethod != nil {
		if err := reference.CheckAssigned("bill", "payment_method", *b.PaymentMethod); err != nil {
			return err
		}
	}
	if b.Status == StatusPaid {
		if b.PaymentMethod == nil {
			cash := reference.PaymentCash
			b.PaymentMethod = &cash
		}
		if b.PaymentDate == nil {
			paid := b.BillingDate
			b.PaymentDate = &paid
		}
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.checkParties(ctx, b); err != nil {
			return err
		}
		b.ID = ids.OrNew(b.ID, ids.PrefixBill)
		return s.bills.Create(ctx, b)
	})
}

// GetBill returns the bill with its line items.
func (s *Service) GetBill(ctx context.Context, id string) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Services, err = s.lines.ListByBill(ctx, id); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) ListBills(ctx context.Context, f Filter, limit, offset int) ([]*Bill, int, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, apperrors.Validation("bill", "status", "status must be Pending or Paid")
	}
	return s.bills.List(ctx, f, limit, offset)
}

func (s *Service) ListByVisit(ctx context.Context, visitID string) ([]*Bill, error) {
	return s.bills.ListByVisit(ctx, visitID)
}

// CountByVisit reports how many bills reference a visit.
func (s *Service) CountByVisit(ctx context.Context, visitID string) (int, error) {
	return s.bills.CountByVisit(ctx, visitID)
}

// MarkPaid settles a Pending bill. A nil method means Cash and a nil time
// means now. A bill is paid exactly once.
func (s *Service) MarkPaid(ctx context.Context, id string, method *reference.PaymentMethod, paidAt *time.Time) (*Bill, error) {
	pm := reference.PaymentCash
	if method != nil {
		pm = *method
	}
	if err := reference.CheckAssigned("bill", "payment_method", pm); err != nil {
		return nil, err
	}
	paid := s.now()
	if paidAt != nil {
		paid = *paidAt
	}

	var out *Bill
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.bills.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusPending {
			return apperrors.InvalidTransition("bill", b.Status, StatusPaid)
		}
		b.Status = StatusPaid
		b.PaymentMethod = &pm
		b.PaymentDate = &paid
		if err := s.bills.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// UpdateBill patches a Pending bill.
func (s *Service) UpdateBill(ctx context.Context, id string, patch BillPatch) (*Bill, error) {
	var out *Bill
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.bills.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != StatusPending {
			return apperrors.InvalidTransition("bill", b.Status, b.Status)
		}
		if patch.Subtotal != nil {
			b.Subtotal = *patch.Subtotal
		}
		if patch.Tax != nil {
			b.Tax = *patch.Tax
		}
		if patch.AmountTotal != nil {
			b.AmountTotal = *patch.AmountTotal
		}
		if patch.BillingDate != nil {
			b.BillingDate = *patch.BillingDate
		}
		if err := validateAmounts(b); err != nil {
			return err
		}
		if patch.VisitID != nil || patch.PatientID != nil {
			if patch.VisitID != nil {
				b.VisitID = *patch.VisitID
			}
			if patch.PatientID != nil {
				b.PatientID = *patch.PatientID
			}
			if err := s.checkParties(ctx, b); err != nil {
				return err
			}
		}
		if err := s.bills.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// DeleteBill removes a Pending bill and its line items. The bill's visit
// must itself be deletable, Scheduled or Cancelled.
func (s *Service) DeleteBill(ctx context.Context, id string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.bills.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		v, err := s.visits.GetVisit(ctx, b.VisitID)
		if err != nil {
			return err
		}
		if !visit.Deletable(v.Status) {
			return apperrors.Conflict("bill", "bill %s belongs to visit %s which is %s", b.ID, v.ID, v.Status)
		}
		return s.deletePending(ctx, b)
	})
}

func (s *Service) deletePending(ctx context.Context, b *Bill) error {
	if b.Status == StatusPaid {
		return apperrors.Conflict("bill", "bill %s is paid and cannot be deleted", b.ID)
	}
	if _, err := s.lines.DeleteByBill(ctx, b.ID); err != nil {
		return err
	}
	return s.bills.Delete(ctx, b.ID)
}

// DeletePendingForVisit removes every Pending bill of a visit and returns
// how many were deleted. A Paid bill fails the whole call before anything is
// removed.
func (s *Service) DeletePendingForVisit(ctx context.Context, visitID string) (int, error) {
	n := 0
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		list, err := s.bills.ListByVisit(ctx, visitID)
		if err != nil {
			return err
		}
		for _, b := range list {
			if b.Status == StatusPaid {
				return apperrors.Conflict("visit", "visit %s has paid bill %s", visitID, b.ID)
			}
		}
		for _, b := range list {
			if err := s.deletePending(ctx, b); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// -- Line items --

func validateLine(l *BillService) error {
	l.ServiceName = strings.TrimSpace(l.ServiceName)
	if l.ServiceName == "" {
		return apperrors.Validation("bill_service", "service_name", "service_name is required")
	}
	if l.Amount < 0 || math.IsNaN(l.Amount) || math.IsInf(l.Amount, 0) {
		return apperrors.Validation("bill_service", "amount", "amount must be zero or greater")
	}
	if l.Quantity < 1 {
		return apperrors.Validation("bill_service", "quantity", "quantity must be at least 1")
	}
	l.Amount = round2(l.Amount)
	return nil
}

// lockPending locks the bill and refuses line item changes once it is paid.
func (s *Service) lockPending(ctx context.Context, billID string) error {
	b, err := s.bills.GetForUpdate(ctx, billID)
	if err != nil {
		return err
	}
	if b.Status == StatusPaid {
		return apperrors.Conflict("bill_service", "bill %s is paid and its services cannot change", billID)
	}
	return nil
}

func (s *Service) AddService(ctx context.Context, l *BillService) error {
	if err := validateLine(l); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.lockPending(ctx, l.BillID); err != nil {
			return err
		}
		l.ID = ids.OrNew(l.ID, ids.PrefixBillService)
		return s.lines.Create(ctx, l)
	})
}

// ImportService adds a historical line item. Paid bills accept it since
// their items arrive after the bill row.
func (s *Service) ImportService(ctx context.Context, l *BillService) error {
	if err := validateLine(l); err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.bills.GetByID(ctx, l.BillID); err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NotFoundRef("bill", "bill_id", l.BillID)
			}
			return err
		}
		l.ID = ids.OrNew(l.ID, ids.PrefixBillService)
		return s.lines.Create(ctx, l)
	})
}

func (s *Service) GetService(ctx context.Context, id string) (*BillService, error) {
	return s.lines.GetByID(ctx, id)
}

func (s *Service) ListServices(ctx context.Context, billID string) ([]*BillService, error) {
	if _, err := s.bills.GetByID(ctx, billID); err != nil {
		return nil, err
	}
	return s.lines.ListByBill(ctx, billID)
}

func (s *Service) UpdateService(ctx context.Context, id string, patch BillServicePatch) (*BillService, error) {
	var out *BillService
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.lines.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.lockPending(ctx, l.BillID); err != nil {
			return err
		}
		if patch.ServiceName != nil {
			l.ServiceName = *patch.ServiceName
		}
		if patch.Amount != nil {
			l.Amount = *patch.Amount
		}
		if patch.Quantity != nil {
			l.Quantity = *patch.Quantity
		}
		if err := validateLine(l); err != nil {
			return err
		}
		if err := s.lines.Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

func (s *Service) DeleteService(ctx context.Context, id string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.lines.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.lockPending(ctx, l.BillID); err != nil {
			return err
		}
		return s.lines.Delete(ctx, id)
	})
}

// -- Reconciliation --

func (s *Service) evaluate(rep *ReconcileReport) *ReconcileReport {
	rep.ServicesTotal = round2(rep.ServicesTotal)
	rep.Difference = round2(rep.AmountTotal - (rep.ServicesTotal + rep.Tax))
	rep.Balanced = math.Abs(rep.Difference) <= s.cfg.Tolerance+1e-9
	return rep
}

// Reconcile compares a bill's total with the sum of its line items plus
// tax. It never changes the bill.
func (s *Service) Reconcile(ctx context.Context, billID string) (*ReconcileReport, error) {
	b, err := s.bills.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	lines, err := s.lines.ListByBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	rep := &ReconcileReport{BillID: b.ID, AmountTotal: b.AmountTotal, Tax: b.Tax, ServiceCount: len(lines)}
	for _, l := range lines {
		rep.ServicesTotal += l.LineTotal()
	}
	return s.evaluate(rep), nil
}

// ReconcileAll returns a report for every bill that does not balance.
func (s *Service) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	totals, err := s.bills.Totals(ctx)
	if err != nil {
		return nil, err
	}
	var out []*ReconcileReport
	for _, rep := range totals {
		if !s.evaluate(rep).Balanced {
			out = append(out, rep)
		}
	}
	return out, nil
}

// -- Invoices --

// CreateInvoice writes a Pending bill and its line items together. The
// subtotal is the sum of the items and the tax is the subtotal at the
// requested rate.
func (s *Service) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Bill, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("bill", "items", "at least one item is required")
	}
	rate := s.cfg.TaxRate
	if req.TaxRate != nil {
		rate = *req.TaxRate
	}
	if rate < 0 || rate > 1 {
		return nil, apperrors.Validation("bill", "tax_rate", "tax_rate must be between 0 and 1")
	}

	lines := make([]*BillService, 0, len(req.Items))
	subtotal := 0.0
	for _, it := range req.Items {
		l := &BillService{ServiceName: it.ServiceName, Amount: it.Amount, Quantity: it.Quantity}
		if l.Quantity == 0 {
			l.Quantity = 1
		}
		if err := validateLine(l); err != nil {
			return nil, err
		}
		subtotal += l.LineTotal()
		lines = append(lines, l)
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal * rate)

	b := &Bill{
		ID:          req.ID,
		VisitID:     req.VisitID,
		PatientID:   req.PatientID,
		Subtotal:    subtotal,
		Tax:         tax,
		AmountTotal: round2(subtotal + tax),
	}
	if req.BillingDate != nil {
		b.BillingDate = *req.BillingDate
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.CreateBill(ctx, b); err != nil {
			return err
		}
		for _, l := range lines {
			l.BillID = b.ID
			l.ID = ids.New(ids.PrefixBillService)
			if err := s.lines.Create(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.Services = lines
	return b, nil
}
