package billing

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/domain/visit"
	"github.com/orms/orms/pkg/apperrors"
)

// -- Mock Bill Repository --

type mockBillRepo struct {
	items map[string]*Bill
	lines *mockLineRepo
}

func newMockBillRepo(lines *mockLineRepo) *mockBillRepo {
	return &mockBillRepo{items: make(map[string]*Bill), lines: lines}
}

func (m *mockBillRepo) Create(_ context.Context, b *Bill) error {
	if _, ok := m.items[b.ID]; ok {
		return apperrors.Duplicate("bill", "bill_id", b.ID)
	}
	b.CreatedAt = time.Now()
	cp := *b
	cp.Services = nil
	m.items[b.ID] = &cp
	return nil
}

func (m *mockBillRepo) GetByID(_ context.Context, id string) (*Bill, error) {
	b, ok := m.items[id]
	if !ok {
		return nil, apperrors.NotFound("bill", id)
	}
	cp := *b
	return &cp, nil
}

func (m *mockBillRepo) GetForUpdate(ctx context.Context, id string) (*Bill, error) {
	return m.GetByID(ctx, id)
}

func (m *mockBillRepo) Update(_ context.Context, b *Bill) error {
	if _, ok := m.items[b.ID]; !ok {
		return apperrors.NotFound("bill", b.ID)
	}
	cp := *b
	m.items[b.ID] = &cp
	return nil
}

func (m *mockBillRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return apperrors.NotFound("bill", id)
	}
	delete(m.items, id)
	return nil
}

func (m *mockBillRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Bill, int, error) {
	var result []*Bill
	for _, b := range m.items {
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.PatientID != "" && b.PatientID != f.PatientID {
			continue
		}
		if f.VisitID != "" && b.VisitID != f.VisitID {
			continue
		}
		if f.Search != "" && !strings.Contains(b.ID, f.Search) {
			continue
		}
		result = append(result, b)
	}
	return result, len(result), nil
}

func (m *mockBillRepo) ListByVisit(_ context.Context, visitID string) ([]*Bill, error) {
	var result []*Bill
	for _, b := range m.items {
		if b.VisitID == visitID {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockBillRepo) CountByVisit(ctx context.Context, visitID string) (int, error) {
	list, _ := m.ListByVisit(ctx, visitID)
	return len(list), nil
}

func (m *mockBillRepo) Totals(ctx context.Context) ([]*ReconcileReport, error) {
	var out []*ReconcileReport
	for _, b := range m.items {
		rep := &ReconcileReport{BillID: b.ID, AmountTotal: b.AmountTotal, Tax: b.Tax}
		lines, _ := m.lines.ListByBill(ctx, b.ID)
		for _, l := range lines {
			rep.ServicesTotal += l.Amount * float64(l.Quantity)
			rep.ServiceCount++
		}
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillID < out[j].BillID })
	return out, nil
}

// -- Mock Line Item Repository --

type mockLineRepo struct {
	items map[string]*BillService
}

func newMockLineRepo() *mockLineRepo {
	return &mockLineRepo{items: make(map[string]*BillService)}
}

func (m *mockLineRepo) Create(_ context.Context, s *BillService) error {
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *mockLineRepo) GetByID(_ context.Context, id string) (*BillService, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperrors.NotFound("bill_service", id)
	}
	cp := *s
	return &cp, nil
}

func (m *mockLineRepo) Update(_ context.Context, s *BillService) error {
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *mockLineRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return apperrors.NotFound("bill_service", id)
	}
	delete(m.items, id)
	return nil
}

func (m *mockLineRepo) ListByBill(_ context.Context, billID string) ([]*BillService, error) {
	var result []*BillService
	for _, s := range m.items {
		if s.BillID == billID {
			cp := *s
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockLineRepo) DeleteByBill(_ context.Context, billID string) (int64, error) {
	var n int64
	for id, s := range m.items {
		if s.BillID == billID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

// -- Collaborators --

type stubVisits map[string]string

func (s stubVisits) GetVisit(_ context.Context, id string) (*visit.Visit, error) {
	patient, ok := s[id]
	if !ok {
		return nil, apperrors.NotFound("visit", id)
	}
	return &visit.Visit{ID: id, PatientID: patient, Status: reference.VisitScheduled}, nil
}

// visitsInStatus reports every known visit in a fixed status.
type visitsInStatus struct {
	stubVisits
	status reference.VisitStatus
}

func (s visitsInStatus) GetVisit(ctx context.Context, id string) (*visit.Visit, error) {
	v, err := s.stubVisits.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Status = s.status
	return v, nil
}

type stubPatients map[string]bool

func (s stubPatients) PatientExists(_ context.Context, id string) (bool, error) { return s[id], nil }

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockBillRepo, *mockLineRepo) {
	lines := newMockLineRepo()
	bills := newMockBillRepo(lines)
	svc := NewService(bills, lines, nil,
		stubVisits{"V1": "P1", "V2": "P2"}, stubPatients{"P1": true, "P2": true},
		Config{TaxRate: 0.10})
	svc.now = func() time.Time { return fixedNow }
	return svc, bills, lines
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int           { return &n }
func strPtr(s string) *string     { return &s }

func pendingBill(id string) *Bill {
	return &Bill{ID: id, VisitID: "V1", PatientID: "P1", Subtotal: 150, AmountTotal: 150}
}

// -- Bill Tests --

func TestCreateBill(t *testing.T) {
	svc, _, _ := newTestService()
	b := &Bill{VisitID: "V1", Subtotal: 100, Tax: 10, AmountTotal: 110, Status: StatusPaid}
	if err := svc.CreateBill(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(b.ID, "BILL-") {
		t.Errorf("expected BILL- id, got %s", b.ID)
	}
	if b.Status != StatusPending || b.PaymentDate != nil {
		t.Errorf("new bills start Pending, got %s", b.Status)
	}
	if b.PatientID != "P1" {
		t.Errorf("expected patient taken from visit, got %q", b.PatientID)
	}
	if !b.BillingDate.Equal(fixedNow) {
		t.Errorf("expected billing date defaulted to now, got %v", b.BillingDate)
	}
}

func TestCreateBill_References(t *testing.T) {
	tests := []struct {
		name  string
		bill  *Bill
		check func(error) bool
		field string
	}{
		{"patient mismatch", &Bill{VisitID: "V1", PatientID: "P2", AmountTotal: 10}, apperrors.IsValidation, "patient_id"},
		{"unknown visit", &Bill{VisitID: "V9", AmountTotal: 10}, apperrors.IsNotFound, "visit_id"},
		{"missing visit", &Bill{AmountTotal: 10}, apperrors.IsValidation, "visit_id"},
		{"unknown patient", &Bill{VisitID: "V1", PatientID: "P9", AmountTotal: 10}, apperrors.IsNotFound, "patient_id"},
		{"negative total", &Bill{VisitID: "V1", AmountTotal: -1}, apperrors.IsValidation, "amount_total"},
		{"negative tax", &Bill{VisitID: "V1", Tax: -0.5}, apperrors.IsValidation, "tax"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, bills, _ := newTestService()
			err := svc.CreateBill(context.Background(), tt.bill)
			if !tt.check(err) || apperrors.As(err).Field != tt.field {
				t.Errorf("expected error on %s, got %v", tt.field, err)
			}
			if len(bills.items) != 0 {
				t.Errorf("expected nothing written")
			}
		})
	}
}

func TestMarkPaid(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))

	b, err := svc.MarkPaid(ctx, "B1", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != StatusPaid || *b.PaymentMethod != reference.PaymentCash || !b.PaymentDate.Equal(fixedNow) {
		t.Errorf("unexpected paid bill %+v", b)
	}

	card := reference.PaymentCreditCard
	_, err = svc.MarkPaid(ctx, "B1", &card, nil)
	if !apperrors.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition paying twice, got %v", err)
	}
	got, _ := svc.GetBill(ctx, "B1")
	if *got.PaymentMethod != reference.PaymentCash {
		t.Errorf("second payment must not change the bill")
	}
}

func TestMarkPaid_Method(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))

	bad := reference.PaymentMethod(42)
	if _, err := svc.MarkPaid(ctx, "B1", &bad, nil); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown method, got %v", err)
	}
	zero := reference.PaymentMethod(0)
	if _, err := svc.MarkPaid(ctx, "B1", &zero, nil); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for missing method, got %v", err)
	}
	paidAt := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	ins := reference.PaymentInsurance
	b, err := svc.MarkPaid(ctx, "B1", &ins, &paidAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *b.PaymentMethod != reference.PaymentInsurance || !b.PaymentDate.Equal(paidAt) {
		t.Errorf("unexpected payment %+v", b)
	}
	if _, err := svc.MarkPaid(ctx, "B404", nil, nil); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateBill(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))

	b, err := svc.UpdateBill(ctx, "B1", BillPatch{Tax: floatPtr(15), AmountTotal: floatPtr(165)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Tax != 15 || b.AmountTotal != 165 {
		t.Errorf("patch not applied: %+v", b)
	}
	if _, err := svc.UpdateBill(ctx, "B1", BillPatch{Subtotal: floatPtr(-1)}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for negative subtotal, got %v", err)
	}
	if _, err := svc.UpdateBill(ctx, "B1", BillPatch{PatientID: strPtr("P2")}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for patient mismatch, got %v", err)
	}

	svc.MarkPaid(ctx, "B1", nil, nil)
	if _, err := svc.UpdateBill(ctx, "B1", BillPatch{Tax: floatPtr(0)}); !apperrors.IsInvalidTransition(err) {
		t.Errorf("expected invalid transition updating a paid bill, got %v", err)
	}
}

func TestDeleteBill(t *testing.T) {
	svc, bills, lines := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))
	svc.AddService(ctx, &BillService{BillID: "B1", ServiceName: "Consultation", Amount: 150, Quantity: 1})

	if err := svc.DeleteBill(ctx, "B1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bills.items) != 0 || len(lines.items) != 0 {
		t.Errorf("expected bill and its services removed")
	}

	svc.CreateBill(ctx, pendingBill("B2"))
	svc.MarkPaid(ctx, "B2", nil, nil)
	if err := svc.DeleteBill(ctx, "B2"); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected conflict deleting a paid bill, got %v", err)
	}
}

func TestDeleteBill_VisitNotDeletable(t *testing.T) {
	tests := []struct {
		status  reference.VisitStatus
		allowed bool
	}{
		{reference.VisitScheduled, true},
		{reference.VisitCheckedIn, false},
		{reference.VisitInProgress, false},
		{reference.VisitCompleted, false},
		{reference.VisitCancelled, true},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			lines := newMockLineRepo()
			bills := newMockBillRepo(lines)
			svc := NewService(bills, lines, nil,
				visitsInStatus{stubVisits{"V1": "P1"}, tt.status}, stubPatients{"P1": true},
				Config{TaxRate: 0.10})
			ctx := context.Background()
			if err := svc.CreateBill(ctx, pendingBill("B1")); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			err := svc.DeleteBill(ctx, "B1")
			if tt.allowed {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperrors.IsReferentialConflict(err) {
				t.Fatalf("expected conflict for a %s visit, got %v", tt.status, err)
			}
			if _, ok := bills.items["B1"]; !ok {
				t.Errorf("bill must survive a refused delete")
			}
		})
	}
}

func TestDeletePendingForVisit(t *testing.T) {
	svc, bills, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))
	svc.CreateBill(ctx, pendingBill("B2"))

	n, err := svc.DeletePendingForVisit(ctx, "V1")
	if err != nil || n != 2 || len(bills.items) != 0 {
		t.Fatalf("expected 2 bills removed, got %d, %v", n, err)
	}

	svc.CreateBill(ctx, pendingBill("B3"))
	svc.CreateBill(ctx, pendingBill("B4"))
	svc.MarkPaid(ctx, "B4", nil, nil)
	if _, err := svc.DeletePendingForVisit(ctx, "V1"); !apperrors.IsReferentialConflict(err) {
		t.Fatalf("expected conflict with a paid bill, got %v", err)
	}
	if _, ok := bills.items["B3"]; !ok {
		t.Errorf("pending bill must survive a blocked delete")
	}
}

// -- Line item Tests --

func TestAddService_Validation(t *testing.T) {
	tests := []struct {
		name  string
		line  BillService
		field string
	}{
		{"missing name", BillService{Amount: 10, Quantity: 1}, "service_name"},
		{"negative amount", BillService{ServiceName: "X-ray", Amount: -1, Quantity: 1}, "amount"},
		{"zero quantity", BillService{ServiceName: "X-ray", Amount: 10}, "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			svc.CreateBill(context.Background(), pendingBill("B1"))
			l := tt.line
			l.BillID = "B1"
			err := svc.AddService(context.Background(), &l)
			if !apperrors.IsValidation(err) || apperrors.As(err).Field != tt.field {
				t.Errorf("expected validation on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestServices_PaidBillLocked(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))
	line := &BillService{BillID: "B1", ServiceName: "Consultation", Amount: 150, Quantity: 1}
	if err := svc.AddService(ctx, line); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(line.ID, "SVC-") {
		t.Errorf("expected SVC- id, got %s", line.ID)
	}
	svc.MarkPaid(ctx, "B1", nil, nil)

	if err := svc.AddService(ctx, &BillService{BillID: "B1", ServiceName: "X-ray", Amount: 80, Quantity: 1}); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected conflict adding to a paid bill, got %v", err)
	}
	if _, err := svc.UpdateService(ctx, line.ID, BillServicePatch{Quantity: intPtr(2)}); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected conflict updating a paid line, got %v", err)
	}
	if err := svc.DeleteService(ctx, line.ID); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected conflict deleting a paid line, got %v", err)
	}
	items, _ := svc.ListServices(ctx, "B1")
	if len(items) != 1 || items[0].Quantity != 1 {
		t.Errorf("paid bill lines must be unchanged, got %+v", items)
	}
}

func TestUpdateService(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))
	line := &BillService{ID: "S1", BillID: "B1", ServiceName: "Lab", Amount: 20, Quantity: 1}
	svc.AddService(ctx, line)

	got, err := svc.UpdateService(ctx, "S1", BillServicePatch{Quantity: intPtr(3), ServiceName: strPtr(" Blood panel ")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Quantity != 3 || got.ServiceName != "Blood panel" {
		t.Errorf("patch not applied: %+v", got)
	}
	if _, err := svc.UpdateService(ctx, "S1", BillServicePatch{Quantity: intPtr(0)}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for zero quantity, got %v", err)
	}
	if err := svc.DeleteService(ctx, "S1"); err != nil {
		t.Errorf("unexpected error deleting line: %v", err)
	}
}

func TestImportService_PaidBill(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	b := pendingBill("B1")
	b.Status = StatusPaid
	if err := svc.ImportBill(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.ImportService(ctx, &BillService{BillID: "B1", ServiceName: "Consultation", Amount: 150, Quantity: 1}); err != nil {
		t.Errorf("imports may add lines to paid bills: %v", err)
	}
	if err := svc.ImportService(ctx, &BillService{BillID: "B9", ServiceName: "Consultation", Amount: 150, Quantity: 1}); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown bill, got %v", err)
	}
}

// -- Reconciliation Tests --

func TestReconcile_ConsultationScenario(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	if err := svc.CreateBill(ctx, pendingBill("B1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.AddService(ctx, &BillService{BillID: "B1", ServiceName: "Consultation", Amount: 150, Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.MarkPaid(ctx, "B1", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rep, err := svc.Reconcile(ctx, "B1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Balanced || rep.ServicesTotal != 150 || rep.Difference != 0 || rep.ServiceCount != 1 {
		t.Errorf("expected balanced report, got %+v", rep)
	}
}

func TestReconcile_Tolerance(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		tax      float64
		balanced bool
	}{
		{"exact with tax", 165, 15, true},
		{"within a cent", 150.01, 0, true},
		{"two cents out", 150.02, 0, false},
		{"tax missing from total", 150, 15, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			ctx := context.Background()
			svc.CreateBill(ctx, &Bill{ID: "B1", VisitID: "V1", Tax: tt.tax, AmountTotal: tt.total})
			svc.AddService(ctx, &BillService{BillID: "B1", ServiceName: "Consultation", Amount: 50, Quantity: 3})
			rep, err := svc.Reconcile(ctx, "B1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rep.Balanced != tt.balanced {
				t.Errorf("expected balanced=%v, got %+v", tt.balanced, rep)
			}
		})
	}
}

func TestReconcileAll(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))
	svc.AddService(ctx, &BillService{BillID: "B1", ServiceName: "Consultation", Amount: 150, Quantity: 1})
	svc.CreateBill(ctx, pendingBill("B2"))

	reps, err := svc.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reps) != 1 || reps[0].BillID != "B2" || reps[0].Difference != 150 {
		t.Errorf("expected only B2 unbalanced, got %+v", reps)
	}
}

// -- Invoice Tests --

func TestCreateInvoice(t *testing.T) {
	svc, _, lines := newTestService()
	ctx := context.Background()
	b, err := svc.CreateInvoice(ctx, InvoiceRequest{
		VisitID: "V2",
		Items: []InvoiceItem{
			{ServiceName: "Consultation", Amount: 150},
			{ServiceName: "Lab", Amount: 12.5, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Subtotal != 175 || b.Tax != 17.5 || b.AmountTotal != 192.5 {
		t.Errorf("unexpected amounts %+v", b)
	}
	if b.PatientID != "P2" || len(lines.items) != 2 {
		t.Errorf("expected invoice for P2 with 2 lines, got %s/%d", b.PatientID, len(lines.items))
	}
	if !strings.HasPrefix(b.InvoiceNumber(), "INV-") {
		t.Errorf("unexpected invoice number %s", b.InvoiceNumber())
	}
	rep, _ := svc.Reconcile(ctx, b.ID)
	if !rep.Balanced {
		t.Errorf("a fresh invoice must reconcile, got %+v", rep)
	}
}

func TestCreateInvoice_Validation(t *testing.T) {
	svc, bills, lines := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateInvoice(ctx, InvoiceRequest{VisitID: "V1"}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation without items, got %v", err)
	}
	items := []InvoiceItem{{ServiceName: "Consultation", Amount: 150}}
	if _, err := svc.CreateInvoice(ctx, InvoiceRequest{VisitID: "V1", Items: items, TaxRate: floatPtr(1.5)}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for tax rate, got %v", err)
	}
	if _, err := svc.CreateInvoice(ctx, InvoiceRequest{VisitID: "V9", Items: items}); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown visit, got %v", err)
	}
	if len(bills.items) != 0 || len(lines.items) != 0 {
		t.Errorf("failed invoices must write nothing")
	}
	b, err := svc.CreateInvoice(ctx, InvoiceRequest{VisitID: "V1", Items: items, TaxRate: floatPtr(0)})
	if err != nil || b.Tax != 0 || b.AmountTotal != 150 {
		t.Errorf("expected untaxed invoice, got %+v, %v", b, err)
	}
}

// -- Import and listing --

func TestImportBill(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	billed := time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC)
	b := &Bill{ID: "BILL-00A1B2", VisitID: "V1", PatientID: "P1", AmountTotal: 90, Status: StatusPaid, BillingDate: billed}
	if err := svc.ImportBill(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *b.PaymentMethod != reference.PaymentCash || !b.PaymentDate.Equal(billed) {
		t.Errorf("expected Cash paid on billing date, got %+v", b)
	}
	if err := svc.ImportBill(ctx, &Bill{VisitID: "V1", Status: "Refunded"}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for unknown status, got %v", err)
	}
	card := reference.PaymentMethod(11)
	if err := svc.ImportBill(ctx, &Bill{VisitID: "V1", Status: StatusPaid, PaymentMethod: &card}); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown payment method, got %v", err)
	}
	if err := svc.ImportBill(ctx, &Bill{VisitID: "V2", PatientID: "P1"}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for patient mismatch, got %v", err)
	}
}

func TestListBills(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.CreateBill(ctx, pendingBill("B1"))
	svc.CreateBill(ctx, pendingBill("B2"))
	svc.MarkPaid(ctx, "B2", nil, nil)

	paid := StatusPaid
	list, total, err := svc.ListBills(ctx, Filter{Status: &paid}, 20, 0)
	if err != nil || total != 1 || list[0].ID != "B2" {
		t.Errorf("expected only B2, got %d, %v", total, err)
	}
	bad := Status("Void")
	if _, _, err := svc.ListBills(ctx, Filter{Status: &bad}, 20, 0); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for unknown status, got %v", err)
	}
	if n, _ := svc.CountByVisit(ctx, "V1"); n != 2 {
		t.Errorf("expected 2 bills for V1, got %d", n)
	}
}

// satisfies the visit ledger's delete guard
var _ visit.BillCounter = (*Service)(nil)
