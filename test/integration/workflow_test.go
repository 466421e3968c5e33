package integration

import (
	"context"
	"testing"
	"time"

	"github.com/orms/orms/internal/domain/billing"
	"github.com/orms/orms/internal/domain/clinical"
	"github.com/orms/orms/internal/domain/frontdesk"
	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/domain/visit"
	"github.com/orms/orms/pkg/apperrors"
)

func TestVisitLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p := seedPeople(t, ctx, s)

	v := &visit.Visit{
		PatientID:       p.patient.ID,
		DoctorID:        p.doctor.ID,
		VisitDatetime:   time.Now().UTC().Add(time.Hour).Truncate(time.Second),
		CreatedByUserID: p.user.ID,
	}
	if err := s.visits.CreateVisit(ctx, v); err != nil {
		t.Fatalf("create visit: %v", err)
	}

	for _, target := range []reference.VisitStatus{reference.VisitCheckedIn, reference.VisitInProgress, reference.VisitCompleted} {
		got, err := s.visits.Transition(ctx, v.ID, target)
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
		if got.Status != target {
			t.Fatalf("expected %s, got %s", target, got.Status)
		}
	}

	got, err := s.visits.GetVisit(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CheckInDatetime == nil {
		t.Error("expected check-in time after CheckedIn")
	}

	if _, err := s.visits.Transition(ctx, v.ID, reference.VisitCancelled); !apperrors.IsInvalidTransition(err) {
		t.Errorf("expected InvalidTransition cancelling a completed visit, got %v", err)
	}

	history, err := s.visits.StatusHistory(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 4 {
		t.Errorf("expected 4 history rows, got %d", len(history))
	}
}

func TestDeleteRestrictions(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p := seedPeople(t, ctx, s)

	v := &visit.Visit{PatientID: p.patient.ID, DoctorID: p.doctor.ID, CreatedByUserID: p.user.ID}
	if err := s.visits.CreateVisit(ctx, v); err != nil {
		t.Fatal(err)
	}

	if err := s.identity.DeletePatient(ctx, p.patient.ID); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected ReferentialConflict deleting a patient with visits, got %v", err)
	}
	if err := s.identity.DeleteDoctor(ctx, p.doctor.ID); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected ReferentialConflict deleting a doctor with visits, got %v", err)
	}

	dx := &clinical.Diagnosis{VisitID: v.ID, DiagnosisCode: "R51"}
	if err := s.clinical.CreateDiagnosis(ctx, dx); err != nil {
		t.Fatal(err)
	}
	med := &reference.Medication{Name: "Ibuprofen"}
	if err := s.reference.CreateMedication(ctx, med); err != nil {
		t.Fatal(err)
	}
	rx := &clinical.Prescription{VisitID: v.ID, MedicationID: med.ID, DurationDays: 5}
	if err := s.clinical.CreatePrescription(ctx, rx); err != nil {
		t.Fatal(err)
	}
	if err := s.reference.DeleteMedication(ctx, med.ID); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected ReferentialConflict deleting a prescribed medication, got %v", err)
	}

	if err := s.visits.DeleteVisit(ctx, v.ID); err != nil {
		t.Fatalf("delete visit: %v", err)
	}
	if _, err := s.clinical.GetDiagnosis(ctx, dx.ID); !apperrors.IsNotFound(err) {
		t.Errorf("diagnosis should be gone with its visit, got %v", err)
	}
	if _, err := s.clinical.GetPrescription(ctx, rx.ID); !apperrors.IsNotFound(err) {
		t.Errorf("prescription should be gone with its visit, got %v", err)
	}

	if err := s.identity.DeletePatient(ctx, p.patient.ID); err != nil {
		t.Errorf("patient without visits should delete, got %v", err)
	}
}

func TestBillPaymentAndReconcile(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p := seedPeople(t, ctx, s)

	v := &visit.Visit{PatientID: p.patient.ID, DoctorID: p.doctor.ID, CreatedByUserID: p.user.ID}
	if err := s.visits.CreateVisit(ctx, v); err != nil {
		t.Fatal(err)
	}

	other := seedPeople(t, ctx, s)
	mismatch := &billing.Bill{VisitID: v.ID, PatientID: other.patient.ID, Subtotal: 150, AmountTotal: 150}
	if err := s.billing.CreateBill(ctx, mismatch); !apperrors.IsValidation(err) {
		t.Errorf("expected Validation for a patient that is not the visit's, got %v", err)
	}

	b := &billing.Bill{VisitID: v.ID, Subtotal: 150, AmountTotal: 150}
	if err := s.billing.CreateBill(ctx, b); err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if err := s.billing.AddService(ctx, &billing.BillService{BillID: b.ID, ServiceName: "Consultation", Amount: 150, Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	if err := s.visits.DeleteVisit(ctx, v.ID); !apperrors.IsReferentialConflict(err) {
		t.Errorf("expected ReferentialConflict deleting a billed visit, got %v", err)
	}

	paid, err := s.billing.MarkPaid(ctx, b.ID, nil, nil)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != billing.StatusPaid || paid.PaymentDate == nil {
		t.Errorf("unexpected paid bill %+v", paid)
	}
	if _, err := s.billing.MarkPaid(ctx, b.ID, nil, nil); !apperrors.IsInvalidTransition(err) {
		t.Errorf("expected InvalidTransition paying twice, got %v", err)
	}

	rep, err := s.billing.Reconcile(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Balanced {
		t.Errorf("expected balanced bill, got %+v", rep)
	}
}

func TestRegistrationAndCancel(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p := seedPeople(t, ctx, s)

	pat := *p.patient
	pat.ID = ""
	pat.FirstName = "Lena"
	out, err := s.frontdesk.RegisterPatient(ctx, frontdesk.Registration{
		Patient:         &pat,
		DoctorID:        p.doctor.ID,
		CreatedByUserID: p.user.ID,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out.Bill.AmountTotal != 165 {
		t.Errorf("expected consultation 150 plus 10%% tax, got %v", out.Bill.AmountTotal)
	}

	_, removed, err := s.frontdesk.CancelVisit(ctx, out.Visit.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected the pending invoice removed, got %d", removed)
	}
	if _, err := s.billing.GetBill(ctx, out.Bill.ID); !apperrors.IsNotFound(err) {
		t.Errorf("expected bill deleted, got %v", err)
	}
}

func TestRegistrationRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	p := seedPeople(t, ctx, s)

	pat := *p.patient
	pat.ID = ""
	_, err := s.frontdesk.RegisterPatient(ctx, frontdesk.Registration{
		Patient:         &pat,
		DoctorID:        "DOC-NOPE",
		CreatedByUserID: p.user.ID,
	})
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected NotFound for an unknown doctor, got %v", err)
	}
	if pat.ID != "" {
		if ok, _ := s.identity.PatientExists(ctx, pat.ID); ok {
			t.Error("patient should not survive a failed registration")
		}
	}
}
