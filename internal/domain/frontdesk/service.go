// Package frontdesk runs the reception workflows that span several ledgers:
// registering a walk-in patient with a first visit and invoice, and
// cancelling a visit together with its unpaid bills.
package frontdesk

import (
	"context"
	"strings"
	"time"

	"github.com/orms/orms/internal/domain/billing"
	"github.com/orms/orms/internal/domain/identity"
	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/domain/visit"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/pkg/apperrors"
)

// ConsultationFallback is charged when the catalog has no active
// consultation entry.
const ConsultationFallback = 150.00

// ConsultationLine is the service name printed on registration invoices.
const ConsultationLine = "Consultation"

type PatientRegistry interface {
	CreatePatient(ctx context.Context, p *identity.Patient) error
}

type VisitLedger interface {
	CreateVisit(ctx context.Context, v *visit.Visit) error
	GetVisit(ctx context.Context, id string) (*visit.Visit, error)
	Transition(ctx context.Context, id string, target reference.VisitStatus) (*visit.Visit, error)
}

type Invoicer interface {
	CreateInvoice(ctx context.Context, req billing.InvoiceRequest) (*billing.Bill, error)
	ListByVisit(ctx context.Context, visitID string) ([]*billing.Bill, error)
	DeletePendingForVisit(ctx context.Context, visitID string) (int, error)
}

type PriceList interface {
	PriceOf(ctx context.Context, name string, fallback float64) (float64, error)
}

type Service struct {
	patients PatientRegistry
	visits   VisitLedger
	invoices Invoicer
	prices   PriceList
	tx       db.TxRunner
}

func NewService(patients PatientRegistry, visits VisitLedger, invoices Invoicer, prices PriceList, tx db.TxRunner) *Service {
	if tx == nil {
		tx = db.NopTxRunner{}
	}
	return &Service{patients: patients, visits: visits, invoices: invoices, prices: prices, tx: tx}
}

// Registration is a new patient plus the visit they are booked into.
type Registration struct {
	Patient         *identity.Patient
	DoctorID        string
	VisitDatetime   *time.Time
	ChiefComplaint  *string
	CreatedByUserID string
	// TaxRate overrides the billing rate for the consultation invoice.
	TaxRate *float64
}

type Registered struct {
	Patient *identity.Patient `json:"patient"`
	Visit   *visit.Visit      `json:"visit"`
	Bill    *billing.Bill     `json:"bill"`
}

// RegisterPatient creates the patient, a Scheduled visit with the chosen
// doctor and a Pending consultation invoice. Either all three are stored or
// none is.
func (s *Service) RegisterPatient(ctx context.Context, r Registration) (*Registered, error) {
	if r.Patient == nil {
		return nil, apperrors.Validation("registration", "patient", "patient is required")
	}
	if strings.TrimSpace(r.DoctorID) == "" {
		return nil, apperrors.Validation("registration", "doctor_id", "doctor_id is required")
	}

	var out *Registered
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.patients.CreatePatient(ctx, r.Patient); err != nil {
			return err
		}
		v := &visit.Visit{
			PatientID:       r.Patient.ID,
			DoctorID:        r.DoctorID,
			ChiefComplaint:  r.ChiefComplaint,
			CreatedByUserID: r.CreatedByUserID,
		}
		if r.VisitDatetime != nil {
			v.VisitDatetime = *r.VisitDatetime
		}
		if err := s.visits.CreateVisit(ctx, v); err != nil {
			return err
		}
		price, err := s.prices.PriceOf(ctx, reference.ConsultationService, ConsultationFallback)
		if err != nil {
			return err
		}
		bill, err := s.invoices.CreateInvoice(ctx, billing.InvoiceRequest{
			VisitID:   v.ID,
			PatientID: r.Patient.ID,
			Items:     []billing.InvoiceItem{{ServiceName: ConsultationLine, Amount: price, Quantity: 1}},
			TaxRate:   r.TaxRate,
		})
		if err != nil {
			return err
		}
		out = &Registered{Patient: r.Patient, Visit: v, Bill: bill}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelVisit moves the visit to Cancelled and removes its Pending bills.
// A Paid bill blocks the cancellation and nothing changes.
func (s *Service) CancelVisit(ctx context.Context, visitID string) (*visit.Visit, int, error) {
	var (
		out     *visit.Visit
		removed int
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.visits.GetVisit(ctx, visitID)
		if err != nil {
			return err
		}
		if !visit.CanTransition(v.Status, reference.VisitCancelled) {
			return apperrors.InvalidTransition("visit", v.Status, reference.VisitCancelled)
		}
		bills, err := s.invoices.ListByVisit(ctx, visitID)
		if err != nil {
			return err
		}
		for _, b := range bills {
			if b.Status == billing.StatusPaid {
				return apperrors.Conflict("visit", "visit %s has paid bill %s and cannot be cancelled", visitID, b.ID)
			}
		}
		if out, err = s.visits.Transition(ctx, visitID, reference.VisitCancelled); err != nil {
			return err
		}
		removed, err = s.invoices.DeletePendingForVisit(ctx, visitID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return out, removed, nil
}
