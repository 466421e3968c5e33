package billing

import (
	"math"
	"time"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/pkg/ids"
)

// Status is the payment state of a bill. It moves Pending -> Paid once.
type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
)

func (s Status) Valid() bool    { return s == StatusPending || s == StatusPaid }
func (s Status) String() string { return string(s) }

// Bill maps to the bills table.
type Bill struct {
	ID            string                   `json:"bill_id"`
	VisitID       string                   `json:"visit_id"`
	PatientID     string                   `json:"patient_id"`
	Subtotal      float64                  `json:"subtotal"`
	Tax           float64                  `json:"tax"`
	AmountTotal   float64                  `json:"amount_total"`
	Status        Status                   `json:"status"`
	PaymentMethod *reference.PaymentMethod `json:"payment_method,omitempty"`
	PaymentDate   *time.Time               `json:"payment_date,omitempty"`
	BillingDate   time.Time                `json:"billing_date"`
	CreatedAt     time.Time                `json:"created_at"`
	Services      []*BillService           `json:"services,omitempty"`
}

// InvoiceNumber is the display number printed on the invoice.
func (b *Bill) InvoiceNumber() string {
	return ids.InvoiceNumber(b.ID)
}

// BillService maps to the bill_services table: one line item of a bill.
type BillService struct {
	ID          string  `json:"service_id"`
	BillID      string  `json:"bill_id"`
	ServiceName string  `json:"service_name"`
	Amount      float64 `json:"amount"`
	Quantity    int     `json:"quantity"`
}

// LineTotal is amount times quantity.
func (s *BillService) LineTotal() float64 {
	return round2(s.Amount * float64(s.Quantity))
}

type BillPatch struct {
	VisitID     *string
	PatientID   *string
	Subtotal    *float64
	Tax         *float64
	AmountTotal *float64
	BillingDate *time.Time
}

type BillServicePatch struct {
	ServiceName *string
	Amount      *float64
	Quantity    *int
}

// Filter narrows ListBills. Search matches the bill id, invoice number or
// patient name.
type Filter struct {
	Status    *Status
	PatientID string
	VisitID   string
	Search    string
}

// ReconcileReport compares a bill's stated total with its line items.
type ReconcileReport struct {
	BillID        string  `json:"bill_id"`
	AmountTotal   float64 `json:"amount_total"`
	Tax           float64 `json:"tax"`
	ServicesTotal float64 `json:"services_total"`
	Difference    float64 `json:"difference"`
	Balanced      bool    `json:"balanced"`
	ServiceCount  int     `json:"service_count"`
}

// InvoiceItem is one requested line of a new invoice. Quantity 0 means 1.
type InvoiceItem struct {
	ServiceName string  `json:"service_name"`
	Amount      float64 `json:"amount"`
	Quantity    int     `json:"quantity"`
}

// InvoiceRequest creates a bill and its line items in one step. A nil
// TaxRate uses the configured rate.
type InvoiceRequest struct {
	ID          string        `json:"bill_id"`
	VisitID     string        `json:"visit_id"`
	PatientID   string        `json:"patient_id"`
	Items       []InvoiceItem `json:"items"`
	TaxRate     *float64      `json:"tax_rate"`
	BillingDate *time.Time    `json:"-"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
