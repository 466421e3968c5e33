package billing

import (
	"context"

	"github.com/orms/orms/internal/domain/visit"
)

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id string) (*Bill, error)
	// GetForUpdate reads the bill and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Bill, error)
	Update(ctx context.Context, b *Bill) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Bill, int, error)
	ListByVisit(ctx context.Context, visitID string) ([]*Bill, error)
	CountByVisit(ctx context.Context, visitID string) (int, error)
	// Totals returns one unevaluated report per bill: the stated amounts
	// alongside the sum and count of its line items.
	Totals(ctx context.Context) ([]*ReconcileReport, error)
}

type BillServiceRepository interface {
	Create(ctx context.Context, s *BillService) error
	GetByID(ctx context.Context, id string) (*BillService, error)
	Update(ctx context.Context, s *BillService) error
	Delete(ctx context.Context, id string) error
	ListByBill(ctx context.Context, billID string) ([]*BillService, error)
	DeleteByBill(ctx context.Context, billID string) (int64, error)
}

// VisitReader loads the visit a bill is raised against.
type VisitReader interface {
	GetVisit(ctx context.Context, id string) (*visit.Visit, error)
}

// PatientChecker confirms the billed patient exists.
type PatientChecker interface {
	PatientExists(ctx context.Context, id string) (bool, error)
}
