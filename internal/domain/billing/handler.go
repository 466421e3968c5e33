package billing

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/dates"
	"github.com/orms/orms/pkg/ids"
	"github.com/orms/orms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/bills", h.ListBills)
	api.POST("/bills", h.CreateBill)
	api.GET("/bills/reconcile", h.ReconcileAll)
	api.GET("/bills/:id", h.GetBill)
	api.PATCH("/bills/:id", h.UpdateBill)
	api.DELETE("/bills/:id", h.DeleteBill)
	api.POST("/bills/:id/pay", h.MarkPaid)
	api.GET("/bills/:id/reconcile", h.Reconcile)

	api.GET("/bills/:id/services", h.ListServices)
	api.POST("/bills/:id/services", h.AddService)
	api.GET("/bill-services/:id", h.GetService)
	api.PATCH("/bill-services/:id", h.UpdateService)
	api.DELETE("/bill-services/:id", h.DeleteService)

	api.POST("/invoices", h.CreateInvoice)
	api.GET("/invoices/:number", h.GetInvoice)
}

func parseTime(field string, s *string) (*time.Time, error) {
	t, err := dates.Optional(s, dates.ParseDateTime)
	if err != nil {
		return nil, apperrors.Validation("bill", field, "%s is not a recognised date or time", field)
	}
	return t, nil
}

// -- Bills --

type billRequest struct {
	ID          string   `json:"bill_id"`
	VisitID     string   `json:"visit_id"`
	PatientID   string   `json:"patient_id"`
	Subtotal    float64  `json:"subtotal"`
	Tax         float64  `json:"tax"`
	AmountTotal *float64 `json:"amount_total"`
	BillingDate *string  `json:"billing_date"`
}

type billPatchRequest struct {
	VisitID     *string  `json:"visit_id"`
	PatientID   *string  `json:"patient_id"`
	Subtotal    *float64 `json:"subtotal"`
	Tax         *float64 `json:"tax"`
	AmountTotal *float64 `json:"amount_total"`
	BillingDate *string  `json:"billing_date"`
}

type payRequest struct {
	PaymentMethod *reference.PaymentMethod `json:"payment_method"`
	PaymentDate   *string                  `json:"payment_date"`
}

func (h *Handler) CreateBill(c echo.Context) error {
	var req billRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("bill", "body", "invalid request body")
	}
	billed, err := parseTime("billing_date", req.BillingDate)
	if err != nil {
		return err
	}
	b := &Bill{
		ID:        req.ID,
		VisitID:   req.VisitID,
		PatientID: req.PatientID,
		Subtotal:  req.Subtotal,
		Tax:       req.Tax,
	}
	// an omitted total is the subtotal plus tax
	if req.AmountTotal != nil {
		b.AmountTotal = *req.AmountTotal
	} else {
		b.AmountTotal = req.Subtotal + req.Tax
	}
	if billed != nil {
		b.BillingDate = *billed
	}
	if err := h.svc.CreateBill(c.Request().Context(), b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBill(c echo.Context) error {
	b, err := h.svc.GetBill(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBills(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		PatientID: c.QueryParam("patient_id"),
		VisitID:   c.QueryParam("visit_id"),
		Search:    c.QueryParam("q"),
	}
	if st := c.QueryParam("status"); st != "" {
		status := Status(st)
		f.Status = &status
	}
	bills, total, err := h.svc.ListBills(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(bills, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateBill(c echo.Context) error {
	var req billPatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("bill", "body", "invalid request body")
	}
	billed, err := parseTime("billing_date", req.BillingDate)
	if err != nil {
		return err
	}
	b, err := h.svc.UpdateBill(c.Request().Context(), c.Param("id"), BillPatch{
		VisitID:     req.VisitID,
		PatientID:   req.PatientID,
		Subtotal:    req.Subtotal,
		Tax:         req.Tax,
		AmountTotal: req.AmountTotal,
		BillingDate: billed,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBill(c echo.Context) error {
	if err := h.svc.DeleteBill(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkPaid(c echo.Context) error {
	var req payRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("bill", "body", "invalid request body")
	}
	paid, err := parseTime("payment_date", req.PaymentDate)
	if err != nil {
		return err
	}
	b, err := h.svc.MarkPaid(c.Request().Context(), c.Param("id"), req.PaymentMethod, paid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Reconcile(c echo.Context) error {
	rep, err := h.svc.Reconcile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) ReconcileAll(c echo.Context) error {
	reps, err := h.svc.ReconcileAll(c.Request().Context())
	if err != nil {
		return err
	}
	if reps == nil {
		reps = []*ReconcileReport{}
	}
	return c.JSON(http.StatusOK, reps)
}

// -- Line items --

type serviceRequest struct {
	ID          string  `json:"service_id"`
	ServiceName string  `json:"service_name"`
	Amount      float64 `json:"amount"`
	Quantity    *int    `json:"quantity"`
}

type servicePatchRequest struct {
	ServiceName *string  `json:"service_name"`
	Amount      *float64 `json:"amount"`
	Quantity    *int     `json:"quantity"`
}

func (h *Handler) AddService(c echo.Context) error {
	var req serviceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("bill_service", "body", "invalid request body")
	}
	l := &BillService{
		ID:          req.ID,
		BillID:      c.Param("id"),
		ServiceName: req.ServiceName,
		Amount:      req.Amount,
		Quantity:    1,
	}
	if req.Quantity != nil {
		l.Quantity = *req.Quantity
	}
	if err := h.svc.AddService(c.Request().Context(), l); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) GetService(c echo.Context) error {
	l, err := h.svc.GetService(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ListServices(c echo.Context) error {
	items, err := h.svc.ListServices(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*BillService{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateService(c echo.Context) error {
	var req servicePatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("bill_service", "body", "invalid request body")
	}
	l, err := h.svc.UpdateService(c.Request().Context(), c.Param("id"), BillServicePatch{
		ServiceName: req.ServiceName,
		Amount:      req.Amount,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteService(c echo.Context) error {
	if err := h.svc.DeleteService(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Invoices --

type invoiceRequest struct {
	InvoiceRequest
	BillingDate *string `json:"billing_date"`
}

type invoiceView struct {
	*Bill
	InvoiceNumber string `json:"invoice_number"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req invoiceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("bill", "body", "invalid request body")
	}
	billed, err := parseTime("billing_date", req.BillingDate)
	if err != nil {
		return err
	}
	req.InvoiceRequest.BillingDate = billed
	b, err := h.svc.CreateInvoice(c.Request().Context(), req.InvoiceRequest)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, invoiceView{Bill: b, InvoiceNumber: b.InvoiceNumber()})
}

// GetInvoice accepts either the invoice number or the bill id.
func (h *Handler) GetInvoice(c echo.Context) error {
	b, err := h.svc.GetBill(c.Request().Context(), ids.BillIDFromInvoice(c.Param("number")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invoiceView{Bill: b, InvoiceNumber: b.InvoiceNumber()})
}
