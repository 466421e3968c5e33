package frontdesk

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orms/orms/internal/domain/identity"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/dates"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/registrations", h.Register)
	api.POST("/visits/:id/cancel", h.CancelVisit)
}

type registrationRequest struct {
	Patient         identity.PatientRequest `json:"patient"`
	DoctorID        string                  `json:"doctor_id"`
	VisitDatetime   *string                 `json:"visit_datetime"`
	ChiefComplaint  *string                 `json:"chief_complaint"`
	CreatedByUserID string                  `json:"created_by_user_id"`
	TaxRate         *float64                `json:"tax_rate"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registrationRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("registration", "body", "invalid request body")
	}
	p, err := req.Patient.ToPatient()
	if err != nil {
		return err
	}
	when, err := dates.Optional(req.VisitDatetime, dates.ParseDateTime)
	if err != nil {
		return apperrors.Validation("registration", "visit_datetime", "visit_datetime is not a recognised date or time")
	}
	out, err := h.svc.RegisterPatient(c.Request().Context(), Registration{
		Patient:         p,
		DoctorID:        req.DoctorID,
		VisitDatetime:   when,
		ChiefComplaint:  req.ChiefComplaint,
		CreatedByUserID: req.CreatedByUserID,
		TaxRate:         req.TaxRate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) CancelVisit(c echo.Context) error {
	v, removed, err := h.svc.CancelVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"visit":         v,
		"bills_removed": removed,
	})
}
