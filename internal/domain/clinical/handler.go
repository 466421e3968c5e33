package clinical

import (
	"net/http"

	"github.com/labstack/echo/v4"

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
	api.GET("/visits/:id/diagnoses", h.ListDiagnoses)
	api.POST("/visits/:id/diagnoses", h.CreateDiagnosis)
	api.GET("/diagnoses/:id", h.GetDiagnosis)
	api.PATCH("/diagnoses/:id", h.UpdateDiagnosis)
	api.DELETE("/diagnoses/:id", h.DeleteDiagnosis)

	api.GET("/visits/:id/prescriptions", h.ListPrescriptions)
	api.POST("/visits/:id/prescriptions", h.CreatePrescription)
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.PATCH("/prescriptions/:id", h.UpdatePrescription)
	api.DELETE("/prescriptions/:id", h.DeletePrescription)
}

// -- Diagnosis --

type diagnosisRequest struct {
	ID            string  `json:"diagnosis_id"`
	DiagnosisCode string  `json:"diagnosis_code"`
	Description   *string `json:"description"`
	Notes         *string `json:"notes"`
}

type diagnosisPatchRequest struct {
	VisitID       *string `json:"visit_id"`
	DiagnosisCode *string `json:"diagnosis_code"`
	Description   *string `json:"description"`
	Notes         *string `json:"notes"`
}

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	var req diagnosisRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("diagnosis", "body", "invalid request body")
	}
	d := &Diagnosis{
		ID:            req.ID,
		VisitID:       c.Param("id"),
		DiagnosisCode: req.DiagnosisCode,
		Description:   req.Description,
		Notes:         req.Notes,
	}
	if err := h.svc.CreateDiagnosis(c.Request().Context(), d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	d, err := h.svc.GetDiagnosis(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDiagnoses(c echo.Context) error {
	items, err := h.svc.ListDiagnoses(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Diagnosis{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateDiagnosis(c echo.Context) error {
	var req diagnosisPatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("diagnosis", "body", "invalid request body")
	}
	d, err := h.svc.UpdateDiagnosis(c.Request().Context(), c.Param("id"), DiagnosisPatch{
		VisitID:       req.VisitID,
		DiagnosisCode: req.DiagnosisCode,
		Description:   req.Description,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDiagnosis(c echo.Context) error {
	if err := h.svc.DeleteDiagnosis(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Prescription --

type prescriptionRequest struct {
	ID             string  `json:"prescription_id"`
	MedicationID   int     `json:"medication_id"`
	Dosage         *string `json:"dosage"`
	Frequency      *string `json:"frequency"`
	DurationDays   int     `json:"duration_days"`
	Instructions   *string `json:"instructions"`
	PrescribedDate *string `json:"prescribed_date"`
	RefillsAllowed int     `json:"refills_allowed"`
}

type prescriptionPatchRequest struct {
	VisitID        *string `json:"visit_id"`
	MedicationID   *int    `json:"medication_id"`
	Dosage         *string `json:"dosage"`
	Frequency      *string `json:"frequency"`
	DurationDays   *int    `json:"duration_days"`
	Instructions   *string `json:"instructions"`
	RefillsAllowed *int    `json:"refills_allowed"`
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	var req prescriptionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("prescription", "body", "invalid request body")
	}
	prescribed, err := dates.Optional(req.PrescribedDate, dates.ParseDateTime)
	if err != nil {
		return apperrors.Validation("prescription", "prescribed_date", "prescribed_date is not a recognised date or time")
	}
	p := &Prescription{
		ID:             req.ID,
		VisitID:        c.Param("id"),
		MedicationID:   req.MedicationID,
		Dosage:         req.Dosage,
		Frequency:      req.Frequency,
		DurationDays:   req.DurationDays,
		Instructions:   req.Instructions,
		RefillsAllowed: req.RefillsAllowed,
	}
	if prescribed != nil {
		p.PrescribedDate = *prescribed
	}
	if err := h.svc.CreatePrescription(c.Request().Context(), p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	p, err := h.svc.GetPrescription(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	items, err := h.svc.ListPrescriptions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	var req prescriptionPatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("prescription", "body", "invalid request body")
	}
	p, err := h.svc.UpdatePrescription(c.Request().Context(), c.Param("id"), PrescriptionPatch{
		VisitID:        req.VisitID,
		MedicationID:   req.MedicationID,
		Dosage:         req.Dosage,
		Frequency:      req.Frequency,
		DurationDays:   req.DurationDays,
		Instructions:   req.Instructions,
		RefillsAllowed: req.RefillsAllowed,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePrescription(c echo.Context) error {
	if err := h.svc.DeletePrescription(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
