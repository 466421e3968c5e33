package reference

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reference/lookups", h.GetLookups)

	api.GET("/medications", h.ListMedications)
	api.POST("/medications", h.CreateMedication)
	api.GET("/medications/:id", h.GetMedication)
	api.PUT("/medications/:id", h.UpdateMedication)
	api.DELETE("/medications/:id", h.DeleteMedication)

	api.GET("/departments", h.ListDepartments)
	api.POST("/departments", h.CreateDepartment)
	api.GET("/departments/:id", h.GetDepartment)
	api.PUT("/departments/:id", h.UpdateDepartment)
	api.DELETE("/departments/:id", h.DeleteDepartment)

	api.GET("/services", h.ListServices)
	api.POST("/services", h.CreateService)
	api.GET("/services/:id", h.GetService)
	api.PUT("/services/:id", h.UpdateService)
}

func (h *Handler) GetLookups(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Lookups())
}

// -- Medications --

func medicationID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("medication", "medication_id", "invalid medication id %q", c.Param("id"))
	}
	return id, nil
}

func (h *Handler) CreateMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return apperrors.Validation("medication", "body", "invalid request body")
	}
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := medicationID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := MedicationFilter{Search: c.QueryParam("search"), Category: c.QueryParam("category")}
	meds, total, err := h.svc.ListMedications(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(meds, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := medicationID(c)
	if err != nil {
		return err
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return apperrors.Validation("medication", "body", "invalid request body")
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	id, err := medicationID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMedication(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Departments --

func (h *Handler) CreateDepartment(c echo.Context) error {
	var d Department
	if err := c.Bind(&d); err != nil {
		return apperrors.Validation("department", "body", "invalid request body")
	}
	if err := h.svc.CreateDepartment(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	d, err := h.svc.GetDepartment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	depts, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, depts)
}

func (h *Handler) UpdateDepartment(c echo.Context) error {
	var d Department
	if err := c.Bind(&d); err != nil {
		return apperrors.Validation("department", "body", "invalid request body")
	}
	d.ID = c.Param("id")
	if err := h.svc.UpdateDepartment(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDepartment(c echo.Context) error {
	if err := h.svc.DeleteDepartment(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Medical services --

type serviceRequest struct {
	ID     string  `json:"medical_service_id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Active *bool   `json:"active"`
}

func (r serviceRequest) toModel() *MedicalService {
	m := &MedicalService{ID: r.ID, Name: r.Name, Price: r.Price, Active: true}
	if r.Active != nil {
		m.Active = *r.Active
	}
	return m
}

func (h *Handler) CreateService(c echo.Context) error {
	var req serviceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("medical_service", "body", "invalid request body")
	}
	m := req.toModel()
	if err := h.svc.CreateService(c.Request().Context(), m); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetService(c echo.Context) error {
	m, err := h.svc.GetService(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListServices(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	svcs, err := h.svc.ListServices(c.Request().Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svcs)
}

func (h *Handler) UpdateService(c echo.Context) error {
	var req serviceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("medical_service", "body", "invalid request body")
	}
	req.ID = c.Param("id")
	m := req.toModel()
	if err := h.svc.UpdateService(c.Request().Context(), m); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}
