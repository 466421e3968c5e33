package visit

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/dates"
	"github.com/orms/orms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/visits", h.ListVisits)
	api.POST("/visits", h.CreateVisit)
	api.GET("/visits/queue", h.GetQueue)
	api.GET("/visits/stats", h.GetStats)
	api.GET("/visits/:id", h.GetVisit)
	api.PATCH("/visits/:id", h.UpdateVisit)
	api.DELETE("/visits/:id", h.DeleteVisit)
	api.POST("/visits/:id/status", h.TransitionVisit)
	api.GET("/visits/:id/history", h.GetStatusHistory)
	api.GET("/visits/:id/transitions", h.GetTransitions)
}

func parseTime(field string, s *string, parse func(string) (time.Time, error)) (*time.Time, error) {
	t, err := dates.Optional(s, parse)
	if err != nil {
		return nil, apperrors.Validation("visit", field, "%s is not a recognised date or time", field)
	}
	return t, nil
}

type visitRequest struct {
	ID              string  `json:"visit_id"`
	PatientID       string  `json:"patient_id"`
	DoctorID        string  `json:"doctor_id"`
	VisitDatetime   *string `json:"visit_datetime"`
	ChiefComplaint  *string `json:"chief_complaint"`
	Notes           *string `json:"notes"`
	FollowUpDate    *string `json:"follow_up_date"`
	CreatedByUserID string  `json:"created_by_user_id"`
}

type visitPatchRequest struct {
	VisitDatetime   *string `json:"visit_datetime"`
	DoctorID        *string `json:"doctor_id"`
	DurationMinutes *int    `json:"duration_minutes"`
	ChiefComplaint  *string `json:"chief_complaint"`
	Notes           *string `json:"notes"`
	FollowUpDate    *string `json:"follow_up_date"`
}

type transitionRequest struct {
	Status reference.VisitStatus `json:"status"`
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var req visitRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("visit", "body", "invalid request body")
	}
	at, err := parseTime("visit_datetime", req.VisitDatetime, dates.ParseDateTime)
	if err != nil {
		return err
	}
	followUp, err := parseTime("follow_up_date", req.FollowUpDate, dates.ParseDate)
	if err != nil {
		return err
	}
	v := &Visit{
		ID:              req.ID,
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		ChiefComplaint:  req.ChiefComplaint,
		Notes:           req.Notes,
		FollowUpDate:    followUp,
		CreatedByUserID: req.CreatedByUserID,
	}
	if at != nil {
		v.VisitDatetime = *at
	}
	if err := h.svc.CreateVisit(c.Request().Context(), v); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	v, err := h.svc.GetVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{PatientID: c.QueryParam("patient_id"), DoctorID: c.QueryParam("doctor_id")}
	if st := c.QueryParam("status"); st != "" {
		v, err := reference.ParseVisitStatus(st)
		if err != nil {
			return err
		}
		f.Status = &v
	}
	var err error
	if from := c.QueryParam("from"); from != "" {
		if f.From, err = parseTime("from", &from, dates.ParseDateTime); err != nil {
			return err
		}
	}
	if to := c.QueryParam("to"); to != "" {
		if f.To, err = parseTime("to", &to, dates.ParseDateTime); err != nil {
			return err
		}
	}
	visits, total, err := h.svc.ListVisits(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetQueue(c echo.Context) error {
	visits, err := h.svc.Queue(c.Request().Context(), c.QueryParam("doctor_id"))
	if err != nil {
		return err
	}
	if visits == nil {
		visits = []*Visit{}
	}
	return c.JSON(http.StatusOK, visits)
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context(), time.Now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) UpdateVisit(c echo.Context) error {
	var req visitPatchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("visit", "body", "invalid request body")
	}
	at, err := parseTime("visit_datetime", req.VisitDatetime, dates.ParseDateTime)
	if err != nil {
		return err
	}
	followUp, err := parseTime("follow_up_date", req.FollowUpDate, dates.ParseDate)
	if err != nil {
		return err
	}
	v, err := h.svc.UpdateVisit(c.Request().Context(), c.Param("id"), Patch{
		VisitDatetime:   at,
		DoctorID:        req.DoctorID,
		DurationMinutes: req.DurationMinutes,
		ChiefComplaint:  req.ChiefComplaint,
		Notes:           req.Notes,
		FollowUpDate:    followUp,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVisit(c echo.Context) error {
	if err := h.svc.DeleteVisit(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) TransitionVisit(c echo.Context) error {
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("visit", "status", "status must be a visit status name or code")
	}
	v, err := h.svc.Transition(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	history, err := h.svc.StatusHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if history == nil {
		history = []*StatusChange{}
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) GetTransitions(c echo.Context) error {
	v, err := h.svc.GetVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"visit_id": v.ID,
		"status":   v.Status,
		"next":     NextStatuses(v.Status),
	})
}
