package visit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/pkg/apperrors"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func TestHandler_CreateVisit(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"P1","doctor_id":"D1","created_by_user_id":"U1","visit_datetime":"2024-05-02 10:15","chief_complaint":"headache"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/visits", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateVisit(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var v Visit
	json.Unmarshal(rec.Body.Bytes(), &v)
	if v.Status != reference.VisitScheduled || v.VisitDatetime.Hour() != 10 {
		t.Errorf("unexpected visit %+v", v)
	}
	if !strings.Contains(rec.Body.String(), `"status":"scheduled"`) {
		t.Errorf("expected status name in body, got %s", rec.Body.String())
	}
}

func TestHandler_CreateVisit_BadDatetime(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"P1","doctor_id":"D1","created_by_user_id":"U1","visit_datetime":"tomorrow"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.CreateVisit(e.NewContext(req, httptest.NewRecorder()))
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_TransitionVisit(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.CreateVisit(context.Background(), newVisit())

	transition := func(status string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"`+status+`"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("V1")
		return rec, h.TransitionVisit(c)
	}

	rec, err := transition("checked-in")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if _, err := transition("completed"); !apperrors.IsInvalidTransition(err) {
		t.Errorf("expected invalid transition, got %v", err)
	}
	if _, err := transition("on-hold"); !apperrors.IsValidation(err) {
		t.Errorf("expected validation for unknown status, got %v", err)
	}
}

func TestHandler_ListVisits_StatusFilter(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.CreateVisit(context.Background(), newVisit())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/visits?status=scheduled", nil)
	rec := httptest.NewRecorder()
	if err := h.ListVisits(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one visit, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/visits?status=waiting", nil)
	if err := h.ListVisits(e.NewContext(req, httptest.NewRecorder())); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_GetQueue_Empty(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	if err := h.GetQueue(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_GetTransitions(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.CreateVisit(context.Background(), newVisit())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("V1")
	if err := h.GetTransitions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"next":["checked-in","cancelled"]`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteVisit(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.CreateVisit(context.Background(), newVisit())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("V1")
	if err := h.DeleteVisit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
