package reference

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/orms/orms/pkg/apperrors"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func TestHandler_GetLookups(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reference/lookups", nil)
	rec := httptest.NewRecorder()

	if err := h.GetLookups(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var l Lookups
	json.Unmarshal(rec.Body.Bytes(), &l)
	if len(l.PaymentMethod) != 5 || l.PaymentMethod[4].Name != "Bank Transfer" {
		t.Errorf("unexpected payment methods %+v", l.PaymentMethod)
	}
}

func TestHandler_CreateMedication(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"name":"Amoxicillin","category":"Antibiotic","common_dose":"500mg"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/medications", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateMedication(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var m Medication
	json.Unmarshal(rec.Body.Bytes(), &m)
	if m.ID == 0 || *m.CommonDose != "500mg" {
		t.Errorf("unexpected medication %+v", m)
	}
}

func TestHandler_GetMedication_BadID(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.GetMedication(c)
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_GetMedication_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("42")

	if err := h.GetMedication(c); !apperrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandler_CreateService_DefaultsActive(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader(`{"name":"ecg","price":60}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreateService(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m MedicalService
	json.Unmarshal(rec.Body.Bytes(), &m)
	if !m.Active {
		t.Error("expected new service to default to active")
	}
}

func TestHandler_DeleteDepartment(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.CreateDepartment(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &Department{ID: "D9", Name: "ENT", Code: "ENT"})

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("D9")

	if err := h.DeleteDepartment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/reference/lookups":  false,
		"PUT /api/v1/medications/:id":    false,
		"DELETE /api/v1/departments/:id": false,
		"GET /api/v1/services":           false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
