package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orms/orms/internal/config"
	"github.com/orms/orms/internal/domain/billing"
	"github.com/orms/orms/internal/importer"
	"github.com/orms/orms/internal/platform/cache"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/internal/platform/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:             "test",
		LogLevel:        "info",
		CORSOrigins:     []string{"http://localhost:8080"},
		TaxRate:         0.10,
		BcryptCost:      4,
		CatalogCacheTTL: time.Minute,
		BodyLimit:       "1M",
		RateLimitRPS:    100,
		RateLimitBurst:  100,
		RequestTimeout:  5 * time.Second,
	}
}

// The services are built on a nil pool; nothing here reaches the database.
func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	cfg := testConfig()
	svc := newServices(nil, cache.NewCatalog(cache.NewMemoryStore(), time.Minute, logger), websocket.NewHub(logger), cfg)
	return newRouter(cfg, logger, nil, svc)
}

func TestNewRouter_Routes(t *testing.T) {
	logger := zerolog.Nop()
	cfg := testConfig()
	svc := newServices(nil, cache.NewCatalog(cache.NewMemoryStore(), time.Minute, logger), websocket.NewHub(logger), cfg)
	e := newRouter(cfg, logger, nil, svc)

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	want := []string{
		"GET /health",
		"GET /health/db",
		"GET /ws",
		"GET /api/v1/reference/lookups",
		"POST /api/v1/medications",
		"GET /api/v1/departments",
		"GET /api/v1/services",
		"POST /api/v1/patients",
		"DELETE /api/v1/doctors/:id",
		"POST /api/v1/users",
		"GET /api/v1/visits/queue",
		"GET /api/v1/visits/stats",
		"POST /api/v1/visits/:id/status",
		"GET /api/v1/visits/:id/history",
		"POST /api/v1/visits/:id/diagnoses",
		"POST /api/v1/visits/:id/prescriptions",
		"GET /api/v1/bills",
		"POST /api/v1/bills/:id/pay",
		"GET /api/v1/bills/:id/reconcile",
		"POST /api/v1/bills/:id/services",
		"POST /api/v1/invoices",
		"POST /api/v1/registrations",
		"POST /api/v1/visits/:id/cancel",
	}
	for _, route := range want {
		if !registered[route] {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestNewRouter_Health(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestNewRouter_ValidationBeforeStorage(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bills", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"kind":"VALIDATION"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestNewRouter_UnknownRoute(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if got := newLogger(&buf, tt.level, false).GetLevel(); got != tt.want {
			t.Errorf("newLogger(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewLogger_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "info", false)
	l.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected json output, got %q", buf.String())
	}
}

func TestPrintImportSummary(t *testing.T) {
	sum := &importer.Summary{Tables: []importer.TableResult{
		{Table: "patients", Imported: 12, Failed: 1},
		{Table: "diagnoses", Skipped: true},
	}}
	var buf bytes.Buffer
	printImportSummary(&buf, sum)
	out := buf.String()

	for _, want := range []string{"patients", "12", "diagnoses", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReconcile(t *testing.T) {
	var buf bytes.Buffer
	printReconcile(&buf, nil)
	if !strings.Contains(buf.String(), "All bills reconcile") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	printReconcile(&buf, []*billing.ReconcileReport{
		{BillID: "BILL-00ABCD", AmountTotal: 200, Tax: 0, ServicesTotal: 150, Difference: 50, ServiceCount: 1},
	})
	out := buf.String()
	if !strings.Contains(out, "INV-00ABCD") || !strings.Contains(out, "50.00") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "1 bill(s) out of balance") {
		t.Errorf("missing count:\n%s", out)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "reference_data", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "visits", Applied: false},
	})
	out := buf.String()
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2024-05-01 09:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
