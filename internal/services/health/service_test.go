package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeProbe bool

func (f fakeProbe) TestConnectivity(context.Context) bool { return bool(f) }

func serve(t *testing.T, svc *Service, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api/v1"))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec, body
}

func TestHealthAggregatesChecks(t *testing.T) {
	svc := NewService(fakeProbe(true))
	svc.AddCheck("status_store", func(context.Context) error { return nil })

	rec, body := serve(t, svc, "/api/v1/health")
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("expected healthy, got %d %v", rec.Code, body)
	}

	svc.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
	rec, body = serve(t, svc, "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	checks := body["checks"].(map[string]any)
	if checks["database"] != "connection refused" || checks["status_store"] != "ok" {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestWorkflowHealth(t *testing.T) {
	rec, _ := serve(t, NewService(fakeProbe(true)), "/api/v1/health/workflow")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec, _ = serve(t, NewService(fakeProbe(false)), "/api/v1/health/workflow")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	rec, _ = serve(t, NewService(nil), "/api/v1/health/workflow")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without probe, got %d", rec.Code)
	}
}
