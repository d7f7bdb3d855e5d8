package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type ownerMap map[string]string

func (m ownerMap) OwnerOf(_ context.Context, resumeID string) (string, error) {
	owner, ok := m[resumeID]
	if !ok {
		return "", errors.New("not found")
	}
	return owner, nil
}

func newStatusRouter(tracker *Tracker, owners ownerMap) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set("userId", c.GetHeader("X-User-Id"))
		c.Next()
	})
	NewHandler(tracker, owners).RegisterRoutes(api)
	return router
}

func decodeStatus(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload
}

func TestHandlerParsingStatus(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(0))
	router := newStatusRouter(tracker, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/parsing", nil)
	req.Header.Set("X-User-Id", "u1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if decodeStatus(t, resp)["active"] != false {
		t.Fatalf("expected inactive before start")
	}

	if err := tracker.StartParsing(context.Background(), "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	payload := decodeStatus(t, resp)
	if payload["active"] != true {
		t.Fatalf("expected active after start")
	}
	if _, ok := payload["startedAt"]; !ok {
		t.Fatalf("expected startedAt in payload")
	}
}

func TestHandlerResumeStatusChecksOwner(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(0))
	router := newStatusRouter(tracker, ownerMap{"r1": "u1"})
	_ = tracker.StartGeneration(context.Background(), "r1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/resumes/r1", nil)
	req.Header.Set("X-User-Id", "u2")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other user, got %d", resp.Code)
	}

	req.Header.Set("X-User-Id", "u1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if decodeStatus(t, resp)["active"] != true {
		t.Fatalf("expected generation active")
	}
}

func TestHandlerRequiresIdentity(t *testing.T) {
	router := newStatusRouter(NewTracker(NewMemoryStore(0)), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/knowledge-base", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
