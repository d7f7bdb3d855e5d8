package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkflowSubmissionCounter(t *testing.T) {
	before := testutil.ToFloat64(workflowSubmissions.WithLabelValues("parse_resume", "ok"))
	ObserveWorkflowSubmission("parse_resume", "ok", 20*time.Millisecond)
	after := testutil.ToFloat64(workflowSubmissions.WithLabelValues("parse_resume", "ok"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncCallback("", "dropped")
	IncStatusTransition("parsing", "start")

	router := gin.New()
	router.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, name := range []string{"workflow_callbacks_total", "processing_status_transitions_total", `type="unknown"`} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
