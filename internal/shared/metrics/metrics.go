package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every collector exported on /metrics.
	Registry = prometheus.NewRegistry()

	workflowSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_submissions_total",
		Help: "Workflow submissions by kind and result",
	}, []string{"kind", "result"})

	workflowSubmitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_submit_duration_seconds",
		Help:    "Workflow submission latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	callbacksHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_callbacks_total",
		Help: "Workflow callbacks by type and outcome",
	}, []string{"type", "outcome"})

	statusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "processing_status_transitions_total",
		Help: "Processing status starts and finishes by kind",
	}, []string{"kind", "transition"})

	queueJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "callback_queue_jobs_total",
		Help: "Callback queue jobs by outcome",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		workflowSubmissions,
		workflowSubmitDuration,
		callbacksHandled,
		statusTransitions,
		queueJobs,
		prometheus.NewGoCollector(),
	)
}

// ObserveWorkflowSubmission records one outbound submission.
func ObserveWorkflowSubmission(kind, result string, elapsed time.Duration) {
	workflowSubmissions.WithLabelValues(kind, result).Inc()
	workflowSubmitDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// IncCallback counts an inbound callback outcome.
func IncCallback(callbackType, outcome string) {
	if callbackType == "" {
		callbackType = "unknown"
	}
	callbacksHandled.WithLabelValues(callbackType, outcome).Inc()
}

// IncStatusTransition counts a status start or finish.
func IncStatusTransition(kind, transition string) {
	statusTransitions.WithLabelValues(kind, transition).Inc()
}

// IncQueueJob counts a callback queue job outcome (received, completed, failed, dropped).
func IncQueueJob(outcome string) {
	queueJobs.WithLabelValues(outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
