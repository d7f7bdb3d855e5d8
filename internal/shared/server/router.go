package server

import (
	"github.com/gin-gonic/gin"

	"github.com/RohitLad/resume-markup/internal/callbacks"
	"github.com/RohitLad/resume-markup/internal/processing"
	"github.com/RohitLad/resume-markup/internal/services/health"
	"github.com/RohitLad/resume-markup/internal/shared/auth"
	"github.com/RohitLad/resume-markup/internal/shared/config"
	"github.com/RohitLad/resume-markup/internal/shared/metrics"
	"github.com/RohitLad/resume-markup/internal/shared/server/middleware"
	"github.com/RohitLad/resume-markup/internal/status"
)

const apiPrefix = "/api/v1"

// RouterDeps bundles the handlers mounted under /api/v1.
type RouterDeps struct {
	Config            config.Config
	Verifier          *auth.Verifier
	ProcessingHandler *processing.Handler
	StatusHandler     *status.Handler
	WebhookHandler    *callbacks.WebhookHandler
	HealthService     *health.Service
}

// submitRoutes start workflow runs; pollingRoutes are hit repeatedly by the UI;
// callbackRoutes are posted by the workflow engine and stay unlimited.
var (
	submitRoutes = []string{
		"POST " + apiPrefix + "/profile/parse",
		"POST " + apiPrefix + "/profile/knowledge-base",
		"POST " + apiPrefix + "/resumes",
		"PUT " + apiPrefix + "/resumes/:id",
		"POST " + apiPrefix + "/resumes/:id/generate",
	}
	pollingRoutes = []string{
		"GET " + apiPrefix + "/status/parsing",
		"GET " + apiPrefix + "/status/knowledge-base",
		"GET " + apiPrefix + "/status/resumes/:id",
	}
	callbackRoutes = []string{
		"POST " + apiPrefix + "/webhooks/workflow",
	}
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	cfg := deps.Config
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(middleware.AuthConfig{
			Verifier:       deps.Verifier,
			AllowDevHeader: cfg.AllowDevHeader,
			PublicPrefixes: []string{apiPrefix + "/health", apiPrefix + "/webhooks/", "/metrics"},
		}),
		middleware.RateLimit(rateLimitConfig(cfg)),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	if deps.HealthService != nil {
		deps.HealthService.RegisterRoutes(api)
	}
	registerMeRoutes(api)
	if deps.ProcessingHandler != nil {
		deps.ProcessingHandler.RegisterRoutes(api)
	}
	if deps.StatusHandler != nil {
		deps.StatusHandler.RegisterRoutes(api)
	}
	if deps.WebhookHandler != nil {
		deps.WebhookHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	groups := make(map[string]string, len(submitRoutes)+len(pollingRoutes)+len(callbackRoutes))
	for _, route := range submitRoutes {
		groups[route] = middleware.RateGroupSubmit
	}
	for _, route := range pollingRoutes {
		groups[route] = middleware.RateGroupPolling
	}
	for _, route := range callbackRoutes {
		groups[route] = middleware.RateGroupCallbacks
	}

	rules := make(map[string]middleware.RateLimitRule)
	add := func(group string, perMinute int) {
		if perMinute <= 0 {
			return
		}
		burst := perMinute / 4
		if burst < 1 {
			burst = 1
		}
		rules[group] = middleware.RateLimitRule{Rate: float64(perMinute) / 60, Burst: burst}
	}
	add(middleware.RateGroupDefault, cfg.RateLimitPerMinute)
	add(middleware.RateGroupSubmit, cfg.RateLimitSubmitPerMinute)
	add(middleware.RateGroupPolling, cfg.RateLimitPollPerMinute)

	return middleware.RateLimitConfig{
		Rules:    rules,
		GroupFor: middleware.GroupByRoute(groups),
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
