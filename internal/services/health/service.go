// Package health reports process and dependency health.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RohitLad/resume-markup/internal/shared/server/respond"
)

const checkTimeout = 3 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// WorkflowProbe reports whether the workflow engine answers.
type WorkflowProbe interface {
	TestConnectivity(ctx context.Context) bool
}

// Service encapsulates health-related checks.
type Service struct {
	mu       sync.RWMutex
	checks   map[string]Check
	workflow WorkflowProbe
}

// NewService constructs a new health service.
func NewService(workflow WorkflowProbe) *Service {
	return &Service{checks: make(map[string]Check), workflow: workflow}
}

// AddCheck registers a named dependency check.
func (s *Service) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Status runs every check and returns per-dependency results.
func (s *Service) Status(ctx context.Context) (bool, map[string]string) {
	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	names := make([]string, 0, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ok := true
	results := make(map[string]string, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checks[name](checkCtx)
		cancel()
		if err != nil {
			ok = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return ok, results
}

// RegisterRoutes attaches health routes to the router group.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", s.health)
	rg.GET("/health/workflow", s.workflowHealth)
}

func (s *Service) health(c *gin.Context) {
	ok, checks := s.Status(c.Request.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
}

func (s *Service) workflowHealth(c *gin.Context) {
	if s.workflow == nil {
		respond.JSON(c, http.StatusServiceUnavailable, gin.H{"ok": false, "reason": "workflow engine not configured"})
		return
	}
	if !s.workflow.TestConnectivity(c.Request.Context()) {
		respond.JSON(c, http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	respond.OK(c, gin.H{"ok": true})
}
