package status

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RohitLad/resume-markup/internal/shared/server/middleware"
	"github.com/RohitLad/resume-markup/internal/shared/server/respond"
)

// ResumeOwner resolves the owner of a resume so callers can only poll their own.
type ResumeOwner interface {
	OwnerOf(ctx context.Context, resumeID string) (string, error)
}

// Handler serves processing status polls.
type Handler struct {
	Tracker *Tracker
	Resumes ResumeOwner
}

// NewHandler constructs a Handler.
func NewHandler(tracker *Tracker, resumes ResumeOwner) *Handler {
	return &Handler{Tracker: tracker, Resumes: resumes}
}

type statusResponse struct {
	Active    bool       `json:"active"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

// RegisterRoutes attaches status routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status/parsing", h.parsing)
	rg.GET("/status/knowledge-base", h.knowledgeBase)
	rg.GET("/status/resumes/:id", h.resume)
}

func (h *Handler) parsing(c *gin.Context) {
	h.write(c, KindParsing, middleware.UserIDFromContext(c))
}

func (h *Handler) knowledgeBase(c *gin.Context) {
	h.write(c, KindKnowledgeBaseGeneration, middleware.UserIDFromContext(c))
}

func (h *Handler) resume(c *gin.Context) {
	resumeID := strings.TrimSpace(c.Param("id"))
	if resumeID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "resume id is required", nil)
		return
	}
	if h.Resumes != nil {
		owner, err := h.Resumes.OwnerOf(c.Request.Context(), resumeID)
		if err != nil || owner != middleware.UserIDFromContext(c) {
			respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
			return
		}
	}
	h.write(c, KindGeneration, resumeID)
}

func (h *Handler) write(c *gin.Context, kind Kind, subjectID string) {
	if subjectID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return
	}
	started, ok := h.Tracker.Lookup(c.Request.Context(), kind, subjectID)
	resp := statusResponse{Active: ok}
	if ok && !started.IsZero() {
		resp.StartedAt = &started
	}
	respond.OK(c, resp)
}
