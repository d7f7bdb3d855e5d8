package processing

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RohitLad/resume-markup/internal/profiles"
	"github.com/RohitLad/resume-markup/internal/shared/server/middleware"
	"github.com/RohitLad/resume-markup/internal/shared/server/respond"
	"github.com/RohitLad/resume-markup/internal/workflow"
)

// Handler wires HTTP handlers to the processing service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches profile and resume routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.getProfile)
	rg.PUT("/profile", h.saveProfile)
	rg.POST("/profile/parse", h.parse)
	rg.POST("/profile/knowledge-base", h.knowledgeBase)

	rg.GET("/resumes", h.listResumes)
	rg.POST("/resumes", h.createResume)
	rg.GET("/resumes/:id", h.getResume)
	rg.PUT("/resumes/:id", h.updateResume)
	rg.POST("/resumes/:id/generate", h.generate)
}

type parseRequest struct {
	StorageKey string `json:"storageKey"`
}

type profileRequest struct {
	Data map[string]any `json:"data"`
}

type jobRequest struct {
	JobTitle       string `json:"jobTitle"`
	JobDescription string `json:"jobDescription"`
}

type resumeResponse struct {
	ID             string    `json:"id"`
	JobTitle       string    `json:"jobTitle"`
	JobDescription string    `json:"jobDescription"`
	Content        string    `json:"content"`
	Generating     bool      `json:"generating"`
	Deferred       bool      `json:"waitingForKnowledgeBase"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toResumeResponse(v ResumeView) resumeResponse {
	return resumeResponse{
		ID:             v.ID,
		JobTitle:       v.JobTitle,
		JobDescription: v.JobDescription,
		Content:        v.Content,
		Generating:     v.Generating,
		Deferred:       v.Deferred,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
}

func (h *Handler) getProfile(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	profile, err := h.Svc.Profiles.GetByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "profile not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch profile", nil)
		return
	}
	respond.OK(c, gin.H{
		"data":                    profile.Data,
		"dataUpdatedAt":           profile.DataUpdatedAt,
		"knowledgeBaseUpdatedAt":  profile.KnowledgeBaseUpdatedAt,
		"knowledgeBaseStale":      profile.KnowledgeBaseStale(),
		"parsing":                 h.Svc.Status.IsParsingActive(c.Request.Context(), userID),
		"generatingKnowledgeBase": h.Svc.Status.IsKnowledgeBaseGenerationActive(c.Request.Context(), userID),
	})
}

func (h *Handler) saveProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Data == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "data object is required", nil)
		return
	}
	doc, err := h.Svc.SaveProfileData(c.Request.Context(), middleware.UserIDFromContext(c), req.Data)
	if err != nil {
		h.fail(c, err, "failed to save profile")
		return
	}
	respond.OK(c, gin.H{"data": doc})
}

func (h *Handler) parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.StorageKey) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "storageKey is required", nil)
		return
	}
	res, err := h.Svc.InitiateParsing(c.Request.Context(), middleware.UserIDFromContext(c), req.StorageKey)
	if err != nil {
		h.fail(c, err, "failed to start parsing")
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"requestId": res.CorrelationID,
		"status":    "processing",
	})
}

func (h *Handler) knowledgeBase(c *gin.Context) {
	res, err := h.Svc.InitiateKnowledgeBaseGeneration(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "failed to start knowledge base generation")
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"requestId": res.CorrelationID,
		"status":    "processing",
	})
}

func (h *Handler) listResumes(c *gin.Context) {
	list, err := h.Svc.ListResumes(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list resumes", nil)
		return
	}
	out := make([]resumeResponse, 0, len(list))
	for _, v := range list {
		out = append(out, toResumeResponse(v))
	}
	respond.OK(c, gin.H{"items": out})
}

func (h *Handler) createResume(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, outcome, err := h.Svc.CreateResume(c.Request.Context(), middleware.UserIDFromContext(c), req.JobTitle, req.JobDescription)
	if err != nil {
		h.fail(c, err, "failed to create resume")
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"id":      res.ID,
		"outcome": outcome,
	})
}

func (h *Handler) getResume(c *gin.Context) {
	view, err := h.Svc.GetResume(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to fetch resume")
		return
	}
	respond.OK(c, toResumeResponse(view))
}

func (h *Handler) updateResume(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, outcome, err := h.Svc.UpdateResumeJob(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), req.JobTitle, req.JobDescription)
	if err != nil {
		h.fail(c, err, "failed to update resume")
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"id":      res.ID,
		"outcome": outcome,
	})
}

func (h *Handler) generate(c *gin.Context) {
	resumeID := c.Param("id")
	outcome, err := h.Svc.RegenerateResume(c.Request.Context(), middleware.UserIDFromContext(c), resumeID)
	if err != nil {
		h.fail(c, err, "failed to start generation")
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"id":      resumeID,
		"outcome": outcome,
	})
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var (
		stale    *KnowledgeBaseStaleError
		rejected *workflow.RemoteRejectedError
		network  *workflow.TransportError
	)
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, workflow.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrFileNotFound):
		respond.Error(c, http.StatusNotFound, "file_not_found", "resume file not found", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
	case errors.Is(err, ErrNoProfileData):
		respond.Error(c, http.StatusUnprocessableEntity, "no_profile_data", "profile has no data yet", nil)
	case errors.As(err, &stale):
		respond.Error(c, http.StatusConflict, "knowledge_base_stale", "knowledge base must be regenerated first", gin.H{
			"dataUpdatedAt":          stale.DataUpdatedAt,
			"knowledgeBaseUpdatedAt": stale.KnowledgeBaseUpdatedAt,
		})
	case errors.As(err, &rejected):
		respond.Error(c, http.StatusBadGateway, "workflow_rejected", "workflow engine rejected the request", gin.H{
			"status": rejected.StatusCode,
			"body":   rejected.Body,
		})
	case errors.As(err, &network), errors.Is(err, workflow.ErrNotConfigured):
		respond.Error(c, http.StatusBadGateway, "workflow_unavailable", "workflow engine unavailable", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
