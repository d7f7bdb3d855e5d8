// Package callbacks applies workflow engine results to stored state.
package callbacks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RohitLad/resume-markup/internal/events"
	"github.com/RohitLad/resume-markup/internal/profiles"
	"github.com/RohitLad/resume-markup/internal/resumes"
	"github.com/RohitLad/resume-markup/internal/shared/metrics"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
	"github.com/RohitLad/resume-markup/internal/status"
	"github.com/RohitLad/resume-markup/internal/workflow"
	"github.com/RohitLad/resume-markup/resume/schema"
)

// Callback types understood by default.
const (
	TypeParseResume           = string(workflow.KindParseResume)
	TypeGenerateResume        = string(workflow.KindGenerateResume)
	TypeGenerateKnowledgeBase = string(workflow.KindGenerateKnowledgeBase)
)

// Func applies one successful callback.
type Func func(ctx context.Context, p Payload) error

// DeferredResumer restarts generations that waited on a knowledge base.
type DeferredResumer interface {
	ResumeDeferred(ctx context.Context, userID string) error
}

// Deps holds the collaborators a Handler writes to.
type Deps struct {
	Profiles profiles.Repo
	Resumes  resumes.Repo
	Status   *status.Tracker
	Deferred DeferredResumer
	Events   events.Publisher
	// ClearOnFailure clears the in-flight status when the engine reports a failure.
	ClearOnFailure bool
	// PublishTimeout bounds each event publish. Zero uses events.DefaultPublishTimeout.
	PublishTimeout time.Duration
	Now            func() time.Time
}

// Handler dispatches callbacks by type.
type Handler struct {
	deps Deps

	mu       sync.RWMutex
	handlers map[string]Func
}

// NewHandler constructs a Handler with the built-in callback types registered.
func NewHandler(deps Deps) *Handler {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	h := &Handler{deps: deps, handlers: make(map[string]Func)}
	h.Register(TypeParseResume, h.parseResume)
	h.Register(TypeGenerateKnowledgeBase, h.generateKnowledgeBase)
	h.Register(TypeGenerateResume, h.generateResume)
	return h
}

// Register adds or replaces the handler for a callback type.
func (h *Handler) Register(callbackType string, fn Func) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[callbackType] = fn
}

func (h *Handler) lookup(callbackType string) (Func, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[callbackType]
	return fn, ok
}

// Handle applies a callback. Engine-reported failures are logged and
// acknowledged. Returned errors satisfying IsTerminal should not be retried.
func (h *Handler) Handle(ctx context.Context, p Payload) error {
	fields := logFields(p)
	if p.Type == "" {
		telemetry.Warn("callback.missing_type", fields)
		metrics.IncCallback("", "dropped")
		return fmt.Errorf("%w: type", ErrMissingField)
	}

	if !p.Succeeded() {
		fields["error"] = p.ErrorMessage()
		telemetry.Error("callback.workflow_failed", fields)
		metrics.IncCallback(p.Type, "failed")
		if h.deps.ClearOnFailure {
			h.clearStatus(ctx, p)
		}
		h.publish(ctx, p, events.OutcomeFailed, p.ErrorMessage())
		return nil
	}

	fn, ok := h.lookup(p.Type)
	if !ok {
		telemetry.Warn("callback.unknown_type", fields)
		metrics.IncCallback(p.Type, "dropped")
		return fmt.Errorf("%w: %s", ErrUnknownType, p.Type)
	}

	if err := fn(ctx, p); err != nil {
		fields["error"] = err.Error()
		if IsTerminal(err) {
			telemetry.Warn("callback.dropped", fields)
			metrics.IncCallback(p.Type, "dropped")
		} else {
			telemetry.Error("callback.failed", fields)
			metrics.IncCallback(p.Type, "error")
		}
		return err
	}

	telemetry.Info("callback.applied", fields)
	metrics.IncCallback(p.Type, "completed")
	h.publish(ctx, p, events.OutcomeCompleted, "")
	return nil
}

func (h *Handler) parseResume(ctx context.Context, p Payload) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id", ErrMissingField)
	}
	content, err := p.ContentObject()
	if err != nil {
		return err
	}
	if err := h.deps.Profiles.UpsertData(ctx, p.UserID, schema.Merge(content), h.deps.Now()); err != nil {
		return fmt.Errorf("save parsed profile: %w", err)
	}
	return h.deps.Status.FinishParsing(ctx, p.UserID)
}

func (h *Handler) generateKnowledgeBase(ctx context.Context, p Payload) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id", ErrMissingField)
	}
	content, err := p.ContentObject()
	if err != nil {
		return err
	}
	if err := h.deps.Profiles.SaveKnowledgeBase(ctx, p.UserID, content, h.deps.Now()); err != nil {
		return fmt.Errorf("save knowledge base: %w", err)
	}
	if err := h.deps.Status.FinishKnowledgeBaseGeneration(ctx, p.UserID); err != nil {
		return err
	}
	if h.deps.Deferred != nil {
		if err := h.deps.Deferred.ResumeDeferred(ctx, p.UserID); err != nil {
			telemetry.Warn("callback.resume_deferred_failed", map[string]any{
				"user_id": p.UserID,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

func (h *Handler) generateResume(ctx context.Context, p Payload) error {
	if p.ResumeID == "" {
		return fmt.Errorf("%w: resume_id", ErrMissingField)
	}
	content, err := p.ContentText()
	if err != nil {
		return err
	}
	if err := h.deps.Resumes.UpdateContent(ctx, p.ResumeID, content, h.deps.Now()); err != nil {
		if errors.Is(err, resumes.ErrNotFound) {
			return fmt.Errorf("resume %s: %w", p.ResumeID, err)
		}
		return fmt.Errorf("save generated resume: %w", err)
	}
	return h.deps.Status.FinishGeneration(ctx, p.ResumeID)
}

func (h *Handler) clearStatus(ctx context.Context, p Payload) {
	var err error
	switch p.Type {
	case TypeParseResume:
		if p.UserID != "" {
			err = h.deps.Status.FinishParsing(ctx, p.UserID)
		}
	case TypeGenerateKnowledgeBase:
		if p.UserID != "" {
			err = h.deps.Status.FinishKnowledgeBaseGeneration(ctx, p.UserID)
		}
	case TypeGenerateResume:
		if p.ResumeID != "" {
			err = h.deps.Status.FinishGeneration(ctx, p.ResumeID)
		}
	}
	if err != nil {
		fields := logFields(p)
		fields["error"] = err.Error()
		telemetry.Warn("callback.status_clear_failed", fields)
	}
}

func (h *Handler) publish(ctx context.Context, p Payload, outcome, errMsg string) {
	evt := events.Event{
		Type:       p.Type,
		Outcome:    outcome,
		UserID:     p.UserID,
		SubjectID:  subjectOf(p),
		RequestID:  p.RequestID,
		Error:      errMsg,
		OccurredAt: h.deps.Now(),
	}
	if err := events.PublishWithin(ctx, h.deps.Events, evt, h.deps.PublishTimeout); err != nil {
		fields := logFields(p)
		fields["error"] = err.Error()
		telemetry.Warn("callback.event_publish_failed", fields)
	}
}

func subjectOf(p Payload) string {
	if p.Type == TypeGenerateResume && p.ResumeID != "" {
		return p.ResumeID
	}
	return p.UserID
}

func logFields(p Payload) map[string]any {
	fields := map[string]any{
		"type":       p.Type,
		"request_id": p.RequestID,
	}
	if p.UserID != "" {
		fields["user_id"] = p.UserID
	}
	if p.ResumeID != "" {
		fields["resume_id"] = p.ResumeID
	}
	return fields
}
