package status

import (
	"context"
	"time"

	"github.com/RohitLad/resume-markup/internal/shared/metrics"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
)

// Tracker exposes per-track helpers over a Store. Queries are best effort:
// backing errors are logged and reported as inactive. Writes return errors.
type Tracker struct {
	Store Store
}

// NewTracker wraps a Store.
func NewTracker(store Store) *Tracker {
	return &Tracker{Store: store}
}

func (t *Tracker) start(ctx context.Context, kind Kind, subjectID string) error {
	if err := t.Store.Start(ctx, kind, subjectID); err != nil {
		return err
	}
	metrics.IncStatusTransition(string(kind), "start")
	telemetry.Info("status.started", map[string]any{
		"kind":       string(kind),
		"subject_id": subjectID,
	})
	return nil
}

func (t *Tracker) finish(ctx context.Context, kind Kind, subjectID string) error {
	if err := t.Store.Finish(ctx, kind, subjectID); err != nil {
		return err
	}
	metrics.IncStatusTransition(string(kind), "finish")
	telemetry.Info("status.finished", map[string]any{
		"kind":       string(kind),
		"subject_id": subjectID,
	})
	return nil
}

func (t *Tracker) active(ctx context.Context, kind Kind, subjectID string) bool {
	ok, err := t.Store.IsActive(ctx, kind, subjectID)
	if err != nil {
		telemetry.Warn("status.query_failed", map[string]any{
			"kind":       string(kind),
			"subject_id": subjectID,
			"error":      err.Error(),
		})
		return false
	}
	return ok
}

// Lookup returns whether the entry is active and when it started.
func (t *Tracker) Lookup(ctx context.Context, kind Kind, subjectID string) (time.Time, bool) {
	started, ok, err := t.Store.StartedAt(ctx, kind, subjectID)
	if err != nil {
		telemetry.Warn("status.query_failed", map[string]any{
			"kind":       string(kind),
			"subject_id": subjectID,
			"error":      err.Error(),
		})
		return time.Time{}, false
	}
	return started, ok
}

// StartParsing marks a user's resume parse as in flight.
func (t *Tracker) StartParsing(ctx context.Context, userID string) error {
	return t.start(ctx, KindParsing, userID)
}

// FinishParsing clears the user's parse entry.
func (t *Tracker) FinishParsing(ctx context.Context, userID string) error {
	return t.finish(ctx, KindParsing, userID)
}

// IsParsingActive reports whether a parse is in flight for the user. Store errors read as inactive.
func (t *Tracker) IsParsingActive(ctx context.Context, userID string) bool {
	return t.active(ctx, KindParsing, userID)
}

// StartGeneration marks generation of a resume as in flight.
func (t *Tracker) StartGeneration(ctx context.Context, resumeID string) error {
	return t.start(ctx, KindGeneration, resumeID)
}

// FinishGeneration clears the resume's generation entry.
func (t *Tracker) FinishGeneration(ctx context.Context, resumeID string) error {
	return t.finish(ctx, KindGeneration, resumeID)
}

// IsGenerationActive reports whether the resume is being generated. Store errors read as inactive.
func (t *Tracker) IsGenerationActive(ctx context.Context, resumeID string) bool {
	return t.active(ctx, KindGeneration, resumeID)
}

// StartKnowledgeBaseGeneration marks a knowledge base refresh as in flight for the user.
func (t *Tracker) StartKnowledgeBaseGeneration(ctx context.Context, userID string) error {
	return t.start(ctx, KindKnowledgeBaseGeneration, userID)
}

// FinishKnowledgeBaseGeneration clears the user's knowledge base entry.
func (t *Tracker) FinishKnowledgeBaseGeneration(ctx context.Context, userID string) error {
	return t.finish(ctx, KindKnowledgeBaseGeneration, userID)
}

// IsKnowledgeBaseGenerationActive reports whether a refresh is in flight for the user. Store errors read as inactive.
func (t *Tracker) IsKnowledgeBaseGenerationActive(ctx context.Context, userID string) bool {
	return t.active(ctx, KindKnowledgeBaseGeneration, userID)
}
