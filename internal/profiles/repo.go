package profiles

import (
	"context"
	"time"

	"github.com/RohitLad/resume-markup/resume/schema"
)

// Repo defines persistence operations for profiles.
type Repo interface {
	GetByUser(ctx context.Context, userID string) (Profile, error)
	// UpsertData creates the profile if needed and replaces its data.
	UpsertData(ctx context.Context, userID string, data schema.Document, at time.Time) error
	// SaveKnowledgeBase stores the knowledge base without touching DataUpdatedAt.
	SaveKnowledgeBase(ctx context.Context, userID string, kb map[string]any, at time.Time) error
}
