package resumes

import (
	"context"
	"time"
)

// Repo defines persistence operations for resumes.
type Repo interface {
	Create(ctx context.Context, r Resume) error
	GetByID(ctx context.Context, id string) (Resume, error)
	UpdateJob(ctx context.Context, id, jobTitle, jobDescription string, at time.Time) error
	UpdateContent(ctx context.Context, id, content string, at time.Time) error
	ListByUser(ctx context.Context, userID string) ([]Resume, error)
}
