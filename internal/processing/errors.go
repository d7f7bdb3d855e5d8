package processing

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFileNotFound indicates the uploaded resume file is missing from storage.
	ErrFileNotFound = errors.New("resume file not found")

	// ErrNoProfileData indicates the user has no profile data to work from.
	ErrNoProfileData = errors.New("no profile data")

	// ErrKnowledgeBaseStale indicates the knowledge base must be regenerated first.
	ErrKnowledgeBaseStale = errors.New("knowledge base is out of date")

	// ErrNotFound indicates the resume does not exist or belongs to someone else.
	ErrNotFound = errors.New("not found")
)

// KnowledgeBaseStaleError carries the timestamps that made the knowledge base stale.
type KnowledgeBaseStaleError struct {
	UserID                 string
	DataUpdatedAt          time.Time
	KnowledgeBaseUpdatedAt *time.Time
}

func (e *KnowledgeBaseStaleError) Error() string {
	if e.KnowledgeBaseUpdatedAt == nil {
		return fmt.Sprintf("knowledge base for user %s was never generated", e.UserID)
	}
	return fmt.Sprintf("knowledge base for user %s generated at %s predates profile update at %s",
		e.UserID,
		e.KnowledgeBaseUpdatedAt.UTC().Format(time.RFC3339),
		e.DataUpdatedAt.UTC().Format(time.RFC3339))
}

func (e *KnowledgeBaseStaleError) Is(target error) bool {
	return target == ErrKnowledgeBaseStale
}
