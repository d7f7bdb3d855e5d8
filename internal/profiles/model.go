package profiles

import (
	"errors"
	"time"

	"github.com/RohitLad/resume-markup/resume/schema"
)

// ErrNotFound indicates the user has no profile yet.
var ErrNotFound = errors.New("profile not found")

// Profile holds a user's resume data and the knowledge base derived from it.
type Profile struct {
	UserID                 string
	Data                   schema.Document
	DataUpdatedAt          time.Time
	KnowledgeBase          map[string]any
	KnowledgeBaseUpdatedAt *time.Time
	CreatedAt              time.Time
}

// HasData reports whether the profile carries any resume data.
func (p Profile) HasData() bool {
	return !schema.IsEmpty(p.Data)
}

// KnowledgeBaseStale reports whether the knowledge base is missing or older than the data.
// Equal timestamps count as fresh.
func (p Profile) KnowledgeBaseStale() bool {
	if !p.HasData() {
		return false
	}
	if p.KnowledgeBaseUpdatedAt == nil {
		return true
	}
	return p.KnowledgeBaseUpdatedAt.Before(p.DataUpdatedAt)
}
