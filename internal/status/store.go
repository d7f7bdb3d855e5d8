// Package status tracks in-flight asynchronous processing requests.
//
// Entries are keyed by (kind, subject) and expire after a fixed TTL so an
// abandoned request never reports itself as active forever.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies a processing track.
type Kind string

const (
	KindParsing                 Kind = "parsing"
	KindGeneration              Kind = "generation"
	KindKnowledgeBaseGeneration Kind = "knowledgeBaseGeneration"
)

// DefaultTTL bounds how long an entry survives without a callback.
const DefaultTTL = 30 * time.Minute

var (
	// ErrUnknownKind indicates a kind outside the known set.
	ErrUnknownKind = errors.New("unknown status kind")
	// ErrEmptySubject indicates a blank subject id.
	ErrEmptySubject = errors.New("empty status subject")
)

// Store records processing start times with expiry.
type Store interface {
	Start(ctx context.Context, kind Kind, subjectID string) error
	IsActive(ctx context.Context, kind Kind, subjectID string) (bool, error)
	Finish(ctx context.Context, kind Kind, subjectID string) error
	StartedAt(ctx context.Context, kind Kind, subjectID string) (time.Time, bool, error)
}

func (k Kind) prefix() (string, error) {
	switch k {
	case KindParsing:
		return "resume_parsing:", nil
	case KindGeneration:
		return "resume_generation:", nil
	case KindKnowledgeBaseGeneration:
		return "knowledge_base_generation:", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
}

// Key returns the storage key for a kind and subject.
func Key(kind Kind, subjectID string) (string, error) {
	if subjectID == "" {
		return "", ErrEmptySubject
	}
	p, err := kind.prefix()
	if err != nil {
		return "", err
	}
	return p + subjectID, nil
}
