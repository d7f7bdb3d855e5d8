// Package events publishes processing lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"
)

// DefaultTopic receives every processing event.
const DefaultTopic = "resume.processing"

// DefaultPublishTimeout bounds one publish made on a request or callback path.
const DefaultPublishTimeout = 2 * time.Second

const (
	OutcomeSubmitted = "submitted"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Event describes one transition of a processing request.
type Event struct {
	Type       string    `json:"type"`
	Outcome    string    `json:"outcome"`
	UserID     string    `json:"userId,omitempty"`
	SubjectID  string    `json:"subjectId"`
	RequestID  string    `json:"requestId,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// PublishWithin publishes evt, giving up after timeout. A non-positive timeout
// uses DefaultPublishTimeout.
func PublishWithin(ctx context.Context, p Publisher, evt Event, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Publish(ctx, evt)
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
