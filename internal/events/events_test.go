package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stalledPublisher blocks until its context ends, like a writer waiting on an
// unreachable broker.
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

func TestPublishWithinGivesUp(t *testing.T) {
	start := time.Now()
	err := PublishWithin(context.Background(), stalledPublisher{}, Event{Type: "parse_resume"}, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPublishWithinPassesEventThrough(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, topic: DefaultTopic}
	assert.NoError(t, PublishWithin(context.Background(), p, Event{Type: "parse_resume", SubjectID: "u1"}, 0))
	assert.Len(t, w.msgs, 1)
}
