package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func TestMemoryQueueDrainsOnStop(t *testing.T) {
	var handled atomic.Int32
	q := NewMemoryQueue(16, 2, func(ctx context.Context, msg Message) error {
		handled.Add(1)
		return nil
	})
	q.Start(context.Background())

	for i := 0; i < 10; i++ {
		if err := q.Send(context.Background(), Message{RequestID: "r"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	q.Stop()

	if got := handled.Load(); got != 10 {
		t.Fatalf("expected 10 handled, got %d", got)
	}
	if err := q.Send(context.Background(), Message{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after stop, got %v", err)
	}
}

func TestMemoryQueueRecoversFromPanics(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewMemoryQueue(4, 1, func(ctx context.Context, msg Message) error {
		if msg.RequestID == "boom" {
			panic("handler exploded")
		}
		mu.Lock()
		seen = append(seen, msg.RequestID)
		mu.Unlock()
		return nil
	})
	q.Start(context.Background())

	_ = q.Send(context.Background(), Message{RequestID: "boom"})
	_ = q.Send(context.Background(), Message{RequestID: "after"})
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "after" {
		t.Fatalf("expected worker to survive panic, saw %v", seen)
	}
}

func TestMemoryQueueSendHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := NewMemoryQueue(1, 1, func(ctx context.Context, msg Message) error {
		<-block
		return nil
	})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	_ = q.Send(context.Background(), Message{RequestID: "1"})
	// Wait for the worker to pick up the first message so the buffer holds one more.
	deadline := time.Now().Add(time.Second)
	for len(q.ch) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = q.Send(context.Background(), Message{RequestID: "2"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Send(ctx, Message{RequestID: "3"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type fakeSQS struct {
	input *sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSend(t *testing.T) {
	fake := &fakeSQS{}
	client := &SQSClient{client: fake, queueURL: "https://sqs.example/queue"}

	msg := NewMessage("req-1", "generate_resume", []byte(`{"type":"generate_resume"}`), time.Now())
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(fake.input.QueueUrl) != "https://sqs.example/queue" {
		t.Fatalf("unexpected queue url %q", aws.ToString(fake.input.QueueUrl))
	}
	decoded, err := DecodeMessage([]byte(aws.ToString(fake.input.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.RequestID != "req-1" {
		t.Fatalf("unexpected request id %q", decoded.RequestID)
	}
	if got := aws.ToString(fake.input.MessageAttributes["type"].StringValue); got != "generate_resume" {
		t.Fatalf("unexpected type attribute %q", got)
	}
}

func TestSQSClientRejectsOversizedMessage(t *testing.T) {
	fake := &fakeSQS{}
	client := &SQSClient{client: fake, queueURL: "https://sqs.example/queue"}

	body := []byte(`{"content":"` + strings.Repeat("x", MaxSQSMessageBytes) + `"}`)
	err := client.Send(context.Background(), NewMessage("req-1", "generate_resume", body, time.Now()))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if fake.input != nil {
		t.Fatalf("oversized message reached sqs")
	}
}
