package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/RohitLad/resume-markup/internal/callbacks"
	"github.com/RohitLad/resume-markup/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeHandler struct {
	err  error
	seen []callbacks.Payload
}

func (f *fakeHandler) Handle(ctx context.Context, p callbacks.Payload) error {
	f.seen = append(f.seen, p)
	return f.err
}

func callbackMessage(t *testing.T, id string) sqstypes.Message {
	t.Helper()
	payload := []byte(`{"type":"parse_resume","success":true,"user_id":"u1","content":{}}`)
	body, err := queue.EncodeMessage(queue.NewMessage("req-"+id, "parse_resume", payload, time.Now()))
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String("m" + id),
		ReceiptHandle: aws.String("r" + id),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	h := &fakeHandler{}

	handleMessage(context.Background(), h, client, "queue", callbackMessage(t, "1"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(h.seen) != 1 || h.seen[0].RequestID != "req-1" {
		t.Fatalf("expected request id from envelope, got %+v", h.seen)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	h := &fakeHandler{err: errors.New("boom")}

	handleMessage(context.Background(), h, client, "queue", callbackMessage(t, "2"))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnTerminalFailure(t *testing.T) {
	client := &fakeSQS{}
	h := &fakeHandler{err: fmt.Errorf("%w: user_id", callbacks.ErrMissingField)}

	handleMessage(context.Background(), h, client, "queue", callbackMessage(t, "3"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	h := &fakeHandler{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), h, client, "queue", msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(h.seen) != 0 {
		t.Fatalf("expected handler to be skipped")
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
