// Package workerproc decodes queued workflow callbacks and applies them.
// The SQS poller, the Lambda SQS handler and the in-process queue share it.
package workerproc

import (
	"context"
	"errors"
	"strings"

	"github.com/RohitLad/resume-markup/internal/callbacks"
	"github.com/RohitLad/resume-markup/internal/queue"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
	"github.com/RohitLad/resume-markup/internal/shared/util"
)

// CallbackHandler applies one decoded callback.
type CallbackHandler interface {
	Handle(ctx context.Context, p callbacks.Payload) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	return MessageMeta{BodyLen: len(body), BodySHA: util.SHA256Hex([]byte(body))}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingPayload indicates a message without a callback body.
type ErrMissingPayload struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingPayload) Error() string { return "missing callback payload" }

// ErrProcess indicates the callback could not be applied and may succeed on retry.
type ErrProcess struct {
	Type      string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process callback"
	}
	return "process callback: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// IsUnrecoverable reports whether a ParseMessage error means the message can never be processed.
func IsUnrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingPayload
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return msg, meta, ErrMissingPayload{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage applies a decoded message. Callbacks that can never succeed
// are logged and acknowledged; other failures come back as ErrProcess.
func HandleMessage(ctx context.Context, h CallbackHandler, msg queue.Message) error {
	if h == nil {
		return errors.New("callback handler not configured")
	}
	p, err := callbacks.ParsePayload(msg.Payload)
	if err != nil {
		telemetry.Error("worker.callback.decode_failed", map[string]any{
			"request_id": msg.RequestID,
			"type":       msg.Type,
			"error":      err.Error(),
		})
		return nil
	}
	if p.RequestID == "" {
		p.RequestID = msg.RequestID
	}

	if err := h.Handle(ctx, p); err != nil {
		if callbacks.IsTerminal(err) {
			return nil
		}
		return ErrProcess{Type: p.Type, RequestID: p.RequestID, Err: err}
	}
	return nil
}

// Process parses and applies a raw queue body.
func Process(ctx context.Context, h CallbackHandler, body string) error {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return HandleMessage(ctx, h, msg)
}
