package queue

import (
	"context"
	"errors"
)

var (
	// ErrClosed indicates the queue no longer accepts messages.
	ErrClosed = errors.New("queue closed")
	// ErrTooLarge indicates an encoded message exceeds the backend's size limit.
	ErrTooLarge = errors.New("queue message too large")
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// HandlerFunc consumes one message.
type HandlerFunc func(ctx context.Context, msg Message) error
