package queue

import (
	"encoding/json"
	"time"
)

// CurrentVersion is stamped on every message this build enqueues.
const CurrentVersion = 1

// Message carries one workflow callback from the webhook to a worker.
type Message struct {
	RequestID  string          `json:"requestId"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt string          `json:"enqueuedAt"`
	Version    int             `json:"version"`
}

// NewMessage wraps a callback body for the queue.
func NewMessage(requestID, callbackType string, payload []byte, at time.Time) Message {
	return Message{
		RequestID:  requestID,
		Type:       callbackType,
		Payload:    json.RawMessage(payload),
		EnqueuedAt: at.UTC().Format(time.RFC3339),
		Version:    CurrentVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
