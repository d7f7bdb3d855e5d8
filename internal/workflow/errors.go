package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a submission rejected before any network call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured indicates the workflow base URL is missing.
	ErrNotConfigured = errors.New("workflow engine not configured")
)

// TransportError wraps network failures and timeouts.
type TransportError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("workflow %s transport url=%s: %v", e.Kind, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejectedError reports a non-2xx response from the engine.
type RemoteRejectedError struct {
	Kind       Kind
	StatusCode int
	Body       string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("workflow %s failed with status %d: %s", e.Kind, e.StatusCode, e.Body)
}
