package callbacks

import (
	"errors"

	"github.com/RohitLad/resume-markup/internal/profiles"
	"github.com/RohitLad/resume-markup/internal/resumes"
)

var (
	// ErrMissingField indicates a callback lacks a field its type requires.
	ErrMissingField = errors.New("missing callback field")

	// ErrUnknownType indicates no handler is registered for the callback type.
	ErrUnknownType = errors.New("unknown callback type")

	// ErrInvalidContent indicates the callback content has the wrong shape.
	ErrInvalidContent = errors.New("invalid callback content")
)

// IsTerminal reports whether retrying the callback cannot succeed.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrInvalidContent) ||
		errors.Is(err, resumes.ErrNotFound) ||
		errors.Is(err, profiles.ErrNotFound)
}
