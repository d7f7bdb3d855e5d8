package resumes

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the resume does not exist.
	ErrNotFound = errors.New("resume not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")
)

// Resume is a job-tailored resume. Content is markdown and stays empty until generated.
type Resume struct {
	ID             string
	UserID         string
	JobTitle       string
	JobDescription string
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
