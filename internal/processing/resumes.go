package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RohitLad/resume-markup/internal/resumes"
)

// ResumeView is a resume together with its in-flight state.
type ResumeView struct {
	resumes.Resume
	Generating bool
	Deferred   bool
}

// CreateResume stores a new resume for a job and requests its generation.
// The resume is returned even when the generation request fails.
func (s *Service) CreateResume(ctx context.Context, userID, jobTitle, jobDescription string) (resumes.Resume, Outcome, error) {
	userID = strings.TrimSpace(userID)
	jobTitle = strings.TrimSpace(jobTitle)
	jobDescription = strings.TrimSpace(jobDescription)
	if userID == "" {
		return resumes.Resume{}, "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if jobTitle == "" || jobDescription == "" {
		return resumes.Resume{}, "", fmt.Errorf("%w: jobTitle and jobDescription are required", ErrInvalidInput)
	}

	now := s.now()
	res := resumes.Resume{
		ID:             s.newID(),
		UserID:         userID,
		JobTitle:       jobTitle,
		JobDescription: jobDescription,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Resumes.Create(ctx, res); err != nil {
		return resumes.Resume{}, "", fmt.Errorf("create resume: %w", err)
	}
	outcome, err := s.RequestResumeGeneration(ctx, res)
	return res, outcome, err
}

// UpdateResumeJob changes the job details and regenerates the resume.
func (s *Service) UpdateResumeJob(ctx context.Context, userID, resumeID, jobTitle, jobDescription string) (resumes.Resume, Outcome, error) {
	jobTitle = strings.TrimSpace(jobTitle)
	jobDescription = strings.TrimSpace(jobDescription)
	if jobTitle == "" || jobDescription == "" {
		return resumes.Resume{}, "", fmt.Errorf("%w: jobTitle and jobDescription are required", ErrInvalidInput)
	}
	res, err := s.ownedResume(ctx, userID, resumeID)
	if err != nil {
		return resumes.Resume{}, "", err
	}
	now := s.now()
	if err := s.Resumes.UpdateJob(ctx, res.ID, jobTitle, jobDescription, now); err != nil {
		if errors.Is(err, resumes.ErrNotFound) {
			return resumes.Resume{}, "", ErrNotFound
		}
		return resumes.Resume{}, "", fmt.Errorf("update resume: %w", err)
	}
	res.JobTitle = jobTitle
	res.JobDescription = jobDescription
	res.UpdatedAt = now

	outcome, err := s.RequestResumeGeneration(ctx, res)
	return res, outcome, err
}

// RegenerateResume requests a fresh generation for an existing resume.
func (s *Service) RegenerateResume(ctx context.Context, userID, resumeID string) (Outcome, error) {
	res, err := s.ownedResume(ctx, userID, resumeID)
	if err != nil {
		return "", err
	}
	return s.RequestResumeGeneration(ctx, res)
}

// GetResume returns a user's resume with its generation state.
func (s *Service) GetResume(ctx context.Context, userID, resumeID string) (ResumeView, error) {
	res, err := s.ownedResume(ctx, userID, resumeID)
	if err != nil {
		return ResumeView{}, err
	}
	return ResumeView{
		Resume:     res,
		Generating: s.Status.IsGenerationActive(ctx, res.ID),
		Deferred:   s.IsDeferred(ctx, res.UserID, res.ID),
	}, nil
}

// ListResumes returns a user's resumes, newest first.
func (s *Service) ListResumes(ctx context.Context, userID string) ([]ResumeView, error) {
	list, err := s.Resumes.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ResumeView, 0, len(list))
	for _, res := range list {
		out = append(out, ResumeView{
			Resume:     res,
			Generating: s.Status.IsGenerationActive(ctx, res.ID),
			Deferred:   s.IsDeferred(ctx, res.UserID, res.ID),
		})
	}
	return out, nil
}

// OwnerOf returns the user that owns a resume.
func (s *Service) OwnerOf(ctx context.Context, resumeID string) (string, error) {
	res, err := s.Resumes.GetByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, resumes.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return res.UserID, nil
}

func (s *Service) ownedResume(ctx context.Context, userID, resumeID string) (resumes.Resume, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(resumeID) == "" {
		return resumes.Resume{}, fmt.Errorf("%w: user id and resume id are required", ErrInvalidInput)
	}
	res, err := s.Resumes.GetByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, resumes.ErrNotFound) {
			return resumes.Resume{}, ErrNotFound
		}
		return resumes.Resume{}, fmt.Errorf("load resume: %w", err)
	}
	if res.UserID != userID {
		return resumes.Resume{}, ErrNotFound
	}
	return res, nil
}
