// Package processing orchestrates asynchronous resume parsing, knowledge base
// synthesis and tailored resume generation.
//
// Every initiate call records an in-flight status entry, hands the work to the
// workflow engine and returns immediately. The callback package completes the
// cycle when the engine reports back.
package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RohitLad/resume-markup/internal/events"
	"github.com/RohitLad/resume-markup/internal/extract"
	"github.com/RohitLad/resume-markup/internal/profiles"
	"github.com/RohitLad/resume-markup/internal/resumes"
	"github.com/RohitLad/resume-markup/internal/shared/storage/object"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
	"github.com/RohitLad/resume-markup/internal/shared/util"
	"github.com/RohitLad/resume-markup/internal/status"
	"github.com/RohitLad/resume-markup/internal/workflow"
	"github.com/RohitLad/resume-markup/resume/schema"
)

const maxResumeFileBytes = 10 << 20 // 10MB

// Outcome describes what a generation request did.
type Outcome string

const (
	// OutcomeSubmitted means generation was handed to the workflow engine.
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeKnowledgeBaseFirst means generation waits for a knowledge base refresh.
	OutcomeKnowledgeBaseFirst Outcome = "knowledge_base_first"
)

// Submitter hands work to the workflow engine.
type Submitter interface {
	SubmitParse(ctx context.Context, req workflow.ParseRequest) (workflow.SubmissionResult, error)
	SubmitGenerate(ctx context.Context, req workflow.GenerateRequest) (workflow.SubmissionResult, error)
	SubmitKnowledgeBase(ctx context.Context, req workflow.KnowledgeBaseRequest) (workflow.SubmissionResult, error)
}

// Service coordinates status tracking and workflow submissions.
type Service struct {
	Profiles profiles.Repo
	Resumes  resumes.Repo
	Store    object.ObjectStore
	Workflow Submitter
	Status   *status.Tracker
	Events   events.Publisher
	// Deferred holds resumes waiting on a knowledge base refresh. It must be
	// shared by every process that accepts requests or applies callbacks.
	// Nil falls back to a process-local store.
	Deferred status.DeferredStore
	// DeferTTL bounds how long a resume waits when Deferred is nil.
	DeferTTL time.Duration
	// PublishTimeout bounds each event publish. Zero uses events.DefaultPublishTimeout.
	PublishTimeout time.Duration
	Now            func() time.Time
	NewID          func() string

	deferOnce sync.Once
	deferred  status.DeferredStore
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) pending() status.DeferredStore {
	s.deferOnce.Do(func() {
		if s.Deferred != nil {
			s.deferred = s.Deferred
			return
		}
		s.deferred = status.NewMemoryDeferred(s.DeferTTL).WithClock(s.now)
	})
	return s.deferred
}

// InitiateParsing sends a stored PDF to the workflow engine for parsing.
func (s *Service) InitiateParsing(ctx context.Context, userID, storageKey string) (workflow.SubmissionResult, error) {
	userID = strings.TrimSpace(userID)
	storageKey = strings.TrimSpace(storageKey)
	if userID == "" || storageKey == "" {
		return workflow.SubmissionResult{}, fmt.Errorf("%w: user id and storage key are required", ErrInvalidInput)
	}

	fileName, err := util.FileNameFromKey(storageKey)
	if err != nil {
		return workflow.SubmissionResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	data, err := s.readFile(ctx, storageKey)
	if err != nil {
		return workflow.SubmissionResult{}, err
	}
	if !extract.IsPDF(data, fileName) {
		return workflow.SubmissionResult{}, fmt.Errorf("%w: file is not a pdf", ErrInvalidInput)
	}

	fields := map[string]any{
		"user_id":     userID,
		"storage_key": storageKey,
		"size_bytes":  len(data),
		"sha256":      util.SHA256Hex(data),
	}
	if info, err := extract.InspectPDF(ctx, data); err != nil {
		fields["inspect_error"] = err.Error()
	} else {
		fields["pages"] = info.Pages
		fields["text_chars"] = info.TextChars
	}
	telemetry.Info("processing.parse.file_loaded", fields)

	if err := s.Status.StartParsing(ctx, userID); err != nil {
		return workflow.SubmissionResult{}, fmt.Errorf("start parsing status: %w", err)
	}
	res, err := s.Workflow.SubmitParse(ctx, workflow.ParseRequest{
		File:     data,
		FileName: fileName,
		UserID:   userID,
	})
	if err != nil {
		s.clear(ctx, status.KindParsing, userID, err)
		return workflow.SubmissionResult{}, fmt.Errorf("submit parse: %w", err)
	}
	s.publish(ctx, events.Event{
		Type:      string(workflow.KindParseResume),
		Outcome:   events.OutcomeSubmitted,
		UserID:    userID,
		SubjectID: userID,
		RequestID: res.CorrelationID,
	})
	return res, nil
}

// InitiateKnowledgeBaseGeneration asks the engine to rebuild the user's knowledge base.
func (s *Service) InitiateKnowledgeBaseGeneration(ctx context.Context, userID string) (workflow.SubmissionResult, error) {
	profile, err := s.profileWithData(ctx, userID)
	if err != nil {
		return workflow.SubmissionResult{}, err
	}

	if err := s.Status.StartKnowledgeBaseGeneration(ctx, userID); err != nil {
		return workflow.SubmissionResult{}, fmt.Errorf("start knowledge base status: %w", err)
	}
	res, err := s.Workflow.SubmitKnowledgeBase(ctx, workflow.KnowledgeBaseRequest{
		Profile: profile.Data,
		UserID:  userID,
	})
	if err != nil {
		s.clear(ctx, status.KindKnowledgeBaseGeneration, userID, err)
		return workflow.SubmissionResult{}, fmt.Errorf("submit knowledge base: %w", err)
	}
	s.publish(ctx, events.Event{
		Type:      string(workflow.KindGenerateKnowledgeBase),
		Outcome:   events.OutcomeSubmitted,
		UserID:    userID,
		SubjectID: userID,
		RequestID: res.CorrelationID,
	})
	return res, nil
}

// NeedsKnowledgeBaseUpdate reports whether profile data changed since the knowledge base was built.
func (s *Service) NeedsKnowledgeBaseUpdate(ctx context.Context, userID string) (bool, error) {
	profile, err := s.Profiles.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.KnowledgeBaseStale(), nil
}

// InitiateResumeGeneration submits a tailored resume generation. It refuses
// while the knowledge base is stale.
func (s *Service) InitiateResumeGeneration(ctx context.Context, resume resumes.Resume) (workflow.SubmissionResult, error) {
	if strings.TrimSpace(resume.ID) == "" || strings.TrimSpace(resume.UserID) == "" {
		return workflow.SubmissionResult{}, fmt.Errorf("%w: resume id and user id are required", ErrInvalidInput)
	}
	profile, err := s.profileWithData(ctx, resume.UserID)
	if err != nil {
		return workflow.SubmissionResult{}, err
	}
	if profile.KnowledgeBaseStale() {
		return workflow.SubmissionResult{}, &KnowledgeBaseStaleError{
			UserID:                 resume.UserID,
			DataUpdatedAt:          profile.DataUpdatedAt,
			KnowledgeBaseUpdatedAt: profile.KnowledgeBaseUpdatedAt,
		}
	}

	if err := s.Status.StartGeneration(ctx, resume.ID); err != nil {
		return workflow.SubmissionResult{}, fmt.Errorf("start generation status: %w", err)
	}
	res, err := s.Workflow.SubmitGenerate(ctx, workflow.GenerateRequest{
		Profile:        profile.Data,
		KnowledgeBase:  profile.KnowledgeBase,
		JobTitle:       resume.JobTitle,
		JobDescription: resume.JobDescription,
		UserID:         resume.UserID,
		ResumeID:       resume.ID,
	})
	if err != nil {
		s.clear(ctx, status.KindGeneration, resume.ID, err)
		return workflow.SubmissionResult{}, fmt.Errorf("submit generation: %w", err)
	}
	s.publish(ctx, events.Event{
		Type:      string(workflow.KindGenerateResume),
		Outcome:   events.OutcomeSubmitted,
		UserID:    resume.UserID,
		SubjectID: resume.ID,
		RequestID: res.CorrelationID,
	})
	return res, nil
}

// RequestResumeGeneration generates now when possible. With a stale knowledge
// base it starts a refresh (unless one is running) and defers the resume until
// the refresh lands.
func (s *Service) RequestResumeGeneration(ctx context.Context, resume resumes.Resume) (Outcome, error) {
	_, err := s.InitiateResumeGeneration(ctx, resume)
	if err == nil {
		s.forget(ctx, resume.UserID, resume.ID)
		return OutcomeSubmitted, nil
	}
	if !errors.Is(err, ErrKnowledgeBaseStale) {
		return "", err
	}

	if err := s.pending().Add(ctx, resume.UserID, resume.ID); err != nil {
		return "", fmt.Errorf("defer generation: %w", err)
	}
	if s.Status.IsKnowledgeBaseGenerationActive(ctx, resume.UserID) {
		telemetry.Info("processing.generation.deferred", map[string]any{
			"user_id":   resume.UserID,
			"resume_id": resume.ID,
			"reason":    "knowledge base generation in flight",
		})
		return OutcomeKnowledgeBaseFirst, nil
	}
	if _, kbErr := s.InitiateKnowledgeBaseGeneration(ctx, resume.UserID); kbErr != nil {
		s.forget(ctx, resume.UserID, resume.ID)
		return "", kbErr
	}
	telemetry.Info("processing.generation.deferred", map[string]any{
		"user_id":   resume.UserID,
		"resume_id": resume.ID,
		"reason":    "knowledge base refresh started",
	})
	return OutcomeKnowledgeBaseFirst, nil
}

// ResumeDeferred retries generations that waited on the user's knowledge base.
func (s *Service) ResumeDeferred(ctx context.Context, userID string) error {
	ids, err := s.pending().Take(ctx, userID)
	if err != nil {
		return fmt.Errorf("take deferred generations: %w", err)
	}
	var errs []error
	for _, id := range ids {
		resume, err := s.Resumes.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, resumes.ErrNotFound) {
				telemetry.Warn("processing.deferred.resume_missing", map[string]any{"user_id": userID, "resume_id": id})
				continue
			}
			errs = append(errs, fmt.Errorf("load resume %s: %w", id, err))
			continue
		}
		if _, err := s.InitiateResumeGeneration(ctx, resume); err != nil {
			telemetry.Error("processing.deferred.submit_failed", map[string]any{
				"user_id":   userID,
				"resume_id": id,
				"error":     err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		telemetry.Info("processing.deferred.resumed", map[string]any{"user_id": userID, "resume_id": id})
	}
	return errors.Join(errs...)
}

// IsDeferred reports whether a resume is waiting on a knowledge base refresh.
func (s *Service) IsDeferred(ctx context.Context, userID, resumeID string) bool {
	ok, err := s.pending().Has(ctx, userID, resumeID)
	if err != nil {
		telemetry.Warn("processing.deferred.lookup_failed", map[string]any{
			"user_id":   userID,
			"resume_id": resumeID,
			"error":     err.Error(),
		})
		return false
	}
	return ok
}

func (s *Service) forget(ctx context.Context, userID, resumeID string) {
	if err := s.pending().Remove(ctx, userID, resumeID); err != nil {
		telemetry.Warn("processing.deferred.remove_failed", map[string]any{
			"user_id":   userID,
			"resume_id": resumeID,
			"error":     err.Error(),
		})
	}
}

// SaveProfileData merges data over the canonical schema and stores it,
// which makes any existing knowledge base stale.
func (s *Service) SaveProfileData(ctx context.Context, userID string, data map[string]any) (schema.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	doc := schema.Merge(data)
	if err := s.Profiles.UpsertData(ctx, userID, doc, s.now()); err != nil {
		return nil, fmt.Errorf("save profile data: %w", err)
	}
	return doc, nil
}

func (s *Service) profileWithData(ctx context.Context, userID string) (profiles.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return profiles.Profile{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	profile, err := s.Profiles.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return profiles.Profile{}, ErrNoProfileData
		}
		return profiles.Profile{}, err
	}
	if !profile.HasData() {
		return profiles.Profile{}, ErrNoProfileData
	}
	return profile, nil
}

func (s *Service) readFile(ctx context.Context, storageKey string) ([]byte, error) {
	rc, err := s.Store.Open(ctx, storageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, storageKey)
		}
		return nil, fmt.Errorf("open resume file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxResumeFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read resume file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if len(data) > maxResumeFileBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, maxResumeFileBytes)
	}
	return data, nil
}

// clear removes a status entry after a failed submission. The TTL covers a failed clear.
func (s *Service) clear(ctx context.Context, kind status.Kind, subjectID string, cause error) {
	var err error
	switch kind {
	case status.KindParsing:
		err = s.Status.FinishParsing(ctx, subjectID)
	case status.KindGeneration:
		err = s.Status.FinishGeneration(ctx, subjectID)
	case status.KindKnowledgeBaseGeneration:
		err = s.Status.FinishKnowledgeBaseGeneration(ctx, subjectID)
	}
	fields := map[string]any{
		"kind":       string(kind),
		"subject_id": subjectID,
		"cause":      cause.Error(),
	}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Error("processing.status.clear_failed", fields)
		return
	}
	telemetry.Warn("processing.submit_failed", fields)
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.Events == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now()
	}
	if err := events.PublishWithin(ctx, s.Events, evt, s.PublishTimeout); err != nil {
		telemetry.Warn("processing.event.publish_failed", map[string]any{
			"type":       evt.Type,
			"outcome":    evt.Outcome,
			"subject_id": evt.SubjectID,
			"error":      err.Error(),
		})
	}
}
