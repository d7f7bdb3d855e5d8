package processing

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RohitLad/resume-markup/internal/events"
	"github.com/RohitLad/resume-markup/internal/profiles"
	"github.com/RohitLad/resume-markup/internal/resumes"
	"github.com/RohitLad/resume-markup/internal/shared/storage/object/local"
	"github.com/RohitLad/resume-markup/internal/status"
	"github.com/RohitLad/resume-markup/internal/workflow"
	"github.com/RohitLad/resume-markup/resume/schema"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	parses   []workflow.ParseRequest
	gens     []workflow.GenerateRequest
	kbs      []workflow.KnowledgeBaseRequest
	err      error
	sequence int
}

func (f *fakeSubmitter) result(kind workflow.Kind) workflow.SubmissionResult {
	f.sequence++
	return workflow.SubmissionResult{
		CorrelationID: fmt.Sprintf("req-%d", f.sequence),
		Kind:          kind,
		SubmittedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fakeSubmitter) SubmitParse(_ context.Context, req workflow.ParseRequest) (workflow.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parses = append(f.parses, req)
	if f.err != nil {
		return workflow.SubmissionResult{}, f.err
	}
	return f.result(workflow.KindParseResume), nil
}

func (f *fakeSubmitter) SubmitGenerate(_ context.Context, req workflow.GenerateRequest) (workflow.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gens = append(f.gens, req)
	if f.err != nil {
		return workflow.SubmissionResult{}, f.err
	}
	return f.result(workflow.KindGenerateResume), nil
}

func (f *fakeSubmitter) SubmitKnowledgeBase(_ context.Context, req workflow.KnowledgeBaseRequest) (workflow.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kbs = append(f.kbs, req)
	if f.err != nil {
		return workflow.SubmissionResult{}, f.err
	}
	return f.result(workflow.KindGenerateKnowledgeBase), nil
}

func (f *fakeSubmitter) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.parses), len(f.gens), len(f.kbs)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc      *Service
	workflow *fakeSubmitter
	profiles *profiles.MemoryRepo
	resumes  *resumes.MemoryRepo
	store    *local.Store
	events   *recordingPublisher
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	f := &fixture{
		workflow: &fakeSubmitter{},
		profiles: profiles.NewMemoryRepo(),
		resumes:  resumes.NewMemoryRepo(),
		store:    local.New(t.TempDir()),
		events:   &recordingPublisher{},
		clock:    clock,
	}
	ids := 0
	f.svc = &Service{
		Profiles: f.profiles,
		Resumes:  f.resumes,
		Store:    f.store,
		Workflow: f.workflow,
		Status:   status.NewTracker(status.NewMemoryStore(status.DefaultTTL).WithClock(clock.Now)),
		Events:   f.events,
		Now:      clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("resume-%d", ids)
		},
	}
	return f
}

func (f *fixture) putFile(t *testing.T, key string, data []byte) {
	t.Helper()
	_, err := f.store.Put(context.Background(), key, "application/pdf", bytes.NewReader(data))
	require.NoError(t, err)
}

func (f *fixture) seedProfile(t *testing.T, userID string, kbAge time.Duration, withKB bool) {
	t.Helper()
	ctx := context.Background()
	data := schema.Merge(map[string]any{"basics": map[string]any{"name": "Ada Lovelace"}})
	require.NoError(t, f.profiles.UpsertData(ctx, userID, data, f.clock.Now()))
	if withKB {
		require.NoError(t, f.profiles.SaveKnowledgeBase(ctx, userID, map[string]any{"summary": "analyst"}, f.clock.Now().Add(kbAge)))
	}
}
