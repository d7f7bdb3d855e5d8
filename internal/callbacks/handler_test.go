package callbacks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RohitLad/resume-markup/internal/events"
	"github.com/RohitLad/resume-markup/internal/profiles"
	"github.com/RohitLad/resume-markup/internal/resumes"
	"github.com/RohitLad/resume-markup/internal/status"
	"github.com/RohitLad/resume-markup/resume/schema"
)

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

type recordingResumer struct {
	users []string
}

func (r *recordingResumer) ResumeDeferred(_ context.Context, userID string) error {
	r.users = append(r.users, userID)
	return nil
}

type fixture struct {
	h        *Handler
	profiles *profiles.MemoryRepo
	resumes  *resumes.MemoryRepo
	tracker  *status.Tracker
	events   *recordingPublisher
	resumer  *recordingResumer
	now      time.Time
}

func newFixture(t *testing.T, clearOnFailure bool) *fixture {
	t.Helper()
	f := &fixture{
		profiles: profiles.NewMemoryRepo(),
		resumes:  resumes.NewMemoryRepo(),
		tracker:  status.NewTracker(status.NewMemoryStore(status.DefaultTTL)),
		events:   &recordingPublisher{},
		resumer:  &recordingResumer{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.h = NewHandler(Deps{
		Profiles:       f.profiles,
		Resumes:        f.resumes,
		Status:         f.tracker,
		Deferred:       f.resumer,
		Events:         f.events,
		ClearOnFailure: clearOnFailure,
		Now:            func() time.Time { return f.now },
	})
	return f
}

func success() *bool {
	v := true
	return &v
}

func TestParseResumeCallbackStoresMergedProfile(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.tracker.StartParsing(ctx, "u1"))

	err := f.h.Handle(ctx, Payload{
		Type:      TypeParseResume,
		Success:   success(),
		UserID:    "u1",
		RequestID: "req-1",
		Content:   []byte(`"` + "```json\\n{\\\"basics\\\":{\\\"name\\\":\\\"Ada\\\"}}\\n```" + `"`),
	})
	require.NoError(t, err)

	p, err := f.profiles.GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Data.Name())
	for _, section := range schema.Sections {
		assert.Contains(t, p.Data, section)
	}
	assert.Equal(t, f.now, p.DataUpdatedAt)
	assert.False(t, f.tracker.IsParsingActive(ctx, "u1"))

	require.Len(t, f.events.events, 1)
	assert.Equal(t, events.OutcomeCompleted, f.events.events[0].Outcome)
	assert.Equal(t, "req-1", f.events.events[0].RequestID)
	assert.Equal(t, "u1", f.events.events[0].SubjectID)
}

func TestKnowledgeBaseCallbackResumesDeferred(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.profiles.UpsertData(ctx, "u1", schema.Merge(map[string]any{"basics": map[string]any{"name": "Ada"}}), f.now.Add(-time.Hour)))
	require.NoError(t, f.tracker.StartKnowledgeBaseGeneration(ctx, "u1"))

	err := f.h.Handle(ctx, Payload{
		Type:    TypeGenerateKnowledgeBase,
		Success: success(),
		UserID:  "u1",
		Content: []byte(`{"summary":"mathematician"}`),
	})
	require.NoError(t, err)

	p, err := f.profiles.GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "mathematician", p.KnowledgeBase["summary"])
	require.NotNil(t, p.KnowledgeBaseUpdatedAt)
	assert.Equal(t, f.now, *p.KnowledgeBaseUpdatedAt)
	assert.Equal(t, f.now.Add(-time.Hour), p.DataUpdatedAt)
	assert.False(t, p.KnowledgeBaseStale())
	assert.False(t, f.tracker.IsKnowledgeBaseGenerationActive(ctx, "u1"))
	assert.Equal(t, []string{"u1"}, f.resumer.users)
}

func TestKnowledgeBaseCallbackWithoutProfileIsTerminal(t *testing.T) {
	f := newFixture(t, false)
	err := f.h.Handle(context.Background(), Payload{
		Type:    TypeGenerateKnowledgeBase,
		Success: success(),
		UserID:  "ghost",
		Content: []byte(`{"summary":"x"}`),
	})
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Empty(t, f.resumer.users)
}

func TestGenerateResumeCallback(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.resumes.Create(ctx, resumes.Resume{ID: "r1", UserID: "u1"}))
	require.NoError(t, f.tracker.StartGeneration(ctx, "r1"))

	p := Payload{Type: TypeGenerateResume, Success: success(), ResumeID: "r1", UserID: "u1", Content: []byte(`"# Ada Lovelace"`)}
	require.NoError(t, f.h.Handle(ctx, p))

	res, err := f.resumes.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "# Ada Lovelace", res.Content)
	assert.False(t, f.tracker.IsGenerationActive(ctx, "r1"))
	assert.Equal(t, "r1", f.events.events[0].SubjectID)

	// replaying the same callback is harmless
	require.NoError(t, f.h.Handle(ctx, p))
	res, err = f.resumes.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "# Ada Lovelace", res.Content)
}

func TestGenerateResumeCallbackMissingResume(t *testing.T) {
	f := newFixture(t, false)
	err := f.h.Handle(context.Background(), Payload{Type: TypeGenerateResume, Success: success(), ResumeID: "nope", Content: []byte(`"x"`)})
	require.ErrorIs(t, err, resumes.ErrNotFound)
	assert.True(t, IsTerminal(err))
	assert.Empty(t, f.events.events)
}

func TestCallbackMissingFields(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	err := f.h.Handle(ctx, Payload{Success: success()})
	assert.ErrorIs(t, err, ErrMissingField)

	err = f.h.Handle(ctx, Payload{Type: TypeParseResume, Success: success(), Content: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrMissingField)

	err = f.h.Handle(ctx, Payload{Type: TypeGenerateResume, Success: success(), ResumeID: "r1"})
	assert.ErrorIs(t, err, ErrMissingField)

	err = f.h.Handle(ctx, Payload{Type: "summarize", Success: success()})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestFailedCallbackLeavesStatusByDefault(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.tracker.StartParsing(ctx, "u1"))

	err := f.h.Handle(ctx, Payload{Type: TypeParseResume, UserID: "u1", Error: []byte(`"engine timeout"`)})
	require.NoError(t, err)
	assert.True(t, f.tracker.IsParsingActive(ctx, "u1"))

	_, err = f.profiles.GetByUser(ctx, "u1")
	assert.ErrorIs(t, err, profiles.ErrNotFound)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, events.OutcomeFailed, f.events.events[0].Outcome)
	assert.Equal(t, "engine timeout", f.events.events[0].Error)
}

func TestFailedCallbackClearsStatusWhenConfigured(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.tracker.StartGeneration(ctx, "r1"))

	success := false
	require.NoError(t, f.h.Handle(ctx, Payload{Type: TypeGenerateResume, Success: &success, ResumeID: "r1"}))
	assert.False(t, f.tracker.IsGenerationActive(ctx, "r1"))
}

func TestRegisterCustomType(t *testing.T) {
	f := newFixture(t, false)
	called := false
	f.h.Register("summarize", func(ctx context.Context, p Payload) error {
		called = true
		return nil
	})
	require.NoError(t, f.h.Handle(context.Background(), Payload{Type: "summarize", Success: success()}))
	assert.True(t, called)

	boom := errors.New("database down")
	f.h.Register("summarize", func(ctx context.Context, p Payload) error { return boom })
	err := f.h.Handle(context.Background(), Payload{Type: "summarize", Success: success()})
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsTerminal(err))
}

type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

func TestStalledEventPublisherDoesNotHoldCallback(t *testing.T) {
	ctx := context.Background()
	tracker := status.NewTracker(status.NewMemoryStore(status.DefaultTTL))
	require.NoError(t, tracker.StartParsing(ctx, "u1"))
	h := NewHandler(Deps{
		Profiles:       profiles.NewMemoryRepo(),
		Resumes:        resumes.NewMemoryRepo(),
		Status:         tracker,
		Events:         stalledPublisher{},
		ClearOnFailure: true,
		PublishTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	require.NoError(t, h.Handle(ctx, Payload{Type: TypeParseResume, UserID: "u1", Error: []byte(`"engine timeout"`)}))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, tracker.IsParsingActive(ctx, "u1"))
}
