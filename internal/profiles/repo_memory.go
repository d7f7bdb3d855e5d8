package profiles

import (
	"context"
	"sync"
	"time"

	"github.com/RohitLad/resume-markup/resume/schema"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Profile // userId -> profile
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Profile)}
}

// GetByUser returns the profile for a user.
func (r *MemoryRepo) GetByUser(ctx context.Context, userID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// UpsertData creates or updates the profile data.
func (r *MemoryRepo) UpsertData(ctx context.Context, userID string, data schema.Document, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[userID]
	if !ok {
		p = Profile{UserID: userID, CreatedAt: at}
	}
	p.Data = data
	p.DataUpdatedAt = at
	r.data[userID] = p
	return nil
}

// SaveKnowledgeBase stores the knowledge base for an existing profile.
func (r *MemoryRepo) SaveKnowledgeBase(ctx context.Context, userID string, kb map[string]any, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[userID]
	if !ok {
		return ErrNotFound
	}
	stamp := at
	p.KnowledgeBase = kb
	p.KnowledgeBaseUpdatedAt = &stamp
	r.data[userID] = p
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
