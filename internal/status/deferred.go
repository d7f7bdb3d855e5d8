package status

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DeferredStore remembers resumes waiting on a knowledge base refresh, per user.
// Entries older than the TTL are ignored and eventually dropped.
type DeferredStore interface {
	Add(ctx context.Context, userID, resumeID string) error
	Remove(ctx context.Context, userID, resumeID string) error
	// Take removes and returns the unexpired resume ids for a user, oldest first.
	Take(ctx context.Context, userID string) ([]string, error)
	Has(ctx context.Context, userID, resumeID string) (bool, error)
}

// MemoryDeferred keeps deferrals in a process-local map. It only suits a
// single process that both accepts requests and applies callbacks.
type MemoryDeferred struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]map[string]time.Time // userId -> resumeId -> deferred at
}

// NewMemoryDeferred constructs a MemoryDeferred. A non-positive ttl uses DefaultTTL.
func NewMemoryDeferred(ttl time.Duration) *MemoryDeferred {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryDeferred{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]map[string]time.Time),
	}
}

// WithClock overrides the time source.
func (d *MemoryDeferred) WithClock(now func() time.Time) *MemoryDeferred {
	d.now = now
	return d
}

// Add records resumeID as waiting, refreshing its deferral time.
func (d *MemoryDeferred) Add(ctx context.Context, userID, resumeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" || resumeID == "" {
		return ErrEmptySubject
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	byUser, ok := d.pending[userID]
	if !ok {
		byUser = make(map[string]time.Time)
		d.pending[userID] = byUser
	}
	byUser[resumeID] = d.now()
	return nil
}

// Remove forgets one deferral. Missing entries are ignored.
func (d *MemoryDeferred) Remove(ctx context.Context, userID, resumeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if byUser, ok := d.pending[userID]; ok {
		delete(byUser, resumeID)
		if len(byUser) == 0 {
			delete(d.pending, userID)
		}
	}
	return nil
}

// Take removes and returns the unexpired resume ids for a user, oldest first.
func (d *MemoryDeferred) Take(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	byUser := d.pending[userID]
	delete(d.pending, userID)
	d.mu.Unlock()

	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0, len(byUser))
	for id, at := range byUser {
		if d.expired(at) {
			continue
		}
		entries = append(entries, entry{id: id, at: at})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at.Equal(entries[j].at) {
			return entries[i].id < entries[j].id
		}
		return entries[i].at.Before(entries[j].at)
	})
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.id)
	}
	return out, nil
}

// Has reports whether an unexpired deferral exists.
func (d *MemoryDeferred) Has(ctx context.Context, userID, resumeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.pending[userID][resumeID]
	return ok && !d.expired(at), nil
}

func (d *MemoryDeferred) expired(at time.Time) bool {
	return !d.now().Before(at.Add(d.ttl))
}

var _ DeferredStore = (*MemoryDeferred)(nil)
