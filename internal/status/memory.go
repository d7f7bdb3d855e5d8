package status

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in a process-local map. Expired entries are
// hidden on read and removed by Run.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore constructs a MemoryStore. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock overrides the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Start records now as the start time for the key, replacing any previous entry.
func (s *MemoryStore) Start(ctx context.Context, kind Kind, subjectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := Key(kind, subjectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = s.now()
	s.mu.Unlock()
	return nil
}

// IsActive reports whether an unexpired entry exists.
func (s *MemoryStore) IsActive(ctx context.Context, kind Kind, subjectID string) (bool, error) {
	_, ok, err := s.StartedAt(ctx, kind, subjectID)
	return ok, err
}

// Finish removes the entry. Missing keys are ignored.
func (s *MemoryStore) Finish(ctx context.Context, kind Kind, subjectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := Key(kind, subjectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// StartedAt returns the start time of an unexpired entry.
func (s *MemoryStore) StartedAt(ctx context.Context, kind Kind, subjectID string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	key, err := Key(kind, subjectID)
	if err != nil {
		return time.Time{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	started, ok := s.entries[key]
	if !ok {
		return time.Time{}, false, nil
	}
	if s.expired(started) {
		delete(s.entries, key)
		return time.Time{}, false, nil
	}
	return started, true, nil
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, started := range s.entries {
		if s.expired(started) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run sweeps expired entries every interval until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *MemoryStore) expired(started time.Time) bool {
	return !s.now().Before(started.Add(s.ttl))
}

var _ Store = (*MemoryStore)(nil)
