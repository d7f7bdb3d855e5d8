package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis using native key expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisClient builds and pings a Redis client.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStore constructs a RedisStore. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// Start sets the key with the TTL, overwriting any previous value.
func (s *RedisStore) Start(ctx context.Context, kind Kind, subjectID string) error {
	key, err := Key(kind, subjectID)
	if err != nil {
		return err
	}
	value := s.now().UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// IsActive reports whether the key exists.
func (s *RedisStore) IsActive(ctx context.Context, kind Kind, subjectID string) (bool, error) {
	key, err := Key(kind, subjectID)
	if err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Finish deletes the key.
func (s *RedisStore) Finish(ctx context.Context, kind Kind, subjectID string) error {
	key, err := Key(kind, subjectID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// StartedAt reads the stored start time.
func (s *RedisStore) StartedAt(ctx context.Context, kind Kind, subjectID string) (time.Time, bool, error) {
	key, err := Key(kind, subjectID)
	if err != nil {
		return time.Time{}, false, err
	}
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	started, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// Present but unreadable still counts as active.
		return time.Time{}, true, nil
	}
	return started, true, nil
}

var _ Store = (*RedisStore)(nil)
