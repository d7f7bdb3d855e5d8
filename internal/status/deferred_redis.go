package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const deferredPrefix = "deferred_generation:"

// RedisDeferred keeps one sorted set per user, scored by deferral time in
// milliseconds. The whole set expires TTL after its latest addition; older
// members are filtered on read.
type RedisDeferred struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisDeferred constructs a RedisDeferred. A non-positive ttl uses DefaultTTL.
func NewRedisDeferred(client *redis.Client, ttl time.Duration) *RedisDeferred {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDeferred{client: client, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (d *RedisDeferred) WithClock(now func() time.Time) *RedisDeferred {
	d.now = now
	return d
}

func deferredKey(userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptySubject
	}
	return deferredPrefix + userID, nil
}

// cutoff is the lowest score that is still unexpired.
func (d *RedisDeferred) cutoff() int64 {
	return d.now().Add(-d.ttl).UnixMilli() + 1
}

// Add records resumeID as waiting and refreshes the set's expiry.
func (d *RedisDeferred) Add(ctx context.Context, userID, resumeID string) error {
	key, err := deferredKey(userID)
	if err != nil {
		return err
	}
	if resumeID == "" {
		return ErrEmptySubject
	}
	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(d.now().UnixMilli()), Member: resumeID})
		pipe.Expire(ctx, key, d.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis zadd %s: %w", key, err)
	}
	return nil
}

// Remove forgets one deferral.
func (d *RedisDeferred) Remove(ctx context.Context, userID, resumeID string) error {
	key, err := deferredKey(userID)
	if err != nil {
		return err
	}
	if err := d.client.ZRem(ctx, key, resumeID).Err(); err != nil {
		return fmt.Errorf("redis zrem %s: %w", key, err)
	}
	return nil
}

// Take atomically reads and deletes the user's set, oldest first.
func (d *RedisDeferred) Take(ctx context.Context, userID string) ([]string, error) {
	key, err := deferredKey(userID)
	if err != nil {
		return nil, err
	}
	var members *redis.StringSliceCmd
	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members = pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: strconv.FormatInt(d.cutoff(), 10),
			Max: "+inf",
		})
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis take %s: %w", key, err)
	}
	return members.Val(), nil
}

// Has reports whether an unexpired deferral exists.
func (d *RedisDeferred) Has(ctx context.Context, userID, resumeID string) (bool, error) {
	key, err := deferredKey(userID)
	if err != nil {
		return false, err
	}
	score, err := d.client.ZScore(ctx, key, resumeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis zscore %s: %w", key, err)
	}
	return int64(score) >= d.cutoff(), nil
}

var _ DeferredStore = (*RedisDeferred)(nil)
