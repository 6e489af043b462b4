// Package rediscache holds rigcheck's Redis-backed coordination
// primitives: the per-apparatus submission lock and a fixed-window rate
// limiter for tracker queries. Nothing here caches defect state — the
// tracker stays the only source of truth.
package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Locker serializes inspection submissions per apparatus. Two inspectors
// submitting the same never-seen defect concurrently would each miss it in
// their own index snapshot and both create an issue; holding this lock for
// the duration of one submission closes that window on a single tracker.
type Locker struct {
	c *redis.Client
}

func NewLocker(addr string) *Locker {
	return &Locker{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Acquire takes the submission lock for an apparatus. Returns false when
// another submission currently holds it. The TTL guards against a crashed
// holder wedging the apparatus forever.
func (l *Locker) Acquire(ctx context.Context, apparatus string, ttl time.Duration) (bool, error) {
	ok, err := l.c.SetNX(ctx, lockKey(apparatus), "1", ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis lock acquire")
	}
	return ok, nil
}

// Release drops the lock. Safe to call on an already-expired lock.
func (l *Locker) Release(ctx context.Context, apparatus string) error {
	if err := l.c.Del(ctx, lockKey(apparatus)).Err(); err != nil {
		return errors.Wrap(err, "redis lock release")
	}
	return nil
}

func lockKey(apparatus string) string {
	return "lock:submit:" + apparatus
}
