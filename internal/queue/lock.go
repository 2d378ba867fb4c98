package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock guards a submission against being graded twice concurrently. It is a
// best-effort redis SET NX lease; the TTL bounds how long a crashed worker can
// hold a submission hostage.
type Lock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLock constructs the grading lock helper.
func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Lock{client: client, ttl: ttl}
}

func (l *Lock) key(submissionID uint) string {
	return fmt.Sprintf("grading:lock:%d", submissionID)
}

// Acquire returns true when the caller now holds the lock for the submission.
func (l *Lock) Acquire(ctx context.Context, submissionID uint) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(submissionID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire grading lock: %w", err)
	}

	return ok, nil
}

// Release drops the lock. Safe to call when the lock already expired.
func (l *Lock) Release(ctx context.Context, submissionID uint) {
	l.client.Del(ctx, l.key(submissionID))
}
