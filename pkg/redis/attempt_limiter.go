package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// AttemptLimiter counts failures per subject (usually a client IP) inside a
// fixed window. Once max failures are recorded the subject is banned until
// the window expires.
type AttemptLimiter struct {
	client goredis.Cmdable
	prefix string
	max    int64
	window time.Duration
}

func NewAttemptLimiter(client goredis.Cmdable, prefix string, maxFailures int64, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, prefix: prefix, max: maxFailures, window: window}
}

func (l *AttemptLimiter) key(subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.prefix, subject)
}

// Blocked reports whether subject has exhausted its failures and for how long.
func (l *AttemptLimiter) Blocked(ctx context.Context, subject string) (bool, time.Duration, error) {
	n, err := l.client.Get(ctx, l.key(subject)).Int64()
	if err != nil {
		if IsNil(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	if n < l.max {
		return false, 0, nil
	}
	ttl, err := l.client.TTL(ctx, l.key(subject)).Result()
	if err != nil {
		return true, l.window, nil
	}
	return true, ttl, nil
}

// RecordFailure increments the counter and returns the new count.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, subject string) (int64, error) {
	key := l.key(subject)
	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reset clears the counter after a success.
func (l *AttemptLimiter) Reset(ctx context.Context, subject string) error {
	return l.client.Del(ctx, l.key(subject)).Err()
}
