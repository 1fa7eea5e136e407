package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is one fixed request budget: at most Max requests per Window for a
// single key. Name doubles as the Redis key segment for the policy.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

// Decision is the outcome of one Allow call. The limiter never blocks; a
// rejected request carries a RetryAfter hint derived from the window TTL.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces per-key request budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "bgr"
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Allow charges one request against the policy budget for key and reports
// whether the request may proceed. Budget exhaustion is a Decision, not an
// error; errors indicate a Redis failure only.
func (l *Limiter) Allow(ctx context.Context, p Policy, key string) (Decision, error) {
	k := l.prefix + ":" + p.Name + ":" + key

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, p.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(p.Max) {
		retry := p.Window
		if ttl, err := l.redis.TTL(ctx, k).Result(); err == nil && ttl > 0 {
			retry = ttl
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	remaining := p.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// Reset clears the counter for key under the policy. Used by tests and by
// admin tooling; request paths never call it.
func (l *Limiter) Reset(ctx context.Context, p Policy, key string) error {
	if err := l.redis.Del(ctx, l.prefix+":"+p.Name+":"+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
