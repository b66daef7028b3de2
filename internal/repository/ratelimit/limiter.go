// Package ratelimit implements a fixed-window hourly request counter per
// client IP. IPs are hashed before use as keys.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// windowTTL keeps a counter alive past its hour so late requests in the
// same window still see it.
const windowTTL = 2 * time.Hour

// store is the consumer interface for rate-limit operations (ISP).
type store interface {
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Limiter counts chat requests per IP per hour.
type Limiter struct {
	store     store
	keyPrefix string
	limit     int64
	now       func() time.Time
}

// New creates a limiter allowing limit requests per IP per hour.
func New(s store, keyPrefix string, limit int) *Limiter {
	return &Limiter{
		store:     s,
		keyPrefix: keyPrefix,
		limit:     int64(limit),
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}

func (l *Limiter) key(ip string) string {
	bucket := l.now().UTC().Format("2006010215")
	return l.keyPrefix + "chat:rl:" + hashIP(ip) + ":" + bucket
}

// Allow counts one request for ip and reports whether it is within the
// hourly limit. The TTL is set only when the key is fresh (NX).
func (l *Limiter) Allow(ctx context.Context, ip string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	key := l.key(ip)
	count, err := l.store.IncrBy(ctx, key, 1)
	if err != nil {
		return false, fmt.Errorf("rate limit INCRBY: %w", err)
	}
	if err := l.store.Expire(ctx, key, windowTTL, true); err != nil {
		return false, fmt.Errorf("rate limit EXPIRE: %w", err)
	}

	return count <= l.limit, nil
}
