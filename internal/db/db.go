// Package db defines the storage facade backing the index cache, progress
// state, rate-limit counters, and the rolling usage log.
package db

import (
	"context"
	"time"
)

// Store is the database facade. Consumers depend on the narrow
// sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	KVStore
	ListStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// ListStore provides bounded append-only list operations for the usage log.
type ListStore interface {
	ListPush(ctx context.Context, key string, value []byte) error
	ListTrimToLast(ctx context.Context, key string, n int64) error
	ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}
