// Package usagelog keeps a bounded rolling log of per-turn token usage for
// cost dashboards. Entries are append-only; trimming from the front is
// idempotent, so no locking is needed.
package usagelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/asksite/internal/domain"
)

// maxEntries bounds the rolling log.
const maxEntries = 500

// Entry is one logged chat turn.
type Entry struct {
	Timestamp    int64  `json:"ts"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}

// store is the consumer interface for usage log operations (ISP).
type store interface {
	ListPush(ctx context.Context, key string, value []byte) error
	ListTrimToLast(ctx context.Context, key string, n int64) error
	ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}

// Store implements the rolling usage log.
type Store struct {
	store store
	key   string
}

// New creates a usage log under the given key prefix.
func New(s store, keyPrefix string) *Store {
	return &Store{
		store: s,
		key:   keyPrefix + "chat:usage",
	}
}

// Append records one turn's usage and trims the log to the last maxEntries.
func (s *Store) Append(ctx context.Context, ts int64, provider, model string, usage domain.Usage) error {
	data, err := json.Marshal(Entry{
		Timestamp:    ts,
		Provider:     provider,
		Model:        model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
	})
	if err != nil {
		return fmt.Errorf("usage encode: %w", err)
	}

	if err := s.store.ListPush(ctx, s.key, data); err != nil {
		return fmt.Errorf("usage RPUSH: %w", err)
	}
	if err := s.store.ListTrimToLast(ctx, s.key, maxEntries); err != nil {
		return fmt.Errorf("usage LTRIM: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first. Undecodable entries are
// skipped.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 || n > maxEntries {
		n = maxEntries
	}

	rows, err := s.store.ListRange(ctx, s.key, int64(-n), -1)
	if err != nil {
		return nil, fmt.Errorf("usage LRANGE: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var e Entry
		if err := json.Unmarshal(rows[i], &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
