// Package index persists the single cached content-index snapshot as a
// JSON blob in one cache slot. Rebuilds are single-writer overwrites;
// racing writers are harmless since either fresh snapshot is valid.
package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/asksite/internal/domain"
)

// store is the consumer interface for snapshot operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Store implements rag.SnapshotStore on one key-value slot.
type Store struct {
	store store
	key   string
}

// New creates a snapshot store under the given key prefix.
func New(s store, keyPrefix string) *Store {
	return &Store{
		store: s,
		key:   keyPrefix + "rag:index:v1",
	}
}

// Get loads the cached snapshot.
func (s *Store) Get(ctx context.Context) (domain.IndexSnapshot, error) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		return domain.IndexSnapshot{}, fmt.Errorf("index GET %s: %w", s.key, err)
	}

	var snapshot domain.IndexSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.IndexSnapshot{}, fmt.Errorf("index decode %s: %w", s.key, err)
	}
	return snapshot, nil
}

// Set overwrites the cached snapshot.
func (s *Store) Set(ctx context.Context, snapshot domain.IndexSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("index encode: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("index SET %s: %w", s.key, err)
	}
	return nil
}

// Delete drops the cached snapshot; the next read triggers a rebuild.
func (s *Store) Delete(ctx context.Context) error {
	if err := s.store.Del(ctx, s.key); err != nil {
		return fmt.Errorf("index DEL %s: %w", s.key, err)
	}
	return nil
}
