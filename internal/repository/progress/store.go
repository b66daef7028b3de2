// Package progress keeps short-TTL per-stream progress state so clients
// behind SSE-buffering proxies can poll the steps taken so far. Writes are
// best-effort: callers log and continue on failure.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/asksite/internal/db"
)

const (
	// TTL bounds how long a stream's progress survives after its last update.
	TTL = 300 * time.Second

	// maxSteps bounds the step list; older steps fall off the front.
	maxSteps = 30
)

// streamIDRe constrains client-supplied stream identifiers.
var streamIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,96}$`)

// State is the polled progress record for one stream.
type State struct {
	Steps     []string `json:"steps"`
	Done      bool     `json:"done"`
	Error     string   `json:"error,omitempty"`
	UpdatedAt int64    `json:"updated_at"`
}

// store is the consumer interface for progress operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Store implements the progress state repository.
type Store struct {
	store     store
	keyPrefix string
	now       func() time.Time
}

// New creates a progress store under the given key prefix.
func New(s store, keyPrefix string) *Store {
	return &Store{
		store:     s,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// ValidID reports whether a client-supplied stream id is acceptable.
func ValidID(id string) bool {
	return streamIDRe.MatchString(id)
}

func (s *Store) key(id string) string {
	return s.keyPrefix + "chat:progress:" + id
}

// Begin resets the state for a fresh stream.
func (s *Store) Begin(ctx context.Context, id string) error {
	if !ValidID(id) {
		return fmt.Errorf("progress begin: invalid stream id")
	}
	return s.write(ctx, id, State{
		Steps:     []string{},
		UpdatedAt: s.now().Unix(),
	})
}

// AddStep appends a human-readable step. Adjacent duplicates collapse, and
// only the last maxSteps entries are kept.
func (s *Store) AddStep(ctx context.Context, id, step string) error {
	if !ValidID(id) || step == "" {
		return nil
	}

	state, err := s.Get(ctx, id)
	if err != nil {
		state = State{}
	}

	if n := len(state.Steps); n > 0 && state.Steps[n-1] == step {
		return nil
	}

	state.Steps = append(state.Steps, step)
	if len(state.Steps) > maxSteps {
		state.Steps = state.Steps[len(state.Steps)-maxSteps:]
	}
	state.UpdatedAt = s.now().Unix()

	return s.write(ctx, id, state)
}

// MarkDone finalizes the state, optionally recording an error message.
func (s *Store) MarkDone(ctx context.Context, id, errMsg string) error {
	if !ValidID(id) {
		return nil
	}

	state, err := s.Get(ctx, id)
	if err != nil {
		state = State{}
	}
	state.Done = true
	if errMsg != "" {
		state.Error = errMsg
	}
	state.UpdatedAt = s.now().Unix()

	return s.write(ctx, id, state)
}

// Get loads the current state. A missing stream yields an empty state.
func (s *Store) Get(ctx context.Context, id string) (State, error) {
	if !ValidID(id) {
		return State{}, fmt.Errorf("progress get: invalid stream id")
	}

	data, err := s.store.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return State{Steps: []string{}}, nil
		}
		return State{}, fmt.Errorf("progress GET %s: %w", id, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("progress decode %s: %w", id, err)
	}
	if state.Steps == nil {
		state.Steps = []string{}
	}
	return state, nil
}

func (s *Store) write(ctx context.Context, id string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("progress encode: %w", err)
	}
	if err := s.store.SetWithTTL(ctx, s.key(id), data, TTL); err != nil {
		return fmt.Errorf("progress SET %s: %w", id, err)
	}
	return nil
}
