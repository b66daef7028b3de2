package progress

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/asksite/internal/db"
)

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("GET %s: %w", key, db.ErrKeyNotFound)
	}
	return v, nil
}

func (f *fakeKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc-123_XYZ", true},
		{"a", true},
		{strings.Repeat("x", 96), true},
		{strings.Repeat("x", 97), false},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestAddStepDedupesAdjacent(t *testing.T) {
	s := New(newFakeKV(), "test:")
	ctx := context.Background()

	if err := s.Begin(ctx, "stream1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	steps := []string{"Searching", "Searching", "Found 3 pages", "Found 3 pages", "Searching"}
	for _, step := range steps {
		if err := s.AddStep(ctx, "stream1", step); err != nil {
			t.Fatalf("AddStep() error = %v", err)
		}
	}

	state, err := s.Get(ctx, "stream1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := []string{"Searching", "Found 3 pages", "Searching"}
	if len(state.Steps) != len(want) {
		t.Fatalf("steps = %v, want %v", state.Steps, want)
	}
	for i := range want {
		if state.Steps[i] != want[i] {
			t.Errorf("steps[%d] = %q, want %q", i, state.Steps[i], want[i])
		}
	}
}

func TestAddStepCapsAtThirty(t *testing.T) {
	s := New(newFakeKV(), "test:")
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		if err := s.AddStep(ctx, "stream1", fmt.Sprintf("step %d", i)); err != nil {
			t.Fatalf("AddStep() error = %v", err)
		}
	}

	state, err := s.Get(ctx, "stream1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(state.Steps) != 30 {
		t.Fatalf("got %d steps, want 30", len(state.Steps))
	}
	if state.Steps[0] != "step 10" || state.Steps[29] != "step 39" {
		t.Errorf("kept wrong window: first %q last %q", state.Steps[0], state.Steps[29])
	}
}

func TestMarkDone(t *testing.T) {
	s := New(newFakeKV(), "test:")
	ctx := context.Background()

	if err := s.AddStep(ctx, "stream1", "working"); err != nil {
		t.Fatalf("AddStep() error = %v", err)
	}
	if err := s.MarkDone(ctx, "stream1", "provider unavailable"); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}

	state, err := s.Get(ctx, "stream1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !state.Done || state.Error != "provider unavailable" {
		t.Errorf("state = %+v", state)
	}
	if len(state.Steps) != 1 {
		t.Errorf("steps lost on MarkDone: %v", state.Steps)
	}
}

func TestGetUnknownStream(t *testing.T) {
	s := New(newFakeKV(), "test:")

	state, err := s.Get(context.Background(), "nosuch")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if state.Done || len(state.Steps) != 0 {
		t.Errorf("state = %+v, want empty", state)
	}
	if state.Steps == nil {
		t.Error("steps must be non-nil for JSON responses")
	}
}
