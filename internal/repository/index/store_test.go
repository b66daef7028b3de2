package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/asksite/internal/db"
	"github.com/kailas-cloud/asksite/internal/domain"
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

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New(newFakeKV(), "test:")
	ctx := context.Background()

	want := domain.IndexSnapshot{
		Version: 1,
		BuiltAt: 1750000000,
		Documents: []domain.Document{
			{URL: "https://example.com/a/", Title: "A", Text: "body", SourceType: "page", ModifiedTS: 1749990000},
		},
	}
	if err := s.Set(ctx, want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Version != want.Version || got.BuiltAt != want.BuiltAt || len(got.Documents) != 1 {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Documents[0].URL != want.Documents[0].URL {
		t.Errorf("document = %+v", got.Documents[0])
	}
}

func TestDeleteDropsSnapshot(t *testing.T) {
	s := New(newFakeKV(), "test:")
	ctx := context.Background()

	if err := s.Set(ctx, domain.IndexSnapshot{Version: 1, BuiltAt: 1}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := s.Get(ctx)
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Get() after delete = %v, want ErrKeyNotFound", err)
	}
}
