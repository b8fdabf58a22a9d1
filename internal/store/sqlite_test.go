package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T, dimensions int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"), dimensions)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_UpsertNearest(t *testing.T) {
	s := newTestSQLiteStore(t, 3)
	ctx := context.Background()

	err := s.Upsert(ctx, []Entry{
		{Value: "beagle", Vector: []float32{1, 0, 0}},
		{Value: "poodle", Vector: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	m, err := s.Nearest(ctx, []float32{0.9, 0.1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if m.Value != "beagle" {
		t.Errorf("got %s", m.Value)
	}
}

func TestSQLiteStore_ApplyTransactional(t *testing.T) {
	s := newTestSQLiteStore(t, 2)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Entry{
		{Value: "old", Vector: []float32{1, 0}},
		{Value: "both", Vector: []float32{0, 1}},
	})

	err := s.Apply(ctx,
		[]Entry{{Value: "new", Vector: []float32{1, 1}}, {Value: "both", Vector: []float32{1, 0}}},
		[]string{"old"},
	)
	if err != nil {
		t.Fatal(err)
	}
	values, err := s.Values(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 || values[0] != "both" || values[1] != "new" {
		t.Errorf("got %v", values)
	}
}

func TestSQLiteStore_ApplyRejectsBadDimensionWithoutWriting(t *testing.T) {
	s := newTestSQLiteStore(t, 2)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Entry{{Value: "keep", Vector: []float32{1, 0}}})

	err := s.Apply(ctx, []Entry{{Value: "bad", Vector: []float32{1, 0, 0}}}, []string{"keep"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	values, _ := s.Values(ctx)
	if len(values) != 1 || values[0] != "keep" {
		t.Errorf("failed apply must leave store untouched, got %v", values)
	}
}

func TestSQLiteStore_NearestEmpty(t *testing.T) {
	s := newTestSQLiteStore(t, 2)
	if _, err := s.Nearest(context.Background(), []float32{1, 0}); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestSQLiteStore_TieBreakLexicographic(t *testing.T) {
	s := newTestSQLiteStore(t, 2)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Entry{
		{Value: "zebra", Vector: []float32{0, 1}},
		{Value: "aardvark", Vector: []float32{0, 1}},
	})
	for i := 0; i < 10; i++ {
		m, err := s.Nearest(ctx, []float32{0, 1})
		if err != nil {
			t.Fatal(err)
		}
		if m.Value != "aardvark" {
			t.Fatalf("tie-break not deterministic, got %s", m.Value)
		}
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Upsert(ctx, []Entry{{Value: "beagle", Vector: []float32{0.6, 0.8}}})
	_ = s.Close()

	reopened, err := NewSQLiteStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if n, _ := reopened.Len(ctx); n != 1 {
		t.Errorf("Len=%d", n)
	}

	// Reopening with a different dimension must be rejected.
	if _, err := NewSQLiteStore(path, 7); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
