package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/store"
)

func buildIndex(t *testing.T, key Key, fetcher *fakeFetcher) func() (*Index, error) {
	t.Helper()
	return func() (*Index, error) {
		st, err := store.NewMemoryStore(64, "")
		if err != nil {
			return nil, err
		}
		return New(key, fetcher, embedding.NewHashEmbedder(64), st)
	}
}

func TestRegistry_GetOrCreateReuses(t *testing.T) {
	r := NewRegistry()
	key := Key{Fetcher: "sql:db|candidates|country", Store: "memory", Embedder: "hash:64"}

	builds := 0
	build := func() (*Index, error) {
		builds++
		return buildIndex(t, key, &fakeFetcher{})()
	}

	first, err := r.GetOrCreate(key, build)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.GetOrCreate(key, build)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("identical configuration must reuse one instance")
	}
	if builds != 1 {
		t.Errorf("build called %d times", builds)
	}
}

func TestRegistry_DistinctKeysDistinctIndexes(t *testing.T) {
	r := NewRegistry()
	a, _ := r.GetOrCreate(Key{Fetcher: "a"}, buildIndex(t, Key{Fetcher: "a"}, &fakeFetcher{}))
	b, _ := r.GetOrCreate(Key{Fetcher: "b"}, buildIndex(t, Key{Fetcher: "b"}, &fakeFetcher{}))
	if a == b {
		t.Error("different configurations must get different instances")
	}
	if len(r.Indexes()) != 2 {
		t.Errorf("got %d indexes", len(r.Indexes()))
	}
}

func TestRegistry_BuildErrorNotRegistered(t *testing.T) {
	r := NewRegistry()
	key := Key{Fetcher: "broken"}
	buildErr := errors.New("bad config")
	if _, err := r.GetOrCreate(key, func() (*Index, error) { return nil, buildErr }); !errors.Is(err, buildErr) {
		t.Fatalf("got %v", err)
	}
	if len(r.Indexes()) != 0 {
		t.Error("failed build must not register")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	key := Key{Fetcher: "a"}
	_, _ = r.GetOrCreate(key, buildIndex(t, key, &fakeFetcher{}))
	r.Unregister(key)
	if len(r.Indexes()) != 0 {
		t.Error("index still registered")
	}
}

func TestRegistry_UpdateAllIsolatesFailures(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	good1 := &fakeFetcher{values: []string{"beagle"}}
	bad := &fakeFetcher{err: errors.New("source down")}
	good2 := &fakeFetcher{values: []string{"poodle"}}

	k1 := Key{Fetcher: "a"}
	k2 := Key{Fetcher: "b"}
	k3 := Key{Fetcher: "c"}
	_, _ = r.GetOrCreate(k1, buildIndex(t, k1, good1))
	_, _ = r.GetOrCreate(k2, buildIndex(t, k2, bad))
	_, _ = r.GetOrCreate(k3, buildIndex(t, k3, good2))

	results := r.UpdateAll(ctx)
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	failures := 0
	for _, res := range results {
		if res.Err != nil {
			failures++
			if res.Key != k2 {
				t.Errorf("unexpected failure for %s: %v", res.Key, res.Err)
			}
		} else if res.Delta.Added != 1 {
			t.Errorf("index %s delta=%+v", res.Key, res.Delta)
		}
	}
	if failures != 1 {
		t.Errorf("got %d failures, want 1", failures)
	}
}
