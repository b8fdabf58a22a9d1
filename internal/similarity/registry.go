package similarity

import (
	"context"
	"sort"
	"sync"
)

// Registry tracks constructed indexes by configuration identity so that
// repeated construction with an identical configuration reuses one instance,
// and so bulk maintenance can refresh every index. It is populated lazily and
// lives for the process lifetime; pass it explicitly to the code paths that
// need it.
type Registry struct {
	mu      sync.Mutex
	indexes map[Key]*Index
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[Key]*Index)}
}

// GetOrCreate returns the registered index for key, or builds, registers, and
// returns a new one. The build function is only called when no index with
// this key exists.
func (r *Registry) GetOrCreate(key Key, build func() (*Index, error)) (*Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.indexes[key]; ok {
		return idx, nil
	}
	idx, err := build()
	if err != nil {
		return nil, err
	}
	r.indexes[key] = idx
	return idx, nil
}

// Unregister removes the index for key, if registered. Intended for tests;
// it does not close the index.
func (r *Registry) Unregister(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, key)
}

// Indexes returns the registered indexes, ordered by key for stable output.
func (r *Registry) Indexes() []*Index {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Index, 0, len(r.indexes))
	for _, idx := range r.indexes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key.String() < out[j].key.String()
	})
	return out
}

// UpdateResult is one index's outcome from UpdateAll.
type UpdateResult struct {
	Key   Key
	Delta Delta
	Err   error
}

// UpdateAll updates every registered index concurrently. One index's failure
// does not abort the others; each result carries its own error. Results are
// ordered by key.
func (r *Registry) UpdateAll(ctx context.Context) []UpdateResult {
	indexes := r.Indexes()
	results := make([]UpdateResult, len(indexes))

	var wg sync.WaitGroup
	for i, idx := range indexes {
		wg.Add(1)
		go func(i int, idx *Index) {
			defer wg.Done()
			delta, err := idx.Update(ctx)
			results[i] = UpdateResult{Key: idx.Key(), Delta: delta, Err: err}
		}(i, idx)
	}
	wg.Wait()
	return results
}
