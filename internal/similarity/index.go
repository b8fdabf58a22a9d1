// Package similarity orchestrates vocabulary refresh and nearest-value lookup
// over a fetcher, an embedder, and a vector store.
package similarity

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/fetch"
	"github.com/hyperjump/ruiji/internal/store"
)

// State describes an index's lifecycle position.
type State int

const (
	// StateUninitialized means no successful update has happened and the
	// store held nothing at construction.
	StateUninitialized State = iota
	// StateReady means the store holds a committed vocabulary, either from an
	// update in this process or loaded from durable storage.
	StateReady
	// StateUpdating means an update is in progress.
	StateUpdating
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateUpdating:
		return "updating"
	default:
		return "uninitialized"
	}
}

// Key is the configuration identity of an index: two indexes with the same
// key are the same logical index and share one instance via the registry.
type Key struct {
	Fetcher  string
	Store    string
	Embedder string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Fetcher, k.Store, k.Embedder)
}

// Delta reports what an update changed.
type Delta struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Index binds one fetcher, one embedder, and one store. Update reconciles the
// store with the source; Similar maps a free-text query to the closest stored
// value.
//
// Concurrency: updates on one index are serialized (a second concurrent
// Update waits), and Similar blocks while an update is committing, so queries
// always observe a fully-committed vocabulary. Indexes never refresh
// implicitly; staleness is the caller's responsibility.
type Index struct {
	key      Key
	fetcher  fetch.Fetcher
	embedder embedding.Embedder
	store    store.Store
	logger   *zap.Logger // optional; when set, logs update events

	mu sync.RWMutex // held for writing across Update, for reading in Similar

	stateMu sync.RWMutex
	state   State
	lastErr error
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a logger for debug output (deltas, update failures).
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) { idx.logger = l }
}

// New creates an index. If the store already holds entries (durable storage
// from a prior run), the index starts Ready; otherwise Uninitialized.
func New(key Key, fetcher fetch.Fetcher, embedder embedding.Embedder, st store.Store, opts ...Option) (*Index, error) {
	if embedder.Dimensions() != st.Dimensions() {
		return nil, fmt.Errorf("%w: embedder has %d, store has %d",
			store.ErrDimensionMismatch, embedder.Dimensions(), st.Dimensions())
	}
	idx := &Index{
		key:      key,
		fetcher:  fetcher,
		embedder: embedder,
		store:    st,
	}
	for _, opt := range opts {
		opt(idx)
	}
	n, err := st.Len(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to inspect store: %w", err)
	}
	if n > 0 {
		idx.state = StateReady
	}
	return idx, nil
}

// Key returns the index's configuration identity.
func (idx *Index) Key() Key {
	return idx.key
}

// State returns the current lifecycle state.
func (idx *Index) State() State {
	idx.stateMu.RLock()
	defer idx.stateMu.RUnlock()
	return idx.state
}

// LastError returns the error from the most recent failed update, or nil.
// A successful update clears it.
func (idx *Index) LastError() error {
	idx.stateMu.RLock()
	defer idx.stateMu.RUnlock()
	return idx.lastErr
}

// Len returns the number of values currently stored.
func (idx *Index) Len(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.store.Len(ctx)
}

// Update fetches the current vocabulary, computes the delta against the
// store, embeds only the added values, and commits additions and removals
// atomically. After a successful update the store's contents equal exactly
// the fetch result. On any failure the store is left untouched and the index
// returns to its pre-update state.
func (idx *Index) Update(ctx context.Context) (Delta, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev := idx.State()
	idx.setState(StateUpdating)

	delta, err := idx.update(ctx)
	if err != nil {
		idx.setStateErr(prev, err)
		if idx.logger != nil {
			idx.logger.Warn("index update failed", zap.String("index", idx.key.String()), zap.Error(err))
		}
		return Delta{}, err
	}
	idx.setState(StateReady)
	if idx.logger != nil {
		idx.logger.Debug("index updated",
			zap.String("index", idx.key.String()),
			zap.Int("added", delta.Added),
			zap.Int("removed", delta.Removed))
	}
	return delta, nil
}

// update runs the fetch → delta → embed → apply pipeline under idx.mu.
func (idx *Index) update(ctx context.Context) (Delta, error) {
	fetched, err := idx.fetcher.Fetch(ctx)
	if err != nil {
		return Delta{}, fmt.Errorf("fetch: %w", err)
	}
	fetched = fetch.Dedupe(fetched)

	stored, err := idx.store.Values(ctx)
	if err != nil {
		return Delta{}, fmt.Errorf("read store contents: %w", err)
	}

	added, removed := diff(fetched, stored)

	var upserts []store.Entry
	if len(added) > 0 {
		vectors, err := idx.embedder.EmbedBatch(ctx, added)
		if err != nil {
			return Delta{}, fmt.Errorf("embed: %w", err)
		}
		if len(vectors) != len(added) {
			return Delta{}, fmt.Errorf("embed: got %d vectors for %d values", len(vectors), len(added))
		}
		upserts = make([]store.Entry, len(added))
		for i, v := range added {
			upserts[i] = store.Entry{Value: v, Vector: vectors[i]}
		}
	}
	if len(upserts) == 0 && len(removed) == 0 {
		return Delta{}, nil
	}

	// The store write happens only after fetch and embed both succeeded, and
	// only if the caller has not cancelled.
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}
	if err := idx.store.Apply(ctx, upserts, removed); err != nil {
		return Delta{}, fmt.Errorf("apply delta: %w", err)
	}
	return Delta{Added: len(upserts), Removed: len(removed)}, nil
}

// Similar embeds query and returns the closest stored value. Returns
// store.ErrNoMatch when the index has never been populated.
func (idx *Index) Similar(ctx context.Context, query string) (*store.Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	vector, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.store.Nearest(ctx, vector)
}

// Close closes the underlying store.
func (idx *Index) Close() error {
	return idx.store.Close()
}

func (idx *Index) setState(s State) {
	idx.stateMu.Lock()
	idx.state = s
	if s == StateReady {
		idx.lastErr = nil
	}
	idx.stateMu.Unlock()
}

func (idx *Index) setStateErr(s State, err error) {
	idx.stateMu.Lock()
	idx.state = s
	idx.lastErr = err
	idx.stateMu.Unlock()
}

// diff returns fetched−stored (in fetched order) and stored−fetched.
func diff(fetched, stored []string) (added, removed []string) {
	storedSet := make(map[string]bool, len(stored))
	for _, v := range stored {
		storedSet[v] = true
	}
	fetchedSet := make(map[string]bool, len(fetched))
	for _, v := range fetched {
		fetchedSet[v] = true
		if !storedSet[v] {
			added = append(added, v)
		}
	}
	for _, v := range stored {
		if !fetchedSet[v] {
			removed = append(removed, v)
		}
	}
	return added, removed
}
