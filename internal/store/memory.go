package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/ruiji/pkg/utils"
)

// MemoryStore is an in-memory vector store using brute-force inner product
// search. Suitable for small vocabularies. When created with a non-empty path
// it persists its contents to that file after every committed change, using a
// write-then-rename swap so the file is never left half-written.
//
// Ties in Nearest are broken by insertion order: the earlier-stored entry wins.
type MemoryStore struct {
	dimensions int
	path       string
	values     []string             // insertion order
	vectors    map[string][]float32 // value -> vector
	mu         sync.RWMutex
}

// NewMemoryStore creates an in-memory store with the given vector dimension.
// If path is non-empty and the file exists, prior contents are loaded from it.
func NewMemoryStore(dimensions int, path string) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	s := &MemoryStore{
		dimensions: dimensions,
		path:       path,
		values:     make([]string, 0),
		vectors:    make(map[string][]float32),
	}
	if path != "" {
		if err := s.load(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Upsert inserts entries, replacing vectors of values already present.
func (s *MemoryStore) Upsert(ctx context.Context, entries []Entry) error {
	return s.Apply(ctx, entries, nil)
}

// Remove deletes entries by value. Absent values are ignored.
func (s *MemoryStore) Remove(ctx context.Context, values []string) error {
	return s.Apply(ctx, nil, values)
}

// Apply commits upserts and removals atomically. The in-memory state is only
// swapped in after the persisted snapshot (if any) has been written, so a
// failed write leaves both the file and the visible contents unchanged.
func (s *MemoryStore) Apply(ctx context.Context, upserts []Entry, removals []string) error {
	for _, e := range upserts {
		if len(e.Vector) != s.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(e.Vector), s.dimensions)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removeSet := make(map[string]bool, len(removals))
	for _, v := range removals {
		removeSet[v] = true
	}

	newValues := make([]string, 0, len(s.values)+len(upserts))
	newVectors := make(map[string][]float32, len(s.vectors)+len(upserts))
	for _, v := range s.values {
		if removeSet[v] {
			continue
		}
		newValues = append(newValues, v)
		newVectors[v] = s.vectors[v]
	}
	for _, e := range upserts {
		vec := make([]float32, s.dimensions)
		copy(vec, e.Vector)
		if _, exists := newVectors[e.Value]; !exists {
			newValues = append(newValues, e.Value)
		}
		newVectors[e.Value] = vec
	}

	if s.path != "" {
		if err := save(s.path, s.dimensions, newValues, newVectors); err != nil {
			return err
		}
	}
	s.values = newValues
	s.vectors = newVectors
	return nil
}

// Nearest returns the stored entry with the highest inner product against query.
func (s *MemoryStore) Nearest(ctx context.Context, query []float32) (*Match, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", ErrDimensionMismatch, len(query), s.dimensions)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.values) == 0 {
		return nil, ErrNoMatch
	}
	best := &Match{Score: math.Inf(-1)}
	for _, v := range s.values {
		score := utils.InnerProduct(query, s.vectors[v])
		if score > best.Score {
			best.Value = v
			best.Score = score
		}
	}
	return best, nil
}

// Values returns stored values in insertion order.
func (s *MemoryStore) Values(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values), nil
}

// Dimensions returns the vector dimension.
func (s *MemoryStore) Dimensions() int {
	return s.dimensions
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// save writes a snapshot to path via a temp file and rename. Format:
// dimensions (4), n (4), then per entry: valueLen (4), value bytes,
// vector (dimensions*4 bytes), all little-endian.
func save(path string, dimensions int, values []string, vectors map[string][]float32) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, dimensions, values, vectors); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("swap store file: %w", err)
	}
	return nil
}

func writeSnapshot(f *os.File, dimensions int, values []string, vectors map[string][]float32) error {
	if err := binary.Write(f, binary.LittleEndian, uint32(dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(values))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, v := range values {
		valueBytes := []byte(v)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(valueBytes))); err != nil {
			return fmt.Errorf("write value len: %w", err)
		}
		if _, err := f.Write(valueBytes); err != nil {
			return fmt.Errorf("write value: %w", err)
		}
		if _, err := f.Write(encodeVector(vectors[v])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// load reads a snapshot from path. A missing file is not an error; the store
// starts empty. Dimensions must match the store's configured dimension.
func (s *MemoryStore) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != s.dimensions {
		return fmt.Errorf("%w: file has %d, store expects %d", ErrDimensionMismatch, dim, s.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	buf := make([]byte, s.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var valueLen uint32
		if err := binary.Read(f, binary.LittleEndian, &valueLen); err != nil {
			return fmt.Errorf("read value len: %w", err)
		}
		valueBytes := make([]byte, valueLen)
		if _, err := io.ReadFull(f, valueBytes); err != nil {
			return fmt.Errorf("read value: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		value := string(valueBytes)
		s.values = append(s.values, value)
		s.vectors[value] = decodeVector(buf)
	}
	return nil
}

// encodeVector serializes a vector as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	const size = 4
	out := make([]byte, len(v)*size)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(x))
	}
	return out
}

// decodeVector deserializes little-endian float32 bytes into a vector.
func decodeVector(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
