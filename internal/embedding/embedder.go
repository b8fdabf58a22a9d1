// Package embedding provides text embedding backends and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch preserves input
// order and returns exactly one vector per input. Vectors are unit-normalized
// so inner product equals cosine similarity, for both batch and single-query
// paths.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
