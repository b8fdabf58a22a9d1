package embedding

import (
	"context"
	"math"

	"github.com/hyperjump/ruiji/pkg/utils"
)

// HashEmbedder is a deterministic, dependency-free embedder. It derives a
// fixed-dimension vector from character trigram hashes, so similar strings
// (e.g. a typo of a stored value) land near each other. It is the default
// backend and the embedder used in tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder with the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding derived from character trigrams.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, gram := range trigrams(text) {
		h := hashString(gram)
		emb[h%e.dimensions] += float32(math.Sin(float64(h))*0.5 + 1.0)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

// trigrams returns the lowercase character trigrams of text, padded so short
// and single-word strings still produce grams.
func trigrams(text string) []string {
	runes := []rune(" " + lower(text) + " ")
	if len(runes) < 3 {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+3]))
	}
	return grams
}

func lower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		}
	}
	return string(out)
}

// hashString returns a deterministic non-negative hash.
func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
