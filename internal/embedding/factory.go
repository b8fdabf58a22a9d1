package embedding

import "fmt"

// Backend identifies an embedding backend.
type Backend string

const (
	// BackendHash is the deterministic local embedder (default).
	BackendHash Backend = "hash"
	// BackendOllama uses a local Ollama server.
	BackendOllama Backend = "ollama"
	// BackendOpenAI uses the OpenAI embeddings API.
	BackendOpenAI Backend = "openai"
	// BackendONNX runs a local ONNX model. Requires CGO and onnxruntime.
	BackendONNX Backend = "onnx"
)

// Config selects and configures an embedding backend.
type Config struct {
	Backend    string
	Dimensions int
	CacheSize  int

	// Ollama settings.
	OllamaHost  string
	OllamaModel string

	// OpenAI settings.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// ONNX settings.
	ModelPath string
	MaxTokens int
}

// New creates an embedder for the configured backend. Remote and model-backed
// backends are wrapped with an LRU cache when CacheSize is positive.
func New(cfg Config) (Embedder, error) {
	var (
		embedder Embedder
		err      error
	)
	switch Backend(cfg.Backend) {
	case BackendHash, "":
		// Hash embedding is cheap enough that caching is pointless.
		return NewHashEmbedder(cfg.Dimensions), nil
	case BackendOllama:
		embedder = NewOllamaEmbedder(cfg.OllamaHost, cfg.OllamaModel, cfg.Dimensions)
	case BackendOpenAI:
		embedder = NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Dimensions)
	case BackendONNX:
		embedder, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: hash, ollama, openai, onnx)", cfg.Backend)
	}
	if cfg.CacheSize > 0 {
		embedder = NewCachedEmbedder(embedder, cfg.CacheSize)
	}
	return embedder, nil
}
