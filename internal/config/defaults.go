package config

import "os"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "hash"
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Backend {
		case "openai":
			cfg.Embedding.Dimensions = 1536
		case "ollama", "onnx":
			cfg.Embedding.Dimensions = 384
		default:
			cfg.Embedding.Dimensions = 64
		}
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 64
	}
	if cfg.Embedding.OllamaHost == "" {
		cfg.Embedding.OllamaHost = "http://localhost:11434"
	}
	if cfg.Embedding.OllamaModel == "" {
		cfg.Embedding.OllamaModel = "nomic-embed-text"
	}
	if cfg.Embedding.OpenAIAPIKey == "" {
		cfg.Embedding.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.OpenAIModel == "" {
		cfg.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	for i := range cfg.Indexes {
		if cfg.Indexes[i].Store.Type == "" {
			cfg.Indexes[i].Store.Type = "memory"
		}
	}
}
