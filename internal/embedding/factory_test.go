package embedding

import (
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default is hash", cfg: Config{Dimensions: 16}},
		{name: "hash", cfg: Config{Backend: "hash", Dimensions: 16}},
		{name: "ollama", cfg: Config{Backend: "ollama", Dimensions: 16, OllamaHost: "http://localhost:11434", OllamaModel: "m"}},
		{name: "openai", cfg: Config{Backend: "openai", Dimensions: 16, OpenAIAPIKey: "key"}},
		{name: "unknown backend", cfg: Config{Backend: "word2vec"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if e.Dimensions() != 16 {
				t.Errorf("Dimensions=%d", e.Dimensions())
			}
			_ = e.Close()
		})
	}
}

func TestNew_CacheWrapsRemoteBackends(t *testing.T) {
	e, err := New(Config{Backend: "ollama", Dimensions: 8, CacheSize: 100, OllamaHost: "http://localhost:11434", OllamaModel: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("remote backend with cache size should be wrapped, got %T", e)
	}

	// Hash backend is never wrapped.
	e, _ = New(Config{Backend: "hash", Dimensions: 8, CacheSize: 100})
	if _, ok := e.(*CachedEmbedder); ok {
		t.Error("hash backend should not be wrapped")
	}
}
