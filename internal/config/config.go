// Package config provides configuration loading and structs for the Ruiji server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Indexes   []IndexConfig   `yaml:"indexes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig holds embedding backend settings. One embedder serves all
// indexes so every store shares a single embedding space.
type EmbeddingConfig struct {
	Backend    string `yaml:"backend"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`

	OllamaHost  string `yaml:"ollama_host"`
	OllamaModel string `yaml:"ollama_model"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Identity returns the embedder's configuration identity for registry keys.
func (c *EmbeddingConfig) Identity() string {
	switch c.Backend {
	case "ollama":
		return fmt.Sprintf("ollama:%s@%s:%d", c.OllamaModel, c.OllamaHost, c.Dimensions)
	case "openai":
		return fmt.Sprintf("openai:%s:%d", c.OpenAIModel, c.Dimensions)
	case "onnx":
		return fmt.Sprintf("onnx:%s:%d", c.ModelPath, c.Dimensions)
	default:
		return fmt.Sprintf("hash:%d", c.Dimensions)
	}
}

// RefreshConfig holds bulk maintenance settings.
type RefreshConfig struct {
	// Schedule is a cron expression for periodic update of all indexes.
	// Empty disables scheduled refresh.
	Schedule string `yaml:"schedule"`
	// WatchFiles controls whether file-backed sources trigger an update when
	// the file changes. Defaults to true when unset.
	WatchFiles *bool `yaml:"watch_files"`
	// UpdateOnStart updates all indexes once at server startup.
	UpdateOnStart bool `yaml:"update_on_start"`
}

// WatchFilesOrDefault returns whether to watch file sources; defaults to true.
func (c *RefreshConfig) WatchFilesOrDefault() bool {
	if c.WatchFiles != nil {
		return *c.WatchFiles
	}
	return true
}

// IndexConfig defines one named similarity index.
type IndexConfig struct {
	Name   string       `yaml:"name"`
	Source SourceConfig `yaml:"source"`
	Store  StoreConfig  `yaml:"store"`
}

// SourceConfig selects a vocabulary source.
type SourceConfig struct {
	Type   string   `yaml:"type"`
	DSN    string   `yaml:"dsn"`
	Table  string   `yaml:"table"`
	Column string   `yaml:"column"`
	URL    string   `yaml:"url"`
	Path   string   `yaml:"path"`
	Values []string `yaml:"values"`
}

// Identity returns the source's configuration identity for registry keys.
func (c *SourceConfig) Identity() string {
	switch c.Type {
	case "sql":
		return fmt.Sprintf("sql:%s|%s|%s", c.DSN, c.Table, c.Column)
	case "http":
		return "http:" + c.URL
	case "file":
		return "file:" + c.Path
	case "static":
		return "static:" + strings.Join(c.Values, ",")
	default:
		return c.Type
	}
}

// StoreConfig selects a vector store backend.
type StoreConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// Identity returns the store's configuration identity for registry keys.
func (c *StoreConfig) Identity() string {
	if c.Path == "" {
		return c.Type
	}
	return c.Type + ":" + c.Path
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Indexes {
		cfg.Indexes[i].Store.Path = expandPath(cfg.Indexes[i].Store.Path, configDir)
		if cfg.Indexes[i].Source.Type == "file" {
			cfg.Indexes[i].Source.Path = expandPath(cfg.Indexes[i].Source.Path, configDir)
		}
	}

	return &cfg, nil
}

// Validate rejects configs the factories cannot build.
func Validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Indexes))
	for _, ic := range cfg.Indexes {
		if ic.Name == "" {
			return fmt.Errorf("index without a name")
		}
		if seen[ic.Name] {
			return fmt.Errorf("duplicate index name %q", ic.Name)
		}
		seen[ic.Name] = true
		if ic.Source.Type == "" {
			return fmt.Errorf("index %q has no source type", ic.Name)
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
