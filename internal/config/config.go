package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DataDirEnv overrides data_dir when set.
const DataDirEnv = "ROOT_DATA_DIR"

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// GeminiEmbedderConfig configures the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// VectorStoreConfig selects the oracle implementation.
type VectorStoreConfig struct {
	Type      string        `yaml:"type"`
	BatchSize int           `yaml:"batch_size"`
	Qdrant    *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig tunes candidate filtering.
type RetrievalConfig struct {
	NResults    int      `yaml:"n_results"`
	OverFetch   int      `yaml:"over_fetch"`
	// MaxDistance is inclusive; 0 accepts exact matches only.
	MaxDistance *float64 `yaml:"max_distance,omitempty"`
}

// AssemblerConfig tunes context packing.
type AssemblerConfig struct {
	ContextBudget int `yaml:"context_budget"`
	MinChunkChars int `yaml:"min_chunk_chars"`
}

// GeneratorConfig selects the answer model. "none" always uses the extractive answer.
type GeneratorConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// IngestConfig controls the ingestion pipeline.
type IngestConfig struct {
	Workers         int `yaml:"workers"`
	WatchDebounceMS int `yaml:"watch_debounce_ms"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir     string              `yaml:"data_dir"`
	Log         LogConfig           `yaml:"log"`
	Embedder    EmbedderConfig      `yaml:"embedder"`
	VectorStore VectorStoreConfig   `yaml:"vector_store"`
	Retrieval   RetrievalConfig     `yaml:"retrieval"`
	Assembler   AssemblerConfig     `yaml:"assembler"`
	Generator   GeneratorConfig     `yaml:"generator"`
	Departments map[string][]string `yaml:"departments,omitempty"`
	Ingest      IngestConfig        `yaml:"ingest"`
}

// WatchDebounce returns the watcher debounce as a duration.
func (c *AppConfig) WatchDebounce() time.Duration {
	return time.Duration(c.Ingest.WatchDebounceMS) * time.Millisecond
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rolerag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rolerag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown component types.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "tfidf", "openai", "gemini":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "keyword":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("qdrant vector store needs vector_store.qdrant.url")
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	switch c.Generator.Type {
	case "none", "openai", "gemini":
	default:
		return fmt.Errorf("unknown generator: %s", c.Generator.Type)
	}
	if d := c.Retrieval.MaxDistance; d != nil && (*d < 0 || math.IsNaN(*d)) {
		return errors.New("retrieval.max_distance must be a non-negative number")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rolerag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		DataDir:     "./data",
		Log:         LogConfig{Level: "info"},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory", BatchSize: 64},
		Retrieval:   RetrievalConfig{NResults: 5, OverFetch: 5, MaxDistance: ptr(0.5)},
		Assembler:   AssemblerConfig{ContextBudget: 12000, MinChunkChars: 20},
		Generator:   GeneratorConfig{Type: "none", TimeoutSecs: 60},
		Ingest:      IngestConfig{Workers: 4, WatchDebounceMS: 500},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.BatchSize <= 0 {
		cfg.VectorStore.BatchSize = def.VectorStore.BatchSize
	}
	if cfg.Retrieval.NResults <= 0 {
		cfg.Retrieval.NResults = def.Retrieval.NResults
	}
	if cfg.Retrieval.OverFetch <= 0 {
		cfg.Retrieval.OverFetch = def.Retrieval.OverFetch
	}
	if cfg.Retrieval.MaxDistance == nil {
		cfg.Retrieval.MaxDistance = ptr(*def.Retrieval.MaxDistance)
	}
	if cfg.Assembler.ContextBudget <= 0 {
		cfg.Assembler.ContextBudget = def.Assembler.ContextBudget
	}
	if cfg.Assembler.MinChunkChars <= 0 {
		cfg.Assembler.MinChunkChars = def.Assembler.MinChunkChars
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = def.Generator.Type
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = def.Ingest.Workers
	}
	if cfg.Ingest.WatchDebounceMS <= 0 {
		cfg.Ingest.WatchDebounceMS = def.Ingest.WatchDebounceMS
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "gemini" {
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GOOGLE_API_KEY"
		}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "company_docs"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "gemini":
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "GOOGLE_API_KEY"
		}
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
}

func applyEnv(cfg *AppConfig) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		cfg.DataDir = dir
	}
}

func ptr[T any](v T) *T { return &v }
