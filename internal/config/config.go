// Package config loads the studyrag configuration from YAML and environment.
//
// Precedence, highest first: STUDYRAG_ environment variables, the YAML file,
// built-in defaults. Environment names map to keys by dropping the prefix,
// lowercasing and turning "__" into a section separator:
//
//	STUDYRAG_LLM__MODEL                -> llm.model
//	STUDYRAG_VECTOR_STORE__QDRANT__HOST -> vector_store.qdrant.host
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"studyrag/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STUDYRAG_"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size" koanf:"chunk_size"`
	Overlap   int `yaml:"overlap" koanf:"overlap"`
}

// EmbedderConfig selects and configures the text encoder.
type EmbedderConfig struct {
	// Type is "hashing", "ollama" or "openai".
	Type      string `yaml:"type" koanf:"type"`
	Model     string `yaml:"model,omitempty" koanf:"model"`
	BaseURL   string `yaml:"base_url,omitempty" koanf:"base_url"`
	APIKeyEnv string `yaml:"api_key_env,omitempty" koanf:"api_key_env"`
	Dimension int    `yaml:"dimension" koanf:"dimension"`
	BatchSize int    `yaml:"batch_size,omitempty" koanf:"batch_size"`
}

// LLMConfig configures the text generation model.
type LLMConfig struct {
	// Type is "ollama" or "openai".
	Type        string `yaml:"type" koanf:"type"`
	Model       string `yaml:"model" koanf:"model"`
	BaseURL     string `yaml:"base_url,omitempty" koanf:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty" koanf:"api_key_env"`
	NumCtx      int    `yaml:"num_ctx,omitempty" koanf:"num_ctx"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
}

// Timeout returns the per-call timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// QdrantConfig contains connection details for a Qdrant server.
type QdrantConfig struct {
	Host   string `yaml:"host" koanf:"host"`
	Port   int    `yaml:"port" koanf:"port"`
	APIKey string `yaml:"api_key,omitempty" koanf:"api_key"`
	UseTLS bool   `yaml:"use_tls" koanf:"use_tls"`
}

// VectorStoreConfig selects and configures the vector store.
type VectorStoreConfig struct {
	// Type is "chromem" or "qdrant".
	Type string `yaml:"type" koanf:"type"`
	// Path of the chromem database directory. Empty keeps it in memory.
	Path     string        `yaml:"path" koanf:"path"`
	Compress bool          `yaml:"compress" koanf:"compress"`
	Qdrant   *QdrantConfig `yaml:"qdrant,omitempty" koanf:"qdrant"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker     ChunkerConfig     `yaml:"chunker" koanf:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder" koanf:"embedder"`
	LLM         LLMConfig         `yaml:"llm" koanf:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	Store       StoreConfig       `yaml:"store" koanf:"store"`
	Log         logging.Config    `yaml:"log" koanf:"log"`
	Metrics     MetricsConfig     `yaml:"metrics" koanf:"metrics"`
}

// Load reads a config from path and applies environment overrides. A missing
// file yields the defaults.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// LoadDefault tries ./config.yaml first, then ~/.config/studyrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/studyrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DefaultUserConfigPath returns ~/.config/studyrag/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "studyrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Chunker:     ChunkerConfig{ChunkSize: 500, Overlap: 100},
		Embedder:    EmbedderConfig{Type: "hashing", Dimension: 1024},
		LLM:         LLMConfig{Type: "ollama", Model: "llama3.1", TimeoutSecs: 120},
		VectorStore: VectorStoreConfig{Type: "chromem", Path: "~/.local/share/studyrag/vectors"},
		Log:         logging.Config{Level: "info", Format: "console"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 500
	}
	switch cfg.Embedder.Type {
	case "ollama":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "bge-m3"
		}
	case "openai":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.LLM.Type == "openai" && cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.Host == "" {
			cfg.VectorStore.Qdrant.Host = "localhost"
		}
		if cfg.VectorStore.Qdrant.Port == 0 {
			cfg.VectorStore.Qdrant.Port = 6334
		}
	}
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunker needs 0 <= overlap < chunk_size, got %d and %d", ErrInvalidConfig, c.Chunker.Overlap, c.Chunker.ChunkSize)
	}
	switch c.Embedder.Type {
	case "hashing":
	case "ollama", "openai":
		// Collections are created before the first vector comes back.
		if c.Embedder.Dimension <= 0 {
			return fmt.Errorf("%w: embedder.dimension is required for %s", ErrInvalidConfig, c.Embedder.Type)
		}
	default:
		return fmt.Errorf("%w: unknown embedder type %q", ErrInvalidConfig, c.Embedder.Type)
	}
	switch c.LLM.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("%w: unknown llm type %q", ErrInvalidConfig, c.LLM.Type)
	}
	if c.LLM.TimeoutSecs < 0 {
		return fmt.Errorf("%w: llm.timeout_secs must not be negative", ErrInvalidConfig)
	}
	switch c.VectorStore.Type {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: unknown vector store type %q", ErrInvalidConfig, c.VectorStore.Type)
	}
	return nil
}
