// Package langchain provides embedding encoders backed by langchaingo clients.
//
// Both Ollama and OpenAI-compatible servers (TEI, vLLM, OpenAI itself) are
// supported. The returned vectors are L2 normalised before use so cosine
// similarity stays meaningful regardless of the server settings.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"studyrag/internal/domain"
	"studyrag/internal/embedding"
)

// ErrInvalidConfig indicates an unusable encoder configuration.
var ErrInvalidConfig = errors.New("invalid embedder configuration")

// Config configures a langchaingo-backed encoder.
type Config struct {
	// Provider is "ollama" or "openai".
	Provider string
	// BaseURL of the server. Empty selects the provider default.
	BaseURL string
	// Model is the embedding model name, e.g. "bge-m3".
	Model string
	// APIKeyEnv names the environment variable holding the API key (openai only).
	APIKeyEnv string
	// Dimension is the expected vector size. 0 accepts the first size seen.
	Dimension int
	// BatchSize bounds texts per request.
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "bge-m3"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Provider == "openai" && c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
}

// Encoder adapts a langchaingo Embedder to embedding.Encoder.
type Encoder struct {
	embedder  embeddings.Embedder
	name      string
	dimension int
}

// New builds an encoder for the configured provider.
func New(cfg Config) (*Encoder, error) {
	cfg.applyDefaults()

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case "ollama", "":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		client = llm
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			// OpenAI-compatible local servers ignore the token but the client requires one
			key = "placeholder"
		}
		opts := []openai.Option{
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(key),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return NewFromEmbedder(emb, cfg.Provider+":"+cfg.Model, cfg.Dimension), nil
}

// NewFromEmbedder wraps an existing langchaingo embedder.
func NewFromEmbedder(emb embeddings.Embedder, name string, dimension int) *Encoder {
	return &Encoder{embedder: emb, name: name, dimension: dimension}
}

// Name returns the provider and model of this encoder.
func (e *Encoder) Name() string { return e.name }

// Dimension returns the configured vector size (0 when not yet known).
func (e *Encoder) Dimension() int { return e.dimension }

// Encode embeds texts in one batch call and normalises the results.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", domain.ErrEmptyInput)
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding documents: %v", domain.ErrUpstream, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrUpstream, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if e.dimension != 0 && len(v) != e.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", embedding.ErrDimensionMismatch, len(v), e.dimension)
		}
		vectors[i] = embedding.Normalize(v)
	}
	return vectors, nil
}

var _ embedding.Encoder = (*Encoder)(nil)
