package langchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/llm"
	"studyrag/internal/metrics"
)

// ErrInvalidConfig indicates an unusable generator configuration.
var ErrInvalidConfig = errors.New("invalid llm configuration")

// Config configures a langchaingo-backed generator.
type Config struct {
	Provider  string // "ollama" or "openai"
	BaseURL   string
	Model     string
	APIKeyEnv string
	// NumCtx sets the Ollama runner context window. Zero keeps the model default.
	NumCtx int
	// Timeout bounds every single call. Zero disables the per-call timeout.
	Timeout time.Duration
}

// Generator implements llm.Generator on top of a langchaingo model.
type Generator struct {
	model   llms.Model
	name    string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New builds a generator for the configured provider.
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	var model llms.Model
	switch cfg.Provider {
	case "ollama", "":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		if cfg.NumCtx > 0 {
			opts = append(opts, ollama.WithRunnerNumCtx(cfg.NumCtx))
		}
		c, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		model = c
	case "openai":
		env := cfg.APIKeyEnv
		if env == "" {
			env = "OPENAI_API_KEY"
		}
		key := os.Getenv(env)
		if key == "" {
			return nil, fmt.Errorf("%w: missing API key in env %s", ErrInvalidConfig, env)
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(key)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		c, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		model = c
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	return NewFromModel(model, cfg.Provider+":"+cfg.Model, cfg.Timeout, m, logger), nil
}

// NewFromModel wraps an existing langchaingo model.
func NewFromModel(model llms.Model, name string, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{model: model, name: name, timeout: timeout, metrics: m, logger: logger}
}

// Generate issues one completion request. ContextWindow is applied at
// construction (NumCtx) because langchaingo has no per-call equivalent.
func (g *Generator) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(opts.Temperature),
		llms.WithTopP(opts.TopP),
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	start := time.Now()
	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, callOpts...)
	g.metrics.ObserveGeneration(g.name, time.Since(start), err)
	if err != nil {
		g.logger.Debug("generation failed",
			zap.String("model", g.name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %s: %v", domain.ErrUpstream, g.name, err)
	}
	return text, nil
}

var _ llm.Generator = (*Generator)(nil)
