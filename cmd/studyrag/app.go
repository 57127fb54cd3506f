package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"studyrag/internal/answer"
	"studyrag/internal/chunker"
	"studyrag/internal/config"
	"studyrag/internal/embedding"
	"studyrag/internal/embedding/hashing"
	embedlc "studyrag/internal/embedding/langchain"
	"studyrag/internal/flashcards"
	llmlc "studyrag/internal/llm/langchain"
	"studyrag/internal/logging"
	"studyrag/internal/metrics"
	"studyrag/internal/service"
	"studyrag/internal/store/sqlite"
	"studyrag/internal/studyplan"
	"studyrag/internal/summarizer"
	"studyrag/internal/vectorindex"
	"studyrag/internal/vectorindex/chromem"
	"studyrag/internal/vectorindex/qdrant"
)

// app owns every long-lived component built from the config.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	service *service.StudyService
	closers []func() error
	server  *http.Server
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

func newApp(cfg *config.AppConfig) (*app, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	encoder, err := buildEncoder(cfg.Embedder)
	if err != nil {
		a.close()
		return nil, err
	}
	backend, err := a.buildBackend(cfg.VectorStore)
	if err != nil {
		a.close()
		return nil, err
	}
	gen, err := llmlc.New(llmlc.Config{
		Provider:  cfg.LLM.Type,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		NumCtx:    cfg.LLM.NumCtx,
		Timeout:   cfg.LLM.Timeout(),
	}, a.metrics, logger.Named("llm"))
	if err != nil {
		a.close()
		return nil, err
	}
	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	index := vectorindex.New(encoder, backend, a.metrics, logger.Named("index"))
	a.service = service.New(service.Deps{
		Store:      store,
		Index:      index,
		Chunker:    chunker.NewSentenceChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap),
		Answerer:   answer.New(index, gen, logger.Named("answer")),
		Summarizer: summarizer.New(gen, summarizer.WithMetrics(a.metrics), summarizer.WithLogger(logger.Named("summarizer"))),
		Flashcards: flashcards.New(gen, a.metrics, logger.Named("flashcards")),
		Planner:    studyplan.New(gen, a.metrics, logger.Named("studyplan")),
		Logger:     logger.Named("service"),
		Clock:      time.Now,
	})
	return a, nil
}

func buildEncoder(cfg config.EmbedderConfig) (embedding.Encoder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEncoder(cfg.Dimension), nil
	case "ollama", "openai":
		return embedlc.New(embedlc.Config{
			Provider:  cfg.Type,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKeyEnv: cfg.APIKeyEnv,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", config.ErrInvalidConfig, cfg.Type)
	}
}

func (a *app) buildBackend(cfg config.VectorStoreConfig) (vectorindex.Backend, error) {
	switch cfg.Type {
	case "chromem", "":
		return chromem.New(chromem.Config{Path: cfg.Path, Compress: cfg.Compress}, a.logger.Named("chromem"))
	case "qdrant":
		qc := config.QdrantConfig{}
		if cfg.Qdrant != nil {
			qc = *cfg.Qdrant
		}
		b, err := qdrant.New(qdrant.Config{Host: qc.Host, Port: qc.Port, APIKey: qc.APIKey, UseTLS: qc.UseTLS}, a.logger.Named("qdrant"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", config.ErrInvalidConfig, cfg.Type)
	}
}

// serveMetrics exposes the registry on addr until close is called.
func (a *app) serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", addr))
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = logging.Sync(a.logger)
}
