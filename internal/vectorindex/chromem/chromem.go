// Package chromem implements the vector index backend on the embedded
// chromem-go database, in memory or persisted to a directory.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/vectorindex"
)

// errNoEmbedding is returned if chromem ever tries to embed on its own.
// Every write and query carries a precomputed vector.
var errNoEmbedding = errors.New("chromem backend expects precomputed embeddings")

func noEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

// Config selects persistence. An empty Path keeps everything in memory.
type Config struct {
	Path     string
	Compress bool
}

// Backend stores workspace collections in a chromem database.
type Backend struct {
	db     *chromem.DB
	logger *zap.Logger

	mu   sync.RWMutex
	dims map[string]int
}

// New opens the database described by cfg.
func New(cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Path == "" {
		return NewWithDB(chromem.NewDB(), logger), nil
	}
	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, err
	}
	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db at %s: %w", path, err)
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *chromem.DB, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{db: db, logger: logger, dims: make(map[string]int)}
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return path, nil
}

func (b *Backend) collection(name string) (*chromem.Collection, error) {
	c := b.db.GetCollection(name, noEmbed)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", vectorindex.ErrCollectionNotFound, name)
	}
	return c, nil
}

func (b *Backend) EnsureCollection(_ context.Context, name string, dimension int) error {
	meta := map[string]string{"distance": "cosine"}
	if dimension > 0 {
		meta["dimension"] = strconv.Itoa(dimension)
	}
	if _, err := b.db.GetOrCreateCollection(name, meta, noEmbed); err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", name, err)
	}
	if dimension > 0 {
		b.mu.Lock()
		b.dims[name] = dimension
		b.mu.Unlock()
	}
	return nil
}

func (b *Backend) HasCollection(_ context.Context, name string) (bool, error) {
	return b.db.GetCollection(name, noEmbed) != nil, nil
}

func (b *Backend) DropCollection(_ context.Context, name string) error {
	if b.db.GetCollection(name, noEmbed) == nil {
		return fmt.Errorf("%w: %s", vectorindex.ErrCollectionNotFound, name)
	}
	if err := b.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	b.mu.Lock()
	delete(b.dims, name)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Upsert(ctx context.Context, name string, records []domain.EmbeddingRecord) error {
	c, err := b.collection(name)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Text,
			Metadata:  r.Metadata(),
			Embedding: r.Vector,
		}
	}
	// Concurrency of 1 since embeddings are already computed.
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents to %s: %w", name, err)
	}
	if len(records) > 0 {
		b.mu.Lock()
		if b.dims[name] == 0 {
			b.dims[name] = len(records[0].Vector)
		}
		b.mu.Unlock()
	}
	return nil
}

func (b *Backend) Query(ctx context.Context, name string, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	return b.query(ctx, name, vector, topK, nil)
}

func (b *Backend) query(ctx context.Context, name string, vector []float32, topK int, where map[string]string) ([]domain.ScoredRecord, error) {
	c, err := b.collection(name)
	if err != nil {
		return nil, err
	}
	// chromem requires nResults <= document count.
	count := c.Count()
	if count == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > count {
		topK = count
	}
	results, err := c.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	out := make([]domain.ScoredRecord, len(results))
	for i, r := range results {
		idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
		out[i] = domain.ScoredRecord{
			EmbeddingRecord: domain.EmbeddingRecord{
				ID:         r.ID,
				Text:       r.Content,
				DocumentID: r.Metadata["document_id"],
				ChunkIndex: idx,
			},
			Distance: 1 - float64(r.Similarity),
		}
	}
	return out, nil
}

// List uses an exhaustive query with a fixed probe vector since chromem has
// no scan API. The collection dimension must be known.
func (b *Backend) List(ctx context.Context, name, documentID string, limit int) ([]domain.EmbeddingRecord, error) {
	b.mu.RLock()
	dim := b.dims[name]
	b.mu.RUnlock()
	if dim == 0 {
		if _, err := b.collection(name); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("listing %s: unknown vector dimension", name)
	}
	probe := make([]float32, dim)
	probe[0] = 1

	var where map[string]string
	if documentID != "" {
		where = map[string]string{"document_id": documentID}
	}
	hits, err := b.query(ctx, name, probe, 0, where)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	records := make([]domain.EmbeddingRecord, len(hits))
	for i, h := range hits {
		records[i] = h.EmbeddingRecord
	}
	return records, nil
}

func (b *Backend) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := b.collection(name)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting %d documents from %s: %w", len(ids), name, err)
	}
	return nil
}

func (b *Backend) DeleteByDocument(ctx context.Context, name, documentID string) error {
	c, err := b.collection(name)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("deleting document %s from %s: %w", documentID, name, err)
	}
	b.logger.Debug("deleted document vectors",
		zap.String("collection", name),
		zap.String("document_id", documentID),
	)
	return nil
}

var _ vectorindex.Backend = (*Backend)(nil)
