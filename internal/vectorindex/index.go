// Package vectorindex stores chunk embeddings in per-workspace collections and
// answers similarity queries against them.
//
// The Index owns the embedding step and the naming rules; a Backend is only
// responsible for persisting records and running nearest-neighbour queries.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/metrics"
)

// InstructionPrefix is prepended to every text before encoding, for both
// stored chunks and queries.
const InstructionPrefix = "Represent this sentence for searching relevant passages: "

// DefaultTopK is used when Search is called with a non-positive topK.
const DefaultTopK = 5

// ErrCollectionNotFound is returned by backends for an unknown collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Backend persists embedding records. Every collection uses cosine distance.
type Backend interface {
	EnsureCollection(ctx context.Context, name string, dimension int) error
	HasCollection(ctx context.Context, name string) (bool, error)
	DropCollection(ctx context.Context, name string) error

	// Upsert writes records; it may leave a partial write behind on error.
	Upsert(ctx context.Context, collection string, records []domain.EmbeddingRecord) error
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]domain.ScoredRecord, error)
	// List returns up to limit records, optionally filtered by document id.
	// A limit <= 0 means all records. Order is unspecified.
	List(ctx context.Context, collection, documentID string, limit int) ([]domain.EmbeddingRecord, error)
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteByDocument(ctx context.Context, collection, documentID string) error
}

// Collection is the handle of one workspace collection.
type Collection struct {
	Name        string
	WorkspaceID string
	Dimension   int
}

// CleanupStatus reports the outcome of a best-effort deletion.
type CleanupStatus struct {
	Attempted int
	Err       error
}

// OK reports whether the deletion succeeded.
func (s CleanupStatus) OK() bool { return s.Err == nil }

// CollectionName returns the collection name of a workspace.
func CollectionName(workspaceID string) string {
	return "workspace_" + workspaceID
}

// Index embeds chunks and queries them per workspace.
type Index struct {
	encoder embedding.Encoder
	backend Backend
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu          sync.Mutex
	collections map[string]*Collection
}

// New creates an index. m and logger may be nil.
func New(encoder embedding.Encoder, backend Backend, m *metrics.Metrics, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		encoder:     encoder,
		backend:     backend,
		metrics:     m,
		logger:      logger,
		collections: make(map[string]*Collection),
	}
}

// GetOrCreateCollection returns the workspace collection, creating it on
// first use. Repeated calls return the same handle.
func (x *Index) GetOrCreateCollection(ctx context.Context, workspaceID string) (*Collection, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace id is required", domain.ErrInvalidInput)
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if c, ok := x.collections[workspaceID]; ok {
		return c, nil
	}
	c := &Collection{
		Name:        CollectionName(workspaceID),
		WorkspaceID: workspaceID,
		Dimension:   x.encoder.Dimension(),
	}
	if err := x.backend.EnsureCollection(ctx, c.Name, c.Dimension); err != nil {
		return nil, fmt.Errorf("%w: ensuring collection %s: %v", domain.ErrUpstream, c.Name, err)
	}
	x.collections[workspaceID] = c
	return c, nil
}

// existing returns the cached or stored collection without creating it.
func (x *Index) existing(ctx context.Context, workspaceID string) (*Collection, bool, error) {
	x.mu.Lock()
	c, ok := x.collections[workspaceID]
	x.mu.Unlock()
	if ok {
		return c, true, nil
	}
	name := CollectionName(workspaceID)
	found, err := x.backend.HasCollection(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("%w: looking up collection %s: %v", domain.ErrUpstream, name, err)
	}
	if !found {
		return nil, false, nil
	}
	c, err = x.GetOrCreateCollection(ctx, workspaceID)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func prefixed(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = InstructionPrefix + t
	}
	return out
}

// EmbedAndStore encodes the chunks of a document and stores them under ids
// doc{documentID}_chunk{i}. Every vector is computed before the first write.
// When the write fails, already written ids are removed again.
func (x *Index) EmbedAndStore(ctx context.Context, workspaceID, documentID string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if documentID == "" {
		return 0, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	coll, err := x.GetOrCreateCollection(ctx, workspaceID)
	if err != nil {
		return 0, err
	}

	vectors, err := x.encoder.Encode(ctx, prefixed(chunks))
	if err != nil {
		return 0, fmt.Errorf("%w: encoding chunks of document %s: %w", domain.ErrUpstream, documentID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: encoder returned %d vectors for %d chunks", domain.ErrUpstream, len(vectors), len(chunks))
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for i, text := range chunks {
		records[i] = domain.EmbeddingRecord{
			ID:         domain.ChunkKey(documentID, i),
			Vector:     vectors[i],
			Text:       text,
			DocumentID: documentID,
			ChunkIndex: i,
		}
	}

	if err := x.backend.Upsert(ctx, coll.Name, records); err != nil {
		status := x.DeleteByIDs(context.WithoutCancel(ctx), workspaceID, domain.ChunkKeys(documentID, len(chunks)))
		x.logger.Warn("chunk write failed, rolled back",
			zap.String("workspace_id", workspaceID),
			zap.String("document_id", documentID),
			zap.Int("chunks", len(chunks)),
			zap.Bool("rollback_ok", status.OK()),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: storing chunks of document %s: %v", domain.ErrUpstream, documentID, err)
	}

	x.metrics.ChunksEmbedded(len(records))
	x.logger.Debug("stored chunks",
		zap.String("collection", coll.Name),
		zap.String("document_id", documentID),
		zap.Int("count", len(records)),
	)
	return len(records), nil
}

// Search returns the texts of the topK chunks most similar to query, most
// similar first. An unknown or empty workspace yields no results.
func (x *Index) Search(ctx context.Context, workspaceID, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	coll, ok, err := x.existing(ctx, workspaceID)
	if err != nil || !ok {
		return []string{}, err
	}

	vectors, err := x.encoder.Encode(ctx, prefixed([]string{query}))
	if err != nil {
		return nil, fmt.Errorf("%w: encoding query: %w", domain.ErrUpstream, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: encoder returned %d vectors for one query", domain.ErrUpstream, len(vectors))
	}

	hits, err := x.backend.Query(ctx, coll.Name, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", domain.ErrUpstream, coll.Name, err)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	return texts, nil
}

// DocumentChunks returns the chunk texts of one document in chunk order.
// A limit <= 0 returns every chunk.
func (x *Index) DocumentChunks(ctx context.Context, workspaceID, documentID string, limit int) ([]string, error) {
	return x.list(ctx, workspaceID, documentID, limit)
}

// SampleChunks returns the first limit chunk texts of a workspace ordered by
// document then chunk index.
func (x *Index) SampleChunks(ctx context.Context, workspaceID string, limit int) ([]string, error) {
	return x.list(ctx, workspaceID, "", limit)
}

func (x *Index) list(ctx context.Context, workspaceID, documentID string, limit int) ([]string, error) {
	coll, ok, err := x.existing(ctx, workspaceID)
	if err != nil || !ok {
		return []string{}, err
	}
	// Backends do not order records, so fetch everything and cut after sorting.
	records, err := x.backend.List(ctx, coll.Name, documentID, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", domain.ErrUpstream, coll.Name, err)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DocumentID != records[j].DocumentID {
			return records[i].DocumentID < records[j].DocumentID
		}
		return records[i].ChunkIndex < records[j].ChunkIndex
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	return texts, nil
}

// DeleteByIDs removes records by id. Failures are logged, not returned.
func (x *Index) DeleteByIDs(ctx context.Context, workspaceID string, ids []string) CleanupStatus {
	status := CleanupStatus{Attempted: len(ids)}
	if len(ids) == 0 {
		return status
	}
	status.Err = x.backend.Delete(ctx, CollectionName(workspaceID), ids)
	return x.reportCleanup("delete_ids", workspaceID, status)
}

// DeleteByDocument removes every record of a document.
func (x *Index) DeleteByDocument(ctx context.Context, workspaceID, documentID string) CleanupStatus {
	status := CleanupStatus{Attempted: 1}
	status.Err = x.backend.DeleteByDocument(ctx, CollectionName(workspaceID), documentID)
	return x.reportCleanup("delete_document", workspaceID, status, zap.String("document_id", documentID))
}

// DeleteCollection drops the whole workspace collection.
func (x *Index) DeleteCollection(ctx context.Context, workspaceID string) CleanupStatus {
	x.mu.Lock()
	delete(x.collections, workspaceID)
	x.mu.Unlock()

	status := CleanupStatus{Attempted: 1}
	status.Err = x.backend.DropCollection(ctx, CollectionName(workspaceID))
	return x.reportCleanup("delete_collection", workspaceID, status)
}

func (x *Index) reportCleanup(op, workspaceID string, status CleanupStatus, fields ...zap.Field) CleanupStatus {
	if status.Err == nil {
		return status
	}
	// A missing collection means there is nothing left to delete.
	if errors.Is(status.Err, ErrCollectionNotFound) {
		status.Err = nil
		return status
	}
	x.metrics.CleanupFailed(op)
	x.logger.Warn("vector cleanup failed",
		append([]zap.Field{
			zap.String("operation", op),
			zap.String("workspace_id", workspaceID),
			zap.Int("attempted", status.Attempted),
			zap.Error(status.Err),
		}, fields...)...,
	)
	return status
}
