// Package qdrant implements the vector index backend on a Qdrant server
// reached over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"studyrag/internal/domain"
	"studyrag/internal/vectorindex"
)

// Payload keys.
const (
	keyChunkID    = "chunk_id"
	keyContent    = "content"
	keyDocumentID = "document_id"
	keyChunkIndex = "chunk_index"
)

// Config holds connection settings. Port is the gRPC port (6334 by default).
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Backend stores workspace collections in Qdrant.
type Backend struct {
	client *qdrant.Client
	logger *zap.Logger
}

// New connects to the server described by cfg.
func New(cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC connection uses plaintext", zap.String("host", cfg.Host))
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Backend{client: client, logger: logger}, nil
}

// Close releases the gRPC connection.
func (b *Backend) Close() error { return b.client.Close() }

// PointID maps a chunk key onto a stable UUID, since Qdrant ids must be
// UUIDs or integers.
func PointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func payloadOf(r domain.EmbeddingRecord) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		keyChunkID: stringValue(r.ID),
		keyContent: stringValue(r.Text),
	}
	for k, v := range r.Metadata() {
		payload[k] = stringValue(v)
	}
	return payload
}

func recordOf(payload map[string]*qdrant.Value) domain.EmbeddingRecord {
	get := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	idx, _ := strconv.Atoi(get(keyChunkIndex))
	return domain.EmbeddingRecord{
		ID:         get(keyChunkID),
		Text:       get(keyContent),
		DocumentID: get(keyDocumentID),
		ChunkIndex: idx,
	}
}

func documentFilter(documentID string) *qdrant.Filter {
	if documentID == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   keyDocumentID,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: documentID}},
				},
			},
		}},
	}
}

func (b *Backend) HasCollection(ctx context.Context, name string) (bool, error) {
	ok, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return ok, nil
}

func (b *Backend) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := b.HasCollection(ctx, name)
	if err != nil || exists {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("creating collection %s: vector dimension must be positive", name)
	}
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	b.logger.Info("created qdrant collection", zap.String("collection", name), zap.Int("vector_size", dimension))
	return nil
}

func (b *Backend) DropCollection(ctx context.Context, name string) error {
	exists, err := b.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", vectorindex.ErrCollectionNotFound, name)
	}
	if err := b.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}

func (b *Backend) Upsert(ctx context.Context, name string, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: payloadOf(r),
		}
	}
	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points to %s: %w", len(points), name, err)
	}
	return nil
}

func (b *Backend) Query(ctx context.Context, name string, vector []float32, topK int) ([]domain.ScoredRecord, error) {
	res, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	out := make([]domain.ScoredRecord, len(res))
	for i, p := range res {
		out[i] = domain.ScoredRecord{
			EmbeddingRecord: recordOf(p.GetPayload()),
			// Cosine collections report similarity as the score.
			Distance: 1 - float64(p.GetScore()),
		}
	}
	return out, nil
}

func (b *Backend) List(ctx context.Context, name, documentID string, limit int) ([]domain.EmbeddingRecord, error) {
	filter := documentFilter(documentID)
	if limit <= 0 {
		count, err := b.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: name,
			Filter:         filter,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return nil, fmt.Errorf("counting points in %s: %w", name, err)
		}
		if count == 0 {
			return nil, nil
		}
		limit = int(count)
	}
	points, err := b.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: name,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scrolling %s: %w", name, err)
	}
	records := make([]domain.EmbeddingRecord, len(points))
	for i, p := range points {
		records[i] = recordOf(p.GetPayload())
	}
	return records, nil
}

func (b *Backend) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(PointID(id))
	}
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting %d points from %s: %w", len(ids), name, err)
	}
	return nil
}

func (b *Backend) DeleteByDocument(ctx context.Context, name, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: documentFilter(documentID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting document %s from %s: %w", documentID, name, err)
	}
	return nil
}

var _ vectorindex.Backend = (*Backend)(nil)
