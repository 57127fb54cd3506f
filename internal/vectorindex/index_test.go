package vectorindex_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"studyrag/internal/domain"
	"studyrag/internal/embedding/hashing"
	"studyrag/internal/logging"
	"studyrag/internal/vectorindex"
	"studyrag/internal/vectorindex/chromem"
)

var corpus = []string{
	"Photosynthesis converts light energy into chemical energy inside chloroplasts.",
	"The mitochondria produce ATP through cellular respiration.",
	"A linear regression fits a straight line by minimising squared residuals.",
	"ggplot2 builds charts from layers, aesthetics and geometric objects.",
}

func newIndex(t *testing.T) (*vectorindex.Index, *chromem.Backend) {
	t.Helper()
	backend, err := chromem.New(chromem.Config{}, nil)
	require.NoError(t, err)
	return vectorindex.New(hashing.NewEncoder(hashing.DefaultDimension), backend, nil, nil), backend
}

func TestGetOrCreateCollection_Idempotent(t *testing.T) {
	idx, _ := newIndex(t)
	ctx := context.Background()

	a, err := idx.GetOrCreateCollection(ctx, "42")
	require.NoError(t, err)
	b, err := idx.GetOrCreateCollection(ctx, "42")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "workspace_42", a.Name)
	assert.Equal(t, hashing.DefaultDimension, a.Dimension)

	_, err = idx.GetOrCreateCollection(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbedAndStore_SelfRetrieval(t *testing.T) {
	idx, _ := newIndex(t)
	ctx := context.Background()

	n, err := idx.EmbedAndStore(ctx, "1", "7", corpus)
	require.NoError(t, err)
	assert.Equal(t, len(corpus), n)

	for _, text := range corpus {
		hits, err := idx.Search(ctx, "1", text, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, text, hits[0])
	}
}

func TestSearch_DefaultTopKAndOrdering(t *testing.T) {
	idx, _ := newIndex(t)
	ctx := context.Background()

	chunks := append([]string{}, corpus...)
	chunks = append(chunks,
		"Chloroplasts contain chlorophyll which absorbs light.",
		"Residuals measure the gap between observed and fitted values.",
	)
	_, err := idx.EmbedAndStore(ctx, "1", "7", chunks)
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "1", "light energy chloroplasts", 0)
	require.NoError(t, err)
	assert.Len(t, hits, vectorindex.DefaultTopK)
	assert.Equal(t, corpus[0], hits[0])
}

func TestSearch_UnknownOrEmptyWorkspace(t *testing.T) {
	idx, _ := newIndex(t)
	ctx := context.Background()

	hits, err := idx.Search(ctx, "nope", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NotNil(t, hits)

	_, err = idx.GetOrCreateCollection(ctx, "empty")
	require.NoError(t, err)
	hits, err = idx.Search(ctx, "empty", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_TopKLargerThanCollection(t *testing.T) {
	idx, _ := newIndex(t)
	ctx := context.Background()

	_, err := idx.EmbedAndStore(ctx, "1", "7", corpus[:2])
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "1", "energy", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestEmbedAndStore_EmptyChunksSkipsEncoder(t *testing.T) {
	backend, err := chromem.New(chromem.Config{}, nil)
	require.NoError(t, err)
	enc := &countingEncoder{Encoder: hashing.NewEncoder(64)}
	idx := vectorindex.New(enc, backend, nil, nil)

	n, err := idx.EmbedAndStore(context.Background(), "1", "7", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, enc.calls)
}

func TestDocumentChunks_OrderAndIsolation(t *testing.T) {
	idx, _ := newIndex(t)
	ctx := context.Background()

	_, err := idx.EmbedAndStore(ctx, "1", "a", corpus)
	require.NoError(t, err)
	_, err = idx.EmbedAndStore(ctx, "1", "b", []string{"Unrelated chunk about volcanoes."})
	require.NoError(t, err)

	got, err := idx.DocumentChunks(ctx, "1", "a", 0)
	require.NoError(t, err)
	assert.Equal(t, corpus, got)

	got, err = idx.DocumentChunks(ctx, "1", "a", 2)
	require.NoError(t, err)
	assert.Equal(t, corpus[:2], got)

	sample, err := idx.SampleChunks(ctx, "1", 0)
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, corpus...), "Unrelated chunk about volcanoes."), sample)

	other, err := idx.SampleChunks(ctx, "2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDeletes(t *testing.T) {
	idx, _ := newIndex(t)
	ctx := context.Background()

	_, err := idx.EmbedAndStore(ctx, "1", "a", corpus)
	require.NoError(t, err)
	_, err = idx.EmbedAndStore(ctx, "1", "b", corpus[:1])
	require.NoError(t, err)

	status := idx.DeleteByIDs(ctx, "1", []string{domain.ChunkKey("a", 0)})
	assert.True(t, status.OK())
	assert.Equal(t, 1, status.Attempted)
	got, err := idx.DocumentChunks(ctx, "1", "a", 0)
	require.NoError(t, err)
	assert.Equal(t, corpus[1:], got)

	status = idx.DeleteByDocument(ctx, "1", "a")
	assert.True(t, status.OK())
	got, err = idx.DocumentChunks(ctx, "1", "a", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	remaining, err := idx.SampleChunks(ctx, "1", 0)
	require.NoError(t, err)
	assert.Equal(t, corpus[:1], remaining)

	status = idx.DeleteCollection(ctx, "1")
	assert.True(t, status.OK())
	hits, err := idx.Search(ctx, "1", corpus[0], 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Deleting what no longer exists is not a failure.
	assert.True(t, idx.DeleteCollection(ctx, "1").OK())
}

func TestEmbedAndStore_RollsBackPartialWrite(t *testing.T) {
	inner, err := chromem.New(chromem.Config{}, nil)
	require.NoError(t, err)
	backend := &halfWriteBackend{Backend: inner}
	logger, logs := logging.NewObserved(zapcore.WarnLevel)
	idx := vectorindex.New(hashing.NewEncoder(128), backend, nil, logger)
	ctx := context.Background()

	_, err = idx.EmbedAndStore(ctx, "1", "7", corpus)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.True(t, backend.wrote)

	got, err := idx.DocumentChunks(ctx, "1", "7", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, logs.FilterMessage("chunk write failed, rolled back").Len())
}

func TestEmbedAndStore_EncoderFailureWritesNothing(t *testing.T) {
	inner, err := chromem.New(chromem.Config{}, nil)
	require.NoError(t, err)
	backend := &halfWriteBackend{Backend: inner}
	enc := &countingEncoder{Encoder: hashing.NewEncoder(64), err: errors.New("model offline")}
	idx := vectorindex.New(enc, backend, nil, nil)

	_, err = idx.EmbedAndStore(context.Background(), "1", "7", corpus)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, enc.err)
	assert.False(t, backend.wrote)
}

func TestSearch_EncoderFailureIsUpstream(t *testing.T) {
	backend, err := chromem.New(chromem.Config{}, nil)
	require.NoError(t, err)
	enc := &countingEncoder{Encoder: hashing.NewEncoder(64)}
	idx := vectorindex.New(enc, backend, nil, nil)
	ctx := context.Background()
	_, err = idx.EmbedAndStore(ctx, "1", "7", corpus)
	require.NoError(t, err)

	enc.err = errors.New("model offline")
	_, err = idx.Search(ctx, "1", "light energy", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.ErrorIs(t, err, enc.err)
}

func TestDeleteFailureIsReported(t *testing.T) {
	inner, err := chromem.New(chromem.Config{}, nil)
	require.NoError(t, err)
	backend := &halfWriteBackend{Backend: inner, deleteErr: errors.New("disk full")}
	logger, logs := logging.NewObserved(zapcore.WarnLevel)
	idx := vectorindex.New(hashing.NewEncoder(64), backend, nil, logger)

	status := idx.DeleteByDocument(context.Background(), "1", "7")
	assert.False(t, status.OK())
	assert.EqualError(t, status.Err, "disk full")
	assert.Equal(t, 1, logs.FilterMessage("vector cleanup failed").Len())
}

type countingEncoder struct {
	*hashing.Encoder
	calls int
	err   error
}

func (c *countingEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Encoder.Encode(ctx, texts)
}

// halfWriteBackend stores the first half of every batch and then fails.
type halfWriteBackend struct {
	*chromem.Backend
	wrote     bool
	deleteErr error
}

func (h *halfWriteBackend) Upsert(ctx context.Context, name string, records []domain.EmbeddingRecord) error {
	half := records[:len(records)/2]
	if len(half) > 0 {
		if err := h.Backend.Upsert(ctx, name, half); err != nil {
			return err
		}
		h.wrote = true
	}
	return errors.New("connection reset")
}

func (h *halfWriteBackend) DeleteByDocument(ctx context.Context, name, documentID string) error {
	if h.deleteErr != nil {
		return h.deleteErr
	}
	return h.Backend.DeleteByDocument(ctx, name, documentID)
}
