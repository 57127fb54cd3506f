package qdrant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

func TestPointID_StableUUID(t *testing.T) {
	a := PointID(domain.ChunkKey("7", 0))
	b := PointID(domain.ChunkKey("7", 0))
	c := PointID(domain.ChunkKey("7", 1))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestPayloadRoundTrip(t *testing.T) {
	rec := domain.EmbeddingRecord{
		ID:         domain.ChunkKey("7", 3),
		Text:       "Cells divide by mitosis.",
		DocumentID: "7",
		ChunkIndex: 3,
	}
	payload := payloadOf(rec)
	assert.Equal(t, "7", payload[keyDocumentID].GetStringValue())
	assert.Equal(t, "3", payload[keyChunkIndex].GetStringValue())

	assert.Equal(t, rec, recordOf(payload))
}

func TestDocumentFilter(t *testing.T) {
	assert.Nil(t, documentFilter(""))

	f := documentFilter("7")
	require.Len(t, f.GetMust(), 1)
	field := f.GetMust()[0].GetField()
	assert.Equal(t, keyDocumentID, field.GetKey())
	assert.Equal(t, "7", field.GetMatch().GetKeyword())
}

func TestDeleteByDocument_RequiresID(t *testing.T) {
	err := (&Backend{}).DeleteByDocument(context.Background(), "workspace_1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
