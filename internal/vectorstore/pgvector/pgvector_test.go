package pgvector

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/domain"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[1,0.5,-2]", VectorLiteral([]float64{1, 0.5, -2}))
	assert.Equal(t, "[]", VectorLiteral(nil))
}

func TestOpen_RejectsBadTableName(t *testing.T) {
	_, err := Open(context.Background(), "postgres://unused", "chunks; DROP TABLE x")
	assert.ErrorContains(t, err, "invalid table name")
}

// TestStorage_Postgres runs against a real database when GROUNDCHAT_PG_DSN is set.
func TestStorage_Postgres(t *testing.T) {
	dsn := os.Getenv("GROUNDCHAT_PG_DSN")
	if dsn == "" {
		t.Skip("GROUNDCHAT_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, "groundchat_test_chunks")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Clear(ctx))
	defer s.Clear(ctx)

	_, err = s.Search(ctx, []float64{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrEmptyIndex)

	require.NoError(t, s.Insert(ctx, domain.Chunk{ID: "a", Source: "s", Text: "a", Vector: []float64{1, 0}}))
	require.NoError(t, s.Insert(ctx, domain.Chunk{ID: "b", Source: "s", Text: "b", Vector: []float64{1, 0}}))
	require.NoError(t, s.Insert(ctx, domain.Chunk{ID: "c", Source: "s", Text: "c", Vector: []float64{0, 1}}))
	assert.ErrorIs(t, s.Insert(ctx, domain.Chunk{ID: "a", Vector: []float64{1, 0}}), domain.ErrDuplicateID)

	res, err := s.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Chunk.ID)
	assert.Equal(t, "b", res[1].Chunk.ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}
