package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/domain"
)

func doc(content string) domain.Document {
	return domain.Document{ID: "doc1", Source: "plans.txt", Content: content}
}

func TestWindowChunker_EmptyInput(t *testing.T) {
	chunks, err := NewWindowChunker(100, 0).Chunk(doc("   \n "))
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestWindowChunker_ShortContentIsOneChunk(t *testing.T) {
	text := "Plan A costs $10/month and includes 5GB data."
	chunks, err := NewWindowChunker(1000, 0).Chunk(doc(text))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, text, c.Text)
	assert.Equal(t, "doc1", c.DocumentID)
	assert.Equal(t, "plans.txt", c.Source)
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, ChunkID("doc1", 0), c.ID)
}

func TestWindowChunker_RespectsSizeAndWordBoundaries(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 20)
	chunks, err := NewWindowChunker(50, 0).Chunk(doc(text))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 50)
		assert.Equal(t, i, c.Index)
		for _, w := range strings.Fields(c.Text) {
			assert.Contains(t, []string{"alpha", "beta", "gamma", "delta"}, w)
		}
	}
}

func TestWindowChunker_Overlap(t *testing.T) {
	text := "0123456789abcdefghij"
	chunks, err := NewWindowChunker(10, 4).Chunk(doc(text))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "0123456789", chunks[0].Text)
	assert.Equal(t, "6789abcdef", chunks[1].Text)
	assert.Equal(t, "cdefghij", chunks[2].Text)
}

func TestWindowChunker_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("é", 25)
	chunks, err := NewWindowChunker(10, 0).Chunk(doc(text))
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0].Text)
	assert.Equal(t, strings.Repeat("é", 5), chunks[2].Text)
}

func TestChunkID_Deterministic(t *testing.T) {
	assert.Equal(t, ChunkID("d", 3), ChunkID("d", 3))
	assert.NotEqual(t, ChunkID("d", 3), ChunkID("d", 4))
	assert.NotEqual(t, ChunkID("d", 3), ChunkID("e", 3))
}

func TestSentenceChunker_GroupsWithOverlap(t *testing.T) {
	text := "One. Two! Three? Four. Five."
	chunks, err := NewSentenceChunker(2, 1).Chunk(doc(text))
	require.NoError(t, err)

	var got []string
	for _, c := range chunks {
		got = append(got, c.Text)
	}
	assert.Equal(t, []string{"One. Two!", "Two! Three?", "Three? Four.", "Four. Five."}, got)
}

func TestSentenceChunker_KeepsTrailingFragment(t *testing.T) {
	chunks, err := NewSentenceChunker(5, 0).Chunk(doc("First sentence. trailing words without stop"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "First sentence. trailing words without stop", chunks[0].Text)
}

func TestSentenceChunker_NoTerminator(t *testing.T) {
	chunks, err := NewSentenceChunker(5, 0).Chunk(doc("  just words  "))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "just words", chunks[0].Text)
}
