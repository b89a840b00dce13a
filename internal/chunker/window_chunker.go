// Package chunker splits documents into retrievable chunks.
package chunker

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"groundchat/internal/domain"
)

// chunkNamespace scopes the name-based UUIDs used as chunk ids.
var chunkNamespace = uuid.MustParse("6f1c2a52-0d3e-4d8e-9a57-3f0b5f1f7c21")

// ChunkID derives the chunk id for the index-th chunk of a document. The same
// document and index always produce the same id.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+":"+strconv.Itoa(index))).String()
}

func newChunk(doc domain.Document, index int, text string) domain.Chunk {
	return domain.Chunk{
		ID:         ChunkID(doc.ID, index),
		DocumentID: doc.ID,
		Source:     doc.Source,
		Index:      index,
		Text:       text,
	}
}

// WindowChunker cuts text into fixed-size windows of runes. Consecutive
// windows share overlap runes. Window ends snap back to the last whitespace
// so words are not split.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &WindowChunker{size: size, overlap: overlap}
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	runes := []rune(strings.TrimSpace(document.Content))
	if len(runes) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSpace(runes[start:end]); cut > 0 {
			end = start + cut
		}
		if text := strings.TrimSpace(string(runes[start:end])); text != "" {
			chunks = append(chunks, newChunk(document, len(chunks), text))
		}
		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i > 0; i-- {
		if unicode.IsSpace(rs[i]) {
			return i
		}
	}
	return -1
}
