// Package ingest turns raw documents into indexed, embedded chunks.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"groundchat/internal/domain"
)

// Stats summarises one ingestion run.
type Stats struct {
	Documents int
	Chunks    int
	Dimension int
	Elapsed   time.Duration
}

// Ingestor chunks documents, embeds every chunk and inserts it into the index.
type Ingestor struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	index    domain.VectorIndex
	logger   *log.Logger
}

func NewIngestor(chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, logger *log.Logger) *Ingestor {
	return &Ingestor{chunker: chunker, embedder: embedder, index: index, logger: logger}
}

// Ingest populates the index from documents. The index is expected to be
// empty. Any failure aborts the whole run; the index must then be cleared
// before it is served.
func (in *Ingestor) Ingest(ctx context.Context, documents []domain.Document) (Stats, error) {
	start := time.Now()
	var chunks []domain.Chunk
	for _, d := range documents {
		cs, err := in.chunker.Chunk(d)
		if err != nil {
			return Stats{}, fmt.Errorf("chunk %s: %w", d.Source, err)
		}
		in.logger.Debug("chunked document", "source", d.Source, "chunks", len(cs))
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return Stats{}, domain.ErrEmptyCorpus
	}

	if p, ok := in.embedder.(domain.Preparer); ok {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		if err := p.Prepare(texts); err != nil {
			return Stats{}, fmt.Errorf("prepare %s embedder: %w", in.embedder.Name(), err)
		}
	}

	for i := range chunks {
		vec, err := in.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return Stats{}, fmt.Errorf("embed chunk %d of %s: %w", chunks[i].Index, chunks[i].Source, err)
		}
		chunks[i].Vector = vec
		if err := in.index.Insert(ctx, chunks[i]); err != nil {
			return Stats{}, fmt.Errorf("index chunk %d of %s: %w", chunks[i].Index, chunks[i].Source, err)
		}
	}

	stats := Stats{
		Documents: len(documents),
		Chunks:    len(chunks),
		Dimension: in.embedder.Dimension(),
		Elapsed:   time.Since(start),
	}
	in.logger.Info("ingested corpus", "documents", stats.Documents, "chunks", stats.Chunks, "dim", stats.Dimension, "elapsed", stats.Elapsed)
	return stats, nil
}
