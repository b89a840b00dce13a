// Package retriever fetches the passages most similar to a query.
package retriever

import (
	"context"
	"fmt"

	"groundchat/internal/domain"
)

// Retriever embeds the query at retrieval time and delegates similarity
// search to the index. It never mutates the index.
type Retriever struct {
	embedder    domain.Embedder
	index       domain.VectorIndex
	defaultTopK int
}

// New constructs a Retriever. defaultTopK is used when Retrieve is called with k <= 0.
func New(embedder domain.Embedder, index domain.VectorIndex, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retriever: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("retriever: index must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Retriever{embedder: embedder, index: index, defaultTopK: defaultTopK}, nil
}

// Retrieve returns at most k chunks ordered by descending similarity to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = r.defaultTopK
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	res, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return res, nil
}
