package domain

import "context"

// Embedder converts free text into a numeric vector representation.
// Every call on one instance returns vectors of the same Dimension.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Preparer is implemented by embedders that need a pass over the corpus
// (vocabulary, statistics) before they can embed anything.
type Preparer interface {
	Prepare(corpus []string) error
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorIndex stores chunk vectors and supports nearest-neighbour search by
// cosine similarity. Insertion is append-only.
type VectorIndex interface {
	Insert(ctx context.Context, chunk Chunk) error
	Search(ctx context.Context, vector []float64, k int) ([]SearchResult, error)
	Len() int
	Clear(ctx context.Context) error
}

// LLM turns a prompt into generated text.
type LLM interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}
