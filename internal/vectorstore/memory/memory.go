package memory

import (
	"context"
	"fmt"
	"sync"

	"groundchat/internal/domain"
	"groundchat/internal/vectorstore"
)

// Storage is an in-memory vector index using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	chunks    []domain.Chunk
	ids       map[string]struct{}
}

func NewStorage() *Storage { return &Storage{ids: make(map[string]struct{})} }

// Insert appends chunk. The first insert fixes the index dimension.
func (s *Storage) Insert(_ context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[chunk.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, chunk.ID)
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s has no vector", domain.ErrDimensionMismatch, chunk.ID)
	}
	if len(s.chunks) == 0 {
		s.dimension = len(chunk.Vector)
	} else if len(chunk.Vector) != s.dimension {
		return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d", domain.ErrDimensionMismatch, chunk.ID, len(chunk.Vector), s.dimension)
	}
	s.chunks = append(s.chunks, chunk)
	s.ids[chunk.ID] = struct{}{}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := vectorstore.CheckSearch(len(s.chunks), s.dimension, k, vector); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, len(s.chunks))
	for i, ch := range s.chunks {
		results[i] = domain.SearchResult{Chunk: ch, Score: vectorstore.Cosine(vector, ch.Vector)}
	}
	return vectorstore.TopK(results, k), nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.ids = make(map[string]struct{})
	s.dimension = 0
	return nil
}
