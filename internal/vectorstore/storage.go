// Package vectorstore holds the similarity and ranking helpers shared by the
// VectorIndex backends in its subpackages.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"groundchat/internal/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is the
// zero vector. Callers check dimensions first.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK orders results by descending score and returns at most k of them.
// results must be in insertion order; equal scores keep that order.
func TopK(results []domain.SearchResult, k int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// CheckSearch validates search arguments common to every backend.
func CheckSearch(size, dim, k int, query []float64) error {
	if k < 1 {
		return domain.ErrInvalidK
	}
	if size == 0 {
		return domain.ErrEmptyIndex
	}
	if len(query) != dim {
		return fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(query), dim)
	}
	return nil
}
