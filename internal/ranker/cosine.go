// Package ranker scores candidate chunks against a query vector.
package ranker

import (
	"fmt"
	"math"
	"sort"

	"docqa/internal/domain"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|). Vectors of different length
// are an error; a zero-norm vector scores 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Rank scores every candidate and returns the best domain.TopK results in
// descending score order. Equal scores keep candidate order.
func Rank(query []float64, candidates []domain.Candidate) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("rank %q: %w", c.DocumentName, err)
		}
		results = append(results, domain.SearchResult{
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Content:      c.Content,
			Score:        score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > domain.TopK {
		results = results[:domain.TopK]
	}
	return results, nil
}
