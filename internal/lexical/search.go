// Package lexical implements the keyword fallback used when semantic search
// is unavailable.
package lexical

import (
	"sort"
	"strings"

	"docqa/internal/domain"
)

// Search scores each chunk (or the whole content of an unprocessed document)
// by the number of case-insensitive substring matches of the query terms,
// divided by the number of terms. Rows without a match are dropped and at
// most domain.TopK results are returned.
func Search(query string, documents []domain.Document) []domain.SearchResult {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []domain.SearchResult{}
	}
	results := []domain.SearchResult{}
	add := func(doc domain.Document, content string) {
		if score := Score(terms, content); score > 0 {
			results = append(results, domain.SearchResult{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				Content:      content,
				Score:        score,
			})
		}
	}
	for _, doc := range documents {
		if !doc.Processed() {
			add(doc, doc.Content)
			continue
		}
		for _, ch := range doc.Chunks {
			add(doc, ch.Content)
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > domain.TopK {
		results = results[:domain.TopK]
	}
	return results
}

// Score returns the normalized match count of lowercase terms in text.
// Matching is by substring, so "cat" also counts inside "category".
func Score(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, term := range terms {
		matches += strings.Count(lower, term)
	}
	return float64(matches) / float64(len(terms))
}
