package service

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
)

// Source is a citation handed to the answering model's caller.
type Source struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	Content      string `json:"content"`
}

// Sources returns the citations for results, in result order.
func Sources(results []domain.SearchResult) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		out[i] = Source{DocumentID: r.DocumentID, DocumentName: r.DocumentName, Content: r.Content}
	}
	return out
}

// GroundingContext formats results as the document context of an answer prompt.
func GroundingContext(results []domain.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Document: %s\nContent: %s", r.DocumentName, r.Content)
	}
	return strings.Join(blocks, "\n\n")
}
