package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// EmbeddingDimension is the vector length produced by the embedding provider.
const EmbeddingDimension = 1536

// TopK is the number of results returned by both search modes.
const TopK = 3

// Document represents a single text document supplied by the caller.
// Chunks is nil until the document has been processed.
type Document struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Content string          `json:"content"`
	Chunks  []DocumentChunk `json:"chunks,omitempty"`
}

// NewDocument creates an unprocessed document with a fresh random id.
func NewDocument(name, content string) (Document, error) {
	if strings.TrimSpace(name) == "" || content == "" {
		return Document{}, errors.Join(ErrInvalidInput, errors.New("name and content are required"))
	}
	return Document{ID: uuid.NewString(), Name: name, Content: content}, nil
}

// Processed reports whether chunks have been computed for the document.
func (d Document) Processed() bool { return d.Chunks != nil }

// DocumentChunk is a contiguous piece of a document together with its embedding.
type DocumentChunk struct {
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding"`
}

// Candidate is a single row scored by the similarity ranker.
type Candidate struct {
	DocumentID   string
	DocumentName string
	Content      string
	Embedding    []float64
}

// SearchResult represents a matching chunk with a relevance score.
// Scores from semantic and lexical search are not comparable.
type SearchResult struct {
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// SearchMode names the path used to answer a query.
type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeLexical  SearchMode = "lexical"
)

// Chunker splits document text into chunks suitable for embedding.
type Chunker interface {
	Chunk(text string) []string
}

// VectorProvider returns the embedding of a text or an error.
type VectorProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
