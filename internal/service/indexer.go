package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/lexical"
	"docqa/internal/ranker"
)

const tracerName = "docqa/service"

// Embedder produces an embedding outcome and never fails outwardly.
// *embedding.FallbackEmbedder is the production implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) embedding.Embedding
}

// ProcessStats summarizes a ProcessDocument call.
type ProcessStats struct {
	Chunks    int
	Fallbacks int
}

// Option customizes an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger used for degraded-path reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Indexer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency bounds the number of in-flight embedding calls per document.
func WithConcurrency(n int) Option {
	return func(s *Indexer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Indexer chunks and embeds documents, and answers queries over them.
// It holds no per-request state and is safe for concurrent use.
type Indexer struct {
	chunker     domain.Chunker
	embedder    Embedder
	concurrency int
	logger      *slog.Logger
	metrics     *metrics
}

func NewIndexer(chunker domain.Chunker, embedder Embedder, opts ...Option) *Indexer {
	s := &Indexer{
		chunker:     chunker,
		embedder:    embedder,
		concurrency: 8,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.logger)
	return s
}

// ProcessDocument returns a copy of doc with its chunks and their embeddings.
func (s *Indexer) ProcessDocument(ctx context.Context, doc domain.Document) domain.Document {
	out, _ := s.ProcessDocumentStats(ctx, doc)
	return out
}

// ProcessDocumentStats is ProcessDocument that also reports how many chunk
// embeddings fell back to the zero vector.
func (s *Indexer) ProcessDocumentStats(ctx context.Context, doc domain.Document) (domain.Document, ProcessStats) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "indexer.process_document")
	defer span.End()

	texts := s.chunker.Chunk(doc.Content)
	chunks := make([]domain.DocumentChunk, len(texts))
	sources := make([]embedding.Source, len(texts))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			e := s.embedder.Embed(ctx, text)
			chunks[i] = domain.DocumentChunk{Content: text, Embedding: e.Vector}
			sources[i] = e.Source
			return nil
		})
	}
	_ = g.Wait()

	stats := ProcessStats{Chunks: len(chunks)}
	for _, src := range sources {
		s.metrics.recordEmbedding(ctx, "chunk", src)
		if src == embedding.SourceFallback {
			stats.Fallbacks++
		}
	}
	span.SetAttributes(
		attribute.Int("document.chunks", stats.Chunks),
		attribute.Int("document.fallback_embeddings", stats.Fallbacks),
	)
	if stats.Fallbacks > 0 {
		s.logger.Warn("document processed with fallback embeddings",
			"document_id", doc.ID, "chunks", stats.Chunks, "fallbacks", stats.Fallbacks)
	} else {
		s.logger.Debug("document processed", "document_id", doc.ID, "chunks", stats.Chunks)
	}

	out := doc
	out.Chunks = chunks
	return out, stats
}

// SearchDocuments returns the most relevant chunks for query.
func (s *Indexer) SearchDocuments(ctx context.Context, query string, docs []domain.Document) []domain.SearchResult {
	results, _ := s.Search(ctx, query, docs)
	return results
}

// Search is SearchDocuments that also reports which mode produced the
// results. Any failure on the semantic path moves the whole query to
// lexical search.
func (s *Indexer) Search(ctx context.Context, query string, docs []domain.Document) ([]domain.SearchResult, domain.SearchMode) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "indexer.search")
	defer span.End()

	mode := domain.SearchModeSemantic
	results, err := s.semanticSearch(ctx, query, docs)
	if err != nil {
		s.logger.Warn("semantic search unavailable, using lexical search", "error", err)
		mode = domain.SearchModeLexical
		results = lexical.Search(query, docs)
	}
	s.metrics.recordSearch(ctx, mode)
	span.SetAttributes(
		attribute.String("search.mode", string(mode)),
		attribute.Int("search.documents", len(docs)),
		attribute.Int("search.results", len(results)),
	)
	return results, mode
}

func (s *Indexer) semanticSearch(ctx context.Context, query string, docs []domain.Document) (results []domain.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("semantic search panicked: %v", r)
		}
	}()

	q := s.embedder.Embed(ctx, query)
	s.metrics.recordEmbedding(ctx, "query", q.Source)
	if q.Fallback() {
		return nil, fmt.Errorf("embed query: %w", q.Err)
	}

	var candidates []domain.Candidate
	for _, doc := range docs {
		if doc.Processed() {
			for _, ch := range doc.Chunks {
				candidates = append(candidates, domain.Candidate{
					DocumentID:   doc.ID,
					DocumentName: doc.Name,
					Content:      ch.Content,
					Embedding:    ch.Embedding,
				})
			}
			continue
		}
		e := s.embedder.Embed(ctx, doc.Content)
		s.metrics.recordEmbedding(ctx, "document", e.Source)
		candidates = append(candidates, domain.Candidate{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			Content:      doc.Content,
			Embedding:    e.Vector,
		})
	}
	return ranker.Rank(q.Vector, candidates)
}
