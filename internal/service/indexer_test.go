package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/embedding/openai"
	"docqa/internal/lexical"
)

// --- Test doubles ---

type chunkerFunc func(string) []string

func (f chunkerFunc) Chunk(text string) []string { return f(text) }

// fakeEmbedder returns the configured vector for known texts and a
// three-dimensional zero fallback for everything else.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	delay   func(text string) time.Duration
	calls   []string
	active  atomic.Int32
	peak    atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) embedding.Embedding {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay != nil {
		time.Sleep(f.delay(text))
	}
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if v, ok := f.vectors[text]; ok {
		return embedding.Embedding{Vector: v, Source: embedding.SourceComputed}
	}
	return embedding.Embedding{Vector: make([]float64, 3), Source: embedding.SourceFallback, Err: domain.ErrProvider}
}

type panickingEmbedder struct{}

func (panickingEmbedder) Embed(context.Context, string) embedding.Embedding { panic("boom") }

func fixedChunks(chunks ...string) chunkerFunc {
	return func(string) []string { return chunks }
}

// --- ProcessDocument ---

func TestProcessDocumentPreservesChunkOrder(t *testing.T) {
	texts := make([]string, 10)
	vectors := map[string][]float64{}
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d", i)
		vectors[texts[i]] = []float64{float64(i), 1, 0}
	}
	emb := &fakeEmbedder{
		vectors: vectors,
		delay: func(text string) time.Duration {
			var i int
			_, _ = fmt.Sscanf(text, "chunk-%d", &i)
			return time.Duration(10-i) * 2 * time.Millisecond
		},
	}
	idx := NewIndexer(fixedChunks(texts...), emb, WithConcurrency(10))

	doc := domain.Document{ID: "d1", Name: "doc", Content: "ignored"}
	out, stats := idx.ProcessDocumentStats(context.Background(), doc)

	require.Len(t, out.Chunks, len(texts))
	for i, ch := range out.Chunks {
		assert.Equal(t, texts[i], ch.Content)
		assert.Equal(t, vectors[texts[i]], ch.Embedding)
	}
	assert.Equal(t, ProcessStats{Chunks: 10}, stats)
	assert.Nil(t, doc.Chunks, "input document must not be mutated")
	assert.Equal(t, "d1", out.ID)
}

func TestProcessDocumentPerChunkFallback(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"good": {1, 0, 0}}}
	idx := NewIndexer(fixedChunks("good", "bad", "good"), emb)

	out, stats := idx.ProcessDocumentStats(context.Background(), domain.Document{ID: "d"})
	require.Len(t, out.Chunks, 3)
	assert.Equal(t, []float64{1, 0, 0}, out.Chunks[0].Embedding)
	assert.Equal(t, []float64{0, 0, 0}, out.Chunks[1].Embedding)
	assert.Equal(t, []float64{1, 0, 0}, out.Chunks[2].Embedding)
	assert.Equal(t, ProcessStats{Chunks: 3, Fallbacks: 1}, stats)
}

func TestProcessDocumentRespectsConcurrencyLimit(t *testing.T) {
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	emb := &fakeEmbedder{delay: func(string) time.Duration { return 5 * time.Millisecond }}
	idx := NewIndexer(fixedChunks(texts...), emb, WithConcurrency(3))

	out := idx.ProcessDocument(context.Background(), domain.Document{})
	assert.Len(t, out.Chunks, 12)
	assert.LessOrEqual(t, emb.peak.Load(), int32(3))
	assert.Len(t, emb.calls, 12)
}

func TestProcessDocumentEmptyContent(t *testing.T) {
	idx := NewIndexer(chunker.NewParagraphChunker(0), &fakeEmbedder{})
	out := idx.ProcessDocument(context.Background(), domain.Document{ID: "d", Content: "  \n\n "})
	assert.True(t, out.Processed())
	assert.Empty(t, out.Chunks)
}

func TestProcessDocumentProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := openai.NewClient(openai.Config{BaseURL: url, APIKey: "k", Timeout: time.Second})
	idx := NewIndexer(chunker.NewParagraphChunker(100), embedding.NewFallbackEmbedder(client, nil))

	doc, err := domain.NewDocument("notes.txt", "First paragraph here.\n\nSecond paragraph here.\n\n"+
		"A third paragraph that is long enough to need its own chunk of text, certainly more than a hundred bytes in total.")
	require.NoError(t, err)

	out, stats := idx.ProcessDocumentStats(context.Background(), doc)
	require.NotEmpty(t, out.Chunks)
	assert.Equal(t, len(out.Chunks), stats.Fallbacks)
	zero := make([]float64, domain.EmbeddingDimension)
	for _, ch := range out.Chunks {
		assert.NotEmpty(t, ch.Content)
		assert.Equal(t, zero, ch.Embedding)
	}
}

// --- SearchDocuments ---

func TestSearchDocumentsSemantic(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"fruit?":      {1, 0, 0},
		"whole doc":   {0.9, 0.1, 0},
		"unprocessed": {0, 0, 0},
	}}
	idx := NewIndexer(fixedChunks(), emb)
	docs := []domain.Document{
		{ID: "a", Name: "a.txt", Chunks: []domain.DocumentChunk{
			{Content: "apples", Embedding: []float64{1, 0, 0}},
			{Content: "cars", Embedding: []float64{0, 1, 0}},
		}},
		{ID: "b", Name: "b.txt", Content: "whole doc"},
		{ID: "c", Name: "c.txt", Chunks: []domain.DocumentChunk{
			{Content: "pears", Embedding: []float64{0.8, 0.2, 0}},
			{Content: "fallback", Embedding: []float64{0, 0, 0}},
		}},
	}

	results, mode := idx.Search(context.Background(), "fruit?", docs)
	assert.Equal(t, domain.SearchModeSemantic, mode)
	require.Len(t, results, domain.TopK)
	assert.Equal(t, "apples", results[0].Content)
	assert.Equal(t, "a", results[0].DocumentID)
	assert.Equal(t, "whole doc", results[1].Content)
	assert.Equal(t, "b.txt", results[1].DocumentName)
	assert.Equal(t, "pears", results[2].Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSearchDocumentsQueryEmbeddingFailureMatchesLexical(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := NewIndexer(fixedChunks(), emb)
	docs := []domain.Document{
		{ID: "a", Name: "a.txt", Chunks: []domain.DocumentChunk{
			{Content: "apple apple banana", Embedding: []float64{1, 0, 0}},
			{Content: "cherry", Embedding: []float64{0, 1, 0}},
		}},
		{ID: "b", Name: "b.txt", Content: "an apple a day"},
	}

	results, mode := idx.Search(context.Background(), "apple", docs)
	assert.Equal(t, domain.SearchModeLexical, mode)
	assert.Equal(t, lexical.Search("apple", docs), results)
	assert.Equal(t, []string{"apple"}, emb.calls, "unprocessed documents are not embedded after the query fails")
}

func TestSearchDocumentsDimensionMismatchFallsBack(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"apple": {1, 0, 0}}}
	idx := NewIndexer(fixedChunks(), emb)
	docs := []domain.Document{{ID: "a", Name: "a.txt", Chunks: []domain.DocumentChunk{
		{Content: "apple pie", Embedding: []float64{1, 0}},
	}}}

	results, mode := idx.Search(context.Background(), "apple", docs)
	assert.Equal(t, domain.SearchModeLexical, mode)
	assert.Equal(t, lexical.Search("apple", docs), results)
}

func TestSearchDocumentsRecoversFromPanic(t *testing.T) {
	idx := NewIndexer(fixedChunks(), panickingEmbedder{})
	docs := []domain.Document{{ID: "a", Name: "a.txt", Content: "apple"}}

	var results []domain.SearchResult
	require.NotPanics(t, func() {
		results = idx.SearchDocuments(context.Background(), "apple", docs)
	})
	assert.Equal(t, lexical.Search("apple", docs), results)
}

func TestSearchDocumentsNoDocuments(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"q": {1, 0, 0}}}
	results, mode := NewIndexer(fixedChunks(), emb).Search(context.Background(), "q", nil)
	assert.Equal(t, domain.SearchModeSemantic, mode)
	assert.Empty(t, results)
}

func TestProcessThenSearchEndToEnd(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"Go has goroutines.":          {1, 0, 0},
		"Rust has ownership.":         {0, 1, 0},
		"How does Go do concurrency?": {0.9, 0.1, 0},
	}}
	idx := NewIndexer(chunker.NewParagraphChunker(20), emb)
	doc, err := domain.NewDocument("langs.txt", "Go has goroutines.\n\nRust has ownership.")
	require.NoError(t, err)

	processed := idx.ProcessDocument(context.Background(), doc)
	require.Len(t, processed.Chunks, 2)

	results := idx.SearchDocuments(context.Background(), "How does Go do concurrency?", []domain.Document{processed})
	require.Len(t, results, 2)
	assert.Equal(t, "Go has goroutines.", results[0].Content)
	assert.Equal(t, doc.ID, results[0].DocumentID)
}
