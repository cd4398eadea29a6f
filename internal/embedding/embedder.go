// Package embedding turns text into vectors and applies the fail-open
// policy: a provider failure yields an all-zero vector instead of an error.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"docqa/internal/domain"
)

// Source tells whether a vector came from the provider or is the fallback.
type Source int

const (
	SourceComputed Source = iota
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceComputed:
		return "computed"
	case SourceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Embedding is the outcome of a single embed call. Err holds the cause when
// Source is SourceFallback.
type Embedding struct {
	Vector []float64
	Source Source
	Err    error
}

// Fallback reports whether the vector is the all-zero substitute.
func (e Embedding) Fallback() bool { return e.Source == SourceFallback }

// ZeroVector returns the fallback embedding of the given length.
func ZeroVector(dimension int) []float64 { return make([]float64, dimension) }

// FallbackEmbedder wraps a provider and never fails outwardly.
type FallbackEmbedder struct {
	provider  domain.VectorProvider
	logger    *slog.Logger
	warnNoKey sync.Once
}

// NewFallbackEmbedder returns an embedder backed by provider. A nil provider
// behaves like an unconfigured one.
func NewFallbackEmbedder(provider domain.VectorProvider, logger *slog.Logger) *FallbackEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackEmbedder{provider: provider, logger: logger}
}

// Embed returns the provider's vector, or a zero vector of
// domain.EmbeddingDimension when the provider is missing or fails.
func (e *FallbackEmbedder) Embed(ctx context.Context, text string) Embedding {
	if e.provider == nil {
		return e.fallback(domain.ErrMissingAPIKey)
	}
	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return e.fallback(err)
	}
	if len(vec) != domain.EmbeddingDimension {
		return e.fallback(fmt.Errorf("%w: provider returned %d values, want %d",
			domain.ErrDimensionMismatch, len(vec), domain.EmbeddingDimension))
	}
	return Embedding{Vector: vec, Source: SourceComputed}
}

func (e *FallbackEmbedder) fallback(cause error) Embedding {
	if errors.Is(cause, domain.ErrMissingAPIKey) {
		e.warnNoKey.Do(func() {
			e.logger.Warn("embedding provider not configured, using zero vectors")
		})
		e.logger.Debug("embedding provider not configured, using zero vector")
	} else {
		e.logger.Warn("embedding failed, using zero vector", "error", cause)
	}
	return Embedding{Vector: ZeroVector(domain.EmbeddingDimension), Source: SourceFallback, Err: cause}
}
