package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"docqa/internal/domain"
	"docqa/internal/embedding"
)

type metrics struct {
	embeddings metric.Int64Counter
	searches   metric.Int64Counter
}

func newMetrics(logger *slog.Logger) *metrics {
	meter := otel.Meter(tracerName)
	embeddings, err := meter.Int64Counter(
		"docqa.embeddings",
		metric.WithDescription("Embedding outcomes by kind and source"),
	)
	if err != nil {
		logger.Warn("embeddings counter unavailable", "error", err)
		embeddings, _ = noop.Meter{}.Int64Counter("docqa.embeddings")
	}
	searches, err := meter.Int64Counter(
		"docqa.searches",
		metric.WithDescription("Searches by mode"),
	)
	if err != nil {
		logger.Warn("searches counter unavailable", "error", err)
		searches, _ = noop.Meter{}.Int64Counter("docqa.searches")
	}
	return &metrics{embeddings: embeddings, searches: searches}
}

func (m *metrics) recordEmbedding(ctx context.Context, kind string, src embedding.Source) {
	m.embeddings.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("source", src.String()),
	))
}

func (m *metrics) recordSearch(ctx context.Context, mode domain.SearchMode) {
	m.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", string(mode))))
}
