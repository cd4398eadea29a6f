package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"docqa/internal/domain"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 30 * time.Second
)

// Client is an OpenAI-compatible embeddings client. Every call is a single
// attempt; failures are returned to the caller.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// BreakerConfig configures the circuit breaker guarding the provider.
type BreakerConfig struct {
	Enabled             bool
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv when set.
	APIKey            string
	Model             string
	Timeout           time.Duration
	Dimension         int
	RequestsPerSecond float64
	Breaker           BreakerConfig
	Logger            *slog.Logger
}

// NewClient creates a new embeddings client. A missing API key is not an
// error here: the client reports it from Embed without touching the network.
func NewClient(cfg Config) *Client {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = domain.EmbeddingDimension
	}
	t := cfg.Timeout
	if t == 0 {
		t = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    key,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: t},
		logger:    logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(cfg.Breaker, logger)
	}
	return c
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embeddings",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Name returns the identifier of this provider.
func (c *Client) Name() string { return "openai" }

// Model returns the embedding model sent with every request.
func (c *Client) Model() string { return c.model }

// Dimension returns the expected length of returned vectors.
func (c *Client) Dimension() int { return c.dimension }

// Configured reports whether a credential is available.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := otel.Tracer("docqa/embedding/openai").Start(ctx, "openai.embeddings")
	defer span.End()
	span.SetAttributes(
		attribute.String("embedding.model", c.model),
		attribute.Int("embedding.input_bytes", len(text)),
	)

	if !c.Configured() {
		span.SetAttributes(attribute.Bool("embedding.configured", false))
		return nil, domain.ErrMissingAPIKey
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.SetAttributes(attribute.Bool("embedding.rate_limited", true))
			return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrProvider, err)
		}
	}
	if c.breaker == nil {
		return c.embed(ctx, text)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("embedding.circuit_breaker_open", true))
			return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
		return nil, err
	}
	return out.([]float64), nil
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

func (c *Client) embed(ctx context.Context, text string) ([]float64, error) {
	data, err := json.Marshal(embeddingRequest{Input: text, Model: c.model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", domain.ErrProvider, err)
	}
	if resp.StatusCode >= 300 {
		c.logger.Debug("embeddings request rejected", "status", resp.Status, "body", truncate(string(payload), 512))
		return nil, fmt.Errorf("%w: openai embeddings failed: %s", domain.ErrProvider, resp.Status)
	}

	v, err := decodeEmbedding(payload)
	if err != nil {
		return nil, err
	}
	if len(v) != c.dimension {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", domain.ErrProvider, c.dimension, len(v))
	}
	return v, nil
}

// decodeEmbedding accepts the OpenAI shape and the Ollama-native
// {"embedding": [...]} shape.
func decodeEmbedding(payload []byte) ([]float64, error) {
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, nil
		}
	}
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}
	return nil, fmt.Errorf("%w: no embedding returned", domain.ErrProvider)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
