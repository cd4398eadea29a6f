package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/embedding/openai"
	"docqa/internal/logger"
	"docqa/internal/service"
	"docqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, query, logFile string
	var asJSON bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")
	flag.StringVar(&query, "query", "", "Answer a single query and exit instead of starting the TUI")
	flag.BoolVar(&asJSON, "json", false, "With -query, print results as JSON")
	flag.StringVar(&logFile, "log-file", "", "Write logs to this file (the TUI discards logs otherwise)")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: docqa [--config=config.yaml] [--query=question] file1.txt [file2.txt ...]")
		os.Exit(1)
	}
	if err := run(cfgPath, query, logFile, asJSON, inputs); err != nil {
		log.Fatal(err)
	}
}

func run(cfgPath, query, logFile string, asJSON bool, inputs []string) error {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var logOut io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	} else if query == "" {
		logOut = io.Discard
	}
	lg := logger.New(logOut, cfg.Log)
	slog.SetDefault(lg)

	ch, err := newChunker(cfg)
	if err != nil {
		return err
	}
	provider, configured := newProvider(cfg, lg)
	idx := service.NewIndexer(
		ch,
		embedding.NewFallbackEmbedder(provider, lg),
		service.WithLogger(lg),
		service.WithConcurrency(cfg.Indexer.EmbedConcurrency),
	)

	docs, err := loadDocuments(inputs)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	ctx := context.Background()
	var chunks, fallbacks int
	if configured {
		for i := range docs {
			var stats service.ProcessStats
			docs[i], stats = idx.ProcessDocumentStats(ctx, docs[i])
			chunks += stats.Chunks
			fallbacks += stats.Fallbacks
		}
	} else {
		lg.Warn("embedding provider not configured, documents are searched lexically")
	}
	summary := fmt.Sprintf("%d documents, %d chunks, %d fallback embeddings", len(docs), chunks, fallbacks)
	lg.Info("documents loaded", "documents", len(docs), "chunks", chunks, "fallbacks", fallbacks)

	if query != "" {
		return answer(ctx, os.Stdout, idx, query, docs, asJSON)
	}

	m := tui.New(idx, docs, summary)
	_, err = tea.NewProgram(m).Run()
	return err
}

func newChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "paragraph":
		return chunker.NewParagraphChunker(cfg.Chunker.MaxChunkSize), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
}

// newProvider builds the embedding provider and reports whether it has a
// credential. A nil provider means embeddings are disabled.
func newProvider(cfg *config.AppConfig, lg *slog.Logger) (domain.VectorProvider, bool) {
	switch cfg.Embedder.Type {
	case "openai":
		o := cfg.Embedder.OpenAI
		client := openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			RequestsPerSecond: o.RequestsPerSecond,
			Breaker: openai.BreakerConfig{
				Enabled:             o.Breaker.Enabled,
				ConsecutiveFailures: uint32(o.Breaker.ConsecutiveFailures),
				OpenTimeout:         time.Duration(o.Breaker.OpenTimeoutSecs) * time.Second,
			},
			Logger: lg,
		})
		if !client.Configured() {
			lg.Warn("embedding API key is not set", "env", o.APIKeyEnv)
		}
		return client, client.Configured()
	default:
		return nil, false
	}
}

func answer(ctx context.Context, w io.Writer, idx *service.Indexer, query string, docs []domain.Document, asJSON bool) error {
	results, mode := idx.Search(ctx, query, docs)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Mode    domain.SearchMode     `json:"mode"`
			Results []domain.SearchResult `json:"results"`
			Sources []service.Source      `json:"sources"`
			Context string                `json:"context"`
		}{mode, results, service.Sources(results), service.GroundingContext(results)})
	}
	if len(results) == 0 {
		_, err := fmt.Fprintf(w, "No matching documents (%s search).\n", mode)
		return err
	}
	_, err := fmt.Fprintf(w, "Mode: %s\n\n%s\n", mode, service.GroundingContext(results))
	return err
}
