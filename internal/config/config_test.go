package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, 1000, cfg.Chunker.MaxChunkSize)
	assert.Equal(t, 8, cfg.Indexer.EmbedConcurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Embedder.OpenAI.Breaker.Enabled)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
embedder:
  type: openai
  openai:
    base_url: http://localhost:11434/v1
    requests_per_second: 5
    breaker:
      enabled: true
chunker:
  max_chunk_size: 500
log:
  level: debug
  format: text
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, 5.0, cfg.Embedder.OpenAI.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Embedder.OpenAI.Breaker.ConsecutiveFailures)
	assert.Equal(t, 30, cfg.Embedder.OpenAI.Breaker.OpenTimeoutSecs)
	assert.Equal(t, "paragraph", cfg.Chunker.Type)
	assert.Equal(t, 500, cfg.Chunker.MaxChunkSize)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadRejectsUnknownTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: tfidf\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown embedder")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Embedder.Type = "none"
	cfg.Embedder.OpenAI = nil
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "none", loaded.Embedder.Type)
	assert.Nil(t, loaded.Embedder.OpenAI)
}

func TestLoadDefaultWritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "docqa", "config.yaml"), path)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.FileExists(t, path)
}
