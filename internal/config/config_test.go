package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: postgres://localhost:5432/policies
  debug: true
embed_llm:
  base_url: http://localhost:11434/v1
  model: nomic-embed-text
inference_llm:
  base_url: https://api.groq.com/openai/v1
  key: sk-test
  model: llama-3.3-70b-versatile
rag:
  chunk_size: 800
  chunk_overlap: 100
  top_k: 3
  max_context_tokens: 4000
  max_attempts: 4
  request_delay_ms: 500
vector_cache:
  enabled: true
  path: /tmp/cache
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/policies", cfg.Database.DSN)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.InferLLM.Model)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 4, cfg.RAG.MaxAttempts)
	assert.Equal(t, 500, cfg.RAG.RequestDelayMS)
	assert.Equal(t, "/tmp/cache", cfg.Cache.Path)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
inference_llm:
  model: llama-3.3-70b-versatile
vector_cache:
  enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, cfg.RAG.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, DefaultTopK, cfg.RAG.TopK)
	assert.Equal(t, DefaultMaxAttempts, cfg.RAG.MaxAttempts)
	assert.Equal(t, DefaultRequestDelayMS, cfg.RAG.RequestDelayMS)
	assert.Equal(t, "./chromemdb", cfg.Cache.Path, "enabled cache gets a default path")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "env-groq-key")
	t.Setenv("EMBED_API_KEY", "env-embed-key")
	t.Setenv("DATABASE_DSN", "postgres://env-host:5432/policies")

	path := writeConfig(t, `
inference_llm:
  model: llama-3.3-70b-versatile
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-groq-key", cfg.InferLLM.Key)
	assert.Equal(t, "env-embed-key", cfg.EmbedLLM.Key)
	assert.Equal(t, "postgres://env-host:5432/policies", cfg.Database.DSN)
}

func TestLoadConfigFilePrecedesEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "env-groq-key")

	path := writeConfig(t, `
inference_llm:
  key: file-key
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.InferLLM.Key)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
