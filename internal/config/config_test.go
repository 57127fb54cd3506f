package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, "ollama", cfg.LLM.Type)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
chunker:
  chunk_size: 800
embedder:
  type: ollama
  dimension: 1024
llm:
  model: qwen2.5
  timeout_secs: 30
vector_store:
  type: qdrant
  qdrant:
    host: qdrant.internal
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, "bge-m3", cfg.Embedder.Model)
	assert.Equal(t, 32, cfg.Embedder.BatchSize)
	assert.Equal(t, "qwen2.5", cfg.LLM.Model)
	assert.Equal(t, "ollama", cfg.LLM.Type)
	assert.Equal(t, float64(30), cfg.LLM.Timeout().Seconds())
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "llm:\n  model: qwen2.5\n")
	t.Setenv("STUDYRAG_LLM__MODEL", "mistral")
	t.Setenv("STUDYRAG_CHUNKER__OVERLAP", "50")
	t.Setenv("STUDYRAG_METRICS__ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"overlap too large", "chunker:\n  chunk_size: 100\n  overlap: 100\n"},
		{"remote embedder without dimension", "embedder:\n  type: openai\n  dimension: 0\n"},
		{"unknown embedder", "embedder:\n  type: tfidf\n"},
		{"unknown llm", "llm:\n  type: claude\n"},
		{"unknown vector store", "vector_store:\n  type: memory\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "chunker: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.LLM.Model = "phi3"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "phi3", got.LLM.Model)
	assert.Equal(t, cfg.Chunker, got.Chunker)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "studyrag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
}
