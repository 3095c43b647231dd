package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PDFCHAT_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, "openai", cfg.ChatProvider)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes)
	assert.True(t, cfg.RetryTimeouts)
	assert.Equal(t, RAG{
		ChunkSize:        200,
		ChunkOverlap:     20,
		RetrievalK:       3,
		SystemPersona:    "Max",
		ModelTemperature: 0.7,
		MaxIterations:    8,
		IndexUnit:        "passage",
	}, cfg.RAG)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("MODEL_TEMPERATURE", "0.2")
	t.Setenv("INDEX_UNIT", "page")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://chat.example.com")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("EMBED_BATCH_SIZE", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 0.2, cfg.RAG.ModelTemperature)
	assert.Equal(t, "page", cfg.RAG.IndexUnit)
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 64, cfg.EmbedBatchSize, "non-positive values fall back to the default")
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rag:
  chunk_size: 400
  system_persona: Ada
  max_duration: 30s
`), 0o644))
	t.Setenv("PDFCHAT_CONFIG", path)
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("SYSTEM_PERSONA", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.RAG.ChunkSize)
	assert.Equal(t, 20, cfg.RAG.ChunkOverlap, "keys absent from the file keep defaults")
	assert.Equal(t, "Ada", cfg.RAG.SystemPersona)
	assert.Equal(t, 30*time.Second, cfg.RAG.MaxDuration)

	// Environment wins over the file.
	t.Setenv("SYSTEM_PERSONA", "Grace")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "Grace", cfg.RAG.SystemPersona)
}

func TestLoad_YAMLErrors(t *testing.T) {
	t.Setenv("PDFCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rag: [unclosed"), 0o644))
	t.Setenv("PDFCHAT_CONFIG", bad)
	_, err = Load()
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		EmbeddingProvider: "openai",
		ChatProvider:      "openai",
		OpenAIAPIKey:      "sk-test",
		RAG:               defaultRAG(),
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(*Config){
		"overlap equals size":   func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize },
		"negative overlap":      func(c *Config) { c.RAG.ChunkOverlap = -1 },
		"zero chunk size":       func(c *Config) { c.RAG.ChunkSize = 0 },
		"temperature too high":  func(c *Config) { c.RAG.ModelTemperature = 3 },
		"bad index unit":        func(c *Config) { c.RAG.IndexUnit = "sentence" },
		"missing openai key":    func(c *Config) { c.OpenAIAPIKey = "" },
		"unknown embedder":      func(c *Config) { c.EmbeddingProvider = "word2vec" },
		"anthropic without key": func(c *Config) { c.ChatProvider = "anthropic" },
		"unknown chat provider": func(c *Config) { c.ChatProvider = "palm" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidate_LocalProviders(t *testing.T) {
	c := validConfig()
	c.OpenAIAPIKey = ""
	c.EmbeddingProvider = "ollama"
	c.ChatProvider = "anthropic"
	c.AnthropicAPIKey = "ak"
	assert.NoError(t, c.Validate())
	assert.Equal(t, "ak", c.ChatAPIKey())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PDFCHAT_DOTENV_PROBE=loaded\n"), 0o644))
	t.Setenv("PDFCHAT_DOTENV_PROBE", "")
	os.Unsetenv("PDFCHAT_DOTENV_PROBE")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("PDFCHAT_DOTENV_PROBE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}
