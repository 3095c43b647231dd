package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	CORSOrigins []string

	// Embedding provider
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingBaseURL    string
	EmbeddingDimensions int
	EmbeddingRPS        float64
	EmbedBatchSize      int
	EmbedConcurrency    int

	// Chat provider
	ChatProvider string
	ChatModel    string
	ChatBaseURL  string

	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Per external call
	RequestTimeout time.Duration
	RetryTimeouts  bool

	RAG RAG

	// Upload limits
	MaxUploadBytes int64

	JobTTL         time.Duration
	LLMStatsWindow time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// RAG holds the retrieval and agent knobs. These may also come from the
// YAML file named by PDFCHAT_CONFIG.
type RAG struct {
	ChunkSize        int           `yaml:"chunk_size"`
	ChunkOverlap     int           `yaml:"chunk_overlap"`
	RetrievalK       int           `yaml:"retrieval_k"`
	SystemPersona    string        `yaml:"system_persona"`
	SystemPrompt     string        `yaml:"system_prompt"`
	ModelTemperature float64       `yaml:"model_temperature"`
	MaxIterations    int           `yaml:"max_iterations"`
	MaxDuration      time.Duration `yaml:"max_duration"`
	IndexUnit        string        `yaml:"index_unit"`
}

func defaultRAG() RAG {
	return RAG{
		ChunkSize:        200,
		ChunkOverlap:     20,
		RetrievalK:       3,
		SystemPersona:    "Max",
		ModelTemperature: 0.7,
		MaxIterations:    8,
		IndexUnit:        "passage",
	}
}

// LoadDotEnv loads a .env file into the environment. A missing file is
// not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load builds the configuration from defaults, the optional YAML file in
// PDFCHAT_CONFIG and the environment, in increasing precedence.
func Load() (Config, error) {
	rag := defaultRAG()
	if path := os.Getenv("PDFCHAT_CONFIG"); path != "" {
		if err := loadYAML(path, &rag); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Port:        envOr("PORT", "5000"),
		CORSOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		EmbeddingProvider:   envOr("EMBEDDING_PROVIDER", "openai"),
		EmbeddingModel:      os.Getenv("EMBEDDING_MODEL"),
		EmbeddingBaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		EmbeddingRPS:        envFloat("EMBEDDING_RPS", 0),
		EmbedBatchSize:      envInt("EMBED_BATCH_SIZE", 64),
		EmbedConcurrency:    envInt("EMBED_CONCURRENCY", 4),

		ChatProvider: envOr("CHAT_PROVIDER", "openai"),
		ChatModel:    os.Getenv("CHAT_MODEL"),
		ChatBaseURL:  os.Getenv("CHAT_BASE_URL"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		RequestTimeout: envDuration("REQUEST_TIMEOUT", 60*time.Second),
		RetryTimeouts:  envBool("RETRY_TIMEOUTS", true),

		RAG: RAG{
			ChunkSize:        envInt("CHUNK_SIZE", rag.ChunkSize),
			ChunkOverlap:     envInt("CHUNK_OVERLAP", rag.ChunkOverlap),
			RetrievalK:       envInt("RETRIEVAL_K", rag.RetrievalK),
			SystemPersona:    envOr("SYSTEM_PERSONA", rag.SystemPersona),
			SystemPrompt:     envOr("SYSTEM_PROMPT", rag.SystemPrompt),
			ModelTemperature: envFloat("MODEL_TEMPERATURE", rag.ModelTemperature),
			MaxIterations:    envInt("MAX_ITERATIONS", rag.MaxIterations),
			MaxDuration:      envDuration("AGENT_MAX_DURATION", rag.MaxDuration),
			IndexUnit:        envOr("INDEX_UNIT", rag.IndexUnit),
		},

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL:         envDuration("JOB_TTL", 1*time.Hour),
		LLMStatsWindow: envDuration("LLM_STATS_WINDOW", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 64
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.RAG.RetrievalK <= 0 {
		cfg.RAG.RetrievalK = 3
	}
	if cfg.RAG.MaxIterations <= 0 {
		cfg.RAG.MaxIterations = 8
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LLMStatsWindow <= 0 {
		cfg.LLMStatsWindow = 1 * time.Hour
	}

	return cfg, nil
}

// loadYAML overlays the keys present in the file onto rag.
func loadYAML(path string, rag *RAG) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return err
	}
	var file struct {
		RAG *RAG `yaml:"rag"`
	}
	file.RAG = rag
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings that would otherwise fail on first use.
func (c Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be > 0, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be >= 0 and < CHUNK_SIZE (%d), got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.ModelTemperature < 0 || c.RAG.ModelTemperature > 2 {
		return fmt.Errorf("MODEL_TEMPERATURE must be within [0, 2], got %g", c.RAG.ModelTemperature)
	}
	switch strings.ToLower(c.RAG.IndexUnit) {
	case "passage", "page":
	default:
		return fmt.Errorf("INDEX_UNIT must be passage or page, got %q", c.RAG.IndexUnit)
	}

	switch c.EmbeddingProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for EMBEDDING_PROVIDER=openai")
		}
	case "ollama", "hash":
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	switch c.ChatProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for CHAT_PROVIDER=openai")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for CHAT_PROVIDER=anthropic")
		}
	default:
		return fmt.Errorf("unknown CHAT_PROVIDER %q", c.ChatProvider)
	}
	return nil
}

// ChatAPIKey returns the key for the configured chat provider.
func (c Config) ChatAPIKey() string {
	if c.ChatProvider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
