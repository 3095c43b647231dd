// Package embedding provides text-embedding providers.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Embedder turns texts into fixed-dimension vectors. The returned slice is
// index-aligned with texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the expected vector size, or 0 when the provider
	// only learns it from the first response.
	Dimensions() int
	ModelName() string
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider          string // "openai", "ollama" or "hash"
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
}

// New builds the provider named by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg)
	case "ollama":
		return NewOllama(cfg)
	case "hash":
		return NewHash(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

// APIError is a non-2xx response from a provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding api status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

// transport holds what every provider client shares: an HTTP client,
// a per-call timeout and an optional outbound rate limiter.
type transport struct {
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
}

func newTransport(timeout time.Duration, rps float64) transport {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	t := transport{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
	if rps > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return t
}

// begin waits for the limiter and derives the per-call deadline.
func (t transport) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	return ctx, cancel, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
