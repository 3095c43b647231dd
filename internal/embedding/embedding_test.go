package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/pdfchat/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsProvider(t *testing.T) {
	e, err := New(Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, e)
	assert.Equal(t, 1536, e.Dimensions())
	assert.Equal(t, DefaultOpenAIModel, e.ModelName())

	e, err = New(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, e)

	_, err = New(Config{Provider: "word2vec"})
	assert.Error(t, err)

	_, err = New(Config{Provider: "openai"})
	assert.Error(t, err, "missing API key")
}

func TestOpenAI_EmbedBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		assert.Equal(t, 2, req.Dimensions)

		// Deliberately out of order.
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAI_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestOpenAI_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, rag.IsTimeout(err), "expected timeout, got %v", err)
}

func TestOpenAI_EmptyInput(t *testing.T) {
	c, err := NewOpenAI(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	require.NoError(t, err)
	vecs, err := c.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestOllama_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		w.Write([]byte(`{"embeddings":[[0.5,0.5,0]]}`))
	}))
	defer srv.Close()

	c, err := NewOllama(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.5, 0}}, vecs)
	assert.Equal(t, 0, c.Dimensions())
}

func TestTransport_RateLimiterHonoursContext(t *testing.T) {
	tr := newTransport(time.Second, 0.001)
	// The first token is available immediately.
	_, cancel, err := tr.begin(context.Background())
	require.NoError(t, err)
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	_, _, err = tr.begin(ctx)
	assert.Error(t, err)
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHash(64)
	a, err := h.EmbedBatch(context.Background(), []string{"The capital of France is Paris."})
	require.NoError(t, err)
	b, err := h.EmbedBatch(context.Background(), []string{"the CAPITAL of france, is paris"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "case and punctuation must not matter")
	assert.Len(t, a[0], 64)

	var sum float32
	for _, f := range a[0] {
		sum += f
	}
	assert.Equal(t, float32(6), sum, "one count per token")
}

func TestHash_SelectedByNew(t *testing.T) {
	e, err := New(Config{Provider: "hash", Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimensions())
	assert.Equal(t, "hash", e.ModelName())
}
