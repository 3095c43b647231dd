package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/pdfchat/internal/embedding"
	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/rag"
)

// IsRetryable reports whether err is worth retrying. Only timeouts are;
// malformed input or provider rejections fail fast.
func IsRetryable(err error) bool {
	return rag.IsTimeout(err)
}

// backoffBase is the first retry delay; tests shorten it.
var backoffBase = time.Second

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := backoffBase << uint(attempt)
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base)/2 + 1))
	return base + jitter
}

const MaxRetries = 3

// retry runs fn up to MaxRetries times while it fails with a timeout and
// the caller's context is still live.
func retry[T any](ctx context.Context, log *slog.Logger, op string, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := range MaxRetries {
		out, err = fn()
		if err == nil || !IsRetryable(err) || ctx.Err() != nil || attempt == MaxRetries-1 {
			break
		}
		log.Warn("external call timed out, retrying", "op", op, "attempt", attempt+1, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return out, err
		}
	}
	return out, err
}

// retryingEmbedder retries timed-out embedding calls.
type retryingEmbedder struct {
	embedding.Embedder
	log *slog.Logger
}

func (r retryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retry(ctx, r.log, "embed", func() ([][]float32, error) {
		return r.Embedder.EmbedBatch(ctx, texts)
	})
}

// retryingModel retries timed-out chat completions.
type retryingModel struct {
	llm.ChatModel
	log *slog.Logger
}

func (r retryingModel) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return retry(ctx, r.log, "complete", func() (llm.Response, error) {
		return r.ChatModel.Complete(ctx, req)
	})
}
