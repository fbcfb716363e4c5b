// Package embedding provides text embedding with caching, a deterministic
// fallback embedder, and an optional ONNX runtime backend.
package embedding

import (
	"context"
	"errors"
	"time"
)

// ErrEmbedTimeout is returned when the embedding provider does not respond in
// time. It is transient; callers may retry.
var ErrEmbedTimeout = errors.New("embedding timed out")

// Embedder produces vector embeddings for text. Empty or whitespace-only
// input embeds to the zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// TimeoutEmbedder bounds each call to the wrapped embedder and converts
// deadline expiry into ErrEmbedTimeout.
type TimeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// WithTimeout wraps an embedder so every call is bounded by d.
func WithTimeout(inner Embedder, d time.Duration) *TimeoutEmbedder {
	return &TimeoutEmbedder{inner: inner, timeout: d}
}

func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	emb, err := t.inner.Embed(ctx, text)
	return emb, mapTimeout(ctx, err)
}

func (t *TimeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	embs, err := t.inner.EmbedBatch(ctx, texts)
	return embs, mapTimeout(ctx, err)
}

func (t *TimeoutEmbedder) Dimensions() int { return t.inner.Dimensions() }

func (t *TimeoutEmbedder) Close() error { return t.inner.Close() }

func mapTimeout(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrEmbedTimeout
	}
	return err
}
