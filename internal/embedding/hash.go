package embedding

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/sourknives/cortex-memory/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder: each token is hashed
// into a bucket of the output vector, so texts sharing tokens get genuinely
// similar embeddings. It needs no model files, which makes it the default
// backend and the test embedder.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder of the given dimension.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed maps each token to a bucket by hash and accumulates a signed unit
// contribution, then normalizes. Whitespace-only text embeds to zero.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	if strings.TrimSpace(text) == "" {
		return emb, nil
	}
	for _, tok := range utils.Words(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		if (sum>>32)&1 == 1 {
			emb[idx] += 1
		} else {
			emb[idx] -= 1
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op.
func (e *HashEmbedder) Close() error { return nil }
