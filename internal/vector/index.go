// Package vector provides vector index implementations and a metadata-aware
// store for cosine similarity search over normalized vectors.
package vector

import (
	"errors"
	"fmt"
)

// Kind selects the underlying approximate-nearest-neighbor structure.
type Kind string

const (
	// KindFlat uses exact brute-force search. Good for small datasets.
	KindFlat Kind = "flat"
	// KindIVF uses inverted-file clustering. Requires training once enough
	// vectors are present; behaves like flat until trained.
	KindIVF Kind = "ivf"
	// KindHNSW uses a navigable small-world graph for approximate search.
	KindHNSW Kind = "hnsw"
)

var (
	// ErrDimensionMismatch is returned when a vector's length does not match
	// the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnsupportedKind is returned for an unknown index kind.
	ErrUnsupportedKind = errors.New("unsupported index kind")
)

// Hit is one raw index search result: a position in insertion order and an
// inner-product score (cosine similarity for normalized vectors).
type Hit struct {
	Position int
	Score    float64
}

// Index is the raw ANN structure. Implementations store vectors in insertion
// order; positions are dense and never reused. Implementations do not lock;
// the owning Store serializes access.
type Index interface {
	// Add appends vectors. Callers must pass vectors of the index dimension,
	// already L2-normalized.
	Add(vectors [][]float32) error
	// Search returns up to k hits in descending score order.
	Search(query []float32, k int) []Hit
	// Len returns the number of stored vectors.
	Len() int
	// Vector returns the stored vector at the given position.
	Vector(pos int) []float32
}

func newIndex(kind Kind, dimension int) (Index, error) {
	switch kind {
	case KindFlat, "":
		return newFlatIndex(dimension), nil
	case KindIVF:
		return newIVFIndex(dimension), nil
	case KindHNSW:
		return newHNSWIndex(dimension), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: flat, ivf, hnsw)", ErrUnsupportedKind, kind)
	}
}
