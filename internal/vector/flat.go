package vector

import "sort"

// flatIndex is exact brute-force inner-product search over all vectors.
type flatIndex struct {
	dimension int
	vectors   [][]float32
}

func newFlatIndex(dimension int) *flatIndex {
	return &flatIndex{dimension: dimension}
}

func (f *flatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != f.dimension {
			return ErrDimensionMismatch
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *flatIndex) Search(query []float32, k int) []Hit {
	return bruteForce(f.vectors, query, k)
}

func (f *flatIndex) Len() int { return len(f.vectors) }

func (f *flatIndex) Vector(pos int) []float32 { return f.vectors[pos] }

// bruteForce scores every vector against the query and returns the top k.
// Ties break by lower position so results are deterministic.
func bruteForce(vectors [][]float32, query []float32, k int) []Hit {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}
	hits := make([]Hit, len(vectors))
	for i, vec := range vectors {
		hits[i] = Hit{Position: i, Score: dot(query, vec)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}
