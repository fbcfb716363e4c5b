package vector

import (
	"math"
	"sort"

	"github.com/sourknives/cortex-memory/pkg/utils"
)

const (
	ivfTrainThreshold = 100
	ivfNumLists       = 100
	ivfNumProbes      = 8
	ivfKMeansIters    = 10
)

// ivfIndex clusters vectors into inverted lists and searches only the lists
// whose centroids are closest to the query. Until enough vectors exist to
// train the clustering it falls back to brute force.
type ivfIndex struct {
	dimension int
	vectors   [][]float32

	trained   bool
	centroids [][]float32
	lists     [][]int // centroid index -> vector positions
}

func newIVFIndex(dimension int) *ivfIndex {
	return &ivfIndex{dimension: dimension}
}

func (x *ivfIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != x.dimension {
			return ErrDimensionMismatch
		}
	}
	start := len(x.vectors)
	x.vectors = append(x.vectors, vectors...)
	if !x.trained {
		if len(x.vectors) >= ivfTrainThreshold {
			x.train()
		}
		return nil
	}
	for i := start; i < len(x.vectors); i++ {
		c := x.nearestCentroid(x.vectors[i])
		x.lists[c] = append(x.lists[c], i)
	}
	return nil
}

func (x *ivfIndex) Search(query []float32, k int) []Hit {
	if !x.trained {
		return bruteForce(x.vectors, query, k)
	}
	if k <= 0 || len(x.vectors) == 0 {
		return nil
	}
	// Rank centroids by similarity to the query and probe the closest lists.
	type ranked struct {
		idx   int
		score float64
	}
	order := make([]ranked, len(x.centroids))
	for i, c := range x.centroids {
		order[i] = ranked{idx: i, score: dot(query, c)}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].score > order[j].score })

	probes := ivfNumProbes
	if probes > len(order) {
		probes = len(order)
	}
	var hits []Hit
	for p := 0; p < probes; p++ {
		for _, pos := range x.lists[order[p].idx] {
			hits = append(hits, Hit{Position: pos, Score: dot(query, x.vectors[pos])})
		}
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

func (x *ivfIndex) Len() int { return len(x.vectors) }

func (x *ivfIndex) Vector(pos int) []float32 { return x.vectors[pos] }

// train runs k-means over the current vectors and assigns every vector to its
// nearest centroid's inverted list.
func (x *ivfIndex) train() {
	n := len(x.vectors)
	nlist := ivfNumLists
	if nlist > n {
		nlist = n
	}

	// Seed centroids with evenly spaced vectors.
	x.centroids = make([][]float32, nlist)
	for i := 0; i < nlist; i++ {
		src := x.vectors[i*n/nlist]
		c := make([]float32, x.dimension)
		copy(c, src)
		x.centroids[i] = c
	}

	assign := make([]int, n)
	for iter := 0; iter < ivfKMeansIters; iter++ {
		changed := false
		for i, v := range x.vectors {
			c := x.nearestCentroid(v)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for i := range sums {
			sums[i] = make([]float64, x.dimension)
		}
		for i, v := range x.vectors {
			c := assign[i]
			counts[c]++
			for d, val := range v {
				sums[c][d] += float64(val)
			}
		}
		for c := 0; c < nlist; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < x.dimension; d++ {
				x.centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
			utils.NormalizeL2(x.centroids[c])
		}
		if !changed && iter > 0 {
			break
		}
	}

	x.lists = make([][]int, nlist)
	for i := range x.vectors {
		c := assign[i]
		x.lists[c] = append(x.lists[c], i)
	}
	x.trained = true
}

func (x *ivfIndex) nearestCentroid(v []float32) int {
	best, bestScore := 0, math.Inf(-1)
	for i, c := range x.centroids {
		if s := dot(v, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
