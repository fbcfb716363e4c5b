package vector

import (
	"container/heap"
	"sort"
)

const (
	hnswMaxDegree = 32
	hnswBeamWidth = 64
)

// hnswIndex is a single-layer navigable small-world graph. Each inserted
// vector is connected to its nearest existing neighbors up to a fixed
// out-degree; search walks the graph with a bounded beam from the entry point.
type hnswIndex struct {
	dimension int
	vectors   [][]float32
	neighbors [][]int
}

func newHNSWIndex(dimension int) *hnswIndex {
	return &hnswIndex{dimension: dimension}
}

func (h *hnswIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != h.dimension {
			return ErrDimensionMismatch
		}
	}
	for _, v := range vectors {
		h.insert(v)
	}
	return nil
}

func (h *hnswIndex) insert(v []float32) {
	pos := len(h.vectors)
	h.vectors = append(h.vectors, v)
	h.neighbors = append(h.neighbors, nil)
	if pos == 0 {
		return
	}

	nearest := h.searchGraph(v, hnswMaxDegree)
	for _, hit := range nearest {
		h.connect(pos, hit.Position)
		h.connect(hit.Position, pos)
	}
}

// connect adds b to a's neighbor list, pruning the weakest link when the
// degree bound is exceeded.
func (h *hnswIndex) connect(a, b int) {
	for _, n := range h.neighbors[a] {
		if n == b {
			return
		}
	}
	h.neighbors[a] = append(h.neighbors[a], b)
	if len(h.neighbors[a]) <= hnswMaxDegree {
		return
	}
	worst, worstScore := -1, 2.0
	for i, n := range h.neighbors[a] {
		if s := dot(h.vectors[a], h.vectors[n]); s < worstScore {
			worst, worstScore = i, s
		}
	}
	h.neighbors[a] = append(h.neighbors[a][:worst], h.neighbors[a][worst+1:]...)
}

func (h *hnswIndex) Search(query []float32, k int) []Hit {
	if k <= 0 || len(h.vectors) == 0 {
		return nil
	}
	hits := h.searchGraph(query, k)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

// searchGraph runs a greedy beam search from position 0 and returns up to k
// of the best vectors visited, in descending score order.
func (h *hnswIndex) searchGraph(query []float32, k int) []Hit {
	visited := make(map[int]bool)
	candidates := &hitHeap{}
	heap.Init(candidates)

	entry := Hit{Position: 0, Score: dot(query, h.vectors[0])}
	heap.Push(candidates, entry)
	visited[0] = true
	best := []Hit{entry}

	beam := hnswBeamWidth
	if k > beam {
		beam = k
	}
	for candidates.Len() > 0 {
		cur := heap.Pop(candidates).(Hit)
		// Stop expanding once the frontier cannot improve the result set.
		if len(best) >= beam && cur.Score < best[len(best)-1].Score {
			break
		}
		for _, n := range h.neighbors[cur.Position] {
			if visited[n] {
				continue
			}
			visited[n] = true
			hit := Hit{Position: n, Score: dot(query, h.vectors[n])}
			heap.Push(candidates, hit)
			best = append(best, hit)
		}
		sort.Slice(best, func(i, j int) bool {
			if best[i].Score != best[j].Score {
				return best[i].Score > best[j].Score
			}
			return best[i].Position < best[j].Position
		})
		if len(best) > beam {
			best = best[:beam]
		}
	}
	if k > len(best) {
		k = len(best)
	}
	return best[:k]
}

func (h *hnswIndex) Len() int { return len(h.vectors) }

func (h *hnswIndex) Vector(pos int) []float32 { return h.vectors[pos] }

// hitHeap is a max-heap of hits by score.
type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].Score > h[j].Score }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)         { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
