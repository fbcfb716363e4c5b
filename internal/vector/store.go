package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/pkg/utils"
)

// Entry is the stored record for one vector: its process-lifetime id, its
// position inside the underlying index, caller metadata, and the soft-delete
// flag. Ids are assigned once and never reused; Deleted is the only mutation
// after creation.
type Entry struct {
	ID       int64          `json:"id"`
	Position int            `json:"position"`
	Metadata map[string]any `json:"metadata"`
	Deleted  bool           `json:"deleted"`
}

// Result is one store search hit.
type Result struct {
	InternalID int64
	Score      float64
	Metadata   map[string]any
}

// Store owns a raw Index plus the id/metadata bookkeeping around it: monotonic
// internal ids, soft deletes, metadata filters, and persistence. All methods
// are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	dimension int
	kind      Kind
	index     Index
	entries   map[int64]*Entry
	posToID   []int64
	nextID    int64
	dir       string
	logger    *zap.Logger
}

// NewStore creates a store over a fresh index of the given kind. dir is where
// Save and Load persist the index; it may be empty if persistence is unused.
func NewStore(dimension int, kind Kind, dir string, logger *zap.Logger) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	idx, err := newIndex(kind, dimension)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if kind == "" {
		kind = KindFlat
	}
	return &Store{
		dimension: dimension,
		kind:      kind,
		index:     idx,
		entries:   make(map[int64]*Entry),
		dir:       dir,
		logger:    logger,
	}, nil
}

// Dimension returns the configured vector dimension.
func (s *Store) Dimension() int { return s.dimension }

// Add normalizes and inserts vectors, returning their assigned internal ids
// in input order. metadata[i] is stored alongside vectors[i]; a nil entry is
// replaced with an empty map.
func (s *Store) Add(vectors [][]float32, metadata []map[string]any) ([]int64, error) {
	if len(vectors) != len(metadata) {
		return nil, fmt.Errorf("vectors and metadata length mismatch: %d vs %d", len(vectors), len(metadata))
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != s.dimension {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), s.dimension)
		}
		normalized[i] = utils.NormalizeL2Copy(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kind == KindIVF && s.index.Len() < ivfTrainThreshold && s.index.Len()+len(normalized) < ivfTrainThreshold {
		s.logger.Debug("ivf training deferred, not enough vectors",
			zap.Int("have", s.index.Len()+len(normalized)),
			zap.Int("need", ivfTrainThreshold))
	}

	if err := s.index.Add(normalized); err != nil {
		return nil, err
	}
	ids := make([]int64, len(normalized))
	for i := range normalized {
		id := s.nextID
		s.nextID++
		pos := len(s.posToID)
		meta := metadata[i]
		if meta == nil {
			meta = make(map[string]any)
		}
		s.entries[id] = &Entry{ID: id, Position: pos, Metadata: meta}
		s.posToID = append(s.posToID, id)
		ids[i] = id
	}
	return ids, nil
}

// Search returns up to k active entries most similar to the query, filtered
// by the optional metadata filters. The query is normalized before searching.
// Candidates are over-fetched (2k) to leave room for filtering.
func (s *Store) Search(query []float32, k int, filters map[string]any) ([]Result, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	q := utils.NormalizeL2Copy(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.index.Len()
	if total == 0 {
		return nil, nil
	}
	candidates := 2 * k
	if candidates > total {
		candidates = total
	}
	hits := s.index.Search(q, candidates)

	results := make([]Result, 0, k)
	for _, hit := range hits {
		entry := s.entries[s.posToID[hit.Position]]
		if entry == nil || entry.Deleted {
			continue
		}
		if filters != nil && !MatchesFilters(entry.Metadata, filters) {
			continue
		}
		results = append(results, Result{InternalID: entry.ID, Score: hit.Score, Metadata: entry.Metadata})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Remove soft-deletes the given ids. Vectors stay in the underlying index
// until Compact; unknown ids are ignored.
func (s *Store) Remove(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if entry, ok := s.entries[id]; ok {
			entry.Deleted = true
		}
	}
}

// Metadata returns the metadata for an id, or false if the id is unknown or
// deleted.
func (s *Store) Metadata(id int64) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok || entry.Deleted {
		return nil, false
	}
	return entry.Metadata, true
}

// Len returns the total number of stored vectors including soft-deleted ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// ActiveLen returns the number of non-deleted entries.
func (s *Store) ActiveLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if !e.Deleted {
			n++
		}
	}
	return n
}

// Compact rebuilds the underlying index without soft-deleted vectors.
// Internal ids are preserved; positions are reassigned. Returns the number of
// entries dropped.
func (s *Store) Compact() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := newIndex(s.kind, s.dimension)
	if err != nil {
		return 0, err
	}
	var kept [][]float32
	var keptIDs []int64
	dropped := 0
	for _, id := range s.posToID {
		entry := s.entries[id]
		if entry.Deleted {
			delete(s.entries, id)
			dropped++
			continue
		}
		kept = append(kept, s.index.Vector(entry.Position))
		keptIDs = append(keptIDs, id)
	}
	if err := idx.Add(kept); err != nil {
		return 0, err
	}
	for pos, id := range keptIDs {
		s.entries[id].Position = pos
	}
	s.index = idx
	s.posToID = keptIDs
	s.logger.Info("compacted vector store",
		zap.Int("dropped", dropped),
		zap.Int("remaining", len(keptIDs)))
	return dropped, nil
}

type storeManifest struct {
	Dimension int     `json:"dimension"`
	Kind      Kind    `json:"kind"`
	NextID    int64   `json:"next_id"`
	Order     []int64 `json:"order"`
	Entries   []Entry `json:"entries"`
}

const (
	vectorsFile  = "vectors.bin"
	manifestFile = "manifest.json"
)

// Save writes vectors and metadata to the store directory as a pair of files,
// each via a temp file and rename so a crash never leaves a torn write.
func (s *Store) Save() error {
	if s.dir == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	entries := make([]Entry, 0, len(s.entries))
	for _, id := range s.posToID {
		entries = append(entries, *s.entries[id])
	}
	manifest := storeManifest{
		Dimension: s.dimension,
		Kind:      s.kind,
		NextID:    s.nextID,
		Order:     s.posToID,
		Entries:   entries,
	}

	if err := s.writeVectors(filepath.Join(s.dir, vectorsFile)); err != nil {
		return err
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return atomicWrite(filepath.Join(s.dir, manifestFile), data)
}

func (s *Store) writeVectors(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vectors file: %w", err)
	}
	defer os.Remove(tmp)
	if err := binary.Write(f, binary.LittleEndian, uint32(s.dimension)); err != nil {
		f.Close()
		return fmt.Errorf("write dimension: %w", err)
	}
	n := s.index.Len()
	if err := binary.Write(f, binary.LittleEndian, uint32(n)); err != nil {
		f.Close()
		return fmt.Errorf("write count: %w", err)
	}
	buf := make([]byte, s.dimension*4)
	for pos := 0; pos < n; pos++ {
		vec := s.index.Vector(pos)
		for i, v := range vec {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := f.Write(buf); err != nil {
			f.Close()
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close vectors file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores a previously saved store. If no prior save exists it is a
// no-op; a partial or mismatched save is an error.
func (s *Store) Load() error {
	if s.dir == "" {
		return nil
	}
	manifestPath := filepath.Join(s.dir, manifestFile)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read manifest: %w", err)
	}
	var manifest storeManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.Dimension != s.dimension {
		return fmt.Errorf("%w: saved dimension %d, store expects %d",
			ErrDimensionMismatch, manifest.Dimension, s.dimension)
	}

	vectors, err := readVectors(filepath.Join(s.dir, vectorsFile), s.dimension)
	if err != nil {
		return err
	}
	if len(vectors) != len(manifest.Order) {
		return fmt.Errorf("vector count %d does not match manifest order %d",
			len(vectors), len(manifest.Order))
	}

	idx, err := newIndex(s.kind, s.dimension)
	if err != nil {
		return err
	}
	if err := idx.Add(vectors); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
	s.nextID = manifest.NextID
	s.posToID = manifest.Order
	s.entries = make(map[int64]*Entry, len(manifest.Entries))
	for i := range manifest.Entries {
		e := manifest.Entries[i]
		s.entries[e.ID] = &e
	}
	s.logger.Info("loaded vector store",
		zap.Int("vectors", len(vectors)),
		zap.String("kind", string(s.kind)))
	return nil
}

func readVectors(path string, dimension int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	if int(dim) != dimension {
		return nil, fmt.Errorf("%w: file has %d, store expects %d", ErrDimensionMismatch, dim, dimension)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, dimension*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vec := make([]float32, dimension)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
