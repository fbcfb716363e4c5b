// Package search implements hybrid retrieval: semantic similarity, keyword
// overlap, and recency blended into one ranking.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/embedding"
	"github.com/sourknives/cortex-memory/internal/keyword"
	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/internal/vector"
)

const contentsFile = "contents.json"
const keywordFile = "keywords.json"

// Engine is the single entry point for indexing and retrieving documents.
// It owns the content store and delegates vectors to a vector.Store and
// term lookup to a keyword.Index.
type Engine struct {
	store    *vector.Store
	kw       keyword.Index
	embedder embedding.Embedder
	logger   *zap.Logger
	dir      string

	mu          sync.RWMutex
	contents    map[int64]string
	weights     models.SearchWeights
	initialized bool

	now func() time.Time
}

// NewEngine assembles an engine. dir is the persistence directory shared with
// the vector store; it may be empty to disable persistence.
func NewEngine(store *vector.Store, kw keyword.Index, embedder embedding.Embedder, dir string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		kw:       kw,
		embedder: embedder,
		logger:   logger,
		dir:      dir,
		contents: make(map[int64]string),
		weights:  models.DefaultSearchWeights(),
		now:      time.Now,
	}
}

// Initialize loads any persisted state. Safe to call more than once.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.store.Load(); err != nil {
		return fmt.Errorf("load vector store: %w", err)
	}
	if e.dir != "" {
		if err := e.kw.Load(filepath.Join(e.dir, keywordFile)); err != nil {
			return fmt.Errorf("load keyword index: %w", err)
		}
		if err := e.loadContents(); err != nil {
			return err
		}
	}
	e.initialized = true
	return nil
}

// SetWeights replaces the hybrid blend weights. Used by config hot-reload.
func (e *Engine) SetWeights(w models.SearchWeights) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights = w
	e.logger.Info("search weights updated",
		zap.Float64("semantic", w.Semantic),
		zap.Float64("keyword", w.Keyword),
		zap.Float64("recency", w.Recency))
}

// Weights returns the current hybrid blend weights.
func (e *Engine) Weights() models.SearchWeights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// AddDocuments embeds all contents in one batch call, adds them to the vector
// store, and indexes each for keyword search. Returns the assigned internal
// ids in input order.
func (e *Engine) AddDocuments(ctx context.Context, contents []string, metadata []map[string]any) ([]int64, error) {
	if len(contents) != len(metadata) {
		return nil, fmt.Errorf("contents and metadata length mismatch: %d vs %d", len(contents), len(metadata))
	}
	if len(contents) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	ids, err := e.store.Add(vectors, metadata)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, id := range ids {
		if err := e.kw.Index(id, contents[i]); err != nil {
			return nil, fmt.Errorf("keyword index document %d: %w", id, err)
		}
		e.contents[id] = contents[i]
	}
	return ids, nil
}

// Search runs the requested search type and returns up to limit ranked
// results. Hybrid is the default; ties on combined score break toward the
// larger (more recent) internal id.
func (e *Engine) Search(ctx context.Context, query string, limit int, filters map[string]any, searchType models.SearchType) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	switch searchType {
	case models.SearchTypeSemantic:
		results, err := e.semanticSearch(ctx, query, limit, filters)
		if err != nil {
			return nil, err
		}
		return finalize(results, limit), nil
	case models.SearchTypeKeyword:
		results, err := e.keywordSearch(query, limit, filters)
		if err != nil {
			return nil, err
		}
		return finalize(results, limit), nil
	case models.SearchTypeHybrid, "":
		return e.hybridSearch(ctx, query, limit, filters)
	default:
		return nil, fmt.Errorf("unknown search type: %s", searchType)
	}
}

// semanticSearch embeds the query and maps vector similarity to scores.
// Combined score equals the semantic score for this type.
func (e *Engine) semanticSearch(ctx context.Context, query string, limit int, filters map[string]any) ([]models.SearchResult, error) {
	qvec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := e.store.Search(qvec, limit, filters)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, models.SearchResult{
			InternalID:    hit.InternalID,
			ID:            documentID(hit.Metadata),
			Content:       e.content(hit.InternalID),
			Metadata:      hit.Metadata,
			SemanticScore: hit.Score,
			RecencyScore:  RecencyScore(hit.Metadata, e.now()),
			CombinedScore: hit.Score,
		})
	}
	return results, nil
}

// keywordSearch scores documents by term overlap. Combined score equals the
// keyword score for this type.
func (e *Engine) keywordSearch(query string, limit int, filters map[string]any) ([]models.SearchResult, error) {
	hits, err := e.kw.Search(query, 0)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, limit)
	for _, hit := range hits {
		meta, ok := e.store.Metadata(hit.ID)
		if !ok {
			continue
		}
		if filters != nil && !vector.MatchesFilters(meta, filters) {
			continue
		}
		results = append(results, models.SearchResult{
			InternalID:   hit.ID,
			ID:           documentID(meta),
			Content:      e.content(hit.ID),
			Metadata:     meta,
			KeywordScore: hit.Score,
			RecencyScore: RecencyScore(meta, e.now()),
			CombinedScore: hit.Score,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// hybridSearch unions semantic and keyword candidates, blends three signals
// with the configured weights, and ranks by the combined score.
func (e *Engine) hybridSearch(ctx context.Context, query string, limit int, filters map[string]any) ([]models.SearchResult, error) {
	semantic, err := e.semanticSearch(ctx, query, limit*2, filters)
	if err != nil {
		// Semantic failure degrades to keyword-only rather than failing
		// the whole query.
		e.logger.Warn("semantic search failed, falling back to keyword", zap.Error(err))
		semantic = nil
	}
	kwResults, err := e.keywordSearch(query, limit*2, filters)
	if err != nil {
		if semantic == nil {
			return nil, err
		}
		e.logger.Warn("keyword search failed in hybrid mode", zap.Error(err))
		kwResults = nil
	}

	merged := make(map[int64]*models.SearchResult)
	for i := range semantic {
		r := semantic[i]
		merged[r.InternalID] = &r
	}
	for i := range kwResults {
		kr := kwResults[i]
		if existing, ok := merged[kr.InternalID]; ok {
			existing.KeywordScore = kr.KeywordScore
		} else {
			merged[kr.InternalID] = &kr
		}
	}

	w := e.Weights()
	results := make([]models.SearchResult, 0, len(merged))
	for _, r := range merged {
		r.CombinedScore = w.Semantic*r.SemanticScore + w.Keyword*r.KeywordScore + w.Recency*r.RecencyScore
		results = append(results, *r)
	}
	return finalize(results, limit), nil
}

// finalize sorts by combined score descending, larger internal id first on
// ties, and truncates to limit.
func finalize(results []models.SearchResult, limit int) []models.SearchResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].InternalID > results[j].InternalID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// RemoveDocument soft-deletes a document from the vector store and drops it
// from the keyword index and content store.
func (e *Engine) RemoveDocument(id int64) error {
	e.store.Remove([]int64{id})
	if err := e.kw.Delete(id); err != nil {
		return fmt.Errorf("remove from keyword index: %w", err)
	}
	e.mu.Lock()
	delete(e.contents, id)
	e.mu.Unlock()
	return nil
}

// FindDocument returns the internal id of the live document carrying the
// given external document id.
func (e *Engine) FindDocument(docID string) (int64, bool) {
	if docID == "" {
		return 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for id := range e.contents {
		meta, ok := e.store.Metadata(id)
		if ok && documentID(meta) == docID {
			return id, true
		}
	}
	return 0, false
}

// GetDocument returns content and metadata for a live document, or false if
// the id is unknown or deleted.
func (e *Engine) GetDocument(id int64) (string, map[string]any, bool) {
	meta, ok := e.store.Metadata(id)
	if !ok {
		return "", nil, false
	}
	return e.content(id), meta, true
}

// Save persists the vector store, keyword index, and content store together.
func (e *Engine) Save() error {
	if e.dir == "" {
		return nil
	}
	if err := e.store.Save(); err != nil {
		return fmt.Errorf("save vector store: %w", err)
	}
	if err := e.kw.Save(filepath.Join(e.dir, keywordFile)); err != nil {
		return fmt.Errorf("save keyword index: %w", err)
	}
	e.mu.RLock()
	data, err := json.Marshal(e.contents)
	e.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal contents: %w", err)
	}
	tmp := filepath.Join(e.dir, contentsFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write contents: %w", err)
	}
	return os.Rename(tmp, filepath.Join(e.dir, contentsFile))
}

func (e *Engine) loadContents() error {
	data, err := os.ReadFile(filepath.Join(e.dir, contentsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read contents: %w", err)
	}
	contents := make(map[int64]string)
	if err := json.Unmarshal(data, &contents); err != nil {
		return fmt.Errorf("parse contents: %w", err)
	}
	e.contents = contents
	return nil
}

// Len returns the number of active documents.
func (e *Engine) Len() int { return e.store.ActiveLen() }

// Compact physically drops soft-deleted vectors from the underlying store.
func (e *Engine) Compact() (int, error) { return e.store.Compact() }

func (e *Engine) content(id int64) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.contents[id]
}

func documentID(metadata map[string]any) string {
	if id, ok := metadata["document_id"].(string); ok {
		return id
	}
	return ""
}
