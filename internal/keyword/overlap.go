package keyword

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// OverlapIndex is an in-memory inverted index scoring documents by the
// fraction of query terms they contain.
type OverlapIndex struct {
	mu    sync.RWMutex
	terms map[string]map[int64]struct{} // term -> ids containing it
	docs  map[int64][]string            // id -> its terms, for deletion
}

// NewOverlapIndex returns an empty overlap index.
func NewOverlapIndex() *OverlapIndex {
	return &OverlapIndex{
		terms: make(map[string]map[int64]struct{}),
		docs:  make(map[int64][]string),
	}
}

// Index tokenizes content and records its terms for id. Re-indexing an id
// replaces its previous terms.
func (o *OverlapIndex) Index(id int64, content string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeLocked(id)
	termSet := ExtractTerms(content)
	terms := make([]string, 0, len(termSet))
	for term := range termSet {
		ids, ok := o.terms[term]
		if !ok {
			ids = make(map[int64]struct{})
			o.terms[term] = ids
		}
		ids[id] = struct{}{}
		terms = append(terms, term)
	}
	o.docs[id] = terms
	return nil
}

// Delete removes a document from the index. Unknown ids are a no-op.
func (o *OverlapIndex) Delete(id int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removeLocked(id)
	return nil
}

func (o *OverlapIndex) removeLocked(id int64) {
	for _, term := range o.docs[id] {
		if ids, ok := o.terms[term]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(o.terms, term)
			}
		}
	}
	delete(o.docs, id)
}

// Search scores every document containing at least one query term by
// matched-terms / total-query-terms and returns up to limit results in
// descending score order, ties broken by larger id.
func (o *OverlapIndex) Search(query string, limit int) ([]Result, error) {
	queryTerms := ExtractTerms(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	counts := make(map[int64]int)
	for term := range queryTerms {
		for id := range o.terms[term] {
			counts[id]++
		}
	}

	results := make([]Result, 0, len(counts))
	for id, n := range counts {
		results = append(results, Result{ID: id, Score: float64(n) / float64(len(queryTerms))})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID > results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Len returns the number of indexed documents.
func (o *OverlapIndex) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.docs)
}

// Save writes the index to path as JSON via a temp file and rename.
func (o *OverlapIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	o.mu.RLock()
	data, err := json.Marshal(o.docs)
	o.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal keyword index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write keyword index: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load replaces the index contents from a prior Save. Missing file is a
// no-op.
func (o *OverlapIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read keyword index: %w", err)
	}
	docs := make(map[int64][]string)
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parse keyword index: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.docs = docs
	o.terms = make(map[string]map[int64]struct{})
	for id, terms := range docs {
		for _, term := range terms {
			ids, ok := o.terms[term]
			if !ok {
				ids = make(map[int64]struct{})
				o.terms[term] = ids
			}
			ids[id] = struct{}{}
		}
	}
	return nil
}

// Close is a no-op for the in-memory index.
func (o *OverlapIndex) Close() error { return nil }
