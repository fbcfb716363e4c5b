// Package keyword provides keyword indexing over memory content: a term-overlap
// inverted index by default, with an optional Bleve backend.
package keyword

import (
	"fmt"

	"github.com/sourknives/cortex-memory/pkg/utils"
)

// Result is a single keyword search hit. Score is in [0,1]: for the overlap
// index it is the fraction of query terms present in the document.
type Result struct {
	ID    int64
	Score float64
}

// Index defines keyword search over documents keyed by internal id.
type Index interface {
	Index(id int64, content string) error
	Delete(id int64) error
	Search(query string, limit int) ([]Result, error)
	Len() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// Backend selects the keyword index implementation.
type Backend string

const (
	// BackendOverlap scores documents by the fraction of query terms they
	// contain. Default.
	BackendOverlap Backend = "overlap"
	// BackendBleve uses a Bleve full-text index with normalized scores.
	BackendBleve Backend = "bleve"
)

// New creates a keyword index of the given backend. For bleve, path is the
// index directory and must be non-empty.
func New(backend Backend, path string) (Index, error) {
	switch backend {
	case BackendOverlap, "":
		return NewOverlapIndex(), nil
	case BackendBleve:
		return NewBleveIndex(path)
	default:
		return nil, fmt.Errorf("unknown keyword backend: %s (supported: overlap, bleve)", backend)
	}
}

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "will", "with", "i", "you", "we", "they", "this",
		"but", "or", "not", "have", "had", "do", "does", "did", "can",
		"could", "should", "would", "may", "might", "must", "shall",
		"about", "all", "also", "any", "been", "her", "him", "his",
		"how", "into", "more", "now", "only", "our", "out", "over",
		"said", "she", "some", "than", "them", "very", "what", "when",
		"where", "who", "why", "your",
	} {
		stopWords[w] = struct{}{}
	}
}

// ExtractTerms returns the distinct searchable terms of text: lowercased
// words of at least three characters, stop words removed.
func ExtractTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, w := range utils.Words(text) {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		terms[w] = struct{}{}
	}
	return terms
}
