package models

// SearchType selects which retrieval strategy a query uses.
type SearchType string

const (
	SearchTypeSemantic SearchType = "semantic"
	SearchTypeKeyword  SearchType = "keyword"
	SearchTypeHybrid   SearchType = "hybrid"
)

// SearchQuery is a request against the search engine.
type SearchQuery struct {
	Text    string         `json:"text"`
	Type    SearchType     `json:"type,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
}

// SearchWeights are the blend factors for hybrid search. They should sum to
// roughly 1.0 but are used as-is.
type SearchWeights struct {
	Semantic float64 `json:"semantic" yaml:"semantic"`
	Keyword  float64 `json:"keyword" yaml:"keyword"`
	Recency  float64 `json:"recency" yaml:"recency"`
}

// DefaultSearchWeights returns the standard hybrid blend.
func DefaultSearchWeights() SearchWeights {
	return SearchWeights{Semantic: 0.5, Keyword: 0.3, Recency: 0.2}
}
