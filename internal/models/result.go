package models

// SearchResult is one ranked hit from the search engine. CombinedScore is the
// score the result was ranked by; the per-signal scores are retained for
// debugging and for clients that re-rank.
type SearchResult struct {
	InternalID    int64          `json:"internal_id"`
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	SemanticScore float64        `json:"semantic_score"`
	KeywordScore  float64        `json:"keyword_score"`
	RecencyScore  float64        `json:"recency_score"`
	CombinedScore float64        `json:"combined_score"`
}
