package models

// MatchType classifies how close a duplicate candidate is. Exact matches are
// classified on raw content similarity; the remaining bands on the composite
// score.
type MatchType string

const (
	MatchExact          MatchType = "exact"
	MatchNearDuplicate  MatchType = "near_duplicate"
	MatchSimilarContent MatchType = "similar_content"
	MatchRelated        MatchType = "related"
)

// DuplicateMatch is one existing memory found similar to incoming content.
type DuplicateMatch struct {
	InternalID         int64     `json:"internal_id"`
	MemoryID           string    `json:"memory_id"`
	Type               MatchType `json:"type"`
	CompositeScore     float64   `json:"composite_score"`
	ContentSimilarity  float64   `json:"content_similarity"`
	ContentOverlap     float64   `json:"content_overlap"`
	MetadataSimilarity float64   `json:"metadata_similarity"`
	TimeProximity      float64   `json:"time_proximity"`
	ContextSimilarity  float64   `json:"context_similarity"`
	MergeCandidate     bool      `json:"merge_candidate"`
}

// StorageAction is the outcome of optimizing a storage decision.
type StorageAction string

const (
	ActionSkip       StorageAction = "skip"
	ActionMerge      StorageAction = "merge"
	ActionStoreAsNew StorageAction = "store_as_new"
)

// StorageDecision is the final verdict on what to do with incoming content
// after quality filtering and duplicate detection.
type StorageDecision struct {
	Action        StorageAction `json:"action"`
	Reason        string        `json:"reason"`
	TargetID      string        `json:"target_id,omitempty"`
	MergedContent string        `json:"merged_content,omitempty"`
	// Confidence carries the (possibly boosted) analyzer confidence forward.
	Confidence float64          `json:"confidence"`
	Duplicates []DuplicateMatch `json:"duplicates,omitempty"`
}
