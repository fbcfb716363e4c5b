package models

// Category is the storage category assigned by the analyzer.
type Category string

const (
	CategoryPreference      Category = "preference"
	CategorySolution        Category = "solution"
	CategoryProjectContext  Category = "project_context"
	CategoryDecision        Category = "decision"
	CategoryExplicitRequest Category = "explicit_request"
	CategoryNone            Category = ""
)

// AnalysisResult is the analyzer's verdict for one conversation turn.
//
// ShouldStore is true iff Confidence >= 0.60 or the category is
// explicit_request; AutoStore is true iff Confidence >= 0.85.
type AnalysisResult struct {
	ShouldStore   bool           `json:"should_store"`
	Confidence    float64        `json:"confidence"`
	Category      Category       `json:"category"`
	Reason        string         `json:"reason"`
	ExtractedInfo map[string]any `json:"extracted_info,omitempty"`
	AutoStore     bool           `json:"auto_store"`
	// SuggestedContent is the text to store if the caller accepts the
	// recommendation.
	SuggestedContent string `json:"suggested_content,omitempty"`
}

// CategoryAdjustment shifts the analyzer's thresholds for one category based
// on historical feedback.
type CategoryAdjustment struct {
	AutoStore  float64 `json:"auto_store_adjustment"`
	Suggestion float64 `json:"suggestion_adjustment"`
}

// LearningAdjustments maps categories to their learned threshold shifts.
type LearningAdjustments map[Category]CategoryAdjustment
