// Package models defines the shared data types of the memory server.
package models

import "time"

// Conversation is a single stored memory: one exchange (or fragment) captured
// from an AI coding tool, with its analysis and indexing metadata.
type Conversation struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	ProjectID string         `json:"project_id,omitempty"`
	Content   string         `json:"content"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Project groups conversations that belong to the same codebase or workspace.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Preference is a user preference learned or stated across tools.
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedbackType classifies user reactions to stored memories and storage
// suggestions.
type FeedbackType string

const (
	FeedbackApproved  FeedbackType = "approved"
	FeedbackRejected  FeedbackType = "rejected"
	FeedbackCorrected FeedbackType = "corrected"
)

// Feedback is one recorded user reaction, used by the learning tracker to
// adjust analyzer confidence over time.
type Feedback struct {
	ID         string       `json:"id"`
	MemoryID   string       `json:"memory_id,omitempty"`
	Category   string       `json:"category"`
	Type       FeedbackType `json:"type"`
	Suggested  bool         `json:"suggested"`
	RecordedAt time.Time    `json:"recorded_at"`
}
