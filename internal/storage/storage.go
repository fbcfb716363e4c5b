// Package storage defines the persistence interface for conversations,
// projects, preferences, and feedback.
package storage

import (
	"context"

	"github.com/sourknives/cortex-memory/internal/models"
)

// Storage defines the relational persistence operations of the memory server.
type Storage interface {
	// Conversation operations
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, conv *models.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context, offset, limit int) ([]*models.Conversation, error)
	GetRecentByTool(ctx context.Context, toolName string, hours, limit int) ([]models.Conversation, error)
	GetByProject(ctx context.Context, projectID string, limit int) ([]*models.Conversation, error)
	SearchByContent(ctx context.Context, query string, limit int) ([]*models.Conversation, error)

	// Project operations
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)

	// Preference operations
	SetPreference(ctx context.Context, pref *models.Preference) error
	GetPreference(ctx context.Context, key string) (*models.Preference, error)
	ListPreferences(ctx context.Context) ([]*models.Preference, error)

	// Feedback operations
	CreateFeedback(ctx context.Context, fb *models.Feedback) error
	ListFeedbackByCategory(ctx context.Context, category string, limit int) ([]*models.Feedback, error)

	// Stats
	CountConversations(ctx context.Context) (int64, error)

	Close() error
}
