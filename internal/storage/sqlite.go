// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sourknives/cortex-memory/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		tool_name TEXT NOT NULL,
		project_id TEXT,
		content TEXT NOT NULL,
		tags TEXT,
		metadata TEXT,
		timestamp TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_tool_time ON conversations(tool_name, timestamp);
	CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations(project_id);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT,
		description TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		category TEXT,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		memory_id TEXT,
		category TEXT NOT NULL,
		type TEXT NOT NULL,
		suggested INTEGER NOT NULL DEFAULT 0,
		recorded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_category ON feedback(category, recorded_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateConversation inserts a conversation.
func (s *SQLiteStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	tagsJSON, metadataJSON, err := marshalConversationBlobs(conv)
	if err != nil {
		return err
	}

	now := time.Now()
	if conv.Timestamp.IsZero() {
		conv.Timestamp = now
	}
	conv.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tool_name, project_id, content, tags, metadata, timestamp, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.ToolName, conv.ProjectID, conv.Content, tagsJSON, metadataJSON, conv.Timestamp, conv.UpdatedAt,
	)
	return err
}

// GetByID returns a conversation by ID.
func (s *SQLiteStorage) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tool_name, project_id, content, tags, metadata, timestamp, updated_at
		 FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// UpdateConversation updates an existing conversation.
func (s *SQLiteStorage) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	tagsJSON, metadataJSON, err := marshalConversationBlobs(conv)
	if err != nil {
		return err
	}

	conv.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET tool_name = ?, project_id = ?, content = ?, tags = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		conv.ToolName, conv.ProjectID, conv.Content, tagsJSON, metadataJSON, conv.UpdatedAt, conv.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("conversation not found: %s", conv.ID)
	}
	return nil
}

// DeleteConversation removes a conversation by ID.
func (s *SQLiteStorage) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	return err
}

// ListConversations returns conversations newest first with offset and limit.
func (s *SQLiteStorage) ListConversations(ctx context.Context, offset, limit int) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool_name, project_id, content, tags, metadata, timestamp, updated_at
		 FROM conversations ORDER BY timestamp DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return collectConversations(rows)
}

// GetRecentByTool returns conversations for a tool from the last N hours,
// newest first.
func (s *SQLiteStorage) GetRecentByTool(ctx context.Context, toolName string, hours, limit int) ([]models.Conversation, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool_name, project_id, content, tags, metadata, timestamp, updated_at
		 FROM conversations WHERE tool_name = ? AND timestamp >= ?
		 ORDER BY timestamp DESC LIMIT ?`,
		toolName, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	ptrs, err := collectConversations(rows)
	if err != nil {
		return nil, err
	}
	convs := make([]models.Conversation, len(ptrs))
	for i, c := range ptrs {
		convs[i] = *c
	}
	return convs, nil
}

// GetByProject returns conversations for a project, newest first.
func (s *SQLiteStorage) GetByProject(ctx context.Context, projectID string, limit int) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool_name, project_id, content, tags, metadata, timestamp, updated_at
		 FROM conversations WHERE project_id = ? ORDER BY timestamp DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectConversations(rows)
}

// SearchByContent returns conversations whose content contains the query
// substring, newest first.
func (s *SQLiteStorage) SearchByContent(ctx context.Context, query string, limit int) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool_name, project_id, content, tags, metadata, timestamp, updated_at
		 FROM conversations WHERE content LIKE ? ORDER BY timestamp DESC LIMIT ?`,
		"%"+query+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	return collectConversations(rows)
}

// CreateProject inserts a project.
func (s *SQLiteStorage) CreateProject(ctx context.Context, project *models.Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, path, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Path, project.Description, project.CreatedAt, project.UpdatedAt,
	)
	return err
}

// GetProject returns a project by ID.
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, description, created_at, updated_at
		 FROM projects WHERE id = ?`, id,
	).Scan(&project.ID, &project.Name, &project.Path, &project.Description, &project.CreatedAt, &project.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns all projects ordered by name.
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, description, created_at, updated_at
		 FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(&project.ID, &project.Name, &project.Path, &project.Description,
			&project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &project)
	}
	return projects, rows.Err()
}

// SetPreference inserts or replaces a preference by key.
func (s *SQLiteStorage) SetPreference(ctx context.Context, pref *models.Preference) error {
	pref.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, category, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, category = excluded.category,
		 updated_at = excluded.updated_at`,
		pref.Key, pref.Value, pref.Category, pref.UpdatedAt,
	)
	return err
}

// GetPreference returns a preference by key.
func (s *SQLiteStorage) GetPreference(ctx context.Context, key string) (*models.Preference, error) {
	var pref models.Preference
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, category, updated_at FROM preferences WHERE key = ?`, key,
	).Scan(&pref.Key, &pref.Value, &pref.Category, &pref.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("preference not found: %s", key)
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// ListPreferences returns all preferences ordered by key.
func (s *SQLiteStorage) ListPreferences(ctx context.Context) ([]*models.Preference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, category, updated_at FROM preferences ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []*models.Preference
	for rows.Next() {
		var pref models.Preference
		if err := rows.Scan(&pref.Key, &pref.Value, &pref.Category, &pref.UpdatedAt); err != nil {
			return nil, err
		}
		prefs = append(prefs, &pref)
	}
	return prefs, rows.Err()
}

// CreateFeedback inserts a feedback record.
func (s *SQLiteStorage) CreateFeedback(ctx context.Context, fb *models.Feedback) error {
	if fb.RecordedAt.IsZero() {
		fb.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, memory_id, category, type, suggested, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.MemoryID, fb.Category, string(fb.Type), fb.Suggested, fb.RecordedAt,
	)
	return err
}

// ListFeedbackByCategory returns the most recent feedback for a category.
func (s *SQLiteStorage) ListFeedbackByCategory(ctx context.Context, category string, limit int) ([]*models.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, memory_id, category, type, suggested, recorded_at
		 FROM feedback WHERE category = ? ORDER BY recorded_at DESC LIMIT ?`,
		category, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Feedback
	for rows.Next() {
		var fb models.Feedback
		var fbType string
		if err := rows.Scan(&fb.ID, &fb.MemoryID, &fb.Category, &fbType, &fb.Suggested, &fb.RecordedAt); err != nil {
			return nil, err
		}
		fb.Type = models.FeedbackType(fbType)
		items = append(items, &fb)
	}
	return items, rows.Err()
}

// CountConversations returns the total number of stored conversations.
func (s *SQLiteStorage) CountConversations(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func marshalConversationBlobs(conv *models.Conversation) (tagsJSON, metadataJSON string, err error) {
	tags, err := json.Marshal(conv.Tags)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadata, err := json.Marshal(conv.Metadata)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(tags), string(metadata), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var conv models.Conversation
	var tagsJSON, metadataJSON string
	err := row.Scan(&conv.ID, &conv.ToolName, &conv.ProjectID, &conv.Content,
		&tagsJSON, &metadataJSON, &conv.Timestamp, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &conv.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &conv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &conv, nil
}

func collectConversations(rows *sql.Rows) ([]*models.Conversation, error) {
	defer rows.Close()
	var convs []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}
