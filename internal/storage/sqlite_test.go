package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sourknives/cortex-memory/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_ConversationCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	conv := &models.Conversation{
		ID:       "conv1",
		ToolName: "cursor",
		Content:  "use redis for session caching",
		Tags:     []string{"redis", "caching"},
		Metadata: map[string]any{"category": "solution"},
	}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}
	if conv.Timestamp.IsZero() || conv.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on create")
	}

	got, err := store.GetByID(ctx, "conv1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != conv.Content || got.ToolName != "cursor" {
		t.Errorf("got %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "redis" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Metadata["category"] != "solution" {
		t.Errorf("metadata = %v", got.Metadata)
	}

	conv.Content = "use redis for session caching\nset ttl to 3600"
	if err := store.UpdateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetByID(ctx, "conv1")
	if got.Content != conv.Content {
		t.Errorf("content not updated: %q", got.Content)
	}

	list, err := store.ListConversations(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 conversation, got %d", len(list))
	}

	if err := store.DeleteConversation(ctx, "conv1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetByID(ctx, "conv1"); err == nil {
		t.Error("expected error for deleted conversation")
	}

	count, err := store.CountConversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestSQLiteStorage_GetRecentByTool(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	old := &models.Conversation{
		ID:        "old",
		ToolName:  "cursor",
		Content:   "old memory",
		Timestamp: time.Now().Add(-48 * time.Hour),
	}
	recent := &models.Conversation{
		ID:       "recent",
		ToolName: "cursor",
		Content:  "recent memory",
	}
	otherTool := &models.Conversation{
		ID:       "other",
		ToolName: "claude-code",
		Content:  "other tool memory",
	}
	for _, c := range []*models.Conversation{old, recent, otherTool} {
		if err := store.CreateConversation(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.GetRecentByTool(ctx, "cursor", 24, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "recent" {
		t.Fatalf("got %d conversations, want exactly the recent cursor one: %+v", len(got), got)
	}
}

func TestSQLiteStorage_GetByProjectAndSearch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, c := range []*models.Conversation{
		{ID: "a", ToolName: "cursor", ProjectID: "proj1", Content: "configure postgres pooling"},
		{ID: "b", ToolName: "cursor", ProjectID: "proj2", Content: "configure redis eviction"},
	} {
		if err := store.CreateConversation(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	byProject, err := store.GetByProject(ctx, "proj1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byProject) != 1 || byProject[0].ID != "a" {
		t.Fatalf("by project = %+v", byProject)
	}

	found, err := store.SearchByContent(ctx, "redis", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != "b" {
		t.Fatalf("search = %+v", found)
	}
}

func TestSQLiteStorage_Projects(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	project := &models.Project{ID: "proj1", Name: "cortex", Path: "/src/cortex"}
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetProject(ctx, "proj1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "cortex" || got.Path != "/src/cortex" {
		t.Errorf("got %+v", got)
	}

	list, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 project, got %d", len(list))
	}

	if _, err := store.GetProject(ctx, "missing"); err == nil {
		t.Error("expected error for missing project")
	}
}

func TestSQLiteStorage_PreferenceUpsert(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	pref := &models.Preference{Key: "indent", Value: "tabs", Category: "formatting"}
	if err := store.SetPreference(ctx, pref); err != nil {
		t.Fatal(err)
	}
	pref.Value = "spaces"
	if err := store.SetPreference(ctx, pref); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetPreference(ctx, "indent")
	if err != nil {
		t.Fatal(err)
	}
	if got.Value != "spaces" {
		t.Errorf("value = %q, want spaces", got.Value)
	}

	list, err := store.ListPreferences(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 preference after upsert, got %d", len(list))
	}
}

func TestSQLiteStorage_Feedback(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for i, fbType := range []models.FeedbackType{
		models.FeedbackApproved, models.FeedbackApproved, models.FeedbackRejected,
	} {
		fb := &models.Feedback{
			ID:       string(rune('a' + i)),
			Category: "solution",
			Type:     fbType,
		}
		if err := store.CreateFeedback(ctx, fb); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.CreateFeedback(ctx, &models.Feedback{
		ID: "z", Category: "preference", Type: models.FeedbackApproved,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListFeedbackByCategory(ctx, "solution", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 solution feedback records, got %d", len(got))
	}
	approved := 0
	for _, fb := range got {
		if fb.Type == models.FeedbackApproved {
			approved++
		}
	}
	if approved != 2 {
		t.Errorf("approved = %d, want 2", approved)
	}
}
