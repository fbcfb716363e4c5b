package dedup

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/embedding"
	"github.com/sourknives/cortex-memory/internal/keyword"
	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/internal/search"
	"github.com/sourknives/cortex-memory/internal/vector"
)

type fakeConversations struct {
	byID   map[string]*models.Conversation
	recent []models.Conversation
}

func (f *fakeConversations) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	return f.byID[id], nil
}

func (f *fakeConversations) GetRecentByTool(_ context.Context, _ string, _, _ int) ([]models.Conversation, error) {
	return f.recent, nil
}

type fixture struct {
	detector *Detector
	engine   *search.Engine
	repo     *fakeConversations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := vector.NewStore(64, vector.KindFlat, "", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	engine := search.NewEngine(store, keyword.NewOverlapIndex(), embedding.NewHashEmbedder(64), "", zap.NewNop())
	if err := engine.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	repo := &fakeConversations{byID: make(map[string]*models.Conversation)}
	return &fixture{
		detector: NewDetector(repo, engine, zap.NewNop()),
		engine:   engine,
		repo:     repo,
	}
}

// seedMemory indexes a conversation in the engine and registers it with the
// fake repository.
func (f *fixture) seedMemory(t *testing.T, id, content, tool string, ts time.Time) {
	t.Helper()
	meta := map[string]any{
		"conversation_id": id,
		"tool_name":       tool,
		"category":        "solution",
		"timestamp":       ts.Format(time.RFC3339),
	}
	if _, err := f.engine.AddDocuments(context.Background(), []string{content}, []map[string]any{meta}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	f.repo.byID[id] = &models.Conversation{
		ID:        id,
		ToolName:  tool,
		Content:   content,
		Metadata:  map[string]any{"category": "solution"},
		Timestamp: ts,
	}
}

func newMeta() map[string]any {
	return map[string]any{"category": "solution"}
}

func TestCheckForDuplicatesExactMatch(t *testing.T) {
	f := newFixture(t)
	content := "use connection pooling to avoid exhausting postgres connections"
	f.seedMemory(t, "conv-1", content, "cursor", time.Now())

	matches := f.detector.CheckForDuplicates(context.Background(), content, newMeta(), "cursor", "")
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.Type != models.MatchExact {
		t.Errorf("type = %s, want exact", m.Type)
	}
	if m.ContentSimilarity < 0.95 {
		t.Errorf("content similarity = %f, want >= 0.95", m.ContentSimilarity)
	}
	if m.MemoryID != "conv-1" {
		t.Errorf("memory id = %s", m.MemoryID)
	}
	if !m.MergeCandidate {
		t.Errorf("identical recent content should be a merge candidate: %+v", m)
	}
}

func TestCheckForDuplicatesExcludesUnrelated(t *testing.T) {
	f := newFixture(t)
	f.seedMemory(t, "conv-1", "kubernetes ingress tls termination with cert manager", "cursor", time.Now())

	matches := f.detector.CheckForDuplicates(context.Background(),
		"my favourite pasta recipe needs basil and garlic", map[string]any{}, "cursor", "")
	if len(matches) != 0 {
		t.Errorf("unrelated content matched: %+v", matches)
	}
}

func TestCheckForDuplicatesEmptyIndex(t *testing.T) {
	f := newFixture(t)
	matches := f.detector.CheckForDuplicates(context.Background(),
		"anything goes here today", newMeta(), "cursor", "")
	if len(matches) != 0 {
		t.Errorf("matches on empty index: %+v", matches)
	}
}

func TestOptimizeSkipsExactDuplicate(t *testing.T) {
	f := newFixture(t)
	content := "set GOMAXPROCS to match the container cpu limit"
	f.seedMemory(t, "conv-1", content, "cursor", time.Now())

	decision := f.detector.OptimizeStorageDecision(context.Background(), content, newMeta(),
		models.AnalysisResult{Confidence: 0.8}, "cursor", "")
	if decision.Action != models.ActionSkip {
		t.Fatalf("action = %s, want skip", decision.Action)
	}
	if decision.TargetID != "conv-1" {
		t.Errorf("target = %s, want conv-1", decision.TargetID)
	}
	if decision.Confidence > 0.8 {
		t.Errorf("confidence %f not reduced", decision.Confidence)
	}
}

func TestOptimizeMergesNearDuplicate(t *testing.T) {
	f := newFixture(t)
	existing := "use redis for caching sessions\nset ttl to 3600 seconds"
	incoming := existing + "\nenable aof"
	f.seedMemory(t, "conv-1", existing, "cursor", time.Now())

	decision := f.detector.OptimizeStorageDecision(context.Background(), incoming, newMeta(),
		models.AnalysisResult{Confidence: 0.7}, "cursor", "")
	if decision.Action != models.ActionMerge {
		t.Fatalf("action = %s, want merge (duplicates: %+v)", decision.Action, decision.Duplicates)
	}
	if decision.TargetID != "conv-1" {
		t.Errorf("target = %s", decision.TargetID)
	}
	if !strings.HasPrefix(decision.MergedContent, existing) {
		t.Errorf("merged content does not start with existing content: %q", decision.MergedContent)
	}
	if !strings.Contains(decision.MergedContent, "enable aof") {
		t.Errorf("merged content missing new line: %q", decision.MergedContent)
	}
	if strings.Count(decision.MergedContent, "set ttl to 3600 seconds") != 1 {
		t.Errorf("shared lines duplicated in merge: %q", decision.MergedContent)
	}
}

func TestOptimizeQualityFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		content    string
		confidence float64
	}{
		{"too short", "tiny", 0.9},
		{"low confidence", "a perfectly reasonable length of content here", 0.1},
		{"repeated words", "yes yes yes yes yes yes yes yes yes yes", 0.9},
	}
	for _, tc := range cases {
		decision := f.detector.OptimizeStorageDecision(ctx, tc.content, newMeta(),
			models.AnalysisResult{Confidence: tc.confidence}, "cursor", "")
		if decision.Action != models.ActionSkip {
			t.Errorf("%s: action = %s, want skip", tc.name, decision.Action)
		}
	}
}

func TestIsSpamLike(t *testing.T) {
	spam := []string{
		"ok",
		"thanks",
		"got it.",
		"hello",
		"no no no no no no no no",
	}
	for _, s := range spam {
		if !isSpamLike(s) {
			t.Errorf("isSpamLike(%q) = false, want true", s)
		}
	}
	if isSpamLike("prefer table driven tests for parser edge cases") {
		t.Error("real content flagged as spam")
	}
}

func TestOptimizeDailySimilarCap(t *testing.T) {
	f := newFixture(t)
	content := "configure eslint import ordering rules for the monorepo"
	for i := 0; i < maxSimilarMemoriesPerDay; i++ {
		f.repo.recent = append(f.repo.recent, models.Conversation{
			ID:      "recent",
			Content: content + " again",
		})
	}

	decision := f.detector.OptimizeStorageDecision(context.Background(), content, newMeta(),
		models.AnalysisResult{Confidence: 0.7}, "cursor", "")
	if decision.Action != models.ActionSkip {
		t.Fatalf("action = %s, want skip (daily cap)", decision.Action)
	}
	if !strings.Contains(decision.Reason, "similar memories") {
		t.Errorf("reason = %q", decision.Reason)
	}
}

func TestOptimizeStoresUniqueWithBoost(t *testing.T) {
	f := newFixture(t)
	decision := f.detector.OptimizeStorageDecision(context.Background(),
		"always run migrations inside a transaction on postgres", newMeta(),
		models.AnalysisResult{Confidence: 0.7}, "cursor", "")
	if decision.Action != models.ActionStoreAsNew {
		t.Fatalf("action = %s, want store_as_new", decision.Action)
	}
	if decision.Confidence <= 0.7 {
		t.Errorf("confidence %f not boosted for unique content", decision.Confidence)
	}
}
