package memory

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/analyzer"
	"github.com/sourknives/cortex-memory/internal/dedup"
	"github.com/sourknives/cortex-memory/internal/embedding"
	"github.com/sourknives/cortex-memory/internal/keyword"
	"github.com/sourknives/cortex-memory/internal/learning"
	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/internal/project"
	"github.com/sourknives/cortex-memory/internal/search"
	"github.com/sourknives/cortex-memory/internal/storage"
	"github.com/sourknives/cortex-memory/internal/tagging"
	"github.com/sourknives/cortex-memory/internal/vector"
)

type fixture struct {
	processor *Processor
	repo      *storage.SQLiteStorage
	engine    *search.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	repo, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })

	store, err := vector.NewStore(64, vector.KindFlat, "", logger)
	if err != nil {
		t.Fatal(err)
	}
	engine := search.NewEngine(store, keyword.NewOverlapIndex(), embedding.NewHashEmbedder(64), "", logger)
	if err := engine.Initialize(); err != nil {
		t.Fatal(err)
	}

	detector := dedup.NewDetector(repo, engine, logger)
	processor := NewProcessor(
		repo,
		engine,
		analyzer.New(nil, logger),
		detector,
		learning.NewTracker(repo, logger),
		tagging.NewTagger(logger),
		project.NewDetector(repo, logger),
		logger,
	)
	return &fixture{processor: processor, repo: repo, engine: engine}
}

func explicitTurn() TurnRequest {
	return TurnRequest{
		UserMessage: "please remember this: I prefer tabs for indentation in Go files",
		AIResponse:  "Noted. I will use tabs for indentation in all Go code from now on.",
		ToolName:    "cursor",
	}
}

func TestProcessTurnStoresExplicitRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.processor.ProcessTurn(ctx, explicitTurn())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Stored || result.MemoryID == "" {
		t.Fatalf("result = %+v, want stored with an id", result)
	}
	if result.Decision.Action != models.ActionStoreAsNew {
		t.Fatalf("action = %q, want store_as_new", result.Decision.Action)
	}
	if result.Analysis.Category != models.CategoryExplicitRequest {
		t.Errorf("category = %q", result.Analysis.Category)
	}

	stored, err := f.repo.GetByID(ctx, result.MemoryID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ToolName != "cursor" {
		t.Errorf("tool = %q", stored.ToolName)
	}
	if stored.Metadata["category"] != string(models.CategoryExplicitRequest) {
		t.Errorf("stored metadata = %v", stored.Metadata)
	}

	if f.engine.Len() != 1 {
		t.Errorf("engine has %d documents, want 1", f.engine.Len())
	}
	hits, err := f.engine.Search(ctx, "tabs for indentation", 5, nil, models.SearchTypeHybrid)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != result.MemoryID {
		t.Fatalf("search hits = %+v, want the stored memory", hits)
	}
}

func TestProcessTurnSkipsLowValueContent(t *testing.T) {
	f := newFixture(t)

	result, err := f.processor.ProcessTurn(context.Background(), TurnRequest{
		UserMessage: "hello",
		AIResponse:  "Hi there.",
		ToolName:    "cursor",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Stored {
		t.Fatalf("result = %+v, chit-chat should not be stored", result)
	}
	if result.Decision.Action != models.ActionSkip {
		t.Errorf("action = %q, want skip", result.Decision.Action)
	}
	if f.engine.Len() != 0 {
		t.Errorf("engine has %d documents, want 0", f.engine.Len())
	}
}

func TestProcessTurnSkipsExactDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.processor.ProcessTurn(ctx, explicitTurn())
	if err != nil {
		t.Fatal(err)
	}
	if !first.Stored {
		t.Fatalf("first turn not stored: %+v", first)
	}

	second, err := f.processor.ProcessTurn(ctx, explicitTurn())
	if err != nil {
		t.Fatal(err)
	}
	if second.Stored {
		t.Fatalf("second identical turn stored: %+v", second)
	}
	if second.Decision.Action != models.ActionSkip {
		t.Errorf("action = %q, want skip", second.Decision.Action)
	}
	if second.Decision.TargetID != first.MemoryID {
		t.Errorf("target = %q, want %q", second.Decision.TargetID, first.MemoryID)
	}
	if f.engine.Len() != 1 {
		t.Errorf("engine has %d documents, want 1", f.engine.Len())
	}
}

func TestRemoveMemory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.processor.ProcessTurn(ctx, explicitTurn())
	if err != nil {
		t.Fatal(err)
	}

	if err := f.processor.RemoveMemory(ctx, result.MemoryID); err != nil {
		t.Fatal(err)
	}
	if f.engine.Len() != 0 {
		t.Errorf("engine has %d documents after removal", f.engine.Len())
	}
	if _, err := f.repo.GetByID(ctx, result.MemoryID); err == nil {
		t.Error("expected lookup error after removal")
	}
}

func TestFeedbackIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.processor.Feedback(ctx, "mem1", models.CategorySolution, models.FeedbackApproved, true)
	if err != nil {
		t.Fatal(err)
	}

	recorded, err := f.repo.ListFeedbackByCategory(ctx, "solution", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recorded) != 1 || recorded[0].MemoryID != "mem1" {
		t.Fatalf("feedback = %+v", recorded)
	}
}
