package learning

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
)

type fakeFeedbackStore struct {
	byCategory map[string][]*models.Feedback
}

func newFakeFeedbackStore() *fakeFeedbackStore {
	return &fakeFeedbackStore{byCategory: map[string][]*models.Feedback{}}
}

func (f *fakeFeedbackStore) CreateFeedback(_ context.Context, fb *models.Feedback) error {
	f.byCategory[fb.Category] = append(f.byCategory[fb.Category], fb)
	return nil
}

func (f *fakeFeedbackStore) ListFeedbackByCategory(_ context.Context, category string, limit int) ([]*models.Feedback, error) {
	items := f.byCategory[category]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeFeedbackStore) seed(category models.Category, approved, rejected int) {
	for i := 0; i < approved; i++ {
		f.byCategory[string(category)] = append(f.byCategory[string(category)],
			&models.Feedback{Category: string(category), Type: models.FeedbackApproved})
	}
	for i := 0; i < rejected; i++ {
		f.byCategory[string(category)] = append(f.byCategory[string(category)],
			&models.Feedback{Category: string(category), Type: models.FeedbackRejected})
	}
}

func TestRecordFeedbackAssignsID(t *testing.T) {
	store := newFakeFeedbackStore()
	tracker := NewTracker(store, zap.NewNop())

	err := tracker.RecordFeedback(context.Background(), "mem1", models.CategorySolution, models.FeedbackApproved, true)
	if err != nil {
		t.Fatal(err)
	}
	recorded := store.byCategory["solution"]
	if len(recorded) != 1 {
		t.Fatalf("recorded %d feedback items, want 1", len(recorded))
	}
	if recorded[0].ID == "" {
		t.Error("feedback ID should be assigned")
	}
	if recorded[0].MemoryID != "mem1" || !recorded[0].Suggested {
		t.Errorf("recorded = %+v", recorded[0])
	}
}

func TestAdjustmentsRequireMinimumInteractions(t *testing.T) {
	store := newFakeFeedbackStore()
	store.seed(models.CategorySolution, 0, 4)
	tracker := NewTracker(store, zap.NewNop())

	adjustments, err := tracker.Adjustments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(adjustments) != 0 {
		t.Fatalf("adjustments = %v, want none below minimum interactions", adjustments)
	}
}

func TestAdjustmentsDirection(t *testing.T) {
	store := newFakeFeedbackStore()
	// 1/6 approved: frequently rejected, thresholds go up.
	store.seed(models.CategorySolution, 1, 5)
	// 9/10 approved: frequently approved, thresholds go down.
	store.seed(models.CategoryPreference, 9, 1)
	// 3/6 approved: middling, no adjustment.
	store.seed(models.CategoryDecision, 3, 3)
	tracker := NewTracker(store, zap.NewNop())

	adjustments, err := tracker.Adjustments(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	sol, ok := adjustments[models.CategorySolution]
	if !ok || sol.AutoStore != 0.1 || sol.Suggestion != 0.05 {
		t.Errorf("solution adjustment = %+v, want +0.1/+0.05", sol)
	}
	pref, ok := adjustments[models.CategoryPreference]
	if !ok || pref.AutoStore != -0.1 || pref.Suggestion != -0.05 {
		t.Errorf("preference adjustment = %+v, want -0.1/-0.05", pref)
	}
	if _, ok := adjustments[models.CategoryDecision]; ok {
		t.Error("decision should have no adjustment at middling approval rate")
	}
}

func TestCorrectionsCountAsApproval(t *testing.T) {
	store := newFakeFeedbackStore()
	category := string(models.CategoryProjectContext)
	for i := 0; i < 5; i++ {
		store.byCategory[category] = append(store.byCategory[category],
			&models.Feedback{Category: category, Type: models.FeedbackCorrected})
	}
	tracker := NewTracker(store, zap.NewNop())

	adjustments, err := tracker.Adjustments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	adj, ok := adjustments[models.CategoryProjectContext]
	if !ok || adj.AutoStore != -0.1 {
		t.Errorf("adjustment = %+v, want -0.1 when all feedback is corrections", adj)
	}
}
