// Package learning turns recorded user feedback into per-category confidence
// threshold adjustments for the storage analyzer.
package learning

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
)

const (
	// minInteractions is the minimum feedback count before a category's
	// thresholds are adjusted at all.
	minInteractions = 5

	lowApprovalRate  = 0.4
	highApprovalRate = 0.8
	thresholdShift   = 0.1

	// feedbackWindow bounds how much recent feedback is considered per
	// category.
	feedbackWindow = 200
)

// FeedbackStore is the slice of persistence the tracker needs.
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb *models.Feedback) error
	ListFeedbackByCategory(ctx context.Context, category string, limit int) ([]*models.Feedback, error)
}

// adjustedCategories are the categories whose thresholds can drift with
// feedback. Explicit requests always store and are never adjusted.
var adjustedCategories = []models.Category{
	models.CategoryPreference,
	models.CategorySolution,
	models.CategoryProjectContext,
	models.CategoryDecision,
}

// Tracker records feedback and computes threshold adjustments from it.
type Tracker struct {
	store  FeedbackStore
	logger *zap.Logger
}

// NewTracker returns a tracker over the given feedback store.
func NewTracker(store FeedbackStore, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, logger: logger}
}

// RecordFeedback persists one user reaction to a stored memory or storage
// suggestion.
func (t *Tracker) RecordFeedback(ctx context.Context, memoryID string, category models.Category, fbType models.FeedbackType, suggested bool) error {
	fb := &models.Feedback{
		ID:        uuid.NewString(),
		MemoryID:  memoryID,
		Category:  string(category),
		Type:      fbType,
		Suggested: suggested,
	}
	if err := t.store.CreateFeedback(ctx, fb); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	t.logger.Debug("recorded feedback",
		zap.String("category", string(category)),
		zap.String("type", string(fbType)))
	return nil
}

// Adjustments computes the per-category threshold adjustments from recent
// feedback. Categories with fewer than minInteractions records, or with a
// middling approval rate, get no entry.
func (t *Tracker) Adjustments(ctx context.Context) (models.LearningAdjustments, error) {
	adjustments := models.LearningAdjustments{}
	for _, category := range adjustedCategories {
		feedback, err := t.store.ListFeedbackByCategory(ctx, string(category), feedbackWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to load feedback for %s: %w", category, err)
		}
		if len(feedback) < minInteractions {
			continue
		}

		shift := categoryShift(approvalRate(feedback))
		if shift == 0 {
			continue
		}
		adjustments[category] = models.CategoryAdjustment{
			AutoStore:  shift,
			Suggestion: shift * 0.5,
		}
		t.logger.Debug("computed threshold adjustment",
			zap.String("category", string(category)),
			zap.Float64("shift", shift),
			zap.Int("interactions", len(feedback)))
	}
	return adjustments, nil
}

// approvalRate treats approvals and corrections as positive outcomes, the
// way accepted-with-edits counts as accepted.
func approvalRate(feedback []*models.Feedback) float64 {
	positive := 0
	for _, fb := range feedback {
		if fb.Type == models.FeedbackApproved || fb.Type == models.FeedbackCorrected {
			positive++
		}
	}
	return float64(positive) / float64(len(feedback))
}

// categoryShift raises thresholds for frequently rejected categories and
// lowers them for frequently approved ones.
func categoryShift(rate float64) float64 {
	switch {
	case rate < lowApprovalRate:
		return thresholdShift
	case rate > highApprovalRate:
		return -thresholdShift
	default:
		return 0
	}
}
