package dedup

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/pkg/utils"
)

const (
	minContentLength         = 20
	minConfidenceForStorage  = 0.15
	maxSimilarMemoriesPerDay = 5
	mergeDelimiter           = "\n\n--- Additional Information ---\n"
)

var lowValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(ok|okay|yes|no|thanks|thank you)\.?$`),
	regexp.MustCompile(`^(got it|understood|makes sense)\.?$`),
	regexp.MustCompile(`^(hello|hi|hey)\.?$`),
}

// OptimizeStorageDecision composes duplicate detection with quality filters
// and resolves to exactly one of skip, merge, or store_as_new. Internal
// failures default to store_as_new rather than blocking the pipeline.
func (d *Detector) OptimizeStorageDecision(ctx context.Context, content string, metadata map[string]any, analysis models.AnalysisResult, toolName, projectID string) models.StorageDecision {
	duplicates := d.CheckForDuplicates(ctx, content, metadata, toolName, projectID)

	if reason, ok := d.failsQualityFilters(content, analysis); ok {
		return models.StorageDecision{
			Action:     models.ActionSkip,
			Reason:     reason,
			Confidence: utils.Clamp01(analysis.Confidence - 0.2),
			Duplicates: duplicates,
		}
	}

	for _, dup := range duplicates {
		if dup.Type == models.MatchExact {
			return models.StorageDecision{
				Action:     models.ActionSkip,
				Reason:     fmt.Sprintf("exact duplicate of %s (similarity %.2f)", dup.MemoryID, dup.CompositeScore),
				TargetID:   dup.MemoryID,
				Confidence: utils.Clamp01(analysis.Confidence - 0.5),
				Duplicates: duplicates,
			}
		}
	}

	for _, dup := range duplicates {
		if dup.Type != models.MatchNearDuplicate || !dup.MergeCandidate {
			continue
		}
		merged, ok := d.mergedContent(ctx, content, dup.MemoryID)
		if !ok {
			continue
		}
		return models.StorageDecision{
			Action:        models.ActionMerge,
			Reason:        fmt.Sprintf("near duplicate of %s with merge potential (similarity %.2f)", dup.MemoryID, dup.CompositeScore),
			TargetID:      dup.MemoryID,
			MergedContent: merged,
			Confidence:    utils.Clamp01(analysis.Confidence + 0.1),
			Duplicates:    duplicates,
		}
	}

	if d.tooManySimilarToday(ctx, content, toolName, projectID) {
		return models.StorageDecision{
			Action:     models.ActionSkip,
			Reason:     fmt.Sprintf("more than %d similar memories stored in the last day", maxSimilarMemoriesPerDay),
			Confidence: utils.Clamp01(analysis.Confidence - 0.3),
			Duplicates: duplicates,
		}
	}

	decision := models.StorageDecision{
		Action:     models.ActionStoreAsNew,
		Reason:     "content passes all optimization checks",
		Confidence: analysis.Confidence,
		Duplicates: duplicates,
	}
	if len(duplicates) == 0 {
		decision.Reason = "no similar content found, unique memory"
		decision.Confidence = utils.Clamp01(analysis.Confidence + 0.1)
	}
	return decision
}

// failsQualityFilters rejects short, low-confidence, or spam-like content.
func (d *Detector) failsQualityFilters(content string, analysis models.AnalysisResult) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minContentLength {
		return fmt.Sprintf("content length %d below minimum %d", len(trimmed), minContentLength), true
	}
	if analysis.Confidence < minConfidenceForStorage {
		return fmt.Sprintf("confidence %.2f below minimum %.2f", analysis.Confidence, minConfidenceForStorage), true
	}
	if isSpamLike(content) {
		return "content matches spam-like patterns", true
	}
	return "", false
}

// isSpamLike flags heavy word repetition and stock acknowledgements.
func isSpamLike(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	words := strings.Fields(lower)
	if len(words) > 5 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < 0.3 {
			return true
		}
	}
	if len(lower) < 10 {
		return true
	}
	for _, p := range lowValuePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// mergedContent appends the lines of newContent absent from the existing
// memory under a delimiter. Returns false when nothing new would be added.
func (d *Detector) mergedContent(ctx context.Context, newContent, existingID string) (string, bool) {
	existing, err := d.conversations.GetByID(ctx, existingID)
	if err != nil || existing == nil {
		if err != nil {
			d.logger.Warn("merge target lookup failed", zap.String("id", existingID), zap.Error(err))
		}
		return "", false
	}

	existingLines := lineSet(existing.Content)
	var fresh []string
	for line := range lineSet(newContent) {
		if _, ok := existingLines[line]; !ok {
			fresh = append(fresh, line)
		}
	}
	if len(fresh) == 0 {
		return "", false
	}
	sort.Strings(fresh)
	return existing.Content + mergeDelimiter + strings.Join(fresh, "\n"), true
}

func lineSet(content string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			set[line] = struct{}{}
		}
	}
	return set
}

// tooManySimilarToday checks the daily cap on similar memories for the
// tool+project scope, using word-set similarity against the last day's
// conversations.
func (d *Detector) tooManySimilarToday(ctx context.Context, content, toolName, projectID string) bool {
	recent, err := d.conversations.GetRecentByTool(ctx, toolName, 24, 50)
	if err != nil {
		d.logger.Warn("recent conversation lookup failed", zap.Error(err))
		return false
	}
	contentWords := utils.WordSet(content)
	similar := 0
	for _, conv := range recent {
		if projectID != "" && conv.ProjectID != projectID {
			continue
		}
		if utils.Jaccard(contentWords, utils.WordSet(conv.Content)) > 0.6 {
			similar++
		}
	}
	return similar >= maxSimilarMemoriesPerDay
}
