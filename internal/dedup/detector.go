// Package dedup prevents storage spam: it compares incoming content against
// existing memories and turns the result into a skip/merge/store decision.
package dedup

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/internal/search"
	"github.com/sourknives/cortex-memory/pkg/utils"
)

const (
	thresholdExact    = 0.95
	thresholdNearDup  = 0.85
	thresholdSimilar  = 0.70
	thresholdRelated  = 0.50
	duplicateSearchLimit = 20
)

// ConversationSource is the read-only slice of the conversation repository
// the detector needs.
type ConversationSource interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetRecentByTool(ctx context.Context, toolName string, hours, limit int) ([]models.Conversation, error)
}

// Detector finds near-duplicate memories via the search engine and detailed
// pairwise similarity. It is stateless apart from its collaborators.
type Detector struct {
	conversations ConversationSource
	engine        *search.Engine
	logger        *zap.Logger
	now           func() time.Time
}

// NewDetector wires a detector to the conversation repository and the search
// engine.
func NewDetector(conversations ConversationSource, engine *search.Engine, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		conversations: conversations,
		engine:        engine,
		logger:        logger,
		now:           time.Now,
	}
}

// CheckForDuplicates returns existing memories similar to content, best match
// first. Failures are advisory: they are logged and produce an empty list,
// never an error.
func (d *Detector) CheckForDuplicates(ctx context.Context, content string, metadata map[string]any, toolName, projectID string) []models.DuplicateMatch {
	filters := map[string]any{}
	if projectID != "" {
		filters["project_id"] = projectID
	}
	if toolName != "" {
		filters["tool_name"] = toolName
	}

	results, err := d.engine.Search(ctx, content, duplicateSearchLimit, filters, models.SearchTypeHybrid)
	if err != nil {
		d.logger.Warn("duplicate check search failed", zap.Error(err))
		return nil
	}

	var duplicates []models.DuplicateMatch
	for _, result := range results {
		match, ok := d.analyzeCandidate(ctx, content, metadata, result, toolName)
		if ok {
			duplicates = append(duplicates, match)
		}
	}
	// Results arrive sorted by search rank; re-sort by composite similarity.
	sort.SliceStable(duplicates, func(i, j int) bool {
		return duplicates[i].CompositeScore > duplicates[j].CompositeScore
	})
	return duplicates
}

func (d *Detector) analyzeCandidate(ctx context.Context, content string, metadata map[string]any, result models.SearchResult, toolName string) (models.DuplicateMatch, bool) {
	conversationID, _ := result.Metadata["conversation_id"].(string)
	if conversationID == "" {
		return models.DuplicateMatch{}, false
	}
	existing, err := d.conversations.GetByID(ctx, conversationID)
	if err != nil || existing == nil {
		if err != nil {
			d.logger.Warn("duplicate candidate lookup failed",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
		return models.DuplicateMatch{}, false
	}

	sim := d.detailedSimilarity(content, metadata, existing, toolName)
	if sim.composite < thresholdRelated {
		return models.DuplicateMatch{}, false
	}

	return models.DuplicateMatch{
		InternalID:         result.InternalID,
		MemoryID:           conversationID,
		Type:               matchType(sim),
		CompositeScore:     sim.composite,
		ContentSimilarity:  sim.content,
		ContentOverlap:     sim.overlap,
		MetadataSimilarity: sim.metadata,
		TimeProximity:      sim.timeProximity,
		ContextSimilarity:  sim.contextSim,
		MergeCandidate: sim.composite >= thresholdSimilar &&
			sim.overlap > 0.6 &&
			sim.timeProximity > 0.3,
	}, true
}

type similarity struct {
	content       float64
	overlap       float64
	metadata      float64
	timeProximity float64
	contextSim    float64
	composite     float64
}

// detailedSimilarity blends five signals into one composite score:
// 0.4 content + 0.25 word overlap + 0.15 metadata + 0.1 time + 0.1 context.
func (d *Detector) detailedSimilarity(content string, metadata map[string]any, existing *models.Conversation, toolName string) similarity {
	sim := similarity{
		content:       MatchRatio(content, existing.Content),
		overlap:       utils.Jaccard(utils.WordSet(content), utils.WordSet(existing.Content)),
		metadata:      metadataSimilarity(metadata, existing.Metadata),
		timeProximity: timeProximity(existing.Timestamp, d.now()),
		contextSim:    contextSimilarity(toolName, metadata, existing),
	}
	sim.composite = 0.4*sim.content + 0.25*sim.overlap + 0.15*sim.metadata +
		0.1*sim.timeProximity + 0.1*sim.contextSim
	return sim
}

// matchType classifies a candidate: exact on raw content similarity, the
// remaining bands on the composite score.
func matchType(sim similarity) models.MatchType {
	switch {
	case sim.content >= thresholdExact:
		return models.MatchExact
	case sim.composite >= thresholdNearDup:
		return models.MatchNearDuplicate
	case sim.composite >= thresholdSimilar:
		return models.MatchSimilarContent
	default:
		return models.MatchRelated
	}
}

var metadataComparisonFields = []string{"category", "analysis_category", "storage_reason", "extracted_info"}

// metadataSimilarity is the fraction of the comparison fields present on
// either side that match exactly on both sides.
func metadataSimilarity(a, b map[string]any) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matches, total := 0, 0
	for _, field := range metadataComparisonFields {
		av, aok := a[field]
		bv, bok := b[field]
		if !aok && !bok {
			continue
		}
		total++
		if aok && bok && reflect.DeepEqual(av, bv) {
			matches++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total)
}

// timeProximity scores how close an existing memory's timestamp is to now:
// 1.0 inside five minutes, stepping down to 0.1 past a week.
func timeProximity(ts, now time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff < 5*time.Minute:
		return 1.0
	case diff < 30*time.Minute:
		return 0.8
	case diff < time.Hour:
		return 0.6
	case diff < 24*time.Hour:
		return 0.4
	case diff < 7*24*time.Hour:
		return 0.2
	default:
		return 0.1
	}
}

// contextSimilarity averages tool-name agreement, project agreement, and tag
// overlap over the factors that are present.
func contextSimilarity(toolName string, metadata map[string]any, existing *models.Conversation) float64 {
	score, factors := 0.0, 0
	if toolName != "" && existing.ToolName != "" {
		factors++
		if strings.EqualFold(toolName, existing.ToolName) {
			score += 1.0
		}
	}
	newProject, _ := metadata["project_id"].(string)
	if newProject != "" || existing.ProjectID != "" {
		factors++
		if newProject == existing.ProjectID {
			score += 1.0
		}
	}
	newTags := tagSet(metadata["tags"])
	existingTags := make(map[string]struct{}, len(existing.Tags))
	for _, t := range existing.Tags {
		existingTags[t] = struct{}{}
	}
	if len(newTags) > 0 || len(existingTags) > 0 {
		factors++
		score += utils.Jaccard(newTags, existingTags)
	}
	if factors == 0 {
		return 0
	}
	return score / float64(factors)
}

func tagSet(raw any) map[string]struct{} {
	set := make(map[string]struct{})
	switch tags := raw.(type) {
	case []string:
		for _, t := range tags {
			set[t] = struct{}{}
		}
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				set[s] = struct{}{}
			}
		}
	}
	return set
}
