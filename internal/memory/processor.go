// Package memory runs the storage pipeline: analyze a conversation turn,
// apply learned threshold adjustments, optimize against duplicates, and
// commit the outcome to the repository and the search engine.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/analyzer"
	"github.com/sourknives/cortex-memory/internal/dedup"
	"github.com/sourknives/cortex-memory/internal/learning"
	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/internal/project"
	"github.com/sourknives/cortex-memory/internal/search"
	"github.com/sourknives/cortex-memory/internal/storage"
	"github.com/sourknives/cortex-memory/internal/tagging"
)

// TurnRequest is one conversation exchange offered for storage.
type TurnRequest struct {
	UserMessage string         `json:"user_message"`
	AIResponse  string         `json:"ai_response"`
	Context     string         `json:"context,omitempty"`
	ToolName    string         `json:"tool_name"`
	ProjectID   string         `json:"project_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TurnResult reports what the pipeline did with a turn.
type TurnResult struct {
	Stored    bool                   `json:"stored"`
	MemoryID  string                 `json:"memory_id,omitempty"`
	ProjectID string                 `json:"project_id,omitempty"`
	Tags      []string               `json:"tags,omitempty"`
	Analysis  models.AnalysisResult  `json:"analysis"`
	Decision  models.StorageDecision `json:"decision"`
}

// Processor wires the analysis, learning, dedup, tagging, and project
// services into one storage pipeline.
type Processor struct {
	repo     storage.Storage
	engine   *search.Engine
	analyzer *analyzer.Analyzer
	detector *dedup.Detector
	tracker  *learning.Tracker
	tagger   *tagging.Tagger
	projects *project.Detector
	logger   *zap.Logger
}

// NewProcessor assembles a processor from its collaborators.
func NewProcessor(
	repo storage.Storage,
	engine *search.Engine,
	contentAnalyzer *analyzer.Analyzer,
	detector *dedup.Detector,
	tracker *learning.Tracker,
	tagger *tagging.Tagger,
	projects *project.Detector,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		repo:     repo,
		engine:   engine,
		analyzer: contentAnalyzer,
		detector: detector,
		tracker:  tracker,
		tagger:   tagger,
		projects: projects,
		logger:   logger,
	}
}

// ProcessTurn runs the full pipeline for one conversation turn. Turns the
// analyzer declines are not stored; stored turns are deduplicated, tagged,
// attached to a project, persisted, and indexed.
func (p *Processor) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	analysis := p.analyzer.AnalyzeForStorage(req.UserMessage, req.AIResponse, req.Context, req.ToolName)

	adjustments, err := p.tracker.Adjustments(ctx)
	if err != nil {
		p.logger.Warn("learning adjustments unavailable", zap.Error(err))
	} else {
		analysis = p.analyzer.ApplyLearningAdjustments(analysis, adjustments)
	}

	result := &TurnResult{Analysis: analysis}
	if !analysis.ShouldStore {
		result.Decision = models.StorageDecision{
			Action:     models.ActionSkip,
			Reason:     analysis.Reason,
			Confidence: analysis.Confidence,
		}
		return result, nil
	}

	content := analysis.SuggestedContent
	projectID := req.ProjectID
	if projectID == "" {
		projectID, err = p.projects.DetectProject(ctx, content, req.Metadata)
		if err != nil {
			p.logger.Warn("project detection failed", zap.Error(err))
			projectID = ""
		}
	}
	result.ProjectID = projectID

	decision := p.detector.OptimizeStorageDecision(ctx, content, req.Metadata, analysis, req.ToolName, projectID)
	result.Decision = decision

	switch decision.Action {
	case models.ActionMerge:
		if err := p.merge(ctx, decision); err != nil {
			return nil, err
		}
		result.Stored = true
		result.MemoryID = decision.TargetID
	case models.ActionStoreAsNew:
		id, tags, err := p.storeNew(ctx, content, analysis, req, projectID)
		if err != nil {
			return nil, err
		}
		result.Stored = true
		result.MemoryID = id
		result.Tags = tags
	}

	p.logger.Info("processed conversation turn",
		zap.String("tool", req.ToolName),
		zap.String("action", string(decision.Action)),
		zap.String("memory_id", result.MemoryID),
		zap.Float64("confidence", decision.Confidence))
	return result, nil
}

// merge folds new content into an existing memory and re-indexes it.
func (p *Processor) merge(ctx context.Context, decision models.StorageDecision) error {
	existing, err := p.repo.GetByID(ctx, decision.TargetID)
	if err != nil {
		return fmt.Errorf("merge target lookup: %w", err)
	}
	existing.Content = decision.MergedContent
	if err := p.repo.UpdateConversation(ctx, existing); err != nil {
		return fmt.Errorf("merge update: %w", err)
	}

	internalID, found := p.internalID(decision)
	if found {
		if err := p.engine.RemoveDocument(internalID); err != nil {
			p.logger.Warn("failed to drop stale index entry before merge",
				zap.Int64("internal_id", internalID), zap.Error(err))
		}
	}
	_, err = p.engine.AddDocuments(ctx,
		[]string{existing.Content},
		[]map[string]any{indexMetadata(existing)})
	if err != nil {
		return fmt.Errorf("merge re-index: %w", err)
	}
	return nil
}

// internalID finds the search-engine id of the merge target.
func (p *Processor) internalID(decision models.StorageDecision) (int64, bool) {
	for _, dup := range decision.Duplicates {
		if dup.MemoryID == decision.TargetID {
			return dup.InternalID, true
		}
	}
	return p.engine.FindDocument(decision.TargetID)
}

// storeNew creates, persists, and indexes a fresh memory.
func (p *Processor) storeNew(ctx context.Context, content string, analysis models.AnalysisResult, req TurnRequest, projectID string) (string, []string, error) {
	tags := p.tagger.GenerateTags(content, req.Metadata)

	metadata := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["category"] = string(analysis.Category)
	metadata["storage_reason"] = analysis.Reason
	if len(analysis.ExtractedInfo) > 0 {
		metadata["extracted_info"] = analysis.ExtractedInfo
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		ToolName:  req.ToolName,
		ProjectID: projectID,
		Content:   content,
		Tags:      tags,
		Metadata:  metadata,
	}
	if err := p.repo.CreateConversation(ctx, conv); err != nil {
		return "", nil, fmt.Errorf("store conversation: %w", err)
	}

	_, err := p.engine.AddDocuments(ctx,
		[]string{content},
		[]map[string]any{indexMetadata(conv)})
	if err != nil {
		return "", nil, fmt.Errorf("index conversation: %w", err)
	}
	return conv.ID, tags, nil
}

// Feedback records a user reaction for the learning tracker.
func (p *Processor) Feedback(ctx context.Context, memoryID string, category models.Category, fbType models.FeedbackType, suggested bool) error {
	return p.tracker.RecordFeedback(ctx, memoryID, category, fbType, suggested)
}

// GetMemory returns a stored memory by id.
func (p *Processor) GetMemory(ctx context.Context, id string) (*models.Conversation, error) {
	return p.repo.GetByID(ctx, id)
}

// RemoveMemory deletes a memory from the repository and the search engine.
func (p *Processor) RemoveMemory(ctx context.Context, id string) error {
	if internalID, ok := p.engine.FindDocument(id); ok {
		if err := p.engine.RemoveDocument(internalID); err != nil {
			return fmt.Errorf("remove from index: %w", err)
		}
	}
	if err := p.repo.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("remove conversation: %w", err)
	}
	return nil
}

// indexMetadata builds the metadata the search engine and duplicate detector
// rely on for one conversation.
func indexMetadata(conv *models.Conversation) map[string]any {
	ts := conv.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	meta := map[string]any{
		"document_id":     conv.ID,
		"conversation_id": conv.ID,
		"tool_name":       conv.ToolName,
		"timestamp":       ts.UTC().Format(time.RFC3339),
	}
	if conv.ProjectID != "" {
		meta["project_id"] = conv.ProjectID
	}
	if category, ok := conv.Metadata["category"].(string); ok && category != "" {
		meta["category"] = category
	}
	if len(conv.Tags) > 0 {
		meta["tags"] = append([]string(nil), conv.Tags...)
	}
	return meta
}
