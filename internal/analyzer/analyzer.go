// Package analyzer decides whether a conversation turn is worth storing:
// which category it belongs to, with what confidence, and what structured
// facts can be extracted from it.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
	"github.com/sourknives/cortex-memory/pkg/utils"
)

// Scoring weights and thresholds.
const (
	patternMatchWeight  = 0.5
	keywordHighWeight   = 0.4
	keywordMediumWeight = 0.25
	keywordLowWeight    = 0.15

	contentLengthBonus = 0.1
	codePresenceBonus  = 0.15
	questionAnswerBonus = 0.2

	minCategoryScore    = 0.05
	AutoStoreThreshold  = 0.85
	SuggestionThreshold = 0.60
)

var bucketWeights = map[string]float64{
	bucketHigh:   keywordHighWeight,
	bucketMedium: keywordMediumWeight,
	bucketLow:    keywordLowWeight,
}

var (
	codeIndicators = compileAll(
		"```",
		"`[^`]+`",
		`\b(?:function|class|def|var|let|const|import|export)\b`,
		`[{}();]`,
		`(?:\.py|\.js|\.ts|\.java|\.cpp|\.c|\.html|\.css)`,
	)
	questionIndicators = compileAll(
		`\?`, `(?i)\bhow\b`, `(?i)\bwhat\b`, `(?i)\bwhy\b`, `(?i)\bwhen\b`, `(?i)\bwhere\b`,
	)
)

// Analyzer scores conversation content against the rule tables. Stateless;
// safe for concurrent use.
type Analyzer struct {
	rules  *RuleSet
	logger *zap.Logger
}

// New returns an analyzer over the given rule set; nil rules mean the
// defaults.
func New(rules *RuleSet, logger *zap.Logger) *Analyzer {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{rules: rules, logger: logger}
}

// AnalyzeForStorage scores one conversation turn. Explicit remember requests
// short-circuit to confidence 1.0; otherwise the best-scoring category wins,
// with bonuses for substantial content, code, and question-answer shape.
func (a *Analyzer) AnalyzeForStorage(userMessage, aiResponse, conversationContext, toolName string) models.AnalysisResult {
	fullContent := strings.TrimSpace(userMessage + "\n" + aiResponse + "\n" + conversationContext)

	if a.hasExplicitRequest(userMessage) {
		return models.AnalysisResult{
			ShouldStore:      true,
			Confidence:       1.0,
			Category:         models.CategoryExplicitRequest,
			Reason:           "user explicitly requested storage",
			AutoStore:        true,
			SuggestedContent: suggestedContent(userMessage, aiResponse),
			ExtractedInfo: map[string]any{
				"request_type": "explicit",
				"user_intent":  "remember_for_later",
			},
		}
	}

	bestCategory, bestRule, baseConfidence := a.bestCategory(fullContent)
	if bestCategory == models.CategoryNone {
		return models.AnalysisResult{
			Reason: "content does not meet storage criteria",
		}
	}

	confidence := a.finalConfidence(baseConfidence, fullContent, userMessage, aiResponse)
	result := models.AnalysisResult{
		ShouldStore:      confidence >= SuggestionThreshold,
		Confidence:       confidence,
		Category:         bestCategory,
		Reason:           categoryReason(bestCategory, confidence),
		AutoStore:        confidence >= AutoStoreThreshold,
		SuggestedContent: suggestedContent(userMessage, aiResponse),
		ExtractedInfo:    extractInfo(bestRule.Category, userMessage, aiResponse, fullContent),
	}
	a.logger.Debug("analyzed content for storage",
		zap.String("category", string(bestCategory)),
		zap.Float64("confidence", confidence),
		zap.String("tool", toolName))
	return result
}

func (a *Analyzer) hasExplicitRequest(userMessage string) bool {
	for _, p := range a.rules.ExplicitRequest {
		if p.MatchString(userMessage) {
			return true
		}
	}
	return false
}

// bestCategory scores every category and returns the winner, or CategoryNone
// when nothing reaches the minimum score.
func (a *Analyzer) bestCategory(content string) (models.Category, CategoryRule, float64) {
	var best CategoryRule
	bestScore := -1.0
	for _, rule := range a.rules.Categories {
		score := scoreCategory(rule, content)
		if score > bestScore {
			best, bestScore = rule, score
		}
	}
	if bestScore < minCategoryScore {
		return models.CategoryNone, CategoryRule{}, 0
	}
	return best.Category, best, bestScore
}

// scoreCategory combines the fraction of matching patterns with bucketed
// keyword frequency.
func scoreCategory(rule CategoryRule, content string) float64 {
	matches := 0
	for _, p := range rule.Patterns {
		if p.MatchString(content) {
			matches++
		}
	}
	score := 0.0
	if matches > 0 {
		frac := float64(matches) / float64(len(rule.Patterns))
		if frac > 1.0 {
			frac = 1.0
		}
		score += patternMatchWeight * frac
	}

	lower := strings.ToLower(content)
	for bucket, keywords := range rule.Keywords {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		frac := float64(hits) / float64(len(keywords))
		if frac > 1.0 {
			frac = 1.0
		}
		score += bucketWeights[bucket] * frac
	}
	return score
}

func (a *Analyzer) finalConfidence(base float64, fullContent, userMessage, aiResponse string) float64 {
	confidence := base
	if len(fullContent) > 200 {
		confidence += contentLengthBonus
	}
	if matchesAny(codeIndicators, fullContent) {
		confidence += codePresenceBonus
	}
	if isQuestionAnswer(userMessage, aiResponse) {
		confidence += questionAnswerBonus
	}
	return utils.Clamp01(confidence)
}

func isQuestionAnswer(userMessage, aiResponse string) bool {
	if !matchesAny(questionIndicators, userMessage) {
		return false
	}
	return len(aiResponse) > 50
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func suggestedContent(userMessage, aiResponse string) string {
	return fmt.Sprintf("User Query: %s\n\nAI Response: %s", userMessage, aiResponse)
}

func categoryReason(category models.Category, confidence float64) string {
	switch category {
	case models.CategoryPreference:
		return fmt.Sprintf("detected user preference with %.0f%% confidence", confidence*100)
	case models.CategorySolution:
		return fmt.Sprintf("identified problem-solution pair with %.0f%% confidence", confidence*100)
	case models.CategoryProjectContext:
		return fmt.Sprintf("found project context information with %.0f%% confidence", confidence*100)
	case models.CategoryDecision:
		return fmt.Sprintf("detected technical decision with %.0f%% confidence", confidence*100)
	default:
		return fmt.Sprintf("identified %s content with %.0f%% confidence", category, confidence*100)
	}
}

// ApplyLearningAdjustments shifts a result's confidence and decision
// thresholds per category based on historical feedback, then re-evaluates the
// store flags against the shifted thresholds.
func (a *Analyzer) ApplyLearningAdjustments(result models.AnalysisResult, adjustments models.LearningAdjustments) models.AnalysisResult {
	if result.Category == models.CategoryNone || len(adjustments) == 0 {
		return result
	}
	adj, ok := adjustments[result.Category]
	if !ok || (adj.AutoStore == 0 && adj.Suggestion == 0) {
		return result
	}

	original := result.Confidence
	result.Confidence = utils.Clamp01(result.Confidence + adj.AutoStore*0.5)
	result.AutoStore = result.Confidence >= AutoStoreThreshold+adj.AutoStore
	result.ShouldStore = result.Confidence >= SuggestionThreshold+adj.Suggestion ||
		result.Category == models.CategoryExplicitRequest
	result.Reason += " (adjusted based on user feedback)"

	a.logger.Debug("applied learning adjustments",
		zap.String("category", string(result.Category)),
		zap.Float64("original_confidence", original),
		zap.Float64("adjusted_confidence", result.Confidence))
	return result
}
