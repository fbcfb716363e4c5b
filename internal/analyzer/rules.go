package analyzer

import (
	"regexp"

	"github.com/sourknives/cortex-memory/internal/models"
)

// Keyword buckets, weighted by how strongly a hit signals the category.
const (
	bucketHigh   = "high"
	bucketMedium = "medium"
	bucketLow    = "low"
)

// CategoryRule is the scoring table for one category: regex patterns plus
// bucketed keywords. The rule set is plain data so it can be inspected and
// tested in isolation.
type CategoryRule struct {
	Category models.Category
	Patterns []*regexp.Regexp
	Keywords map[string][]string
}

// RuleSet holds the explicit-request short-circuit patterns and the per
// category scoring rules.
type RuleSet struct {
	ExplicitRequest []*regexp.Regexp
	Categories      []CategoryRule
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() *RuleSet {
	return &RuleSet{
		ExplicitRequest: compileAll(
			`(?i)\b(?:remember|save|store|keep|note)\s+(?:this|that)\b`,
			`(?i)\b(?:don't forget|make sure to remember|important to note)\b`,
			`(?i)\b(?:for future reference|for later|remember for next time)\b`,
			`(?i)\b(?:store|save)\s+(?:in|to)\s+(?:memory|context|notes)\b`,
		),
		Categories: []CategoryRule{
			{
				Category: models.CategoryPreference,
				Patterns: compileAll(
					`(?i)\b(?:prefer|like|dislike)\b`,
					`(?i)\b(?:always|never|usually|typically)\b.*(?:use|do|write|format|choose)`,
					`(?i)\b(?:my|our)\s+(?:style|approach|way|method|preference)\b`,
					`(?i)\b(?:remember|note|keep in mind)\s+(?:that\s+)?(?:i|we)\b`,
					`(?i)\b(?:i|we)\s+(?:always|never|usually|typically|prefer to|like to)\b`,
					`(?i)\b(?:default|standard|usual|normal)\s+(?:approach|method|way)\b`,
				),
				Keywords: map[string][]string{
					bucketHigh:   {"prefer", "always", "never", "style", "approach", "method"},
					bucketMedium: {"like", "dislike", "usually", "typically", "way", "standard"},
					bucketLow:    {"default", "normal", "common", "general"},
				},
			},
			{
				Category: models.CategorySolution,
				Patterns: compileAll(
					`(?i)\b(?:solution|fix|resolve|solve|answer)\b.*(?:problem|issue|error|bug)`,
					`(?i)\b(?:here's how|try this|you can|to fix)\b`,
					`(?i)\b(?:error|exception|bug|issue)\b.*(?:fix|solve|resolve)`,
					`(?i)\b(?:problem|issue)\b.*(?:solution|fix|resolve)`,
					`(?i)\b(?:step|steps)\s+(?:\d+|one|two|three|first|second|third)\b`,
					`(?i)\b(?:workaround|alternative|instead)\b`,
				),
				Keywords: map[string][]string{
					bucketHigh:   {"solution", "fix", "resolve", "solve", "error", "bug", "issue"},
					bucketMedium: {"problem", "workaround", "alternative", "try", "step"},
					bucketLow:    {"help", "assist", "support", "guide"},
				},
			},
			{
				Category: models.CategoryProjectContext,
				Patterns: compileAll(
					`(?i)\b(?:project|application|app|system|codebase)\b.*(?:uses|built|written|developed)`,
					`(?i)\b(?:architecture|structure|design|framework|stack)\b`,
					`(?i)\b(?:database|api|frontend|backend|server|client)\b`,
					`(?i)\b(?:technology|tech|framework|library|tool)\b.*(?:stack|choice|decision)`,
					`(?i)\b(?:repository|repo|git|github|gitlab)\b`,
					`(?i)\b(?:deployment|production|staging|environment)\b`,
				),
				Keywords: map[string][]string{
					bucketHigh:   {"architecture", "framework", "database", "api", "system"},
					bucketMedium: {"project", "application", "codebase", "technology", "stack"},
					bucketLow:    {"code", "development", "build", "structure"},
				},
			},
			{
				Category: models.CategoryDecision,
				Patterns: compileAll(
					`(?i)\b(?:decided|chosen|selected|picked)\b.*(?:because|since|due to)`,
					`(?i)\b(?:decision|choice|option)\b.*(?:made|taken|selected)`,
					`(?i)\b(?:rationale|reason|reasoning|justification)\b`,
					`(?i)\b(?:trade-off|tradeoff|pros and cons|advantages|disadvantages)\b`,
					`(?i)\b(?:alternative|option|approach)\b.*(?:considered|evaluated|rejected)`,
					`(?i)\b(?:why|because|since|due to)\b.*(?:chose|selected|decided|picked)\b`,
				),
				Keywords: map[string][]string{
					bucketHigh:   {"decision", "decided", "chosen", "rationale", "trade-off"},
					bucketMedium: {"choice", "selected", "reason", "because", "alternative"},
					bucketLow:    {"option", "approach", "consider", "evaluate"},
				},
			},
		},
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}
