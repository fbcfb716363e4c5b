package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sourknives/cortex-memory/internal/models"
)

// Extraction rule tables, applied after the winning category is known.
var (
	strongPreferenceWords = []string{"always", "never", "must", "required", "essential"}
	mediumPreferenceWords = []string{"prefer", "usually", "typically", "generally"}

	preferenceTypeRules = []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"coding", regexp.MustCompile(`\b(?:code|coding|programming)\b`)},
		{"formatting", regexp.MustCompile(`\b(?:format|formatting|style)\b`)},
		{"tooling", regexp.MustCompile(`\b(?:tool|tools|software)\b`)},
		{"workflow", regexp.MustCompile(`\b(?:workflow|process|method)\b`)},
	}

	preferenceContextPatterns = compileAll(
		`(?i)\bwhen\s+(?:working|coding|developing|building)\s+(?:with|on|in)\s+([^.!?]+)`,
		`(?i)\bfor\s+([^.!?]+?)(?:\s+(?:projects|development|work))`,
		`(?i)\bin\s+([^.!?]+?)(?:\s+(?:context|situations|cases))`,
	)

	problemTypeRules = []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"error", regexp.MustCompile(`\b(?:error|exception|bug|crash|fail)\b`)},
		{"performance", regexp.MustCompile(`\b(?:performance|slow|speed|optimize)\b`)},
		{"security", regexp.MustCompile(`\b(?:security|secure|vulnerability|auth)\b`)},
		{"design", regexp.MustCompile(`\b(?:design|architecture|structure)\b`)},
		{"implementation", regexp.MustCompile(`\b(?:implement|create|build|develop)\b`)},
	}

	stepPatterns = compileAll(
		`(?i)(?:step\s+)?(?:\d+[.)]\s*|first|second|third|next|then|finally)\s*([^.!?\n]+)`,
		`(?i)(?:you\s+(?:can|should|need to)|try|do)\s+([^.!?\n]+)`,
	)

	techPatterns = compileAll(
		`(?i)\b(?:Python|JavaScript|TypeScript|Java|C\+\+|C#|Go|Rust|PHP|Ruby)\b`,
		`(?i)\b(?:React|Vue|Angular|Django|Flask|Express|Spring|Laravel)\b`,
		`(?i)\b(?:MySQL|PostgreSQL|MongoDB|Redis|SQLite|Docker|Kubernetes)\b`,
		`(?i)\b(?:AWS|Azure|GCP|Heroku|Vercel|Netlify)\b`,
	)

	projectTypeRules = []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"web", regexp.MustCompile(`\b(?:web|website|webapp|frontend|backend)\b`)},
		{"mobile", regexp.MustCompile(`\b(?:mobile|app|ios|android|react native|flutter)\b`)},
		{"api", regexp.MustCompile(`\b(?:api|service|microservice|backend|server)\b`)},
		{"desktop", regexp.MustCompile(`\b(?:desktop|gui|electron|tkinter)\b`)},
		{"data", regexp.MustCompile(`\b(?:data|analytics|ml|ai|machine learning)\b`)},
	}

	architecturePatterns = compileAll(
		`\b(?:mvc|mvp|mvvm|microservices|monolith|serverless|event-driven)\b`,
		`\b(?:rest|graphql|grpc|soap)\b`,
		`\b(?:spa|ssr|ssg|pwa)\b`,
	)

	componentPatterns = compileAll(
		`\b(?:database|db|cache|queue|storage)\b`,
		`\b(?:auth|authentication|authorization)\b`,
		`\b(?:logging|monitoring|metrics)\b`,
		`\b(?:testing|ci|cd|deployment)\b`,
	)

	decisionTypeRules = []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"architectural", regexp.MustCompile(`\b(?:architecture|design|structure|pattern)\b`)},
		{"technology", regexp.MustCompile(`\b(?:technology|tool|framework|library)\b`)},
		{"process", regexp.MustCompile(`\b(?:process|workflow|methodology|approach)\b`)},
		{"non-functional", regexp.MustCompile(`\b(?:security|performance|scalability)\b`)},
	}

	rationalePatterns = compileAll(
		`(?i)(?:because|since|due to|reason|rationale)\s+([^.!?\n]+)`,
		`(?i)(?:this|we|i)\s+(?:chose|selected|decided|picked)\s+[^.!?\n]*?\s+(?:because|since|due to)\s+([^.!?\n]+)`,
		`(?i)(?:advantage|benefit|pro)\s+(?:is|of|:)\s*([^.!?\n]+)`,
	)

	alternativePatterns = compileAll(
		`(?i)(?:alternative|option|instead of|rather than|could have)\s+([^.!?\n]+)`,
		`(?i)(?:considered|evaluated|looked at)\s+([^.!?\n]+)`,
		`(?i)(?:vs|versus|compared to)\s+([^.!?\n]+)`,
	)

	outcomePatterns = compileAll(
		`(?i)(?:result|outcome|consequence)\s+(?:is|was|will be)\s+([^.!?\n]+)`,
		`(?i)(?:this|it)\s+(?:resulted in|led to|caused)\s+([^.!?\n]+)`,
	)
)

func extractInfo(category models.Category, userMessage, aiResponse, fullContent string) map[string]any {
	switch category {
	case models.CategoryPreference:
		return extractPreferenceInfo(fullContent)
	case models.CategorySolution:
		return extractSolutionInfo(userMessage, aiResponse)
	case models.CategoryProjectContext:
		return extractProjectInfo(fullContent)
	case models.CategoryDecision:
		return extractDecisionInfo(fullContent)
	default:
		return map[string]any{}
	}
}

func extractPreferenceInfo(content string) map[string]any {
	lower := strings.ToLower(content)

	strength := "weak"
	if containsAny(lower, strongPreferenceWords) {
		strength = "strong"
	} else if containsAny(lower, mediumPreferenceWords) {
		strength = "medium"
	}

	prefType := "general"
	for _, rule := range preferenceTypeRules {
		if rule.pattern.MatchString(lower) {
			prefType = rule.name
			break
		}
	}

	var contexts []string
	for _, p := range preferenceContextPatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			contexts = append(contexts, strings.TrimSpace(m[1]))
		}
	}

	return map[string]any{
		"preference_type": prefType,
		"strength":        strength,
		"context":         contexts,
	}
}

func extractSolutionInfo(userMessage, aiResponse string) map[string]any {
	userLower := strings.ToLower(userMessage)
	problemType := "general"
	for _, rule := range problemTypeRules {
		if rule.pattern.MatchString(userLower) {
			problemType = rule.name
			break
		}
	}

	var steps []string
	for _, p := range stepPatterns {
		for _, m := range p.FindAllStringSubmatch(aiResponse, -1) {
			step := strings.TrimSpace(m[1])
			if len(step) > 10 {
				steps = append(steps, step)
			}
		}
	}
	if len(steps) > 5 {
		steps = steps[:5]
	}

	technologies := findDistinct(techPatterns, userMessage+" "+aiResponse)

	complexity := "medium"
	if len(steps) > 3 || len(technologies) > 2 {
		complexity = "high"
	} else if len(steps) <= 1 && len(technologies) <= 1 {
		complexity = "low"
	}

	return map[string]any{
		"problem_type":   problemType,
		"solution_steps": steps,
		"technologies":   technologies,
		"complexity":     complexity,
	}
}

func extractProjectInfo(content string) map[string]any {
	lower := strings.ToLower(content)

	projectType := "general"
	for _, rule := range projectTypeRules {
		if rule.pattern.MatchString(lower) {
			projectType = rule.name
			break
		}
	}

	arch := findDistinct(architecturePatterns, lower)
	if len(arch) > 5 {
		arch = arch[:5]
	}
	components := findDistinct(componentPatterns, lower)
	if len(components) > 10 {
		components = components[:10]
	}
	technologies := findDistinct(techPatterns, content)
	if len(technologies) > 10 {
		technologies = technologies[:10]
	}

	return map[string]any{
		"project_type":          projectType,
		"technologies":          technologies,
		"architecture_patterns": arch,
		"components":            components,
	}
}

func extractDecisionInfo(content string) map[string]any {
	lower := strings.ToLower(content)

	decisionType := "technical"
	for _, rule := range decisionTypeRules {
		if rule.pattern.MatchString(lower) {
			decisionType = rule.name
			break
		}
	}

	rationale := findSubmatches(rationalePatterns, content, 10)
	if len(rationale) > 3 {
		rationale = rationale[:3]
	}
	alternatives := findSubmatches(alternativePatterns, content, 5)
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}

	var outcome string
	for _, p := range outcomePatterns {
		if m := p.FindStringSubmatch(content); m != nil {
			outcome = strings.TrimSpace(m[1])
			break
		}
	}

	return map[string]any{
		"decision_type": decisionType,
		"rationale":     rationale,
		"alternatives":  alternatives,
		"outcome":       outcome,
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// findDistinct collects deduplicated matches across patterns, sorted for
// deterministic output.
func findDistinct(patterns []*regexp.Regexp, s string) []string {
	seen := make(map[string]struct{})
	for _, p := range patterns {
		for _, m := range p.FindAllString(s, -1) {
			seen[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// findSubmatches collects first capture groups longer than minLen.
func findSubmatches(patterns []*regexp.Regexp, s string, minLen int) []string {
	var out []string
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(s, -1) {
			v := strings.TrimSpace(m[1])
			if len(v) > minLen {
				out = append(out, v)
			}
		}
	}
	return out
}
