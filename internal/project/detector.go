// Package project infers which project a memory belongs to from its content
// and metadata.
package project

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
)

// ProjectStore is the slice of persistence the detector needs.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *models.Project) error
	ListProjects(ctx context.Context) ([]*models.Project, error)
}

// pathPatterns pull a candidate project name out of path-like mentions.
var pathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[\s/\\])([a-zA-Z0-9_-]+)[/\\](?:src|lib|app|components|pages|views|models|controllers|services|utils|tests?|spec)\b`),
	regexp.MustCompile(`(?i)(?:^|[\s/\\])([a-zA-Z0-9_-]+)[/\\](?:package\.json|requirements\.txt|Cargo\.toml|pom\.xml|build\.gradle|Gemfile|composer\.json)`),
	regexp.MustCompile(`(?i)(?:^|[\s/\\])([a-zA-Z0-9_-]+)[/\\](?:\.git|\.gitignore|README\.md|LICENSE)`),
	regexp.MustCompile(`(?i)(?:^|[\s/\\])([a-zA-Z0-9_-]+)[/\\](?:node_modules|venv|env|\.venv|target|build|dist|out)\b`),
}

// mentionPatterns pull a candidate out of prose like "the foo project".
var mentionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:project|repo|repository|codebase)\s+(?:called|named|is)\s+([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`(?i)working\s+on\s+(?:the\s+)?([a-zA-Z0-9_-]+)\s+(?:project|app|application)`),
	regexp.MustCompile(`(?i)(?:^|\s)([a-zA-Z0-9_-]+)(?:\.git|/\.git)`),
	regexp.MustCompile(`(?i)(?:cd|clone|checkout)\s+([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`(?i)github\.com/[^/\s]+/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`(?i)gitlab\.com/[^/\s]+/([a-zA-Z0-9_-]+)`),
}

// falsePositives are directory names that look like project roots but never
// are.
var falsePositives = map[string]struct{}{
	"src": {}, "lib": {}, "app": {}, "test": {}, "tests": {}, "spec": {},
	"build": {}, "dist": {}, "node_modules": {}, "venv": {}, "env": {},
	"target": {}, "out": {}, "bin": {}, "obj": {}, "main": {}, "index": {},
	"home": {}, "root": {}, "base": {}, "core": {}, "common": {},
	"utils": {}, "helpers": {}, "shared": {}, "public": {}, "static": {}, "assets": {},
}

var projectRootMarkers = map[string]struct{}{
	".git": {}, "package.json": {}, "requirements.txt": {}, "Cargo.toml": {}, "pom.xml": {},
}

var projectRootChildren = map[string]struct{}{
	"src": {}, "lib": {}, "app": {}, "components": {}, "pages": {}, "views": {},
}

var skippedRootDirs = map[string]struct{}{
	"home": {}, "Users": {}, "projects": {}, "workspace": {}, "dev": {},
}

// contextKeywords boost candidates that appear alongside development talk.
var contextKeywords = []string{
	"react", "vue", "angular", "django", "flask", "fastapi", "express",
	"spring", "laravel", "rails", "python", "javascript", "typescript",
	"java", "golang", "rust", ".py", ".js", ".ts", ".go", ".rs", ".java",
}

// Detector resolves or creates projects from conversation content.
type Detector struct {
	projects ProjectStore
	logger   *zap.Logger
}

// NewDetector returns a detector over the given project store.
func NewDetector(projects ProjectStore, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{projects: projects, logger: logger}
}

// DetectProject returns the project ID for a memory, creating the project
// when the content names one that does not exist yet. Returns "" when no
// project can be inferred.
func (d *Detector) DetectProject(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if metadata != nil {
		if id, ok := metadata["project_id"].(string); ok && id != "" {
			return id, nil
		}
		if name, ok := metadata["project_name"].(string); ok && name != "" {
			return d.findOrCreate(ctx, name)
		}
		if filePath, ok := metadata["file_path"].(string); ok && filePath != "" {
			if name := projectFromPath(filePath); name != "" {
				return d.findOrCreate(ctx, name)
			}
		}
	}

	candidates := extractCandidates(content)
	if len(candidates) == 0 {
		return "", nil
	}

	existing, err := d.projects.ListProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list projects: %w", err)
	}
	for _, candidate := range candidates {
		for _, project := range existing {
			if matchesProject(candidate, project) {
				return project.ID, nil
			}
		}
	}

	best := bestCandidate(candidates, content)
	if best == "" {
		return "", nil
	}
	return d.findOrCreate(ctx, best)
}

// ProjectFromPath exposes path-based inference for callers that only have a
// file path.
func ProjectFromPath(filePath string) string {
	return projectFromPath(filePath)
}

func (d *Detector) findOrCreate(ctx context.Context, name string) (string, error) {
	existing, err := d.projects.ListProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list projects: %w", err)
	}
	for _, project := range existing {
		if strings.EqualFold(project.Name, name) {
			return project.ID, nil
		}
	}

	project := &models.Project{
		ID:   uuid.NewString(),
		Name: name,
	}
	if err := d.projects.CreateProject(ctx, project); err != nil {
		return "", fmt.Errorf("failed to create project %q: %w", name, err)
	}
	d.logger.Info("created project from detection",
		zap.String("project_id", project.ID), zap.String("name", name))
	return project.ID, nil
}

// extractCandidates returns deduplicated, filtered candidate names in a
// deterministic order.
func extractCandidates(content string) []string {
	seen := make(map[string]struct{})
	patterns := make([]*regexp.Regexp, 0, len(pathPatterns)+len(mentionPatterns))
	patterns = append(patterns, pathPatterns...)
	patterns = append(patterns, mentionPatterns...)
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			candidate := m[1]
			if len(candidate) < 2 {
				continue
			}
			if _, bad := falsePositives[strings.ToLower(candidate)]; bad {
				continue
			}
			seen[candidate] = struct{}{}
		}
	}

	candidates := make([]string, 0, len(seen))
	for c := range seen {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)
	return candidates
}

func projectFromPath(filePath string) string {
	parts := strings.FieldsFunc(strings.ReplaceAll(filePath, `\`, "/"), func(r rune) bool {
		return r == '/'
	})
	if len(parts) == 0 {
		return ""
	}

	for i, part := range parts {
		if _, marker := projectRootMarkers[part]; marker && i > 0 {
			return parts[i-1]
		}
		if i < len(parts)-1 {
			if _, child := projectRootChildren[parts[i+1]]; child {
				return part
			}
		}
	}

	if len(parts) > 1 {
		start := 0
		if _, skip := skippedRootDirs[parts[0]]; skip {
			start = 1
		}
		if start < len(parts) {
			return parts[start]
		}
	}
	return ""
}

func matchesProject(candidate string, project *models.Project) bool {
	candLower := strings.ToLower(candidate)
	nameLower := strings.ToLower(project.Name)
	if candLower == nameLower {
		return true
	}
	if strings.Contains(nameLower, candLower) || strings.Contains(candLower, nameLower) {
		return true
	}
	if project.Path != "" {
		for _, part := range strings.Split(strings.ToLower(project.Path), "/") {
			if part == candLower {
				return true
			}
		}
	}
	return false
}

// bestCandidate scores candidates by frequency and surrounding development
// context.
func bestCandidate(candidates []string, content string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}
	lower := strings.ToLower(content)

	var best string
	bestScore := -1
	for _, candidate := range candidates {
		candLower := strings.ToLower(candidate)
		score := strings.Count(lower, candLower)

		quoted := regexp.QuoteMeta(candidate)
		for _, pattern := range []string{
			`(?i)\b` + quoted + `\b.*(?:project|repo|repository|codebase)`,
			`(?i)(?:project|repo|repository|codebase).*\b` + quoted + `\b`,
			`(?i)\b` + quoted + `\b.*(?:application|app|system)`,
			`(?i)(?:working|developing|building).*\b` + quoted + `\b`,
		} {
			if regexp.MustCompile(pattern).MatchString(content) {
				score += 2
			}
		}

		for _, keyword := range contextKeywords {
			if strings.Contains(lower, keyword) {
				score++
			}
		}

		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}
