package tagging

import (
	"testing"

	"go.uber.org/zap"
)

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

func TestGenerateTagsTechnicalTerms(t *testing.T) {
	tagger := NewTagger(zap.NewNop())
	tags := tagger.GenerateTags(
		"We deployed the django app with docker and connected it to postgresql", nil)

	for _, want := range []string{"django", "docker", "postgresql"} {
		if !hasTag(tags, want) {
			t.Errorf("tags = %v, missing %q", tags, want)
		}
	}
	if len(tags) > defaultMaxTags {
		t.Errorf("got %d tags, max is %d", len(tags), defaultMaxTags)
	}
}

func TestGenerateTagsAliases(t *testing.T) {
	tagger := NewTagger(zap.NewNop())
	tags := tagger.GenerateTags("migrated the k8s manifests and the py scripts", nil)

	if !hasTag(tags, "kubernetes") {
		t.Errorf("tags = %v, k8s should map to kubernetes", tags)
	}
	if !hasTag(tags, "python") {
		t.Errorf("tags = %v, py should map to python", tags)
	}
}

func TestGenerateTagsPatterns(t *testing.T) {
	tagger := NewTagger(zap.NewNop())

	tags := tagger.GenerateTags("the request failed with a 404 error after npm install", nil)
	if !hasTag(tags, "http-404") {
		t.Errorf("tags = %v, missing http-404", tags)
	}
	if !hasTag(tags, "npm-install") {
		t.Errorf("tags = %v, missing npm-install", tags)
	}

	tags = tagger.GenerateTags("caught a TypeError in handler.py while parsing", nil)
	if !hasTag(tags, "error-type") {
		t.Errorf("tags = %v, missing error-type", tags)
	}
	if !hasTag(tags, "file-py") {
		t.Errorf("tags = %v, missing file-py", tags)
	}
}

func TestGenerateTagsMetadata(t *testing.T) {
	tagger := NewTagger(zap.NewNop())
	tags := tagger.GenerateTags("short note from cursor", map[string]any{
		"tool_name":    "cursor",
		"file_path":    "src/services/auth.go",
		"project_name": "Cortex Memory",
		"user_query":   "how to configure the timeout",
	})

	for _, want := range []string{"cursor", "directory-src", "directory-services", "project-cortex-memory", "how-to"} {
		if !hasTag(tags, want) {
			t.Errorf("tags = %v, missing %q", tags, want)
		}
	}
}

func TestGenerateTagsKeywordFrequency(t *testing.T) {
	tagger := NewTagger(zap.NewNop())
	tags := tagger.GenerateTags(
		"the scheduler retries the scheduler queue when the scheduler stalls", nil)

	if !hasTag(tags, "scheduler") {
		t.Errorf("tags = %v, repeated word should become a tag", tags)
	}
	// "queue" and "stalls" appear once and should not.
	if hasTag(tags, "stalls") {
		t.Errorf("tags = %v, single-occurrence word should not become a tag", tags)
	}
}

func TestGenerateTagsEmptyContent(t *testing.T) {
	tagger := NewTagger(zap.NewNop())
	if tags := tagger.GenerateTags("", nil); len(tags) != 0 {
		t.Errorf("tags = %v, want none for empty content", tags)
	}
}

func TestSuggestProjectTags(t *testing.T) {
	tagger := NewTagger(zap.NewNop())
	contents := []string{
		"set up the django models with postgresql",
		"django migration failed on postgresql 14",
		"added redis caching in front of django views",
	}
	tags := tagger.SuggestProjectTags(contents)

	if !hasTag(tags, "django") {
		t.Errorf("project tags = %v, missing django", tags)
	}
	if hasTag(tags, "redis") {
		t.Errorf("project tags = %v, redis appears once and should be dropped", tags)
	}

	if got := tagger.SuggestProjectTags(nil); got != nil {
		t.Errorf("project tags for no conversations = %v, want nil", got)
	}
}

func TestIsTechnicalTag(t *testing.T) {
	tagger := NewTagger(zap.NewNop())
	if !tagger.IsTechnicalTag("docker") {
		t.Error("docker should be technical")
	}
	if tagger.IsTechnicalTag("scheduler") {
		t.Error("scheduler should not be technical")
	}
}
