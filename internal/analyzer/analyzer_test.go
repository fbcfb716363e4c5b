package analyzer

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/sourknives/cortex-memory/internal/models"
)

func newAnalyzer() *Analyzer {
	return New(nil, zap.NewNop())
}

func TestExplicitRequestShortCircuits(t *testing.T) {
	a := newAnalyzer()
	result := a.AnalyzeForStorage("please remember this: I prefer snake_case", "Noted.", "", "cursor")

	if result.Category != models.CategoryExplicitRequest {
		t.Fatalf("category = %q, want explicit_request", result.Category)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", result.Confidence)
	}
	if !result.ShouldStore || !result.AutoStore {
		t.Fatalf("should_store = %v, auto_store = %v, want both true", result.ShouldStore, result.AutoStore)
	}
	if result.ExtractedInfo["request_type"] != "explicit" {
		t.Fatalf("extracted info = %v, want request_type explicit", result.ExtractedInfo)
	}
}

func TestCategoryDetection(t *testing.T) {
	a := newAnalyzer()
	cases := []struct {
		name        string
		userMessage string
		aiResponse  string
		want        models.Category
	}{
		{
			name:        "preference",
			userMessage: "I always prefer to use tabs, that is my usual style and standard approach",
			aiResponse:  "Understood, I will format with tabs from now on.",
			want:        models.CategoryPreference,
		},
		{
			name:        "solution",
			userMessage: "I keep hitting an error when running the migration",
			aiResponse:  "Here's how to fix the issue. Step 1: drop the stale lock table. Try this workaround if the error persists.",
			want:        models.CategorySolution,
		},
		{
			name:        "project context",
			userMessage: "What does our stack look like?",
			aiResponse:  "The application uses a microservices architecture with a PostgreSQL database behind a REST api, deployed to production from the github repository.",
			want:        models.CategoryProjectContext,
		},
		{
			name:        "decision",
			userMessage: "Why did we pick PostgreSQL?",
			aiResponse:  "We decided on PostgreSQL because of operational maturity. The rationale covered the trade-off against the alternative options we considered and evaluated.",
			want:        models.CategoryDecision,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := a.AnalyzeForStorage(tc.userMessage, tc.aiResponse, "", "cursor")
			if result.Category != tc.want {
				t.Fatalf("category = %q, want %q (reason %q)", result.Category, tc.want, result.Reason)
			}
			if !result.ShouldStore {
				t.Fatalf("should_store = false, confidence %v", result.Confidence)
			}
			if !strings.Contains(result.SuggestedContent, tc.userMessage) {
				t.Fatalf("suggested content missing user message: %q", result.SuggestedContent)
			}
		})
	}
}

func TestNoCategoryBelowMinimumScore(t *testing.T) {
	a := newAnalyzer()
	result := a.AnalyzeForStorage("good morning", "Good morning to you too.", "", "cursor")

	if result.Category != models.CategoryNone {
		t.Fatalf("category = %q, want none", result.Category)
	}
	if result.ShouldStore || result.AutoStore {
		t.Fatalf("should_store = %v, auto_store = %v, want both false", result.ShouldStore, result.AutoStore)
	}
	if result.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", result.Confidence)
	}
}

// The store flags must always agree with the confidence thresholds, whatever
// the input.
func TestThresholdConsistency(t *testing.T) {
	a := newAnalyzer()
	inputs := []struct{ user, ai string }{
		{"please remember this for later", "Saved."},
		{"I always prefer tabs, my standard approach", "Noted."},
		{"hit an error in the build", "Here's how to fix the issue: step 1, clear the cache. Try this workaround."},
		{"hello", "Hi there."},
		{"What does the project use?", "The application uses a PostgreSQL database and a REST api behind the backend server."},
	}
	for _, in := range inputs {
		result := a.AnalyzeForStorage(in.user, in.ai, "", "cursor")
		wantAuto := result.Confidence >= AutoStoreThreshold
		if result.AutoStore != wantAuto {
			t.Errorf("%q: auto_store = %v, confidence %v", in.user, result.AutoStore, result.Confidence)
		}
		explicit := result.Category == models.CategoryExplicitRequest
		wantStore := result.Confidence >= SuggestionThreshold || explicit
		if result.ShouldStore != wantStore {
			t.Errorf("%q: should_store = %v, confidence %v", in.user, result.ShouldStore, result.Confidence)
		}
	}
}

func TestCodePresenceRaisesConfidence(t *testing.T) {
	a := newAnalyzer()
	user := "I always prefer to use tabs, that is my usual style"
	plain := a.AnalyzeForStorage(user, "Noted, tabs it is.", "", "cursor")
	withCode := a.AnalyzeForStorage(user, "Noted, tabs it is.\n```\nx = 1\n```", "", "cursor")

	if withCode.Confidence <= plain.Confidence {
		t.Fatalf("confidence with code = %v, without = %v, want higher with code",
			withCode.Confidence, plain.Confidence)
	}
}

func TestExtractSolutionInfo(t *testing.T) {
	a := newAnalyzer()
	result := a.AnalyzeForStorage(
		"I keep hitting an error when the Python worker crashes",
		"Here's how to fix the issue. Step 1: restart the Redis instance before the worker connects. Try this workaround if the error shows up again after deploys.",
		"", "cursor")

	if result.Category != models.CategorySolution {
		t.Fatalf("category = %q, want solution", result.Category)
	}
	if result.ExtractedInfo["problem_type"] != "error" {
		t.Fatalf("problem_type = %v, want error", result.ExtractedInfo["problem_type"])
	}
	techs, _ := result.ExtractedInfo["technologies"].([]string)
	joined := strings.Join(techs, " ")
	if !strings.Contains(joined, "Python") || !strings.Contains(joined, "Redis") {
		t.Fatalf("technologies = %v, want Python and Redis", techs)
	}
	steps, _ := result.ExtractedInfo["solution_steps"].([]string)
	if len(steps) == 0 {
		t.Fatalf("solution_steps empty")
	}
}

func TestExtractPreferenceInfo(t *testing.T) {
	info := extractPreferenceInfo("I always prefer tabs when working with Go projects")
	if info["strength"] != "strong" {
		t.Fatalf("strength = %v, want strong", info["strength"])
	}
	if info["preference_type"] != "general" {
		t.Fatalf("preference_type = %v, want general", info["preference_type"])
	}
}

func TestApplyLearningAdjustments(t *testing.T) {
	a := newAnalyzer()
	base := models.AnalysisResult{
		ShouldStore: true,
		Confidence:  0.7,
		Category:    models.CategorySolution,
		Reason:      "identified problem-solution pair with 70% confidence",
	}

	t.Run("negative adjustment lowers confidence and thresholds", func(t *testing.T) {
		adjusted := a.ApplyLearningAdjustments(base, models.LearningAdjustments{
			models.CategorySolution: {AutoStore: -0.2, Suggestion: -0.1},
		})
		if got, want := adjusted.Confidence, 0.6; math.Abs(got-want) > 1e-9 {
			t.Fatalf("confidence = %v, want %v", got, want)
		}
		// 0.6 < 0.85-0.2, 0.6 >= 0.60-0.1
		if adjusted.AutoStore {
			t.Fatal("auto_store = true, want false")
		}
		if !adjusted.ShouldStore {
			t.Fatal("should_store = false, want true")
		}
		if !strings.HasSuffix(adjusted.Reason, "(adjusted based on user feedback)") {
			t.Fatalf("reason = %q, missing adjustment suffix", adjusted.Reason)
		}
	})

	t.Run("no adjustment for category leaves result untouched", func(t *testing.T) {
		adjusted := a.ApplyLearningAdjustments(base, models.LearningAdjustments{
			models.CategoryPreference: {AutoStore: 0.1},
		})
		if !reflect.DeepEqual(adjusted, base) {
			t.Fatalf("result changed: %+v", adjusted)
		}
	})

	t.Run("confidence stays clamped", func(t *testing.T) {
		high := base
		high.Confidence = 0.95
		adjusted := a.ApplyLearningAdjustments(high, models.LearningAdjustments{
			models.CategorySolution: {AutoStore: 0.2},
		})
		if adjusted.Confidence > 1.0 {
			t.Fatalf("confidence = %v, exceeds 1.0", adjusted.Confidence)
		}
	})
}
