package utils

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`\w+`)

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Words returns the lowercased word tokens of s (runs of letters, digits,
// and underscores).
func Words(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// WordSet returns the distinct lowercased word tokens of s.
func WordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(s) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns the Jaccard similarity of two word sets (intersection over
// union). Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
