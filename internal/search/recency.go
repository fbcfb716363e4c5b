package search

import (
	"math"
	"time"
)

// recencyHalfLife is how long it takes a document's recency score to halve.
const recencyHalfLife = 7 * 24 * time.Hour

// RecencyScore maps a document's age to (0,1]: 1.0 for brand-new content,
// halving every week, strictly decreasing with age. Documents without a
// parseable timestamp score 0.
func RecencyScore(metadata map[string]any, now time.Time) float64 {
	ts := documentTime(metadata)
	if ts.IsZero() {
		return 0
	}
	age := now.Sub(ts)
	if age <= 0 {
		return 1.0
	}
	return math.Pow(0.5, float64(age)/float64(recencyHalfLife))
}

func documentTime(metadata map[string]any) time.Time {
	raw, ok := metadata["timestamp"]
	if !ok {
		return time.Time{}
	}
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
