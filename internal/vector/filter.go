package vector

import (
	"encoding/json"
	"fmt"
)

// MatchesFilters reports whether metadata satisfies every filter entry.
// Filter values are interpreted as:
//   - map with $gte/$lte/$eq operator keys: numeric or string comparison
//   - list: metadata value must equal any element
//   - scalar: exact match
//
// A filter key missing from the metadata never matches.
func MatchesFilters(metadata map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		switch w := want.(type) {
		case map[string]any:
			if !matchOperators(got, w) {
				return false
			}
		case []any:
			if !containsEqual(w, got) {
				return false
			}
		case []string:
			found := false
			for _, s := range w {
				if valueEqual(got, s) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if !valueEqual(got, want) {
				return false
			}
		}
	}
	return true
}

func matchOperators(got any, ops map[string]any) bool {
	for op, bound := range ops {
		switch op {
		case "$eq":
			if !valueEqual(got, bound) {
				return false
			}
		case "$gte":
			if cmp, ok := compare(got, bound); !ok || cmp < 0 {
				return false
			}
		case "$lte":
			if cmp, ok := compare(got, bound); !ok || cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsEqual(list []any, got any) bool {
	for _, v := range list {
		if valueEqual(got, v) {
			return true
		}
	}
	return false
}

// valueEqual compares two values, treating all numeric types as equivalent.
func valueEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compare returns -1/0/1 for a<b / a==b / a>b. Numbers compare numerically,
// strings lexically; mixed types do not compare.
func compare(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
