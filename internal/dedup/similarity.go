package dedup

import "strings"

// MatchRatio returns a similarity ratio in [0,1] for two strings: twice the
// number of matching characters (found via longest-matching-block
// decomposition) divided by the total length. Inputs are lowercased and
// trimmed first.
func MatchRatio(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	b2j := make(map[rune][]int, len(rb))
	for j, r := range rb {
		b2j[r] = append(b2j[r], j)
	}

	matches := matchingTotal(ra, rb, b2j, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matches) / float64(len(ra)+len(rb))
}

// matchingTotal sums matching characters by finding the longest matching
// block in the window and recursing on both sides.
func matchingTotal(a, b []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) int {
	besti, bestj, bestsize := longestMatch(a, b2j, alo, ahi, blo, bhi)
	if bestsize == 0 {
		return 0
	}
	total := bestsize
	total += matchingTotal(a, b, b2j, alo, besti, blo, bestj)
	total += matchingTotal(a, b, b2j, besti+bestsize, ahi, bestj+bestsize, bhi)
	return total
}

// longestMatch finds the longest block a[i:i+size] == b[j:j+size] within the
// given windows, preferring the earliest block on ties.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
