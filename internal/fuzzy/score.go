// SPDX-License-Identifier: MIT

package fuzzy

import (
	"sort"
	"strings"
)

// levenshtein computes edit distance between two strings by rune.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	lenA, lenB := len(ra), len(rb)

	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	prev := make([]int, lenB+1)
	cur := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}
	for i := 1; i <= lenA; i++ {
		cur[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			cur[j] = min3(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[lenB]
}

func min3(x, y, z int) int {
	if y < x {
		x = y
	}
	if z < x {
		x = z
	}
	return x
}

// Ratio is plain edit-distance similarity on a 0-100 scale.
func Ratio(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein(a, b)
	return (longest - d) * 100 / longest
}

// PartialRatio slides the shorter string across the longer and returns the
// best window similarity. A clean substring scores 100.
func PartialRatio(a, b string) int {
	short, long := a, b
	if len([]rune(short)) > len([]rune(long)) {
		short, long = long, short
	}
	rs, rl := []rune(short), []rune(long)
	if len(rs) == 0 {
		return 100
	}
	if strings.Contains(long, short) {
		return 100
	}
	best := 0
	for i := 0; i+len(rs) <= len(rl); i++ {
		score := Ratio(short, string(rl[i:i+len(rs)]))
		if score > best {
			best = score
		}
	}
	// Also compare against the whole longer string when it is shorter than
	// one full window step would allow.
	if score := Ratio(short, long); score > best {
		best = score
	}
	return best
}

// TokenSetRatio compares the token sets of both strings the fuzzywuzzy way:
// the shared-token core against each side's remainder.
func TokenSetRatio(a, b string) int {
	ta := tokenSet(a)
	tb := tokenSet(b)

	var inter, diffA, diffB []string
	for t := range ta {
		if tb[t] {
			inter = append(inter, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			diffB = append(diffB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(diffA)
	sort.Strings(diffB)

	core := strings.Join(inter, " ")
	s1 := strings.TrimSpace(core + " " + strings.Join(diffA, " "))
	s2 := strings.TrimSpace(core + " " + strings.Join(diffB, " "))

	best := Ratio(core, s1)
	if r := Ratio(core, s2); r > best {
		best = r
	}
	if r := Ratio(s1, s2); r > best {
		best = r
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

// Algorithm identifies which scorer produced a match.
type Algorithm string

const (
	AlgoRatio    Algorithm = "ratio"
	AlgoTokenSet Algorithm = "token_set"
	AlgoPartial  Algorithm = "partial"
)

// scorer weights: exact similarity counts fully; set and substring
// similarity are discounted because they ignore word order and context.
const (
	tokenSetWeight = 0.95
	partialWeight  = 0.90
)

// Score combines the three metrics into a single weighted 0-100 value and
// reports the dominant algorithm.
func Score(a, b string) (int, Algorithm) {
	best := Ratio(a, b)
	algo := AlgoRatio
	if s := int(float64(TokenSetRatio(a, b)) * tokenSetWeight); s > best {
		best = s
		algo = AlgoTokenSet
	}
	if s := int(float64(PartialRatio(a, b)) * partialWeight); s > best {
		best = s
		algo = AlgoPartial
	}
	return best, algo
}
