// SPDX-License-Identifier: MIT

package fuzzy

import "github.com/teamarr/teamarr/internal/core"

// DefaultThreshold is the minimum weighted score a pattern must reach to
// count as a match.
const DefaultThreshold = 75

// Match is the outcome of testing one or more patterns against a haystack.
type Match struct {
	Matched   bool
	Pattern   string
	Score     int
	Algorithm Algorithm
}

// Matcher scores normalized patterns against normalized stream names.
type Matcher struct {
	threshold int
}

// NewMatcher returns a matcher with the given threshold; values outside
// 1-100 fall back to DefaultThreshold.
func NewMatcher(threshold int) *Matcher {
	if threshold < 1 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured minimum score.
func (m *Matcher) Threshold() int { return m.threshold }

// MatchesAny returns the best-scoring pattern at or above the threshold.
// Patterns and haystack are normalized before scoring so callers may pass
// raw text.
func (m *Matcher) MatchesAny(patterns []string, haystack string) Match {
	hay := Normalize(haystack)
	best := Match{}
	for _, p := range patterns {
		np := Normalize(p)
		if np == "" {
			continue
		}
		score, algo := Score(np, hay)
		if score >= m.threshold && score > best.Score {
			best = Match{Matched: true, Pattern: np, Score: score, Algorithm: algo}
		}
	}
	return best
}

// TeamPatterns generates the search pattern set for one team: full name,
// short name, abbreviation and location-only, normalized and deduplicated.
// Single-character leftovers are dropped; they match everything.
func TeamPatterns(t core.Team) []string {
	candidates := []string{t.Name, t.ShortName, t.Abbreviation, locationOnly(t)}
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		n := Normalize(c)
		if len(n) < 2 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// locationOnly strips the trailing mascot from a full team name: the name
// minus the short name suffix ("Manchester United" minus "United").
func locationOnly(t core.Team) string {
	name := Normalize(t.Name)
	short := Normalize(t.ShortName)
	if short == "" || name == short {
		return ""
	}
	if cut, ok := trimSuffixWord(name, short); ok {
		return cut
	}
	return ""
}

func trimSuffixWord(s, suffix string) (string, bool) {
	if len(s) <= len(suffix) {
		return "", false
	}
	if s[len(s)-len(suffix):] != suffix {
		return "", false
	}
	rest := s[:len(s)-len(suffix)]
	if rest == "" || rest[len(rest)-1] != ' ' {
		return "", false
	}
	return rest[:len(rest)-1], true
}
