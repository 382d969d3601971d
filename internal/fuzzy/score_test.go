// SPDX-License-Identifier: MIT

package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("chelsea", "chelsea"))
	assert.Equal(t, 100, Ratio("", ""))
	assert.Equal(t, 0, Ratio("abc", "xyz"))
	assert.Greater(t, Ratio("chelsae", "chelsea"), 70)
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100, PartialRatio("chelsea", "liverpool vs chelsea"))
	assert.Equal(t, 100, PartialRatio("liverpool vs chelsea", "chelsea"))
	assert.Less(t, PartialRatio("arsenal", "liverpool vs chelsea"), 60)
}

func TestTokenSetRatio(t *testing.T) {
	// Same tokens, different order.
	assert.Equal(t, 100, TokenSetRatio("united manchester", "manchester united"))
	// Pattern tokens are a subset of the haystack tokens.
	assert.Equal(t, 100, TokenSetRatio("manchester united", "manchester united vs chelsea"))
}

func TestScoreWeighting(t *testing.T) {
	score, algo := Score("chelsea", "chelsea")
	assert.Equal(t, 100, score)
	assert.Equal(t, AlgoRatio, algo)

	// Subset match wins through the token-set scorer at its weight.
	score, algo = Score("manchester united", "manchester united vs chelsea")
	assert.Equal(t, 95, score)
	assert.Equal(t, AlgoTokenSet, algo)
}

func TestMatchesAny(t *testing.T) {
	m := NewMatcher(DefaultThreshold)

	match := m.MatchesAny([]string{"manchester united", "man utd"}, "Man U vs Chelsea")
	require.True(t, match.Matched)
	assert.GreaterOrEqual(t, match.Score, 90)

	match = m.MatchesAny([]string{"arsenal"}, "Liverpool vs Chelsea")
	assert.False(t, match.Matched)

	match = m.MatchesAny(nil, "anything")
	assert.False(t, match.Matched)
}

func TestMatchesAnyNicknameScenario(t *testing.T) {
	// "Man U vs Chelsea" against the EPL event Manchester United vs Chelsea:
	// both sides must clear 90 after variant expansion.
	m := NewMatcher(DefaultThreshold)

	home := m.MatchesAny([]string{"manchester united"}, "Man U vs Chelsea")
	require.True(t, home.Matched)
	assert.GreaterOrEqual(t, home.Score, 90)

	away := m.MatchesAny([]string{"chelsea"}, "Man U vs Chelsea")
	require.True(t, away.Matched)
	assert.GreaterOrEqual(t, away.Score, 90)
}
