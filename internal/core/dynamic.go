// SPDX-License-Identifier: MIT

package core

// The dynamic field set is declared once, here. The stream-match cache never
// re-implements it; it only applies MergeDynamic to a cached snapshot.
//
// Dynamic fields change during or after a game and must be refreshed on
// every run: status, scores, streaks, odds. Everything else (teams, venue,
// broadcasts, logos, records at tip-off) is stable for the lifetime of an
// event and stays cached.

// DynamicFields lists the event attributes refreshed from the provider on a
// cache hit.
var DynamicFields = []string{
	"status",
	"home_score",
	"away_score",
	"home_streak",
	"away_streak",
	"odds",
}

// MergeDynamic overlays the dynamic fields of fresh onto cached and returns
// the merged event. A nil fresh event returns cached unchanged.
func MergeDynamic(cached Event, fresh *Event) Event {
	if fresh == nil {
		return cached
	}
	merged := cached
	merged.Status = fresh.Status
	if fresh.HomeScore != nil {
		merged.HomeScore = fresh.HomeScore
	}
	if fresh.AwayScore != nil {
		merged.AwayScore = fresh.AwayScore
	}
	if fresh.HomeStreak != "" {
		merged.HomeStreak = fresh.HomeStreak
	}
	if fresh.AwayStreak != "" {
		merged.AwayStreak = fresh.AwayStreak
	}
	if fresh.Odds != nil {
		merged.Odds = fresh.Odds
	}
	return merged
}
