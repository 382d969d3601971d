// SPDX-License-Identifier: MIT

package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/fuzzy"
)

func team(name, short, abbrev string) core.Team {
	return core.Team{Name: name, ShortName: short, Abbreviation: abbrev}
}

func eplEvents() []core.Event {
	return []core.Event{
		{
			ID:        "e1",
			Name:      "Manchester United vs Chelsea",
			StartTime: time.Date(2026, 8, 29, 16, 30, 0, 0, time.UTC),
			HomeTeam:  team("Manchester United", "Man United", "MUN"),
			AwayTeam:  team("Chelsea", "Chelsea", "CHE"),
			League:    "eng.1",
		},
		{
			ID:        "e2",
			Name:      "Liverpool vs Arsenal",
			StartTime: time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC),
			HomeTeam:  team("Liverpool", "Liverpool", "LIV"),
			AwayTeam:  team("Arsenal", "Arsenal", "ARS"),
			League:    "eng.1",
		},
	}
}

func TestResolveBothTeams(t *testing.T) {
	sl := NewSingleLeague(fuzzy.NewMatcher(fuzzy.DefaultThreshold), eplEvents())

	res, ok := sl.Resolve("UK| Man U vs Chelsea 16:30")
	require.True(t, ok)
	assert.Equal(t, "e1", res.Event.ID)
	assert.GreaterOrEqual(t, res.Score, 90)
}

func TestResolveDecomposedMatchup(t *testing.T) {
	sl := NewSingleLeague(fuzzy.NewMatcher(fuzzy.DefaultThreshold), eplEvents())

	// Away listed first.
	res, ok := sl.Resolve("Chelsea at Man United")
	require.True(t, ok)
	assert.Equal(t, "e1", res.Event.ID)

	// Home listed first; the orientation swap still resolves.
	res, ok = sl.Resolve("Man United vs Chelsea")
	require.True(t, ok)
	assert.Equal(t, "e1", res.Event.ID)

	// Each side must clear one team; a foreign opponent blocks the match.
	_, ok = sl.Resolve("Chelsea vs Real Madrid")
	assert.False(t, ok)
}

func TestResolveEventNameFallback(t *testing.T) {
	// Only one side is recognizable, so the first pass fails and the
	// event-name pass picks it up.
	events := []core.Event{{
		ID:        "e1",
		Name:      "Super Bowl LXI",
		StartTime: time.Date(2027, 2, 7, 23, 30, 0, 0, time.UTC),
		HomeTeam:  team("TBD", "", ""),
		AwayTeam:  team("TBD", "", ""),
		League:    "nfl",
	}}
	sl := NewSingleLeague(fuzzy.NewMatcher(fuzzy.DefaultThreshold), events)

	res, ok := sl.Resolve("Super Bowl LXI | 6:30pm EST")
	require.True(t, ok)
	assert.Equal(t, "e1", res.Event.ID)
}

func TestResolveNoMatch(t *testing.T) {
	sl := NewSingleLeague(fuzzy.NewMatcher(fuzzy.DefaultThreshold), eplEvents())

	_, ok := sl.Resolve("Cooking with Nonna")
	assert.False(t, ok)
}

func TestResolveTieBreakEarliestStart(t *testing.T) {
	// Same matchup twice (a doubleheader); the earlier start must win.
	early := core.Event{
		ID:        "game1",
		StartTime: time.Date(2026, 7, 4, 17, 0, 0, 0, time.UTC),
		HomeTeam:  team("Boston Red Sox", "Red Sox", "BOS"),
		AwayTeam:  team("New York Yankees", "Yankees", "NYY"),
	}
	late := early
	late.ID = "game2"
	late.StartTime = early.StartTime.Add(4 * time.Hour)

	sl := NewSingleLeague(fuzzy.NewMatcher(fuzzy.DefaultThreshold), []core.Event{late, early})

	res, ok := sl.Resolve("Yankees @ Red Sox")
	require.True(t, ok)
	assert.Equal(t, "game1", res.Event.ID)
}

type stubSource struct {
	events map[string][]core.Event
	calls  map[string]int
}

func (s *stubSource) Events(_ context.Context, league string, _ time.Time) []core.Event {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[league]++
	return s.events[league]
}

func TestMatchStreamsAcrossLeagues(t *testing.T) {
	source := &stubSource{events: map[string][]core.Event{
		"eng.1": eplEvents(),
		"nfl": {{
			ID:        "nfl1",
			Name:      "Green Bay Packers at Chicago Bears",
			StartTime: time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC),
			HomeTeam:  team("Chicago Bears", "Bears", "CHI"),
			AwayTeam:  team("Green Bay Packers", "Packers", "GB"),
			League:    "nfl",
		}},
	}}
	m := NewMultiLeague(source, nil)

	streams := []Stream{
		{ID: "s1", Name: "Man U vs Chelsea"},
		{ID: "s2", Name: "Packers @ Bears 8:15 PM"},
		{ID: "s3", Name: "Unrelated Movie Channel"},
	}
	batch := m.MatchStreams(context.Background(), streams, Options{
		Leagues: []string{"eng.1", "nfl"},
		Date:    time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 2, batch.Matched)
	assert.Equal(t, 2, batch.Included)
	assert.Equal(t, 1, batch.Unmatched)
	assert.Zero(t, batch.Exception)

	require.Len(t, batch.Results, 3)
	assert.Equal(t, "eng.1", batch.Results[0].League)
	assert.Equal(t, "nfl", batch.Results[1].League)
	assert.Equal(t, ReasonNoEventFound, batch.Results[2].Reason)

	// Events fetched once per league, not per stream.
	assert.Equal(t, 1, source.calls["eng.1"])
	assert.Equal(t, 1, source.calls["nfl"])
}

func TestExceptionKeywordRouting(t *testing.T) {
	source := &stubSource{events: map[string][]core.Event{"eng.1": eplEvents()}}
	m := NewMultiLeague(source, nil)

	batch := m.MatchStreams(context.Background(), []Stream{
		{ID: "s1", Name: "Liverpool vs Manchester United (Spanish)"},
		{ID: "s2", Name: "Man U vs Chelsea"},
	}, Options{
		Leagues:           []string{"eng.1"},
		ExceptionKeywords: []string{"spanish"},
	})

	assert.Equal(t, 1, batch.Exception)
	assert.Equal(t, 1, batch.Matched)
	require.True(t, batch.Results[0].Exception)
	assert.Equal(t, ReasonException, batch.Results[0].Reason)
	assert.False(t, batch.Results[0].Matched)

	// Match-rate denominator excludes exceptions: 1/(2-1) = 100%.
	assert.Equal(t, 100.0, batch.MatchRate())
}

func TestWhitelistGate(t *testing.T) {
	source := &stubSource{events: map[string][]core.Event{"eng.1": eplEvents()}}
	m := NewMultiLeague(source, nil)

	batch := m.MatchStreams(context.Background(), []Stream{
		{ID: "s1", Name: "Man U vs Chelsea"},
	}, Options{
		Leagues:   []string{"eng.1"},
		Whitelist: []string{"nfl"},
	})

	require.Len(t, batch.Results, 1)
	r := batch.Results[0]
	assert.True(t, r.Matched)
	assert.False(t, r.Included)
	assert.Equal(t, ReasonNotInWhitelist, r.Reason)
	assert.Equal(t, 1, batch.Matched)
	assert.Equal(t, 1, batch.Excluded)
	assert.Zero(t, batch.Included)
}

func TestLeagueOrderWins(t *testing.T) {
	// The same matchup exists in two leagues; configured order decides.
	shared := core.Event{
		ID:        "dup",
		StartTime: time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC),
		HomeTeam:  team("Chicago Bears", "Bears", "CHI"),
		AwayTeam:  team("Green Bay Packers", "Packers", "GB"),
	}
	source := &stubSource{events: map[string][]core.Event{
		"league-a": {shared},
		"league-b": {shared},
	}}
	m := NewMultiLeague(source, nil)

	batch := m.MatchStreams(context.Background(), []Stream{
		{ID: "s1", Name: "Packers @ Bears"},
	}, Options{Leagues: []string{"league-b", "league-a"}})

	require.Len(t, batch.Results, 1)
	assert.Equal(t, "league-b", batch.Results[0].League)
}
