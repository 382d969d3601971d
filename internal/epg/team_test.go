// SPDX-License-Identifier: MIT

package epg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/store"
)

func testChannel() TeamChannel {
	return TeamChannel{
		ChannelID: "celtics.teamarr",
		Name:      "Boston Celtics",
		TeamID:    "2",
	}
}

func testEvent(id string, start time.Time) core.Event {
	return core.Event{
		ID:        id,
		League:    "nba",
		StartTime: start,
		HomeTeam:  core.Team{ID: "2", Name: "Boston Celtics", ShortName: "Celtics", Abbreviation: "BOS"},
		AwayTeam:  core.Team{ID: "17", Name: "Los Angeles Lakers", ShortName: "Lakers", Abbreviation: "LAL"},
		Status:    core.EventStatus{State: core.StateScheduled},
	}
}

// requireContiguous asserts the channel invariant: programmes tile the
// window exactly, back to back, with no overlaps.
func requireContiguous(t *testing.T, ps []core.Programme, windowStart, windowEnd time.Time) {
	t.Helper()
	require.NotEmpty(t, ps)
	assert.True(t, ps[0].Start.Equal(windowStart), "lineup starts at window start")
	assert.True(t, ps[len(ps)-1].Stop.Equal(windowEnd), "lineup ends at window end")
	for i, p := range ps {
		assert.True(t, p.Start.Before(p.Stop), "programme %d has positive duration", i)
		if i > 0 {
			assert.True(t, ps[i-1].Stop.Equal(p.Start),
				"programme %d is contiguous with its predecessor", i)
		}
	}
}

func TestGenerateEmptySchedule(t *testing.T) {
	g := &TeamGenerator{}
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	ps := g.Generate(testChannel(), nil, store.Template{}, start, end)
	require.Len(t, ps, 1)
	assert.Equal(t, core.KindNoGame, ps[0].Kind)
	assert.Equal(t, defaultNoGameTitle, ps[0].Title)
	requireContiguous(t, ps, start, end)
}

func TestGenerateSingleGame(t *testing.T) {
	g := &TeamGenerator{}
	windowStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 2)
	gameStart := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

	tpl := store.Template{
		Title:          "{matchup}",
		PregameMinutes: 30,
		DurationHours:  3,
	}
	ps := g.Generate(testChannel(), []core.Event{testEvent("e1", gameStart)}, tpl, windowStart, windowEnd)
	requireContiguous(t, ps, windowStart, windowEnd)

	var game *core.Programme
	for i := range ps {
		if ps[i].Kind == core.KindEvent {
			require.Nil(t, game, "exactly one event programme")
			game = &ps[i]
		}
	}
	require.NotNil(t, game)
	assert.Equal(t, "Lakers @ Celtics", game.Title)
	assert.True(t, game.Start.Equal(gameStart.Add(-30*time.Minute)))
	assert.True(t, game.Stop.Equal(gameStart.Add(3*time.Hour)))
}

func TestGenerateFillerWindows(t *testing.T) {
	g := &TeamGenerator{}
	windowStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 4)

	tpl := store.Template{
		Title:          "{matchup}",
		PregameMinutes: 30,
		DurationHours:  3,
		PregamePeriods: []store.FillerPeriod{
			{StartHoursBefore: 2, EndHoursBefore: 0.5, Title: "Pregame Show"},
		},
		PostgamePeriods: []store.FillerPeriod{
			{StartHoursBefore: 0, EndHoursBefore: 1, Title: "Postgame Wrap"},
		},
	}
	events := []core.Event{
		testEvent("e1", time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)),
		testEvent("e2", time.Date(2026, 3, 16, 23, 0, 0, 0, time.UTC)),
	}
	ps := g.Generate(testChannel(), events, tpl, windowStart, windowEnd)
	requireContiguous(t, ps, windowStart, windowEnd)

	counts := map[core.ProgrammeKind]int{}
	for _, p := range ps {
		counts[p.Kind]++
	}
	assert.Equal(t, 2, counts[core.KindEvent])
	assert.Equal(t, 2, counts[core.KindPregame])
	assert.Equal(t, 2, counts[core.KindPostgame])
	assert.GreaterOrEqual(t, counts[core.KindIdle], 1, "between-games gap is idle filler")
	assert.GreaterOrEqual(t, counts[core.KindNoGame], 1, "window edges are no_game")

	// Pregame show abuts the game programme: it ends where the 30-minute
	// pregame lead-in begins.
	var pre, game *core.Programme
	for i := range ps {
		if ps[i].Kind == core.KindPregame && pre == nil {
			pre = &ps[i]
		}
		if ps[i].Kind == core.KindEvent && game == nil {
			game = &ps[i]
		}
	}
	require.NotNil(t, pre)
	require.NotNil(t, game)
	assert.Equal(t, "Pregame Show", pre.Title)
	assert.True(t, pre.Stop.Equal(game.Start))
}

func TestGenerateGameSpanningMidnight(t *testing.T) {
	g := &TeamGenerator{}
	windowStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 2)

	// 23:30 start plus three hours pushes past midnight; the lineup must
	// stay contiguous with no overlap at the boundary.
	ps := g.Generate(testChannel(),
		[]core.Event{testEvent("e1", time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC))},
		store.Template{}, windowStart, windowEnd)
	requireContiguous(t, ps, windowStart, windowEnd)
}

func TestGenerateClipsToWindow(t *testing.T) {
	g := &TeamGenerator{}
	windowStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 1)

	events := []core.Event{
		testEvent("before", windowStart.Add(-48*time.Hour)),
		testEvent("inside", windowStart.Add(20*time.Hour)),
		testEvent("after", windowEnd.Add(48*time.Hour)),
	}
	ps := g.Generate(testChannel(), events, store.Template{}, windowStart, windowEnd)
	requireContiguous(t, ps, windowStart, windowEnd)

	games := 0
	for _, p := range ps {
		if p.Kind == core.KindEvent {
			games++
		}
	}
	assert.Equal(t, 1, games, "out-of-window games are dropped")
}
