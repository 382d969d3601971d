// SPDX-License-Identifier: MIT

package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/store"
)

func gameContext() *GameContext {
	h, a := 118, 112
	return &GameContext{
		Event: core.Event{
			ID:        "e1",
			League:    "nba",
			StartTime: time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC),
			HomeTeam:  core.Team{ID: "2", Name: "Boston Celtics", ShortName: "Celtics", Abbreviation: "BOS"},
			AwayTeam:  core.Team{ID: "17", Name: "Los Angeles Lakers", ShortName: "Lakers", Abbreviation: "LAL"},
			Status:    core.EventStatus{State: core.StateFinal, Detail: "Final"},
			HomeScore: &h,
			AwayScore: &a,
			Venue:     &core.Venue{Name: "TD Garden", City: "Boston"},
			Broadcasts: []string{"ESPN", "NBC Sports Boston"},
			Odds:      &core.Odds{Spread: "BOS -6.5", OverUnder: "224.5"},
		},
		TeamID: "2",
		Stats:  &core.TeamStats{Record: "52-20", Streak: "W5", Rank: 1},
	}
}

func TestBuildVarsCurrentContext(t *testing.T) {
	vars := BuildVars(gameContext(), nil, nil)

	assert.Equal(t, "Boston Celtics", vars["team_name"])
	assert.Equal(t, "Los Angeles Lakers", vars["opponent_name"])
	assert.Equal(t, "Lakers @ Celtics", vars["matchup"])
	assert.Equal(t, "52-20", vars["team_record"])
	assert.Equal(t, "5", vars["streak_count"])
	assert.Equal(t, "TD Garden", vars["venue"])
	assert.Equal(t, "ESPN, NBC Sports Boston", vars["broadcast"])
	assert.Equal(t, "BOS -6.5", vars["spread"])
	assert.Equal(t, "true", vars["is_home"])
	assert.Equal(t, "true", vars["is_final"])
	assert.Equal(t, "true", vars["has_odds"])
	assert.Equal(t, "W 118-112", vars["result_text"])
	assert.Equal(t, "118-112", vars["final_score"])
}

func TestBuildVarsAwayPerspective(t *testing.T) {
	ctx := gameContext()
	ctx.TeamID = "17" // Lakers
	vars := BuildVars(ctx, nil, nil)

	assert.Equal(t, "Los Angeles Lakers", vars["team_name"])
	assert.Equal(t, "false", vars["is_home"])
	assert.Equal(t, "112", vars["team_score"])
	assert.Equal(t, "118", vars["opponent_score"])
	assert.Equal(t, "L 118-112", vars["result_text"])
}

func TestBuildVarsSuffixedContexts(t *testing.T) {
	next := gameContext()
	next.Event.ID = "e2"
	next.Event.Status = core.EventStatus{State: core.StateScheduled}
	next.Event.HomeScore, next.Event.AwayScore = nil, nil

	vars := BuildVars(gameContext(), next, nil)

	assert.Equal(t, "Boston Celtics", vars["team_name.next"])
	assert.Equal(t, "false", vars["is_final.next"])
	assert.Equal(t, "", vars["final_score.next"])

	// Missing last context renders empty, never missing.
	last, ok := vars["team_name.last"]
	require.True(t, ok)
	assert.Equal(t, "", last)
	assert.Equal(t, "", vars["result_text.last"])
}

func TestBuildVarsOvertimeSuffix(t *testing.T) {
	ctx := gameContext()
	ctx.Event.Status.Detail = "Final/OT"
	vars := BuildVars(ctx, nil, nil)
	assert.Equal(t, "W 118-112 (OT)", vars["result_text"])
}

func TestRender(t *testing.T) {
	vars := Vars{"team_name": "Boston Celtics", "opponent_name": "Los Angeles Lakers"}

	got := Render("{team_name} vs {opponent_name}", vars)
	assert.Equal(t, "Boston Celtics vs Los Angeles Lakers", got)

	// Unknown variables render empty instead of erroring.
	got = Render("{team_name} {no_such_var}!", vars)
	assert.Equal(t, "Boston Celtics !", got)

	got = Render("no variables here", vars)
	assert.Equal(t, "no variables here", got)
}

func TestRenderSuffixedReference(t *testing.T) {
	vars := Vars{"opponent_name.next": "Miami Heat", "date.next": "Sunday, March 15"}
	got := Render("Next: {opponent_name.next} on {date.next}", vars)
	assert.Equal(t, "Next: Miami Heat on Sunday, March 15", got)
}

func TestEvalCondition(t *testing.T) {
	vars := Vars{
		"streak_count": "5",
		"is_final":     "true",
		"is_playoff":   "false",
		"team_league":  "nba",
		"team_rank":    "",
	}

	tests := []struct {
		cond string
		want bool
	}{
		{"", true},
		{"is_final", true},
		{"is_playoff", false},
		{"no_such_var", false},
		{"streak_count>=3", true},
		{"streak_count>=6", false},
		{"streak_count<6", true},
		{"streak_count==5", true},
		{"streak_count!=5", false},
		{"team_league==nba", true},
		{"team_league!=nba", false},
		{"team_rank>=1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EvalCondition(tt.cond, vars), tt.cond)
	}
}

func TestResolveDescription(t *testing.T) {
	vars := Vars{"streak_count": "5", "is_final": "false", "team_name": "Boston Celtics"}

	options := []store.DescriptionOption{
		{Priority: 100, Body: "first fallback"},
		{Priority: 20, Condition: "is_final", Body: "game over"},
		{Priority: 10, Condition: "streak_count>=3", Body: "{team_name} on a heater"},
		{Priority: 100, Body: "last fallback wins"},
	}

	got := ResolveDescription(options, vars)
	assert.Equal(t, "Boston Celtics on a heater", got)

	// No conditional holds: the last fallback wins.
	vars["streak_count"] = "1"
	got = ResolveDescription(options, vars)
	assert.Equal(t, "last fallback wins", got)

	// No options at all renders empty.
	assert.Equal(t, "", ResolveDescription(nil, vars))
}
