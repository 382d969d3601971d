// SPDX-License-Identifier: MIT

// Package template builds the variable dictionary for title, description
// and channel-name rendering, and resolves conditional description options.
//
// Variables come from three contexts sharing one set of base names: the
// current game (bare names), the next scheduled game (".next" suffix) and
// the most recent completed game (".last" suffix). A missing context
// renders its variables as empty strings; rendering never errors.
package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/core"
)

// Vars is the flat variable dictionary keyed by name.
type Vars map[string]string

// GameContext is one game viewed from a configured team's perspective.
// For event channels TeamID is empty and the perspective is neutral.
type GameContext struct {
	Event    core.Event
	TeamID   string
	Stats    *core.TeamStats
	OppStats *core.TeamStats
	Timezone *time.Location
}

// BuildVars assembles the dictionary: current-game variables under their
// bare names plus suffixed copies for the next and last games. The same
// builder runs against each context; only the key prefix changes.
func BuildVars(current, next, last *GameContext) Vars {
	vars := Vars{}
	addContext(vars, "", current)
	addContext(vars, ".next", next)
	addContext(vars, ".last", last)
	return vars
}

// baseNames is the variable set each context contributes.
var baseNames = []string{
	"team_name", "team_abbrev", "team_league", "team_record", "team_streak",
	"streak_count", "team_rank",
	"opponent_name", "opponent_abbrev", "opponent_record", "opponent_streak",
	"home_team", "away_team", "home", "away", "matchup",
	"venue", "venue_city", "broadcast",
	"spread", "moneyline", "over_under",
	"date", "date_short", "day_of_week", "start_time",
	"home_score", "away_score", "team_score", "opponent_score",
	"result_text", "final_score", "status_detail",
	"is_home", "has_odds", "is_final", "is_live",
	"season_year", "season_type",
}

func addContext(vars Vars, suffix string, ctx *GameContext) {
	if ctx == nil {
		for _, name := range baseNames {
			vars[name+suffix] = ""
		}
		return
	}
	for name, value := range contextValues(ctx) {
		vars[name+suffix] = value
	}
}

func contextValues(ctx *GameContext) map[string]string {
	ev := ctx.Event
	isHome := ctx.TeamID == "" || ev.HomeTeam.ID == ctx.TeamID

	team, opp := ev.HomeTeam, ev.AwayTeam
	if !isHome {
		team, opp = ev.AwayTeam, ev.HomeTeam
	}

	loc := ctx.Timezone
	if loc == nil {
		loc = time.UTC
	}
	start := ev.StartTime.In(loc)

	v := map[string]string{
		"team_name":   team.Name,
		"team_abbrev": team.Abbreviation,
		"team_league": ev.League,

		"opponent_name":   opp.Name,
		"opponent_abbrev": opp.Abbreviation,

		"home_team": ev.HomeTeam.Name,
		"away_team": ev.AwayTeam.Name,
		"home":      shortOrName(ev.HomeTeam),
		"away":      shortOrName(ev.AwayTeam),
		"matchup":   fmt.Sprintf("%s @ %s", shortOrName(ev.AwayTeam), shortOrName(ev.HomeTeam)),

		"broadcast": strings.Join(ev.Broadcasts, ", "),

		"date":        start.Format("Monday, January 2"),
		"date_short":  start.Format("Jan 2"),
		"day_of_week": start.Format("Monday"),
		"start_time":  start.Format("3:04 PM"),

		"status_detail": ev.Status.Detail,

		"is_home":  boolVar(isHome),
		"has_odds": boolVar(ev.HasOdds()),
		"is_final": boolVar(ev.IsFinal()),
		"is_live":  boolVar(ev.Status.State == core.StateLive),

		"season_type": ev.SeasonType,
	}

	if ev.SeasonYear > 0 {
		v["season_year"] = strconv.Itoa(ev.SeasonYear)
	} else {
		v["season_year"] = ""
	}

	if ev.Venue != nil {
		v["venue"] = ev.Venue.Name
		v["venue_city"] = ev.Venue.City
	} else {
		v["venue"] = ""
		v["venue_city"] = ""
	}

	if ev.Odds != nil {
		v["spread"] = ev.Odds.Spread
		v["moneyline"] = ev.Odds.Moneyline
		v["over_under"] = ev.Odds.OverUnder
	} else {
		v["spread"] = ""
		v["moneyline"] = ""
		v["over_under"] = ""
	}

	addStats(v, ctx.Stats, "team_")
	addOppStats(v, ctx.OppStats)
	addScores(v, ev, isHome)
	return v
}

func addStats(v map[string]string, stats *core.TeamStats, prefix string) {
	if stats == nil {
		v[prefix+"record"] = ""
		v[prefix+"streak"] = ""
		v[prefix+"rank"] = ""
		v["streak_count"] = ""
		return
	}
	v[prefix+"record"] = stats.Record
	v[prefix+"streak"] = stats.Streak
	if stats.Rank > 0 {
		v[prefix+"rank"] = strconv.Itoa(stats.Rank)
	} else {
		v[prefix+"rank"] = ""
	}
	v["streak_count"] = streakCount(stats.Streak)
}

func addOppStats(v map[string]string, stats *core.TeamStats) {
	if stats == nil {
		v["opponent_record"] = ""
		v["opponent_streak"] = ""
		return
	}
	v["opponent_record"] = stats.Record
	v["opponent_streak"] = stats.Streak
}

func addScores(v map[string]string, ev core.Event, isHome bool) {
	home, away := scoreString(ev.HomeScore), scoreString(ev.AwayScore)
	v["home_score"] = home
	v["away_score"] = away
	if isHome {
		v["team_score"], v["opponent_score"] = home, away
	} else {
		v["team_score"], v["opponent_score"] = away, home
	}

	if ev.HomeScore == nil || ev.AwayScore == nil {
		v["final_score"] = ""
		v["result_text"] = ""
		return
	}
	hi, lo := *ev.HomeScore, *ev.AwayScore
	if lo > hi {
		hi, lo = lo, hi
	}
	v["final_score"] = fmt.Sprintf("%d-%d", hi, lo)

	if !ev.IsFinal() {
		v["result_text"] = ""
		return
	}
	teamScore, oppScore := *ev.HomeScore, *ev.AwayScore
	if !isHome {
		teamScore, oppScore = oppScore, teamScore
	}
	letter := "W"
	if teamScore < oppScore {
		letter = "L"
	}
	result := fmt.Sprintf("%s %d-%d", letter, hi, lo)
	if strings.Contains(ev.Status.Detail, "OT") {
		result += " (OT)"
	}
	v["result_text"] = result
}

// streakCount extracts the run length from a streak string like "W5" or
// "L2". Anything unparsable is empty.
func streakCount(streak string) string {
	s := strings.TrimSpace(streak)
	if len(s) < 2 {
		return ""
	}
	if s[0] != 'W' && s[0] != 'L' {
		return ""
	}
	if _, err := strconv.Atoi(s[1:]); err != nil {
		return ""
	}
	return s[1:]
}

func scoreString(score *int) string {
	if score == nil {
		return ""
	}
	return strconv.Itoa(*score)
}

func shortOrName(t core.Team) string {
	if t.ShortName != "" {
		return t.ShortName
	}
	return t.Name
}

func boolVar(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
