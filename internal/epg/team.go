// SPDX-License-Identifier: MIT

package epg

import (
	"sort"
	"time"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/store"
	"github.com/teamarr/teamarr/internal/template"
)

const (
	defaultPregameMinutes = 30
	defaultDurationHours  = 3

	defaultNoGameTitle = "No Games Scheduled"
	defaultIdleTitle   = "Team Programming"
)

// TeamChannel identifies the output channel of a team generation.
type TeamChannel struct {
	ChannelID string
	Name      string
	Icon      string
	TeamID    string
}

// TeamGenerator turns a team's schedule into a contiguous programme lineup.
type TeamGenerator struct {
	Timezone *time.Location
}

// Generate emits the programmes for one team channel across the window.
// Every game gets an event programme bracketed by the template's pregame
// and postgame windows; remaining gaps are closed with idle filler, and
// window edges with no_game placeholders, so the lineup is contiguous and
// non-overlapping from windowStart to windowEnd.
func (g *TeamGenerator) Generate(ch TeamChannel, events []core.Event, tpl store.Template, windowStart, windowEnd time.Time) []core.Programme {
	if !windowStart.Before(windowEnd) {
		return nil
	}

	loc := g.Timezone
	if loc == nil {
		loc = time.UTC
	}
	pregame := time.Duration(orDefault(tpl.PregameMinutes, defaultPregameMinutes)) * time.Minute
	duration := time.Duration(orDefault(tpl.DurationHours, defaultDurationHours)) * time.Hour

	sorted := make([]core.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var out []core.Programme
	for i, ev := range sorted {
		vars := g.buildVars(ch, sorted, i, loc)

		gameStart := ev.StartTime.Add(-pregame)
		gameStop := ev.StartTime.Add(duration)

		title := template.Render(tpl.Title, vars)
		if title == "" {
			title = vars["matchup"]
		}
		desc := template.ResolveDescription(tpl.DescriptionOptions, vars)
		if desc == "" {
			desc = template.Render(tpl.Description, vars)
		}
		out = append(out, core.Programme{
			ChannelID:   ch.ChannelID,
			Title:       title,
			Start:       gameStart,
			Stop:        gameStop,
			Description: desc,
			Icon:        ch.Icon,
			Kind:        core.KindEvent,
		})

		for _, p := range tpl.PregamePeriods {
			start := ev.StartTime.Add(-hours(p.StartHoursBefore))
			stop := ev.StartTime.Add(-hours(p.EndHoursBefore))
			if stop.After(gameStart) {
				stop = gameStart
			}
			if !start.Before(stop) {
				continue
			}
			out = append(out, core.Programme{
				ChannelID:   ch.ChannelID,
				Title:       orRender(p.Title, vars, "Pregame"),
				Start:       start,
				Stop:        stop,
				Description: template.Render(p.Description, vars),
				Icon:        ch.Icon,
				Kind:        core.KindPregame,
			})
		}

		// Postgame windows mirror pregame: offsets are hours after the
		// game programme ends.
		for _, p := range tpl.PostgamePeriods {
			start := gameStop.Add(hours(p.StartHoursBefore))
			stop := gameStop.Add(hours(p.EndHoursBefore))
			if start.Before(gameStop) {
				start = gameStop
			}
			if !start.Before(stop) {
				continue
			}
			out = append(out, core.Programme{
				ChannelID:   ch.ChannelID,
				Title:       orRender(p.Title, vars, "Postgame"),
				Start:       start,
				Stop:        stop,
				Description: template.Render(p.Description, vars),
				Icon:        ch.Icon,
				Kind:        core.KindPostgame,
			})
		}
	}

	return g.fill(ch, tpl, out, windowStart, windowEnd)
}

// buildVars assembles the template dictionary for the game at index i,
// using the following game as the .next context and the nearest completed
// earlier game as .last.
func (g *TeamGenerator) buildVars(ch TeamChannel, events []core.Event, i int, loc *time.Location) template.Vars {
	current := &template.GameContext{Event: events[i], TeamID: ch.TeamID, Timezone: loc}

	var next, last *template.GameContext
	if i+1 < len(events) {
		next = &template.GameContext{Event: events[i+1], TeamID: ch.TeamID, Timezone: loc}
	}
	for j := i - 1; j >= 0; j-- {
		if events[j].IsFinal() {
			last = &template.GameContext{Event: events[j], TeamID: ch.TeamID, Timezone: loc}
			break
		}
	}
	return template.BuildVars(current, next, last)
}

// fill clips programmes to the window, resolves overlaps in favour of the
// later start, and closes every remaining gap: between games with idle,
// at the window edges with no_game. An empty schedule yields one no_game
// programme spanning the whole window.
func (g *TeamGenerator) fill(ch TeamChannel, tpl store.Template, programmes []core.Programme, windowStart, windowEnd time.Time) []core.Programme {
	noGameTitle := orString(tpl.NoGameTitle, defaultNoGameTitle)
	idleTitle := orString(tpl.IdleTitle, defaultIdleTitle)

	filler := func(kind core.ProgrammeKind, start, stop time.Time) core.Programme {
		title, desc := idleTitle, tpl.IdleDescription
		if kind == core.KindNoGame {
			title, desc = noGameTitle, tpl.NoGameDescription
		}
		return core.Programme{
			ChannelID:   ch.ChannelID,
			Title:       title,
			Start:       start,
			Stop:        stop,
			Description: desc,
			Icon:        ch.Icon,
			Kind:        kind,
		}
	}

	var clipped []core.Programme
	for _, p := range programmes {
		if p.Start.Before(windowStart) {
			p.Start = windowStart
		}
		if p.Stop.After(windowEnd) {
			p.Stop = windowEnd
		}
		if p.Start.Before(p.Stop) {
			clipped = append(clipped, p)
		}
	}
	if len(clipped) == 0 {
		return []core.Programme{filler(core.KindNoGame, windowStart, windowEnd)}
	}

	sort.SliceStable(clipped, func(i, j int) bool {
		return clipped[i].Start.Before(clipped[j].Start)
	})

	var out []core.Programme
	if windowStart.Before(clipped[0].Start) {
		out = append(out, filler(core.KindNoGame, windowStart, clipped[0].Start))
	}
	for _, p := range clipped {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if p.Start.Before(prev.Stop) {
				// Overlap: the earlier programme cedes to the next.
				prev.Stop = p.Start
				if !prev.Start.Before(prev.Stop) {
					out = out[:len(out)-1]
				}
			} else if p.Start.After(prev.Stop) {
				out = append(out, filler(core.KindIdle, prev.Stop, p.Start))
			}
		}
		out = append(out, p)
	}
	last := &out[len(out)-1]
	if last.Stop.Before(windowEnd) {
		out = append(out, filler(core.KindNoGame, last.Stop, windowEnd))
	}
	return out
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orRender(pattern string, vars template.Vars, def string) string {
	if pattern == "" {
		return def
	}
	return template.Render(pattern, vars)
}
