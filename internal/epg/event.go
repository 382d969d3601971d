// SPDX-License-Identifier: MIT

package epg

import (
	"sort"
	"time"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/store"
	"github.com/teamarr/teamarr/internal/template"
)

// EventItem is one matched stream bound to its managed channel.
type EventItem struct {
	ChannelID   string
	ChannelName string
	Icon        string
	Event       core.Event
}

// EventGenerator emits exactly one programme per matched stream on its
// managed channel.
type EventGenerator struct {
	Timezone *time.Location
}

// Generate renders event programmes. Multiple events serialized on the
// same channel are ordered by start; when two overlap the earlier finisher
// cedes the overlap to the next.
func (g *EventGenerator) Generate(items []EventItem, tpl store.Template) []core.Programme {
	loc := g.Timezone
	if loc == nil {
		loc = time.UTC
	}
	pregame := time.Duration(orDefault(tpl.PregameMinutes, defaultPregameMinutes)) * time.Minute
	duration := time.Duration(orDefault(tpl.DurationHours, defaultDurationHours)) * time.Hour

	var out []core.Programme
	for _, item := range items {
		vars := template.BuildVars(&template.GameContext{Event: item.Event, Timezone: loc}, nil, nil)

		title := template.Render(tpl.Title, vars)
		if title == "" {
			title = vars["matchup"]
		}
		desc := template.ResolveDescription(tpl.DescriptionOptions, vars)
		if desc == "" {
			desc = template.Render(tpl.Description, vars)
		}

		out = append(out, core.Programme{
			ChannelID:   item.ChannelID,
			Title:       title,
			Start:       item.Event.StartTime.Add(-pregame),
			Stop:        item.Event.StartTime.Add(duration),
			Description: desc,
			Icon:        item.Icon,
			Kind:        core.KindEvent,
		})
	}

	return resolveOverlaps(out)
}

// resolveOverlaps orders each channel's programmes by start and truncates
// any programme that runs into its successor.
func resolveOverlaps(programmes []core.Programme) []core.Programme {
	byChannel := make(map[string][]int)
	for i, p := range programmes {
		byChannel[p.ChannelID] = append(byChannel[p.ChannelID], i)
	}

	var out []core.Programme
	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	for _, ch := range channels {
		idx := byChannel[ch]
		ps := make([]core.Programme, 0, len(idx))
		for _, i := range idx {
			ps = append(ps, programmes[i])
		}
		sort.SliceStable(ps, func(i, j int) bool {
			return ps[i].Start.Before(ps[j].Start)
		})
		for i := 0; i+1 < len(ps); i++ {
			if ps[i].Stop.After(ps[i+1].Start) {
				ps[i].Stop = ps[i+1].Start
			}
		}
		for _, p := range ps {
			if p.Start.Before(p.Stop) {
				out = append(out, p)
			}
		}
	}
	return out
}
