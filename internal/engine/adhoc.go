// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/fuzzy"
	"github.com/teamarr/teamarr/internal/store"
)

// DefaultChannelPrefix prefixes ad-hoc event channel IDs.
const DefaultChannelPrefix = "event."

// AdHocOptions configure a one-shot event guide build that is not bound to
// a stored group or host streams.
type AdHocOptions struct {
	Leagues       []string
	Date          time.Time
	ChannelPrefix string
	// PregameMinutes and DurationHours override the template defaults when
	// positive.
	PregameMinutes int
	DurationHours  int
}

// BuildEventGuide fetches the leagues' events for the date and builds one
// channel per event. The run is recorded in the ledger but nothing is
// written to disk or to the host.
func (e *Engine) BuildEventGuide(ctx context.Context, opts AdHocOptions) (*epg.TV, *store.ProcessingRun, error) {
	if opts.ChannelPrefix == "" {
		opts.ChannelPrefix = DefaultChannelPrefix
	}
	if opts.Date.IsZero() {
		opts.Date = e.now().In(e.timezone)
	}

	run, err := e.store.OpenRun(ctx, RunTypeEventEPG, nil)
	if err != nil {
		return nil, nil, err
	}

	tpl := store.Template{
		PregameMinutes: opts.PregameMinutes,
		DurationHours:  opts.DurationHours,
	}
	gen := &epg.EventGenerator{Timezone: e.timezone}

	tv := epg.NewTV()
	var items []epg.EventItem
	n := 0
	for _, league := range opts.Leagues {
		for _, ev := range e.sports.Events(ctx, league, opts.Date) {
			n++
			channelID := fmt.Sprintf("%s%d", opts.ChannelPrefix, n)
			name := fmt.Sprintf("%s @ %s", shortOrFull(ev.AwayTeam), shortOrFull(ev.HomeTeam))
			tv.Channels = append(tv.Channels, epg.NewChannel(channelID, name, ev.HomeTeam.LogoURL))
			items = append(items, epg.EventItem{
				ChannelID:   channelID,
				ChannelName: name,
				Icon:        ev.HomeTeam.LogoURL,
				Event:       ev,
			})
		}
	}
	for _, p := range gen.Generate(items, tpl) {
		tv.Programs = append(tv.Programs, epg.FromProgramme(p))
	}

	counts := store.RunCounts{
		ProgrammesTotal:  len(tv.Programs),
		ProgrammesEvents: len(tv.Programs),
	}
	extra, _ := json.Marshal(map[string]any{"ad_hoc": true, "leagues": opts.Leagues})
	if err := e.store.CompleteRun(ctx, run.ID, counts, extra); err != nil {
		return nil, nil, err
	}
	completed, err := e.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return tv, completed, nil
}

// MatchQuery locates a single event by team IDs or fuzzy team names.
type MatchQuery struct {
	League    string
	Date      time.Time
	Team1ID   string
	Team2ID   string
	Team1Name string
	Team2Name string
}

// FindEvent resolves a match query against the league's events for the
// date. IDs win over names; nil means no event qualified.
func (e *Engine) FindEvent(ctx context.Context, q MatchQuery) *core.Event {
	if q.Date.IsZero() {
		q.Date = e.now().In(e.timezone)
	}
	events := e.sports.Events(ctx, q.League, q.Date)

	if q.Team1ID != "" || q.Team2ID != "" {
		for i := range events {
			if eventHasTeams(&events[i], q.Team1ID, q.Team2ID) {
				return &events[i]
			}
		}
		return nil
	}

	if q.Team1Name == "" && q.Team2Name == "" {
		return nil
	}
	matcher := fuzzy.NewMatcher(fuzzy.DefaultThreshold)
	for i := range events {
		ev := &events[i]
		if nameMatchesEvent(matcher, q.Team1Name, ev) && nameMatchesEvent(matcher, q.Team2Name, ev) {
			return ev
		}
	}
	return nil
}

func eventHasTeams(ev *core.Event, id1, id2 string) bool {
	has := func(id string) bool {
		return id == "" || ev.HomeTeam.ID == id || ev.AwayTeam.ID == id
	}
	return has(id1) && has(id2)
}

func nameMatchesEvent(m *fuzzy.Matcher, name string, ev *core.Event) bool {
	if name == "" {
		return true
	}
	for _, team := range []core.Team{ev.HomeTeam, ev.AwayTeam} {
		if m.MatchesAny(fuzzy.TeamPatterns(team), name).Matched {
			return true
		}
	}
	return false
}

func shortOrFull(t core.Team) string {
	if t.ShortName != "" {
		return t.ShortName
	}
	return t.Name
}
