// SPDX-License-Identifier: MIT

package espn

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/core"
	applog "github.com/teamarr/teamarr/internal/log"
)

const providerName = "espn"

// statusMap converts ESPN status type names into canonical event states.
// Unlisted names fall back to scheduled.
var statusMap = map[string]core.EventState{
	"STATUS_SCHEDULED":   core.StateScheduled,
	"STATUS_IN_PROGRESS": core.StateLive,
	"STATUS_HALFTIME":    core.StateLive,
	"STATUS_END_PERIOD":  core.StateLive,
	"STATUS_FINAL":       core.StateFinal,
	"STATUS_FINAL_OT":    core.StateFinal,
	"STATUS_FULL_TIME":   core.StateFinal,
	"STATUS_POSTPONED":   core.StatePostponed,
	"STATUS_CANCELED":    core.StateCancelled,
	"STATUS_DELAYED":     core.StateScheduled,
}

// Provider adapts the low-level client to the canonical model. Fetch
// failures degrade to empty results and are logged, never returned.
type Provider struct {
	client *Client
	now    func() time.Time
}

// NewProvider wraps a client. A nil client gets default options.
func NewProvider(client *Client) *Provider {
	if client == nil {
		client = NewClient(ClientOptions{})
	}
	return &Provider{client: client, now: time.Now}
}

func (p *Provider) Name() string { return providerName }

// SupportsLeague reports whether the league maps to an ESPN endpoint.
// Soccer competition codes ("eng.1", "uefa.champions") pass through.
func (p *Provider) SupportsLeague(league string) bool {
	if _, ok := sportMapping[league]; ok {
		return true
	}
	return strings.Contains(league, ".")
}

// Events returns all events on the league scoreboard for the given date.
func (p *Provider) Events(ctx context.Context, league string, date time.Time) []core.Event {
	logger := applog.WithComponentFromContext(ctx, "espn")

	res, err := p.client.Scoreboard(ctx, league, date.Format("20060102"))
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "espn.scoreboard_failed").
			Str("league", league).
			Msg("scoreboard fetch failed")
		return nil
	}

	events := make([]core.Event, 0, len(res.Events))
	for _, we := range res.Events {
		ev, ok := parseEvent(we, league)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// TeamSchedule returns the team's events from the start of the current UTC
// day up to daysAhead days out, sorted by start time.
func (p *Provider) TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) []core.Event {
	logger := applog.WithComponentFromContext(ctx, "espn")

	res, err := p.client.TeamSchedule(ctx, league, teamID)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "espn.schedule_failed").
			Str("league", league).
			Str("team_id", teamID).
			Msg("schedule fetch failed")
		return nil
	}

	now := p.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var horizon time.Time
	if daysAhead > 0 {
		horizon = cutoff.AddDate(0, 0, daysAhead+1)
	}

	events := make([]core.Event, 0, len(res.Events))
	for _, we := range res.Events {
		ev, ok := parseEvent(we, league)
		if !ok {
			continue
		}
		if ev.StartTime.Before(cutoff) {
			continue
		}
		if !horizon.IsZero() && !ev.StartTime.Before(horizon) {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events
}

// Team returns team details, or nil when the team cannot be fetched.
func (p *Provider) Team(ctx context.Context, teamID, league string) *core.Team {
	logger := applog.WithComponentFromContext(ctx, "espn")

	res, err := p.client.Team(ctx, league, teamID)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "espn.team_failed").
			Str("league", league).
			Str("team_id", teamID).
			Msg("team fetch failed")
		return nil
	}
	if res.Team.ID == "" {
		return nil
	}
	t := parseTeam(res.Team, league)
	return &t
}

// Event fetches a single event via the summary endpoint. The summary payload
// nests the competition under the header instead of the event.
func (p *Provider) Event(ctx context.Context, eventID, league string) *core.Event {
	logger := applog.WithComponentFromContext(ctx, "espn")

	res, err := p.client.Summary(ctx, league, eventID)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "espn.summary_failed").
			Str("league", league).
			Str("event_id", eventID).
			Msg("summary fetch failed")
		return nil
	}
	if len(res.Header.Competitions) == 0 {
		return nil
	}

	comp := res.Header.Competitions[0]
	we := wireEvent{
		ID:           res.Header.ID,
		Season:       res.Header.Season,
		Competitions: []wireCompetition{comp},
		Date:         comp.Date,
	}
	if we.ID == "" {
		we.ID = eventID
	}
	ev, ok := parseEvent(we, league)
	if !ok {
		return nil
	}
	if ev.Odds == nil && len(res.Pickcenter) > 0 {
		ev.Odds = parseOdds(res.Pickcenter[0])
	}
	return &ev
}

// parseEvent converts one wire event. Events with no parsable start time or
// with a missing home or away competitor are skipped.
func parseEvent(we wireEvent, league string) (core.Event, bool) {
	if len(we.Competitions) == 0 {
		return core.Event{}, false
	}
	comp := we.Competitions[0]

	dateStr := we.Date
	if dateStr == "" {
		dateStr = comp.Date
	}
	start, ok := parseDate(dateStr)
	if !ok {
		return core.Event{}, false
	}

	var home, away *wireCompetitor
	for i := range comp.Competitors {
		switch comp.Competitors[i].HomeAway {
		case "home":
			home = &comp.Competitors[i]
		case "away":
			away = &comp.Competitors[i]
		}
	}
	if home == nil || away == nil {
		return core.Event{}, false
	}

	ev := core.Event{
		ID:        we.ID,
		Provider:  providerName,
		Name:      we.Name,
		ShortName: we.ShortName,
		StartTime: start,
		HomeTeam:  parseTeam(home.Team, league),
		AwayTeam:  parseTeam(away.Team, league),
		Status:    parseStatus(comp.Status),
		League:    league,

		HomeScore:  home.Score.value,
		AwayScore:  away.Score.value,
		HomeStreak: string(home.Streak),
		AwayStreak: string(away.Streak),
	}

	if ev.Name == "" {
		ev.Name = away.Team.DisplayName + " at " + home.Team.DisplayName
	}

	if comp.Venue != nil && comp.Venue.FullName != "" {
		ev.Venue = &core.Venue{
			Name:    comp.Venue.FullName,
			City:    comp.Venue.Address.City,
			State:   comp.Venue.Address.State,
			Country: comp.Venue.Address.Country,
		}
	}

	for _, b := range comp.Broadcasts {
		ev.Broadcasts = append(ev.Broadcasts, b.Names...)
	}

	if len(comp.Odds) > 0 {
		ev.Odds = parseOdds(comp.Odds[0])
	}

	if we.Season != nil {
		ev.SeasonYear = we.Season.Year
		ev.SeasonType = seasonTypeName(we.Season.Type)
	}
	return ev, true
}

func parseTeam(wt wireTeam, league string) core.Team {
	return core.Team{
		ID:           wt.ID,
		Provider:     providerName,
		Name:         wt.DisplayName,
		ShortName:    wt.ShortDisplayName,
		Abbreviation: wt.Abbreviation,
		League:       league,
		LogoURL:      teamLogo(wt),
		Color:        wt.Color,
	}
}

// teamLogo prefers the flat logo field, falling back to the logos list entry
// whose rel includes "default".
func teamLogo(wt wireTeam) string {
	if wt.Logo != "" {
		return wt.Logo
	}
	for _, l := range wt.Logos {
		for _, rel := range l.Rel {
			if rel == "default" {
				return l.Href
			}
		}
	}
	if len(wt.Logos) > 0 {
		return wt.Logos[0].Href
	}
	return ""
}

func parseStatus(ws wireStatus) core.EventStatus {
	state, ok := statusMap[ws.Type.Name]
	if !ok {
		state = core.StateScheduled
	}
	status := core.EventStatus{
		State:  state,
		Detail: ws.Type.Description,
	}
	if state == core.StateLive {
		status.Period = ws.Period
		status.Clock = ws.DisplayClock
	}
	return status
}

func parseOdds(wo wireOdds) *core.Odds {
	o := &core.Odds{
		Spread:    wo.Details,
		OverUnder: string(wo.OverUnder),
	}
	if o.Spread == "" {
		o.Spread = string(wo.Spread)
	}
	if o.Spread == "" && o.OverUnder == "" {
		return nil
	}
	return o
}

// parseDate accepts the two timestamp shapes ESPN emits: RFC 3339 and the
// seconds-less "2006-01-02T15:04Z" used on scoreboards.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// seasonTypeName handles season type arriving as a bare number, a string, or
// an object with a name.
func seasonTypeName(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if s[0] == '{' {
		var obj struct {
			Name string `json:"name"`
			Type int    `json:"type"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
			return obj.Name
		}
		return ""
	}
	switch strings.Trim(s, `"`) {
	case "1":
		return "preseason"
	case "2":
		return "regular"
	case "3":
		return "postseason"
	}
	return strings.Trim(s, `"`)
}
