// SPDX-License-Identifier: MIT

// Package core defines the canonical sports data model shared by providers,
// matchers and EPG generators. Every entity carries the provider name that
// authored it; external IDs are provider-scoped strings.
package core

import "time"

// EventState enumerates the canonical lifecycle states of an event.
type EventState string

const (
	StateScheduled EventState = "scheduled"
	StateLive      EventState = "live"
	StateFinal     EventState = "final"
	StatePostponed EventState = "postponed"
	StateCancelled EventState = "cancelled"
)

// Venue is an event location.
type Venue struct {
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Team is a team identity as reported by a provider. Immutable within a fetch.
type Team struct {
	ID           string `json:"id"`
	Provider     string `json:"provider"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name"`
	Abbreviation string `json:"abbreviation"`
	League       string `json:"league"`
	LogoURL      string `json:"logo_url,omitempty"`
	Color        string `json:"color,omitempty"`
}

// EventStatus is the current state of an event. It belongs to the dynamic
// field set and varies run-to-run.
type EventStatus struct {
	State  EventState `json:"state"`
	Detail string     `json:"detail,omitempty"`
	Period int        `json:"period,omitempty"`
	Clock  string     `json:"clock,omitempty"`
}

// Odds carries pre-game betting lines when the provider exposes them.
type Odds struct {
	Spread    string `json:"spread,omitempty"`
	Moneyline string `json:"moneyline,omitempty"`
	OverUnder string `json:"over_under,omitempty"`
}

// Event is a single sporting event. Events are immutable values; a new fetch
// yields a new value.
type Event struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	StartTime time.Time `json:"start_time"` // always UTC

	HomeTeam Team `json:"home_team"`
	AwayTeam Team `json:"away_team"`

	Status EventStatus `json:"status"`
	League string      `json:"league"`

	HomeScore  *int   `json:"home_score,omitempty"`
	AwayScore  *int   `json:"away_score,omitempty"`
	HomeStreak string `json:"home_streak,omitempty"`
	AwayStreak string `json:"away_streak,omitempty"`

	Venue      *Venue   `json:"venue,omitempty"`
	Broadcasts []string `json:"broadcasts,omitempty"`
	Odds       *Odds    `json:"odds,omitempty"`

	SeasonYear int    `json:"season_year,omitempty"`
	SeasonType string `json:"season_type,omitempty"`
}

// HasOdds reports whether betting lines are attached.
func (e *Event) HasOdds() bool {
	return e.Odds != nil && (e.Odds.Spread != "" || e.Odds.Moneyline != "" || e.Odds.OverUnder != "")
}

// IsFinal reports whether the event has completed.
func (e *Event) IsFinal() bool { return e.Status.State == StateFinal }

// TeamStats holds season statistics used by the template engine.
type TeamStats struct {
	Record        string `json:"record"`
	HomeRecord    string `json:"home_record,omitempty"`
	AwayRecord    string `json:"away_record,omitempty"`
	Streak        string `json:"streak,omitempty"`
	Rank          int    `json:"rank,omitempty"`
	Conference    string `json:"conference,omitempty"`
	Division      string `json:"division,omitempty"`
	PointsFor     string `json:"points_for,omitempty"`
	PointsAgainst string `json:"points_against,omitempty"`
}

// ProgrammeKind classifies a programme for run statistics.
type ProgrammeKind string

const (
	KindEvent    ProgrammeKind = "event"
	KindPregame  ProgrammeKind = "pregame"
	KindPostgame ProgrammeKind = "postgame"
	KindIdle     ProgrammeKind = "idle"
	KindNoGame   ProgrammeKind = "no_game"
)

// Programme is a derived XMLTV programme entry. It lives only within a
// generation run. Start is inclusive, Stop exclusive.
type Programme struct {
	ChannelID   string
	Title       string
	Start       time.Time
	Stop        time.Time
	Description string
	Category    string
	Icon        string
	Kind        ProgrammeKind
}
