// SPDX-License-Identifier: MIT

// Package sportsdata routes queries across an ordered list of providers.
// The first provider that supports the league and returns a non-empty
// result wins; empty results fall through to the next provider. No caching
// happens here.
package sportsdata

import (
	"context"
	"time"

	"github.com/teamarr/teamarr/internal/core"
	applog "github.com/teamarr/teamarr/internal/log"
)

// Service fans queries out over providers in registration order.
type Service struct {
	providers []core.Provider
}

// New builds a service. Provider order is significant.
func New(providers ...core.Provider) *Service {
	return &Service{providers: providers}
}

// Providers returns the registered providers in routing order.
func (s *Service) Providers() []core.Provider { return s.providers }

// SupportsLeague reports whether any provider services the league.
func (s *Service) SupportsLeague(league string) bool {
	for _, p := range s.providers {
		if p.SupportsLeague(league) {
			return true
		}
	}
	return false
}

// Events returns the first non-empty scoreboard for the league and date.
func (s *Service) Events(ctx context.Context, league string, date time.Time) []core.Event {
	for _, p := range s.providers {
		if !p.SupportsLeague(league) {
			continue
		}
		if events := p.Events(ctx, league, date); len(events) > 0 {
			return events
		}
		s.logFallthrough(ctx, p, league)
	}
	return nil
}

// TeamSchedule returns the first non-empty schedule for the team.
func (s *Service) TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) []core.Event {
	for _, p := range s.providers {
		if !p.SupportsLeague(league) {
			continue
		}
		if events := p.TeamSchedule(ctx, teamID, league, daysAhead); len(events) > 0 {
			return events
		}
		s.logFallthrough(ctx, p, league)
	}
	return nil
}

// Team returns the first provider's team details, or nil.
func (s *Service) Team(ctx context.Context, teamID, league string) *core.Team {
	for _, p := range s.providers {
		if !p.SupportsLeague(league) {
			continue
		}
		if t := p.Team(ctx, teamID, league); t != nil {
			return t
		}
		s.logFallthrough(ctx, p, league)
	}
	return nil
}

// Event returns the first provider's event details, or nil.
func (s *Service) Event(ctx context.Context, eventID, league string) *core.Event {
	for _, p := range s.providers {
		if !p.SupportsLeague(league) {
			continue
		}
		if e := p.Event(ctx, eventID, league); e != nil {
			return e
		}
		s.logFallthrough(ctx, p, league)
	}
	return nil
}

func (s *Service) logFallthrough(ctx context.Context, p core.Provider, league string) {
	logger := applog.WithComponentFromContext(ctx, "sportsdata")
	logger.Debug().
		Str("event", "sportsdata.fallthrough").
		Str("provider", p.Name()).
		Str("league", league).
		Msg("empty result, trying next provider")
}
