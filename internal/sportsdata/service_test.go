// SPDX-License-Identifier: MIT

package sportsdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/core"
)

// fakeProvider is a canned-response provider for routing tests.
type fakeProvider struct {
	name    string
	leagues map[string]bool
	events  []core.Event
	team    *core.Team
	event   *core.Event
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SupportsLeague(league string) bool { return f.leagues[league] }

func (f *fakeProvider) Events(_ context.Context, _ string, _ time.Time) []core.Event {
	f.calls++
	return f.events
}

func (f *fakeProvider) TeamSchedule(_ context.Context, _, _ string, _ int) []core.Event {
	f.calls++
	return f.events
}

func (f *fakeProvider) Team(_ context.Context, _, _ string) *core.Team {
	f.calls++
	return f.team
}

func (f *fakeProvider) Event(_ context.Context, _, _ string) *core.Event {
	f.calls++
	return f.event
}

func TestFirstSupportingProviderWins(t *testing.T) {
	first := &fakeProvider{
		name:    "primary",
		leagues: map[string]bool{"nfl": true},
		events:  []core.Event{{ID: "a", Provider: "primary"}},
	}
	second := &fakeProvider{
		name:    "secondary",
		leagues: map[string]bool{"nfl": true},
		events:  []core.Event{{ID: "b", Provider: "secondary"}},
	}
	svc := New(first, second)

	events := svc.Events(context.Background(), "nfl", time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, 0, second.calls, "second provider is never asked")
}

func TestEmptyResultFallsThrough(t *testing.T) {
	first := &fakeProvider{
		name:    "primary",
		leagues: map[string]bool{"nfl": true},
	}
	second := &fakeProvider{
		name:    "secondary",
		leagues: map[string]bool{"nfl": true},
		events:  []core.Event{{ID: "b"}},
	}
	svc := New(first, second)

	events := svc.Events(context.Background(), "nfl", time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ID)
	assert.Equal(t, 1, first.calls)
}

func TestUnsupportedLeagueSkipsProvider(t *testing.T) {
	soccer := &fakeProvider{
		name:    "soccer-only",
		leagues: map[string]bool{"eng.1": true},
	}
	nfl := &fakeProvider{
		name:    "nfl-only",
		leagues: map[string]bool{"nfl": true},
		events:  []core.Event{{ID: "game"}},
	}
	svc := New(soccer, nfl)

	events := svc.Events(context.Background(), "nfl", time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, 0, soccer.calls, "non-supporting provider is never queried")

	assert.Nil(t, svc.Events(context.Background(), "cricket", time.Now()))
}

func TestTeamAndEventRouting(t *testing.T) {
	empty := &fakeProvider{name: "empty", leagues: map[string]bool{"nhl": true}}
	full := &fakeProvider{
		name:    "full",
		leagues: map[string]bool{"nhl": true},
		team:    &core.Team{ID: "6", Name: "Boston Bruins"},
		event:   &core.Event{ID: "401"},
	}
	svc := New(empty, full)

	team := svc.Team(context.Background(), "6", "nhl")
	require.NotNil(t, team)
	assert.Equal(t, "Boston Bruins", team.Name)

	ev := svc.Event(context.Background(), "401", "nhl")
	require.NotNil(t, ev)
	assert.Equal(t, "401", ev.ID)

	assert.Equal(t, 2, empty.calls, "empty provider tried once per query")
}

func TestSupportsLeague(t *testing.T) {
	svc := New(&fakeProvider{leagues: map[string]bool{"nba": true}})
	assert.True(t, svc.SupportsLeague("nba"))
	assert.False(t, svc.SupportsLeague("nfl"))
}
