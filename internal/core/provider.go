// SPDX-License-Identifier: MIT

package core

import (
	"context"
	"time"
)

// Provider is the capability set a sports data source must implement.
// Providers fetch from an external API and normalize into the canonical
// model. All methods degrade to empty results rather than surfacing
// transport errors; a non-nil error means the request itself was invalid.
type Provider interface {
	// Name is the provider identifier (e.g. "espn").
	Name() string

	// SupportsLeague reports whether this provider services the league code.
	SupportsLeague(league string) bool

	// Events returns all events for a league on the given date.
	Events(ctx context.Context, league string, date time.Time) []Event

	// TeamSchedule returns the upcoming schedule for a team, filtered to
	// events starting on or after the current UTC day, sorted by start time.
	TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) []Event

	// Team returns team details, or nil if unknown.
	Team(ctx context.Context, teamID, league string) *Team

	// Event returns a single event by ID, or nil if unknown.
	Event(ctx context.Context, eventID, league string) *Event
}
