// SPDX-License-Identifier: MIT

// Package lifecycle keeps the host's channel inventory in agreement with
// the matched-stream set: timing-policy creation, reactive and scheduled
// deletion, and retention of soft-deleted rows.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/teamarr/teamarr/internal/core"
	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/match"
	"github.com/teamarr/teamarr/internal/store"
	"github.com/teamarr/teamarr/internal/template"
)

// RetentionDays is how long soft-deleted channel rows are kept before the
// scheduler hard-deletes them.
const RetentionDays = 30

// hostAPI is the slice of the host client the manager uses.
type hostAPI interface {
	CreateChannel(ctx context.Context, name string, number int, streamIDs []string) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	SetChannelEPG(ctx context.Context, channelID, epgSourceID string) error
}

// Binding pairs a matched stream with its managed channel for the EPG
// generator.
type Binding struct {
	Channel  store.ManagedChannel
	StreamID string
	Event    core.Event
}

// Manager coordinates channel CRUD between the store and the host.
type Manager struct {
	store *store.Store
	host  hostAPI
	now   func() time.Time
}

// NewManager builds a lifecycle manager.
func NewManager(st *store.Store, host hostAPI) *Manager {
	return &Manager{store: st, host: host, now: time.Now}
}

// EnsureChannels brings the group's channel set up to date for the matched
// streams. Existing active channels are reused; new ones are created only
// when the group's create-timing policy is due. A group without a channel
// start records matches but never creates channels. Per-stream failures
// are logged and skipped; the returned bindings cover every stream that
// has a live channel after the call.
func (m *Manager) EnsureChannels(ctx context.Context, group store.EventEPGGroup, tpl store.Template, results []match.StreamResult) []Binding {
	logger := applog.WithComponentFromContext(ctx, "lifecycle")

	if group.ChannelStart == nil {
		return nil
	}
	loc := groupLocation(group)
	now := m.now()

	var bindings []Binding
	for _, r := range results {
		if !r.Matched || !r.Included {
			continue
		}

		existing, err := m.store.ActiveChannel(ctx, group.ID, r.Event.ID)
		if err != nil {
			logger.Error().Err(err).
				Str("event", "lifecycle.lookup_failed").
				Str("event_id", r.Event.ID).
				Msg("active channel lookup failed")
			continue
		}
		if existing != nil {
			bindings = append(bindings, Binding{Channel: *existing, StreamID: r.Stream.ID, Event: r.Event})
			continue
		}

		if !createDue(group.CreateTiming, r.Event.StartTime, now, loc) {
			continue
		}

		mc, err := m.createChannel(ctx, group, tpl, r, loc)
		if err != nil {
			logger.Error().Err(err).
				Str("event", "lifecycle.create_failed").
				Int64("group_id", group.ID).
				Str("event_id", r.Event.ID).
				Str("stream_id", r.Stream.ID).
				Msg("channel creation failed")
			continue
		}
		bindings = append(bindings, Binding{Channel: mc, StreamID: r.Stream.ID, Event: r.Event})
	}
	return bindings
}

// createChannel performs the host create, optional EPG bind and the local
// insert. A failed insert rolls the host channel back with a compensating
// delete.
func (m *Manager) createChannel(ctx context.Context, group store.EventEPGGroup, tpl store.Template, r match.StreamResult, loc *time.Location) (store.ManagedChannel, error) {
	logger := applog.WithComponentFromContext(ctx, "lifecycle")

	name := channelName(tpl, r.Event, loc)
	number, err := m.nextNumber(ctx, group)
	if err != nil {
		return store.ManagedChannel{}, err
	}

	hostID, err := m.host.CreateChannel(ctx, name, number, []string{r.Stream.ID})
	if err != nil {
		return store.ManagedChannel{}, fmt.Errorf("host create: %w", err)
	}

	if group.EPGSourceID != "" {
		if err := m.host.SetChannelEPG(ctx, hostID, group.EPGSourceID); err != nil {
			logger.Warn().Err(err).
				Str("event", "lifecycle.epg_bind_failed").
				Str("host_channel_id", hostID).
				Msg("EPG source bind failed, channel stays up")
		}
	}

	mc := store.ManagedChannel{
		GroupID:           group.ID,
		HostChannelID:     hostID,
		HostStreamID:      r.Stream.ID,
		EventID:           r.Event.ID,
		League:            r.League,
		ChannelName:       name,
		EventStart:        r.Event.StartTime,
		ScheduledDeleteAt: scheduledDeleteAt(group.DeleteTiming, r.Event.StartTime, loc),
	}
	created, err := m.store.CreateChannel(ctx, mc, *group.ChannelStart)
	if err != nil {
		// Compensate: the host channel must not outlive a failed insert.
		if delErr := m.host.DeleteChannel(ctx, hostID); delErr != nil {
			logger.Error().Err(delErr).
				Str("event", "lifecycle.compensate_failed").
				Str("host_channel_id", hostID).
				Msg("compensating host delete failed")
		}
		return store.ManagedChannel{}, fmt.Errorf("persist channel: %w", err)
	}

	logger.Info().
		Str("event", "lifecycle.channel_created").
		Int64("group_id", group.ID).
		Str("host_channel_id", created.HostChannelID).
		Int("number", created.ChannelNumber).
		Str("name", created.ChannelName).
		Msg("managed channel created")
	return created, nil
}

// nextNumber predicts the number the store will allocate. The store
// re-derives it transactionally on insert; this value only names the host
// channel consistently.
func (m *Manager) nextNumber(ctx context.Context, group store.EventEPGGroup) (int, error) {
	active, err := m.store.ActiveChannels(ctx, group.ID)
	if err != nil {
		return 0, err
	}
	number := *group.ChannelStart
	for _, mc := range active {
		if mc.ChannelNumber == number {
			number++
			continue
		}
		if mc.ChannelNumber > number {
			break
		}
	}
	return number, nil
}

// ReconcileRemovedStreams deletes managed channels whose stream vanished
// from the host. Only groups with the stream_removed policy react.
// Exactly one host delete is issued per removed stream.
func (m *Manager) ReconcileRemovedStreams(ctx context.Context, group store.EventEPGGroup, currentStreamIDs []string) error {
	if group.DeleteTiming != store.DeleteStreamRemoved {
		return nil
	}
	logger := applog.WithComponentFromContext(ctx, "lifecycle")

	current := make(map[string]bool, len(currentStreamIDs))
	for _, id := range currentStreamIDs {
		current[id] = true
	}

	active, err := m.store.ActiveChannels(ctx, group.ID)
	if err != nil {
		return err
	}
	for _, mc := range active {
		if current[mc.HostStreamID] {
			continue
		}
		if err := m.host.DeleteChannel(ctx, mc.HostChannelID); err != nil {
			logger.Error().Err(err).
				Str("event", "lifecycle.reactive_delete_failed").
				Str("host_channel_id", mc.HostChannelID).
				Msg("host delete failed, will retry next run")
			continue
		}
		if err := m.store.SoftDeleteChannel(ctx, mc.ID, m.now()); err != nil {
			return err
		}
		logger.Info().
			Str("event", "lifecycle.stream_removed").
			Int64("group_id", group.ID).
			Str("stream_id", mc.HostStreamID).
			Int("number", mc.ChannelNumber).
			Msg("channel deleted, stream gone from host")
	}
	return nil
}

// RunScheduledDeletions sweeps channels whose scheduled_delete_at has
// passed: host delete (absent counts as deleted), then local soft delete.
func (m *Manager) RunScheduledDeletions(ctx context.Context) (int, error) {
	logger := applog.WithComponentFromContext(ctx, "lifecycle")

	due, err := m.store.ChannelsDue(ctx, m.now())
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, mc := range due {
		if err := m.host.DeleteChannel(ctx, mc.HostChannelID); err != nil {
			logger.Error().Err(err).
				Str("event", "lifecycle.scheduled_delete_failed").
				Str("host_channel_id", mc.HostChannelID).
				Msg("host delete failed, will retry next tick")
			continue
		}
		if err := m.store.SoftDeleteChannel(ctx, mc.ID, m.now()); err != nil {
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		logger.Info().
			Str("event", "lifecycle.scheduled_sweep").
			Int("deleted", deleted).
			Msg("scheduled deletions applied")
	}
	return deleted, nil
}

// PurgeRetention hard-deletes soft-deleted rows past the retention window.
func (m *Manager) PurgeRetention(ctx context.Context) (int64, error) {
	cutoff := m.now().AddDate(0, 0, -RetentionDays)
	return m.store.PurgeDeletedChannels(ctx, cutoff)
}

// createDue evaluates the create-timing policy by comparing calendar dates
// in the group's timezone.
func createDue(timing string, eventStart, now time.Time, loc *time.Location) bool {
	lead := 0
	switch timing {
	case store.CreateDayOf:
		lead = 0
	case store.CreateDayBefore:
		lead = 1
	case store.Create2DaysBefore:
		lead = 2
	case store.CreateWeekBefore:
		lead = 7
	default:
		lead = 0
	}
	today := startOfDay(now.In(loc))
	threshold := startOfDay(eventStart.In(loc)).AddDate(0, 0, -lead)
	return !today.Before(threshold)
}

// scheduledDeleteAt derives the deletion timestamp from the delete-timing
// policy. Reactive and manual policies have no schedule.
func scheduledDeleteAt(timing string, eventStart time.Time, loc *time.Location) *time.Time {
	var days int
	switch timing {
	case store.DeleteEndOfDay:
		days = 1
	case store.DeleteEndOfNextDay:
		days = 2
	default:
		return nil
	}
	t := startOfDay(eventStart.In(loc)).AddDate(0, 0, days).UTC()
	return &t
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func groupLocation(group store.EventEPGGroup) *time.Location {
	if group.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(group.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// channelName renders the channel name from the template's channel_name
// field, defaulting to "{away} @ {home}".
func channelName(tpl store.Template, ev core.Event, loc *time.Location) string {
	vars := template.BuildVars(&template.GameContext{Event: ev, Timezone: loc}, nil, nil)
	if tpl.ChannelName != "" {
		if name := template.Render(tpl.ChannelName, vars); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%s @ %s", vars["away"], vars["home"])
}
