// SPDX-License-Identifier: MIT

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/match"
	"github.com/teamarr/teamarr/internal/store"
)

type fakeHost struct {
	mu          sync.Mutex
	nextID      int
	createCalls []string
	deleteCalls []string
	epgCalls    []string
	createErr   error
	deleteErr   error

	// onCreate runs after the host accepts the create, before returning.
	onCreate func()
}

func (f *fakeHost) CreateChannel(_ context.Context, name string, number int, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	f.createCalls = append(f.createCalls, fmt.Sprintf("%d:%s", number, name))
	if f.onCreate != nil {
		f.onCreate()
	}
	return fmt.Sprintf("host-ch-%d", f.nextID), nil
}

func (f *fakeHost) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, channelID)
	return nil
}

func (f *fakeHost) SetChannelEPG(_ context.Context, channelID, epgSourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epgCalls = append(f.epgCalls, channelID+":"+epgSourceID)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *store.Store, *fakeHost) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "teamarr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &fakeHost{}
	return NewManager(st, h), st, h
}

func testGroup(t *testing.T, st *store.Store, mutate func(*store.EventEPGGroup)) store.EventEPGGroup {
	t.Helper()
	start := 500
	g := store.EventEPGGroup{
		Name:         "nfl sunday",
		HostGroupID:  "grp-12",
		Leagues:      []string{"nfl"},
		ChannelStart: &start,
		CreateTiming: store.CreateDayOf,
		DeleteTiming: store.DeleteEndOfDay,
		Timezone:     "UTC",
		Enabled:      true,
	}
	if mutate != nil {
		mutate(&g)
	}
	id, err := st.UpsertGroup(context.Background(), g)
	require.NoError(t, err)
	g.ID = id
	return g
}

func matchedStream(streamID, eventID string, start time.Time) match.StreamResult {
	return match.StreamResult{
		Stream:   match.Stream{ID: streamID, Name: "Packers @ Bears"},
		Matched:  true,
		Included: true,
		League:   "nfl",
		Event: core.Event{
			ID:        eventID,
			Name:      "Green Bay Packers at Chicago Bears",
			StartTime: start,
			HomeTeam:  core.Team{ID: "3", Name: "Chicago Bears", ShortName: "Bears"},
			AwayTeam:  core.Team{ID: "9", Name: "Green Bay Packers", ShortName: "Packers"},
			League:    "nfl",
		},
	}
}

func TestWeekBeforeTimingGatesCreation(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, func(g *store.EventEPGGroup) {
		g.CreateTiming = store.CreateWeekBefore
	})

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	results := []match.StreamResult{matchedStream("s1", "e1", eventStart)}

	// Eight days out: match recorded upstream, no channel yet.
	m.now = func() time.Time { return eventStart.AddDate(0, 0, -8) }
	bindings := m.EnsureChannels(context.Background(), group, store.Template{}, results)
	assert.Empty(t, bindings)
	assert.Empty(t, h.createCalls)

	// Seven days out: due.
	m.now = func() time.Time { return eventStart.AddDate(0, 0, -7) }
	bindings = m.EnsureChannels(context.Background(), group, store.Template{}, results)
	require.Len(t, bindings, 1)
	assert.Equal(t, 500, bindings[0].Channel.ChannelNumber)
	assert.Equal(t, "s1", bindings[0].StreamID)
	require.Len(t, h.createCalls, 1)
	assert.Equal(t, "500:Packers @ Bears", h.createCalls[0])
}

func TestExistingChannelIsReusedNotRecreated(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil)

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart.Add(-2 * time.Hour) }
	results := []match.StreamResult{matchedStream("s1", "e1", eventStart)}

	first := m.EnsureChannels(context.Background(), group, store.Template{}, results)
	require.Len(t, first, 1)

	second := m.EnsureChannels(context.Background(), group, store.Template{}, results)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Channel.ID, second[0].Channel.ID)
	assert.Len(t, h.createCalls, 1, "no second host create for the same event")
}

func TestNilChannelStartCreatesNothing(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, func(g *store.EventEPGGroup) { g.ChannelStart = nil })

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }

	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	assert.Empty(t, bindings)
	assert.Empty(t, h.createCalls)
}

func TestExcludedAndUnmatchedStreamsSkipped(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil)

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }

	excluded := matchedStream("s2", "e2", eventStart)
	excluded.Included = false
	excluded.Reason = match.ReasonNotInWhitelist
	unmatched := match.StreamResult{Stream: match.Stream{ID: "s3", Name: "noise"}}

	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{excluded, unmatched})
	assert.Empty(t, bindings)
	assert.Empty(t, h.createCalls)
}

func TestEPGSourceBoundAfterCreate(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, func(g *store.EventEPGGroup) { g.EPGSourceID = "epg-9" })

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }

	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	require.Len(t, bindings, 1)
	require.Len(t, h.epgCalls, 1)
	assert.Equal(t, bindings[0].Channel.HostChannelID+":epg-9", h.epgCalls[0])
}

func TestPersistFailureCompensatesOnHost(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil)

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }

	// A concurrent writer lands a channel for the same event between the
	// host create and the local insert; the unique index rejects ours and
	// the host channel must be rolled back.
	h.onCreate = func() {
		_, err := st.CreateChannel(context.Background(), store.ManagedChannel{
			GroupID:       group.ID,
			HostChannelID: "host-ch-race",
			HostStreamID:  "s1",
			EventID:       "e1",
			League:        "nfl",
			ChannelName:   "raced",
			EventStart:    eventStart,
		}, 500)
		require.NoError(t, err)
	}

	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	assert.Empty(t, bindings)
	require.Len(t, h.deleteCalls, 1)
	assert.Equal(t, "host-ch-1", h.deleteCalls[0])
}

func TestHostCreateFailureLeavesNoRow(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil)
	h.createErr = errors.New("boom")

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }

	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	assert.Empty(t, bindings)

	active, err := st.ActiveChannels(context.Background(), group.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestChannelNameFromTemplate(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil)

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }
	tpl := store.Template{ChannelName: "NFL: {away_team} at {home_team}"}

	bindings := m.EnsureChannels(context.Background(), group, tpl,
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	require.Len(t, bindings, 1)
	assert.Equal(t, "NFL: Green Bay Packers at Chicago Bears", bindings[0].Channel.ChannelName)
	require.Len(t, h.createCalls, 1)
}

func TestReactiveDeletionOnStreamRemoval(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, func(g *store.EventEPGGroup) {
		g.DeleteTiming = store.DeleteStreamRemoved
	})

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }
	results := []match.StreamResult{
		matchedStream("s1", "e1", eventStart),
		matchedStream("s2", "e2", eventStart.Add(time.Hour)),
	}
	bindings := m.EnsureChannels(context.Background(), group, store.Template{}, results)
	require.Len(t, bindings, 2)

	// s2 vanished from the host.
	require.NoError(t, m.ReconcileRemovedStreams(context.Background(), group, []string{"s1"}))
	require.Len(t, h.deleteCalls, 1, "exactly one delete for the removed stream")

	active, err := st.ActiveChannels(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s1", active[0].HostStreamID)

	// Re-running with the same stream set is a no-op.
	require.NoError(t, m.ReconcileRemovedStreams(context.Background(), group, []string{"s1"}))
	assert.Len(t, h.deleteCalls, 1)
}

func TestReactiveDeletionOnlyForStreamRemovedPolicy(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil) // end_of_day

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }
	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	require.Len(t, bindings, 1)

	require.NoError(t, m.ReconcileRemovedStreams(context.Background(), group, nil))
	assert.Empty(t, h.deleteCalls)
}

func TestScheduledDeletionSweepIsIdempotent(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil) // end_of_day

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }
	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	require.Len(t, bindings, 1)
	require.NotNil(t, bindings[0].Channel.ScheduledDeleteAt)

	// Before the deadline nothing is due.
	m.now = func() time.Time { return eventStart.Add(2 * time.Hour) }
	n, err := m.RunScheduledDeletions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Past midnight the sweep deletes once; a second tick is a no-op.
	m.now = func() time.Time { return eventStart.AddDate(0, 0, 1) }
	n, err = m.RunScheduledDeletions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, h.deleteCalls, 1)

	n, err = m.RunScheduledDeletions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.deleteCalls, 1)
}

func TestScheduledSweepRetriesAfterHostError(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, nil)

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }
	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	require.Len(t, bindings, 1)

	m.now = func() time.Time { return eventStart.AddDate(0, 0, 1) }
	h.deleteErr = errors.New("host down")
	n, err := m.RunScheduledDeletions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "failed delete keeps the channel due")

	h.deleteErr = nil
	n, err = m.RunScheduledDeletions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRetentionPurge(t *testing.T) {
	m, st, h := newTestManager(t)
	group := testGroup(t, st, func(g *store.EventEPGGroup) {
		g.DeleteTiming = store.DeleteStreamRemoved
	})

	eventStart := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return eventStart }
	bindings := m.EnsureChannels(context.Background(), group, store.Template{},
		[]match.StreamResult{matchedStream("s1", "e1", eventStart)})
	require.Len(t, bindings, 1)
	require.NoError(t, m.ReconcileRemovedStreams(context.Background(), group, nil))
	require.Len(t, h.deleteCalls, 1)

	// Within the retention window the soft-deleted row survives.
	m.now = func() time.Time { return eventStart.AddDate(0, 0, RetentionDays-1) }
	purged, err := m.PurgeRetention(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)

	m.now = func() time.Time { return eventStart.AddDate(0, 0, RetentionDays+1) }
	purged, err = m.PurgeRetention(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestCreateDueAcrossPolicies(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	eventStart := time.Date(2026, 9, 13, 20, 0, 0, 0, est)

	tests := []struct {
		name   string
		timing string
		now    time.Time
		due    bool
	}{
		{"day_of too early", store.CreateDayOf, eventStart.AddDate(0, 0, -1), false},
		{"day_of same date", store.CreateDayOf, time.Date(2026, 9, 13, 0, 30, 0, 0, est), true},
		{"day_before", store.CreateDayBefore, eventStart.AddDate(0, 0, -1), true},
		{"two_days", store.Create2DaysBefore, eventStart.AddDate(0, 0, -2), true},
		{"two_days too early", store.Create2DaysBefore, eventStart.AddDate(0, 0, -3), false},
		{"week_before", store.CreateWeekBefore, eventStart.AddDate(0, 0, -7), true},
		{"unknown defaults to day_of", "bogus", eventStart.AddDate(0, 0, -1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.due, createDue(tt.timing, eventStart, tt.now, est))
		})
	}
}

func TestScheduledDeleteAtComputation(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// Late local start: the UTC date is already the next day.
	eventStart := time.Date(2026, 9, 13, 23, 0, 0, 0, est)

	eod := scheduledDeleteAt(store.DeleteEndOfDay, eventStart, est)
	require.NotNil(t, eod)
	assert.True(t, eod.Equal(time.Date(2026, 9, 14, 0, 0, 0, 0, est)),
		"midnight after the event's local date")

	eond := scheduledDeleteAt(store.DeleteEndOfNextDay, eventStart, est)
	require.NotNil(t, eond)
	assert.True(t, eond.Equal(time.Date(2026, 9, 15, 0, 0, 0, 0, est)))

	assert.Nil(t, scheduledDeleteAt(store.DeleteStreamRemoved, eventStart, est))
	assert.Nil(t, scheduledDeleteAt(store.DeleteManual, eventStart, est))
}
