// SPDX-License-Identifier: MIT

// Package stats aggregates the run ledger and configuration tables into
// dashboard and history views.
package stats

import (
	"context"
	"time"

	"github.com/teamarr/teamarr/internal/store"
)

// DefaultCleanupDays is the run-ledger retention used when a cleanup
// request does not set one.
const DefaultCleanupDays = 90

// TeamsQuadrant summarizes configured team channels.
type TeamsQuadrant struct {
	Total   int `json:"total"`
	Enabled int `json:"enabled"`
}

// GroupsQuadrant summarizes event EPG groups.
type GroupsQuadrant struct {
	Total   int `json:"total"`
	Enabled int `json:"enabled"`
	Managed int `json:"managed"` // groups that create host channels
}

// EPGQuadrant summarizes the most recent guide runs.
type EPGQuadrant struct {
	LastTeamRun    *RunSummary `json:"last_team_run,omitempty"`
	LastEventRun   *RunSummary `json:"last_event_run,omitempty"`
	ProgrammesLast int         `json:"programmes_last"`
}

// ChannelsQuadrant summarizes managed host channels and the match cache.
type ChannelsQuadrant struct {
	Active       int `json:"active"`
	CacheEntries int `json:"cache_entries"`
}

// RunSummary is the dashboard view of one ledger row.
type RunSummary struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	StreamsFetched   int `json:"streams_fetched"`
	StreamsMatched   int `json:"streams_matched"`
	StreamsUnmatched int `json:"streams_unmatched"`
	StreamsCached    int `json:"streams_cached"`
	ProgrammesTotal  int `json:"programmes_total"`
}

// Dashboard is the four-quadrant overview.
type Dashboard struct {
	Teams       TeamsQuadrant    `json:"teams"`
	EventGroups GroupsQuadrant   `json:"event_groups"`
	EPG         EPGQuadrant      `json:"epg"`
	Channels    ChannelsQuadrant `json:"channels"`
}

// RunDetail is one run with its per-stream outcomes.
type RunDetail struct {
	Run     store.ProcessingRun   `json:"run"`
	Matched []store.MatchedStream `json:"matched"`
	Failed  []store.FailedMatch   `json:"failed"`
}

// Service reads aggregates off the store.
type Service struct {
	store *store.Store
}

// New builds a stats service.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// Dashboard assembles the overview quadrants.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}

	teams, err := s.store.Teams(ctx)
	if err != nil {
		return nil, err
	}
	d.Teams.Total = len(teams)
	for _, t := range teams {
		if t.Enabled {
			d.Teams.Enabled++
		}
	}

	groups, err := s.store.Groups(ctx)
	if err != nil {
		return nil, err
	}
	d.EventGroups.Total = len(groups)
	for _, g := range groups {
		if g.Enabled {
			d.EventGroups.Enabled++
		}
		if g.ChannelStart != nil {
			d.EventGroups.Managed++
		}
	}

	teamRun, err := s.store.LatestRun(ctx, "team_epg")
	if err != nil {
		return nil, err
	}
	eventRun, err := s.store.LatestRun(ctx, "event_epg")
	if err != nil {
		return nil, err
	}
	d.EPG.LastTeamRun = summarize(teamRun)
	d.EPG.LastEventRun = summarize(eventRun)
	if teamRun != nil {
		d.EPG.ProgrammesLast += teamRun.Counts.ProgrammesTotal
	}
	if eventRun != nil {
		d.EPG.ProgrammesLast += eventRun.Counts.ProgrammesTotal
	}

	d.Channels.Active, err = s.store.CountActiveChannels(ctx)
	if err != nil {
		return nil, err
	}
	d.Channels.CacheEntries, err = s.store.CountCacheEntries(ctx)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// History returns per-day run aggregates for the last N days.
func (s *Service) History(ctx context.Context, days int) ([]store.DailyRunStats, error) {
	return s.store.RunHistory(ctx, days)
}

// Runs lists ledger rows newest first.
func (s *Service) Runs(ctx context.Context, f store.RunFilter) ([]store.ProcessingRun, error) {
	return s.store.ListRuns(ctx, f)
}

// Run returns one run with its matched and failed stream rows, or nil when
// the run does not exist.
func (s *Service) Run(ctx context.Context, id int64) (*RunDetail, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	matched, err := s.store.MatchedStreams(ctx, id)
	if err != nil {
		return nil, err
	}
	failed, err := s.store.FailedMatches(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: *run, Matched: matched, Failed: failed}, nil
}

// Cleanup deletes ledger rows older than the given number of days and
// returns how many were removed. Days <= 0 uses the default retention.
func (s *Service) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultCleanupDays
	}
	return s.store.CleanupRuns(ctx, time.Now().UTC().AddDate(0, 0, -days))
}

func summarize(r *store.ProcessingRun) *RunSummary {
	if r == nil {
		return nil
	}
	return &RunSummary{
		ID:               r.ID,
		Status:           r.Status,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		StreamsFetched:   r.Counts.StreamsFetched,
		StreamsMatched:   r.Counts.StreamsMatched,
		StreamsUnmatched: r.Counts.StreamsUnmatched,
		StreamsCached:    r.Counts.StreamsCached,
		ProgrammesTotal:  r.Counts.ProgrammesTotal,
	}
}
