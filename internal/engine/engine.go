// SPDX-License-Identifier: MIT

// Package engine orchestrates generation runs: stream fetch, cache lookup,
// fuzzy matching, channel lifecycle and guide assembly, bracketed by the
// run ledger.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/host"
	"github.com/teamarr/teamarr/internal/lifecycle"
	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/match"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/matchcache"
	"github.com/teamarr/teamarr/internal/sportsdata"
	"github.com/teamarr/teamarr/internal/store"
)

// Run type values in the ledger.
const (
	RunTypeEventEPG = "event_epg"
	RunTypeTeamEPG  = "team_epg"
)

// DefaultDaysAhead is the team-guide horizon when a request does not set one.
const DefaultDaysAhead = 7

// maxConcurrentGroups bounds parallel group runs across the host and the
// sports providers.
const maxConcurrentGroups = 4

// streamLister is the slice of the host client the engine needs.
type streamLister interface {
	ListStreams(ctx context.Context, groupID string) ([]host.Stream, error)
}

// Engine wires the pipeline stages together.
type Engine struct {
	store        *store.Store
	sports       *sportsdata.Service
	host         streamLister
	cache        *matchcache.Cache
	lifecycle    *lifecycle.Manager
	consolidator *epg.Consolidator
	matcher      *match.MultiLeague
	timezone     *time.Location
	now          func() time.Time

	// groupLocks serializes runs per group; concurrent runs for different
	// groups are fine.
	groupLocks sync.Map
}

// Options bundle the engine's collaborators.
type Options struct {
	Store        *store.Store
	Sports       *sportsdata.Service
	Host         streamLister
	Cache        *matchcache.Cache
	Lifecycle    *lifecycle.Manager
	Consolidator *epg.Consolidator
	// Timezone is the default when a group or request does not set one.
	Timezone *time.Location
}

// New builds an engine.
func New(opts Options) *Engine {
	tz := opts.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return &Engine{
		store:        opts.Store,
		sports:       opts.Sports,
		host:         opts.Host,
		cache:        opts.Cache,
		lifecycle:    opts.Lifecycle,
		consolidator: opts.Consolidator,
		matcher:      match.NewMultiLeague(opts.Sports, nil),
		timezone:     tz,
		now:          time.Now,
	}
}

// RunAllEventGroups runs every enabled group, a few in parallel. The first
// failure cancels the remaining groups.
func (e *Engine) RunAllEventGroups(ctx context.Context, date time.Time) error {
	groups, err := e.store.EnabledGroups(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentGroups)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			_, err := e.RunEventGroup(ctx, group.ID, date)
			return err
		})
	}
	return g.Wait()
}

// RunEventGroup executes the full event pipeline for one group and returns
// the completed ledger row. A zero date means today in the group's timezone.
func (e *Engine) RunEventGroup(ctx context.Context, groupID int64, date time.Time) (*store.ProcessingRun, error) {
	mu := e.lockFor(groupID)
	mu.Lock()
	defer mu.Unlock()

	ctx = applog.ContextWithGroupID(ctx, groupID)

	group, err := e.store.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("engine: group %d not found", groupID)
	}
	tpl := e.templateFor(ctx, group.TemplateID)
	loc := e.locationFor(group.Timezone)
	if date.IsZero() {
		date = e.now().In(loc)
	}

	run, err := e.store.OpenRun(ctx, RunTypeEventEPG, &groupID)
	if err != nil {
		return nil, err
	}
	// Every log line below the run, in any component, carries the run and
	// group ids through the context.
	ctx = applog.ContextWithRunID(ctx, strconv.FormatInt(run.ID, 10))
	logger := applog.WithComponentFromContext(ctx, "engine")
	logger.Info().
		Str("event", "engine.run_started").
		Int64("generation", run.Generation).
		Msg("event guide run started")

	counts, extra, err := e.runEventPipeline(ctx, run, *group, tpl, loc, date)
	if err != nil {
		metrics.RecordRun(RunTypeEventEPG, store.RunFailed, time.Since(run.StartedAt), 0)
		if failErr := e.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			logger.Error().Err(failErr).
				Str("event", "engine.fail_mark_failed").
				Msg("could not mark run failed")
		}
		return nil, err
	}

	if err := e.store.CompleteRun(ctx, run.ID, counts, extra); err != nil {
		return nil, err
	}
	metrics.RecordRun(RunTypeEventEPG, store.RunCompleted, time.Since(run.StartedAt), counts.StreamsMatched)
	metrics.RecordProgrammes(string(core.KindEvent), counts.ProgrammesEvents)
	if active, err := e.store.CountActiveChannels(ctx); err == nil {
		metrics.SetManagedChannels(active)
	}
	logger.Info().
		Str("event", "engine.run_completed").
		Int("streams", counts.StreamsFetched).
		Int("matched", counts.StreamsMatched).
		Int("cached", counts.StreamsCached).
		Int("programmes", counts.ProgrammesTotal).
		Msg("event guide run completed")

	completed, err := e.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (e *Engine) runEventPipeline(ctx context.Context, run *store.ProcessingRun, group store.EventEPGGroup, tpl store.Template, loc *time.Location, date time.Time) (store.RunCounts, []byte, error) {
	var counts store.RunCounts

	streams, err := e.host.ListStreams(ctx, group.HostGroupID)
	if err != nil {
		return counts, nil, fmt.Errorf("list streams: %w", err)
	}
	counts.StreamsFetched = len(streams)

	cached, misses := e.splitByCache(ctx, run, group, streams)
	counts.StreamsCached = len(cached)

	batch := e.matcher.MatchStreams(ctx, misses, match.Options{
		Leagues:           group.Leagues,
		Whitelist:         group.LeagueWhitelist,
		ExceptionKeywords: group.ExceptionKeywords,
		Date:              date,
	})
	e.recordBatch(ctx, run, group, batch)

	results := append(cached, batch.Results...)
	counts.StreamsMatched = len(cached) + batch.Matched
	counts.StreamsUnmatched = batch.Unmatched

	streamIDs := make([]string, len(streams))
	for i, s := range streams {
		streamIDs[i] = s.ID
	}
	bindings := e.lifecycle.EnsureChannels(ctx, group, tpl, results)
	if err := e.lifecycle.ReconcileRemovedStreams(ctx, group, streamIDs); err != nil {
		return counts, nil, fmt.Errorf("reconcile removed streams: %w", err)
	}

	tv := e.buildEventGuide(bindings, tpl, loc)
	counts.ProgrammesEvents = len(tv.Programs)
	counts.ProgrammesTotal = len(tv.Programs)

	if err := e.consolidator.WriteFragment(group.ID, tv); err != nil {
		return counts, nil, fmt.Errorf("write fragment: %w", err)
	}
	if err := e.consolidator.Rebuild(); err != nil {
		return counts, nil, fmt.Errorf("rebuild guide: %w", err)
	}

	extra, _ := json.Marshal(map[string]any{
		"groups_processed": 1,
		"match_rate":       batch.MatchRate(),
		"channels_bound":   len(bindings),
		"exceptions":       batch.Exception,
		"excluded":         batch.Excluded,
	})
	return counts, extra, nil
}

// splitByCache resolves streams against the match cache. Hits become
// ready results; misses go to the fuzzy matcher.
func (e *Engine) splitByCache(ctx context.Context, run *store.ProcessingRun, group store.EventEPGGroup, streams []host.Stream) ([]match.StreamResult, []match.Stream) {
	logger := applog.WithComponentFromContext(ctx, "engine")

	var (
		cached []match.StreamResult
		misses []match.Stream
		stats  matchcache.Stats
	)
	for _, s := range streams {
		hit, err := e.cache.Lookup(ctx, group.ID, s.ID, s.Name, run.Generation, &stats)
		if err != nil {
			logger.Warn().Err(err).
				Str("event", "engine.cache_lookup_failed").
				Str("stream_id", s.ID).
				Msg("cache lookup failed, treating as miss")
		}
		if hit == nil {
			misses = append(misses, match.Stream{ID: s.ID, Name: s.Name})
			continue
		}
		r := match.StreamResult{
			Stream:  match.Stream{ID: s.ID, Name: s.Name},
			Matched: true,
			League:  hit.Event.League,
			Event:   hit.Event,
		}
		r.Included = e.leagueIncluded(group, hit.Event.League)
		if !r.Included {
			r.Reason = match.ReasonNotInWhitelist
		}
		cached = append(cached, r)

		if err := e.store.AddMatchedStream(ctx, store.MatchedStream{
			RunID:      run.ID,
			GroupID:    group.ID,
			StreamID:   s.ID,
			StreamName: s.Name,
			EventID:    hit.Event.ID,
			League:     hit.Event.League,
			Cached:     true,
		}); err != nil {
			logger.Warn().Err(err).
				Str("event", "engine.ledger_write_failed").
				Msg("matched-stream row not recorded")
		}
	}
	if len(streams) > 0 {
		logger.Debug().
			Str("event", "engine.cache_split").
			Int("hits", stats.Hits).
			Int("refreshed", stats.Refreshed).
			Int("fallbacks", stats.Fallbacks).
			Int("evicted", stats.Evicted).
			Int("misses", len(misses)).
			Msg("cache pass done")
	}
	return cached, misses
}

// recordBatch persists fresh match outcomes to the ledger and seeds the
// cache with included matches.
func (e *Engine) recordBatch(ctx context.Context, run *store.ProcessingRun, group store.EventEPGGroup, batch *match.BatchResult) {
	logger := applog.WithComponentFromContext(ctx, "engine")

	for _, r := range batch.Results {
		if !r.Matched {
			reason := r.Reason
			if reason == "" {
				reason = match.ReasonNoEventFound
			}
			if err := e.store.AddFailedMatch(ctx, store.FailedMatch{
				RunID:      run.ID,
				GroupID:    group.ID,
				StreamID:   r.Stream.ID,
				StreamName: r.Stream.Name,
				Reason:     reason,
			}); err != nil {
				logger.Warn().Err(err).
					Str("event", "engine.ledger_write_failed").
					Msg("failed-match row not recorded")
			}
			continue
		}

		if err := e.store.AddMatchedStream(ctx, store.MatchedStream{
			RunID:      run.ID,
			GroupID:    group.ID,
			StreamID:   r.Stream.ID,
			StreamName: r.Stream.Name,
			EventID:    r.Event.ID,
			League:     r.League,
			Score:      r.Score,
			Algorithm:  string(r.Algorithm),
		}); err != nil {
			logger.Warn().Err(err).
				Str("event", "engine.ledger_write_failed").
				Msg("matched-stream row not recorded")
		}

		if err := e.cache.Put(ctx, group.ID, r.Stream.ID, r.Stream.Name, r.Event, run.Generation); err != nil {
			logger.Warn().Err(err).
				Str("event", "engine.cache_put_failed").
				Str("stream_id", r.Stream.ID).
				Msg("match not cached")
		}
	}
}

// buildEventGuide turns channel bindings into a guide document.
func (e *Engine) buildEventGuide(bindings []lifecycle.Binding, tpl store.Template, loc *time.Location) *epg.TV {
	gen := &epg.EventGenerator{Timezone: loc}

	items := make([]epg.EventItem, 0, len(bindings))
	tv := epg.NewTV()
	for _, b := range bindings {
		channelID := fmt.Sprintf("teamarr.%d", b.Channel.ChannelNumber)
		icon := b.Event.HomeTeam.LogoURL
		items = append(items, epg.EventItem{
			ChannelID:   channelID,
			ChannelName: b.Channel.ChannelName,
			Icon:        icon,
			Event:       b.Event,
		})
		tv.Channels = append(tv.Channels, epg.NewChannel(channelID, b.Channel.ChannelName, icon))
	}
	for _, p := range gen.Generate(items, tpl) {
		tv.Programs = append(tv.Programs, epg.FromProgramme(p))
	}
	return tv
}

// TeamRunOptions configure a team-guide run. Empty TeamIDs means every
// enabled team.
type TeamRunOptions struct {
	TeamIDs   []int64
	DaysAhead int
}

// RunTeamEPG regenerates the team-channel guide and returns the completed
// ledger row.
func (e *Engine) RunTeamEPG(ctx context.Context, opts TeamRunOptions) (*store.ProcessingRun, error) {
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = DefaultDaysAhead
	}

	run, err := e.store.OpenRun(ctx, RunTypeTeamEPG, nil)
	if err != nil {
		return nil, err
	}
	ctx = applog.ContextWithRunID(ctx, strconv.FormatInt(run.ID, 10))
	logger := applog.WithComponentFromContext(ctx, "engine")

	counts, extra, err := e.runTeamPipeline(ctx, opts)
	if err != nil {
		metrics.RecordRun(RunTypeTeamEPG, store.RunFailed, time.Since(run.StartedAt), 0)
		if failErr := e.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			logger.Error().Err(failErr).
				Str("event", "engine.fail_mark_failed").
				Msg("could not mark run failed")
		}
		return nil, err
	}
	if err := e.store.CompleteRun(ctx, run.ID, counts, extra); err != nil {
		return nil, err
	}
	metrics.RecordRun(RunTypeTeamEPG, store.RunCompleted, time.Since(run.StartedAt), counts.StreamsMatched)
	for kind, n := range map[core.ProgrammeKind]int{
		core.KindPregame:  counts.ProgrammesPregame,
		core.KindPostgame: counts.ProgrammesPostgame,
		core.KindIdle:     counts.ProgrammesIdle,
	} {
		metrics.RecordProgrammes(string(kind), n)
	}
	logger.Info().
		Str("event", "engine.team_run_completed").
		Int("programmes", counts.ProgrammesTotal).
		Msg("team guide run completed")
	return e.store.GetRun(ctx, run.ID)
}

func (e *Engine) runTeamPipeline(ctx context.Context, opts TeamRunOptions) (store.RunCounts, []byte, error) {
	var counts store.RunCounts

	teams, err := e.store.Teams(ctx)
	if err != nil {
		return counts, nil, err
	}
	wanted := make(map[int64]bool, len(opts.TeamIDs))
	for _, id := range opts.TeamIDs {
		wanted[id] = true
	}

	windowStart := startOfDay(e.now().In(e.timezone))
	windowEnd := windowStart.AddDate(0, 0, opts.DaysAhead)
	gen := &epg.TeamGenerator{Timezone: e.timezone}

	tv := epg.NewTV()
	processed := 0
	for _, team := range teams {
		if !team.Enabled {
			continue
		}
		if len(wanted) > 0 && !wanted[team.ID] {
			continue
		}
		processed++

		tpl := e.templateFor(ctx, team.TemplateID)
		events := e.sports.TeamSchedule(ctx, team.TeamID, team.League, opts.DaysAhead)

		ch := epg.TeamChannel{
			ChannelID: team.ChannelID,
			Name:      team.Name,
			TeamID:    team.TeamID,
		}
		if info := e.sports.Team(ctx, team.TeamID, team.League); info != nil {
			ch.Icon = info.LogoURL
			if ch.Name == "" {
				ch.Name = info.Name
			}
		}

		tv.Channels = append(tv.Channels, epg.NewChannel(ch.ChannelID, ch.Name, ch.Icon))
		for _, p := range gen.Generate(ch, events, tpl, windowStart, windowEnd) {
			tv.Programs = append(tv.Programs, epg.FromProgramme(p))
			switch p.Kind {
			case core.KindEvent:
				counts.ProgrammesEvents++
			case core.KindPregame:
				counts.ProgrammesPregame++
			case core.KindPostgame:
				counts.ProgrammesPostgame++
			case core.KindIdle, core.KindNoGame:
				counts.ProgrammesIdle++
			}
			counts.ProgrammesTotal++
		}
	}

	if err := e.consolidator.WriteTeams(tv); err != nil {
		return counts, nil, fmt.Errorf("write team guide: %w", err)
	}
	if err := e.consolidator.Rebuild(); err != nil {
		return counts, nil, fmt.Errorf("rebuild guide: %w", err)
	}

	extra, _ := json.Marshal(map[string]any{"teams_processed": processed})
	return counts, extra, nil
}

func (e *Engine) lockFor(groupID int64) *sync.Mutex {
	mu, _ := e.groupLocks.LoadOrStore(groupID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (e *Engine) templateFor(ctx context.Context, id *int64) store.Template {
	if id == nil {
		return store.Template{}
	}
	tpl, err := e.store.Template(ctx, *id)
	if err != nil || tpl == nil {
		logger := applog.WithComponentFromContext(ctx, "engine")
		logger.Warn().
			Str("event", "engine.template_missing").
			Int64("template_id", *id).
			Msg("template not found, using defaults")
		return store.Template{}
	}
	return *tpl
}

func (e *Engine) locationFor(name string) *time.Location {
	if name == "" {
		return e.timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return e.timezone
	}
	return loc
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// leagueIncluded applies the group whitelist to a cached match.
func (e *Engine) leagueIncluded(group store.EventEPGGroup, league string) bool {
	if len(group.LeagueWhitelist) == 0 {
		return true
	}
	for _, l := range group.LeagueWhitelist {
		if l == league {
			return true
		}
	}
	return false
}
