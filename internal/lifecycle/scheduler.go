// SPDX-License-Identifier: MIT

package lifecycle

import (
	"context"
	"time"

	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/matchcache"
	"github.com/teamarr/teamarr/internal/store"
)

// DefaultTickInterval is how often the background maintenance pass runs.
const DefaultTickInterval = 15 * time.Minute

// Scheduler drives periodic maintenance: scheduled channel deletions,
// retention purge and stream-match cache cleanup.
type Scheduler struct {
	manager  *Manager
	cache    *matchcache.Cache
	store    *store.Store
	interval time.Duration
}

// NewScheduler builds a scheduler. An interval <= 0 uses the default.
func NewScheduler(manager *Manager, cache *matchcache.Cache, st *store.Store, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{manager: manager, cache: cache, store: st, interval: interval}
}

// Run ticks until the context is canceled. One pass runs immediately on
// start so a restart does not delay overdue deletions by a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	logger := applog.WithComponent("scheduler")
	logger.Info().
		Str("event", "scheduler.started").
		Dur("interval", s.interval).
		Msg("maintenance scheduler started")

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().
				Str("event", "scheduler.stopped").
				Msg("maintenance scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one maintenance pass. Failures are logged, never fatal; the
// next tick retries.
func (s *Scheduler) Tick(ctx context.Context) {
	logger := applog.WithComponent("scheduler")

	deleted, err := s.manager.RunScheduledDeletions(ctx)
	if err != nil {
		logger.Error().Err(err).
			Str("event", "scheduler.sweep_failed").
			Msg("scheduled deletion sweep failed")
	}

	purged, err := s.manager.PurgeRetention(ctx)
	if err != nil {
		logger.Error().Err(err).
			Str("event", "scheduler.retention_failed").
			Msg("retention purge failed")
	}

	var stale int64
	if s.cache != nil {
		gen, err := s.store.Generation(ctx)
		if err != nil {
			logger.Error().Err(err).
				Str("event", "scheduler.generation_failed").
				Msg("generation lookup failed, cache purge skipped")
		} else if stale, err = s.cache.PurgeStale(ctx, gen); err != nil {
			logger.Error().Err(err).
				Str("event", "scheduler.cache_purge_failed").
				Msg("stream-match cache purge failed")
		}
	}

	logger.Debug().
		Str("event", "scheduler.tick").
		Int("channels_deleted", deleted).
		Int64("rows_purged", purged).
		Int64("cache_purged", stale).
		Msg("maintenance pass complete")
}
