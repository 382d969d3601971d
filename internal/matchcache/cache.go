// SPDX-License-Identifier: MIT

// Package matchcache persists stream-to-event bindings so repeat runs skip
// fuzzy matching. A cache hit refreshes only the dynamic fields of the
// cached event through the provider's single-event endpoint.
package matchcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/teamarr/teamarr/internal/core"
	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/store"
)

const (
	// DefaultKeepGenerations is how many generations an entry survives
	// without being touched.
	DefaultKeepGenerations = 5

	// DefaultMaxRefreshFailures evicts an entry whose event id stopped
	// resolving at the provider for this many consecutive refreshes.
	DefaultMaxRefreshFailures = 3
)

// eventFetcher is the single-event slice of the provider capability set.
type eventFetcher interface {
	Event(ctx context.Context, eventID, league string) *core.Event
}

// Stats counts cache activity within one generation run.
type Stats struct {
	Hits      int
	Misses    int
	Refreshed int
	Fallbacks int
	Evicted   int
}

// Hit is a resolved cache lookup.
type Hit struct {
	Event     core.Event
	Refreshed bool
}

// Cache is the stream-match cache over the persistent store.
type Cache struct {
	store       *store.Store
	provider    eventFetcher
	keepGens    int64
	maxFailures int
}

// New builds a cache. provider may be nil, in which case hits are served
// from the stored snapshot without refresh.
func New(st *store.Store, provider eventFetcher) *Cache {
	return &Cache{
		store:       st,
		provider:    provider,
		keepGens:    DefaultKeepGenerations,
		maxFailures: DefaultMaxRefreshFailures,
	}
}

// Fingerprint derives the cache key from the stream identity: the first 16
// hex characters of SHA-256 over "group_id:stream_id:stream_name".
// Collisions at this width are acceptable at cache cardinality.
func Fingerprint(groupID int64, streamID, streamName string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d:%s:%s", groupID, streamID, streamName))
	return hex.EncodeToString(sum[:])[:16]
}

// Lookup resolves a stream against the cache at the given generation. On a
// hit the entry's dynamic fields are refreshed from the provider and its
// last_seen_generation is bumped; a failed refresh serves the cached
// snapshot unchanged. Entries whose event no longer resolves after
// consecutive failures are evicted and reported as a miss.
func (c *Cache) Lookup(ctx context.Context, groupID int64, streamID, streamName string, generation int64, stats *Stats) (*Hit, error) {
	logger := applog.WithComponentFromContext(ctx, "matchcache")
	fp := Fingerprint(groupID, streamID, streamName)

	entry, err := c.store.GetCacheEntry(ctx, fp)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		stats.Misses++
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil, nil
	}

	var cached core.Event
	if err := json.Unmarshal(entry.EventData, &cached); err != nil {
		logger.Warn().
			Str("event", "matchcache.corrupt_entry").
			Str("fingerprint", fp).
			Msg("evicting undecodable cache entry")
		_ = c.store.DeleteCacheEntry(ctx, fp)
		stats.Misses++
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil, nil
	}

	var fresh *core.Event
	if c.provider != nil {
		fresh = c.provider.Event(ctx, entry.EventID, entry.League)
	}

	if fresh == nil && c.provider != nil {
		failures, err := c.store.BumpRefreshFailures(ctx, fp)
		if err != nil {
			return nil, err
		}
		if failures >= c.maxFailures {
			logger.Info().
				Str("event", "matchcache.evicted").
				Str("fingerprint", fp).
				Str("event_id", entry.EventID).
				Int("failures", failures).
				Msg("event no longer resolves, evicting")
			if err := c.store.DeleteCacheEntry(ctx, fp); err != nil {
				return nil, err
			}
			stats.Evicted++
			stats.Misses++
			metrics.RecordCacheLookup(metrics.CacheEvicted)
			return nil, nil
		}
		// Serve the stale snapshot; the touch keeps it alive for retry.
		if err := c.store.TouchCacheEntry(ctx, fp, generation); err != nil {
			return nil, err
		}
		stats.Hits++
		stats.Fallbacks++
		metrics.RecordCacheLookup(metrics.CacheFallback)
		return &Hit{Event: cached}, nil
	}

	if fresh != nil {
		merged := core.MergeDynamic(cached, fresh)
		data, err := json.Marshal(merged)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(data, entry.EventData) {
			// Unchanged snapshot: touch the generation and clear the
			// failure budget without rewriting the row.
			if err := c.store.TouchCacheEntry(ctx, fp, generation); err != nil {
				return nil, err
			}
			if err := c.store.ResetRefreshFailures(ctx, fp); err != nil {
				return nil, err
			}
		} else {
			entry.EventData = data
			entry.LastSeenGeneration = generation
			if err := c.store.SetCacheEntry(ctx, *entry); err != nil {
				return nil, err
			}
		}
		stats.Hits++
		stats.Refreshed++
		metrics.RecordCacheLookup(metrics.CacheRefresh)
		return &Hit{Event: merged, Refreshed: true}, nil
	}

	// No provider configured: plain hit.
	if err := c.store.TouchCacheEntry(ctx, fp, generation); err != nil {
		return nil, err
	}
	stats.Hits++
	metrics.RecordCacheLookup(metrics.CacheHit)
	return &Hit{Event: cached}, nil
}

// Put records a fresh fuzzy-match result at the current generation.
func (c *Cache) Put(ctx context.Context, groupID int64, streamID, streamName string, event core.Event, generation int64) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.store.SetCacheEntry(ctx, store.CacheEntry{
		Fingerprint:        Fingerprint(groupID, streamID, streamName),
		GroupID:            groupID,
		StreamID:           streamID,
		StreamName:         streamName,
		EventID:            event.ID,
		League:             event.League,
		EventData:          data,
		LastSeenGeneration: generation,
	})
}

// PurgeStale drops entries untouched for more than the keep window.
func (c *Cache) PurgeStale(ctx context.Context, currentGeneration int64) (int64, error) {
	return c.store.PurgeStaleCache(ctx, currentGeneration, c.keepGens)
}

// ClearGroup evicts every entry for one group.
func (c *Cache) ClearGroup(ctx context.Context, groupID int64) (int64, error) {
	return c.store.ClearGroupCache(ctx, groupID)
}

// ClearAll evicts the whole cache.
func (c *Cache) ClearAll(ctx context.Context) (int64, error) {
	return c.store.ClearAllCache(ctx)
}
