// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
)

// GetCacheEntry returns the cache row for a fingerprint, or nil on miss.
func (s *Store) GetCacheEntry(ctx context.Context, fingerprint string) (*CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, group_id, stream_id, stream_name, event_id, league,
			event_data, last_seen_generation, refresh_failures, created_at, updated_at
		FROM stream_match_cache WHERE fingerprint = ?`, fingerprint)

	var (
		e                CacheEntry
		data             string
		created, updated string
	)
	err := row.Scan(&e.Fingerprint, &e.GroupID, &e.StreamID, &e.StreamName,
		&e.EventID, &e.League, &data, &e.LastSeenGeneration, &e.RefreshFailures,
		&created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.EventData = []byte(data)
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

// SetCacheEntry upserts a cache row, replacing all fields including the
// generation. A successful set clears the refresh-failure counter.
func (s *Store) SetCacheEntry(ctx context.Context, e CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stream_match_cache (fingerprint, group_id, stream_id, stream_name,
			event_id, league, event_data, last_seen_generation, refresh_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(fingerprint) DO UPDATE SET
			group_id = excluded.group_id,
			stream_id = excluded.stream_id,
			stream_name = excluded.stream_name,
			event_id = excluded.event_id,
			league = excluded.league,
			event_data = excluded.event_data,
			last_seen_generation = excluded.last_seen_generation,
			refresh_failures = 0`,
		e.Fingerprint, e.GroupID, e.StreamID, e.StreamName,
		e.EventID, e.League, string(e.EventData), e.LastSeenGeneration)
	return err
}

// BumpRefreshFailures increments the consecutive refresh-failure counter
// and returns the new value.
func (s *Store) BumpRefreshFailures(ctx context.Context, fingerprint string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		UPDATE stream_match_cache SET refresh_failures = refresh_failures + 1
		WHERE fingerprint = ?
		RETURNING refresh_failures`, fingerprint).Scan(&n)
	return n, err
}

// ResetRefreshFailures clears the counter after a successful refresh.
func (s *Store) ResetRefreshFailures(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stream_match_cache SET refresh_failures = 0
		WHERE fingerprint = ? AND refresh_failures <> 0`, fingerprint)
	return err
}

// TouchCacheEntry bumps last_seen_generation on a cache hit so the entry
// survives the next purge.
func (s *Store) TouchCacheEntry(ctx context.Context, fingerprint string, generation int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stream_match_cache SET last_seen_generation = ?
		WHERE fingerprint = ?`, generation, fingerprint)
	return err
}

// PurgeStaleCache deletes entries not seen within keepGenerations of the
// current generation. Returns the number removed.
func (s *Store) PurgeStaleCache(ctx context.Context, currentGeneration, keepGenerations int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM stream_match_cache WHERE last_seen_generation < ?`,
		currentGeneration-keepGenerations)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteCacheEntry evicts one row.
func (s *Store) DeleteCacheEntry(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM stream_match_cache WHERE fingerprint = ?`, fingerprint)
	return err
}

// ClearGroupCache evicts all rows for one group.
func (s *Store) ClearGroupCache(ctx context.Context, groupID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM stream_match_cache WHERE group_id = ?`, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearAllCache evicts every cache row.
func (s *Store) ClearAllCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stream_match_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountCacheEntries returns the cache size.
func (s *Store) CountCacheEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stream_match_cache`).Scan(&n)
	return n, err
}
