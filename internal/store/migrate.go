// SPDX-License-Identifier: MIT

package store

import (
	"fmt"
)

// migrate bootstraps the schema and applies guarded migrations. Every step
// is idempotent: tables and indexes use IF NOT EXISTS, column additions are
// guarded by a catalog lookup, and nothing destructively alters data.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK(id = 1),
		generation INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	INSERT OR IGNORE INTO settings (id, generation) VALUES (1, 0);

	CREATE TABLE IF NOT EXISTS teams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL DEFAULT 'espn',
		team_id TEXT NOT NULL,
		league TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		template_id INTEGER,
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		UNIQUE (provider, team_id, league)
	);

	CREATE TABLE IF NOT EXISTS templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		subtitle TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		channel_name TEXT NOT NULL DEFAULT '',
		description_options TEXT NOT NULL DEFAULT '[]',
		pregame_periods TEXT NOT NULL DEFAULT '[]',
		postgame_periods TEXT NOT NULL DEFAULT '[]',
		no_game_title TEXT NOT NULL DEFAULT '',
		no_game_description TEXT NOT NULL DEFAULT '',
		idle_title TEXT NOT NULL DEFAULT '',
		idle_description TEXT NOT NULL DEFAULT '',
		pregame_minutes INTEGER NOT NULL DEFAULT 30,
		duration_hours INTEGER NOT NULL DEFAULT 3,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	CREATE TABLE IF NOT EXISTS event_epg_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		host_group_id TEXT NOT NULL,
		leagues TEXT NOT NULL DEFAULT '[]',
		league_whitelist TEXT NOT NULL DEFAULT '[]',
		exception_keywords TEXT NOT NULL DEFAULT '[]',
		refresh_minutes INTEGER NOT NULL DEFAULT 15,
		channel_start INTEGER,
		create_timing TEXT NOT NULL DEFAULT 'day_of',
		delete_timing TEXT NOT NULL DEFAULT 'end_of_day',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		epg_source_id TEXT NOT NULL DEFAULT '',
		template_id INTEGER,
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	CREATE TABLE IF NOT EXISTS managed_channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL REFERENCES event_epg_groups(id),
		host_channel_id TEXT NOT NULL,
		host_stream_id TEXT NOT NULL,
		channel_number INTEGER NOT NULL,
		event_id TEXT NOT NULL,
		league TEXT NOT NULL DEFAULT '',
		channel_name TEXT NOT NULL DEFAULT '',
		event_start TEXT NOT NULL,
		scheduled_delete_at TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_managed_channels_active_number
		ON managed_channels(group_id, channel_number) WHERE deleted_at IS NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_managed_channels_active_event
		ON managed_channels(group_id, event_id) WHERE deleted_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_managed_channels_sched_delete
		ON managed_channels(scheduled_delete_at) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS stream_match_cache (
		fingerprint TEXT PRIMARY KEY,
		group_id INTEGER NOT NULL,
		stream_id TEXT NOT NULL,
		stream_name TEXT NOT NULL,
		event_id TEXT NOT NULL,
		league TEXT NOT NULL,
		event_data TEXT NOT NULL,
		last_seen_generation INTEGER NOT NULL,
		refresh_failures INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_cache_generation
		ON stream_match_cache(last_seen_generation);
	CREATE INDEX IF NOT EXISTS idx_cache_group
		ON stream_match_cache(group_id);

	CREATE TABLE IF NOT EXISTS processing_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_type TEXT NOT NULL,
		group_id INTEGER,
		status TEXT NOT NULL DEFAULT 'running' CHECK(status IN ('running', 'completed', 'failed')),
		generation INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		completed_at TEXT,
		streams_fetched INTEGER NOT NULL DEFAULT 0,
		streams_matched INTEGER NOT NULL DEFAULT 0,
		streams_unmatched INTEGER NOT NULL DEFAULT 0,
		streams_cached INTEGER NOT NULL DEFAULT 0,
		programmes_total INTEGER NOT NULL DEFAULT 0,
		programmes_events INTEGER NOT NULL DEFAULT 0,
		programmes_pregame INTEGER NOT NULL DEFAULT 0,
		programmes_postgame INTEGER NOT NULL DEFAULT 0,
		programmes_idle INTEGER NOT NULL DEFAULT 0,
		error_summary TEXT NOT NULL DEFAULT '',
		extra_metrics TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON processing_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_type ON processing_runs(run_type, started_at);

	CREATE TABLE IF NOT EXISTS epg_matched_streams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES processing_runs(id),
		group_id INTEGER NOT NULL,
		stream_id TEXT NOT NULL,
		stream_name TEXT NOT NULL,
		event_id TEXT NOT NULL,
		league TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		algorithm TEXT NOT NULL DEFAULT '',
		cached INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_matched_run ON epg_matched_streams(run_id);

	CREATE TABLE IF NOT EXISTS epg_failed_matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES processing_runs(id),
		group_id INTEGER NOT NULL,
		stream_id TEXT NOT NULL,
		stream_name TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_failed_run ON epg_failed_matches(run_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Guarded column additions for upgrades from earlier V2 schemas.
	additions := []struct {
		table, column, ddl string
	}{
		{"event_epg_groups", "league_whitelist",
			`ALTER TABLE event_epg_groups ADD COLUMN league_whitelist TEXT NOT NULL DEFAULT '[]'`},
		{"event_epg_groups", "epg_source_id",
			`ALTER TABLE event_epg_groups ADD COLUMN epg_source_id TEXT NOT NULL DEFAULT ''`},
		{"managed_channels", "league",
			`ALTER TABLE managed_channels ADD COLUMN league TEXT NOT NULL DEFAULT ''`},
		{"processing_runs", "extra_metrics",
			`ALTER TABLE processing_runs ADD COLUMN extra_metrics TEXT NOT NULL DEFAULT '{}'`},
		{"epg_matched_streams", "algorithm",
			`ALTER TABLE epg_matched_streams ADD COLUMN algorithm TEXT NOT NULL DEFAULT ''`},
		{"stream_match_cache", "refresh_failures",
			`ALTER TABLE stream_match_cache ADD COLUMN refresh_failures INTEGER NOT NULL DEFAULT 0`},
	}
	for _, a := range additions {
		has, err := s.columnExists(a.table, a.column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := s.db.Exec(a.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", a.table, a.column, err)
		}
	}

	// Update-timestamp triggers, one per mutable table.
	for _, table := range []string{"teams", "templates", "event_epg_groups", "managed_channels", "stream_match_cache"} {
		trigger := fmt.Sprintf(`
		CREATE TRIGGER IF NOT EXISTS trg_%s_updated_at
		AFTER UPDATE ON %s
		BEGIN
			UPDATE %s SET updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')
			WHERE rowid = NEW.rowid;
		END;`, table, table, table)
		if _, err := s.db.Exec(trigger); err != nil {
			return fmt.Errorf("create trigger for %s: %w", table, err)
		}
	}
	return nil
}

// columnExists checks the table catalog for a column.
func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
