// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertTeam inserts or updates a team config keyed by (provider, team_id,
// league). The row ID is returned.
func (s *Store) UpsertTeam(ctx context.Context, t TeamConfig) (int64, error) {
	query := `
	INSERT INTO teams (provider, team_id, league, channel_id, name, template_id, enabled)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(provider, team_id, league) DO UPDATE SET
		channel_id = excluded.channel_id,
		name = excluded.name,
		template_id = excluded.template_id,
		enabled = excluded.enabled
	RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		t.Provider, t.TeamID, t.League, t.ChannelID, t.Name, nullInt64(t.TemplateID), t.Enabled,
	).Scan(&id)
	return id, err
}

// Teams returns all team configs, enabled first then by name.
func (s *Store) Teams(ctx context.Context) ([]TeamConfig, error) {
	query := `
	SELECT id, provider, team_id, league, channel_id, name, template_id, enabled, created_at, updated_at
	FROM teams
	ORDER BY enabled DESC, name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var teams []TeamConfig
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// Team returns one team config by row ID, or nil if absent.
func (s *Store) Team(ctx context.Context, id int64) (*TeamConfig, error) {
	query := `
	SELECT id, provider, team_id, league, channel_id, name, template_id, enabled, created_at, updated_at
	FROM teams WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTeam removes a team config.
func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(r rowScanner) (TeamConfig, error) {
	var (
		t          TeamConfig
		templateID sql.NullInt64
		created    string
		updated    string
	)
	err := r.Scan(&t.ID, &t.Provider, &t.TeamID, &t.League, &t.ChannelID, &t.Name,
		&templateID, &t.Enabled, &created, &updated)
	if err != nil {
		return TeamConfig{}, err
	}
	t.TemplateID = parseNullInt64(templateID)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

// UpsertTemplate inserts or updates a template by name.
func (s *Store) UpsertTemplate(ctx context.Context, t Template) (int64, error) {
	opts, err := json.Marshal(t.DescriptionOptions)
	if err != nil {
		return 0, fmt.Errorf("encode description options: %w", err)
	}
	pre, err := json.Marshal(t.PregamePeriods)
	if err != nil {
		return 0, fmt.Errorf("encode pregame periods: %w", err)
	}
	post, err := json.Marshal(t.PostgamePeriods)
	if err != nil {
		return 0, fmt.Errorf("encode postgame periods: %w", err)
	}

	query := `
	INSERT INTO templates (name, title, subtitle, description, channel_name,
		description_options, pregame_periods, postgame_periods,
		no_game_title, no_game_description, idle_title, idle_description,
		pregame_minutes, duration_hours)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		title = excluded.title,
		subtitle = excluded.subtitle,
		description = excluded.description,
		channel_name = excluded.channel_name,
		description_options = excluded.description_options,
		pregame_periods = excluded.pregame_periods,
		postgame_periods = excluded.postgame_periods,
		no_game_title = excluded.no_game_title,
		no_game_description = excluded.no_game_description,
		idle_title = excluded.idle_title,
		idle_description = excluded.idle_description,
		pregame_minutes = excluded.pregame_minutes,
		duration_hours = excluded.duration_hours
	RETURNING id
	`
	var id int64
	err = s.db.QueryRowContext(ctx, query,
		t.Name, t.Title, t.Subtitle, t.Description, t.ChannelName,
		string(opts), string(pre), string(post),
		t.NoGameTitle, t.NoGameDescription, t.IdleTitle, t.IdleDescription,
		t.PregameMinutes, t.DurationHours,
	).Scan(&id)
	return id, err
}

// Template returns one template by row ID, or nil if absent.
func (s *Store) Template(ctx context.Context, id int64) (*Template, error) {
	query := templateSelect + ` WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Templates returns all templates ordered by name.
func (s *Store) Templates(ctx context.Context) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, templateSelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	return err
}

const templateSelect = `
	SELECT id, name, title, subtitle, description, channel_name,
		description_options, pregame_periods, postgame_periods,
		no_game_title, no_game_description, idle_title, idle_description,
		pregame_minutes, duration_hours, created_at, updated_at
	FROM templates`

func scanTemplate(r rowScanner) (Template, error) {
	var (
		t                Template
		opts, pre, post  string
		created, updated string
	)
	err := r.Scan(&t.ID, &t.Name, &t.Title, &t.Subtitle, &t.Description, &t.ChannelName,
		&opts, &pre, &post,
		&t.NoGameTitle, &t.NoGameDescription, &t.IdleTitle, &t.IdleDescription,
		&t.PregameMinutes, &t.DurationHours, &created, &updated)
	if err != nil {
		return Template{}, err
	}
	if err := json.Unmarshal([]byte(opts), &t.DescriptionOptions); err != nil {
		return Template{}, fmt.Errorf("decode description options: %w", err)
	}
	if err := json.Unmarshal([]byte(pre), &t.PregamePeriods); err != nil {
		return Template{}, fmt.Errorf("decode pregame periods: %w", err)
	}
	if err := json.Unmarshal([]byte(post), &t.PostgamePeriods); err != nil {
		return Template{}, fmt.Errorf("decode postgame periods: %w", err)
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

// UpsertGroup inserts or updates an event EPG group. A zero ID inserts.
func (s *Store) UpsertGroup(ctx context.Context, g EventEPGGroup) (int64, error) {
	leagues, err := json.Marshal(emptyIfNil(g.Leagues))
	if err != nil {
		return 0, err
	}
	whitelist, err := json.Marshal(emptyIfNil(g.LeagueWhitelist))
	if err != nil {
		return 0, err
	}
	keywords, err := json.Marshal(emptyIfNil(g.ExceptionKeywords))
	if err != nil {
		return 0, err
	}

	if g.ID == 0 {
		query := `
		INSERT INTO event_epg_groups (name, host_group_id, leagues, league_whitelist,
			exception_keywords, refresh_minutes, channel_start, create_timing,
			delete_timing, timezone, epg_source_id, template_id, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
		`
		var id int64
		err := s.db.QueryRowContext(ctx, query,
			g.Name, g.HostGroupID, string(leagues), string(whitelist), string(keywords),
			g.RefreshMinutes, nullIntPtr(g.ChannelStart), g.CreateTiming, g.DeleteTiming,
			g.Timezone, g.EPGSourceID, nullInt64(g.TemplateID), g.Enabled,
		).Scan(&id)
		return id, err
	}

	query := `
	UPDATE event_epg_groups SET
		name = ?, host_group_id = ?, leagues = ?, league_whitelist = ?,
		exception_keywords = ?, refresh_minutes = ?, channel_start = ?,
		create_timing = ?, delete_timing = ?, timezone = ?, epg_source_id = ?,
		template_id = ?, enabled = ?
	WHERE id = ?
	`
	_, err = s.db.ExecContext(ctx, query,
		g.Name, g.HostGroupID, string(leagues), string(whitelist), string(keywords),
		g.RefreshMinutes, nullIntPtr(g.ChannelStart), g.CreateTiming, g.DeleteTiming,
		g.Timezone, g.EPGSourceID, nullInt64(g.TemplateID), g.Enabled, g.ID,
	)
	return g.ID, err
}

// Group returns one group by row ID, or nil if absent.
func (s *Store) Group(ctx context.Context, id int64) (*EventEPGGroup, error) {
	row := s.db.QueryRowContext(ctx, groupSelect+` WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Groups returns all groups ordered by name.
func (s *Store) Groups(ctx context.Context) ([]EventEPGGroup, error) {
	rows, err := s.db.QueryContext(ctx, groupSelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []EventEPGGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// EnabledGroups returns groups eligible for generation runs.
func (s *Store) EnabledGroups(ctx context.Context) ([]EventEPGGroup, error) {
	rows, err := s.db.QueryContext(ctx, groupSelect+` WHERE enabled = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []EventEPGGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGroup removes a group config.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM event_epg_groups WHERE id = ?`, id)
	return err
}

const groupSelect = `
	SELECT id, name, host_group_id, leagues, league_whitelist, exception_keywords,
		refresh_minutes, channel_start, create_timing, delete_timing, timezone,
		epg_source_id, template_id, enabled, created_at, updated_at
	FROM event_epg_groups`

func scanGroup(r rowScanner) (EventEPGGroup, error) {
	var (
		g                             EventEPGGroup
		leagues, whitelist, keywords  string
		channelStart                  sql.NullInt64
		templateID                    sql.NullInt64
		created, updated              string
	)
	err := r.Scan(&g.ID, &g.Name, &g.HostGroupID, &leagues, &whitelist, &keywords,
		&g.RefreshMinutes, &channelStart, &g.CreateTiming, &g.DeleteTiming, &g.Timezone,
		&g.EPGSourceID, &templateID, &g.Enabled, &created, &updated)
	if err != nil {
		return EventEPGGroup{}, err
	}
	if err := json.Unmarshal([]byte(leagues), &g.Leagues); err != nil {
		return EventEPGGroup{}, fmt.Errorf("decode leagues: %w", err)
	}
	if err := json.Unmarshal([]byte(whitelist), &g.LeagueWhitelist); err != nil {
		return EventEPGGroup{}, fmt.Errorf("decode league whitelist: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &g.ExceptionKeywords); err != nil {
		return EventEPGGroup{}, fmt.Errorf("decode exception keywords: %w", err)
	}
	if channelStart.Valid {
		v := int(channelStart.Int64)
		g.ChannelStart = &v
	}
	g.TemplateID = parseNullInt64(templateID)
	g.CreatedAt = parseTime(created)
	g.UpdatedAt = parseTime(updated)
	return g, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
