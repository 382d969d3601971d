// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// OpenRun increments the generation counter and inserts a running ledger
// row in one transaction, so two simultaneous runs can never share a
// generation.
func (s *Store) OpenRun(ctx context.Context, runType string, groupID *int64) (*ProcessingRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var gen int64
	err = tx.QueryRowContext(ctx, `
		UPDATE settings SET generation = generation + 1 WHERE id = 1
		RETURNING generation`).Scan(&gen)
	if err != nil {
		return nil, fmt.Errorf("advance generation: %w", err)
	}

	started := time.Now().UTC()
	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO processing_runs (run_type, group_id, status, generation, started_at)
		VALUES (?, ?, 'running', ?, ?)
		RETURNING id`,
		runType, nullInt64(groupID), gen, started.Format(time.RFC3339)).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("open run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &ProcessingRun{
		ID:         id,
		RunType:    runType,
		GroupID:    groupID,
		Status:     RunRunning,
		Generation: gen,
		StartedAt:  started,
	}, nil
}

// CompleteRun finalizes a run with its counts and metrics bag.
func (s *Store) CompleteRun(ctx context.Context, id int64, counts RunCounts, extraMetrics []byte) error {
	if len(extraMetrics) == 0 {
		extraMetrics = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE processing_runs SET
			status = 'completed',
			completed_at = ?,
			streams_fetched = ?, streams_matched = ?, streams_unmatched = ?, streams_cached = ?,
			programmes_total = ?, programmes_events = ?, programmes_pregame = ?,
			programmes_postgame = ?, programmes_idle = ?,
			extra_metrics = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		counts.StreamsFetched, counts.StreamsMatched, counts.StreamsUnmatched, counts.StreamsCached,
		counts.ProgrammesTotal, counts.ProgrammesEvents, counts.ProgrammesPregame,
		counts.ProgrammesPostgame, counts.ProgrammesIdle,
		string(extraMetrics), id)
	return err
}

// FailRun marks a run failed with an error summary.
func (s *Store) FailRun(ctx context.Context, id int64, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE processing_runs SET status = 'failed', completed_at = ?, error_summary = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), summary, id)
	return err
}

// AddMatchedStream appends a matched-stream row to a run.
func (s *Store) AddMatchedStream(ctx context.Context, m MatchedStream) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO epg_matched_streams (run_id, group_id, stream_id, stream_name,
			event_id, league, score, algorithm, cached)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.GroupID, m.StreamID, m.StreamName,
		m.EventID, m.League, m.Score, m.Algorithm, m.Cached)
	return err
}

// AddFailedMatch appends a failed-match row to a run.
func (s *Store) AddFailedMatch(ctx context.Context, f FailedMatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO epg_failed_matches (run_id, group_id, stream_id, stream_name, reason)
		VALUES (?, ?, ?, ?, ?)`,
		f.RunID, f.GroupID, f.StreamID, f.StreamName, f.Reason)
	return err
}

// RunFilter narrows ListRuns. Zero values mean "any".
type RunFilter struct {
	RunType string
	GroupID *int64
	Status  string
	Limit   int
}

// ListRuns returns ledger rows newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]ProcessingRun, error) {
	var (
		where []string
		args  []any
	)
	if f.RunType != "" {
		where = append(where, "run_type = ?")
		args = append(args, f.RunType)
	}
	if f.GroupID != nil {
		where = append(where, "group_id = ?")
		args = append(args, *f.GroupID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := runSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ProcessingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run by ID, or nil if absent.
func (s *Store) GetRun(ctx context.Context, id int64) (*ProcessingRun, error) {
	row := s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRun returns the most recent run of a type, or nil.
func (s *Store) LatestRun(ctx context.Context, runType string) (*ProcessingRun, error) {
	row := s.db.QueryRowContext(ctx,
		runSelect+` WHERE run_type = ? ORDER BY started_at DESC, id DESC LIMIT 1`, runType)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MatchedStreams returns the matched rows for a run.
func (s *Store) MatchedStreams(ctx context.Context, runID int64) ([]MatchedStream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, group_id, stream_id, stream_name, event_id, league,
			score, algorithm, cached, created_at
		FROM epg_matched_streams WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []MatchedStream
	for rows.Next() {
		var (
			m       MatchedStream
			created string
		)
		if err := rows.Scan(&m.ID, &m.RunID, &m.GroupID, &m.StreamID, &m.StreamName,
			&m.EventID, &m.League, &m.Score, &m.Algorithm, &m.Cached, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// FailedMatches returns the failed rows for a run.
func (s *Store) FailedMatches(ctx context.Context, runID int64) ([]FailedMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, group_id, stream_id, stream_name, reason, created_at
		FROM epg_failed_matches WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []FailedMatch
	for rows.Next() {
		var (
			f       FailedMatch
			created string
		)
		if err := rows.Scan(&f.ID, &f.RunID, &f.GroupID, &f.StreamID, &f.StreamName,
			&f.Reason, &created); err != nil {
			return nil, err
		}
		f.CreatedAt = parseTime(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

// DailyRunStats is one day's rollup for the history view.
type DailyRunStats struct {
	Day              string
	Runs             int
	Completed        int
	Failed           int
	StreamsMatched   int
	StreamsUnmatched int
	ProgrammesTotal  int
}

// RunHistory rolls runs up by UTC day over the trailing window.
func (s *Store) RunHistory(ctx context.Context, days int) ([]DailyRunStats, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(started_at, 1, 10) AS day,
			COUNT(*),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			SUM(streams_matched), SUM(streams_unmatched), SUM(programmes_total)
		FROM processing_runs
		WHERE started_at >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []DailyRunStats
	for rows.Next() {
		var d DailyRunStats
		if err := rows.Scan(&d.Day, &d.Runs, &d.Completed, &d.Failed,
			&d.StreamsMatched, &d.StreamsUnmatched, &d.ProgrammesTotal); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CleanupRuns deletes ledger rows and their per-run detail older than the
// cutoff. Returns the number of runs removed.
func (s *Store) CleanupRuns(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := before.UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM epg_matched_streams WHERE run_id IN
			(SELECT id FROM processing_runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM epg_failed_matches WHERE run_id IN
			(SELECT id FROM processing_runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM processing_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

const runSelect = `
	SELECT id, run_type, group_id, status, generation, started_at, completed_at,
		streams_fetched, streams_matched, streams_unmatched, streams_cached,
		programmes_total, programmes_events, programmes_pregame,
		programmes_postgame, programmes_idle,
		error_summary, extra_metrics
	FROM processing_runs`

func scanRun(r rowScanner) (ProcessingRun, error) {
	var (
		run       ProcessingRun
		groupID   sql.NullInt64
		started   string
		completed sql.NullString
		metrics   string
	)
	err := r.Scan(&run.ID, &run.RunType, &groupID, &run.Status, &run.Generation,
		&started, &completed,
		&run.Counts.StreamsFetched, &run.Counts.StreamsMatched,
		&run.Counts.StreamsUnmatched, &run.Counts.StreamsCached,
		&run.Counts.ProgrammesTotal, &run.Counts.ProgrammesEvents,
		&run.Counts.ProgrammesPregame, &run.Counts.ProgrammesPostgame,
		&run.Counts.ProgrammesIdle,
		&run.ErrorSummary, &metrics)
	if err != nil {
		return ProcessingRun{}, err
	}
	run.GroupID = parseNullInt64(groupID)
	run.StartedAt = parseTime(started)
	run.CompletedAt = parseNullTime(completed)
	run.ExtraMetrics = []byte(metrics)
	return run, nil
}
