// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ErrNoFreeNumber is returned when channel-number allocation cannot find a
// usable number for a group.
var ErrNoFreeNumber = errors.New("store: no free channel number")

// allocationAttempts bounds retries when concurrent inserts race for the
// same number.
const allocationAttempts = 5

// CreateChannel persists a managed channel, allocating the lowest unused
// channel number >= channelStart among the group's active channels. The
// scan and insert happen in one transaction; a unique-index conflict from a
// concurrent writer retries with the next number.
func (s *Store) CreateChannel(ctx context.Context, mc ManagedChannel, channelStart int) (ManagedChannel, error) {
	for attempt := 0; attempt < allocationAttempts; attempt++ {
		created, err := s.tryCreateChannel(ctx, mc, channelStart)
		if err == nil {
			return created, nil
		}
		if !isUniqueViolation(err) {
			return ManagedChannel{}, err
		}
	}
	return ManagedChannel{}, ErrNoFreeNumber
}

func (s *Store) tryCreateChannel(ctx context.Context, mc ManagedChannel, channelStart int) (ManagedChannel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ManagedChannel{}, err
	}
	defer func() { _ = tx.Rollback() }()

	number := channelStart
	rows, err := tx.QueryContext(ctx, `
		SELECT channel_number FROM managed_channels
		WHERE group_id = ? AND deleted_at IS NULL AND channel_number >= ?
		ORDER BY channel_number`, mc.GroupID, channelStart)
	if err != nil {
		return ManagedChannel{}, err
	}
	for rows.Next() {
		var used int
		if err := rows.Scan(&used); err != nil {
			_ = rows.Close()
			return ManagedChannel{}, err
		}
		if used == number {
			number++
			continue
		}
		if used > number {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return ManagedChannel{}, err
	}
	_ = rows.Close()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO managed_channels (group_id, host_channel_id, host_stream_id,
			channel_number, event_id, league, channel_name, event_start, scheduled_delete_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		mc.GroupID, mc.HostChannelID, mc.HostStreamID, number,
		mc.EventID, mc.League, mc.ChannelName,
		mc.EventStart.UTC().Format(time.RFC3339), nullTime(mc.ScheduledDeleteAt),
	).Scan(&id)
	if err != nil {
		return ManagedChannel{}, err
	}
	if err := tx.Commit(); err != nil {
		return ManagedChannel{}, err
	}

	mc.ID = id
	mc.ChannelNumber = number
	return mc, nil
}

// ActiveChannel returns the group's active managed channel for an event,
// or nil when none exists.
func (s *Store) ActiveChannel(ctx context.Context, groupID int64, eventID string) (*ManagedChannel, error) {
	row := s.db.QueryRowContext(ctx, channelSelect+`
		WHERE group_id = ? AND event_id = ? AND deleted_at IS NULL`, groupID, eventID)
	mc, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

// ActiveChannels returns all active managed channels for a group ordered by
// channel number.
func (s *Store) ActiveChannels(ctx context.Context, groupID int64) ([]ManagedChannel, error) {
	rows, err := s.db.QueryContext(ctx, channelSelect+`
		WHERE group_id = ? AND deleted_at IS NULL
		ORDER BY channel_number`, groupID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectChannels(rows)
}

// ChannelsDue returns active channels whose scheduled_delete_at has passed.
func (s *Store) ChannelsDue(ctx context.Context, now time.Time) ([]ManagedChannel, error) {
	rows, err := s.db.QueryContext(ctx, channelSelect+`
		WHERE deleted_at IS NULL
		  AND scheduled_delete_at IS NOT NULL
		  AND scheduled_delete_at <= ?
		ORDER BY scheduled_delete_at`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectChannels(rows)
}

// SoftDeleteChannel marks a channel deleted without removing the row.
func (s *Store) SoftDeleteChannel(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE managed_channels SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		at.UTC().Format(time.RFC3339), id)
	return err
}

// PurgeDeletedChannels hard-deletes soft-deleted rows older than the cutoff
// and returns the number removed.
func (s *Store) PurgeDeletedChannels(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM managed_channels
		WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActiveChannels returns the number of active managed channels across
// all groups.
func (s *Store) CountActiveChannels(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM managed_channels WHERE deleted_at IS NULL`).Scan(&n)
	return n, err
}

const channelSelect = `
	SELECT id, group_id, host_channel_id, host_stream_id, channel_number,
		event_id, league, channel_name, event_start,
		scheduled_delete_at, deleted_at, created_at, updated_at
	FROM managed_channels`

func scanChannel(r rowScanner) (ManagedChannel, error) {
	var (
		mc               ManagedChannel
		eventStart       string
		schedDelete      sql.NullString
		deletedAt        sql.NullString
		created, updated string
	)
	err := r.Scan(&mc.ID, &mc.GroupID, &mc.HostChannelID, &mc.HostStreamID,
		&mc.ChannelNumber, &mc.EventID, &mc.League, &mc.ChannelName, &eventStart,
		&schedDelete, &deletedAt, &created, &updated)
	if err != nil {
		return ManagedChannel{}, err
	}
	mc.EventStart = parseTime(eventStart)
	mc.ScheduledDeleteAt = parseNullTime(schedDelete)
	mc.DeletedAt = parseNullTime(deletedAt)
	mc.CreatedAt = parseTime(created)
	mc.UpdatedAt = parseTime(updated)
	return mc, nil
}

func collectChannels(rows *sql.Rows) ([]ManagedChannel, error) {
	var out []ManagedChannel
	for rows.Next() {
		mc, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// isUniqueViolation matches the driver's constraint error without binding
// to driver-specific error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint violation")
}
