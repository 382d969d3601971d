// SPDX-License-Identifier: MIT

// Package store provides SQLite persistence for configuration, the
// stream-match cache, managed channels and the processing-run ledger.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	applog "github.com/teamarr/teamarr/internal/log"
)

// Store wraps the SQLite database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at path and runs migrations.
// busy_timeout avoids "database locked" errors under concurrent writers.
// A legacy V1 database file is moved aside to a .v1.bak backup first; its
// schema is incompatible and is never migrated in place.
func New(path string) (*Store, error) {
	archived, err := ArchiveV1(path)
	if err != nil {
		return nil, fmt.Errorf("check legacy database: %w", err)
	}
	if archived {
		logger := applog.WithComponent("store")
		logger.Warn().
			Str("event", "store.v1_archived").
			Str("backup", V1BackupPath(path)).
			Msg("legacy database moved aside, starting fresh")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Generation returns the current generation counter without advancing it.
func (s *Store) Generation(ctx context.Context) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `SELECT generation FROM settings WHERE id = 1`).Scan(&gen)
	if err != nil {
		return 0, err
	}
	return gen, nil
}

// nullTime converts an optional time into a nullable RFC 3339 string.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseNullTime converts a nullable RFC 3339 string back.
func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseNullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
