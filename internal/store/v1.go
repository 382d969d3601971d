// SPDX-License-Identifier: MIT

package store

import (
	"database/sql"
	"fmt"
	"os"
)

// V1BackupPath returns where a legacy database file is parked.
func V1BackupPath(path string) string {
	return path + ".teamarr.v1.bak"
}

// IsV1 reports whether the file at path holds the legacy V1 schema,
// identified by a schedule_cache table with no leagues table alongside it.
// A missing file is not legacy.
func IsV1(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return false, err
	}
	defer func() { _ = db.Close() }()

	hasScheduleCache, err := tableExists(db, "schedule_cache")
	if err != nil {
		return false, err
	}
	if !hasScheduleCache {
		return false, nil
	}
	hasLeagues, err := tableExists(db, "leagues")
	if err != nil {
		return false, err
	}
	return !hasLeagues, nil
}

// ArchiveV1 moves a legacy database aside so a fresh one can be created.
// It reports whether an archive happened. Re-running against a V2 database
// is a no-op.
func ArchiveV1(path string) (bool, error) {
	legacy, err := IsV1(path)
	if err != nil {
		return false, err
	}
	if !legacy {
		return false, nil
	}

	if err := os.Rename(path, V1BackupPath(path)); err != nil {
		return false, fmt.Errorf("archive legacy database: %w", err)
	}
	// WAL sidecars belong with the main file; best-effort.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Rename(path+suffix, V1BackupPath(path)+suffix)
	}
	return true, nil
}

// V1BackupExists reports whether an archived legacy database is present.
func V1BackupExists(path string) bool {
	_, err := os.Stat(V1BackupPath(path))
	return err == nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
