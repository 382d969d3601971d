// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"path/filepath"

	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/store"
)

func (s *Server) handleMigrationStatus(w http.ResponseWriter, r *http.Request) {
	legacy, err := store.IsV1(s.dbPath)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"legacy_detected": legacy,
		"backup_exists":   store.V1BackupExists(s.dbPath),
		"backup_path":     store.V1BackupPath(s.dbPath),
	})
}

func (s *Server) handleMigrationArchive(w http.ResponseWriter, r *http.Request) {
	archived, err := store.ArchiveV1(s.dbPath)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if archived {
		logger := applog.WithComponentFromContext(r.Context(), "api")
		logger.Info().
			Str("event", "api.v1_archived").
			Str("backup", store.V1BackupPath(s.dbPath)).
			Msg("legacy database archived on request")
	}
	writeJSON(w, http.StatusOK, map[string]any{"archived": archived})
}

func (s *Server) handleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	backup := store.V1BackupPath(s.dbPath)
	if !store.V1BackupExists(s.dbPath) {
		writeError(w, r, http.StatusNotFound, "no legacy backup present")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(backup)+`"`)
	http.ServeFile(w, r, backup)
}
