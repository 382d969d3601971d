// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/teamarr/teamarr/internal/store"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	d, err := s.stats.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"teams":           d.Teams.Total,
		"teams_enabled":   d.Teams.Enabled,
		"event_groups":    d.EventGroups.Total,
		"groups_enabled":  d.EventGroups.Enabled,
		"active_channels": d.Channels.Active,
		"cache_entries":   d.Channels.CacheEntries,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.stats.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := atoiDefault(r.URL.Query().Get("days"), 7)
	history, err := s.stats.History(r.Context(), days)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "history": history})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		RunType: q.Get("run_type"),
		Status:  q.Get("status"),
		Limit:   atoiDefault(q.Get("limit"), 0),
	}
	if raw := q.Get("group_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "group_id must be an integer")
			return
		}
		filter.GroupID = &id
	}

	runs, err := s.stats.Runs(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "run id must be an integer")
		return
	}
	detail, err := s.stats.Run(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if detail == nil {
		writeError(w, r, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleRunsCleanup(w http.ResponseWriter, r *http.Request) {
	days := atoiDefault(r.URL.Query().Get("days"), 0)
	removed, err := s.stats.Cleanup(r.Context(), days)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
