// SPDX-License-Identifier: MIT

package api

import (
	"encoding/xml"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/engine"
	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/store"
)

// dateLayout is the wire format for target dates.
const dateLayout = "2006-01-02"

type generateTeamsRequest struct {
	TeamIDs   []int64 `json:"team_ids"`
	DaysAhead int     `json:"days_ahead"`
}

type runResponse struct {
	RunID      int64  `json:"run_id"`
	Status     string `json:"status"`
	Programmes int    `json:"programmes"`
	Matched    int    `json:"matched"`
	Unmatched  int    `json:"unmatched"`
	Cached     int    `json:"cached"`
}

func (s *Server) handleGenerateTeams(w http.ResponseWriter, r *http.Request) {
	var req generateTeamsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := s.engine.RunTeamEPG(r.Context(), engine.TeamRunOptions{
		TeamIDs:   req.TeamIDs,
		DaysAhead: req.DaysAhead,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (s *Server) handleTeamsXMLTV(w http.ResponseWriter, r *http.Request) {
	opts := engine.TeamRunOptions{
		TeamIDs:   parseInt64List(r.URL.Query().Get("team_ids")),
		DaysAhead: atoiDefault(r.URL.Query().Get("days_ahead"), 0),
	}
	if _, err := s.engine.RunTeamEPG(r.Context(), opts); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := os.ReadFile(s.consolidator.TeamsPath())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "team guide unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(data)
}

type generateEventsRequest struct {
	Leagues        []string `json:"leagues"`
	TargetDate     string   `json:"target_date"`
	ChannelPrefix  string   `json:"channel_prefix"`
	PregameMinutes int      `json:"pregame_minutes"`
	DurationHours  int      `json:"duration_hours"`
	// GroupID runs the stored-group pipeline instead of an ad-hoc build.
	// Zero with no leagues runs every enabled group.
	GroupID int64 `json:"group_id"`
}

func (s *Server) handleGenerateEvents(w http.ResponseWriter, r *http.Request) {
	var req generateEventsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	date, ok := s.parseDate(req.TargetDate)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
		return
	}

	if req.GroupID != 0 {
		run, err := s.engine.RunEventGroup(r.Context(), req.GroupID, date)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toRunResponse(run))
		return
	}

	if len(req.Leagues) == 0 {
		if err := s.engine.RunAllEventGroups(r.Context(), date); err != nil {
			writeError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
		return
	}

	_, run, err := s.engine.BuildEventGuide(r.Context(), engine.AdHocOptions{
		Leagues:        req.Leagues,
		Date:           date,
		ChannelPrefix:  req.ChannelPrefix,
		PregameMinutes: req.PregameMinutes,
		DurationHours:  req.DurationHours,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (s *Server) handleEventsXMLTV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := s.parseDate(q.Get("target_date"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
		return
	}
	leagues := splitCSV(q.Get("leagues"))
	if len(leagues) == 0 {
		// No leagues requested: serve the consolidated event guide.
		data, err := os.ReadFile(s.consolidator.EventsPath())
		if err != nil {
			writeError(w, r, http.StatusNotFound, "event guide not generated yet")
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write(data)
		return
	}

	tv, _, err := s.engine.BuildEventGuide(r.Context(), engine.AdHocOptions{
		Leagues:        leagues,
		Date:           date,
		ChannelPrefix:  q.Get("channel_prefix"),
		PregameMinutes: atoiDefault(q.Get("pregame_minutes"), 0),
		DurationHours:  atoiDefault(q.Get("duration_hours"), 0),
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := xml.MarshalIndent(tv, "", "  ")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "guide encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(data)
}

type matchEventRequest struct {
	League     string `json:"league"`
	TargetDate string `json:"target_date"`
	Team1ID    string `json:"team1_id"`
	Team2ID    string `json:"team2_id"`
	Team1Name  string `json:"team1_name"`
	Team2Name  string `json:"team2_name"`
}

func (s *Server) handleMatchEvent(w http.ResponseWriter, r *http.Request) {
	var req matchEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.League == "" {
		writeError(w, r, http.StatusBadRequest, "league is required")
		return
	}
	date, ok := s.parseDate(req.TargetDate)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
		return
	}

	ev := s.engine.FindEvent(r.Context(), engine.MatchQuery{
		League:    req.League,
		Date:      date,
		Team1ID:   req.Team1ID,
		Team2ID:   req.Team2ID,
		Team1Name: req.Team1Name,
		Team2Name: req.Team2Name,
	})
	if ev == nil {
		writeError(w, r, http.StatusNotFound, "no event matched")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// parseDate resolves a YYYY-MM-DD string in the configured timezone. Empty
// means today; a zero time plus ok=true signals "use the engine default".
func (s *Server) parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation(dateLayout, raw, s.timezone)
	if err != nil {
		logger := applog.WithComponent("api")
		logger.Debug().
			Str("event", "api.bad_date").
			Str("value", raw).
			Msg("unparseable target date")
		return time.Time{}, false
	}
	return t, true
}

func toRunResponse(run *store.ProcessingRun) runResponse {
	return runResponse{
		RunID:      run.ID,
		Status:     run.Status,
		Programmes: run.Counts.ProgrammesTotal,
		Matched:    run.Counts.StreamsMatched,
		Unmatched:  run.Counts.StreamsUnmatched,
		Cached:     run.Counts.StreamsCached,
	}
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseInt64List(raw string) []int64 {
	var out []int64
	for _, p := range splitCSV(raw) {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
