// SPDX-License-Identifier: MIT

// Package api is the HTTP admin surface: guide generation triggers, XMLTV
// delivery, run statistics and legacy-database migration helpers.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamarr/teamarr/internal/engine"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/matchcache"
	"github.com/teamarr/teamarr/internal/stats"
	"github.com/teamarr/teamarr/internal/store"
)

// mutationRateWindow is the sliding window for the mutating-endpoint rate
// limit.
const mutationRateWindow = time.Minute

// Server holds the handler dependencies.
type Server struct {
	store        *store.Store
	engine       *engine.Engine
	stats        *stats.Service
	cache        *matchcache.Cache
	consolidator *epg.Consolidator

	dbPath    string
	timezone  *time.Location
	rateLimit int
	startTime time.Time
}

// Options bundle the server's collaborators.
type Options struct {
	Store        *store.Store
	Engine       *engine.Engine
	Stats        *stats.Service
	Cache        *matchcache.Cache
	Consolidator *epg.Consolidator
	DBPath       string
	Timezone     *time.Location
	// RateLimit is requests per minute per client on mutating endpoints;
	// zero disables limiting.
	RateLimit int
}

// New builds the API server.
func New(opts Options) *Server {
	tz := opts.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return &Server{
		store:        opts.Store,
		engine:       opts.Engine,
		stats:        opts.Stats,
		cache:        opts.Cache,
		consolidator: opts.Consolidator,
		dbPath:       opts.DBPath,
		timezone:     tz,
		rateLimit:    opts.RateLimit,
		startTime:    time.Now(),
	}
}

// Routes assembles the router with the canonical middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Mutating endpoints share one per-IP sliding-window limit.
	limiter := func(next http.Handler) http.Handler { return next }
	if s.rateLimit > 0 {
		limiter = httprate.Limit(
			s.rateLimit,
			mutationRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/epg", func(r chi.Router) {
			r.With(limiter).Post("/generate", s.handleGenerateTeams)
			r.Get("/xmltv", s.handleTeamsXMLTV)

			r.With(limiter).Post("/events/generate", s.handleGenerateEvents)
			r.Get("/events/xmltv", s.handleEventsXMLTV)
			r.With(limiter).Post("/events/match", s.handleMatchEvent)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/", s.handleStats)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/history", s.handleHistory)
			r.Get("/runs", s.handleRuns)
			r.Get("/runs/{id}", s.handleRun)
			r.With(limiter).Delete("/runs/cleanup", s.handleRunsCleanup)
		})

		r.Route("/migration", func(r chi.Router) {
			r.Get("/status", s.handleMigrationStatus)
			r.With(limiter).Post("/archive", s.handleMigrationArchive)
			r.Get("/download-backup", s.handleDownloadBackup)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}
