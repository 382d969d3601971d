// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teamarr/teamarr/internal/api"
	"github.com/teamarr/teamarr/internal/config"
	"github.com/teamarr/teamarr/internal/engine"
	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/host"
	"github.com/teamarr/teamarr/internal/lifecycle"
	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/matchcache"
	"github.com/teamarr/teamarr/internal/provider/espn"
	"github.com/teamarr/teamarr/internal/sportsdata"
	"github.com/teamarr/teamarr/internal/stats"
	"github.com/teamarr/teamarr/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

// maskURL strips user info from a URL for safe logging.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	return u.String()
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("teamarr %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("TEAMARR_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger := applog.WithComponent("main")
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	applog.Configure(applog.Config{
		Level:   cfg.LogLevel,
		Service: "teamarr",
	})
	logger := applog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("addr", cfg.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Str("timezone", cfg.Timezone).
		Msg("starting teamarr")

	if cfg.Host.URL != "" {
		logger.Info().Msgf("→ Host: %s (auth: %v)", maskURL(cfg.Host.URL), cfg.Host.Token != "" || cfg.Host.Username != "")
	} else {
		logger.Warn().Msg("→ Host: NOT configured. Event group runs will fail until host.url is set.")
	}
	logger.Info().Msgf("→ Guide: %s", cfg.PublishedName)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.data_dir_failed").
			Str("dir", cfg.DataDir).
			Msg("cannot create data directory")
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.store_failed").
			Str("db", cfg.DBPath).
			Msg("cannot open database")
	}
	defer func() { _ = st.Close() }()

	if archived, err := store.ArchiveV1(cfg.DBPath); err != nil {
		logger.Warn().Err(err).Msg("legacy database check failed")
	} else if archived {
		logger.Info().
			Str("event", "startup.v1_archived").
			Str("backup", store.V1BackupPath(cfg.DBPath)).
			Msg("legacy database archived, starting with a fresh schema")
	}

	provider := espn.NewProvider(nil)
	sports := sportsdata.New(provider)
	cache := matchcache.New(st, provider)
	hostClient := host.New(host.Options{
		BaseURL:  cfg.Host.URL,
		Token:    cfg.Host.Token,
		Username: cfg.Host.Username,
		Password: cfg.Host.Password,
	})
	if cfg.Host.URL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if channels, err := hostClient.ListChannels(pingCtx); err != nil {
			logger.Warn().
				Err(err).
				Str("event", "startup.host_unreachable").
				Msg("host not reachable yet, group runs will retry")
		} else {
			logger.Info().
				Str("event", "startup.host_connected").
				Int("channels", len(channels)).
				Msg("host reachable")
		}
		cancel()
	}

	manager := lifecycle.NewManager(st, hostClient)
	consolidator := epg.NewConsolidator(cfg.DataDir, cfg.PublishedName)

	eng := engine.New(engine.Options{
		Store:        st,
		Sports:       sports,
		Host:         hostClient,
		Cache:        cache,
		Lifecycle:    manager,
		Consolidator: consolidator,
		Timezone:     cfg.Location(),
	})

	server := api.New(api.Options{
		Store:        st,
		Engine:       eng,
		Stats:        stats.New(st),
		Cache:        cache,
		Consolidator: consolidator,
		DBPath:       cfg.DBPath,
		Timezone:     cfg.Location(),
		RateLimit:    cfg.RateLimit,
	})

	// Channel maintenance: scheduled deletions, retention, stale cache rows.
	scheduler := lifecycle.NewScheduler(manager, cache, st, cfg.SchedulerInterval)
	go scheduler.Run(ctx)

	// Periodic guide refresh across all enabled groups.
	go refreshLoop(ctx, eng, cfg.SchedulerInterval)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("event", "http.listening").
			Str("addr", cfg.ListenAddr).
			Msg("admin API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Str("event", "shutdown.signal").Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().
				Err(err).
				Str("event", "http.failed").
				Msg("admin API server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Str("event", "shutdown.complete").Msg("server exiting")
}

// refreshLoop reruns every enabled event group on the scheduler interval.
// The first run fires immediately so a restart does not leave a stale guide.
func refreshLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	logger := applog.WithComponent("refresh")

	run := func() {
		if err := eng.RunAllEventGroups(ctx, time.Time{}); err != nil {
			logger.Error().
				Err(err).
				Str("event", "refresh.failed").
				Msg("event group refresh failed")
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
