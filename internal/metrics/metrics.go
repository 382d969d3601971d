// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for generation runs, the
// stream-match cache and host channel operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamarr_run_duration_seconds",
		Help:    "Duration of generation runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2.0, 10), // 0.1s .. ~51.2s
	}, []string{"run_type"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_runs_total",
		Help: "Number of generation runs by type and final status",
	}, []string{"run_type", "status"})

	streamsMatched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_streams_matched",
		Help: "Streams matched during the last run of each type",
	}, []string{"run_type"})

	programmesGenerated = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_programmes_generated",
		Help: "Programmes written during the last run, by kind",
	}, []string{"kind"})

	lastRunTime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teamarr_last_run_timestamp",
		Help: "Timestamp of the last completed run (Unix timestamp)",
	}, []string{"run_type"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_cache_lookups_total",
		Help: "Stream-match cache lookups by outcome",
	}, []string{"outcome"})

	hostOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamarr_host_operations_total",
		Help: "Host channel operations by kind and result",
	}, []string{"op", "result"})

	managedChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamarr_managed_channels",
		Help: "Currently active managed channels",
	})
)

// Cache lookup outcome labels.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheRefresh  = "refreshed"
	CacheFallback = "fallback"
	CacheEvicted  = "evicted"
)

// RecordRun observes one finished generation run.
func RecordRun(runType, status string, duration time.Duration, matched int) {
	runDuration.WithLabelValues(runType).Observe(duration.Seconds())
	runsTotal.WithLabelValues(runType, status).Inc()
	streamsMatched.WithLabelValues(runType).Set(float64(matched))
	lastRunTime.WithLabelValues(runType).Set(float64(time.Now().Unix()))
}

// RecordProgrammes sets the per-kind programme gauge after a run.
func RecordProgrammes(kind string, n int) {
	programmesGenerated.WithLabelValues(kind).Set(float64(n))
}

// RecordCacheLookup counts one cache outcome.
func RecordCacheLookup(outcome string) {
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordHostOp counts one host channel operation.
func RecordHostOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	hostOpsTotal.WithLabelValues(op, result).Inc()
}

// SetManagedChannels updates the active channel gauge.
func SetManagedChannels(n int) {
	managedChannels.Set(float64(n))
}
