// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	applog "github.com/teamarr/teamarr/internal/log"
)

// parseString reads an environment variable or returns the fallback. The
// chosen source is logged; values of sensitive keys are never logged.
func parseString(key, fallback string) string {
	logger := applog.WithComponent("config")
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	lower := strings.ToLower(key)
	if strings.Contains(lower, "token") || strings.Contains(lower, "password") {
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	} else {
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return value
}

// parseInt reads an integer environment variable, falling back on missing
// or malformed values.
func parseInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger := applog.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", fallback).
			Msg("not an integer, using default")
		return fallback
	}
	return i
}

// parseDuration reads a Go duration environment variable.
func parseDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger := applog.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", fallback).
			Msg("not a duration, using default")
		return fallback
	}
	return d
}
