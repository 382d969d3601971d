// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, filepath.Join(DefaultDataDir, "teamarr.db"), cfg.DBPath)
	assert.Equal(t, DefaultPublishedName, cfg.PublishedName)
	assert.Equal(t, DefaultSchedulerInterval, cfg.SchedulerInterval)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamarr.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
data_dir: /var/lib/teamarr
timezone: America/New_York
scheduler_interval: 30m
host:
  url: http://iptv.local:8089
  token: sekrit
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/var/lib/teamarr", cfg.DataDir)
	assert.Equal(t, "/var/lib/teamarr/teamarr.db", cfg.DBPath)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, "http://iptv.local:8089", cfg.Host.URL)
	assert.Equal(t, "sekrit", cfg.Host.Token)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamarr.yml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9000\"\n"), 0o600))

	t.Setenv("TEAMARR_LISTEN_ADDR", ":9100")
	t.Setenv("TEAMARR_RATE_LIMIT", "120")
	t.Setenv("TEAMARR_SCHEDULER_INTERVAL", "5m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, 5*time.Minute, cfg.SchedulerInterval)
}

func TestMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("TEAMARR_RATE_LIMIT", "lots")
	t.Setenv("TEAMARR_SCHEDULER_INTERVAL", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, DefaultSchedulerInterval, cfg.SchedulerInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }},
		{"interval too small", func(c *Config) { c.SchedulerInterval = time.Second }},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad host url", func(c *Config) { c.Host.URL = "ftp://host" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
