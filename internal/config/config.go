// SPDX-License-Identifier: MIT

// Package config loads and validates the application configuration from an
// optional YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListenAddr        = ":8017"
	DefaultDataDir           = "./data"
	DefaultPublishedName     = "teamarr.xml"
	DefaultLogLevel          = "info"
	DefaultTimezone          = "UTC"
	DefaultSchedulerInterval = 15 * time.Minute
	DefaultRateLimit         = 60 // requests per minute per client
)

// Host is the orchestration host connection.
type Host struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the resolved application configuration.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	DataDir       string `yaml:"data_dir"`
	DBPath        string `yaml:"db_path"`
	PublishedName string `yaml:"published_name"`
	LogLevel      string `yaml:"log_level"`
	Timezone      string `yaml:"timezone"`
	RateLimit     int    `yaml:"rate_limit"`

	SchedulerInterval time.Duration `yaml:"scheduler_interval"`

	Host Host `yaml:"host"`
}

// Load resolves the configuration: defaults, then the YAML file at path
// (skipped when empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:        DefaultListenAddr,
		DataDir:           DefaultDataDir,
		PublishedName:     DefaultPublishedName,
		LogLevel:          DefaultLogLevel,
		Timezone:          DefaultTimezone,
		RateLimit:         DefaultRateLimit,
		SchedulerInterval: DefaultSchedulerInterval,
	}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "teamarr.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = parseString("TEAMARR_LISTEN_ADDR", c.ListenAddr)
	c.DataDir = parseString("TEAMARR_DATA_DIR", c.DataDir)
	c.DBPath = parseString("TEAMARR_DB_PATH", c.DBPath)
	c.PublishedName = parseString("TEAMARR_PUBLISHED_NAME", c.PublishedName)
	c.LogLevel = parseString("TEAMARR_LOG_LEVEL", c.LogLevel)
	c.Timezone = parseString("TEAMARR_TIMEZONE", c.Timezone)
	c.RateLimit = parseInt("TEAMARR_RATE_LIMIT", c.RateLimit)
	c.SchedulerInterval = parseDuration("TEAMARR_SCHEDULER_INTERVAL", c.SchedulerInterval)

	c.Host.URL = parseString("TEAMARR_HOST_URL", c.Host.URL)
	c.Host.Token = parseString("TEAMARR_HOST_TOKEN", c.Host.Token)
	c.Host.Username = parseString("TEAMARR_HOST_USERNAME", c.Host.Username)
	c.Host.Password = parseString("TEAMARR_HOST_PASSWORD", c.Host.Password)
}

// Validate checks the resolved configuration for operator mistakes.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative")
	}
	if c.SchedulerInterval < time.Minute {
		return fmt.Errorf("config: scheduler_interval %s is below the 1m minimum", c.SchedulerInterval)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: unknown timezone %q", c.Timezone)
	}
	if c.Host.URL != "" {
		u, err := url.Parse(c.Host.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: host.url %q is not an http(s) URL", c.Host.URL)
		}
	}
	return nil
}

// Location returns the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
