// SPDX-License-Identifier: MIT

// Package espn fetches sports data from the ESPN site API and normalizes it
// into the canonical model.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	applog "github.com/teamarr/teamarr/internal/log"
)

const baseURL = "https://site.api.espn.com/apis/site/v2/sports"

// sportMapping converts canonical league codes into ESPN (sport, league)
// path pairs. Soccer competitions pass through via their "xxxx.N" codes.
var sportMapping = map[string][2]string{
	"nfl":                       {"football", "nfl"},
	"nba":                       {"basketball", "nba"},
	"mlb":                       {"baseball", "mlb"},
	"nhl":                       {"hockey", "nhl"},
	"wnba":                      {"basketball", "wnba"},
	"mls":                       {"soccer", "usa.1"},
	"mens-college-basketball":   {"basketball", "mens-college-basketball"},
	"womens-college-basketball": {"basketball", "womens-college-basketball"},
	"college-football":          {"football", "college-football"},
	"mens-college-hockey":       {"hockey", "mens-college-hockey"},
	"womens-college-hockey":     {"hockey", "womens-college-hockey"},
}

// collegeScoreboardGroups maps college leagues to their scoreboard "groups"
// query parameter. mens-college-hockey deliberately has no entry.
var collegeScoreboardGroups = map[string]string{
	"mens-college-basketball":   "50",
	"womens-college-basketball": "50",
	"college-football":          "80",
}

// ClientOptions configure the low-level HTTP client.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	// RequestsPerSecond throttles outbound calls; zero disables the limiter.
	RequestsPerSecond float64
}

// Client is the low-level ESPN API client. A single pooled transport is
// shared by all requests for the lifetime of the process.
type Client struct {
	base    string
	http    *http.Client
	retries int
	delay   time.Duration
	limiter *rate.Limiter
}

// NewClient builds a client with sane defaults: 10s timeout, 3 attempts,
// 1s base back-off, pooled connections (100 total, 10 keep-alive).
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = baseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		retries: opts.RetryCount,
		delay:   opts.RetryDelay,
		limiter: limiter,
	}
}

// sportLeague resolves a canonical league code into ESPN path segments.
func sportLeague(league string) (string, string) {
	if m, ok := sportMapping[league]; ok {
		return m[0], m[1]
	}
	if strings.Contains(league, ".") {
		return "soccer", league
	}
	return "football", league
}

// getJSON performs a GET with retry and decodes the response body into v.
// Transport errors and 5xx responses retry with linear-exponential back-off
// (base delay multiplied by the attempt number); 4xx responses do not.
func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values, v any) error {
	logger := applog.WithComponentFromContext(ctx, "espn")

	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err, permanent := c.attempt(ctx, rawURL, v)
		if err == nil {
			return nil
		}
		lastErr = err
		if permanent || attempt == c.retries {
			break
		}

		logger.Warn().
			Err(err).
			Str("event", "espn.retry").
			Str("url", rawURL).
			Int("attempt", attempt).
			Msg("retrying after error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay * time.Duration(attempt)):
		}
	}
	return lastErr
}

// attempt performs a single GET. The second return value reports whether the
// failure is permanent (4xx, malformed body) and must not be retried.
func (c *Client) attempt(ctx context.Context, rawURL string, v any) (error, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err, true
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err, false
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode >= 500:
		return fmt.Errorf("espn: status %d for %s", res.StatusCode, rawURL), false
	case res.StatusCode >= 400:
		return fmt.Errorf("espn: status %d for %s", res.StatusCode, rawURL), true
	}

	body := io.LimitReader(res.Body, 20<<20)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("espn: decode %s: %w", rawURL, err), true
	}
	return nil, false
}

// Scoreboard fetches the league scoreboard for a YYYYMMDD date.
func (c *Client) Scoreboard(ctx context.Context, league, dateYYYYMMDD string) (*scoreboardResponse, error) {
	sport, espnLeague := sportLeague(league)
	u := fmt.Sprintf("%s/%s/%s/scoreboard", c.base, sport, espnLeague)

	params := url.Values{"dates": {dateYYYYMMDD}}
	if groups, ok := collegeScoreboardGroups[league]; ok {
		params.Set("groups", groups)
	}

	var out scoreboardResponse
	if err := c.getJSON(ctx, u, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TeamSchedule fetches the schedule for a team.
func (c *Client) TeamSchedule(ctx context.Context, league, teamID string) (*scoreboardResponse, error) {
	sport, espnLeague := sportLeague(league)
	u := fmt.Sprintf("%s/%s/%s/teams/%s/schedule", c.base, sport, espnLeague, url.PathEscape(teamID))

	var out scoreboardResponse
	if err := c.getJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Team fetches team information.
func (c *Client) Team(ctx context.Context, league, teamID string) (*teamResponse, error) {
	sport, espnLeague := sportLeague(league)
	u := fmt.Sprintf("%s/%s/%s/teams/%s", c.base, sport, espnLeague, url.PathEscape(teamID))

	var out teamResponse
	if err := c.getJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary fetches a single event by ID via the summary endpoint.
func (c *Client) Summary(ctx context.Context, league, eventID string) (*summaryResponse, error) {
	sport, espnLeague := sportLeague(league)
	u := fmt.Sprintf("%s/%s/%s/summary", c.base, sport, espnLeague)

	var out summaryResponse
	if err := c.getJSON(ctx, u, url.Values{"event": {eventID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
