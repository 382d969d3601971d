// SPDX-License-Identifier: MIT

// Package host is the client for the IPTV orchestration host: stream
// inventory, channel CRUD and EPG source binding, JSON over HTTP(S).
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	applog "github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
)

// Stream is one host stream as listed by the inventory endpoint.
type Stream struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is one host channel.
type Channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
}

// Options configure the client. Token wins over username/password when
// both are set.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Token    string
	Timeout  time.Duration
}

// Client talks to the orchestration host. 2xx is success; a 404 on delete
// is treated as success so deletions are idempotent.
type Client struct {
	base string
	http *http.Client
	auth func(*http.Request)
}

// New builds a host client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	auth := func(*http.Request) {}
	switch {
	case opts.Token != "":
		token := opts.Token
		auth = func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
	case opts.Username != "":
		user, pass := opts.Username, opts.Password
		auth = func(r *http.Request) { r.SetBasicAuth(user, pass) }
	}

	return &Client{
		base: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{Timeout: opts.Timeout},
		auth: auth,
	}
}

// ListStreams returns the streams of one host group.
func (c *Client) ListStreams(ctx context.Context, groupID string) ([]Stream, error) {
	var out struct {
		Streams []Stream `json:"streams"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/groups/"+groupID+"/streams", nil, &out); err != nil {
		return nil, err
	}
	return out.Streams, nil
}

// ListChannels returns all channels on the host.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var out struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/channels", nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// CreateChannel creates a channel bound to the given streams and returns
// the host's channel id.
func (c *Client) CreateChannel(ctx context.Context, name string, number int, streamIDs []string) (string, error) {
	body := map[string]any{
		"name":       name,
		"number":     number,
		"stream_ids": streamIDs,
	}
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/channels", body, &out)
	metrics.RecordHostOp("create_channel", err)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("host: create channel %q returned no id", name)
	}
	return out.ID, nil
}

// DeleteChannel removes a channel. A 404 means the channel is already
// gone and counts as success.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	err := c.do(ctx, http.MethodDelete, "/api/channels/"+channelID, nil, nil)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			logger := applog.WithComponentFromContext(ctx, "host")
			logger.Debug().
				Str("event", "host.delete_already_gone").
				Str("channel_id", channelID).
				Msg("channel already absent")
			err = nil
		}
	}
	metrics.RecordHostOp("delete_channel", err)
	return err
}

// SetChannelEPG binds a channel to an EPG source.
func (c *Client) SetChannelEPG(ctx context.Context, channelID, epgSourceID string) error {
	body := map[string]any{"epg_source_id": epgSourceID}
	err := c.do(ctx, http.MethodPut, "/api/channels/"+channelID+"/epg", body, nil)
	metrics.RecordHostOp("set_channel_epg", err)
	return err
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("host: status %d for %s", e.code, e.url)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.auth(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("host: %s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &statusError{code: res.StatusCode, url: url}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 20<<20)).Decode(out); err != nil {
		return fmt.Errorf("host: decode %s: %w", path, err)
	}
	return nil
}
