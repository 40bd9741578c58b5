// Package fplapi reads the public fantasy-league endpoints: bootstrap-static,
// fixtures and element-summary. Responses are cached in memory.
package fplapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fplpilot/internal/logger"
	"fplpilot/internal/pkg/text"
)

const (
	DefaultBaseURL   = "https://fantasy.premierleague.com/api"
	defaultUserAgent = "fplpilot/1.0"
)

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	UserAgent    string
	BootstrapTTL time.Duration
	FixturesTTL  time.Duration
	SummaryTTL   time.Duration
}

type Client struct {
	cfg   Config
	http  *http.Client
	cache *ttlCache
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: newTTLCache(),
	}
}

// Invalidate drops every cached response.
func (c *Client) Invalidate() { c.cache.purge() }

func (c *Client) fetch(ctx context.Context, path string, ttl time.Duration) ([]byte, error) {
	return c.cache.get(ctx, path, ttl, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("GET %s: read body: %w", path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("GET %s failed: %d body=%s", path, resp.StatusCode, text.Truncate(string(body), 200))
		}
		logger.Debugf("[fpl] GET %s %d bytes in %s", path, len(body), time.Since(start).Round(time.Millisecond))
		return body, nil
	})
}
