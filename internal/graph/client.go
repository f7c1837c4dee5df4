// Package graph is a minimal Facebook Graph API client covering the page post
// endpoints the dashboard needs.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://graph.facebook.com"
	defaultVersion  = "v19.0"
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100
	defaultMaxPages = 10
	userAgent       = "pagedeck/1.0"
)

// Config controls endpoint selection and paging.
type Config struct {
	BaseURL  string
	Version  string
	Timeout  time.Duration
	PageSize int
	MaxPages int
}

// Observer is notified after every Graph round trip. status is 0 when the
// request never got a response.
type Observer interface {
	ObserveGraph(op string, status int, elapsed time.Duration)
}

// Client talks to the Graph API. Access tokens are passed per call.
type Client struct {
	baseURL  string
	version  string
	pageSize int
	maxPages int
	client   *http.Client
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithBaseURL overrides the Graph host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(u, "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithObserver installs a round-trip observer (metrics).
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a Graph client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		version:  cfg.Version,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.version == "" {
		c.version = defaultVersion
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.client = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// endpoint builds an absolute versioned URL for path.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + c.version + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// sameOrigin guards paging links so the token is never sent elsewhere.
func (c *Client) sameOrigin(rawURL string) bool {
	return strings.HasPrefix(rawURL, c.baseURL+"/")
}

func (c *Client) get(ctx context.Context, op, rawURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(op, req, token, out)
}

func (c *Client) postForm(ctx context.Context, op, rawURL, token string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(op, req, token, out)
}

func (c *Client) delete(ctx context.Context, op, rawURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(op, req, token, out)
}

func (c *Client) do(op string, req *http.Request, token string, out any) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.observe(op, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveGraph(op, status, time.Since(start))
	}
}

// ErrMissingToken is returned when a call is made without an access token.
var ErrMissingToken = errors.New("graph: access token is required")
