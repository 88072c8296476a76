// Package api is the remote data gateway: typed operations over the finance
// REST API with bearer authentication taken from the session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finance/internal/log"
	"finance/internal/session"
)

const maxResponseBytes = 4 << 20

// UnauthorizedHandler is the single place that reacts to authentication
// failures, typically by sending the user back to login.
type UnauthorizedHandler func(ctx context.Context, err *AuthError)

type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        *session.Session
	onUnauthorized UnauthorizedHandler
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) { c.onUnauthorized = h }
}

// WithRoundTripper wraps the current transport, e.g. with tracing.
func WithRoundTripper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Client) {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.httpClient.Transport = wrap(base)
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New builds a gateway for baseURL. Outbound requests are logged through
// logger when it is non-nil.
func New(baseURL string, sess *session.Session, logger *log.Logger, opts ...Option) *Client {
	hc := &http.Client{Timeout: 15 * time.Second}
	if logger != nil {
		hc.Transport = log.NewTransport(nil, logger.WithComponent(log.ComponentGateway))
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		session:    sess,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the gateway authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// public requests carry no token and never trigger the unauthorized hook
	public bool
}

func (c *Client) do(ctx context.Context, r request) error {
	var token string
	if !r.public {
		token = c.session.Token()
		if token == "" {
			return c.unauthorized(ctx, &AuthError{Method: r.method, Path: r.path})
		}
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", r.method, r.path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", r.method, r.path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !r.public {
		c.session.Clear(ctx)
		return c.unauthorized(ctx, &AuthError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(r.method, r.path, resp.StatusCode, data)
	}

	if r.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, r.out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) unauthorized(ctx context.Context, err *AuthError) error {
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx, err)
	}
	return err
}
