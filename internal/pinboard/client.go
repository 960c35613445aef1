// Package pinboard talks to the remote bookmarking service over its v1 HTTP API.
package pinboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/utils"
)

const (
	DefaultBaseURL = "https://api.pinboard.in/v1"
	DefaultTimeout = 30 * time.Second

	// timeLayout is the remote timestamp format, always UTC.
	timeLayout = "2006-01-02T15:04:05Z"

	// maxBodyBytes caps a response body. A full listing of a large account
	// is a few megabytes.
	maxBodyBytes = 64 << 20
)

const (
	pathAPIToken = "/user/api_token/"
	pathAdd      = "/posts/add"
	pathDelete   = "/posts/delete"
	pathAll      = "/posts/all"
)

// TokenSource yields the "username:token" credential for each request.
type TokenSource interface {
	AuthToken(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	logger logger.Logger
	now    func() time.Time
}

func NewClient(opts Options, tokens TokenSource, log logger.Logger) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q: unsupported scheme", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(opts.Timeout)
	}

	return &Client{
		base:   base,
		http:   hc,
		tokens: tokens,
		logger: log,
		now:    time.Now,
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// ExchangeToken trades a username and password for the account API token.
// The password is sent once as HTTP basic auth and never stored.
func (c *Client) ExchangeToken(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Result string `json:"result"`
	}
	req, err := c.newRequest(ctx, pathAPIToken, url.Values{})
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(username, password)

	// Token exchange only distinguishes bad credentials from everything else.
	if err := c.do(req, pathAPIToken, &out); err != nil {
		if errors.Is(err, domain.ErrRateLimitExceeded) {
			return "", fmt.Errorf("%w: %s: status %d", domain.ErrUnknown, pathAPIToken, http.StatusTooManyRequests)
		}
		return "", err
	}
	if out.Result == "" {
		return "", fmt.Errorf("%w: %s: empty token", domain.ErrUnknown, pathAPIToken)
	}
	return out.Result, nil
}

// AddOrUpdate creates the post or replaces every field of an existing one.
func (c *Client) AddOrUpdate(ctx context.Context, b *domain.Bookmark) error {
	q := url.Values{}
	q.Set("url", b.URL)
	q.Set("description", b.Title)
	q.Set("extended", b.Description)
	q.Set("tags", b.Tags)
	q.Set("shared", yesNo(!b.Private))
	q.Set("toread", yesNo(b.Unread))
	q.Set("replace", "yes")

	return c.mutate(ctx, pathAdd, q)
}

// Delete removes the post for url.
func (c *Client) Delete(ctx context.Context, rawURL string) error {
	q := url.Values{}
	q.Set("url", rawURL)
	return c.mutate(ctx, pathDelete, q)
}

// ListAll returns every post of the account.
func (c *Client) ListAll(ctx context.Context) ([]Post, error) {
	var raw []post
	if err := c.authenticated(ctx, pathAll, url.Values{}, &raw); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(raw))
	for _, p := range raw {
		posts = append(posts, p.toPost(c.now))
	}
	return posts, nil
}

func (c *Client) mutate(ctx context.Context, path string, q url.Values) error {
	var out struct {
		ResultCode string `json:"result_code"`
	}
	if err := c.authenticated(ctx, path, q, &out); err != nil {
		return err
	}
	if out.ResultCode != "done" {
		return fmt.Errorf("%w: %s: result %q", domain.ErrUnknown, path, out.ResultCode)
	}
	return nil
}

func (c *Client) authenticated(ctx context.Context, path string, q url.Values, out any) error {
	token, err := c.tokens.AuthToken(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	q.Set("auth_token", token)

	req, err := c.newRequest(ctx, path, q)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	q.Set("format", "json")
	u := c.base.JoinPath(path)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 200 body into out. The path is logged instead
// of the URL so the auth token never reaches the logs.
func (c *Client) do(req *http.Request, path string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote call failed", logger.String("path", path), logger.Error(err))
		return fmt.Errorf("%w: %s: %w", domain.ErrUnknown, path, err)
	}
	defer utils.Close(resp.Body)

	c.logger.Debug("remote call",
		logger.String("method", req.Method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)),
	)

	if err := statusError(resp.StatusCode); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s: %w", path, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", domain.ErrUnknown, path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: decode body: %w", domain.ErrUnknown, path, err)
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		return domain.ErrRateLimitExceeded
	default:
		return fmt.Errorf("%w: status %d", domain.ErrUnknown, code)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
