// Package rest is the shared HTTP layer under the REST-backed source
// adapters: pluggable authentication, request rate limiting and JSON
// decoding with bounded error-body capture.
package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response is kept for error
// reporting, so a misbehaving upstream cannot balloon memory.
const maxErrorBody = 64 * 1024

const defaultUserAgent = "vitalsync/1.0"

// Auth applies an authentication scheme to an outgoing request.
type Auth interface {
	Apply(req *http.Request)
}

// NoAuth sends requests unauthenticated.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}

// BearerToken attaches a fixed bearer credential to each request.
type BearerToken struct {
	Token string
}

func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Auth      Auth
	Timeout   time.Duration // default 30s
	RateLimit float64       // requests per second, default 5
	UserAgent string
	// HTTPClient overrides the underlying client; used by the session
	// adapters to carry a cookie jar, and by tests to inject fakes.
	HTTPClient *http.Client
}

// Client is a rate-limited JSON HTTP client scoped to one upstream.
type Client struct {
	base    string
	auth    Auth
	ua      string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a Client, filling in defaults for unset knobs.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limit := cfg.RateLimit
	if limit == 0 {
		limit = 5
	}
	auth := cfg.Auth
	if auth == nil {
		auth = NoAuth{}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:    strings.TrimSuffix(cfg.BaseURL, "/"),
		auth:    auth,
		ua:      ua,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
	}
}

// StatusError is a non-2xx response, carrying the upstream status and a
// bounded copy of the body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// GetJSON issues a GET and decodes the 2xx response body into target.
// On a non-2xx status the returned error is a *StatusError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, target any) error {
	body, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// PostForm issues an application/x-www-form-urlencoded POST.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	full := c.base + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.auth.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       readBounded(resp.Body),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	return data, nil
}

func readBounded(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "(failed to read response body)"
	}
	if len(data) == maxErrorBody {
		data = append(data, []byte("... (truncated)")...)
	}
	return string(data)
}
