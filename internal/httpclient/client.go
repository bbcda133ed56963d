// Package httpclient wraps outbound platform calls with credential
// attachment, client-side rate limiting, and retry on 429 responses using
// server-supplied backoff hints.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries = 5
	// Cushion added to the server-advertised wait so the retry does not land
	// inside the same rate window.
	defaultCushion = 75 * time.Millisecond
)

// Credentials is a thread-safe settable cell holding the API key. The key
// may be bound late, or never for unauthenticated dry runs.
type Credentials struct {
	mu    sync.RWMutex
	token string
}

// NewCredentials creates a credential cell; token may be empty.
func NewCredentials(token string) *Credentials {
	return &Credentials{token: token}
}

// Set replaces the stored API key.
func (c *Credentials) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Get returns the stored API key, or "" when none is set.
func (c *Credentials) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Client is an HTTP client with credential attachment, rate limiting, and
// rate-limit-aware retries. It is safe for concurrent use; retry state is
// kept per call.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	creds      *Credentials
	maxRetries int
	cushion    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures the Client.
type Option func(*Client)

// WithRateLimit sets the client-side requests-per-second ceiling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithCredentials attaches the credential cell used for the x-api-key header.
func WithCredentials(creds *Credentials) Option {
	return func(c *Client) { c.creds = creds }
}

// WithMaxRetries caps consecutive 429 retries for a single logical request.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a new client.
func New(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		maxRetries: defaultMaxRetries,
		cushion:    defaultCushion,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends the request. A 429 response is retried after the server-advertised
// wait plus a small cushion, up to the retry cap; a request whose body cannot
// be rebuilt, or one that is still limited after the last retry, yields the
// 429 response itself rather than an error. Callers must check the status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if c.creds != nil {
		if token := c.creds.Get(); token != "" {
			req.Header.Set("x-api-key", token)
		}
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return resp, nil
		}

		// A body that cannot be rebuilt cannot be retried.
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}

		wait := retryWait(resp)
		drain(resp)

		if err := c.sleep(ctx, wait+c.cushion); err != nil {
			return nil, err
		}

		next := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rebuilding request body: %w", err)
			}
			next.Body = body
		}
		req = next
	}
}

// DoJSON sends the request, fails on error statuses, and decodes the
// response body into out when out is non-nil.
func (c *Client) DoJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

// retryWait computes the backoff from response headers: retry-after seconds
// first, then the provider reset header, defaulting to one second.
func retryWait(resp *http.Response) time.Duration {
	for _, header := range []string{"Retry-After", "x-ratelimit-reset"} {
		v := strings.TrimSpace(resp.Header.Get(header))
		if v == "" {
			continue
		}
		if secs, err := strconv.ParseUint(v, 10, 32); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
