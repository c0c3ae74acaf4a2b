package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/corpix/uarand"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// ClientType represents the type of HTTP client configuration
type ClientType string

const (
	// BrowserClient sends browser-like headers with a random User-Agent.
	// Used for image hosts that reject obvious scripts.
	BrowserClient ClientType = "browser"

	// APIClient sends a fixed, identifying User-Agent and asks for JSON.
	// Used for the reddit API and provider APIs that require one.
	APIClient ClientType = "api"
)

// DefaultTimeout bounds connecting and waiting for response headers
const DefaultTimeout = 10 * time.Second

// HTTPClient wraps an http.Client with configuration
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
	userAgent  string
	limiter    *rate.Limiter
	retries    int
	retryBase  time.Duration
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithTimeout sets the dial, TLS handshake and response header timeouts.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Transport = newTransport(d)
	}
}

// WithUserAgent overrides the User-Agent of an APIClient.
func WithUserAgent(ua string) Option {
	return func(c *HTTPClient) { c.userAgent = ua }
}

// WithRateLimit paces requests made through GetJSON and Wait.
func WithRateLimit(rps float64) Option {
	return func(c *HTTPClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetries sets how many times GetJSON retries a 429 response and the
// initial backoff between attempts.
func WithRetries(n int, base time.Duration) Option {
	return func(c *HTTPClient) {
		c.retries = n
		c.retryBase = base
	}
}

func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   8,
	}
}

// NewClient creates a new HTTP client with the specified type
func NewClient(clientType ClientType, opts ...Option) *HTTPClient {
	client := &http.Client{
		Transport: newTransport(DefaultTimeout),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	c := &HTTPClient{
		client:     client,
		clientType: clientType,
		userAgent:  "redditdl/1.0",
		retries:    3,
		retryBase:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes an HTTP request with the appropriate headers for the client type
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get is a convenience method for GET requests
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Exists issues a HEAD request and reports whether the resource answered 200.
func (c *HTTPClient) Exists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Wait blocks until the rate limiter admits another request.
func (c *HTTPClient) Wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// GetJSON fetches url and decodes a 200 response body into out. A 429 is
// retried with exponential backoff, honoring Retry-After. Any other non-200
// status returns a *StatusError. The response headers of the final attempt
// are returned.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, header http.Header, out interface{}) (http.Header, error) {
	var respHeader http.Header
	b := retry.WithMaxRetries(uint64(c.retries), retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := c.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}
		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		respHeader = resp.Header

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			statusErr := &StatusError{Code: resp.StatusCode, URL: url}
			if d := retryAfter(resp.Header); d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return retry.RetryableError(statusErr)
		case resp.StatusCode != http.StatusOK:
			return &StatusError{Code: resp.StatusCode, URL: url}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s: %w", url, err)
		}
		return nil
	})
	return respHeader, err
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") != "" {
		return
	}
	switch c.clientType {
	case BrowserClient:
		req.Header.Set("User-Agent", uarand.GetRandom())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/*,video/*,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	case APIClient:
		req.Header.Set("User-Agent", c.userAgent)
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}

	default:
		// Default: use Go's default User-Agent
	}
}
