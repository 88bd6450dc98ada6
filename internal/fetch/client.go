// Package fetch performs outbound HTTP for probes and source validation. Every
// request goes through the shared retry policy and a per-host gate.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kithua/acw/internal/retry"
	"github.com/kithua/acw/internal/source"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; acw-source-validator/1.0)"
	maxBodyBytes     = 5 << 20
)

type Options struct {
	UserAgent string

	// PerHostConcurrency caps simultaneous requests to one host.
	PerHostConcurrency int

	// PerHostRate paces requests to one host in requests per second. Zero
	// disables pacing.
	PerHostRate  float64
	PerHostBurst int

	Retry retry.Policy
}

func DefaultOptions() Options {
	return Options{
		UserAgent:          DefaultUserAgent,
		PerHostConcurrency: 2,
		PerHostRate:        2,
		PerHostBurst:       2,
		Retry:              retry.DefaultPolicy(),
	}
}

// Response is a fully read HTTP response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Elapsed     time.Duration
}

type Client struct {
	http   *http.Client
	opts   Options
	gate   *hostGate
	policy retry.Policy
}

// NewClient wraps httpClient. A nil httpClient uses a client without a
// global timeout; callers bound every request through its context.
func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Client{
		http:   httpClient,
		opts:   opts,
		gate:   newHostGate(opts.PerHostConcurrency, opts.PerHostRate, opts.PerHostBurst),
		policy: opts.Retry,
	}
}

// Get fetches rawURL within timeout. Non-2xx responses that survive the
// retry policy are returned without error so callers can record the status.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, timeout)
}

// Head issues a HEAD request within timeout.
func (c *Client) Head(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	return c.do(ctx, http.MethodHead, rawURL, timeout)
}

func (c *Client) do(ctx context.Context, method, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	host := source.Host(rawURL)
	release, err := c.gate.acquire(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire slot for %s: %w", host, err)
	}
	defer release()

	start := time.Now()
	var last *Response

	err = c.policy.Do(ctx, rawURL, func(ctx context.Context) error {
		resp, err := c.once(ctx, method, rawURL)
		if err != nil {
			return err
		}
		last = resp
		if c.policy.IsRetryableStatus(resp.StatusCode) {
			return &retry.StatusError{StatusCode: resp.StatusCode}
		}
		return nil
	})

	var statusErr *retry.StatusError
	if err != nil && !(errors.As(err, &statusErr) && last != nil) {
		return nil, err
	}

	last.Elapsed = time.Since(start)
	return last, nil
}

func (c *Client) once(ctx context.Context, method, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	slog.Debug("HTTP request completed", "method", method, "url", rawURL, "status", resp.StatusCode, "bytes", len(body))

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
