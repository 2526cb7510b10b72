package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"path"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/s3stream/streamtypes"
)

// httpClient fetches http and https sources.
type httpClient struct {
	client *http.Client
	opts   streamtypes.SourceOptions
	warn   func(msg string, args ...any)
}

func newHTTPClient(opts streamtypes.SourceOptions, warn func(string, ...any)) *httpClient {
	defaults := streamtypes.DefaultSourceOptions()
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = defaults.MaxIdleConnsPerHost
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = defaults.ResponseHeaderTimeout
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaults.RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = defaults.RetryMaxBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}

	// No Client.Timeout: it would cut off bodies that take longer than the
	// timeout to stream.
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		DisableCompression:    true,
	}

	return &httpClient{
		client: &http.Client{Transport: transport},
		opts:   opts,
		warn:   warn,
	}
}

// get issues a GET and returns the streaming body. Transport errors and 5xx
// responses are retried until the response headers arrive.
func (c *httpClient) get(ctx context.Context, url string) (*Stream, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("source: create request: %w", err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.warn("source request failed", "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("%w: %s", ErrServerError, resp.Status)
			c.warn("source server error", "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}

		return &Stream{
			Body:        resp.Body,
			Size:        resp.ContentLength,
			ContentType: resp.Header.Get("Content-Type"),
			Name:        path.Base(resp.Request.URL.Path),
		}, nil
	}

	return nil, fmt.Errorf("source: get failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *httpClient) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("source: unexpected status code: %d", code)
	}
}
