// Package fetcher provides a resilient HTTP fetcher for the scraper, built
// on a colly collector, plus an optional on-disk caching decorator.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// readTimeoutCap bounds the per-request timeout regardless of configuration.
const readTimeoutCap = 15 * time.Second

// Fetcher retrieves the raw HTML of a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options control retry and timeout behavior of the HTTP fetcher.
type Options struct {
	UserAgent       string
	MaxRetries      int // total attempts, not extra retries
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	RetryStatuses   []int
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration
}

// HTTPFetcher issues GET requests with bounded retry and exponential
// backoff. Transient failures (timeouts, connection errors, retryable
// status codes) are retried; other HTTP errors fail immediately.
type HTTPFetcher struct {
	opts        Options
	retryStatus map[int]struct{}
	transport   http.RoundTripper
}

// New builds an HTTPFetcher from opts, filling zero values with defaults.
func New(opts Options) *HTTPFetcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.RequestTimeout <= 0 || opts.RequestTimeout > readTimeoutCap {
		opts.RequestTimeout = readTimeoutCap
	}
	if len(opts.RetryStatuses) == 0 {
		opts.RetryStatuses = []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}

	retryStatus := make(map[int]struct{}, len(opts.RetryStatuses))
	for _, code := range opts.RetryStatuses {
		retryStatus[code] = struct{}{}
	}

	return &HTTPFetcher{
		opts:        opts,
		retryStatus: retryStatus,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// WithTransport replaces the underlying transport. Used by tests to inject
// a mock network.
func (f *HTTPFetcher) WithTransport(rt http.RoundTripper) {
	f.transport = rt
}

// Fetch GETs url, retrying transient failures up to MaxRetries attempts
// with exponential backoff. The returned error is a *FetchError once all
// attempts are exhausted, or the context error on cancellation.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		body, status, err := f.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		lastErr, lastStatus = err, status

		if !f.retryable(err, status) || attempt == f.opts.MaxRetries {
			break
		}
		if werr := wait(ctx, f.backoff(attempt)); werr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, werr)
		}
	}

	return nil, &FetchError{URL: url, Status: lastStatus, Err: lastErr}
}

// attempt runs a single GET through a fresh collector. A fresh collector
// per attempt sidesteps colly's visited-URL bookkeeping between retries.
func (f *HTTPFetcher) attempt(ctx context.Context, url string) ([]byte, int, error) {
	c := f.newCollector()

	var (
		body     []byte
		status   int
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case err := <-done:
		if fetchErr != nil {
			return nil, status, fetchErr
		}
		if err != nil {
			return nil, status, err
		}
		return body, status, nil
	}
}

func (f *HTTPFetcher) newCollector() *colly.Collector {
	// colly v2.1.0's Async option sets c.Async = true regardless of its
	// argument; rely on the synchronous default instead.
	c := colly.NewCollector()
	if f.opts.UserAgent != "" {
		c.UserAgent = f.opts.UserAgent
	}
	// Content-based encoding detection when the server signals an
	// ambiguous or legacy charset.
	c.DetectCharset = true
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(f.opts.RequestTimeout)
	c.WithTransport(f.transport)
	return c
}

// retryable reports whether the failed attempt should be tried again.
func (f *HTTPFetcher) retryable(err error, status int) bool {
	if status != 0 {
		_, ok := f.retryStatus[status]
		return ok
	}
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Unclassified transport-level failure; worth one more try.
	return true
}

func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := f.opts.RetryBackoff * time.Duration(1<<(attempt-1))
	if max := f.opts.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
