// Package httpclient is the HTTP GET layer shared by the upstream data
// source adapters: timeouts, retries with jittered exponential backoff on
// 5xx/429, and per-source request metrics.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const maxBackoff = 30 * time.Second

// APIError represents a non-2xx response from an upstream service.
type APIError struct {
	Source     string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Source, e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether the upstream answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client performs GET requests against one upstream source.
type Client struct {
	source     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	maxRetries   int
	retryBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// New creates a client labelled source in logs and metrics.
func New(source string, opts ...Option) *Client {
	c := &Client{
		source: source,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets how often retryable failures are retried and the initial
// backoff between attempts.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records request outcomes and latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Logger returns the configured logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Get fetches fullURL, retrying retryable failures with exponential backoff
// and jitter. The whole body is returned.
func (c *Client) Get(ctx context.Context, fullURL, accept string) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// backoff * [0.5, 1.5)
			wait := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			c.logger.Debug("retrying request",
				"source", c.source,
				"attempt", attempt,
				"backoff", wait,
			)
			c.observe("retry")

			if !retry.SleepWithContext(ctx, wait) {
				return nil, ctx.Err()
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
		}

		body, err := c.do(ctx, fullURL, accept)
		if err == nil {
			c.observe("success")
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			c.observe("error")
			return nil, err
		}
	}

	c.observe("error")
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, fullURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observeDuration(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.source, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Source:     c.source,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}
	return body, nil
}

func (c *Client) observe(outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.SourceRequests.WithLabelValues(c.source, outcome).Inc()
}

func (c *Client) observeDuration(d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.SourceDuration.WithLabelValues(c.source).Observe(d.Seconds())
}
