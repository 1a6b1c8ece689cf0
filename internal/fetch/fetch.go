// Package fetch provides the retrying HTTP client shared by all connectors.
// It owns the rate-limit handling: 429 responses honor Retry-After, 5xx and
// network errors back off exponentially, and other 4xx fail immediately.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/protection"
)

const defaultUserAgent = "jobsift/1.0 (+https://github.com/jmylchreest/jobsift)"

// detectSnippetBytes caps how much of a body the protection detector sees.
const detectSnippetBytes = 64 << 10

// Options configures a single fetch. Zero fields take the constants defaults.
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	BackoffStart time.Duration

	// Headers are set on every attempt, after the defaults.
	Headers map[string]string
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = constants.DefaultFetchTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = constants.DefaultMaxRetries
	}
	if o.BackoffStart == 0 {
		o.BackoffStart = constants.DefaultBackoffStart
	}
	return o
}

// Result is the outcome of one fetch, after retries.
type Result struct {
	Body       []byte
	StatusCode int

	// RateLimited is set when any attempt saw a 429, even if a retry
	// later succeeded.
	RateLimited bool

	// Blocked reports a bot wall detected on an otherwise successful
	// response. It is informational, not an error.
	Blocked protection.DetectionResult

	ResponseTime time.Duration
	Err          error
}

// Client fetches URLs with retry, backoff and block detection.
type Client struct {
	httpClient *http.Client
	detector   *protection.Detector
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a fetch client. Timeouts are applied per request from
// Options, not on the underlying http.Client.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{},
		detector:   protection.NewDetector(),
		logger:     logger.With("component", "fetch"),
		userAgent:  defaultUserAgent,
	}
}

// Fetch GETs the URL with the retry schedule from opts.
func (c *Client) Fetch(ctx context.Context, url string, opts Options) Result {
	return c.do(ctx, http.MethodGet, url, nil, opts)
}

// Head issues a HEAD request with the retry schedule from opts. The result
// carries the status code only; block detection needs a body and is skipped.
func (c *Client) Head(ctx context.Context, url string, opts Options) Result {
	return c.do(ctx, http.MethodHead, url, nil, opts)
}

// Post sends a JSON body to the URL with the retry schedule from opts.
func (c *Client) Post(ctx context.Context, url string, body []byte, opts Options) Result {
	return c.do(ctx, http.MethodPost, url, body, opts)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, opts Options) Result {
	opts = opts.withDefaults()

	var result Result
	schedule := &retrySchedule{start: opts.BackoffStart, maxRetries: opts.MaxRetries}

	op := func() error {
		attemptStart := time.Now()

		reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, url, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			result.ResponseTime = time.Since(attemptStart)
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		// Body read shares reqCtx, so the timeout covers headers and body
		data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes))
		result.StatusCode = resp.StatusCode
		result.ResponseTime = time.Since(attemptStart)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			result.RateLimited = true
			schedule.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn("rate limited", "url", url, "retry_after", schedule.retryAfter)
			return fmt.Errorf("rate limited (429)")
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("request failed with status %d", resp.StatusCode))
		}

		result.Body = data
		snippet := data
		if len(snippet) > detectSnippetBytes {
			snippet = snippet[:detectSnippetBytes]
		}
		result.Blocked = c.detector.DetectFromResponse(resp.StatusCode, resp.Header, snippet)
		if result.Blocked.Detected {
			c.logger.Warn("block page detected",
				"url", url,
				"signal", result.Blocked.Signal,
				"confidence", result.Blocked.Confidence)
			if result.Blocked.IsRateLimit() {
				result.RateLimited = true
			}
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(schedule, ctx)); err != nil {
		result.Err = err
	}
	return result
}

// retrySchedule implements backoff.BackOff with the connector schedule: a
// 429's Retry-After wins for the next wait, otherwise the delay starts at
// BackoffStart and doubles per attempt, capped at constants.MaxBackoff.
type retrySchedule struct {
	start      time.Duration
	maxRetries int
	attempt    int
	retryAfter time.Duration
}

func (s *retrySchedule) NextBackOff() time.Duration {
	if s.attempt >= s.maxRetries {
		return backoff.Stop
	}
	delay := s.start << s.attempt
	if s.retryAfter > 0 {
		delay = s.retryAfter
	}
	if delay > constants.MaxBackoff {
		delay = constants.MaxBackoff
	}
	s.attempt++
	s.retryAfter = 0
	return delay
}

func (s *retrySchedule) Reset() {
	s.attempt = 0
	s.retryAfter = 0
}

// parseRetryAfter reads a Retry-After value in seconds. Date-form values
// and garbage return 0, which falls back to the exponential schedule.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
