package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/jmylchreest/jobsift/internal/constants"
)

// doneMarker terminates an SSE completion stream.
const doneMarker = "[DONE]"

// errBodyBytes caps how much of an error response body is kept.
const errBodyBytes = 2 << 10

// maxChunkBytes caps one SSE line; delta chunks are small, this leaves
// headroom for providers that batch.
const maxChunkBytes = 1 << 20

// Options configures a Client. Zero timeouts take the constants defaults.
// The fallback provider is enabled when FallbackKey is set.
type Options struct {
	BaseURL string
	Model   string
	Keys    []string

	FallbackURL   string
	FallbackModel string
	FallbackKey   string

	StallTimeout time.Duration
	HardTimeout  time.Duration
}

// Client runs streaming chat completions against a primary provider, with
// per-class retries and an optional single-shot fallback provider.
type Client struct {
	primary     provider
	fallback    *provider
	fallbackKey string
	pool        *KeyPool
	httpClient  *http.Client
	logger      *slog.Logger

	stallTimeout   time.Duration
	hardTimeout    time.Duration
	httpRetryDelay time.Duration
	netRetryDelay  time.Duration
}

// NewClient creates a chat client over a pool of primary keys.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if len(opts.Keys) == 0 {
		return nil, errors.New("at least one llm api key is required")
	}
	if opts.BaseURL == "" || opts.Model == "" {
		return nil, errors.New("llm base url and model are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StallTimeout == 0 {
		opts.StallTimeout = constants.StreamStallTimeout
	}
	if opts.HardTimeout == 0 {
		opts.HardTimeout = constants.AnalysisHardTimeout
	}

	c := &Client{
		primary: provider{
			label:   providerLabel(opts.BaseURL),
			baseURL: strings.TrimRight(opts.BaseURL, "/"),
			model:   opts.Model,
		},
		pool:           NewKeyPool(opts.Keys),
		httpClient:     &http.Client{},
		logger:         logger.With("component", "llm"),
		stallTimeout:   opts.StallTimeout,
		hardTimeout:    opts.HardTimeout,
		httpRetryDelay: constants.LLMHTTPRetryDelay,
		netRetryDelay:  constants.LLMNetworkRetryDelay,
	}
	if opts.FallbackKey != "" && opts.FallbackURL != "" && opts.FallbackModel != "" {
		c.fallback = &provider{
			label:   providerLabel(opts.FallbackURL),
			baseURL: strings.TrimRight(opts.FallbackURL, "/"),
			model:   opts.FallbackModel,
		}
		c.fallbackKey = opts.FallbackKey
	}
	return c, nil
}

// PoolSize returns the number of primary keys, which bounds how many
// completions can stream concurrently.
func (c *Client) PoolSize() int {
	return c.pool.Size()
}

// StreamChat runs one chat completion. It acquires a primary key, retries
// rate limits and transient failures on the primary provider, and on
// exhaustion makes a single attempt against the fallback provider.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	req = req.withDefaults()

	res, primaryErr := c.primaryWithRetry(ctx, req)
	if primaryErr == nil {
		return res, nil
	}
	if c.fallback == nil {
		return nil, primaryErr
	}

	c.logger.Warn("primary llm failed, trying fallback",
		"primary", c.primary.label,
		"fallback", c.fallback.label,
		"error", primaryErr)
	res, err := c.streamOnce(ctx, *c.fallback, c.fallbackKey, req)
	if err != nil {
		return nil, fmt.Errorf("primary failed (%v); fallback failed: %w", primaryErr, err)
	}
	return res, nil
}

func (c *Client) primaryWithRetry(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	key, release, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *ChatResult
	schedule := &retrySchedule{base: c.netRetryDelay}
	op := func() error {
		r, err := c.streamOnce(ctx, c.primary, key, req)
		if err == nil {
			res = r
			return nil
		}
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr):
			if apiErr.Retryable() {
				schedule.base = c.httpRetryDelay
				c.logger.Warn("llm request failed, will retry",
					"provider", c.primary.label, "status", apiErr.StatusCode)
				return err
			}
			return backoff.Permanent(err)
		case errors.Is(err, ErrEmptyResponse):
			return backoff.Permanent(err)
		default:
			schedule.base = c.netRetryDelay
			c.logger.Warn("llm request failed, will retry",
				"provider", c.primary.label, "error", err)
			return err
		}
	}
	if err := backoff.Retry(op, backoff.WithContext(schedule, ctx)); err != nil {
		return nil, err
	}
	return res, nil
}

// streamOnce makes a single streaming chat-completions call and accumulates
// the delta content. The stall timer aborts the read when no data arrives
// within the window; the hard timeout bounds the whole call.
func (c *Client) streamOnce(ctx context.Context, prov provider, key string, req ChatRequest) (*ChatResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.hardTimeout)
	defer cancel()

	payload := chatPayload{
		Model:       prov.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, prov.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyBytes))
		return nil, &APIError{
			Provider:   prov.label,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	// Cancelling callCtx closes the in-flight body read, so a fired stall
	// timer unblocks the scanner.
	stall := time.AfterFunc(c.stallTimeout, cancel)

	var content strings.Builder
	var usage Usage
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxChunkBytes)
	for scanner.Scan() {
		stall.Reset(c.stallTimeout)
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == doneMarker {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream chunk",
				"provider", prov.label, "error", err)
			continue
		}
		if len(chunk.Choices) > 0 {
			content.WriteString(chunk.Choices[0].Delta.Content)
		}
		if u := chunk.usageTokens(); u != nil {
			usage = *u
		}
	}
	stalled := !stall.Stop()
	if err := scanner.Err(); err != nil {
		if stalled {
			return nil, fmt.Errorf("stream stalled: no data for %s", c.stallTimeout)
		}
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	text := strings.TrimSpace(content.String())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return &ChatResult{
		Content:  text,
		Usage:    usage,
		Provider: prov.label,
		Model:    prov.model,
	}, nil
}

// chatPayload is the chat-completions request body.
type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// streamChunk is one SSE data frame. Usage arrives on the final frame,
// either top-level or under x_groq depending on the provider.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	XGroq *struct {
		Usage *Usage `json:"usage"`
	} `json:"x_groq"`
}

func (c *streamChunk) usageTokens() *Usage {
	if c.Usage != nil {
		return c.Usage
	}
	if c.XGroq != nil {
		return c.XGroq.Usage
	}
	return nil
}

// retrySchedule implements backoff.BackOff with the analysis schedule: the
// wait is base * attempt where base depends on the failure class, set by
// the caller before each retryable return.
type retrySchedule struct {
	attempt int
	base    time.Duration
}

func (s *retrySchedule) NextBackOff() time.Duration {
	if s.attempt >= constants.LLMRetryAttempts {
		return backoff.Stop
	}
	s.attempt++
	return time.Duration(s.attempt) * s.base
}

func (s *retrySchedule) Reset() {
	s.attempt = 0
}
