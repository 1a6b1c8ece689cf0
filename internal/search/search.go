// Package search wraps the web-search API used by board discovery and the
// search-based connectors. Calls rotate through a pool of API keys; a
// rate-limited key is skipped for the rest of the query.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/jobsift/internal/fetch"
)

// DefaultEndpoint is the serper.dev search endpoint.
const DefaultEndpoint = "https://google.serper.dev/search"

const requestTimeout = 20 * time.Second

// ErrDisabled is returned when no API keys are configured.
var ErrDisabled = errors.New("search disabled: no API keys configured")

// ErrRateLimited is wrapped into the error returned when every key in the
// pool was rate limited for one query.
var ErrRateLimited = errors.New("search rate limited")

// Item is one organic search result.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
}

type searchResponse struct {
	Organic []Item `json:"organic"`
}

// Client issues search queries through the shared fetch client.
type Client struct {
	keys     []string
	endpoint string
	fetcher  *fetch.Client
	logger   *slog.Logger

	mu     sync.Mutex
	cursor int
}

// NewClient creates a search client. An empty endpoint uses DefaultEndpoint;
// an empty key list produces a disabled client whose Search always errors.
func NewClient(keys []string, endpoint string, fetcher *fetch.Client, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		keys:     keys,
		endpoint: endpoint,
		fetcher:  fetcher,
		logger:   logger.With("component", "search"),
	}
}

// Enabled reports whether any API keys are configured.
func (c *Client) Enabled() bool {
	return len(c.keys) > 0
}

// Search runs one query and returns up to num organic results. Each call
// starts from the next key in the pool; a rate-limited key rotates to the
// following one until the pool is exhausted.
func (c *Client) Search(ctx context.Context, query string, num int) ([]Item, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	payload, err := json.Marshal(searchRequest{Query: query, Num: num})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < len(c.keys); attempt++ {
		key := c.nextKey()
		result := c.fetcher.Post(ctx, c.endpoint, payload, fetch.Options{
			Timeout:    requestTimeout,
			MaxRetries: 1,
			Headers:    map[string]string{"X-API-KEY": key},
		})
		if result.Err != nil {
			lastErr = result.Err
			if result.RateLimited {
				c.logger.Warn("search key rate limited, rotating", "attempt", attempt+1)
				continue
			}
			return nil, fmt.Errorf("search request failed: %w", result.Err)
		}

		var resp searchResponse
		if err := json.Unmarshal(result.Body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode search response: %w", err)
		}
		c.logger.Debug("search completed", "query", query, "results", len(resp.Organic))
		return resp.Organic, nil
	}

	return nil, fmt.Errorf("all %d search keys rate limited (last: %v): %w", len(c.keys), lastErr, ErrRateLimited)
}

func (c *Client) nextKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.keys[c.cursor%len(c.keys)]
	c.cursor++
	return key
}
