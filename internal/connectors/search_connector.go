package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/search"
)

// searchResultsPerQuery is the page size requested from the search API.
const searchResultsPerQuery = 20

// unknownCompany is used when no company can be extracted from a result title.
const unknownCompany = "Unknown Company"

// SearchConnector builds jobs from search-API results. It covers both the
// aggregator boards (queried via site: operators) and the underground
// sources that have no structured feed at all.
type SearchConnector struct {
	name     string
	platform string
	deps     Deps
}

// NewSearch builds a search-based connector. At least one query is required;
// the shared search client must be configured with API keys.
func NewSearch(name string, src config.SourceDef, deps Deps) (Connector, error) {
	if len(src.Queries) == 0 {
		return nil, fmt.Errorf("source %s: at least one query is required", name)
	}
	deps = deps.withDefaults()
	if deps.Searcher == nil || !deps.Searcher.Enabled() {
		return nil, fmt.Errorf("source %s: search API keys are not configured", name)
	}
	return &SearchConnector{name: name, platform: "search", deps: deps}, nil
}

func (c *SearchConnector) Name() string     { return c.name }
func (c *SearchConnector) Platform() string { return c.platform }

// Fetch runs the configured queries. The company argument is ignored:
// search sources are not company-scoped.
func (c *SearchConnector) Fetch(ctx context.Context, _ string, src config.SourceDef) Result {
	delay := time.Duration(src.RateLimiting.DelayBetweenRequestsMs) * time.Millisecond
	now := time.Now().In(c.deps.Location)

	var (
		jobs         []models.RawJob
		responseTime time.Duration
		rateLimited  bool
		lastErr      error
		seen         = map[string]bool{}
	)
	for i, query := range src.Queries {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return Result{Source: c.name, Err: ctx.Err(), RateLimited: rateLimited, ResponseTime: responseTime, Jobs: jobs}
			case <-time.After(delay):
			}
		}

		start := time.Now()
		items, err := c.deps.Searcher.Search(ctx, query, searchResultsPerQuery)
		responseTime += time.Since(start)
		if err != nil {
			lastErr = err
			if errors.Is(err, search.ErrRateLimited) {
				rateLimited = true
			}
			c.deps.Logger.Warn("search query failed",
				"source", c.name, "query", query, "error", err)
			continue
		}

		for _, item := range items {
			job, ok := c.mapItem(item, src, now)
			if !ok || seen[job.URL] {
				continue
			}
			seen[job.URL] = true
			jobs = append(jobs, job)
		}
	}

	// A run with some failed queries still succeeds as long as one query
	// produced a page of results.
	if len(jobs) == 0 && lastErr != nil {
		return Result{
			Source:       c.name,
			Err:          fmt.Errorf("all queries failed for %s: %w", c.name, lastErr),
			RateLimited:  rateLimited,
			ResponseTime: responseTime,
		}
	}

	return Result{
		Source:       c.name,
		Jobs:         jobs,
		Success:      true,
		RateLimited:  rateLimited,
		ResponseTime: responseTime,
	}
}

func (c *SearchConnector) mapItem(item search.Item, src config.SourceDef, now time.Time) (models.RawJob, bool) {
	if !urlAllowed(item.Link, src.URLAllow, src.URLDeny) {
		return models.RawJob{}, false
	}

	company, title := extractCompany(item.Title)
	if title == "" {
		return models.RawJob{}, false
	}
	if roleBlocked(title, src.RoleBlocklist) {
		return models.RawJob{}, false
	}

	postedAt := parseRelativeDate(item.Snippet, now)
	if postedAt == nil {
		postedAt = parseRelativeDate(item.Title, now)
	}
	payload, _ := json.Marshal(item)

	return models.RawJob{
		Source:      c.name,
		SourceJobID: sourceJobID("", c.name, company, title),
		Title:       titleOrDefault(title),
		Company:     company,
		URL:         item.Link,
		Content:     item.Snippet,
		PostedAt:    postedAt,
		RawPayload:  string(payload),
		FetchedAt:   time.Now().UTC(),
	}, true
}

// urlAllowed applies the per-source substring filters: when an allow list is
// set the link must match one of its entries, and deny entries reject index
// and search pages.
func urlAllowed(link string, allow, deny []string) bool {
	lower := strings.ToLower(link)
	for _, d := range deny {
		if d != "" && strings.Contains(lower, strings.ToLower(d)) {
			return false
		}
	}
	if len(allow) == 0 {
		return true
	}
	for _, a := range allow {
		if a != "" && strings.Contains(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func roleBlocked(title string, blocklist []string) bool {
	lower := strings.ToLower(title)
	for _, blocked := range blocklist {
		if blocked != "" && strings.Contains(lower, strings.ToLower(blocked)) {
			return true
		}
	}
	return false
}

// titleSeparators split aggregator result titles into segments.
var titleSeparators = []string{" - ", " – ", " — ", " | "}

// extractCompany pulls a company name out of a search result title.
// "Senior Engineer at Acme - Toronto" yields ("Acme", "Senior Engineer");
// "Acme - Senior Engineer" yields ("Acme", "Senior Engineer"); titles with
// neither pattern yield "Unknown Company" and the whole title.
func extractCompany(title string) (company, role string) {
	title = strings.TrimSpace(title)

	if idx := lastIndexFold(title, " at "); idx >= 0 {
		role = strings.TrimSpace(title[:idx])
		rest := strings.TrimSpace(title[idx+len(" at "):])
		// Trailing segments after the company are usually locations or
		// site branding.
		if before, _, ok := splitFirstSeparator(rest); ok {
			rest = before
		}
		if rest != "" && role != "" {
			return rest, role
		}
	}

	if before, after, ok := splitFirstSeparator(title); ok && before != "" && after != "" {
		return before, after
	}

	return unknownCompany, title
}

// splitFirstSeparator cuts at the earliest separator occurrence, trying all
// separator styles and keeping the leftmost match.
func splitFirstSeparator(s string) (before, after string, ok bool) {
	cut, width := -1, 0
	for _, sep := range titleSeparators {
		if i := strings.Index(s, sep); i >= 0 && (cut < 0 || i < cut) {
			cut, width = i, len(sep)
		}
	}
	if cut < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:cut]), strings.TrimSpace(s[cut+width:]), true
}

// lastIndexFold finds the last case-insensitive occurrence of sep.
func lastIndexFold(s, sep string) int {
	return strings.LastIndex(strings.ToLower(s), strings.ToLower(sep))
}

var (
	// "30+ days ago" on aggregator snippets carries a plus sign.
	relativeAgoPattern = regexp.MustCompile(`(?i)\b(\d+)\+?\s+(hour|day|week)s?\s+ago\b`)
	shortDatePattern   = regexp.MustCompile(`\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\w*\s+(\d{1,2})(?:,?\s+(\d{4}))?\b`)
)

// parseRelativeDate resolves the date hints search snippets carry: relative
// phrases ("3 days ago", "yesterday") and short month-day forms ("Jan 5" or
// "Jan 5, 2026"). Year-less dates that land in the future roll back a year.
func parseRelativeDate(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)

	if m := relativeAgoPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			var t time.Time
			switch strings.ToLower(m[2]) {
			case "hour":
				t = now.Add(-time.Duration(n) * time.Hour)
			case "day":
				t = now.AddDate(0, 0, -n)
			case "week":
				t = now.AddDate(0, 0, -7*n)
			}
			t = t.UTC()
			return &t
		}
	}
	if strings.Contains(lower, "today") || strings.Contains(lower, "just posted") {
		t := now.UTC()
		return &t
	}
	if strings.Contains(lower, "yesterday") {
		t := now.AddDate(0, 0, -1).UTC()
		return &t
	}

	if m := shortDatePattern.FindStringSubmatch(text); m != nil {
		value := m[0]
		if m[3] == "" {
			value = fmt.Sprintf("%s %s, %d", m[1], m[2], now.Year())
		}
		parsed, err := dateparse.ParseIn(value, now.Location())
		if err == nil {
			if parsed.After(now.AddDate(0, 0, 1)) {
				parsed = parsed.AddDate(-1, 0, 0)
			}
			parsed = parsed.UTC()
			return &parsed
		}
	}

	return nil
}
