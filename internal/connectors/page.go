package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/protection"
)

// jobPathIndicators mark anchor paths that look like individual postings.
// The single-letter forms are the Workable and Recruitee hosted-page shapes.
var jobPathIndicators = []string{"/job", "/jobs/", "/careers/", "/position", "/opening", "/j/", "/o/"}

// skipAnchorTexts are navigation links the heuristic pass must ignore.
var skipAnchorTexts = map[string]bool{
	"apply":      true,
	"apply now":  true,
	"learn more": true,
	"view all":   true,
	"see all":    true,
	"read more":  true,
}

// pageEntry is one job link extracted from a careers page.
type pageEntry struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Location string `json:"location,omitempty"`
}

// parsePage extracts job links from a careers page. The configured selector
// pass runs first; when it yields nothing the anchor heuristic scans every
// link whose path looks like a posting.
func parsePage(pageURL string, body []byte, selectors map[string]string) ([]pageEntry, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page URL %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse careers page: %w", err)
	}

	entries := selectorPass(doc, base, selectors)
	if len(entries) == 0 {
		entries = heuristicPass(doc, base)
	}
	return entries, nil
}

func selectorPass(doc *goquery.Document, base *url.URL, selectors map[string]string) []pageEntry {
	container := selectors["container"]
	if container == "" {
		return nil
	}

	var entries []pageEntry
	seen := map[string]bool{}
	doc.Find(container).Each(func(_ int, s *goquery.Selection) {
		link := s
		if sel := selectors["url"]; sel != "" {
			link = s.Find(sel).First()
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := resolveHref(base, href)
		if resolved == "" || seen[resolved] {
			return
		}

		title := strings.TrimSpace(s.Text())
		if sel := selectors["title"]; sel != "" {
			title = strings.TrimSpace(s.Find(sel).First().Text())
		}
		location := ""
		if sel := selectors["location"]; sel != "" {
			location = strings.TrimSpace(s.Find(sel).First().Text())
		}

		seen[resolved] = true
		entries = append(entries, pageEntry{Title: title, URL: resolved, Location: location})
	})
	return entries
}

func heuristicPass(doc *goquery.Document, base *url.URL) []pageEntry {
	var entries []pageEntry
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolveHref(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		parsed, err := url.Parse(resolved)
		if err != nil || !looksLikeJobPath(parsed.Path) {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" || skipAnchorTexts[strings.ToLower(text)] {
			return
		}

		seen[resolved] = true
		entries = append(entries, pageEntry{Title: text, URL: resolved})
	})
	return entries
}

// resolveHref resolves a possibly-relative href against the page URL.
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func looksLikeJobPath(path string) bool {
	path = strings.ToLower(path)
	for _, indicator := range jobPathIndicators {
		if strings.Contains(path, indicator) {
			return true
		}
	}
	return false
}

// PageConnector covers the ATS platforms without a public JSON API. It
// fetches the hosted careers page and extracts postings with parsePage.
type PageConnector struct {
	name     string
	platform string
	deps     Deps
}

func newPageConnector(name, platform string, src config.SourceDef, deps Deps) (Connector, error) {
	if strings.TrimSpace(src.URLTemplate) == "" {
		return nil, fmt.Errorf("source %s: urlTemplate is required", name)
	}
	return &PageConnector{name: name, platform: platform, deps: deps.withDefaults()}, nil
}

// NewBambooHR builds the BambooHR careers-page connector.
func NewBambooHR(name string, src config.SourceDef, deps Deps) (Connector, error) {
	return newPageConnector(name, "bamboohr", src, deps)
}

// NewJobvite builds the Jobvite careers-page connector.
func NewJobvite(name string, src config.SourceDef, deps Deps) (Connector, error) {
	return newPageConnector(name, "jobvite", src, deps)
}

// NewICIMS builds the iCIMS careers-page connector. It is not registered by
// default but follows the same contract as the other page parsers.
func NewICIMS(name string, src config.SourceDef, deps Deps) (Connector, error) {
	return newPageConnector(name, "icims", src, deps)
}

func (c *PageConnector) Name() string     { return c.name }
func (c *PageConnector) Platform() string { return c.platform }

func (c *PageConnector) Fetch(ctx context.Context, company string, src config.SourceDef) Result {
	pageURL := expandTemplate(src.URLTemplate, map[string]string{"company": company})
	fr := c.deps.Fetcher.Fetch(ctx, pageURL, optionsFor(src))
	if fr.Err != nil {
		return failed(c.name, company, fr, fmt.Errorf("failed to fetch %s careers page for %s: %w", c.platform, company, fr.Err))
	}

	entries, err := parsePage(pageURL, fr.Body, src.Selectors)
	if err != nil {
		return failed(c.name, company, fr, err)
	}
	if len(entries) == 0 {
		// A thin page trips the empty-content heuristic too; that is just
		// a board with nothing on it, not a block.
		if fr.Blocked.Detected && fr.Blocked.Signal != protection.SignalEmptyContent {
			return failed(c.name, company, fr, fmt.Errorf("%s careers page for %s returned a block page: %s", c.platform, company, fr.Blocked.Description))
		}
		return failed(c.name, company, fr, fmt.Errorf("no job links found on %s careers page for %s", c.platform, company))
	}

	now := time.Now().UTC()
	jobs := make([]models.RawJob, 0, len(entries))
	for _, entry := range entries {
		title := titleOrDefault(entry.Title)
		payload, _ := json.Marshal(entry)

		jobs = append(jobs, models.RawJob{
			Source:      c.name,
			SourceJobID: sourceJobID("", c.name, company, title),
			Title:       title,
			Company:     company,
			URL:         entry.URL,
			LocationRaw: entry.Location,
			RawPayload:  string(payload),
			FetchedAt:   now,
		})
	}

	return succeeded(c.name, company, jobs, fr)
}
