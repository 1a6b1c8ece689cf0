package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
)

// WorkableConnector is a mixed connector: it tries the Workable widget API
// first and falls back to parsing the hosted careers page when the API is
// unavailable for an account.
type WorkableConnector struct {
	name string
	deps Deps
	page *PageConnector
}

// NewWorkable builds the Workable connector. The endpoint template points at
// the widget API and the URL template at the careers page used as fallback.
func NewWorkable(name string, src config.SourceDef, deps Deps) (Connector, error) {
	if strings.TrimSpace(src.EndpointTemplate) == "" {
		return nil, fmt.Errorf("source %s: endpointTemplate is required", name)
	}
	page, err := newPageConnector(name, "workable", src, deps)
	if err != nil {
		return nil, err
	}
	return &WorkableConnector{name: name, deps: deps.withDefaults(), page: page.(*PageConnector)}, nil
}

func (c *WorkableConnector) Name() string     { return c.name }
func (c *WorkableConnector) Platform() string { return "workable" }

type workableAccount struct {
	Name string            `json:"name"`
	Jobs []json.RawMessage `json:"jobs"`
}

type workableJob struct {
	Title         string `json:"title"`
	Shortcode     string `json:"shortcode"`
	URL           string `json:"url"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Telecommuting bool   `json:"telecommuting"`
	PublishedOn   string `json:"published_on"`
	Description   string `json:"description"`
}

func (c *WorkableConnector) Fetch(ctx context.Context, company string, src config.SourceDef) Result {
	api := c.fetchAPI(ctx, company, src)
	if api.Success {
		return api
	}

	c.deps.Logger.Warn("workable API failed, falling back to careers page",
		"source", c.name, "company", company, "error", api.Err)

	page := c.page.Fetch(ctx, company, src)
	page.RateLimited = page.RateLimited || api.RateLimited
	page.ResponseTime += api.ResponseTime
	if !page.Success {
		page.Err = fmt.Errorf("workable API failed (%v) and page fallback failed: %w", api.Err, page.Err)
	}
	return page
}

func (c *WorkableConnector) fetchAPI(ctx context.Context, company string, src config.SourceDef) Result {
	endpoint := expandTemplate(src.EndpointTemplate, map[string]string{"company": company})
	fr := c.deps.Fetcher.Fetch(ctx, endpoint, optionsFor(src))
	if fr.Err != nil {
		return failed(c.name, company, fr, fmt.Errorf("failed to fetch workable account %s: %w", company, fr.Err))
	}

	var account workableAccount
	if err := json.Unmarshal(fr.Body, &account); err != nil {
		return failed(c.name, company, fr, decodeErr("workable", company, fr, err))
	}

	displayCompany := account.Name
	if displayCompany == "" {
		displayCompany = company
	}

	now := time.Now().UTC()
	jobs := make([]models.RawJob, 0, len(account.Jobs))
	for _, raw := range account.Jobs {
		var j workableJob
		if err := json.Unmarshal(raw, &j); err != nil {
			c.deps.Logger.Warn("skipping malformed workable job",
				"source", c.name, "company", company, "error", err)
			continue
		}

		title := titleOrDefault(j.Title)
		url := j.URL
		if url == "" && src.URLTemplate != "" {
			url = expandTemplate(src.URLTemplate, map[string]string{
				"company": company,
				"id":      j.Shortcode,
			})
		}
		var parts []string
		for _, p := range []string{j.City, j.State, j.Country} {
			if p != "" {
				parts = append(parts, p)
			}
		}

		jobs = append(jobs, models.RawJob{
			Source:      c.name,
			SourceJobID: sourceJobID(j.Shortcode, c.name, company, title),
			Title:       title,
			Company:     displayCompany,
			URL:         url,
			LocationRaw: remoteLocation(strings.Join(parts, ", "), j.Telecommuting),
			Content:     j.Description,
			PostedAt:    parseTimestamp(j.PublishedOn),
			RawPayload:  string(raw),
			FetchedAt:   now,
		})
	}

	return succeeded(c.name, company, jobs, fr)
}
