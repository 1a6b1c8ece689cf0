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

// RecruiteeConnector is the second mixed connector: the offers API first,
// the hosted careers page as fallback.
type RecruiteeConnector struct {
	name string
	deps Deps
	page *PageConnector
}

// NewRecruitee builds the Recruitee connector.
func NewRecruitee(name string, src config.SourceDef, deps Deps) (Connector, error) {
	if strings.TrimSpace(src.EndpointTemplate) == "" {
		return nil, fmt.Errorf("source %s: endpointTemplate is required", name)
	}
	page, err := newPageConnector(name, "recruitee", src, deps)
	if err != nil {
		return nil, err
	}
	return &RecruiteeConnector{name: name, deps: deps.withDefaults(), page: page.(*PageConnector)}, nil
}

func (c *RecruiteeConnector) Name() string     { return c.name }
func (c *RecruiteeConnector) Platform() string { return "recruitee" }

type recruiteeOffers struct {
	Offers []json.RawMessage `json:"offers"`
}

type recruiteeOffer struct {
	ID           json.Number `json:"id"`
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	CareersURL   string      `json:"careers_url"`
	Location     string      `json:"location"`
	Remote       bool        `json:"remote"`
	PublishedAt  string      `json:"published_at"`
	CreatedAt    string      `json:"created_at"`
	Description  string      `json:"description"`
	Requirements string      `json:"requirements"`
}

func (c *RecruiteeConnector) Fetch(ctx context.Context, company string, src config.SourceDef) Result {
	api := c.fetchAPI(ctx, company, src)
	if api.Success {
		return api
	}

	c.deps.Logger.Warn("recruitee API failed, falling back to careers page",
		"source", c.name, "company", company, "error", api.Err)

	page := c.page.Fetch(ctx, company, src)
	page.RateLimited = page.RateLimited || api.RateLimited
	page.ResponseTime += api.ResponseTime
	if !page.Success {
		page.Err = fmt.Errorf("recruitee API failed (%v) and page fallback failed: %w", api.Err, page.Err)
	}
	return page
}

func (c *RecruiteeConnector) fetchAPI(ctx context.Context, company string, src config.SourceDef) Result {
	endpoint := expandTemplate(src.EndpointTemplate, map[string]string{"company": company})
	fr := c.deps.Fetcher.Fetch(ctx, endpoint, optionsFor(src))
	if fr.Err != nil {
		return failed(c.name, company, fr, fmt.Errorf("failed to fetch recruitee offers for %s: %w", company, fr.Err))
	}

	var payload recruiteeOffers
	if err := json.Unmarshal(fr.Body, &payload); err != nil {
		return failed(c.name, company, fr, decodeErr("recruitee", company, fr, err))
	}

	now := time.Now().UTC()
	jobs := make([]models.RawJob, 0, len(payload.Offers))
	for _, raw := range payload.Offers {
		var o recruiteeOffer
		if err := json.Unmarshal(raw, &o); err != nil {
			c.deps.Logger.Warn("skipping malformed recruitee offer",
				"source", c.name, "company", company, "error", err)
			continue
		}

		title := titleOrDefault(o.Title)
		url := o.CareersURL
		if url == "" {
			url = expandTemplate(src.URLTemplate, map[string]string{
				"company": company,
				"id":      o.Slug,
			})
		}
		content := o.Description
		if o.Requirements != "" {
			content = strings.TrimSpace(content + "\n" + o.Requirements)
		}
		postedAt := parseTimestamp(o.PublishedAt)
		if postedAt == nil {
			postedAt = parseTimestamp(o.CreatedAt)
		}

		jobs = append(jobs, models.RawJob{
			Source:      c.name,
			SourceJobID: sourceJobID(o.ID.String(), c.name, company, title),
			Title:       title,
			Company:     company,
			URL:         url,
			LocationRaw: remoteLocation(o.Location, o.Remote),
			Content:     content,
			PostedAt:    postedAt,
			RawPayload:  string(raw),
			FetchedAt:   now,
		})
	}

	return succeeded(c.name, company, jobs, fr)
}
