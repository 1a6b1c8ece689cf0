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

const (
	ashbyPageSize = 100
	ashbyMaxPages = 20
)

// AshbyConnector speaks the Ashby job-board endpoint: a POST with a small
// JSON body, paginated by offset/limit until totalCount is reached.
type AshbyConnector struct {
	name string
	deps Deps
}

// NewAshby builds the Ashby connector. Both templates are required: the
// endpoint for the POST and the URL template for postings that omit jobUrl.
func NewAshby(name string, src config.SourceDef, deps Deps) (Connector, error) {
	if strings.TrimSpace(src.EndpointTemplate) == "" {
		return nil, fmt.Errorf("source %s: endpointTemplate is required", name)
	}
	if strings.TrimSpace(src.URLTemplate) == "" {
		return nil, fmt.Errorf("source %s: urlTemplate is required", name)
	}
	return &AshbyConnector{name: name, deps: deps.withDefaults()}, nil
}

func (c *AshbyConnector) Name() string     { return c.name }
func (c *AshbyConnector) Platform() string { return "ashby" }

type ashbyRequest struct {
	Organization string `json:"organization"`
	Offset       int    `json:"offset"`
	Limit        int    `json:"limit"`
}

type ashbyPage struct {
	Jobs       []json.RawMessage `json:"jobs"`
	TotalCount int               `json:"totalCount"`
}

type ashbyJob struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	JobURL             string `json:"jobUrl"`
	Location           string `json:"location"`
	SecondaryLocations []struct {
		Location string `json:"location"`
	} `json:"secondaryLocations"`
	IsRemote         bool   `json:"isRemote"`
	PublishedAt      string `json:"publishedAt"`
	DescriptionPlain string `json:"descriptionPlain"`
	DescriptionHTML  string `json:"descriptionHtml"`
}

func (c *AshbyConnector) Fetch(ctx context.Context, company string, src config.SourceDef) Result {
	endpoint := expandTemplate(src.EndpointTemplate, map[string]string{"company": company})
	opts := optionsFor(src)

	var (
		jobs         []models.RawJob
		responseTime time.Duration
		rateLimited  bool
		now          = time.Now().UTC()
	)
	for page := 0; page < ashbyMaxPages; page++ {
		offset := page * ashbyPageSize
		body, err := json.Marshal(ashbyRequest{Organization: company, Offset: offset, Limit: ashbyPageSize})
		if err != nil {
			return Result{Source: c.name, Company: company, Err: fmt.Errorf("failed to encode ashby request: %w", err)}
		}

		fr := c.deps.Fetcher.Post(ctx, endpoint, body, opts)
		responseTime += fr.ResponseTime
		rateLimited = rateLimited || fr.RateLimited
		if fr.Err != nil {
			res := failed(c.name, company, fr, fmt.Errorf("failed to fetch ashby board for %s at offset %d: %w", company, offset, fr.Err))
			res.RateLimited = rateLimited
			res.ResponseTime = responseTime
			return res
		}

		var pg ashbyPage
		if err := json.Unmarshal(fr.Body, &pg); err != nil {
			res := failed(c.name, company, fr, decodeErr("ashby", company, fr, err))
			res.RateLimited = rateLimited
			res.ResponseTime = responseTime
			return res
		}

		for _, raw := range pg.Jobs {
			job, ok := c.mapJob(raw, company, src, now)
			if !ok {
				continue
			}
			jobs = append(jobs, job)
		}

		if len(pg.Jobs) == 0 || offset+len(pg.Jobs) >= pg.TotalCount {
			break
		}
	}

	return Result{
		Source:       c.name,
		Company:      company,
		Jobs:         jobs,
		Success:      true,
		RateLimited:  rateLimited,
		ResponseTime: responseTime,
	}
}

func (c *AshbyConnector) mapJob(raw json.RawMessage, company string, src config.SourceDef, now time.Time) (models.RawJob, bool) {
	var j ashbyJob
	if err := json.Unmarshal(raw, &j); err != nil {
		c.deps.Logger.Warn("skipping malformed ashby job",
			"source", c.name, "company", company, "error", err)
		return models.RawJob{}, false
	}

	title := titleOrDefault(j.Title)
	url := j.JobURL
	if url == "" {
		url = expandTemplate(src.URLTemplate, map[string]string{"company": company, "id": j.ID})
	}

	locations := make([]string, 0, 1+len(j.SecondaryLocations))
	if j.Location != "" {
		locations = append(locations, j.Location)
	}
	for _, sec := range j.SecondaryLocations {
		if sec.Location != "" {
			locations = append(locations, sec.Location)
		}
	}
	content := j.DescriptionPlain
	if content == "" {
		content = j.DescriptionHTML
	}

	return models.RawJob{
		Source:      c.name,
		SourceJobID: sourceJobID(j.ID, c.name, company, title),
		Title:       title,
		Company:     company,
		URL:         url,
		LocationRaw: remoteLocation(strings.Join(locations, "; "), j.IsRemote),
		Content:     content,
		PostedAt:    parseTimestamp(j.PublishedAt),
		RawPayload:  string(raw),
		FetchedAt:   now,
	}, true
}
