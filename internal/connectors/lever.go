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

// LeverConnector reads the public Lever postings API, which returns a flat
// array of postings rather than an envelope.
type LeverConnector struct {
	name string
	deps Deps
}

// NewLever builds the Lever connector, rejecting a source config without an
// endpoint template.
func NewLever(name string, src config.SourceDef, deps Deps) (Connector, error) {
	if strings.TrimSpace(src.EndpointTemplate) == "" {
		return nil, fmt.Errorf("source %s: endpointTemplate is required", name)
	}
	return &LeverConnector{name: name, deps: deps.withDefaults()}, nil
}

func (c *LeverConnector) Name() string     { return c.name }
func (c *LeverConnector) Platform() string { return "lever" }

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	Description      string `json:"description"`
	DescriptionPlain string `json:"descriptionPlain"`
	WorkplaceType    string `json:"workplaceType"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
}

func (c *LeverConnector) Fetch(ctx context.Context, company string, src config.SourceDef) Result {
	endpoint := expandTemplate(src.EndpointTemplate, map[string]string{"company": company})
	fr := c.deps.Fetcher.Fetch(ctx, endpoint, optionsFor(src))
	if fr.Err != nil {
		return failed(c.name, company, fr, fmt.Errorf("failed to fetch lever postings for %s: %w", company, fr.Err))
	}

	var postings []json.RawMessage
	if err := json.Unmarshal(fr.Body, &postings); err != nil {
		return failed(c.name, company, fr, decodeErr("lever", company, fr, err))
	}

	now := time.Now().UTC()
	jobs := make([]models.RawJob, 0, len(postings))
	for _, raw := range postings {
		var p leverPosting
		if err := json.Unmarshal(raw, &p); err != nil {
			c.deps.Logger.Warn("skipping malformed lever posting",
				"source", c.name, "company", company, "error", err)
			continue
		}

		title := titleOrDefault(p.Text)
		url := p.HostedURL
		if url == "" && src.URLTemplate != "" {
			url = expandTemplate(src.URLTemplate, map[string]string{
				"company": company,
				"id":      p.ID,
			})
		}
		content := p.DescriptionPlain
		if content == "" {
			content = p.Description
		}

		jobs = append(jobs, models.RawJob{
			Source:      c.name,
			SourceJobID: sourceJobID(p.ID, c.name, company, title),
			Title:       title,
			Company:     company,
			URL:         url,
			LocationRaw: remoteLocation(p.Categories.Location, strings.EqualFold(p.WorkplaceType, "remote")),
			Content:     content,
			PostedAt:    parseEpochMillis(p.CreatedAt),
			RawPayload:  string(raw),
			FetchedAt:   now,
		})
	}

	return succeeded(c.name, company, jobs, fr)
}
