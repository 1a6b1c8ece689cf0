package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
)

// GreenhouseConnector reads the public Greenhouse board API: one GET per
// company returning a jobs array with stable numeric ids and absolute URLs.
type GreenhouseConnector struct {
	name string
	deps Deps
}

// NewGreenhouse builds the Greenhouse connector, rejecting a source config
// without an endpoint template.
func NewGreenhouse(name string, src config.SourceDef, deps Deps) (Connector, error) {
	if strings.TrimSpace(src.EndpointTemplate) == "" {
		return nil, fmt.Errorf("source %s: endpointTemplate is required", name)
	}
	return &GreenhouseConnector{name: name, deps: deps.withDefaults()}, nil
}

func (c *GreenhouseConnector) Name() string     { return c.name }
func (c *GreenhouseConnector) Platform() string { return "greenhouse" }

type greenhouseJob struct {
	ID             json.Number `json:"id"`
	Title          string      `json:"title"`
	AbsoluteURL    string      `json:"absolute_url"`
	Content        string      `json:"content"`
	UpdatedAt      string      `json:"updated_at"`
	FirstPublished string      `json:"first_published"`
	Location       struct {
		Name string `json:"name"`
	} `json:"location"`
}

type greenhouseBoard struct {
	Jobs []json.RawMessage `json:"jobs"`
}

func (c *GreenhouseConnector) Fetch(ctx context.Context, company string, src config.SourceDef) Result {
	endpoint := expandTemplate(src.EndpointTemplate, map[string]string{"company": company})
	fr := c.deps.Fetcher.Fetch(ctx, endpoint, optionsFor(src))
	if fr.Err != nil {
		return failed(c.name, company, fr, fmt.Errorf("failed to fetch greenhouse board for %s: %w", company, fr.Err))
	}

	var board greenhouseBoard
	if err := json.Unmarshal(fr.Body, &board); err != nil {
		return failed(c.name, company, fr, decodeErr("greenhouse", company, fr, err))
	}

	now := time.Now().UTC()
	jobs := make([]models.RawJob, 0, len(board.Jobs))
	for _, raw := range board.Jobs {
		var j greenhouseJob
		if err := json.Unmarshal(raw, &j); err != nil {
			c.deps.Logger.Warn("skipping malformed greenhouse job",
				"source", c.name, "company", company, "error", err)
			continue
		}

		title := titleOrDefault(j.Title)
		url := j.AbsoluteURL
		if url == "" && src.URLTemplate != "" {
			url = expandTemplate(src.URLTemplate, map[string]string{
				"company": company,
				"id":      j.ID.String(),
			})
		}
		postedAt := parseTimestamp(j.FirstPublished)
		if postedAt == nil {
			postedAt = parseTimestamp(j.UpdatedAt)
		}

		jobs = append(jobs, models.RawJob{
			Source:      c.name,
			SourceJobID: sourceJobID(j.ID.String(), c.name, company, title),
			Title:       title,
			Company:     company,
			URL:         url,
			LocationRaw: j.Location.Name,
			// The board API escapes the HTML body once more; unescape here
			// so downstream tag stripping sees real markup.
			Content:    html.UnescapeString(j.Content),
			PostedAt:   postedAt,
			RawPayload: string(raw),
			FetchedAt:  now,
		})
	}

	return succeeded(c.name, company, jobs, fr)
}
