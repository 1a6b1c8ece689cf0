package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
)

const (
	smartRecruitersPageSize = 100
	smartRecruitersMaxPages = 20
)

// SmartRecruitersConnector pages through the SmartRecruiters postings API
// with offset/limit query parameters. The listing carries no description, so
// content stays empty and scoring relies on title and location.
type SmartRecruitersConnector struct {
	name string
	deps Deps
}

// NewSmartRecruiters builds the SmartRecruiters connector. The URL template
// is required because the API only exposes internal "ref" links.
func NewSmartRecruiters(name string, src config.SourceDef, deps Deps) (Connector, error) {
	if strings.TrimSpace(src.EndpointTemplate) == "" {
		return nil, fmt.Errorf("source %s: endpointTemplate is required", name)
	}
	if strings.TrimSpace(src.URLTemplate) == "" {
		return nil, fmt.Errorf("source %s: urlTemplate is required", name)
	}
	return &SmartRecruitersConnector{name: name, deps: deps.withDefaults()}, nil
}

func (c *SmartRecruitersConnector) Name() string     { return c.name }
func (c *SmartRecruitersConnector) Platform() string { return "smartrecruiters" }

type smartRecruitersPage struct {
	TotalFound int               `json:"totalFound"`
	Content    []json.RawMessage `json:"content"`
}

type smartRecruitersPosting struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ReleasedDate string `json:"releasedDate"`
	Location     struct {
		City   string `json:"city"`
		Region string `json:"region"`
		Remote bool   `json:"remote"`
	} `json:"location"`
	Company struct {
		Name string `json:"name"`
	} `json:"company"`
}

func (c *SmartRecruitersConnector) Fetch(ctx context.Context, company string, src config.SourceDef) Result {
	opts := optionsFor(src)

	var (
		jobs         []models.RawJob
		responseTime time.Duration
		rateLimited  bool
		now          = time.Now().UTC()
	)
	for page := 0; page < smartRecruitersMaxPages; page++ {
		offset := page * smartRecruitersPageSize
		endpoint := expandTemplate(src.EndpointTemplate, map[string]string{
			"company": company,
			"offset":  strconv.Itoa(offset),
			"limit":   strconv.Itoa(smartRecruitersPageSize),
		})

		fr := c.deps.Fetcher.Fetch(ctx, endpoint, opts)
		responseTime += fr.ResponseTime
		rateLimited = rateLimited || fr.RateLimited
		if fr.Err != nil {
			res := failed(c.name, company, fr, fmt.Errorf("failed to fetch smartrecruiters postings for %s at offset %d: %w", company, offset, fr.Err))
			res.RateLimited = rateLimited
			res.ResponseTime = responseTime
			return res
		}

		var pg smartRecruitersPage
		if err := json.Unmarshal(fr.Body, &pg); err != nil {
			res := failed(c.name, company, fr, decodeErr("smartrecruiters", company, fr, err))
			res.RateLimited = rateLimited
			res.ResponseTime = responseTime
			return res
		}

		for _, raw := range pg.Content {
			var p smartRecruitersPosting
			if err := json.Unmarshal(raw, &p); err != nil {
				c.deps.Logger.Warn("skipping malformed smartrecruiters posting",
					"source", c.name, "company", company, "error", err)
				continue
			}

			title := titleOrDefault(p.Name)
			displayCompany := p.Company.Name
			if displayCompany == "" {
				displayCompany = company
			}
			var parts []string
			if p.Location.City != "" {
				parts = append(parts, p.Location.City)
			}
			if p.Location.Region != "" {
				parts = append(parts, p.Location.Region)
			}

			jobs = append(jobs, models.RawJob{
				Source:      c.name,
				SourceJobID: sourceJobID(p.ID, c.name, company, title),
				Title:       title,
				Company:     displayCompany,
				URL: expandTemplate(src.URLTemplate, map[string]string{
					"company": company,
					"id":      p.ID,
				}),
				LocationRaw: remoteLocation(strings.Join(parts, ", "), p.Location.Remote),
				PostedAt:    parseTimestamp(p.ReleasedDate),
				RawPayload:  string(raw),
				FetchedAt:   now,
			})
		}

		if len(pg.Content) == 0 || offset+len(pg.Content) >= pg.TotalFound {
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
