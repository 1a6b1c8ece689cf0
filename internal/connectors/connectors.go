// Package connectors adapts each job source's native protocol to a uniform
// RawJob stream. API connectors speak JSON, page connectors parse careers
// pages with selector maps, and search connectors build jobs out of
// search-API results.
package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/fetch"
	"github.com/jmylchreest/jobsift/internal/fingerprint"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/search"
)

// untitledRole is used when a posting arrives without a usable title.
const untitledRole = "Untitled Role"

// Connector adapts one source's protocol to a uniform result shape.
type Connector interface {
	// Name is the configured source name (the sources.json key).
	Name() string
	// Platform identifies the ATS or search backend the connector speaks to.
	Platform() string
	// Fetch retrieves postings for one company. Search-based connectors
	// ignore the company argument and run their configured queries instead.
	Fetch(ctx context.Context, company string, src config.SourceDef) Result
}

// Result is the outcome of one connector fetch.
type Result struct {
	Source       string
	Company      string
	Jobs         []models.RawJob
	Success      bool
	Err          error
	RateLimited  bool
	ResponseTime time.Duration
}

// Deps carries the shared clients connectors are built with.
type Deps struct {
	Fetcher  *fetch.Client
	Searcher *search.Client
	Logger   *slog.Logger
	Location *time.Location
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return d
}

// titleOrDefault trims a posting title, substituting a placeholder when the
// platform sent nothing usable.
func titleOrDefault(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return untitledRole
	}
	return title
}

// sourceJobID prefers the platform's stable id and falls back to a synthetic
// one derived from source, company and title.
func sourceJobID(id, source, company, title string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return fingerprint.SyntheticJobID(source, company, title)
}

// expandTemplate substitutes {key} placeholders in a URL template.
func expandTemplate(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{"+k+"}", v)
	}
	return tmpl
}

// remoteLocation suffixes a location with " (remote)" when the posting is
// flagged remote but the free text does not already say so.
func remoteLocation(locationRaw string, remote bool) string {
	if !remote || strings.Contains(strings.ToLower(locationRaw), "remote") {
		return locationRaw
	}
	return strings.TrimSpace(locationRaw + " (remote)")
}

// parseTimestamp parses a platform timestamp leniently. Empty or
// unparseable values become nil; the normalizer treats nil as low
// confidence downstream.
func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func parseEpochMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// optionsFor maps per-source fetch tuning onto client options. Zero values
// fall through to the client defaults.
func optionsFor(src config.SourceDef) fetch.Options {
	return fetch.Options{
		Timeout:      time.Duration(src.TimeoutMs) * time.Millisecond,
		MaxRetries:   src.MaxRetries,
		BackoffStart: time.Duration(src.BackoffStartMs) * time.Millisecond,
	}
}

// decodeErr wraps a payload decode failure, preferring the bot-protection
// description when the body looked like a block page.
func decodeErr(platform, company string, fr fetch.Result, err error) error {
	if fr.Blocked.Detected {
		return fmt.Errorf("%s board for %s returned a block page: %s", platform, company, fr.Blocked.Description)
	}
	return fmt.Errorf("failed to parse %s response for %s: %w", platform, company, err)
}

// failed builds a Result for a fetch that produced no usable jobs, keeping
// the rate-limit flag and timing from the transport attempt.
func failed(source, company string, fr fetch.Result, err error) Result {
	return Result{
		Source:       source,
		Company:      company,
		Err:          err,
		RateLimited:  fr.RateLimited,
		ResponseTime: fr.ResponseTime,
	}
}

// succeeded builds a Result for a fetch that parsed cleanly.
func succeeded(source, company string, jobs []models.RawJob, fr fetch.Result) Result {
	return Result{
		Source:       source,
		Company:      company,
		Jobs:         jobs,
		Success:      true,
		RateLimited:  fr.RateLimited,
		ResponseTime: fr.ResponseTime,
	}
}
