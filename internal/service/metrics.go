package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmylchreest/jobsift/internal/connectors"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// sourceAccumulator tallies per-source counters in memory over one pipeline
// run and flushes them as a single additive upsert per source at the end.
type sourceAccumulator struct {
	date    string
	metrics map[string]*models.SourceMetric
}

func newSourceAccumulator(date string) *sourceAccumulator {
	return &sourceAccumulator{date: date, metrics: make(map[string]*models.SourceMetric)}
}

func (a *sourceAccumulator) get(source string) *models.SourceMetric {
	if m, ok := a.metrics[source]; ok {
		return m
	}
	m := &models.SourceMetric{Source: source, Date: a.date}
	a.metrics[source] = m
	return m
}

// recordFetch tallies one connector fetch outcome: job volume, response
// time, success or failure, and rate limiting.
func (a *sourceAccumulator) recordFetch(res connectors.Result) {
	m := a.get(res.Source)
	m.JobsFound += len(res.Jobs)
	m.ResponseTimeTotalMs += int(res.ResponseTime.Milliseconds())
	m.ResponseCount++
	if res.Success {
		m.SuccessCount++
	} else {
		m.FailureCount++
	}
	if res.RateLimited {
		m.RateLimitHits++
	}
}

func (a *sourceAccumulator) recordNew(source string)          { a.get(source).JobsNew++ }
func (a *sourceAccumulator) recordDuplicate(source string)    { a.get(source).JobsDuplicate++ }
func (a *sourceAccumulator) recordParseFailure(source string) { a.get(source).ParseFailures++ }

// flush commits every accumulated source row. Sources flush independently;
// one failure does not block the rest.
func (a *sourceAccumulator) flush(ctx context.Context, repo repository.SourceMetricRepository) []error {
	sources := make([]string, 0, len(a.metrics))
	for source := range a.metrics {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var errs []error
	for _, source := range sources {
		if err := repo.Record(ctx, a.metrics[source]); err != nil {
			errs = append(errs, fmt.Errorf("failed to record metrics for %s: %w", source, err))
		}
	}
	return errs
}
