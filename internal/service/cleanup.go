package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/fetch"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// expiredIndicators are body phrases that mark a posting as closed even when
// the page itself still answers 200.
var expiredIndicators = []string{
	"no longer accepting applications",
	"no longer accepting",
	"position has been filled",
	"this position has been closed",
	"job not found",
	"posting has expired",
	"this job is no longer available",
}

// expireLookbackDays bounds which active jobs the expiry probe visits; older
// ones age out through archiving instead.
const expireLookbackDays = 45

// CleanupResult summarizes one cleanup invocation.
type CleanupResult struct {
	Probed   int
	Expired  int
	Archived int64
	Purged   int64
	Errors   []error
}

// CleanupService retires dead postings: live-probing recent active job URLs
// for 404s and closed-posting pages, and archiving or purging rows past
// their retention windows.
type CleanupService struct {
	canonical repository.CanonicalJobRepository
	fetcher   *fetch.Client
	cfg       *config.Config
	logger    *slog.Logger
}

// NewCleanupService creates a cleanup service.
func NewCleanupService(canonical repository.CanonicalJobRepository, fetcher *fetch.Client, cfg *config.Config, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		canonical: canonical,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger.With("component", "cleanup"),
	}
}

// ExpireDead probes the URLs of recently seen active jobs and marks the
// dead ones expired: a 404/410 on HEAD or GET, or a 200 whose body carries a
// closed-posting phrase. Probes are batched with polite pacing; an
// unreachable page is left alone rather than guessed at.
func (s *CleanupService) ExpireDead(ctx context.Context, now time.Time) (*CleanupResult, error) {
	result := &CleanupResult{}

	since := now.AddDate(0, 0, -expireLookbackDays)
	jobs, err := s.canonical.GetActiveSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load active jobs: %w", err)
	}
	if len(jobs) == 0 {
		s.logger.Info("no active jobs to probe")
		return result, nil
	}

	byURL := make(map[string]*models.CanonicalJob, len(jobs))
	urls := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if job.URL == "" {
			continue
		}
		if _, ok := byURL[job.URL]; ok {
			continue
		}
		byURL[job.URL] = job
		urls = append(urls, job.URL)
	}

	s.logger.Info("probing active job urls", "count", len(urls))
	probes := fetch.BatchFetch(ctx, urls, s.probe, fetch.BatchOptions{
		BatchSize:  constants.DefaultBatchSize,
		BatchPause: constants.DefaultBatchPause,
	})

	for i, dead := range probes {
		result.Probed++
		if !dead {
			continue
		}
		job := byURL[urls[i]]
		if err := s.canonical.UpdateStatus(ctx, job.ID, models.JobStatusExpired); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to expire %s: %w", job.ID, err))
			continue
		}
		result.Expired++
		s.logger.Info("job expired", "job_id", job.ID, "title", job.Title, "url", job.URL)
	}

	s.logger.Info("expiry probe finished", "probed", result.Probed, "expired", result.Expired, "errors", len(result.Errors))
	return result, nil
}

// probe reports whether the posting at url is gone. HEAD answers the cheap
// cases; anything alive gets a GET so the body can be checked for
// closed-posting phrases.
func (s *CleanupService) probe(ctx context.Context, url string) bool {
	opts := fetch.Options{Timeout: constants.DefaultFetchTimeout, MaxRetries: 1}

	head := s.fetcher.Head(ctx, url, opts)
	if isGoneStatus(head.StatusCode) {
		return true
	}
	if head.Err != nil && head.StatusCode == 0 {
		// Network failure, not a verdict.
		return false
	}

	got := s.fetcher.Fetch(ctx, url, opts)
	if isGoneStatus(got.StatusCode) {
		return true
	}
	if got.Err != nil || got.StatusCode != http.StatusOK {
		return false
	}

	body := strings.ToLower(string(got.Body))
	for _, phrase := range expiredIndicators {
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

func isGoneStatus(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

// ArchiveAndPurge archives active jobs older than the configured job age and
// purges raw captures past their retention, in one transaction.
func (s *CleanupService) ArchiveAndPurge(ctx context.Context, now time.Time) (*CleanupResult, error) {
	archiveBefore := now.AddDate(0, 0, -s.cfg.MaxJobAgeDays)
	purgeBefore := now.AddDate(0, 0, -s.cfg.RawRetentionDays)

	archived, purged, err := s.canonical.ArchiveAndPurge(ctx, archiveBefore, purgeBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to archive and purge: %w", err)
	}

	s.logger.Info("archive and purge finished", "archived", archived, "purged", purged)
	return &CleanupResult{Archived: archived, Purged: purged}, nil
}
