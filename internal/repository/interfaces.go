// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
)

// RunLogRepository defines methods for pipeline run log data access.
type RunLogRepository interface {
	Create(ctx context.Context, run *models.RunLog) error
	GetByID(ctx context.Context, id string) (*models.RunLog, error)
	// Finish writes the final status, counters, and error list for a run.
	Finish(ctx context.Context, run *models.RunLog) error
	// GetLastCompleted returns the most recently finished successful run.
	GetLastCompleted(ctx context.Context) (*models.RunLog, error)
	GetRecent(ctx context.Context, limit int) ([]*models.RunLog, error)
}

// RawJobRepository defines methods for raw capture data access.
type RawJobRepository interface {
	Create(ctx context.Context, raw *models.RawJob) error
	GetByID(ctx context.Context, id string) (*models.RawJob, error)
	// GetByDate returns raw jobs fetched on the given YYYY-MM-DD date,
	// optionally filtered by source. Used by replay.
	GetByDate(ctx context.Context, date, source string) ([]*models.RawJob, error)
	// DeleteOlderThan purges raw rows fetched before the cutoff.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// JobListParams filters and paginates canonical job listings.
type JobListParams struct {
	Status   string
	Band     string
	Bucket   string
	Source   string
	MinScore int
	Since    time.Time
	Tiers    []string
	Search   string
	Limit    int
	Offset   int
}

// CanonicalJobRepository defines methods for canonical job data access.
type CanonicalJobRepository interface {
	Create(ctx context.Context, job *models.CanonicalJob) error
	GetByID(ctx context.Context, id string) (*models.CanonicalJob, error)
	GetByURLHash(ctx context.Context, hash string) (*models.CanonicalJob, error)
	// GetByFingerprint returns active jobs with the given content
	// fingerprint, oldest first.
	GetByFingerprint(ctx context.Context, fingerprint string) ([]*models.CanonicalJob, error)
	// GetActiveSince returns active jobs first seen after the cutoff,
	// used to build the fuzzy dedup index for a run.
	GetActiveSince(ctx context.Context, since time.Time) ([]*models.CanonicalJob, error)
	// MarkSeen bumps last_seen_at and times_seen on a duplicate hit.
	MarkSeen(ctx context.Context, id string, seenAt time.Time) error
	UpdateScore(ctx context.Context, job *models.CanonicalJob) error
	UpdateStatus(ctx context.Context, id string, status models.JobStatus) error
	MarkNotified(ctx context.Context, id string, at time.Time) error
	// GetUnnotified returns active jobs at or above minScore that never
	// produced an alert, oldest first. Used by the alert resume tool.
	GetUnnotified(ctx context.Context, minScore, limit int) ([]*models.CanonicalJob, error)
	// GetTopSince returns active jobs first seen after the cutoff ordered
	// by score descending. Used by digests.
	GetTopSince(ctx context.Context, since time.Time, minScore, limit int) ([]*models.CanonicalJob, error)
	List(ctx context.Context, params JobListParams) ([]*models.CanonicalJob, int, error)
	// ExpireOlderThan marks active jobs first seen before the cutoff as
	// expired and returns the number changed.
	ExpireOlderThan(ctx context.Context, before time.Time) (int64, error)
	// ArchiveAndPurge archives stale active jobs and purges old raw rows
	// in a single transaction.
	ArchiveAndPurge(ctx context.Context, archiveBefore, purgeBefore time.Time) (archived, purged int64, err error)
}

// DuplicateLinkRepository defines methods for duplicate edge data access.
type DuplicateLinkRepository interface {
	Create(ctx context.Context, link *models.DuplicateLink) error
	GetForJob(ctx context.Context, jobID string) ([]*models.DuplicateLink, error)
}

// AlternateURLRepository defines methods for alternate URL data access.
type AlternateURLRepository interface {
	// Create inserts an alternate URL, silently ignoring a duplicate
	// (canonical_job_id, source) pair.
	Create(ctx context.Context, alt *models.AlternateURL) error
	ListForJob(ctx context.Context, jobID string, limit int) ([]*models.AlternateURL, error)
}

// FitAnalysisRepository defines methods for LLM fit analysis data access.
type FitAnalysisRepository interface {
	// Upsert inserts or replaces the analysis for a canonical job.
	Upsert(ctx context.Context, analysis *models.FitAnalysis) error
	GetByJobID(ctx context.Context, jobID string) (*models.FitAnalysis, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// DiscoveredBoardRepository defines methods for discovered board data access.
type DiscoveredBoardRepository interface {
	// Upsert inserts a board or refreshes an existing one: confidence is
	// raised to the max of old and new, status reset to active, last_seen
	// set to now.
	Upsert(ctx context.Context, board *models.DiscoveredBoard) error
	GetByURL(ctx context.Context, boardURL string) (*models.DiscoveredBoard, error)
	GetActiveByPlatform(ctx context.Context, platform string) ([]*models.DiscoveredBoard, error)
	GetAll(ctx context.Context) ([]*models.DiscoveredBoard, error)
	// RecordPoll updates per-board poll state: a yielding poll stamps
	// last_success_at and clears the zero-yield counter, an empty one
	// increments it.
	RecordPoll(ctx context.Context, id string, jobsYielded int, at time.Time) error
	// DeactivateStale marks boards inactive once they exceed the
	// zero-yield run threshold. Returns the number deactivated.
	DeactivateStale(ctx context.Context, maxEmptyRuns int) (int64, error)
}

// SourceMetricRepository defines methods for per-source daily metrics.
type SourceMetricRepository interface {
	// Record adds the given deltas into the (source, date) row, creating
	// it when absent.
	Record(ctx context.Context, metric *models.SourceMetric) error
	GetByDateRange(ctx context.Context, startDate, endDate string) ([]*models.SourceMetric, error)
	GetBySource(ctx context.Context, source, startDate, endDate string) ([]*models.SourceMetric, error)
}

// CheckpointRepository defines methods for connector health checkpoints.
type CheckpointRepository interface {
	// RecordSuccess resets the consecutive failure counter.
	RecordSuccess(ctx context.Context, source, company string, at time.Time) error
	// RecordFailure increments the counter and returns the new value.
	RecordFailure(ctx context.Context, source, company, errMsg string, at time.Time) (int, error)
	Get(ctx context.Context, source, company string) (*models.ConnectorCheckpoint, error)
	GetFailing(ctx context.Context, minConsecutive int) ([]*models.ConnectorCheckpoint, error)
}

// RetryQueueRepository defines methods for the notification retry queue.
type RetryQueueRepository interface {
	Enqueue(ctx context.Context, item *models.RetryQueueItem) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]*models.RetryQueueItem, error)
	// MarkFailed increments the retry counter and schedules the next attempt.
	MarkFailed(ctx context.Context, id string, nextRetry time.Time, lastError string) error
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// AnalyticsRepository defines aggregate reporting queries used by the API
// and the weekly digest.
type AnalyticsRepository interface {
	GetOverview(ctx context.Context, since time.Time) (*AnalyticsOverview, error)
	// GetSourceBreakdown aggregates per-source metrics between the given
	// YYYY-MM-DD dates inclusive.
	GetSourceBreakdown(ctx context.Context, startDate, endDate string) ([]*SourceStats, error)
	GetWeeklySummary(ctx context.Context, since time.Time) (*WeeklySummary, error)
}

// Repositories holds all repository instances.
type Repositories struct {
	Run          RunLogRepository
	RawJob       RawJobRepository
	Canonical    CanonicalJobRepository
	Duplicate    DuplicateLinkRepository
	AlternateURL AlternateURLRepository
	Analysis     FitAnalysisRepository
	Board        DiscoveredBoardRepository
	SourceMetric SourceMetricRepository
	Checkpoint   CheckpointRepository
	RetryQueue   RetryQueueRepository
	Analytics    AnalyticsRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Run:          NewSQLiteRunLogRepository(db),
		RawJob:       NewSQLiteRawJobRepository(db),
		Canonical:    NewSQLiteCanonicalJobRepository(db),
		Duplicate:    NewSQLiteDuplicateLinkRepository(db),
		AlternateURL: NewSQLiteAlternateURLRepository(db),
		Analysis:     NewSQLiteFitAnalysisRepository(db),
		Board:        NewSQLiteDiscoveredBoardRepository(db),
		SourceMetric: NewSQLiteSourceMetricRepository(db),
		Checkpoint:   NewSQLiteCheckpointRepository(db),
		RetryQueue:   NewSQLiteRetryQueueRepository(db),
		Analytics:    NewSQLiteAnalyticsRepository(db),
	}
}
