package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
)

// AnalyticsOverview represents aggregated pipeline statistics.
type AnalyticsOverview struct {
	TotalJobs     int     `json:"total_jobs"`
	ActiveJobs    int     `json:"active_jobs"`
	AppliedJobs   int     `json:"applied_jobs"`
	DismissedJobs int     `json:"dismissed_jobs"`
	ExpiredJobs   int     `json:"expired_jobs"`
	ArchivedJobs  int     `json:"archived_jobs"`
	NewInPeriod   int     `json:"new_in_period"`
	AnalyzedJobs  int     `json:"analyzed_jobs"`
	AverageScore  float64 `json:"average_score"`
	TopPriority   int     `json:"top_priority"`
	GoodMatch     int     `json:"good_match"`
	WorthALook    int     `json:"worth_a_look"`
}

// SourceStats represents aggregated per-source metrics over a window.
type SourceStats struct {
	Source            string  `json:"source"`
	JobsFound         int     `json:"jobs_found"`
	JobsNew           int     `json:"jobs_new"`
	JobsDuplicate     int     `json:"jobs_duplicate"`
	ParseFailures     int     `json:"parse_failures"`
	RateLimitHits     int     `json:"rate_limit_hits"`
	ResponseTimeAvgMs float64 `json:"response_time_avg_ms"`
	SuccessRate       float64 `json:"success_rate"`
}

// CompanyCount is a company with its posting count.
type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

// WeeklySummary represents the weekly report numbers.
type WeeklySummary struct {
	NewJobs       int            `json:"new_jobs"`
	AnalyzedJobs  int            `json:"analyzed_jobs"`
	AlertsSent    int            `json:"alerts_sent"`
	TopPriority   int            `json:"top_priority"`
	GoodMatch     int            `json:"good_match"`
	WorthALook    int            `json:"worth_a_look"`
	Applied       int            `json:"applied"`
	Dismissed     int            `json:"dismissed"`
	RunsCompleted int            `json:"runs_completed"`
	RunsFailed    int            `json:"runs_failed"`
	TopCompanies  []CompanyCount `json:"top_companies"`
}

// SQLiteAnalyticsRepository implements analytics queries for SQLite.
type SQLiteAnalyticsRepository struct {
	db *sql.DB
}

// NewSQLiteAnalyticsRepository creates a new analytics repository.
func NewSQLiteAnalyticsRepository(db *sql.DB) *SQLiteAnalyticsRepository {
	return &SQLiteAnalyticsRepository{db: db}
}

// GetOverview returns aggregated statistics; the period counters cover
// jobs first seen after the cutoff.
func (r *SQLiteAnalyticsRepository) GetOverview(ctx context.Context, since time.Time) (*AnalyticsOverview, error) {
	query := `
		SELECT
			COUNT(*) as total_jobs,
			SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END) as active_jobs,
			SUM(CASE WHEN status = 'applied' THEN 1 ELSE 0 END) as applied_jobs,
			SUM(CASE WHEN status = 'dismissed' THEN 1 ELSE 0 END) as dismissed_jobs,
			SUM(CASE WHEN status = 'expired' THEN 1 ELSE 0 END) as expired_jobs,
			SUM(CASE WHEN status = 'archived' THEN 1 ELSE 0 END) as archived_jobs,
			SUM(CASE WHEN first_seen_at >= ? THEN 1 ELSE 0 END) as new_in_period,
			COALESCE(AVG(CASE WHEN status = 'active' THEN score END), 0) as average_score,
			SUM(CASE WHEN status = 'active' AND score_band = 'top_priority' THEN 1 ELSE 0 END) as top_priority,
			SUM(CASE WHEN status = 'active' AND score_band = 'good_match' THEN 1 ELSE 0 END) as good_match,
			SUM(CASE WHEN status = 'active' AND score_band = 'worth_a_look' THEN 1 ELSE 0 END) as worth_a_look
		FROM jobs_canonical
	`
	var overview AnalyticsOverview
	err := r.db.QueryRowContext(ctx, query, since.Format(time.RFC3339)).Scan(
		&overview.TotalJobs,
		&overview.ActiveJobs,
		&overview.AppliedJobs,
		&overview.DismissedJobs,
		&overview.ExpiredJobs,
		&overview.ArchivedJobs,
		&overview.NewInPeriod,
		&overview.AverageScore,
		&overview.TopPriority,
		&overview.GoodMatch,
		&overview.WorthALook,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics overview: %w", err)
	}

	var analyzed int
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fit_analyses WHERE analyzed_at >= ?",
		since.Format(time.RFC3339),
	).Scan(&analyzed)
	if err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}
	overview.AnalyzedJobs = analyzed

	return &overview, nil
}

// GetSourceBreakdown returns per-source aggregates between the given
// YYYY-MM-DD dates inclusive.
func (r *SQLiteAnalyticsRepository) GetSourceBreakdown(ctx context.Context, startDate, endDate string) ([]*SourceStats, error) {
	query := `
		SELECT
			source,
			SUM(jobs_found) as jobs_found,
			SUM(jobs_new) as jobs_new,
			SUM(jobs_duplicate) as jobs_duplicate,
			SUM(parse_failures) as parse_failures,
			SUM(rate_limit_hits) as rate_limit_hits,
			SUM(response_time_total_ms) as response_time_total_ms,
			SUM(response_count) as response_count,
			SUM(success_count) as success_count,
			SUM(failure_count) as failure_count
		FROM source_metrics
		WHERE date >= ? AND date <= ?
		GROUP BY source
		ORDER BY jobs_found DESC
	`
	rows, err := r.db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query source breakdown: %w", err)
	}
	defer rows.Close()

	var stats []*SourceStats
	for rows.Next() {
		var s SourceStats
		var responseTimeTotal, responseCount, successCount, failureCount int

		err := rows.Scan(
			&s.Source, &s.JobsFound, &s.JobsNew, &s.JobsDuplicate,
			&s.ParseFailures, &s.RateLimitHits,
			&responseTimeTotal, &responseCount, &successCount, &failureCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source stats: %w", err)
		}

		if responseCount > 0 {
			s.ResponseTimeAvgMs = float64(responseTimeTotal) / float64(responseCount)
		}
		if total := successCount + failureCount; total > 0 {
			s.SuccessRate = float64(successCount) / float64(total)
		}
		stats = append(stats, &s)
	}

	return stats, rows.Err()
}

// GetWeeklySummary returns the counts for a weekly report covering jobs
// and runs since the cutoff.
func (r *SQLiteAnalyticsRepository) GetWeeklySummary(ctx context.Context, since time.Time) (*WeeklySummary, error) {
	cutoff := since.Format(time.RFC3339)

	var summary WeeklySummary
	jobsQuery := `
		SELECT
			COUNT(*) as new_jobs,
			SUM(CASE WHEN score_band = 'top_priority' THEN 1 ELSE 0 END) as top_priority,
			SUM(CASE WHEN score_band = 'good_match' THEN 1 ELSE 0 END) as good_match,
			SUM(CASE WHEN score_band = 'worth_a_look' THEN 1 ELSE 0 END) as worth_a_look,
			SUM(CASE WHEN status = 'applied' THEN 1 ELSE 0 END) as applied,
			SUM(CASE WHEN status = 'dismissed' THEN 1 ELSE 0 END) as dismissed
		FROM jobs_canonical
		WHERE first_seen_at >= ?
	`
	err := r.db.QueryRowContext(ctx, jobsQuery, cutoff).Scan(
		&summary.NewJobs,
		&summary.TopPriority,
		&summary.GoodMatch,
		&summary.WorthALook,
		&summary.Applied,
		&summary.Dismissed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly job counts: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fit_analyses WHERE analyzed_at >= ?", cutoff,
	).Scan(&summary.AnalyzedJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly analysis count: %w", err)
	}

	runsQuery := `
		SELECT
			COALESCE(SUM(alerts_sent), 0) as alerts_sent,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as failed
		FROM run_logs
		WHERE started_at >= ?
	`
	err = r.db.QueryRowContext(ctx, runsQuery,
		models.RunStatusCompleted, models.RunStatusFailed, cutoff,
	).Scan(&summary.AlertsSent, &summary.RunsCompleted, &summary.RunsFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly run counts: %w", err)
	}

	companiesQuery := `
		SELECT company, COUNT(*) as count
		FROM jobs_canonical
		WHERE first_seen_at >= ?
		GROUP BY company_normalized
		ORDER BY count DESC, company ASC
		LIMIT 5
	`
	rows, err := r.db.QueryContext(ctx, companiesQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query top companies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc CompanyCount
		if err := rows.Scan(&cc.Company, &cc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan company count: %w", err)
		}
		summary.TopCompanies = append(summary.TopCompanies, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &summary, nil
}
