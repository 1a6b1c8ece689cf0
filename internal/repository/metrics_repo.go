package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteSourceMetricRepository implements SourceMetricRepository for SQLite.
type SQLiteSourceMetricRepository struct {
	db *sql.DB
}

// NewSQLiteSourceMetricRepository creates a new SQLite source metric repository.
func NewSQLiteSourceMetricRepository(db *sql.DB) *SQLiteSourceMetricRepository {
	return &SQLiteSourceMetricRepository{db: db}
}

func (r *SQLiteSourceMetricRepository) Record(ctx context.Context, metric *models.SourceMetric) error {
	if metric.ID == "" {
		metric.ID = ulid.Make().String()
	}

	// Additive upsert: deltas accumulate into the (source, date) row.
	query := `
		INSERT INTO source_metrics (id, source, date, jobs_found, jobs_new, jobs_duplicate,
			parse_failures, rate_limit_hits, response_time_total_ms, response_count,
			success_count, failure_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, date) DO UPDATE SET
			jobs_found = jobs_found + excluded.jobs_found,
			jobs_new = jobs_new + excluded.jobs_new,
			jobs_duplicate = jobs_duplicate + excluded.jobs_duplicate,
			parse_failures = parse_failures + excluded.parse_failures,
			rate_limit_hits = rate_limit_hits + excluded.rate_limit_hits,
			response_time_total_ms = response_time_total_ms + excluded.response_time_total_ms,
			response_count = response_count + excluded.response_count,
			success_count = success_count + excluded.success_count,
			failure_count = failure_count + excluded.failure_count
	`
	_, err := r.db.ExecContext(ctx, query,
		metric.ID,
		metric.Source,
		metric.Date,
		metric.JobsFound,
		metric.JobsNew,
		metric.JobsDuplicate,
		metric.ParseFailures,
		metric.RateLimitHits,
		metric.ResponseTimeTotalMs,
		metric.ResponseCount,
		metric.SuccessCount,
		metric.FailureCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record source metric: %w", err)
	}
	return nil
}

func (r *SQLiteSourceMetricRepository) GetByDateRange(ctx context.Context, startDate, endDate string) ([]*models.SourceMetric, error) {
	query := `
		SELECT id, source, date, jobs_found, jobs_new, jobs_duplicate,
			parse_failures, rate_limit_hits, response_time_total_ms, response_count,
			success_count, failure_count
		FROM source_metrics
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, source ASC
	`
	rows, err := r.db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query source metrics: %w", err)
	}
	defer rows.Close()

	return r.scanMetrics(rows)
}

func (r *SQLiteSourceMetricRepository) GetBySource(ctx context.Context, source, startDate, endDate string) ([]*models.SourceMetric, error) {
	query := `
		SELECT id, source, date, jobs_found, jobs_new, jobs_duplicate,
			parse_failures, rate_limit_hits, response_time_total_ms, response_count,
			success_count, failure_count
		FROM source_metrics
		WHERE source = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := r.db.QueryContext(ctx, query, source, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query source metrics: %w", err)
	}
	defer rows.Close()

	return r.scanMetrics(rows)
}

// scanMetrics scans multiple rows into a SourceMetric slice, computing the
// derived average and success rate.
func (r *SQLiteSourceMetricRepository) scanMetrics(rows *sql.Rows) ([]*models.SourceMetric, error) {
	var metrics []*models.SourceMetric

	for rows.Next() {
		var m models.SourceMetric

		err := rows.Scan(
			&m.ID, &m.Source, &m.Date, &m.JobsFound, &m.JobsNew, &m.JobsDuplicate,
			&m.ParseFailures, &m.RateLimitHits, &m.ResponseTimeTotalMs, &m.ResponseCount,
			&m.SuccessCount, &m.FailureCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source metric: %w", err)
		}

		if m.ResponseCount > 0 {
			m.ResponseTimeAvgMs = float64(m.ResponseTimeTotalMs) / float64(m.ResponseCount)
		}
		if total := m.SuccessCount + m.FailureCount; total > 0 {
			m.SuccessRate = float64(m.SuccessCount) / float64(total)
		}
		metrics = append(metrics, &m)
	}

	return metrics, rows.Err()
}

// SQLiteCheckpointRepository implements CheckpointRepository for SQLite.
type SQLiteCheckpointRepository struct {
	db *sql.DB
}

// NewSQLiteCheckpointRepository creates a new SQLite checkpoint repository.
func NewSQLiteCheckpointRepository(db *sql.DB) *SQLiteCheckpointRepository {
	return &SQLiteCheckpointRepository{db: db}
}

func (r *SQLiteCheckpointRepository) RecordSuccess(ctx context.Context, source, company string, at time.Time) error {
	stamp := at.Format(time.RFC3339)
	query := `
		INSERT INTO connector_checkpoints (id, source, company, last_success_at,
			consecutive_failures, updated_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(source, company) DO UPDATE SET
			last_success_at = excluded.last_success_at,
			consecutive_failures = 0,
			last_error = NULL,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, ulid.Make().String(), source, company, stamp, stamp)
	if err != nil {
		return fmt.Errorf("failed to record checkpoint success: %w", err)
	}
	return nil
}

func (r *SQLiteCheckpointRepository) RecordFailure(ctx context.Context, source, company, errMsg string, at time.Time) (int, error) {
	stamp := at.Format(time.RFC3339)
	query := `
		INSERT INTO connector_checkpoints (id, source, company, last_failure_at,
			consecutive_failures, last_error, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(source, company) DO UPDATE SET
			last_failure_at = excluded.last_failure_at,
			consecutive_failures = consecutive_failures + 1,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
		RETURNING consecutive_failures
	`
	var count int
	err := r.db.QueryRowContext(ctx, query,
		ulid.Make().String(), source, company, stamp, nullString(errMsg), stamp,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to record checkpoint failure: %w", err)
	}
	return count, nil
}

func (r *SQLiteCheckpointRepository) Get(ctx context.Context, source, company string) (*models.ConnectorCheckpoint, error) {
	query := `
		SELECT id, source, company, last_success_at, last_failure_at,
			consecutive_failures, last_error, updated_at
		FROM connector_checkpoints
		WHERE source = ? AND company = ?
	`
	var cp models.ConnectorCheckpoint
	var updatedAt string
	var lastSuccess, lastFailure, lastError sql.NullString

	err := r.db.QueryRowContext(ctx, query, source, company).Scan(
		&cp.ID, &cp.Source, &cp.Company, &lastSuccess, &lastFailure,
		&cp.ConsecutiveFailures, &lastError, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
	}

	cp.LastError = lastError.String
	cp.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if lastSuccess.Valid {
		t, _ := time.Parse(time.RFC3339, lastSuccess.String)
		cp.LastSuccessAt = &t
	}
	if lastFailure.Valid {
		t, _ := time.Parse(time.RFC3339, lastFailure.String)
		cp.LastFailureAt = &t
	}
	return &cp, nil
}

func (r *SQLiteCheckpointRepository) GetFailing(ctx context.Context, minConsecutive int) ([]*models.ConnectorCheckpoint, error) {
	query := `
		SELECT id, source, company, last_success_at, last_failure_at,
			consecutive_failures, last_error, updated_at
		FROM connector_checkpoints
		WHERE consecutive_failures >= ?
		ORDER BY consecutive_failures DESC
	`
	rows, err := r.db.QueryContext(ctx, query, minConsecutive)
	if err != nil {
		return nil, fmt.Errorf("failed to query failing checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*models.ConnectorCheckpoint
	for rows.Next() {
		var cp models.ConnectorCheckpoint
		var updatedAt string
		var lastSuccess, lastFailure, lastError sql.NullString

		err := rows.Scan(
			&cp.ID, &cp.Source, &cp.Company, &lastSuccess, &lastFailure,
			&cp.ConsecutiveFailures, &lastError, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}

		cp.LastError = lastError.String
		cp.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if lastSuccess.Valid {
			t, _ := time.Parse(time.RFC3339, lastSuccess.String)
			cp.LastSuccessAt = &t
		}
		if lastFailure.Valid {
			t, _ := time.Parse(time.RFC3339, lastFailure.String)
			cp.LastFailureAt = &t
		}
		checkpoints = append(checkpoints, &cp)
	}

	return checkpoints, rows.Err()
}
