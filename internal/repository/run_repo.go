package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteRunLogRepository implements RunLogRepository for SQLite.
type SQLiteRunLogRepository struct {
	db *sql.DB
}

// NewSQLiteRunLogRepository creates a new SQLite run log repository.
func NewSQLiteRunLogRepository(db *sql.DB) *SQLiteRunLogRepository {
	return &SQLiteRunLogRepository{db: db}
}

func (r *SQLiteRunLogRepository) Create(ctx context.Context, run *models.RunLog) error {
	if run.ID == "" {
		run.ID = ulid.Make().String()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	query := `
		INSERT INTO run_logs (id, run_type, status, started_at, dry_run)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.RunType,
		run.Status,
		run.StartedAt.Format(time.RFC3339),
		boolToInt(run.DryRun),
	)
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	return nil
}

func (r *SQLiteRunLogRepository) GetByID(ctx context.Context, id string) (*models.RunLog, error) {
	query := `
		SELECT id, run_type, status, started_at, finished_at,
			jobs_found, jobs_new, jobs_duplicate, jobs_rejected, jobs_analyzed,
			alerts_sent, dry_run, errors_json
		FROM run_logs WHERE id = ?
	`
	return r.scanRun(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRunLogRepository) Finish(ctx context.Context, run *models.RunLog) error {
	var errorsJSON sql.NullString
	if len(run.Errors) > 0 {
		data, err := json.Marshal(run.Errors)
		if err != nil {
			return fmt.Errorf("failed to marshal run errors: %w", err)
		}
		errorsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		UPDATE run_logs
		SET status = ?, finished_at = ?, jobs_found = ?, jobs_new = ?,
			jobs_duplicate = ?, jobs_rejected = ?, jobs_analyzed = ?,
			alerts_sent = ?, errors_json = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		run.Status,
		nullTime(run.FinishedAt),
		run.JobsFound,
		run.JobsNew,
		run.JobsDuplicate,
		run.JobsRejected,
		run.JobsAnalyzed,
		run.AlertsSent,
		errorsJSON,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run log: %w", err)
	}
	return nil
}

func (r *SQLiteRunLogRepository) GetLastCompleted(ctx context.Context) (*models.RunLog, error) {
	query := `
		SELECT id, run_type, status, started_at, finished_at,
			jobs_found, jobs_new, jobs_duplicate, jobs_rejected, jobs_analyzed,
			alerts_sent, dry_run, errors_json
		FROM run_logs
		WHERE status = ? AND finished_at IS NOT NULL
		ORDER BY finished_at DESC LIMIT 1
	`
	return r.scanRun(r.db.QueryRowContext(ctx, query, models.RunStatusCompleted))
}

func (r *SQLiteRunLogRepository) GetRecent(ctx context.Context, limit int) ([]*models.RunLog, error) {
	query := `
		SELECT id, run_type, status, started_at, finished_at,
			jobs_found, jobs_new, jobs_duplicate, jobs_rejected, jobs_analyzed,
			alerts_sent, dry_run, errors_json
		FROM run_logs ORDER BY started_at DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run logs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunLog
	for rows.Next() {
		run, err := r.scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRunLogRepository) scanRun(row *sql.Row) (*models.RunLog, error) {
	var run models.RunLog
	var startedAt string
	var finishedAt, errorsJSON sql.NullString
	var dryRun int

	err := row.Scan(
		&run.ID, &run.RunType, &run.Status, &startedAt, &finishedAt,
		&run.JobsFound, &run.JobsNew, &run.JobsDuplicate, &run.JobsRejected,
		&run.JobsAnalyzed, &run.AlertsSent, &dryRun, &errorsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run log: %w", err)
	}

	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	run.DryRun = dryRun == 1
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAt.String)
		run.FinishedAt = &t
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run errors: %w", err)
		}
	}
	return &run, nil
}

func (r *SQLiteRunLogRepository) scanRunFromRows(rows *sql.Rows) (*models.RunLog, error) {
	var run models.RunLog
	var startedAt string
	var finishedAt, errorsJSON sql.NullString
	var dryRun int

	err := rows.Scan(
		&run.ID, &run.RunType, &run.Status, &startedAt, &finishedAt,
		&run.JobsFound, &run.JobsNew, &run.JobsDuplicate, &run.JobsRejected,
		&run.JobsAnalyzed, &run.AlertsSent, &dryRun, &errorsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run log: %w", err)
	}

	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	run.DryRun = dryRun == 1
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAt.String)
		run.FinishedAt = &t
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run errors: %w", err)
		}
	}
	return &run, nil
}
