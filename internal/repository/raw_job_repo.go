package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteRawJobRepository implements RawJobRepository for SQLite.
type SQLiteRawJobRepository struct {
	db *sql.DB
}

// NewSQLiteRawJobRepository creates a new SQLite raw job repository.
func NewSQLiteRawJobRepository(db *sql.DB) *SQLiteRawJobRepository {
	return &SQLiteRawJobRepository{db: db}
}

func (r *SQLiteRawJobRepository) Create(ctx context.Context, raw *models.RawJob) error {
	if raw.ID == "" {
		raw.ID = ulid.Make().String()
	}
	query := `
		INSERT INTO jobs_raw (id, run_id, source, source_job_id, title, company,
			url, location_raw, content, posted_at, raw_payload, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		raw.ID,
		nullString(raw.RunID),
		raw.Source,
		raw.SourceJobID,
		nullString(raw.Title),
		nullString(raw.Company),
		nullString(raw.URL),
		nullString(raw.LocationRaw),
		nullString(raw.Content),
		nullTime(raw.PostedAt),
		nullString(raw.RawPayload),
		raw.FetchedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create raw job: %w", err)
	}
	return nil
}

func (r *SQLiteRawJobRepository) GetByID(ctx context.Context, id string) (*models.RawJob, error) {
	query := `
		SELECT id, run_id, source, source_job_id, title, company,
			url, location_raw, content, posted_at, raw_payload, fetched_at
		FROM jobs_raw WHERE id = ?
	`
	return r.scanRawJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRawJobRepository) GetByDate(ctx context.Context, date, source string) ([]*models.RawJob, error) {
	query := `
		SELECT id, run_id, source, source_job_id, title, company,
			url, location_raw, content, posted_at, raw_payload, fetched_at
		FROM jobs_raw
		WHERE date(fetched_at) = ?
	`
	args := []interface{}{date}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	query += " ORDER BY fetched_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw jobs: %w", err)
	}
	defer rows.Close()

	return r.scanRawJobs(rows)
}

func (r *SQLiteRawJobRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM jobs_raw WHERE fetched_at < ?",
		before.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old raw jobs: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

// scanRawJob scans a single row into a RawJob.
func (r *SQLiteRawJobRepository) scanRawJob(row *sql.Row) (*models.RawJob, error) {
	var raw models.RawJob
	var fetchedAt string
	var runID, title, company, rawURL, locationRaw, content, payload, postedAt sql.NullString

	err := row.Scan(
		&raw.ID, &runID, &raw.Source, &raw.SourceJobID, &title, &company,
		&rawURL, &locationRaw, &content, &postedAt, &payload, &fetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw job: %w", err)
	}

	raw.RunID = runID.String
	raw.Title = title.String
	raw.Company = company.String
	raw.URL = rawURL.String
	raw.LocationRaw = locationRaw.String
	raw.Content = content.String
	raw.RawPayload = payload.String
	raw.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
	if postedAt.Valid {
		t, _ := time.Parse(time.RFC3339, postedAt.String)
		raw.PostedAt = &t
	}
	return &raw, nil
}

// scanRawJobs scans multiple rows into a RawJob slice.
func (r *SQLiteRawJobRepository) scanRawJobs(rows *sql.Rows) ([]*models.RawJob, error) {
	var raws []*models.RawJob

	for rows.Next() {
		var raw models.RawJob
		var fetchedAt string
		var runID, title, company, rawURL, locationRaw, content, payload, postedAt sql.NullString

		err := rows.Scan(
			&raw.ID, &runID, &raw.Source, &raw.SourceJobID, &title, &company,
			&rawURL, &locationRaw, &content, &postedAt, &payload, &fetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw job: %w", err)
		}

		raw.RunID = runID.String
		raw.Title = title.String
		raw.Company = company.String
		raw.URL = rawURL.String
		raw.LocationRaw = locationRaw.String
		raw.Content = content.String
		raw.RawPayload = payload.String
		raw.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		if postedAt.Valid {
			t, _ := time.Parse(time.RFC3339, postedAt.String)
			raw.PostedAt = &t
		}
		raws = append(raws, &raw)
	}

	return raws, rows.Err()
}
