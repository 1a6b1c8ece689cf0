package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// canonicalJobColumns is the SELECT column list shared by every canonical
// job query. Order must match the scan functions below.
const canonicalJobColumns = `id, raw_job_id, url_hash, content_fingerprint, source, source_job_id,
	title, company, company_normalized, url, city, province, country,
	location_raw, location_tier, work_mode, title_bucket, description,
	posted_at, posted_at_confidence, first_seen_at, last_seen_at, times_seen,
	score, score_freshness, score_location, score_mode, score_band, status,
	is_backfill, is_reposted, original_post_date, created_at, updated_at, notified_at`

// SQLiteCanonicalJobRepository implements CanonicalJobRepository for SQLite.
type SQLiteCanonicalJobRepository struct {
	db *sql.DB
}

// NewSQLiteCanonicalJobRepository creates a new SQLite canonical job repository.
func NewSQLiteCanonicalJobRepository(db *sql.DB) *SQLiteCanonicalJobRepository {
	return &SQLiteCanonicalJobRepository{db: db}
}

func (r *SQLiteCanonicalJobRepository) Create(ctx context.Context, job *models.CanonicalJob) error {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	query := `
		INSERT INTO jobs_canonical (` + canonicalJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		nullString(job.RawJobID),
		job.URLHash,
		nullString(job.ContentFingerprint),
		job.Source,
		job.SourceJobID,
		job.Title,
		job.Company,
		job.CompanyNormalized,
		job.URL,
		nullString(job.City),
		nullString(job.Province),
		nullString(job.Country),
		nullString(job.LocationRaw),
		nullString(job.LocationTier),
		job.WorkMode,
		job.TitleBucket,
		nullString(job.Description),
		nullTime(job.PostedAt),
		job.PostedAtConfidence,
		job.FirstSeenAt.Format(time.RFC3339),
		job.LastSeenAt.Format(time.RFC3339),
		job.TimesSeen,
		job.Score,
		job.ScoreFreshness,
		job.ScoreLocation,
		job.ScoreMode,
		nullString(string(job.ScoreBand)),
		job.Status,
		boolToInt(job.IsBackfill),
		boolToInt(job.IsReposted),
		nullTime(job.OriginalPostDate),
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
		nullTime(job.NotifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create canonical job: %w", err)
	}
	return nil
}

func (r *SQLiteCanonicalJobRepository) GetByID(ctx context.Context, id string) (*models.CanonicalJob, error) {
	query := `SELECT ` + canonicalJobColumns + ` FROM jobs_canonical WHERE id = ?`
	return r.scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteCanonicalJobRepository) GetByURLHash(ctx context.Context, hash string) (*models.CanonicalJob, error) {
	query := `SELECT ` + canonicalJobColumns + ` FROM jobs_canonical WHERE url_hash = ?`
	return r.scanJob(r.db.QueryRowContext(ctx, query, hash))
}

func (r *SQLiteCanonicalJobRepository) GetByFingerprint(ctx context.Context, fingerprint string) ([]*models.CanonicalJob, error) {
	query := `
		SELECT ` + canonicalJobColumns + `
		FROM jobs_canonical
		WHERE content_fingerprint = ? AND status = ?
		ORDER BY first_seen_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, fingerprint, models.JobStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by fingerprint: %w", err)
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteCanonicalJobRepository) GetActiveSince(ctx context.Context, since time.Time) ([]*models.CanonicalJob, error) {
	query := `
		SELECT ` + canonicalJobColumns + `
		FROM jobs_canonical
		WHERE status = ? AND first_seen_at >= ?
		ORDER BY first_seen_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, models.JobStatusActive, since.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent active jobs: %w", err)
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteCanonicalJobRepository) MarkSeen(ctx context.Context, id string, seenAt time.Time) error {
	query := `
		UPDATE jobs_canonical
		SET last_seen_at = ?, times_seen = times_seen + 1, updated_at = ?
		WHERE id = ?
	`
	now := time.Now().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, query, seenAt.Format(time.RFC3339), now, id); err != nil {
		return fmt.Errorf("failed to mark job seen: %w", err)
	}
	return nil
}

func (r *SQLiteCanonicalJobRepository) UpdateScore(ctx context.Context, job *models.CanonicalJob) error {
	query := `
		UPDATE jobs_canonical
		SET score = ?, score_freshness = ?, score_location = ?, score_mode = ?,
			score_band = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Score,
		job.ScoreFreshness,
		job.ScoreLocation,
		job.ScoreMode,
		nullString(string(job.ScoreBand)),
		time.Now().Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job score: %w", err)
	}
	return nil
}

func (r *SQLiteCanonicalJobRepository) UpdateStatus(ctx context.Context, id string, status models.JobStatus) error {
	query := `UPDATE jobs_canonical SET status = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

func (r *SQLiteCanonicalJobRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE jobs_canonical SET notified_at = ?, updated_at = ? WHERE id = ?`
	now := time.Now().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx, query, at.Format(time.RFC3339), now, id); err != nil {
		return fmt.Errorf("failed to mark job notified: %w", err)
	}
	return nil
}

func (r *SQLiteCanonicalJobRepository) GetUnnotified(ctx context.Context, minScore, limit int) ([]*models.CanonicalJob, error) {
	query := `
		SELECT ` + canonicalJobColumns + `
		FROM jobs_canonical
		WHERE status = ? AND score >= ? AND notified_at IS NULL
		ORDER BY first_seen_at ASC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, models.JobStatusActive, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unnotified jobs: %w", err)
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteCanonicalJobRepository) GetTopSince(ctx context.Context, since time.Time, minScore, limit int) ([]*models.CanonicalJob, error) {
	query := `
		SELECT ` + canonicalJobColumns + `
		FROM jobs_canonical
		WHERE status = ? AND first_seen_at >= ? AND score >= ?
		ORDER BY score DESC, first_seen_at DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, models.JobStatusActive, since.Format(time.RFC3339), minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top jobs: %w", err)
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteCanonicalJobRepository) List(ctx context.Context, params JobListParams) ([]*models.CanonicalJob, int, error) {
	var conditions []string
	var args []interface{}

	if params.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, params.Status)
	}
	if params.Band != "" {
		conditions = append(conditions, "score_band = ?")
		args = append(args, params.Band)
	}
	if params.Bucket != "" {
		conditions = append(conditions, "title_bucket = ?")
		args = append(args, params.Bucket)
	}
	if params.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, params.Source)
	}
	if params.MinScore > 0 {
		conditions = append(conditions, "score >= ?")
		args = append(args, params.MinScore)
	}
	if !params.Since.IsZero() {
		conditions = append(conditions, "first_seen_at >= ?")
		args = append(args, params.Since.Format(time.RFC3339))
	}
	if len(params.Tiers) > 0 {
		placeholders := strings.Repeat("?, ", len(params.Tiers))
		conditions = append(conditions, fmt.Sprintf("location_tier IN (%s)", placeholders[:len(placeholders)-2]))
		for _, tier := range params.Tiers {
			args = append(args, tier)
		}
	}
	if params.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR company LIKE ?)")
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern)
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM jobs_canonical WHERE %s", whereClause)
	var totalCount int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM jobs_canonical
		WHERE %s
		ORDER BY score DESC, first_seen_at DESC
		LIMIT ? OFFSET ?
	`, canonicalJobColumns, whereClause)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := r.scanJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, totalCount, nil
}

func (r *SQLiteCanonicalJobRepository) ExpireOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE jobs_canonical
		SET status = ?, updated_at = ?
		WHERE status = ? AND first_seen_at < ?
	`
	result, err := r.db.ExecContext(ctx, query,
		models.JobStatusExpired,
		time.Now().Format(time.RFC3339),
		models.JobStatusActive,
		before.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire old jobs: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *SQLiteCanonicalJobRepository) ArchiveAndPurge(ctx context.Context, archiveBefore, purgeBefore time.Time) (int64, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339)

	archiveResult, err := tx.ExecContext(ctx,
		`UPDATE jobs_canonical SET status = ?, updated_at = ? WHERE status = ? AND first_seen_at < ?`,
		models.JobStatusArchived, now, models.JobStatusActive, archiveBefore.Format(time.RFC3339),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to archive old jobs: %w", err)
	}
	archived, _ := archiveResult.RowsAffected()

	purgeResult, err := tx.ExecContext(ctx,
		`DELETE FROM jobs_raw WHERE fetched_at < ?`,
		purgeBefore.Format(time.RFC3339),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to purge raw jobs: %w", err)
	}
	purged, _ := purgeResult.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	return archived, purged, nil
}

// scanJob scans a single row into a CanonicalJob.
func (r *SQLiteCanonicalJobRepository) scanJob(row *sql.Row) (*models.CanonicalJob, error) {
	var job models.CanonicalJob
	var workMode, titleBucket, confidence, status string
	var firstSeenAt, lastSeenAt, createdAt, updatedAt string
	var rawJobID, fingerprint, city, province, country, locationRaw, tier, description, band sql.NullString
	var postedAt, originalPostDate, notifiedAt sql.NullString
	var isBackfill, isReposted int

	err := row.Scan(
		&job.ID, &rawJobID, &job.URLHash, &fingerprint, &job.Source, &job.SourceJobID,
		&job.Title, &job.Company, &job.CompanyNormalized, &job.URL, &city, &province, &country,
		&locationRaw, &tier, &workMode, &titleBucket, &description,
		&postedAt, &confidence, &firstSeenAt, &lastSeenAt, &job.TimesSeen,
		&job.Score, &job.ScoreFreshness, &job.ScoreLocation, &job.ScoreMode, &band, &status,
		&isBackfill, &isReposted, &originalPostDate, &createdAt, &updatedAt, &notifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan canonical job: %w", err)
	}

	job.RawJobID = rawJobID.String
	job.ContentFingerprint = fingerprint.String
	job.City = city.String
	job.Province = province.String
	job.Country = country.String
	job.LocationRaw = locationRaw.String
	job.LocationTier = tier.String
	job.Description = description.String
	job.WorkMode = models.ParseWorkMode(workMode)
	job.TitleBucket = models.TitleBucket(titleBucket)
	job.PostedAtConfidence = models.Confidence(confidence)
	job.ScoreBand = models.ScoreBand(band.String)
	job.Status = models.JobStatus(status)
	job.IsBackfill = isBackfill == 1
	job.IsReposted = isReposted == 1
	job.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeenAt)
	job.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeenAt)
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if postedAt.Valid {
		t, _ := time.Parse(time.RFC3339, postedAt.String)
		job.PostedAt = &t
	}
	if originalPostDate.Valid {
		t, _ := time.Parse(time.RFC3339, originalPostDate.String)
		job.OriginalPostDate = &t
	}
	if notifiedAt.Valid {
		t, _ := time.Parse(time.RFC3339, notifiedAt.String)
		job.NotifiedAt = &t
	}

	return &job, nil
}

// scanJobs scans multiple rows into a CanonicalJob slice.
func (r *SQLiteCanonicalJobRepository) scanJobs(rows *sql.Rows) ([]*models.CanonicalJob, error) {
	var jobs []*models.CanonicalJob

	for rows.Next() {
		var job models.CanonicalJob
		var workMode, titleBucket, confidence, status string
		var firstSeenAt, lastSeenAt, createdAt, updatedAt string
		var rawJobID, fingerprint, city, province, country, locationRaw, tier, description, band sql.NullString
		var postedAt, originalPostDate, notifiedAt sql.NullString
		var isBackfill, isReposted int

		err := rows.Scan(
			&job.ID, &rawJobID, &job.URLHash, &fingerprint, &job.Source, &job.SourceJobID,
			&job.Title, &job.Company, &job.CompanyNormalized, &job.URL, &city, &province, &country,
			&locationRaw, &tier, &workMode, &titleBucket, &description,
			&postedAt, &confidence, &firstSeenAt, &lastSeenAt, &job.TimesSeen,
			&job.Score, &job.ScoreFreshness, &job.ScoreLocation, &job.ScoreMode, &band, &status,
			&isBackfill, &isReposted, &originalPostDate, &createdAt, &updatedAt, &notifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan canonical job: %w", err)
		}

		job.RawJobID = rawJobID.String
		job.ContentFingerprint = fingerprint.String
		job.City = city.String
		job.Province = province.String
		job.Country = country.String
		job.LocationRaw = locationRaw.String
		job.LocationTier = tier.String
		job.Description = description.String
		job.WorkMode = models.ParseWorkMode(workMode)
		job.TitleBucket = models.TitleBucket(titleBucket)
		job.PostedAtConfidence = models.Confidence(confidence)
		job.ScoreBand = models.ScoreBand(band.String)
		job.Status = models.JobStatus(status)
		job.IsBackfill = isBackfill == 1
		job.IsReposted = isReposted == 1
		job.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeenAt)
		job.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeenAt)
		job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if postedAt.Valid {
			t, _ := time.Parse(time.RFC3339, postedAt.String)
			job.PostedAt = &t
		}
		if originalPostDate.Valid {
			t, _ := time.Parse(time.RFC3339, originalPostDate.String)
			job.OriginalPostDate = &t
		}
		if notifiedAt.Valid {
			t, _ := time.Parse(time.RFC3339, notifiedAt.String)
			job.NotifiedAt = &t
		}

		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// Helper functions
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
