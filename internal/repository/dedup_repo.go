package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteDuplicateLinkRepository implements DuplicateLinkRepository for SQLite.
type SQLiteDuplicateLinkRepository struct {
	db *sql.DB
}

// NewSQLiteDuplicateLinkRepository creates a new SQLite duplicate link repository.
func NewSQLiteDuplicateLinkRepository(db *sql.DB) *SQLiteDuplicateLinkRepository {
	return &SQLiteDuplicateLinkRepository{db: db}
}

func (r *SQLiteDuplicateLinkRepository) Create(ctx context.Context, link *models.DuplicateLink) error {
	if link.ID == "" {
		link.ID = ulid.Make().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO job_duplicates (id, canonical_job_id, duplicate_of_id, method, similarity, is_potential, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		link.ID,
		link.CanonicalJobID,
		link.DuplicateOfID,
		link.Method,
		link.Similarity,
		boolToInt(link.IsPotential),
		link.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create duplicate link: %w", err)
	}
	return nil
}

func (r *SQLiteDuplicateLinkRepository) GetForJob(ctx context.Context, jobID string) ([]*models.DuplicateLink, error) {
	query := `
		SELECT id, canonical_job_id, duplicate_of_id, method, similarity, is_potential, created_at
		FROM job_duplicates
		WHERE canonical_job_id = ? OR duplicate_of_id = ?
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, jobID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate links: %w", err)
	}
	defer rows.Close()

	var links []*models.DuplicateLink
	for rows.Next() {
		var link models.DuplicateLink
		var method, createdAt string
		var isPotential int

		err := rows.Scan(
			&link.ID, &link.CanonicalJobID, &link.DuplicateOfID,
			&method, &link.Similarity, &isPotential, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan duplicate link: %w", err)
		}

		link.Method = models.DedupMethod(method)
		link.IsPotential = isPotential == 1
		link.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		links = append(links, &link)
	}

	return links, rows.Err()
}
