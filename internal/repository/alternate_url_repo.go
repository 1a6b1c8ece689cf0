package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteAlternateURLRepository implements AlternateURLRepository for SQLite.
type SQLiteAlternateURLRepository struct {
	db *sql.DB
}

// NewSQLiteAlternateURLRepository creates a new SQLite alternate URL repository.
func NewSQLiteAlternateURLRepository(db *sql.DB) *SQLiteAlternateURLRepository {
	return &SQLiteAlternateURLRepository{db: db}
}

func (r *SQLiteAlternateURLRepository) Create(ctx context.Context, alt *models.AlternateURL) error {
	if alt.ID == "" {
		alt.ID = ulid.Make().String()
	}
	if alt.DiscoveredAt.IsZero() {
		alt.DiscoveredAt = time.Now()
	}
	query := `
		INSERT OR IGNORE INTO alternate_urls (id, canonical_job_id, source, url, discovered_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		alt.ID,
		alt.CanonicalJobID,
		alt.Source,
		alt.URL,
		alt.DiscoveredAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create alternate url: %w", err)
	}
	return nil
}

func (r *SQLiteAlternateURLRepository) ListForJob(ctx context.Context, jobID string, limit int) ([]*models.AlternateURL, error) {
	query := `
		SELECT id, canonical_job_id, source, url, discovered_at
		FROM alternate_urls
		WHERE canonical_job_id = ?
		ORDER BY discovered_at ASC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alternate urls: %w", err)
	}
	defer rows.Close()

	var alts []*models.AlternateURL
	for rows.Next() {
		var alt models.AlternateURL
		var discoveredAt string

		if err := rows.Scan(&alt.ID, &alt.CanonicalJobID, &alt.Source, &alt.URL, &discoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alternate url: %w", err)
		}

		alt.DiscoveredAt, _ = time.Parse(time.RFC3339, discoveredAt)
		alts = append(alts, &alt)
	}

	return alts, rows.Err()
}
