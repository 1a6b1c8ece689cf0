package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteDiscoveredBoardRepository implements DiscoveredBoardRepository for SQLite.
type SQLiteDiscoveredBoardRepository struct {
	db *sql.DB
}

// NewSQLiteDiscoveredBoardRepository creates a new SQLite discovered board repository.
func NewSQLiteDiscoveredBoardRepository(db *sql.DB) *SQLiteDiscoveredBoardRepository {
	return &SQLiteDiscoveredBoardRepository{db: db}
}

func (r *SQLiteDiscoveredBoardRepository) Upsert(ctx context.Context, board *models.DiscoveredBoard) error {
	if board.ID == "" {
		board.ID = ulid.Make().String()
	}
	now := time.Now()
	if board.FirstSeenAt.IsZero() {
		board.FirstSeenAt = now
	}
	if board.LastSeenAt.IsZero() {
		board.LastSeenAt = now
	}
	if board.Status == "" {
		board.Status = models.BoardStatusActive
	}

	// Rediscovery refreshes the row: confidence keeps its maximum, status
	// resets to active, last_seen moves forward.
	query := `
		INSERT INTO discovered_boards (id, platform, board_url, board_slug, company_name,
			confidence, status, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(board_url) DO UPDATE SET
			confidence = MAX(confidence, excluded.confidence),
			status = excluded.status,
			company_name = COALESCE(excluded.company_name, company_name),
			last_seen_at = excluded.last_seen_at
	`
	_, err := r.db.ExecContext(ctx, query,
		board.ID,
		board.Platform,
		board.BoardURL,
		board.BoardSlug,
		nullString(board.CompanyName),
		board.Confidence,
		board.Status,
		board.FirstSeenAt.Format(time.RFC3339),
		board.LastSeenAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert discovered board: %w", err)
	}
	return nil
}

func (r *SQLiteDiscoveredBoardRepository) GetByURL(ctx context.Context, boardURL string) (*models.DiscoveredBoard, error) {
	query := `
		SELECT id, platform, board_url, board_slug, company_name, confidence,
			status, first_seen_at, last_seen_at, last_success_at, consecutive_empty_runs
		FROM discovered_boards WHERE board_url = ?
	`
	return r.scanBoard(r.db.QueryRowContext(ctx, query, boardURL))
}

func (r *SQLiteDiscoveredBoardRepository) GetActiveByPlatform(ctx context.Context, platform string) ([]*models.DiscoveredBoard, error) {
	query := `
		SELECT id, platform, board_url, board_slug, company_name, confidence,
			status, first_seen_at, last_seen_at, last_success_at, consecutive_empty_runs
		FROM discovered_boards
		WHERE platform = ? AND status = ?
		ORDER BY confidence DESC, board_slug ASC
	`
	rows, err := r.db.QueryContext(ctx, query, platform, models.BoardStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered boards: %w", err)
	}
	defer rows.Close()

	return r.scanBoards(rows)
}

func (r *SQLiteDiscoveredBoardRepository) GetAll(ctx context.Context) ([]*models.DiscoveredBoard, error) {
	query := `
		SELECT id, platform, board_url, board_slug, company_name, confidence,
			status, first_seen_at, last_seen_at, last_success_at, consecutive_empty_runs
		FROM discovered_boards
		ORDER BY platform ASC, board_slug ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered boards: %w", err)
	}
	defer rows.Close()

	return r.scanBoards(rows)
}

func (r *SQLiteDiscoveredBoardRepository) RecordPoll(ctx context.Context, id string, jobsYielded int, at time.Time) error {
	var query string
	var args []interface{}

	if jobsYielded > 0 {
		query = `
			UPDATE discovered_boards
			SET last_success_at = ?, consecutive_empty_runs = 0, last_seen_at = ?
			WHERE id = ?
		`
		stamp := at.Format(time.RFC3339)
		args = []interface{}{stamp, stamp, id}
	} else {
		query = `
			UPDATE discovered_boards
			SET consecutive_empty_runs = consecutive_empty_runs + 1, last_seen_at = ?
			WHERE id = ?
		`
		args = []interface{}{at.Format(time.RFC3339), id}
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record board poll: %w", err)
	}
	return nil
}

func (r *SQLiteDiscoveredBoardRepository) DeactivateStale(ctx context.Context, maxEmptyRuns int) (int64, error) {
	query := `
		UPDATE discovered_boards
		SET status = ?
		WHERE status = ? AND consecutive_empty_runs >= ?
	`
	result, err := r.db.ExecContext(ctx, query, models.BoardStatusInactive, models.BoardStatusActive, maxEmptyRuns)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale boards: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

// scanBoard scans a single row into a DiscoveredBoard.
func (r *SQLiteDiscoveredBoardRepository) scanBoard(row *sql.Row) (*models.DiscoveredBoard, error) {
	var board models.DiscoveredBoard
	var status, firstSeenAt, lastSeenAt string
	var companyName, lastSuccessAt sql.NullString

	err := row.Scan(
		&board.ID, &board.Platform, &board.BoardURL, &board.BoardSlug, &companyName,
		&board.Confidence, &status, &firstSeenAt, &lastSeenAt, &lastSuccessAt,
		&board.ConsecutiveEmptyRuns,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan discovered board: %w", err)
	}

	board.CompanyName = companyName.String
	board.Status = models.BoardStatus(status)
	board.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeenAt)
	board.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeenAt)
	if lastSuccessAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastSuccessAt.String)
		board.LastSuccessAt = &t
	}
	return &board, nil
}

// scanBoards scans multiple rows into a DiscoveredBoard slice.
func (r *SQLiteDiscoveredBoardRepository) scanBoards(rows *sql.Rows) ([]*models.DiscoveredBoard, error) {
	var boards []*models.DiscoveredBoard

	for rows.Next() {
		var board models.DiscoveredBoard
		var status, firstSeenAt, lastSeenAt string
		var companyName, lastSuccessAt sql.NullString

		err := rows.Scan(
			&board.ID, &board.Platform, &board.BoardURL, &board.BoardSlug, &companyName,
			&board.Confidence, &status, &firstSeenAt, &lastSeenAt, &lastSuccessAt,
			&board.ConsecutiveEmptyRuns,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discovered board: %w", err)
		}

		board.CompanyName = companyName.String
		board.Status = models.BoardStatus(status)
		board.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeenAt)
		board.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeenAt)
		if lastSuccessAt.Valid {
			t, _ := time.Parse(time.RFC3339, lastSuccessAt.String)
			board.LastSuccessAt = &t
		}
		boards = append(boards, &board)
	}

	return boards, rows.Err()
}
