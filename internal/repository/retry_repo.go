package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteRetryQueueRepository implements RetryQueueRepository for SQLite.
type SQLiteRetryQueueRepository struct {
	db *sql.DB
}

// NewSQLiteRetryQueueRepository creates a new SQLite retry queue repository.
func NewSQLiteRetryQueueRepository(db *sql.DB) *SQLiteRetryQueueRepository {
	return &SQLiteRetryQueueRepository{db: db}
}

func (r *SQLiteRetryQueueRepository) Enqueue(ctx context.Context, item *models.RetryQueueItem) error {
	if item.ID == "" {
		item.ID = ulid.Make().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO retry_queue (id, bot, chat_id, message, parse_mode, buttons_json,
			retry_count, next_retry_at, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.Bot,
		item.ChatID,
		item.Message,
		nullString(item.ParseMode),
		nullString(item.ButtonsJSON),
		item.RetryCount,
		item.NextRetryAt.Format(time.RFC3339),
		nullString(item.LastError),
		item.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue retry item: %w", err)
	}
	return nil
}

func (r *SQLiteRetryQueueRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.RetryQueueItem, error) {
	query := `
		SELECT id, bot, chat_id, message, parse_mode, buttons_json,
			retry_count, next_retry_at, last_error, created_at
		FROM retry_queue
		WHERE next_retry_at <= ?
		ORDER BY next_retry_at ASC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, now.Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due retry items: %w", err)
	}
	defer rows.Close()

	var items []*models.RetryQueueItem
	for rows.Next() {
		var item models.RetryQueueItem
		var bot, nextRetryAt, createdAt string
		var parseMode, buttonsJSON, lastError sql.NullString

		err := rows.Scan(
			&item.ID, &bot, &item.ChatID, &item.Message, &parseMode, &buttonsJSON,
			&item.RetryCount, &nextRetryAt, &lastError, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retry item: %w", err)
		}

		item.Bot = models.BotKind(bot)
		item.ParseMode = parseMode.String
		item.ButtonsJSON = buttonsJSON.String
		item.LastError = lastError.String
		item.NextRetryAt, _ = time.Parse(time.RFC3339, nextRetryAt)
		item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		items = append(items, &item)
	}

	return items, rows.Err()
}

func (r *SQLiteRetryQueueRepository) MarkFailed(ctx context.Context, id string, nextRetry time.Time, lastError string) error {
	query := `
		UPDATE retry_queue
		SET retry_count = retry_count + 1, next_retry_at = ?, last_error = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, nextRetry.Format(time.RFC3339), nullString(lastError), id)
	if err != nil {
		return fmt.Errorf("failed to mark retry item failed: %w", err)
	}
	return nil
}

func (r *SQLiteRetryQueueRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM retry_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove retry item: %w", err)
	}
	return nil
}

func (r *SQLiteRetryQueueRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM retry_queue").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count retry items: %w", err)
	}
	return count, nil
}
