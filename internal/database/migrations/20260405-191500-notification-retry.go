package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260405-191500",
		Description: "Notification retry queue",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS retry_queue (
				id TEXT PRIMARY KEY,
				bot TEXT NOT NULL,
				chat_id TEXT NOT NULL,
				message TEXT NOT NULL,
				parse_mode TEXT,
				buttons_json TEXT,
				retry_count INTEGER NOT NULL DEFAULT 0,
				next_retry_at TEXT NOT NULL,
				last_error TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_retry_queue_next ON retry_queue(next_retry_at)`,

			// Lets the resume tool find committed jobs that never alerted
			`ALTER TABLE jobs_canonical ADD COLUMN notified_at TEXT`,
		},
	})
}
