package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260312-083000",
		Description: "Board discovery registry and alternate URLs",
		Up: []string{
			// Discovered boards - ATS boards found via web-search discovery
			`CREATE TABLE IF NOT EXISTS discovered_boards (
				id TEXT PRIMARY KEY,
				platform TEXT NOT NULL,
				board_url TEXT UNIQUE NOT NULL,
				board_slug TEXT NOT NULL,
				company_name TEXT,
				confidence REAL NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				first_seen_at TEXT NOT NULL,
				last_seen_at TEXT NOT NULL,
				last_success_at TEXT,
				consecutive_empty_runs INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_discovered_boards_platform ON discovered_boards(platform, status)`,

			// Alternate URLs - the same posting seen on another source
			`CREATE TABLE IF NOT EXISTS alternate_urls (
				id TEXT PRIMARY KEY,
				canonical_job_id TEXT NOT NULL REFERENCES jobs_canonical(id) ON DELETE CASCADE,
				source TEXT NOT NULL,
				url TEXT NOT NULL,
				discovered_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_alternate_urls_job_source ON alternate_urls(canonical_job_id, source)`,
		},
	})
}
