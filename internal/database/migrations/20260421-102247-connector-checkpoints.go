package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260421-102247",
		Description: "Connector health checkpoints",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS connector_checkpoints (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				company TEXT NOT NULL,
				last_success_at TEXT,
				last_failure_at TEXT,
				consecutive_failures INTEGER NOT NULL DEFAULT 0,
				last_error TEXT,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_connector_checkpoints_source_company ON connector_checkpoints(source, company)`,
		},
	})
}
