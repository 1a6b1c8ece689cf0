package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-000000",
		Description: "Initial schema",
		Up: []string{
			// Run logs - one row per pipeline invocation
			`CREATE TABLE IF NOT EXISTS run_logs (
				id TEXT PRIMARY KEY,
				run_type TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'running',
				started_at TEXT NOT NULL,
				finished_at TEXT,
				jobs_found INTEGER NOT NULL DEFAULT 0,
				jobs_new INTEGER NOT NULL DEFAULT 0,
				jobs_duplicate INTEGER NOT NULL DEFAULT 0,
				jobs_rejected INTEGER NOT NULL DEFAULT 0,
				jobs_analyzed INTEGER NOT NULL DEFAULT 0,
				alerts_sent INTEGER NOT NULL DEFAULT 0,
				dry_run INTEGER NOT NULL DEFAULT 0,
				errors_json TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_run_logs_started ON run_logs(started_at)`,
			`CREATE INDEX IF NOT EXISTS idx_run_logs_status ON run_logs(status, finished_at)`,

			// Raw jobs - untransformed captures, purged after the retention window
			`CREATE TABLE IF NOT EXISTS jobs_raw (
				id TEXT PRIMARY KEY,
				run_id TEXT REFERENCES run_logs(id) ON DELETE SET NULL,
				source TEXT NOT NULL,
				source_job_id TEXT NOT NULL,
				title TEXT,
				company TEXT,
				url TEXT,
				location_raw TEXT,
				content TEXT,
				posted_at TEXT,
				raw_payload TEXT,
				fetched_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_raw_source ON jobs_raw(source, fetched_at)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_raw_fetched ON jobs_raw(fetched_at)`,

			// Canonical jobs - normalized, deduplicated, scored
			// raw_job_id survives raw purges as NULL
			`CREATE TABLE IF NOT EXISTS jobs_canonical (
				id TEXT PRIMARY KEY,
				raw_job_id TEXT REFERENCES jobs_raw(id) ON DELETE SET NULL,
				url_hash TEXT UNIQUE NOT NULL,
				content_fingerprint TEXT,
				source TEXT NOT NULL,
				source_job_id TEXT NOT NULL,
				title TEXT NOT NULL,
				company TEXT NOT NULL,
				company_normalized TEXT NOT NULL,
				url TEXT NOT NULL,
				city TEXT,
				province TEXT,
				country TEXT,
				location_raw TEXT,
				location_tier TEXT,
				work_mode TEXT NOT NULL DEFAULT 'unknown',
				title_bucket TEXT NOT NULL,
				description TEXT,
				posted_at TEXT,
				posted_at_confidence TEXT NOT NULL DEFAULT 'low',
				first_seen_at TEXT NOT NULL,
				last_seen_at TEXT NOT NULL,
				times_seen INTEGER NOT NULL DEFAULT 1,
				score INTEGER NOT NULL DEFAULT 0,
				score_freshness INTEGER NOT NULL DEFAULT 0,
				score_location INTEGER NOT NULL DEFAULT 0,
				score_mode INTEGER NOT NULL DEFAULT 0,
				score_band TEXT,
				status TEXT NOT NULL DEFAULT 'active',
				is_backfill INTEGER NOT NULL DEFAULT 0,
				is_reposted INTEGER NOT NULL DEFAULT 0,
				original_post_date TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_canonical_fingerprint ON jobs_canonical(content_fingerprint)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_canonical_status_score ON jobs_canonical(status, score)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_canonical_first_seen ON jobs_canonical(first_seen_at)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_canonical_company ON jobs_canonical(company_normalized)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_canonical_source ON jobs_canonical(source)`,

			// Duplicate links - edge from a new job to the job it duplicates
			`CREATE TABLE IF NOT EXISTS job_duplicates (
				id TEXT PRIMARY KEY,
				canonical_job_id TEXT NOT NULL REFERENCES jobs_canonical(id) ON DELETE CASCADE,
				duplicate_of_id TEXT NOT NULL REFERENCES jobs_canonical(id) ON DELETE CASCADE,
				method TEXT NOT NULL,
				similarity REAL NOT NULL DEFAULT 0,
				is_potential INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_job_duplicates_job ON job_duplicates(canonical_job_id)`,
			`CREATE INDEX IF NOT EXISTS idx_job_duplicates_of ON job_duplicates(duplicate_of_id)`,

			// Fit analyses - at most one per canonical job, replaced on re-analysis
			`CREATE TABLE IF NOT EXISTS fit_analyses (
				canonical_job_id TEXT PRIMARY KEY REFERENCES jobs_canonical(id) ON DELETE CASCADE,
				fit_score INTEGER NOT NULL,
				verdict TEXT NOT NULL,
				summary TEXT NOT NULL,
				strengths_json TEXT,
				gaps_json TEXT,
				matched_skills_json TEXT,
				missing_skills_json TEXT,
				bonus_skills_json TEXT,
				tailoring_tips_json TEXT,
				cover_letter_points_json TEXT,
				experience_level_match TEXT,
				domain_relevance TEXT,
				recommendation TEXT,
				provider TEXT,
				model_used TEXT,
				prompt_tokens INTEGER NOT NULL DEFAULT 0,
				completion_tokens INTEGER NOT NULL DEFAULT 0,
				analyzed_at TEXT NOT NULL
			)`,

			// Source metrics - daily aggregates, additive upsert per (source, date)
			`CREATE TABLE IF NOT EXISTS source_metrics (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				date TEXT NOT NULL,
				jobs_found INTEGER NOT NULL DEFAULT 0,
				jobs_new INTEGER NOT NULL DEFAULT 0,
				jobs_duplicate INTEGER NOT NULL DEFAULT 0,
				parse_failures INTEGER NOT NULL DEFAULT 0,
				rate_limit_hits INTEGER NOT NULL DEFAULT 0,
				response_time_total_ms INTEGER NOT NULL DEFAULT 0,
				response_count INTEGER NOT NULL DEFAULT 0,
				success_count INTEGER NOT NULL DEFAULT 0,
				failure_count INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_source_metrics_source_date ON source_metrics(source, date)`,
		},
	})
}
