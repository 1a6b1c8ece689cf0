// Package models defines the domain models for the application.
package models

import (
	"time"
)

// RunType identifies what kind of pipeline invocation a RunLog records.
type RunType string

const (
	RunTypeIngest    RunType = "ingest"
	RunTypeBackfill  RunType = "backfill"
	RunTypeReplay    RunType = "replay"
	RunTypeDiscovery RunType = "discovery"
	RunTypeCatchUp   RunType = "catchup"
)

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunLog is one row per pipeline invocation.
type RunLog struct {
	ID            string     `json:"id"`
	RunType       RunType    `json:"run_type"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	JobsFound     int        `json:"jobs_found"`
	JobsNew       int        `json:"jobs_new"`
	JobsDuplicate int        `json:"jobs_duplicate"`
	JobsRejected  int        `json:"jobs_rejected"`
	JobsAnalyzed  int        `json:"jobs_analyzed"`
	AlertsSent    int        `json:"alerts_sent"`
	DryRun        bool       `json:"dry_run"`
	Errors        []string   `json:"errors,omitempty"` // serialized as JSON in the store
}

// RawJob is an untransformed capture from a source, stored once per poll
// that yielded it.
type RawJob struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	SourceJobID string     `json:"source_job_id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	URL         string     `json:"url"`
	LocationRaw string     `json:"location_raw"`
	Content     string     `json:"content"` // HTML or plain text
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	RawPayload  string     `json:"raw_payload"` // original document for replay
	FetchedAt   time.Time  `json:"fetched_at"`
	RunID       string     `json:"run_id,omitempty"`
}

// WorkMode classifies where a job expects you to be.
type WorkMode string

const (
	WorkModeOnsite  WorkMode = "onsite"
	WorkModeHybrid  WorkMode = "hybrid"
	WorkModeRemote  WorkMode = "remote"
	WorkModeUnknown WorkMode = "unknown"
)

// ParseWorkMode maps a stored string to a WorkMode, defaulting to unknown.
func ParseWorkMode(s string) WorkMode {
	switch WorkMode(s) {
	case WorkModeOnsite, WorkModeHybrid, WorkModeRemote:
		return WorkMode(s)
	default:
		return WorkModeUnknown
	}
}

// TitleBucket classifies a title against the include/maybe/reject filters.
type TitleBucket string

const (
	TitleBucketInclude TitleBucket = "include"
	TitleBucketMaybe   TitleBucket = "maybe"
	TitleBucketReject  TitleBucket = "reject"
)

// ScoreBand is the named score bucket that determines downstream treatment.
type ScoreBand string

const (
	BandTopPriority ScoreBand = "top_priority"
	BandGoodMatch   ScoreBand = "good_match"
	BandWorthALook  ScoreBand = "worth_a_look"
)

// Confidence grades how much a parsed posted-at timestamp can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// JobStatus represents the lifecycle state of a canonical job.
type JobStatus string

const (
	JobStatusActive    JobStatus = "active"
	JobStatusApplied   JobStatus = "applied"
	JobStatusDismissed JobStatus = "dismissed"
	JobStatusExpired   JobStatus = "expired"
	JobStatusArchived  JobStatus = "archived"
)

// CanTransition reports whether a status change is allowed. Transitions are
// monotone: active may move to any terminal state; terminal states never
// move again.
func CanTransition(from, to JobStatus) bool {
	if from != JobStatusActive {
		return false
	}
	switch to {
	case JobStatusApplied, JobStatusDismissed, JobStatusExpired, JobStatusArchived:
		return true
	default:
		return false
	}
}

// CanonicalJob is the single authoritative record for a unique posting
// after normalization, dedup, and scoring.
type CanonicalJob struct {
	ID                 string      `json:"id"`
	RawJobID           string      `json:"raw_job_id,omitempty"`
	URLHash            string      `json:"url_hash"`
	ContentFingerprint string      `json:"content_fingerprint"`
	Source             string      `json:"source"`
	SourceJobID        string      `json:"source_job_id"`
	Title              string      `json:"title"`
	Company            string      `json:"company"`
	CompanyNormalized  string      `json:"company_normalized"`
	URL                string      `json:"url"`
	City               string      `json:"city,omitempty"`
	Province           string      `json:"province,omitempty"`
	Country            string      `json:"country,omitempty"`
	LocationRaw        string      `json:"location_raw,omitempty"`
	LocationTier       string      `json:"location_tier,omitempty"` // L1..L5, empty when unmatched
	WorkMode           WorkMode    `json:"work_mode"`
	TitleBucket        TitleBucket `json:"title_bucket"`
	Description        string      `json:"description,omitempty"` // plaintext, tags stripped
	PostedAt           *time.Time  `json:"posted_at,omitempty"`
	PostedAtConfidence Confidence  `json:"posted_at_confidence"`
	FirstSeenAt        time.Time   `json:"first_seen_at"`
	LastSeenAt         time.Time   `json:"last_seen_at"`
	TimesSeen          int         `json:"times_seen"`
	Score              int         `json:"score"`
	ScoreFreshness     int         `json:"score_freshness"`
	ScoreLocation      int         `json:"score_location"`
	ScoreMode          int         `json:"score_mode"`
	ScoreBand          ScoreBand   `json:"score_band"`
	Status             JobStatus   `json:"status"`
	IsBackfill         bool        `json:"is_backfill"`
	IsReposted         bool        `json:"is_reposted"`
	OriginalPostDate   *time.Time  `json:"original_post_date,omitempty"`
	NotifiedAt         *time.Time  `json:"notified_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Verdict is the analyzer's overall call on a job.
type Verdict string

const (
	VerdictStrong   Verdict = "strong"
	VerdictModerate Verdict = "moderate"
	VerdictWeak     Verdict = "weak"
	VerdictStretch  Verdict = "stretch"
)

// ParseVerdict maps a model-returned string to a Verdict, defaulting to weak.
func ParseVerdict(s string) Verdict {
	switch Verdict(s) {
	case VerdictStrong, VerdictModerate, VerdictWeak, VerdictStretch:
		return Verdict(s)
	default:
		return VerdictWeak
	}
}

// FitAnalysis is the LLM resume-fit result, at most one per canonical job.
type FitAnalysis struct {
	CanonicalJobID       string    `json:"canonical_job_id"`
	FitScore             int       `json:"fit_score"` // 0-100
	Verdict              Verdict   `json:"verdict"`
	Summary              string    `json:"summary"`
	Strengths            []string  `json:"strengths"`
	Gaps                 []string  `json:"gaps"`
	MatchedSkills        []string  `json:"matched_skills"`
	MissingSkills        []string  `json:"missing_skills"`
	BonusSkills          []string  `json:"bonus_skills"`
	TailoringTips        []string  `json:"tailoring_tips"`
	CoverLetterPoints    []string  `json:"cover_letter_points"`
	ExperienceLevelMatch string    `json:"experience_level_match"`
	DomainRelevance      string    `json:"domain_relevance"`
	Recommendation       string    `json:"recommendation"`
	Provider             string    `json:"provider"`
	ModelUsed            string    `json:"model_used"`
	PromptTokens         int       `json:"prompt_tokens"`
	CompletionTokens     int       `json:"completion_tokens"`
	AnalyzedAt           time.Time `json:"analyzed_at"`
}

// BoardStatus represents the registry state of a discovered board.
type BoardStatus string

const (
	BoardStatusActive   BoardStatus = "active"
	BoardStatusInactive BoardStatus = "inactive"
)

// DiscoveredBoard is a registry entry for an ATS board found by discovery.
type DiscoveredBoard struct {
	ID                   string      `json:"id"`
	Platform             string      `json:"platform"`
	BoardURL             string      `json:"board_url"`
	BoardSlug            string      `json:"board_slug"`
	CompanyName          string      `json:"company_name,omitempty"`
	Confidence           float64     `json:"confidence"`
	Status               BoardStatus `json:"status"`
	FirstSeenAt          time.Time   `json:"first_seen_at"`
	LastSeenAt           time.Time   `json:"last_seen_at"`
	LastSuccessAt        *time.Time  `json:"last_success_at,omitempty"`
	ConsecutiveEmptyRuns int         `json:"consecutive_empty_runs"`
}

// DedupMethod identifies which pass detected a duplicate.
type DedupMethod string

const (
	DedupMethodURLHash     DedupMethod = "url_hash"
	DedupMethodFuzzyKey    DedupMethod = "fuzzy_key"
	DedupMethodFingerprint DedupMethod = "content_fingerprint"
)

// DuplicateLink is an edge between a new job and the job it duplicates.
type DuplicateLink struct {
	ID             string      `json:"id"`
	CanonicalJobID string      `json:"canonical_job_id"`
	DuplicateOfID  string      `json:"duplicate_of_id"`
	Method         DedupMethod `json:"method"`
	Similarity     float64     `json:"similarity"`
	IsPotential    bool        `json:"is_potential"`
	CreatedAt      time.Time   `json:"created_at"`
}

// AlternateURL is a secondary URL for a canonical job seen on another source.
type AlternateURL struct {
	ID             string    `json:"id"`
	CanonicalJobID string    `json:"canonical_job_id"`
	Source         string    `json:"source"`
	URL            string    `json:"url"`
	DiscoveredAt   time.Time `json:"discovered_at"`
}

// SourceMetric holds daily aggregates for one source.
type SourceMetric struct {
	ID                  string  `json:"id"`
	Source              string  `json:"source"`
	Date                string  `json:"date"` // YYYY-MM-DD
	JobsFound           int     `json:"jobs_found"`
	JobsNew             int     `json:"jobs_new"`
	JobsDuplicate       int     `json:"jobs_duplicate"`
	ParseFailures       int     `json:"parse_failures"`
	RateLimitHits       int     `json:"rate_limit_hits"`
	ResponseTimeTotalMs int     `json:"response_time_total_ms"`
	ResponseCount       int     `json:"response_count"`
	SuccessCount        int     `json:"success_count"`
	FailureCount        int     `json:"failure_count"`
	ResponseTimeAvgMs   float64 `json:"response_time_avg_ms"` // derived, not stored
	SuccessRate         float64 `json:"success_rate"`         // derived, not stored
}

// ConnectorCheckpoint tracks per source/company polling health.
type ConnectorCheckpoint struct {
	ID                  string     `json:"id"`
	Source              string     `json:"source"`
	Company             string     `json:"company"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// BotKind selects which notification bot a message goes through.
type BotKind string

const (
	BotJobs BotKind = "jobs"
	BotLogs BotKind = "logs"
)

// RetryQueueItem is a notification that failed to send and is awaiting
// another attempt.
type RetryQueueItem struct {
	ID          string    `json:"id"`
	Bot         BotKind   `json:"bot"`
	ChatID      string    `json:"chat_id"`
	Message     string    `json:"message"`
	ParseMode   string    `json:"parse_mode,omitempty"`
	ButtonsJSON string    `json:"buttons_json,omitempty"` // serialized inline keyboard
	RetryCount  int       `json:"retry_count"`
	NextRetryAt time.Time `json:"next_retry_at"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
