// Package constants defines centralized configuration for pipeline operations.
package constants

import "time"

// Fetch retry and backoff configuration.
const (
	// DefaultFetchTimeout bounds a single connector request, headers and body.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for 429/5xx/network failures.
	DefaultMaxRetries = 3

	// DefaultBackoffStart is the first retry delay; doubles each attempt.
	DefaultBackoffStart = 1 * time.Second

	// MaxBackoff caps exponential growth between fetch retries.
	MaxBackoff = 60 * time.Second

	// DefaultBatchSize is the number of in-flight requests per source slice.
	DefaultBatchSize = 5

	// DefaultBatchPause is the sleep between slices of the same source.
	DefaultBatchPause = 2 * time.Second

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes = 10 << 20
)

// LLM fit analysis configuration.
const (
	// AnalysisTemperature is the sampling temperature for fit analysis calls.
	AnalysisTemperature = 0.3

	// AnalysisMaxTokens is the completion budget for fit analysis calls.
	AnalysisMaxTokens = 2048

	// MaxDescriptionChars is the cap applied to a job description before it
	// is embedded in the prompt.
	MaxDescriptionChars = 8000

	// TruncationMarker is appended when a description is cut at the cap.
	TruncationMarker = "... [truncated]"

	// KeyAcquireTimeout bounds how long an analysis waits for a free API key.
	KeyAcquireTimeout = 30 * time.Second

	// StreamStallTimeout aborts a streaming response when no chunk arrives
	// within this window.
	StreamStallTimeout = 120 * time.Second

	// AnalysisHardTimeout bounds the entire streaming call, chunks or not.
	AnalysisHardTimeout = 12 * time.Minute

	// LLMRetryAttempts is the retry budget for retryable LLM failures.
	LLMRetryAttempts = 3

	// LLMHTTPRetryDelay is the base delay for 429/502/503 retries; the
	// wait is LLMHTTPRetryDelay * (attempt + 1).
	LLMHTTPRetryDelay = 2 * time.Second

	// LLMNetworkRetryDelay is the base delay for network-error retries; the
	// wait is LLMNetworkRetryDelay * (attempt + 1).
	LLMNetworkRetryDelay = 1 * time.Second
)

// Dedup windows and thresholds.
const (
	// FuzzyWindowDays bounds which active jobs are loaded into the in-memory
	// fuzzy index.
	FuzzyWindowDays = 7

	// RepostWindowDays separates a duplicate from a repost: an identical
	// fingerprint older than this is a repost, not a duplicate.
	RepostWindowDays = 7

	// FuzzyDuplicateThreshold marks a fuzzy match as a firm duplicate.
	FuzzyDuplicateThreshold = 0.85

	// FuzzyPotentialThreshold marks a fuzzy match as a potential duplicate;
	// the job is still persisted but linked to the suspected original.
	FuzzyPotentialThreshold = 0.70

	// PotentialDuplicateSimilarity is the similarity recorded on potential
	// duplicate links.
	PotentialDuplicateSimilarity = 0.75
)

// Retention and scheduling.
const (
	// DefaultArchiveAfterDays moves stale active jobs to archived.
	DefaultArchiveAfterDays = 30

	// DefaultPurgeRawAfterDays deletes raw captures older than this.
	DefaultPurgeRawAfterDays = 90

	// CatchUpThreshold triggers a catch-up ingest on startup when the last
	// completed run is older than this.
	CatchUpThreshold = 4 * time.Hour
)

// Notification delivery.
const (
	// NotifySendTimeout bounds one Telegram API call.
	NotifySendTimeout = 30 * time.Second

	// RetryQueueMaxAttempts drops a queued notification after this many
	// failed re-sends.
	RetryQueueMaxAttempts = 5

	// RetryQueueBaseDelay is the first re-send delay; doubles per attempt.
	RetryQueueBaseDelay = 5 * time.Minute

	// AlternateURLListCap limits alternate URLs returned per job.
	AlternateURLListCap = 5

	// DigestBandCap limits listed jobs per score band in a daily digest.
	DigestBandCap = 10

	// DigestWeeklyTopJobs limits the highlighted jobs in the weekly report.
	DigestWeeklyTopJobs = 5

	// ConsecutiveFailureAlertEvery emits a system alert when a source's
	// consecutive failure count reaches a multiple of this value.
	ConsecutiveFailureAlertEvery = 3
)

// Board discovery.
const (
	// DiscoveryConfidence is the floor confidence assigned to a board found
	// via search; upserts keep the max of existing and this.
	DiscoveryConfidence = 0.75

	// DiscoveryQueryDelay is the polite pause between search queries.
	DiscoveryQueryDelay = 2 * time.Second

	// DiscoveryResultsPerQuery is how many search results one discovery
	// query requests.
	DiscoveryResultsPerQuery = 10

	// BoardMaxEmptyRuns deactivates a discovered board after this many
	// consecutive zero-yield polls.
	BoardMaxEmptyRuns = 5
)

// RetryQueueBackoff returns the delay before the next re-send attempt for a
// queued notification: base * 2^retryCount, capped at one day.
func RetryQueueBackoff(retryCount int) time.Duration {
	d := RetryQueueBaseDelay
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= 24*time.Hour {
			return 24 * time.Hour
		}
	}
	return d
}
