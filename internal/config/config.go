// Package config handles application configuration: environment variables
// for deployment knobs and JSON rule files for scoring and source behavior.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment-driven configuration.
type Config struct {
	// Server settings
	Port    int    `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:jobsift.db?_journal=WAL&_timeout=5000"`

	// Rule files and resume
	ConfigDir  string `env:"CONFIG_DIR" envDefault:"config"`
	ResumePath string `env:"RESUME_PATH" envDefault:"config/resume.txt"`

	// Notifier bots. An empty token disables that bot: sends are skipped
	// and logged, never errored.
	JobsBotToken string `env:"JOBS_BOT_TOKEN"`
	JobsChatID   string `env:"JOBS_CHAT_ID"`
	LogsBotToken string `env:"LOGS_BOT_TOKEN"`
	LogsChatID   string `env:"LOGS_CHAT_ID"`

	// Search API key pool. Empty disables board discovery and the
	// search-based connectors.
	SearchAPIKeys []string `env:"SEARCH_API_KEYS" envSeparator:","`

	// LLM keys: up to three primary keys plus one fallback.
	LLMAPIKey         string `env:"LLM_API_KEY"`
	LLMAPIKey2        string `env:"LLM_API_KEY_2"`
	LLMAPIKey3        string `env:"LLM_API_KEY_3"`
	LLMFallbackAPIKey string `env:"LLM_FALLBACK_API_KEY"`
	LLMBaseURL        string `env:"LLM_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	LLMFallbackURL    string `env:"LLM_FALLBACK_URL" envDefault:"https://openrouter.ai/api/v1"`
	LLMModel          string `env:"LLM_MODEL" envDefault:"llama-3.3-70b-versatile"`
	LLMFallbackModel  string `env:"LLM_FALLBACK_MODEL" envDefault:"meta-llama/llama-3.3-70b-instruct:free"`

	// Pipeline behavior
	DryRun             bool   `env:"DRY_RUN"`
	Timezone           string `env:"TZ" envDefault:"America/Toronto"`
	AIAnalysisMinScore int    `env:"AI_ANALYSIS_MIN_SCORE" envDefault:"50"`
	MaxJobAgeDays      int    `env:"MAX_JOB_AGE_DAYS" envDefault:"30"`
	RawRetentionDays   int    `env:"RAW_RETENTION_DAYS" envDefault:"90"`

	// DiscoveryBoardsDisabled skips merging discovered boards into
	// connector runs; seed companies still poll.
	DiscoveryBoardsDisabled bool `env:"DISCOVERY_BOARDS_DISABLED"`

	// API protection: when set, mutating API routes require this bearer token.
	APIToken string `env:"API_TOKEN"`

	// CORS
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Scheduler
	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	// Retry worker
	RetryPollInterval time.Duration `env:"RETRY_POLL_INTERVAL" envDefault:"1m"`

	location *time.Location
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Trim stray whitespace from comma lists
	cfg.SearchAPIKeys = trimNonEmpty(cfg.SearchAPIKeys)
	cfg.CORSOrigins = trimNonEmpty(cfg.CORSOrigins)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.AIAnalysisMinScore < 0 {
		return nil, fmt.Errorf("AI_ANALYSIS_MIN_SCORE must not be negative")
	}
	if cfg.MaxJobAgeDays <= 0 {
		return nil, fmt.Errorf("MAX_JOB_AGE_DAYS must be positive")
	}
	if cfg.RawRetentionDays <= 0 {
		return nil, fmt.Errorf("RAW_RETENTION_DAYS must be positive")
	}

	return cfg, nil
}

// Location returns the configured wall-clock timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// LLMKeys returns the configured primary keys in pool order.
func (c *Config) LLMKeys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{c.LLMAPIKey, c.LLMAPIKey2, c.LLMAPIKey3} {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, strings.TrimSpace(k))
		}
	}
	return keys
}

// AnalyzerEnabled reports whether at least one primary LLM key is configured.
func (c *Config) AnalyzerEnabled() bool {
	return len(c.LLMKeys()) > 0
}

// SearchEnabled reports whether the search API pool has any keys. When
// false, board discovery and the search-based connectors are disabled.
func (c *Config) SearchEnabled() bool {
	return len(c.SearchAPIKeys) > 0
}

// JobsBotEnabled reports whether the jobs bot can send.
func (c *Config) JobsBotEnabled() bool {
	return c.JobsBotToken != "" && c.JobsChatID != ""
}

// LogsBotEnabled reports whether the logs bot can send.
func (c *Config) LogsBotEnabled() bool {
	return c.LogsBotToken != "" && c.LogsChatID != ""
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
