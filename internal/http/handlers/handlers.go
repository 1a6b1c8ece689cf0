// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
	"github.com/jmylchreest/jobsift/internal/version"
)

// CallbackAnswerer acknowledges Telegram callback queries.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackQueryID, text string) error
}

// SchedulerStatus exposes the scheduler's single-flight state to the API.
type SchedulerStatus interface {
	Busy() bool
	Skipped() int64
}

// Handlers holds shared dependencies for all API handlers.
type Handlers struct {
	db        *sql.DB
	cfg       *config.Config
	repos     *repository.Repositories
	notifier  CallbackAnswerer
	sched     SchedulerStatus // nil when the scheduler is disabled
	logger    *slog.Logger
	startedAt time.Time
}

// New creates the handler set.
func New(db *sql.DB, cfg *config.Config, repos *repository.Repositories, notifier CallbackAnswerer, sched SchedulerStatus, logger *slog.Logger) *Handlers {
	return &Handlers{
		db:        db,
		cfg:       cfg,
		repos:     repos,
		notifier:  notifier,
		sched:     sched,
		logger:    logger.With("component", "api"),
		startedAt: time.Now(),
	}
}

// DatabaseHealth reports connectivity plus headline job counts.
type DatabaseHealth struct {
	OK         bool `json:"ok"`
	TotalJobs  int  `json:"total_jobs"`
	ActiveJobs int  `json:"active_jobs"`
}

// HealthBody is the health check response body.
type HealthBody struct {
	Status   string         `json:"status" example:"healthy"`
	Version  string         `json:"version"`
	Uptime   string         `json:"uptime"`
	Database DatabaseHealth `json:"database"`
}

// HealthOutput represents the health check response.
type HealthOutput struct {
	Body HealthBody
}

// Health reports service liveness and database connectivity. It never
// returns an error: a broken database shows up as status degraded.
func (h *Handlers) Health(ctx context.Context, input *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{Body: HealthBody{
		Status:  "healthy",
		Version: version.Get().Short(),
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
	}}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(pingCtx); err != nil {
		h.logger.Error("health check database ping failed", "error", err)
		out.Body.Status = "degraded"
		return out, nil
	}
	out.Body.Database.OK = true

	overview, err := h.repos.Analytics.GetOverview(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		h.logger.Error("health check overview query failed", "error", err)
		out.Body.Status = "degraded"
		return out, nil
	}
	out.Body.Database.TotalJobs = overview.TotalJobs
	out.Body.Database.ActiveJobs = overview.ActiveJobs
	return out, nil
}

// RunSummary is a condensed run log entry for the status endpoint.
type RunSummary struct {
	ID         string     `json:"id"`
	RunType    string     `json:"run_type"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	JobsFound  int        `json:"jobs_found"`
	JobsNew    int        `json:"jobs_new"`
	AlertsSent int        `json:"alerts_sent"`
	Errors     int        `json:"errors"`
}

// SchedulerState reports whether the scheduler is running a pipeline pass.
type SchedulerState struct {
	Enabled      bool  `json:"enabled"`
	Busy         bool  `json:"busy"`
	TicksSkipped int64 `json:"ticks_skipped"`
}

// StatusBody is the status endpoint response body.
type StatusBody struct {
	Version         string         `json:"version"`
	Timezone        string         `json:"timezone"`
	DryRun          bool           `json:"dry_run"`
	AnalyzerEnabled bool           `json:"analyzer_enabled"`
	SearchEnabled   bool           `json:"search_enabled"`
	JobsBotEnabled  bool           `json:"jobs_bot_enabled"`
	LogsBotEnabled  bool           `json:"logs_bot_enabled"`
	Scheduler       SchedulerState `json:"scheduler"`
	LastRun         *RunSummary    `json:"last_run,omitempty"`
	RecentRuns      []RunSummary   `json:"recent_runs"`
	RetryQueueDepth int            `json:"retry_queue_depth"`
}

// StatusOutput represents the status endpoint response.
type StatusOutput struct {
	Body StatusBody
}

// Status reports effective configuration, scheduler state, and recent runs.
func (h *Handlers) Status(ctx context.Context, input *struct{}) (*StatusOutput, error) {
	body := StatusBody{
		Version:         version.Get().Short(),
		Timezone:        h.cfg.Timezone,
		DryRun:          h.cfg.DryRun,
		AnalyzerEnabled: h.cfg.AnalyzerEnabled(),
		SearchEnabled:   h.cfg.SearchEnabled(),
		JobsBotEnabled:  h.cfg.JobsBotEnabled(),
		LogsBotEnabled:  h.cfg.LogsBotEnabled(),
		RecentRuns:      []RunSummary{},
	}
	if h.sched != nil {
		body.Scheduler = SchedulerState{
			Enabled:      true,
			Busy:         h.sched.Busy(),
			TicksSkipped: h.sched.Skipped(),
		}
	}

	last, err := h.repos.Run.GetLastCompleted(ctx)
	if err != nil {
		h.logger.Error("failed to load last completed run", "error", err)
	} else if last != nil {
		s := summarizeRun(last)
		body.LastRun = &s
	}

	recent, err := h.repos.Run.GetRecent(ctx, 5)
	if err != nil {
		h.logger.Error("failed to load recent runs", "error", err)
	}
	for _, run := range recent {
		body.RecentRuns = append(body.RecentRuns, summarizeRun(run))
	}

	depth, err := h.repos.RetryQueue.Count(ctx)
	if err != nil {
		h.logger.Error("failed to count retry queue", "error", err)
	}
	body.RetryQueueDepth = depth

	return &StatusOutput{Body: body}, nil
}

func summarizeRun(run *models.RunLog) RunSummary {
	return RunSummary{
		ID:         run.ID,
		RunType:    string(run.RunType),
		Status:     string(run.Status),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		JobsFound:  run.JobsFound,
		JobsNew:    run.JobsNew,
		AlertsSent: run.AlertsSent,
		Errors:     len(run.Errors),
	}
}
