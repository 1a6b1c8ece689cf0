// Package scheduler drives the pipeline on fixed cron slots. A single-flight
// lock keeps at most one run in progress: ticks that land during a run are
// skipped, never queued.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
	"github.com/jmylchreest/jobsift/internal/service"
)

// Cron slots, evaluated in the configured timezone.
const (
	slotATSSweep    = "0 */3 * * *"
	slotAggregators = "0 8,20 * * *"
	slotUnderground = "0 8,20 * * *"
	slotPreMorning  = "5 8 * * *"
	slotMorning     = "30 8 * * *"
	slotPreEvening  = "30 17 * * *"
	slotEvening     = "0 18 * * *"
	slotWeekly      = "0 19 * * 0"
	slotArchive     = "0 3 * * 0"
)

// IngestRunner runs one pipeline pass.
type IngestRunner interface {
	Run(ctx context.Context, opts service.RunOptions) (*models.RunLog, error)
}

// DiscoveryRunner runs one board discovery pass.
type DiscoveryRunner interface {
	Run(ctx context.Context, now time.Time) (*service.DiscoveryResult, error)
}

// DigestSender sends the daily and weekly digests.
type DigestSender interface {
	SendDaily(ctx context.Context, kind service.DigestKind, forceAll bool, now time.Time) error
	SendWeekly(ctx context.Context, now time.Time) error
}

// Archiver retires rows past their retention windows.
type Archiver interface {
	ArchiveAndPurge(ctx context.Context, now time.Time) (*service.CleanupResult, error)
}

// Scheduler owns the cron entries and the single-flight pipeline lock.
type Scheduler struct {
	ingest    IngestRunner
	discovery DiscoveryRunner
	digest    DigestSender
	archiver  Archiver
	runs      repository.RunLogRepository
	location  *time.Location
	logger    *slog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	busy    bool
	skipped atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. loc controls slot evaluation; nil means UTC.
func New(
	ingest IngestRunner,
	discovery DiscoveryRunner,
	digest DigestSender,
	archiver Archiver,
	runs repository.RunLogRepository,
	loc *time.Location,
	logger *slog.Logger,
) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		ingest:    ingest,
		discovery: discovery,
		digest:    digest,
		archiver:  archiver,
		runs:      runs,
		location:  loc,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start registers the slots, runs the catch-up check, and starts the cron
// loop. The scheduler never interrupts an in-flight run; Stop only prevents
// new ticks from firing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithLocation(s.location))

	entries := []struct {
		spec string
		name string
		fn   func(ctx context.Context)
	}{
		{slotATSSweep, "ats-sweep", s.runATSSweep},
		{slotAggregators, "aggregators", s.runAggregators},
		{slotUnderground, "underground", s.runUnderground},
		{slotPreMorning, "pre-morning", s.runPreMorning},
		{slotMorning, "morning-digest", s.runMorningDigest},
		{slotPreEvening, "pre-evening", s.runPreEvening},
		{slotEvening, "evening-digest", s.runEveningDigest},
		{slotWeekly, "weekly-report", s.runWeeklyReport},
		{slotArchive, "archive-purge", s.runArchivePurge},
	}
	for _, e := range entries {
		entry := e
		if _, err := s.cron.AddFunc(entry.spec, func() { entry.fn(s.ctx) }); err != nil {
			return err
		}
	}

	s.catchUp(s.ctx)

	s.cron.Start()
	s.logger.Info("scheduler started", "slots", len(entries), "timezone", s.location.String())
	return nil
}

// Stop halts the cron loop and waits for any running entry to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("scheduler stopped")
}

// Busy reports whether a guarded run is in progress.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Skipped returns how many ticks were refused by the single-flight lock.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// tryLock claims the single-flight lock. A refused claim is counted.
func (s *Scheduler) tryLock(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		s.skipped.Add(1)
		s.logger.Warn("pipeline run in progress, skipping tick", "slot", name, "skipped_total", s.skipped.Load())
		return false
	}
	s.busy = true
	return true
}

func (s *Scheduler) unlock() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// runGuarded runs fn under the single-flight lock, or not at all.
func (s *Scheduler) runGuarded(ctx context.Context, name string, fn func(ctx context.Context)) {
	if !s.tryLock(name) {
		return
	}
	defer s.unlock()
	s.logger.Info("slot fired", "slot", name)
	fn(ctx)
}

// catchUp enqueues an immediate ATS-only run when the last completed run is
// stale or missing, so a restart after downtime does not wait for the next
// slot.
func (s *Scheduler) catchUp(ctx context.Context) {
	last, err := s.runs.GetLastCompleted(ctx)
	if err != nil {
		s.logger.Error("failed to load last completed run, skipping catch-up", "error", err)
		return
	}
	if last != nil && last.FinishedAt != nil && time.Since(*last.FinishedAt) < constants.CatchUpThreshold {
		return
	}

	s.logger.Info("last completed run is stale, scheduling catch-up")
	go s.runGuarded(ctx, "catch-up", func(ctx context.Context) {
		if _, err := s.ingest.Run(ctx, service.RunOptions{
			RunType:    models.RunTypeCatchUp,
			Connectors: service.ATSOnly(),
		}); err != nil {
			s.logger.Error("catch-up run failed", "error", err)
		}
	})
}

func (s *Scheduler) runATSSweep(ctx context.Context) {
	s.runGuarded(ctx, "ats-sweep", func(ctx context.Context) {
		if _, err := s.ingest.Run(ctx, service.RunOptions{Connectors: service.ATSOnly()}); err != nil {
			s.logger.Error("ats sweep failed", "error", err)
		}
	})
}

func (s *Scheduler) runAggregators(ctx context.Context) {
	s.runGuarded(ctx, "aggregators", func(ctx context.Context) {
		opts := service.RunOptions{Connectors: service.RunConnectorOptions{IncludeAggregators: true}}
		if _, err := s.ingest.Run(ctx, opts); err != nil {
			s.logger.Error("aggregator run failed", "error", err)
		}
	})
}

func (s *Scheduler) runUnderground(ctx context.Context) {
	s.runGuarded(ctx, "underground", func(ctx context.Context) {
		opts := service.RunOptions{Connectors: service.RunConnectorOptions{IncludeUnderground: true}}
		if _, err := s.ingest.Run(ctx, opts); err != nil {
			s.logger.Error("underground run failed", "error", err)
		}
	})
}

// runPreMorning refreshes the board registry and then ingests ATS sources,
// so the morning digest covers boards found overnight.
func (s *Scheduler) runPreMorning(ctx context.Context) {
	s.runGuarded(ctx, "pre-morning", func(ctx context.Context) {
		if _, err := s.discovery.Run(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("board discovery failed", "error", err)
		}
		if _, err := s.ingest.Run(ctx, service.RunOptions{Connectors: service.ATSOnly()}); err != nil {
			s.logger.Error("pre-morning ingest failed", "error", err)
		}
	})
}

func (s *Scheduler) runPreEvening(ctx context.Context) {
	s.runGuarded(ctx, "pre-evening", func(ctx context.Context) {
		if _, err := s.ingest.Run(ctx, service.RunOptions{Connectors: service.ATSOnly()}); err != nil {
			s.logger.Error("pre-evening ingest failed", "error", err)
		}
	})
}

func (s *Scheduler) runMorningDigest(ctx context.Context) {
	if err := s.digest.SendDaily(ctx, service.DigestMorning, false, time.Now()); err != nil {
		s.logger.Error("morning digest failed", "error", err)
	}
}

func (s *Scheduler) runEveningDigest(ctx context.Context) {
	if err := s.digest.SendDaily(ctx, service.DigestEvening, false, time.Now()); err != nil {
		s.logger.Error("evening digest failed", "error", err)
	}
}

func (s *Scheduler) runWeeklyReport(ctx context.Context) {
	if err := s.digest.SendWeekly(ctx, time.Now()); err != nil {
		s.logger.Error("weekly report failed", "error", err)
	}
}

// runArchivePurge holds the pipeline lock: archiving rewrites canonical rows
// and must not interleave with an ingest run.
func (s *Scheduler) runArchivePurge(ctx context.Context) {
	s.runGuarded(ctx, "archive-purge", func(ctx context.Context) {
		if _, err := s.archiver.ArchiveAndPurge(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("archive and purge failed", "error", err)
		}
	})
}
