// Package worker runs the notification retry loop: queued sends that
// failed transiently are re-attempted on a schedule until they succeed or
// exhaust their attempts.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// Sender re-sends a previously queued notification. Satisfied by
// service.Notifier.
type Sender interface {
	ResendQueued(ctx context.Context, item *models.RetryQueueItem) error
}

// Worker periodically flushes due items from the notification retry queue.
type Worker struct {
	queue        repository.RetryQueueRepository
	sender       Sender
	pollInterval time.Duration
	batchLimit   int
	maxAttempts  int
	stop         chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	BatchLimit   int
	MaxAttempts  int
}

// New creates a retry worker.
func New(queue repository.RetryQueueRepository, sender Sender, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.BatchLimit == 0 {
		cfg.BatchLimit = 20
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = constants.RetryQueueMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:        queue,
		sender:       sender,
		pollInterval: cfg.PollInterval,
		batchLimit:   cfg.BatchLimit,
		maxAttempts:  cfg.MaxAttempts,
		stop:         make(chan struct{}),
		logger:       logger.With("component", "retry-worker"),
	}
}

// Start begins the flush loop.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "poll_interval", w.pollInterval.String())
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.FlushOnce(ctx)
		}
	}
}

// FlushOnce drains every currently due item: re-send, remove on success,
// reschedule with exponential backoff on failure, drop after the attempt
// budget. Returns how many items were delivered.
func (w *Worker) FlushOnce(ctx context.Context) int {
	now := time.Now().UTC()
	items, err := w.queue.GetDue(ctx, now, w.batchLimit)
	if err != nil {
		w.logger.Error("failed to load due notifications", "error", err)
		return 0
	}

	sent := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return sent
		}
		if err := w.sender.ResendQueued(ctx, item); err != nil {
			w.handleFailure(ctx, item, err)
			continue
		}
		if err := w.queue.Remove(ctx, item.ID); err != nil {
			w.logger.Error("failed to remove delivered notification", "item_id", item.ID, "error", err)
			continue
		}
		sent++
		w.logger.Info("queued notification delivered", "item_id", item.ID, "bot", item.Bot, "attempts", item.RetryCount+1)
	}
	return sent
}

func (w *Worker) handleFailure(ctx context.Context, item *models.RetryQueueItem, cause error) {
	attempts := item.RetryCount + 1
	if attempts >= w.maxAttempts {
		if err := w.queue.Remove(ctx, item.ID); err != nil {
			w.logger.Error("failed to drop exhausted notification", "item_id", item.ID, "error", err)
			return
		}
		w.logger.Error("notification dropped after max attempts",
			"item_id", item.ID, "bot", item.Bot, "attempts", attempts, "error", cause)
		return
	}

	next := time.Now().UTC().Add(constants.RetryQueueBackoff(attempts))
	if err := w.queue.MarkFailed(ctx, item.ID, next, cause.Error()); err != nil {
		w.logger.Error("failed to reschedule notification", "item_id", item.ID, "error", err)
		return
	}
	w.logger.Warn("notification re-send failed, rescheduled",
		"item_id", item.ID, "bot", item.Bot, "attempts", attempts, "next_retry", next.Format(time.RFC3339))
}
