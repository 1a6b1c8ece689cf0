// Package main is the entry point for the jobsift binary. One executable
// carries the API server, the scheduler, and the operational subcommands.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/database"
	"github.com/jmylchreest/jobsift/internal/http/handlers"
	"github.com/jmylchreest/jobsift/internal/http/routes"
	"github.com/jmylchreest/jobsift/internal/logging"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
	"github.com/jmylchreest/jobsift/internal/scheduler"
	"github.com/jmylchreest/jobsift/internal/service"
	"github.com/jmylchreest/jobsift/internal/version"
	"github.com/jmylchreest/jobsift/internal/worker"

	"log/slog"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: jobsift <command> [flags]

Commands:
  serve              run the API server and scheduler
  ingest             run one full pipeline pass
  backfill           run one pass with alerts and analysis suppressed
  discover           run one board discovery pass
  digest <kind>      send a digest: morning, evening, or weekly
  replay             re-process stored raw captures
  retry-alerts       flush queued notifications and resend missed alerts
  cleanup-expired    probe recent postings and expire dead ones
  archive-old-jobs   archive stale jobs and purge old raw rows
  health-check       probe the running server's health endpoint
  status             print pipeline status from the database
  version            print version information
`)
}

func main() {
	logger := logging.SetDefault()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]

	if command == "version" {
		fmt.Println(version.Get().String())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// The health check only needs the HTTP endpoint, never the database.
	if command == "health-check" {
		os.Exit(healthCheck(cfg))
	}

	rules, err := config.LoadRules(cfg.ConfigDir)
	if err != nil {
		logger.Error("failed to load rule files", "error", err, "dir", cfg.ConfigDir)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)
	services, err := service.NewServices(cfg, rules, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	code := 0
	switch command {
	case "serve":
		code = serve(ctx, db, cfg, repos, services, logger)
	case "ingest":
		code = runIngest(ctx, services, models.RunTypeIngest, false, logger)
	case "backfill":
		code = runIngest(ctx, services, models.RunTypeBackfill, true, logger)
	case "discover":
		code = runDiscover(ctx, services, logger)
	case "digest":
		code = runDigest(ctx, services, args, logger)
	case "replay":
		code = runReplay(ctx, services, args, logger)
	case "retry-alerts":
		code = retryAlerts(ctx, repos, services, cfg, logger)
	case "cleanup-expired":
		code = cleanupExpired(ctx, services, logger)
	case "archive-old-jobs":
		code = archiveOldJobs(ctx, services, logger)
	case "status":
		code = printStatus(ctx, repos, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		code = 1
	}
	os.Exit(code)
}

// serve runs the API server, the retry worker, and (when enabled) the cron
// scheduler until interrupted.
func serve(ctx context.Context, db *sql.DB, cfg *config.Config, repos *repository.Repositories, services *service.Services, logger *slog.Logger) int {
	v := version.Get()
	logger.Info("starting jobsift",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	retryWorker := worker.New(repos.RetryQueue, services.Notifier, worker.Config{
		PollInterval: cfg.RetryPollInterval,
	}, logger)
	retryWorker.Start(ctx)

	var sched *scheduler.Scheduler
	var schedStatus handlers.SchedulerStatus
	if cfg.SchedulerEnabled {
		sched = scheduler.New(
			services.Ingest,
			services.Discovery,
			services.Digest,
			services.Cleanup,
			repos.Run,
			cfg.Location(),
			logger,
		)
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			return 1
		}
		schedStatus = sched
	} else {
		logger.Info("scheduler disabled")
	}

	h := handlers.New(db, cfg, repos, services.Notifier, schedStatus, logger)
	router := routes.NewRouter(cfg, h, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		if sched != nil {
			sched.Stop()
		}
		retryWorker.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		return 1
	}

	logger.Info("server stopped")
	return 0
}

func runIngest(ctx context.Context, services *service.Services, runType models.RunType, backfill bool, logger *slog.Logger) int {
	run, err := services.Ingest.Run(ctx, service.RunOptions{
		RunType:    runType,
		Connectors: service.AllConnectors(),
		Backfill:   backfill,
	})
	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		return 1
	}
	logger.Info("pipeline run finished",
		"run_id", run.ID,
		"status", run.Status,
		"found", run.JobsFound,
		"new", run.JobsNew,
		"duplicate", run.JobsDuplicate,
		"rejected", run.JobsRejected,
		"analyzed", run.JobsAnalyzed,
		"alerts", run.AlertsSent,
	)
	if run.Status == models.RunStatusFailed {
		return 1
	}
	return 0
}

func runDiscover(ctx context.Context, services *service.Services, logger *slog.Logger) int {
	result, err := services.Discovery.Run(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("board discovery failed", "error", err)
		return 1
	}
	logger.Info("board discovery finished",
		"queries", result.QueriesRun,
		"found", result.BoardsFound,
		"new", result.BoardsNew,
		"deactivated", result.Deactivated,
		"errors", len(result.Errors),
	)
	return 0
}

func runDigest(ctx context.Context, services *service.Services, args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	forceAll := fs.Bool("force-all", false, "include jobs already covered by a prior digest")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: jobsift digest <morning|evening|weekly> [--force-all]")
		return 1
	}
	kind := fs.Arg(0)

	now := time.Now()
	if kind == "weekly" {
		if err := services.Digest.SendWeekly(ctx, now); err != nil {
			logger.Error("weekly digest failed", "error", err)
			return 1
		}
		logger.Info("weekly digest sent")
		return 0
	}

	parsed, err := service.ParseDigestKind(kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := services.Digest.SendDaily(ctx, parsed, *forceAll, now); err != nil {
		logger.Error("daily digest failed", "kind", kind, "error", err)
		return 1
	}
	logger.Info("daily digest sent", "kind", kind, "force_all", *forceAll)
	return 0
}

func runReplay(ctx context.Context, services *service.Services, args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	date := fs.String("date", "", "date of raw captures to replay (YYYY-MM-DD)")
	source := fs.String("source", "", "restrict replay to one source")
	_ = fs.Parse(args)

	if *date == "" {
		fmt.Fprintln(os.Stderr, "usage: jobsift replay --date YYYY-MM-DD [--source name]")
		return 1
	}
	if _, err := time.Parse("2006-01-02", *date); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --date %q: want YYYY-MM-DD\n", *date)
		return 1
	}

	run, err := services.Ingest.Replay(ctx, *date, *source)
	if err != nil {
		logger.Error("replay failed", "date", *date, "source", *source, "error", err)
		return 1
	}
	logger.Info("replay finished",
		"run_id", run.ID,
		"status", run.Status,
		"found", run.JobsFound,
		"new", run.JobsNew,
		"duplicate", run.JobsDuplicate,
	)
	return 0
}

func retryAlerts(ctx context.Context, repos *repository.Repositories, services *service.Services, cfg *config.Config, logger *slog.Logger) int {
	retryWorker := worker.New(repos.RetryQueue, services.Notifier, worker.Config{
		PollInterval: cfg.RetryPollInterval,
	}, logger)
	flushed := retryWorker.FlushOnce(ctx)

	resent, err := services.Ingest.ResendMissedAlerts(ctx)
	if err != nil {
		logger.Error("failed to resend missed alerts", "error", err)
		return 1
	}
	logger.Info("retry pass finished", "queued_flushed", flushed, "alerts_resent", resent)
	return 0
}

func cleanupExpired(ctx context.Context, services *service.Services, logger *slog.Logger) int {
	result, err := services.Cleanup.ExpireDead(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("expiry probe failed", "error", err)
		return 1
	}
	logger.Info("expiry probe finished",
		"probed", result.Probed,
		"expired", result.Expired,
		"errors", len(result.Errors),
	)
	return 0
}

func archiveOldJobs(ctx context.Context, services *service.Services, logger *slog.Logger) int {
	result, err := services.Cleanup.ArchiveAndPurge(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("archive and purge failed", "error", err)
		return 1
	}
	logger.Info("archive and purge finished",
		"archived", result.Archived,
		"purged", result.Purged,
	)
	return 0
}

func printStatus(ctx context.Context, repos *repository.Repositories, logger *slog.Logger) int {
	last, err := repos.Run.GetLastCompleted(ctx)
	if err != nil {
		logger.Error("failed to load last completed run", "error", err)
		return 1
	}
	if last == nil {
		fmt.Println("no completed runs yet")
	} else {
		finished := "-"
		if last.FinishedAt != nil {
			finished = last.FinishedAt.Format(time.RFC3339)
		}
		fmt.Printf("last run: %s  type=%s  finished=%s  found=%d new=%d alerts=%d\n",
			last.ID, last.RunType, finished, last.JobsFound, last.JobsNew, last.AlertsSent)
	}

	overview, err := repos.Analytics.GetOverview(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		logger.Error("failed to load overview", "error", err)
		return 1
	}
	fmt.Printf("jobs: total=%d active=%d applied=%d dismissed=%d expired=%d archived=%d\n",
		overview.TotalJobs, overview.ActiveJobs, overview.AppliedJobs,
		overview.DismissedJobs, overview.ExpiredJobs, overview.ArchivedJobs)
	fmt.Printf("last 7 days: new=%d analyzed=%d avg_score=%.1f  bands: top=%d good=%d look=%d\n",
		overview.NewInPeriod, overview.AnalyzedJobs, overview.AverageScore,
		overview.TopPriority, overview.GoodMatch, overview.WorthALook)

	depth, err := repos.RetryQueue.Count(ctx)
	if err == nil && depth > 0 {
		fmt.Printf("retry queue: %d pending notifications\n", depth)
	}
	return 0
}

// healthCheck probes the running server, for container health checks.
func healthCheck(cfg *config.Config) int {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(cfg.BaseURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Println("ok")
	return 0
}
