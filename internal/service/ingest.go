package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/connectors"
	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/fetch"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// RunConnectorOptions selects which connector families a run drives.
type RunConnectorOptions struct {
	IncludeATS         bool
	IncludeAggregators bool
	IncludeUnderground bool
}

// AllConnectors enables every connector family.
func AllConnectors() RunConnectorOptions {
	return RunConnectorOptions{IncludeATS: true, IncludeAggregators: true, IncludeUnderground: true}
}

// ATSOnly enables just the ATS family, used by the frequent sweeps and
// catch-up runs.
func ATSOnly() RunConnectorOptions {
	return RunConnectorOptions{IncludeATS: true}
}

// RunOptions configures one pipeline run.
type RunOptions struct {
	RunType    models.RunType
	Connectors RunConnectorOptions
	// Backfill marks created jobs as historical and suppresses analysis
	// and alerts for them.
	Backfill bool
	// DryRun runs the full pipeline but sends no alerts and marks nothing
	// notified.
	DryRun bool
}

type ingestOutcome int

const (
	outcomeCreated ingestOutcome = iota
	outcomeRejected
	outcomeDuplicate
)

// IngestService is the pipeline orchestrator. One Run drives the selected
// connectors, feeds every raw posting through normalize, dedup, and scoring,
// persists the survivors, runs the fit analyzer over the best of them, and
// dispatches alerts. The returned RunLog is the run's summary.
type IngestService struct {
	cfg        *config.Config
	rules      *config.Rules
	repos      *repository.Repositories
	registry   *connectors.Registry
	normalizer *Normalizer
	deduper    *Deduper
	scorer     *Scorer
	analyzer   *AnalyzerService
	notifier   *Notifier
	logger     *slog.Logger
}

func NewIngestService(
	cfg *config.Config,
	rules *config.Rules,
	repos *repository.Repositories,
	registry *connectors.Registry,
	normalizer *Normalizer,
	deduper *Deduper,
	scorer *Scorer,
	analyzer *AnalyzerService,
	notifier *Notifier,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		cfg:        cfg,
		rules:      rules,
		repos:      repos,
		registry:   registry,
		normalizer: normalizer,
		deduper:    deduper,
		scorer:     scorer,
		analyzer:   analyzer,
		notifier:   notifier,
		logger:     logger.With("component", "ingest"),
	}
}

// Run executes one full pipeline pass. A single bad posting or connector
// never aborts the run; its error lands in the run log. Only run-level
// failures (building connectors, loading the dedup index) finish the run as
// failed.
func (s *IngestService) Run(ctx context.Context, opts RunOptions) (*models.RunLog, error) {
	started := time.Now().UTC()
	if opts.RunType == "" {
		opts.RunType = models.RunTypeIngest
	}

	run := &models.RunLog{
		RunType:   opts.RunType,
		Status:    models.RunStatusRunning,
		StartedAt: started,
		DryRun:    opts.DryRun || s.cfg.DryRun,
	}
	if err := s.repos.Run.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}
	s.logger.Info("run started", "run_id", run.ID, "run_type", run.RunType, "dry_run", run.DryRun)

	set, err := s.registry.Build(s.rules)
	if err != nil {
		return s.finishRun(ctx, run, models.RunStatusFailed, fmt.Errorf("failed to build connectors: %w", err))
	}
	conns := selectConnectors(set, opts.Connectors)

	acc := newSourceAccumulator(started.In(s.cfg.Location()).Format("2006-01-02"))

	// Fetch everything before processing anything, so the dedup index is
	// loaded once against a settled database.
	var fetched []connectors.Result
	for _, conn := range conns {
		if err := ctx.Err(); err != nil {
			return s.finishRun(ctx, run, models.RunStatusFailed, fmt.Errorf("run canceled: %w", err))
		}

		src, ok := s.rules.Sources[conn.Name()]
		if !ok {
			continue
		}
		companies, boardIDs := s.companiesFor(ctx, conn, src)
		if len(companies) == 0 {
			s.logger.Info("no companies configured, skipping source", "source", conn.Name())
			continue
		}

		s.logger.Info("fetching source", "source", conn.Name(), "companies", len(companies))
		results := fetch.BatchFetch(ctx, companies, func(ctx context.Context, company string) connectors.Result {
			return conn.Fetch(ctx, company, src)
		}, fetch.BatchOptions{
			BatchSize:            src.RateLimiting.BatchSize,
			DelayBetweenRequests: time.Duration(src.RateLimiting.DelayBetweenRequestsMs) * time.Millisecond,
			BatchPause:           time.Duration(src.RateLimiting.BatchPauseMs) * time.Millisecond,
		})

		for _, res := range results {
			s.recordFetchResult(ctx, res, run, acc, boardIDs)
			run.JobsFound += len(res.Jobs)
		}
		fetched = append(fetched, results...)
	}

	if err := s.deduper.LoadIndex(ctx, started); err != nil {
		return s.finishRun(ctx, run, models.RunStatusFailed, err)
	}
	defer s.deduper.DropIndex()

	// Process sequentially: jobs inserted earlier in the run must be
	// visible to the dedup passes of later ones.
	var aiQueue []AnalyzeItem
	var alertQueue []*models.CanonicalJob
	for _, res := range fetched {
		for i := range res.Jobs {
			if err := ctx.Err(); err != nil {
				return s.finishRun(ctx, run, models.RunStatusFailed, fmt.Errorf("run canceled: %w", err))
			}

			raw := res.Jobs[i]
			raw.RunID = run.ID
			if raw.FetchedAt.IsZero() {
				raw.FetchedAt = started
			}
			if err := s.repos.RawJob.Create(ctx, &raw); err != nil {
				run.Errors = append(run.Errors, fmt.Sprintf("%s/%s: failed to store raw job: %v", res.Source, res.Company, err))
				acc.recordParseFailure(res.Source)
				continue
			}

			outcome, job, err := s.processRaw(ctx, &raw, opts.Backfill, time.Now().UTC())
			if err != nil {
				run.Errors = append(run.Errors, fmt.Sprintf("%s/%s: %v", res.Source, res.Company, err))
				acc.recordParseFailure(res.Source)
				continue
			}

			switch outcome {
			case outcomeRejected:
				run.JobsRejected++
			case outcomeDuplicate:
				run.JobsDuplicate++
				acc.recordDuplicate(res.Source)
			case outcomeCreated:
				run.JobsNew++
				acc.recordNew(res.Source)
				if opts.Backfill {
					continue
				}
				if job.Score >= s.cfg.AIAnalysisMinScore {
					aiQueue = append(aiQueue, AnalyzeItem{Job: job, DescriptionHTML: raw.Content})
				}
				if job.ScoreBand == models.BandTopPriority && job.TitleBucket == models.TitleBucketInclude {
					alertQueue = append(alertQueue, job)
				}
			}
		}
	}

	analyses := make(map[string]*models.FitAnalysis)
	if len(aiQueue) > 0 && s.analyzer.Enabled() {
		s.logger.Info("analyzing jobs", "count", len(aiQueue))
		analyses = s.analyzer.AnalyzeBatch(ctx, aiQueue)
		for _, fit := range analyses {
			if err := s.repos.Analysis.Upsert(ctx, fit); err != nil {
				run.Errors = append(run.Errors, fmt.Sprintf("failed to store analysis for %s: %v", fit.CanonicalJobID, err))
				continue
			}
			run.JobsAnalyzed++
		}
	}

	for _, job := range alertQueue {
		if run.DryRun {
			s.logger.Info("dry run, skipping alert", "job_id", job.ID, "title", job.Title, "score", job.Score)
			continue
		}
		if err := s.notifier.SendJobAlert(ctx, job, analyses[job.ID]); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("alert for %s: %v", job.ID, err))
			continue
		}
		if err := s.repos.Canonical.MarkNotified(ctx, job.ID, time.Now().UTC()); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("failed to mark %s notified: %v", job.ID, err))
		}
		run.AlertsSent++
	}

	for _, err := range acc.flush(ctx, s.repos.SourceMetric) {
		run.Errors = append(run.Errors, err.Error())
	}

	return s.finishRun(ctx, run, models.RunStatusCompleted, nil)
}

// Replay reprocesses raw jobs captured on a given date through the current
// normalize, dedup, and scoring passes. The URL hash pass makes it
// idempotent: canonicals created the first time around come back as
// duplicates. Replays never analyze or alert.
func (s *IngestService) Replay(ctx context.Context, date, source string) (*models.RunLog, error) {
	started := time.Now().UTC()

	run := &models.RunLog{
		RunType:   models.RunTypeReplay,
		Status:    models.RunStatusRunning,
		StartedAt: started,
		DryRun:    s.cfg.DryRun,
	}
	if err := s.repos.Run.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}
	s.logger.Info("replay started", "run_id", run.ID, "date", date, "source", source)

	raws, err := s.repos.RawJob.GetByDate(ctx, date, source)
	if err != nil {
		return s.finishRun(ctx, run, models.RunStatusFailed, fmt.Errorf("failed to load raw jobs: %w", err))
	}
	run.JobsFound = len(raws)

	if err := s.deduper.LoadIndex(ctx, started); err != nil {
		return s.finishRun(ctx, run, models.RunStatusFailed, err)
	}
	defer s.deduper.DropIndex()

	for _, raw := range raws {
		outcome, _, err := s.processRaw(ctx, raw, false, time.Now().UTC())
		if err != nil {
			run.Errors = append(run.Errors, err.Error())
			continue
		}
		switch outcome {
		case outcomeRejected:
			run.JobsRejected++
		case outcomeDuplicate:
			run.JobsDuplicate++
		case outcomeCreated:
			run.JobsNew++
		}
	}

	return s.finishRun(ctx, run, models.RunStatusCompleted, nil)
}

// processRaw takes one stored raw posting through normalize, dedup, and
// scoring. Created jobs are persisted and registered in the fuzzy index so
// later postings in the same run dedup against them.
func (s *IngestService) processRaw(ctx context.Context, raw *models.RawJob, backfill bool, now time.Time) (ingestOutcome, *models.CanonicalJob, error) {
	job := s.normalizer.Normalize(raw, now)
	if job.TitleBucket == models.TitleBucketReject {
		return outcomeRejected, nil, nil
	}
	job.RawJobID = raw.ID
	job.IsBackfill = backfill

	verdict, err := s.deduper.Check(ctx, job, now)
	if err != nil {
		return 0, nil, fmt.Errorf("dedup failed for %q at %s: %w", job.Title, job.Company, err)
	}

	if verdict.IsDuplicate {
		if err := s.absorbDuplicate(ctx, job, verdict, now); err != nil {
			return 0, nil, err
		}
		return outcomeDuplicate, nil, nil
	}
	if verdict.IsRepost {
		job.IsReposted = true
		job.OriginalPostDate = verdict.OriginalPostDate
	}

	s.scorer.Score(job, now).Apply(job)

	if err := s.repos.Canonical.Create(ctx, job); err != nil {
		return 0, nil, fmt.Errorf("failed to store job %q at %s: %w", job.Title, job.Company, err)
	}
	s.deduper.AddToIndex(job)

	if verdict.IsPotential {
		link := &models.DuplicateLink{
			CanonicalJobID: job.ID,
			DuplicateOfID:  verdict.ExistingID,
			Method:         verdict.Method,
			Similarity:     constants.PotentialDuplicateSimilarity,
			IsPotential:    true,
			CreatedAt:      now,
		}
		if err := s.repos.Duplicate.Create(ctx, link); err != nil {
			s.logger.Error("failed to store potential duplicate link", "job_id", job.ID, "error", err)
		}
	}

	return outcomeCreated, job, nil
}

// absorbDuplicate folds a confirmed duplicate into its existing canonical:
// bump the seen counters, and when the duplicate came from another source,
// capture its URL as an alternate.
func (s *IngestService) absorbDuplicate(ctx context.Context, job *models.CanonicalJob, verdict *DedupResult, now time.Time) error {
	if err := s.repos.Canonical.MarkSeen(ctx, verdict.ExistingID, now); err != nil {
		return fmt.Errorf("failed to mark %s seen: %w", verdict.ExistingID, err)
	}

	existing, err := s.repos.Canonical.GetByID(ctx, verdict.ExistingID)
	if err != nil || existing == nil {
		if err != nil {
			s.logger.Error("failed to load duplicate target", "job_id", verdict.ExistingID, "error", err)
		}
		return nil
	}
	if existing.Source != job.Source && job.URL != "" {
		alt := &models.AlternateURL{
			CanonicalJobID: existing.ID,
			Source:         job.Source,
			URL:            job.URL,
			DiscoveredAt:   now,
		}
		if err := s.repos.AlternateURL.Create(ctx, alt); err != nil {
			s.logger.Error("failed to store alternate url", "job_id", existing.ID, "error", err)
		}
	}
	return nil
}

// recordFetchResult updates the checkpoint and board poll state for one
// connector fetch and folds it into the metrics accumulator. Every third
// consecutive failure of the same company raises a system alert.
func (s *IngestService) recordFetchResult(ctx context.Context, res connectors.Result, run *models.RunLog, acc *sourceAccumulator, boardIDs map[string]string) {
	acc.recordFetch(res)
	now := time.Now().UTC()

	if res.Success {
		if err := s.repos.Checkpoint.RecordSuccess(ctx, res.Source, res.Company, now); err != nil {
			s.logger.Error("failed to record checkpoint", "source", res.Source, "company", res.Company, "error", err)
		}
	} else if res.Err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("%s/%s: %v", res.Source, res.Company, res.Err))
		count, err := s.repos.Checkpoint.RecordFailure(ctx, res.Source, res.Company, res.Err.Error(), now)
		if err != nil {
			s.logger.Error("failed to record checkpoint", "source", res.Source, "company", res.Company, "error", err)
		} else if count >= constants.ConsecutiveFailureAlertEvery && count%constants.ConsecutiveFailureAlertEvery == 0 {
			msg := fmt.Sprintf("connector %s/%s has failed %d times in a row: %v", res.Source, res.Company, count, res.Err)
			if alertErr := s.notifier.SendSystemAlert(ctx, msg); alertErr != nil {
				s.logger.Error("failed to send failure alert", "source", res.Source, "error", alertErr)
			}
		}
	}

	if id, ok := boardIDs[strings.ToLower(res.Company)]; ok {
		if err := s.repos.Board.RecordPoll(ctx, id, len(res.Jobs), now); err != nil {
			s.logger.Error("failed to record board poll", "company", res.Company, "error", err)
		}
	}
}

// companiesFor merges the seed company list with active discovered boards
// for the connector's platform, deduplicated case-insensitively. The second
// return maps lowercased slugs to board IDs for poll recording. Search
// connectors run their configured queries instead and get one synthetic
// empty entry.
func (s *IngestService) companiesFor(ctx context.Context, conn connectors.Connector, src config.SourceDef) ([]string, map[string]string) {
	if src.Type == "search" {
		return []string{""}, nil
	}

	companies := append([]string(nil), s.rules.Companies[conn.Name()]...)
	seen := make(map[string]bool, len(companies))
	for _, c := range companies {
		seen[strings.ToLower(c)] = true
	}

	boardIDs := make(map[string]string)
	if s.cfg.DiscoveryBoardsDisabled {
		return companies, boardIDs
	}

	boards, err := s.repos.Board.GetActiveByPlatform(ctx, conn.Platform())
	if err != nil {
		s.logger.Error("failed to load discovered boards", "platform", conn.Platform(), "error", err)
		return companies, boardIDs
	}
	for _, b := range boards {
		slug := strings.ToLower(b.BoardSlug)
		boardIDs[slug] = b.ID
		if !seen[slug] {
			seen[slug] = true
			companies = append(companies, b.BoardSlug)
		}
	}
	return companies, boardIDs
}

func selectConnectors(set *connectors.Set, opts RunConnectorOptions) []connectors.Connector {
	var conns []connectors.Connector
	if opts.IncludeATS {
		conns = append(conns, set.ATS...)
	}
	if opts.IncludeAggregators {
		conns = append(conns, set.Aggregators...)
	}
	if opts.IncludeUnderground {
		conns = append(conns, set.Underground...)
	}
	return conns
}

// finishRun closes the run log with a terminal status. It survives a
// canceled run context so the terminal row still lands.
func (s *IngestService) finishRun(ctx context.Context, run *models.RunLog, status models.RunStatus, cause error) (*models.RunLog, error) {
	if cause != nil {
		run.Errors = append(run.Errors, cause.Error())
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = status

	if err := s.repos.Run.Finish(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to finish run log", "run_id", run.ID, "error", err)
		if cause == nil {
			cause = err
		}
	}

	s.logger.Info("run finished",
		"run_id", run.ID,
		"status", run.Status,
		"found", run.JobsFound,
		"new", run.JobsNew,
		"duplicates", run.JobsDuplicate,
		"rejected", run.JobsRejected,
		"analyzed", run.JobsAnalyzed,
		"alerts", run.AlertsSent,
		"errors", len(run.Errors),
		"duration", finished.Sub(run.StartedAt).Round(time.Millisecond).String(),
	)
	return run, cause
}
