package service

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/connectors"
	"github.com/jmylchreest/jobsift/internal/fetch"
	"github.com/jmylchreest/jobsift/internal/llm"
	"github.com/jmylchreest/jobsift/internal/repository"
	"github.com/jmylchreest/jobsift/internal/search"
)

// Services bundles every constructed service plus the shared clients they
// hang off, wired once at startup.
type Services struct {
	Fetcher   *fetch.Client
	Searcher  *search.Client
	Registry  *connectors.Registry
	Notifier  *Notifier
	Analyzer  *AnalyzerService
	Ingest    *IngestService
	Discovery *DiscoveryService
	Digest    *DigestService
	Cleanup   *CleanupService
}

// NewServices wires the full service graph from config, rules, and
// repositories. The LLM client is only built when primary keys are present;
// everything downstream treats a nil client as analysis-disabled.
func NewServices(cfg *config.Config, rules *config.Rules, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	fetcher := fetch.NewClient(logger)
	searcher := search.NewClient(cfg.SearchAPIKeys, "", fetcher, logger)
	registry := connectors.NewRegistry(connectors.Deps{
		Fetcher:  fetcher,
		Searcher: searcher,
		Logger:   logger,
		Location: cfg.Location(),
	})

	var llmClient *llm.Client
	if cfg.AnalyzerEnabled() {
		var err error
		llmClient, err = llm.NewClient(llm.Options{
			BaseURL:       cfg.LLMBaseURL,
			Model:         cfg.LLMModel,
			Keys:          cfg.LLMKeys(),
			FallbackURL:   cfg.LLMFallbackURL,
			FallbackModel: cfg.LLMFallbackModel,
			FallbackKey:   cfg.LLMFallbackAPIKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build llm client: %w", err)
		}
	}

	notifier := NewNotifier(cfg, repos.RetryQueue, logger)
	analyzer := NewAnalyzerService(llmClient, cfg.ResumePath, logger)
	normalizer := NewNormalizer(rules, cfg.Location())
	deduper := NewDeduper(repos.Canonical, logger)
	scorer := NewScorer(rules)

	ingest := NewIngestService(cfg, rules, repos, registry, normalizer, deduper, scorer, analyzer, notifier, logger)
	discovery := NewDiscoveryService(repos.Board, searcher, rules, logger)
	digest := NewDigestService(repos.Canonical, repos.Analytics, notifier, rules, cfg.Location(), logger)
	cleanup := NewCleanupService(repos.Canonical, fetcher, cfg, logger)

	return &Services{
		Fetcher:   fetcher,
		Searcher:  searcher,
		Registry:  registry,
		Notifier:  notifier,
		Analyzer:  analyzer,
		Ingest:    ingest,
		Discovery: discovery,
		Digest:    digest,
		Cleanup:   cleanup,
	}, nil
}
