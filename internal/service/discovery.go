package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
	"github.com/jmylchreest/jobsift/internal/search"
)

// boardPattern matches one ATS URL shape and rebuilds the canonical board
// URL from the extracted slug.
type boardPattern struct {
	platform string
	re       *regexp.Regexp
	boardURL func(slug string) string
}

// boardPatterns is checked in order; the first match wins.
var boardPatterns = []boardPattern{
	{"greenhouse", regexp.MustCompile(`(?i)boards\.greenhouse\.io/([a-z0-9_-]+)`), func(s string) string { return "https://boards.greenhouse.io/" + s }},
	{"lever", regexp.MustCompile(`(?i)jobs\.lever\.co/([a-z0-9_-]+)`), func(s string) string { return "https://jobs.lever.co/" + s }},
	{"ashby", regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/([a-z0-9_-]+)`), func(s string) string { return "https://jobs.ashbyhq.com/" + s }},
	{"workable", regexp.MustCompile(`(?i)apply\.workable\.com/([a-z0-9_-]+)`), func(s string) string { return "https://apply.workable.com/" + s }},
	{"bamboohr", regexp.MustCompile(`(?i)//([a-z0-9-]+)\.bamboohr\.com`), func(s string) string { return "https://" + s + ".bamboohr.com/careers" }},
	{"recruitee", regexp.MustCompile(`(?i)//([a-z0-9-]+)\.recruitee\.com`), func(s string) string { return "https://" + s + ".recruitee.com" }},
	{"smartrecruiters", regexp.MustCompile(`(?i)careers\.smartrecruiters\.com/([a-z0-9_-]+)`), func(s string) string { return "https://careers.smartrecruiters.com/" + s }},
	{"jobvite", regexp.MustCompile(`(?i)jobs\.jobvite\.com/([a-z0-9_-]+)`), func(s string) string { return "https://jobs.jobvite.com/" + s }},
}

// reservedSlugs are path or subdomain segments that look like slugs but
// never name a company board.
var reservedSlugs = map[string]bool{
	"www": true, "app": true, "api": true, "help": true,
	"support": true, "blog": true, "embed": true, "jobs": true,
	"careers": true,
}

// matchBoard runs the ordered ATS patterns over a link and extracts the
// platform and slug of the first match.
func matchBoard(link string) (boardPattern, string, bool) {
	for _, p := range boardPatterns {
		m := p.re.FindStringSubmatch(link)
		if m == nil {
			continue
		}
		slug := strings.ToLower(m[1])
		if reservedSlugs[slug] {
			continue
		}
		return p, slug, true
	}
	return boardPattern{}, "", false
}

// DiscoveryResult summarizes one discovery run.
type DiscoveryResult struct {
	QueriesRun  int
	BoardsFound int
	BoardsNew   int
	Deactivated int64
	Errors      []error
}

// DiscoveryService finds ATS boards through web search and maintains the
// board registry.
type DiscoveryService struct {
	boards   repository.DiscoveredBoardRepository
	searcher *search.Client
	rules    *config.Rules
	logger   *slog.Logger

	// VerifyNewBoards probes each newly discovered board for job links
	// before the first ingest touches it.
	VerifyNewBoards bool

	queryDelay time.Duration
}

// NewDiscoveryService creates a discovery service.
func NewDiscoveryService(boards repository.DiscoveredBoardRepository, searcher *search.Client, rules *config.Rules, logger *slog.Logger) *DiscoveryService {
	return &DiscoveryService{
		boards:     boards,
		searcher:   searcher,
		rules:      rules,
		logger:     logger.With("component", "discovery"),
		queryDelay: constants.DiscoveryQueryDelay,
	}
}

// Run executes every configured discovery query once, upserts matched
// boards, and deactivates boards that stopped yielding jobs. Re-running is
// idempotent: an already known board only refreshes its last-seen stamp.
func (s *DiscoveryService) Run(ctx context.Context, now time.Time) (*DiscoveryResult, error) {
	result := &DiscoveryResult{}

	if !s.searcher.Enabled() {
		s.logger.Info("search keys not configured, skipping board discovery")
		return result, nil
	}
	queries := s.rules.Discovery.Queries
	if len(queries) == 0 {
		s.logger.Info("no discovery queries configured")
		return result, nil
	}
	num := s.rules.Discovery.ResultsPerQuery
	if num <= 0 {
		num = constants.DiscoveryResultsPerQuery
	}

	for i, query := range queries {
		if i > 0 {
			select {
			case <-ctx.Done():
				result.Errors = append(result.Errors, ctx.Err())
				return result, ctx.Err()
			case <-time.After(s.queryDelay):
			}
		}

		items, err := s.searcher.Search(ctx, query, num)
		if err != nil {
			s.logger.Error("discovery query failed", "query", query, "error", err)
			result.Errors = append(result.Errors, fmt.Errorf("query %q: %w", query, err))
			continue
		}
		result.QueriesRun++

		for _, item := range items {
			pattern, slug, ok := matchBoard(item.Link)
			if !ok {
				continue
			}
			result.BoardsFound++

			boardURL := pattern.boardURL(slug)
			existing, err := s.boards.GetByURL(ctx, boardURL)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("lookup %s: %w", boardURL, err))
				continue
			}
			board := &models.DiscoveredBoard{
				Platform:    pattern.platform,
				BoardURL:    boardURL,
				BoardSlug:   slug,
				CompanyName: companyFromTitle(item.Title, slug),
				Confidence:  constants.DiscoveryConfidence,
				Status:      models.BoardStatusActive,
				FirstSeenAt: now,
				LastSeenAt:  now,
			}
			if err := s.boards.Upsert(ctx, board); err != nil {
				s.logger.Error("failed to upsert board", "url", boardURL, "error", err)
				result.Errors = append(result.Errors, fmt.Errorf("upsert %s: %w", boardURL, err))
				continue
			}
			if existing == nil {
				result.BoardsNew++
				s.logger.Info("new board discovered", "platform", pattern.platform, "slug", slug, "url", boardURL)
				s.probeNewBoard(ctx, boardURL, now)
			}
		}
	}

	maxEmpty := s.rules.Discovery.MaxEmptyRuns
	if maxEmpty <= 0 {
		maxEmpty = constants.BoardMaxEmptyRuns
	}
	deactivated, err := s.boards.DeactivateStale(ctx, maxEmpty)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to deactivate stale boards: %w", err))
	} else {
		result.Deactivated = deactivated
	}

	s.logger.Info("board discovery finished",
		"queries", result.QueriesRun,
		"boards_found", result.BoardsFound,
		"boards_new", result.BoardsNew,
		"deactivated", result.Deactivated,
		"errors", len(result.Errors),
	)
	return result, nil
}

// probeNewBoard optionally verifies a fresh board and seeds its poll state
// so an unreachable or empty slug starts accruing zero-yield runs.
func (s *DiscoveryService) probeNewBoard(ctx context.Context, boardURL string, now time.Time) {
	if !s.VerifyNewBoards {
		return
	}
	stored, err := s.boards.GetByURL(ctx, boardURL)
	if err != nil || stored == nil {
		return
	}
	links, err := s.VerifyBoard(ctx, boardURL)
	if err != nil {
		s.logger.Warn("board probe failed", "url", boardURL, "error", err)
		links = 0
	}
	if err := s.boards.RecordPoll(ctx, stored.ID, links, now); err != nil {
		s.logger.Error("failed to record board probe", "url", boardURL, "error", err)
	}
}

// VerifyBoard visits a board URL and counts links that look like job
// postings. Zero means the slug is wrong or the board is live but empty.
func (s *DiscoveryService) VerifyBoard(ctx context.Context, boardURL string) (int, error) {
	c := colly.NewCollector(colly.MaxDepth(1))

	var jobLinks int
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		href := strings.ToLower(e.Attr("href"))
		for _, marker := range []string{"/jobs/", "/job/", "/careers/", "/postings/", "/o/", "gh_jid="} {
			if strings.Contains(href, marker) {
				jobLinks++
				return
			}
		}
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(boardURL); err != nil {
		return 0, fmt.Errorf("failed to probe board: %w", err)
	}
	if visitErr != nil {
		return 0, fmt.Errorf("board probe failed: %w", visitErr)
	}
	s.logger.Debug("board probe finished", "url", boardURL, "job_links", jobLinks)
	return jobLinks, nil
}

// companyFromTitle guesses a company name from a search result title,
// falling back to a humanized slug.
func companyFromTitle(title, slug string) string {
	t := title
	for _, sep := range []string{" | ", " - "} {
		if idx := strings.Index(t, sep); idx > 0 {
			t = t[:idx]
		}
	}
	t = strings.TrimSpace(t)
	for _, prefix := range []string{"Jobs at ", "Careers at ", "Work at ", "Join "} {
		t = strings.TrimPrefix(t, prefix)
	}
	switch strings.ToLower(t) {
	case "", "jobs", "careers", "job openings", "open positions":
		return humanizeSlug(slug)
	}
	return strings.TrimSpace(t)
}

func humanizeSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
