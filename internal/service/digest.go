package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// DigestKind selects which daily digest window to cover.
type DigestKind string

const (
	DigestMorning DigestKind = "morning"
	DigestEvening DigestKind = "evening"
)

// ParseDigestKind validates a digest kind from the CLI.
func ParseDigestKind(s string) (DigestKind, error) {
	switch DigestKind(s) {
	case DigestMorning, DigestEvening:
		return DigestKind(s), nil
	default:
		return "", fmt.Errorf("unknown digest kind %q (want morning or evening)", s)
	}
}

// linkURLEscaper escapes the characters MarkdownV2 reserves inside the URL
// part of an inline link.
var linkURLEscaper = strings.NewReplacer(`\`, `\\`, `)`, `\)`)

// DigestService renders and sends the daily and weekly Telegram digests.
type DigestService struct {
	canonical repository.CanonicalJobRepository
	analytics repository.AnalyticsRepository
	notifier  *Notifier
	rules     *config.Rules
	location  *time.Location
	logger    *slog.Logger
}

// NewDigestService creates a digest service. loc controls the local
// interpretation of digest cutoffs; nil means UTC.
func NewDigestService(canonical repository.CanonicalJobRepository, analytics repository.AnalyticsRepository, notifier *Notifier, rules *config.Rules, loc *time.Location, logger *slog.Logger) *DigestService {
	if loc == nil {
		loc = time.UTC
	}
	return &DigestService{
		canonical: canonical,
		analytics: analytics,
		notifier:  notifier,
		rules:     rules,
		location:  loc,
		logger:    logger.With("component", "digest"),
	}
}

// SendDaily sends the morning or evening digest: jobs first seen since the
// previous digest cutoff, grouped by score band. forceAll ignores the
// cutoff and covers every active job.
func (d *DigestService) SendDaily(ctx context.Context, kind DigestKind, forceAll bool, now time.Time) error {
	cutoff := d.cutoff(kind, now)
	since := cutoff
	if forceAll {
		since = time.Time{}
	}

	jobs, err := d.canonical.GetActiveSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load jobs for digest: %w", err)
	}
	if len(jobs) == 0 {
		d.logger.Info("no jobs for digest, skipping send", "kind", kind, "cutoff", cutoff)
		return nil
	}

	text := d.renderDaily(kind, jobs, cutoff, forceAll)
	if err := d.notifier.SendDigest(ctx, text); err != nil {
		return fmt.Errorf("failed to send %s digest: %w", kind, err)
	}
	d.logger.Info("digest sent", "kind", kind, "jobs", len(jobs), "force_all", forceAll)
	return nil
}

// SendWeekly sends the weekly report: run and job totals, top jobs, source
// breakdown, and most active companies over the trailing seven days.
func (d *DigestService) SendWeekly(ctx context.Context, now time.Time) error {
	since := now.AddDate(0, 0, -7)

	summary, err := d.analytics.GetWeeklySummary(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load weekly summary: %w", err)
	}

	startDate := since.In(d.location).Format("2006-01-02")
	endDate := now.In(d.location).Format("2006-01-02")
	breakdown, err := d.analytics.GetSourceBreakdown(ctx, startDate, endDate)
	if err != nil {
		return fmt.Errorf("failed to load source breakdown: %w", err)
	}

	minScore := d.rules.Scoring.Bands.GoodMatch.MinScore
	top, err := d.canonical.GetTopSince(ctx, since, minScore, constants.DigestWeeklyTopJobs)
	if err != nil {
		return fmt.Errorf("failed to load top jobs: %w", err)
	}

	text := d.renderWeekly(summary, breakdown, top, since, now)
	if err := d.notifier.SendDigest(ctx, text); err != nil {
		return fmt.Errorf("failed to send weekly digest: %w", err)
	}
	d.logger.Info("weekly digest sent", "new_jobs", summary.NewJobs, "top_jobs", len(top))
	return nil
}

// cutoff returns the start of the window a daily digest covers: the
// morning digest picks up where the previous evening one left off and vice
// versa.
func (d *DigestService) cutoff(kind DigestKind, now time.Time) time.Time {
	local := now.In(d.location)
	if kind == DigestMorning {
		prev := local.AddDate(0, 0, -1)
		return time.Date(prev.Year(), prev.Month(), prev.Day(), 18, 0, 0, 0, d.location)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 8, 30, 0, 0, d.location)
}

func (d *DigestService) renderDaily(kind DigestKind, jobs []*models.CanonicalJob, cutoff time.Time, forceAll bool) string {
	title := "Morning digest"
	if kind == DigestEvening {
		title = "Evening digest"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", EscapeMarkdown(title))
	if forceAll {
		fmt.Fprintf(&b, "%s\n", EscapeMarkdown(fmt.Sprintf("%d active jobs", len(jobs))))
	} else {
		since := cutoff.In(d.location).Format("Jan 2 15:04")
		fmt.Fprintf(&b, "%s\n", EscapeMarkdown(fmt.Sprintf("%d new jobs since %s", len(jobs), since)))
	}

	groups := groupByBand(jobs)
	writeBandSection(&b, "Top priority", groups[models.BandTopPriority])
	writeBandSection(&b, "Good match", groups[models.BandGoodMatch])
	if n := len(groups[models.BandWorthALook]); n > 0 {
		fmt.Fprintf(&b, "\n*%s*: %d\n", EscapeMarkdown("Worth a look"), n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *DigestService) renderWeekly(summary *repository.WeeklySummary, breakdown []*repository.SourceStats, top []*models.CanonicalJob, since, now time.Time) string {
	var b strings.Builder
	period := fmt.Sprintf("%s to %s", since.In(d.location).Format("Jan 2"), now.In(d.location).Format("Jan 2"))
	fmt.Fprintf(&b, "*%s* %s\n\n", EscapeMarkdown("Weekly report"), EscapeMarkdown(period))

	fmt.Fprintf(&b, "%s\n", EscapeMarkdown(fmt.Sprintf(
		"New jobs: %d (top %d, good %d, worth a look %d)",
		summary.NewJobs, summary.TopPriority, summary.GoodMatch, summary.WorthALook)))
	fmt.Fprintf(&b, "%s\n", EscapeMarkdown(fmt.Sprintf(
		"Analyzed: %d, alerts sent: %d", summary.AnalyzedJobs, summary.AlertsSent)))
	fmt.Fprintf(&b, "%s\n", EscapeMarkdown(fmt.Sprintf(
		"Applied: %d, dismissed: %d", summary.Applied, summary.Dismissed)))
	fmt.Fprintf(&b, "%s\n", EscapeMarkdown(fmt.Sprintf(
		"Runs: %d completed, %d failed", summary.RunsCompleted, summary.RunsFailed)))

	if len(top) > 0 {
		fmt.Fprintf(&b, "\n*%s*\n", EscapeMarkdown("Top jobs"))
		for _, job := range top {
			writeJobLine(&b, job)
		}
	}

	if len(breakdown) > 0 {
		fmt.Fprintf(&b, "\n*%s*\n", EscapeMarkdown("Sources"))
		for _, s := range breakdown {
			fmt.Fprintf(&b, "%s\n", EscapeMarkdown(fmt.Sprintf(
				"%s: %d found, %d new, %.0f%% ok", s.Source, s.JobsFound, s.JobsNew, s.SuccessRate*100)))
		}
	}

	if len(summary.TopCompanies) > 0 {
		parts := make([]string, 0, len(summary.TopCompanies))
		for _, cc := range summary.TopCompanies {
			parts = append(parts, fmt.Sprintf("%s (%d)", cc.Company, cc.Count))
		}
		fmt.Fprintf(&b, "\n*%s*\n%s\n", EscapeMarkdown("Top companies"), EscapeMarkdown(strings.Join(parts, ", ")))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBandSection(b *strings.Builder, title string, jobs []*models.CanonicalJob) {
	if len(jobs) == 0 {
		return
	}
	fmt.Fprintf(b, "\n*%s* %s\n", EscapeMarkdown(title), EscapeMarkdown(fmt.Sprintf("(%d)", len(jobs))))
	listed := jobs
	if len(listed) > constants.DigestBandCap {
		listed = listed[:constants.DigestBandCap]
	}
	for _, job := range listed {
		writeJobLine(b, job)
	}
	if extra := len(jobs) - len(listed); extra > 0 {
		fmt.Fprintf(b, "%s\n", EscapeMarkdown(fmt.Sprintf("and %d more", extra)))
	}
}

func writeJobLine(b *strings.Builder, job *models.CanonicalJob) {
	fmt.Fprintf(b, "• [%s](%s) %s *%d*\n",
		EscapeMarkdown(job.Title), linkURLEscaper.Replace(job.URL), EscapeMarkdown(job.Company), job.Score)
}

func groupByBand(jobs []*models.CanonicalJob) map[models.ScoreBand][]*models.CanonicalJob {
	groups := make(map[models.ScoreBand][]*models.CanonicalJob)
	for _, job := range jobs {
		groups[job.ScoreBand] = append(groups[job.ScoreBand], job)
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].Score > group[j].Score })
	}
	return groups
}
