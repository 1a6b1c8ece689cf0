package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

func digestLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	return loc
}

func newTestDigest(t *testing.T, canonical *mockCanonicalRepo, analytics *mockAnalyticsRepo, notifier *Notifier) *DigestService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDigestService(canonical, analytics, notifier, testRules(), digestLocation(t), logger)
}

func digestJob(id, title string, band models.ScoreBand, score int, firstSeen time.Time) *models.CanonicalJob {
	return &models.CanonicalJob{
		ID:          id,
		URLHash:     "hash-" + id,
		Title:       title,
		Company:     "Acme",
		URL:         "https://example.com/jobs/" + id,
		Score:       score,
		ScoreBand:   band,
		Status:      models.JobStatusActive,
		FirstSeenAt: firstSeen,
		LastSeenAt:  firstSeen,
	}
}

func TestDigestService_Cutoffs(t *testing.T) {
	loc := digestLocation(t)
	d := newTestDigest(t, newMockCanonicalRepo(), &mockAnalyticsRepo{}, nil)

	morning := d.cutoff(DigestMorning, time.Date(2025, 6, 2, 8, 30, 0, 0, loc))
	wantMorning := time.Date(2025, 6, 1, 18, 0, 0, 0, loc)
	if !morning.Equal(wantMorning) {
		t.Errorf("morning cutoff = %s, want %s", morning, wantMorning)
	}

	evening := d.cutoff(DigestEvening, time.Date(2025, 6, 2, 18, 0, 0, 0, loc))
	wantEvening := time.Date(2025, 6, 2, 8, 30, 0, 0, loc)
	if !evening.Equal(wantEvening) {
		t.Errorf("evening cutoff = %s, want %s", evening, wantEvening)
	}
}

func TestDigestService_SendDaily(t *testing.T) {
	loc := digestLocation(t)
	now := time.Date(2025, 6, 2, 8, 30, 0, 0, loc)
	fresh := time.Date(2025, 6, 2, 7, 0, 0, 0, loc)
	stale := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)

	canonical := newMockCanonicalRepo()
	ctx := context.Background()
	for _, job := range []*models.CanonicalJob{
		digestJob("j1", "Platform Engineer", models.BandTopPriority, 140, fresh),
		digestJob("j2", "Backend Developer", models.BandTopPriority, 120, fresh),
		digestJob("j3", "Software Developer", models.BandGoodMatch, 80, fresh),
		digestJob("j4", "QA Analyst", models.BandWorthALook, 40, fresh),
		digestJob("j5", "Old Role", models.BandTopPriority, 150, stale),
	} {
		if err := canonical.Create(ctx, job); err != nil {
			t.Fatalf("Create(%s) error = %v", job.ID, err)
		}
	}

	capture := &telegramCapture{}
	server := telegramServer(t, capture, http.StatusOK, `{"ok":true,"result":{}}`)
	notifier := newTestNotifier(notifierConfig(), newMockRetryRepo(), server.URL)
	d := newTestDigest(t, canonical, &mockAnalyticsRepo{}, notifier)

	if err := d.SendDaily(ctx, DigestMorning, false, now); err != nil {
		t.Fatalf("SendDaily() error = %v", err)
	}

	send, ok := capture.lastSend()
	if !ok {
		t.Fatal("no digest message captured")
	}
	for _, want := range []string{"*Morning digest*", "4 new jobs since", "*Top priority*", "Platform Engineer", "*Good match*", "*Worth a look*: 1"} {
		if !strings.Contains(send.Text, want) {
			t.Errorf("digest missing %q:\n%s", want, send.Text)
		}
	}
	if strings.Contains(send.Text, "Old Role") {
		t.Errorf("digest includes job first seen before cutoff:\n%s", send.Text)
	}
	if strings.Index(send.Text, "Platform Engineer") > strings.Index(send.Text, "Backend Developer") {
		t.Error("band listing not sorted by score descending")
	}
}

func TestDigestService_SendDailyEmptySkips(t *testing.T) {
	capture := &telegramCapture{}
	server := telegramServer(t, capture, http.StatusOK, `{"ok":true,"result":{}}`)
	notifier := newTestNotifier(notifierConfig(), newMockRetryRepo(), server.URL)
	d := newTestDigest(t, newMockCanonicalRepo(), &mockAnalyticsRepo{}, notifier)

	if err := d.SendDaily(context.Background(), DigestEvening, false, time.Now()); err != nil {
		t.Fatalf("SendDaily() error = %v", err)
	}
	if capture.requestCount() != 0 {
		t.Errorf("empty digest should skip sending, got %d requests", capture.requestCount())
	}
}

func TestDigestService_SendDailyForceAll(t *testing.T) {
	loc := digestLocation(t)
	now := time.Date(2025, 6, 2, 8, 30, 0, 0, loc)
	old := time.Date(2025, 5, 1, 9, 0, 0, 0, loc)

	canonical := newMockCanonicalRepo()
	ctx := context.Background()
	if err := canonical.Create(ctx, digestJob("j1", "Staff Engineer", models.BandGoodMatch, 90, old)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	capture := &telegramCapture{}
	server := telegramServer(t, capture, http.StatusOK, `{"ok":true,"result":{}}`)
	notifier := newTestNotifier(notifierConfig(), newMockRetryRepo(), server.URL)
	d := newTestDigest(t, canonical, &mockAnalyticsRepo{}, notifier)

	if err := d.SendDaily(ctx, DigestMorning, true, now); err != nil {
		t.Fatalf("SendDaily() error = %v", err)
	}
	send, ok := capture.lastSend()
	if !ok {
		t.Fatal("no digest message captured")
	}
	if !strings.Contains(send.Text, "1 active jobs") {
		t.Errorf("force-all digest should count active jobs:\n%s", send.Text)
	}
	if !strings.Contains(send.Text, "Staff Engineer") {
		t.Errorf("force-all digest missing pre-cutoff job:\n%s", send.Text)
	}
}

func TestDigestService_BandCapOverflow(t *testing.T) {
	loc := digestLocation(t)
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, loc)
	fresh := time.Date(2025, 6, 2, 12, 0, 0, 0, loc)

	canonical := newMockCanonicalRepo()
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		job := digestJob("job-"+id, "Role "+id, models.BandTopPriority, 100+i, fresh)
		if err := canonical.Create(ctx, job); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	capture := &telegramCapture{}
	server := telegramServer(t, capture, http.StatusOK, `{"ok":true,"result":{}}`)
	notifier := newTestNotifier(notifierConfig(), newMockRetryRepo(), server.URL)
	d := newTestDigest(t, canonical, &mockAnalyticsRepo{}, notifier)

	if err := d.SendDaily(ctx, DigestEvening, false, now); err != nil {
		t.Fatalf("SendDaily() error = %v", err)
	}
	send, ok := capture.lastSend()
	if !ok {
		t.Fatal("no digest message captured")
	}
	if got := strings.Count(send.Text, "• ["); got != 10 {
		t.Errorf("listed %d jobs, want 10", got)
	}
	if !strings.Contains(send.Text, "and 2 more") {
		t.Errorf("digest missing overflow line:\n%s", send.Text)
	}
}

func TestDigestService_SendWeekly(t *testing.T) {
	loc := digestLocation(t)
	now := time.Date(2025, 6, 2, 19, 0, 0, 0, loc)

	canonical := newMockCanonicalRepo()
	ctx := context.Background()
	if err := canonical.Create(ctx, digestJob("j1", "Platform Engineer", models.BandTopPriority, 140, now.AddDate(0, 0, -3))); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	analytics := &mockAnalyticsRepo{
		summary: &repository.WeeklySummary{
			NewJobs:       120,
			AnalyzedJobs:  25,
			AlertsSent:    8,
			TopPriority:   8,
			GoodMatch:     30,
			WorthALook:    82,
			Applied:       3,
			Dismissed:     10,
			RunsCompleted: 56,
			RunsFailed:    2,
			TopCompanies:  []repository.CompanyCount{{Company: "Acme", Count: 12}, {Company: "Globex", Count: 9}},
		},
		breakdown: []*repository.SourceStats{
			{Source: "greenhouse", JobsFound: 80, JobsNew: 40, SuccessRate: 0.98},
		},
	}

	capture := &telegramCapture{}
	server := telegramServer(t, capture, http.StatusOK, `{"ok":true,"result":{}}`)
	notifier := newTestNotifier(notifierConfig(), newMockRetryRepo(), server.URL)
	d := newTestDigest(t, canonical, analytics, notifier)

	if err := d.SendWeekly(ctx, now); err != nil {
		t.Fatalf("SendWeekly() error = %v", err)
	}
	send, ok := capture.lastSend()
	if !ok {
		t.Fatal("no weekly digest captured")
	}
	for _, want := range []string{
		"*Weekly report*",
		`New jobs: 120 \(top 8, good 30, worth a look 82\)`,
		"Analyzed: 25, alerts sent: 8",
		"Runs: 56 completed, 2 failed",
		"*Top jobs*",
		"Platform Engineer",
		"*Sources*",
		"greenhouse: 80 found, 40 new, 98% ok",
		`Acme \(12\), Globex \(9\)`,
	} {
		if !strings.Contains(send.Text, want) {
			t.Errorf("weekly digest missing %q:\n%s", want, send.Text)
		}
	}
}

func TestParseDigestKind(t *testing.T) {
	if kind, err := ParseDigestKind("morning"); err != nil || kind != DigestMorning {
		t.Errorf("ParseDigestKind(morning) = %v, %v", kind, err)
	}
	if kind, err := ParseDigestKind("evening"); err != nil || kind != DigestEvening {
		t.Errorf("ParseDigestKind(evening) = %v, %v", kind, err)
	}
	if _, err := ParseDigestKind("noon"); err == nil {
		t.Error("ParseDigestKind(noon) should fail")
	}
}
