package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmylchreest/jobsift/internal/fingerprint"
	"github.com/jmylchreest/jobsift/internal/models"
)

func newTestDeduper(repo *mockCanonicalRepo) *Deduper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDeduper(repo, logger)
}

func canonicalFixture(id, company, title, city, url, content string, firstSeen time.Time) *models.CanonicalJob {
	// Mirrors the normalizer: no body text means no fingerprint.
	var fp string
	if content != "" {
		fp = fingerprint.Content(content)
	}
	return &models.CanonicalJob{
		ID:                 id,
		URLHash:            fingerprint.URLHash(url),
		ContentFingerprint: fp,
		Company:            company,
		CompanyNormalized:  NormalizeCompany(company),
		Title:              title,
		City:               city,
		URL:                url,
		Status:             models.JobStatusActive,
		FirstSeenAt:        firstSeen,
		LastSeenAt:         firstSeen,
	}
}

func TestDeduper_URLHash(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	existing := canonicalFixture("existing-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/abc/", "content a", now.Add(-48*time.Hour))
	if err := repo.Create(ctx, existing); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Same posting URL modulo case, query string, and trailing slash.
	incoming := canonicalFixture("", "Acme", "Software Engineer", "Toronto",
		"HTTPS://BOARDS.EXAMPLE.COM/jobs/abc?ref=foo", "content b", now)

	if incoming.URLHash != existing.URLHash {
		t.Fatalf("url hashes differ: %q vs %q", incoming.URLHash, existing.URLHash)
	}

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.IsDuplicate {
		t.Fatal("IsDuplicate = false, want true")
	}
	if res.Method != models.DedupMethodURLHash {
		t.Errorf("Method = %q, want url_hash", res.Method)
	}
	if res.ExistingID != "existing-1" {
		t.Errorf("ExistingID = %q, want existing-1", res.ExistingID)
	}
}

func TestDeduper_FuzzyExactAfterSuffixStrip(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	existing := canonicalFixture("existing-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "original content", now.Add(-24*time.Hour))
	if err := repo.Create(ctx, existing); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.LoadIndex(ctx, now); err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}

	// Legal suffix stripping makes the identity keys equal.
	incoming := canonicalFixture("", "Acme Inc.", "Software Engineer", "Toronto",
		"https://other.example.com/jobs/99", "different content", now)

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.IsDuplicate {
		t.Fatal("IsDuplicate = false, want true")
	}
	if res.Method != models.DedupMethodFuzzyKey {
		t.Errorf("Method = %q, want fuzzy_key", res.Method)
	}
	if res.Similarity != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", res.Similarity)
	}
}

func TestDeduper_FuzzyPotential(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	existing := canonicalFixture("existing-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "original content", now.Add(-24*time.Hour))
	if err := repo.Create(ctx, existing); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.LoadIndex(ctx, now); err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}

	incoming := canonicalFixture("", "Acme", "Senior Software Engineer", "Toronto",
		"https://other.example.com/jobs/99", "different content", now)

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate {
		t.Fatal("IsDuplicate = true, want false for a potential duplicate")
	}
	if !res.IsPotential {
		t.Fatal("IsPotential = false, want true")
	}
	if res.Method != models.DedupMethodFuzzyKey {
		t.Errorf("Method = %q, want fuzzy_key", res.Method)
	}
	if res.ExistingID != "existing-1" {
		t.Errorf("ExistingID = %q, want existing-1", res.ExistingID)
	}
	if res.Similarity < 0.70 || res.Similarity >= 0.85 {
		t.Errorf("Similarity = %v, want within [0.70, 0.85)", res.Similarity)
	}
}

func TestDeduper_FingerprintDuplicateInsideWindow(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	existing := canonicalFixture("existing-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "identical posting body", now.Add(-3*24*time.Hour))
	if err := repo.Create(ctx, existing); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Different company and title keep the fuzzy pass quiet; only the
	// content matches.
	incoming := canonicalFixture("", "Globex", "Backend Developer", "Ottawa",
		"https://other.example.com/jobs/99", "identical posting body", now)

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.IsDuplicate {
		t.Fatal("IsDuplicate = false, want true")
	}
	if res.Method != models.DedupMethodFingerprint {
		t.Errorf("Method = %q, want content_fingerprint", res.Method)
	}
}

func TestDeduper_RepostOutsideWindow(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()
	posted := now.Add(-10 * 24 * time.Hour)

	existing := canonicalFixture("existing-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "reposted body", posted)
	existing.PostedAt = &posted
	if err := repo.Create(ctx, existing); err != nil {
		t.Fatalf("Create: %v", err)
	}

	incoming := canonicalFixture("", "Globex", "Backend Developer", "Ottawa",
		"https://other.example.com/jobs/99", "reposted body", now)

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate {
		t.Fatal("IsDuplicate = true, want false for a repost")
	}
	if !res.IsRepost {
		t.Fatal("IsRepost = false, want true")
	}
	if res.OriginalPostDate == nil || !res.OriginalPostDate.Equal(posted) {
		t.Errorf("OriginalPostDate = %v, want %v", res.OriginalPostDate, posted)
	}
}

func TestDeduper_RepostFallsBackToFirstSeen(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()
	firstSeen := now.Add(-9 * 24 * time.Hour)

	existing := canonicalFixture("existing-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "reposted body", firstSeen)
	if err := repo.Create(ctx, existing); err != nil {
		t.Fatalf("Create: %v", err)
	}

	incoming := canonicalFixture("", "Globex", "Backend Developer", "Ottawa",
		"https://other.example.com/jobs/99", "reposted body", now)

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.IsRepost {
		t.Fatal("IsRepost = false, want true")
	}
	if res.OriginalPostDate == nil || !res.OriginalPostDate.Equal(firstSeen) {
		t.Errorf("OriginalPostDate = %v, want first seen %v", res.OriginalPostDate, firstSeen)
	}
}

func TestDeduper_EmptyIndex(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	incoming := canonicalFixture("", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "body", now)

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate || res.IsPotential || res.IsRepost {
		t.Errorf("unexpected verdict on empty store: %+v", res)
	}
}

func TestDeduper_EmptyContentNeverFingerprintMatches(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two unrelated page-parsed postings, neither with body text. They
	// must not collapse into one via a shared empty fingerprint.
	existing := canonicalFixture("existing-1", "Acme", "Platform Engineer", "Toronto",
		"https://careers.acme.example/jobs/platform", "", now.Add(-24*time.Hour))
	if err := repo.Create(ctx, existing); err != nil {
		t.Fatalf("Create: %v", err)
	}

	incoming := canonicalFixture("", "Globex", "Staff Accountant", "Vancouver",
		"https://globex.example/careers/accountant", "", now)
	if incoming.ContentFingerprint != "" {
		t.Fatalf("ContentFingerprint = %q, want empty for empty content", incoming.ContentFingerprint)
	}

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate || res.IsPotential || res.IsRepost {
		t.Errorf("unexpected verdict for unrelated bodyless postings: %+v", res)
	}
}

func TestDeduper_IndexWindowExcludesOldJobs(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	old := canonicalFixture("old-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "old body", now.Add(-8*24*time.Hour))
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.LoadIndex(ctx, now); err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}

	incoming := canonicalFixture("", "Acme", "Software Engineer", "Toronto",
		"https://other.example.com/jobs/99", "new body", now)

	res, err := d.Check(ctx, incoming, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.IsDuplicate || res.IsPotential {
		t.Errorf("job outside the fuzzy window still matched: %+v", res)
	}
}

func TestDeduper_AddToIndex(t *testing.T) {
	repo := newMockCanonicalRepo()
	d := newTestDeduper(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	first := canonicalFixture("first-1", "Acme", "Software Engineer", "Toronto",
		"https://boards.example.com/jobs/1", "body one", now)
	d.AddToIndex(first)

	second := canonicalFixture("", "Acme", "Software Engineer", "Toronto",
		"https://other.example.com/jobs/2", "body two", now)

	res, err := d.Check(ctx, second, now)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.IsDuplicate || res.Method != models.DedupMethodFuzzyKey {
		t.Errorf("in-run duplicate missed: %+v", res)
	}

	d.DropIndex()
	res, err = d.Check(ctx, second, now)
	if err != nil {
		t.Fatalf("Check after drop: %v", err)
	}
	if res.IsDuplicate {
		t.Error("index survived DropIndex")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"acme|software engineer|toronto", "acme|software engineer|toronto", 1},
		{"", "", 1},
		{"abc", "abd", 1 - 1.0/3},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
