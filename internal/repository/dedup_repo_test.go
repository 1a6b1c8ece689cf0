package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
)

func TestDuplicateLinkRepository_CreateAndGetForJob(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	existing := makeTestJob("hash-orig", "Acme", "Backend Engineer", now.Add(-48*time.Hour))
	incoming := makeTestJob("hash-dupe", "Acme", "Backend Engineer (Remote)", now)
	for _, job := range []*models.CanonicalJob{existing, incoming} {
		if err := repos.Canonical.Create(ctx, job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
	}

	link := &models.DuplicateLink{
		CanonicalJobID: incoming.ID,
		DuplicateOfID:  existing.ID,
		Method:         models.DedupMethodFuzzyKey,
		Similarity:     0.75,
		IsPotential:    true,
	}
	if err := repos.Duplicate.Create(ctx, link); err != nil {
		t.Fatalf("failed to create link: %v", err)
	}
	if link.ID == "" {
		t.Error("expected generated link ID")
	}

	// Matches from either side of the edge
	for _, jobID := range []string{incoming.ID, existing.ID} {
		links, err := repos.Duplicate.GetForJob(ctx, jobID)
		if err != nil {
			t.Fatalf("failed to get links for %s: %v", jobID, err)
		}
		if len(links) != 1 {
			t.Fatalf("expected 1 link for %s, got %d", jobID, len(links))
		}
		if links[0].Method != models.DedupMethodFuzzyKey {
			t.Errorf("Method = %q, want fuzzy_key", links[0].Method)
		}
		if links[0].Similarity != 0.75 {
			t.Errorf("Similarity = %v, want 0.75", links[0].Similarity)
		}
		if !links[0].IsPotential {
			t.Error("expected IsPotential true")
		}
	}
}

func TestAlternateURLRepository_IgnoresDuplicateSource(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	job := makeTestJob("hash-alt", "Acme", "Backend Engineer", time.Now().UTC())
	if err := repos.Canonical.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	first := &models.AlternateURL{
		CanonicalJobID: job.ID,
		Source:         "linkedin",
		URL:            "https://linkedin.com/jobs/view/111",
	}
	if err := repos.AlternateURL.Create(ctx, first); err != nil {
		t.Fatalf("failed to create alternate url: %v", err)
	}

	// Same job and source again is silently ignored
	again := &models.AlternateURL{
		CanonicalJobID: job.ID,
		Source:         "linkedin",
		URL:            "https://linkedin.com/jobs/view/222",
	}
	if err := repos.AlternateURL.Create(ctx, again); err != nil {
		t.Fatalf("duplicate create should not error: %v", err)
	}

	other := &models.AlternateURL{
		CanonicalJobID: job.ID,
		Source:         "indeed",
		URL:            "https://indeed.com/viewjob?jk=333",
	}
	if err := repos.AlternateURL.Create(ctx, other); err != nil {
		t.Fatalf("failed to create second source: %v", err)
	}

	urls, err := repos.AlternateURL.ListForJob(ctx, job.ID, 10)
	if err != nil {
		t.Fatalf("failed to list alternate urls: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 alternate urls, got %d", len(urls))
	}
	if urls[0].URL != "https://linkedin.com/jobs/view/111" {
		t.Errorf("first URL = %q, want original linkedin url", urls[0].URL)
	}

	capped, err := repos.AlternateURL.ListForJob(ctx, job.ID, 1)
	if err != nil {
		t.Fatalf("failed to list with limit: %v", err)
	}
	if len(capped) != 1 {
		t.Errorf("expected limit to cap results at 1, got %d", len(capped))
	}
}
