package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
)

func TestDiscoveredBoardRepository_Upsert(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	board := &models.DiscoveredBoard{
		Platform:   "greenhouse",
		BoardURL:   "https://boards.greenhouse.io/acme",
		BoardSlug:  "acme",
		Confidence: 0.75,
	}
	if err := repos.Board.Upsert(ctx, board); err != nil {
		t.Fatalf("failed to upsert board: %v", err)
	}

	fetched, err := repos.Board.GetByURL(ctx, "https://boards.greenhouse.io/acme")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected board, got nil")
	}
	if fetched.Status != models.BoardStatusActive {
		t.Errorf("Status = %q, want active", fetched.Status)
	}
	if fetched.Confidence != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", fetched.Confidence)
	}
}

func TestDiscoveredBoardRepository_UpsertKeepsMaxConfidence(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	first := &models.DiscoveredBoard{
		Platform:   "lever",
		BoardURL:   "https://jobs.lever.co/globex",
		BoardSlug:  "globex",
		Confidence: 0.9,
	}
	if err := repos.Board.Upsert(ctx, first); err != nil {
		t.Fatalf("failed to upsert board: %v", err)
	}

	// Rediscovery with lower confidence must not lower the stored value
	again := &models.DiscoveredBoard{
		Platform:   "lever",
		BoardURL:   "https://jobs.lever.co/globex",
		BoardSlug:  "globex",
		Confidence: 0.6,
	}
	if err := repos.Board.Upsert(ctx, again); err != nil {
		t.Fatalf("failed to re-upsert board: %v", err)
	}

	fetched, _ := repos.Board.GetByURL(ctx, "https://jobs.lever.co/globex")
	if fetched.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", fetched.Confidence)
	}

	boards, err := repos.Board.GetActiveByPlatform(ctx, "lever")
	if err != nil {
		t.Fatalf("failed to list boards: %v", err)
	}
	if len(boards) != 1 {
		t.Errorf("expected 1 board, got %d", len(boards))
	}
}

func TestDiscoveredBoardRepository_RecordPoll(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	board := &models.DiscoveredBoard{
		Platform:   "ashby",
		BoardURL:   "https://jobs.ashbyhq.com/initech",
		BoardSlug:  "initech",
		Confidence: 0.8,
	}
	if err := repos.Board.Upsert(ctx, board); err != nil {
		t.Fatalf("failed to upsert board: %v", err)
	}

	// Two empty polls increment the zero-yield counter
	for i := 0; i < 2; i++ {
		if err := repos.Board.RecordPoll(ctx, board.ID, 0, now); err != nil {
			t.Fatalf("failed to record poll: %v", err)
		}
	}
	fetched, _ := repos.Board.GetByURL(ctx, board.BoardURL)
	if fetched.ConsecutiveEmptyRuns != 2 {
		t.Errorf("ConsecutiveEmptyRuns = %d, want 2", fetched.ConsecutiveEmptyRuns)
	}
	if fetched.LastSuccessAt != nil {
		t.Error("expected no last success after empty polls")
	}

	// A yielding poll resets the counter and stamps success
	if err := repos.Board.RecordPoll(ctx, board.ID, 5, now); err != nil {
		t.Fatalf("failed to record poll: %v", err)
	}
	fetched, _ = repos.Board.GetByURL(ctx, board.BoardURL)
	if fetched.ConsecutiveEmptyRuns != 0 {
		t.Errorf("ConsecutiveEmptyRuns = %d, want 0", fetched.ConsecutiveEmptyRuns)
	}
	if fetched.LastSuccessAt == nil || !fetched.LastSuccessAt.Equal(now) {
		t.Errorf("LastSuccessAt = %v, want %v", fetched.LastSuccessAt, now)
	}
}

func TestDiscoveredBoardRepository_DeactivateStale(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	healthy := &models.DiscoveredBoard{
		Platform: "greenhouse", BoardURL: "https://boards.greenhouse.io/a", BoardSlug: "a", Confidence: 0.8,
	}
	stale := &models.DiscoveredBoard{
		Platform: "greenhouse", BoardURL: "https://boards.greenhouse.io/b", BoardSlug: "b", Confidence: 0.8,
	}
	for _, b := range []*models.DiscoveredBoard{healthy, stale} {
		if err := repos.Board.Upsert(ctx, b); err != nil {
			t.Fatalf("failed to upsert board: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		if err := repos.Board.RecordPoll(ctx, stale.ID, 0, now); err != nil {
			t.Fatalf("failed to record poll: %v", err)
		}
	}

	count, err := repos.Board.DeactivateStale(ctx, 10)
	if err != nil {
		t.Fatalf("failed to deactivate stale boards: %v", err)
	}
	if count != 1 {
		t.Errorf("deactivated = %d, want 1", count)
	}

	boards, _ := repos.Board.GetActiveByPlatform(ctx, "greenhouse")
	if len(boards) != 1 || boards[0].BoardSlug != "a" {
		t.Errorf("expected only healthy board active, got %d", len(boards))
	}
}
