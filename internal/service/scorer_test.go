package service

import (
	"testing"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
)

func TestScorer_Freshness(t *testing.T) {
	s := NewScorer(testRules())
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		postedAgo  time.Duration
		confidence models.Confidence
		want       int
	}{
		{"six hours old", 6 * time.Hour, models.ConfidenceHigh, 100},
		{"bracket boundary", 24 * time.Hour, models.ConfidenceHigh, 100},
		{"second bracket", 36 * time.Hour, models.ConfidenceHigh, 80},
		{"catch-all bracket", 100 * time.Hour, models.ConfidenceHigh, 0},
		{"future-dated clamps to fresh", -3 * time.Hour, models.ConfidenceHigh, 100},
		{"low confidence capped", 12 * time.Hour, models.ConfidenceLow, 50},
		{"low confidence below cap unchanged", 100 * time.Hour, models.ConfidenceLow, 0},
	}
	for _, tt := range tests {
		posted := now.Add(-tt.postedAgo)
		job := &models.CanonicalJob{
			PostedAt:           &posted,
			PostedAtConfidence: tt.confidence,
			FirstSeenAt:        now,
		}
		if got := s.Score(job, now).Freshness; got != tt.want {
			t.Errorf("%s: freshness = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestScorer_FreshnessFallsBackToFirstSeen(t *testing.T) {
	s := NewScorer(testRules())
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	job := &models.CanonicalJob{
		PostedAtConfidence: models.ConfidenceLow,
		FirstSeenAt:        now.Add(-2 * time.Hour),
	}
	// First bracket would give 100; the missing timestamp is low
	// confidence, so the cap applies.
	if got := s.Score(job, now).Freshness; got != 50 {
		t.Errorf("freshness = %d, want 50", got)
	}
}

func TestScorer_Components(t *testing.T) {
	s := NewScorer(testRules())
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	posted := now.Add(-6 * time.Hour)

	job := &models.CanonicalJob{
		PostedAt:           &posted,
		PostedAtConfidence: models.ConfidenceHigh,
		FirstSeenAt:        now,
		LocationTier:       "L1",
		WorkMode:           models.WorkModeRemote,
	}

	res := s.Score(job, now)
	if res.Freshness != 100 {
		t.Errorf("Freshness = %d, want 100", res.Freshness)
	}
	if res.Location != 25 {
		t.Errorf("Location = %d, want 25", res.Location)
	}
	if res.Mode != 15 {
		t.Errorf("Mode = %d, want 15", res.Mode)
	}
	if res.Total != 140 {
		t.Errorf("Total = %d, want 140", res.Total)
	}
	if res.Band != models.BandTopPriority {
		t.Errorf("Band = %q, want top_priority", res.Band)
	}
}

func TestScorer_NoTierNoPoints(t *testing.T) {
	s := NewScorer(testRules())
	now := time.Now().UTC()

	job := &models.CanonicalJob{
		PostedAtConfidence: models.ConfidenceLow,
		FirstSeenAt:        now.Add(-200 * time.Hour),
		LocationTier:       "",
		WorkMode:           models.WorkModeUnknown,
	}

	res := s.Score(job, now)
	if res.Location != 0 {
		t.Errorf("Location = %d, want 0", res.Location)
	}
	// Unknown mode falls back to the configured unknown points.
	if res.Mode != 5 {
		t.Errorf("Mode = %d, want 5", res.Mode)
	}
}

func TestScorer_Bands(t *testing.T) {
	s := NewScorer(testRules())

	tests := []struct {
		total int
		want  models.ScoreBand
	}{
		{140, models.BandTopPriority},
		{100, models.BandTopPriority},
		{99, models.BandGoodMatch},
		{60, models.BandGoodMatch},
		{59, models.BandWorthALook},
		{0, models.BandWorthALook},
	}
	for _, tt := range tests {
		if got := s.band(tt.total); got != tt.want {
			t.Errorf("band(%d) = %q, want %q", tt.total, got, tt.want)
		}
	}
}

func TestScoreResult_Apply(t *testing.T) {
	job := &models.CanonicalJob{}
	res := ScoreResult{Total: 120, Freshness: 100, Location: 15, Mode: 5, Band: models.BandTopPriority}
	res.Apply(job)

	if job.Score != 120 || job.ScoreFreshness != 100 || job.ScoreLocation != 15 || job.ScoreMode != 5 {
		t.Errorf("apply wrote %d/%d/%d/%d", job.Score, job.ScoreFreshness, job.ScoreLocation, job.ScoreMode)
	}
	if job.ScoreBand != models.BandTopPriority {
		t.Errorf("ScoreBand = %q, want top_priority", job.ScoreBand)
	}
}
