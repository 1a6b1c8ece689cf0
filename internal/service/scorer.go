package service

import (
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
)

// ScoreResult carries a job's total score, its components, and the band the
// total falls into. All four persist to the canonical row.
type ScoreResult struct {
	Total     int
	Freshness int
	Location  int
	Mode      int
	Band      models.ScoreBand
}

// Scorer applies the static scoring rules: freshness brackets, location
// tier points, and work-mode points.
type Scorer struct {
	rules    *config.Rules
	brackets []config.FreshnessBracket
}

// NewScorer creates a scorer with the freshness brackets pre-sorted.
func NewScorer(rules *config.Rules) *Scorer {
	return &Scorer{
		rules:    rules,
		brackets: rules.SortedFreshnessBrackets(),
	}
}

// Score computes the rule-based score for a job as of now. Future-dated
// postings clamp to zero hours old; a low-confidence timestamp caps the
// freshness component.
func (s *Scorer) Score(job *models.CanonicalJob, now time.Time) ScoreResult {
	res := ScoreResult{
		Freshness: s.freshness(job, now),
		Location:  s.locationPoints(job.LocationTier),
		Mode:      s.rules.ModeFor(string(job.WorkMode)).Points,
	}
	res.Total = res.Freshness + res.Location + res.Mode
	res.Band = s.band(res.Total)
	return res
}

// Apply stamps a score result onto the job.
func (r ScoreResult) Apply(job *models.CanonicalJob) {
	job.Score = r.Total
	job.ScoreFreshness = r.Freshness
	job.ScoreLocation = r.Location
	job.ScoreMode = r.Mode
	job.ScoreBand = r.Band
}

func (s *Scorer) freshness(job *models.CanonicalJob, now time.Time) int {
	ref := job.FirstSeenAt
	if job.PostedAt != nil {
		ref = *job.PostedAt
	}
	hoursAgo := int(now.Sub(ref).Hours())
	if hoursAgo < 0 {
		hoursAgo = 0
	}

	points := 0
	for _, bracket := range s.brackets {
		if bracket.MaxHours == nil || *bracket.MaxHours >= hoursAgo {
			points = bracket.Points
			break
		}
	}
	if job.PostedAtConfidence == models.ConfidenceLow && points > s.rules.Scoring.Freshness.LowConfidenceCap {
		points = s.rules.Scoring.Freshness.LowConfidenceCap
	}
	return points
}

func (s *Scorer) locationPoints(tierKey string) int {
	if tierKey == "" {
		return 0
	}
	return s.rules.Locations[tierKey].Points
}

// band returns the highest band whose minimum the total meets; anything
// below the good-match floor is still worth a look.
func (s *Scorer) band(total int) models.ScoreBand {
	bands := s.rules.Scoring.Bands
	switch {
	case total >= bands.TopPriority.MinScore:
		return models.BandTopPriority
	case total >= bands.GoodMatch.MinScore:
		return models.BandGoodMatch
	default:
		return models.BandWorthALook
	}
}
