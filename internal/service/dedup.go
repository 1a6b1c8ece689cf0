package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// DedupResult is the outcome of the three dedup passes for one job.
type DedupResult struct {
	IsDuplicate bool
	Method      models.DedupMethod
	ExistingID  string
	Similarity  float64
	// IsPotential marks a fuzzy match in the gray zone: the job is still
	// persisted but linked to the suspected original.
	IsPotential bool
	// IsRepost marks a fingerprint match whose original is older than the
	// repost window. The job is persisted with a backpointer.
	IsRepost         bool
	OriginalPostDate *time.Time
}

type indexEntry struct {
	id  string
	key string
}

// Deduper runs the three-pass duplicate detection: exact URL hash, fuzzy
// company|title|city identity over a per-run index of recent jobs, and
// content fingerprint with repost handling.
type Deduper struct {
	canonical repository.CanonicalJobRepository
	logger    *slog.Logger
	index     []indexEntry
}

// NewDeduper creates a deduper. LoadIndex must run once per pipeline run
// before Check; an unloaded index simply means pass two matches nothing.
func NewDeduper(canonical repository.CanonicalJobRepository, logger *slog.Logger) *Deduper {
	return &Deduper{
		canonical: canonical,
		logger:    logger.With("component", "dedup"),
	}
}

// LoadIndex fills the fuzzy index with active jobs first seen inside the
// fuzzy window.
func (d *Deduper) LoadIndex(ctx context.Context, now time.Time) error {
	since := now.AddDate(0, 0, -constants.FuzzyWindowDays)
	jobs, err := d.canonical.GetActiveSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load dedup index: %w", err)
	}

	d.index = make([]indexEntry, 0, len(jobs))
	for _, job := range jobs {
		d.index = append(d.index, indexEntry{id: job.ID, key: dedupKey(job)})
	}
	d.logger.Debug("dedup index loaded", "entries", len(d.index), "since", since.Format(time.RFC3339))
	return nil
}

// AddToIndex registers a freshly inserted job so later jobs in the same run
// dedup against it.
func (d *Deduper) AddToIndex(job *models.CanonicalJob) {
	d.index = append(d.index, indexEntry{id: job.ID, key: dedupKey(job)})
}

// DropIndex releases the index at the end of a run.
func (d *Deduper) DropIndex() {
	d.index = nil
}

// Check runs the passes in order and short-circuits on the first verdict.
// It must run before the job is inserted.
func (d *Deduper) Check(ctx context.Context, job *models.CanonicalJob, now time.Time) (*DedupResult, error) {
	existing, err := d.canonical.GetByURLHash(ctx, job.URLHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check url hash: %w", err)
	}
	if existing != nil {
		return &DedupResult{
			IsDuplicate: true,
			Method:      models.DedupMethodURLHash,
			ExistingID:  existing.ID,
			Similarity:  1.0,
		}, nil
	}

	if res := d.fuzzyMatch(job); res != nil {
		return res, nil
	}

	// Page-parsed sources carry no body text and therefore no fingerprint;
	// an empty fingerprint must match nothing, not every other empty one.
	if job.ContentFingerprint == "" {
		return &DedupResult{}, nil
	}

	matches, err := d.canonical.GetByFingerprint(ctx, job.ContentFingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to check content fingerprint: %w", err)
	}
	if len(matches) > 0 {
		matched := matches[0] // oldest first
		if now.Sub(matched.FirstSeenAt) <= constants.RepostWindowDays*24*time.Hour {
			return &DedupResult{
				IsDuplicate: true,
				Method:      models.DedupMethodFingerprint,
				ExistingID:  matched.ID,
				Similarity:  1.0,
			}, nil
		}
		original := matched.PostedAt
		if original == nil {
			original = &matched.FirstSeenAt
		}
		return &DedupResult{
			Method:           models.DedupMethodFingerprint,
			ExistingID:       matched.ID,
			IsRepost:         true,
			OriginalPostDate: original,
		}, nil
	}

	return &DedupResult{}, nil
}

// fuzzyMatch scans the index for the most similar identity key. Returns nil
// when nothing reaches the potential threshold.
func (d *Deduper) fuzzyMatch(job *models.CanonicalJob) *DedupResult {
	key := dedupKey(job)

	var bestSim float64
	var bestID string
	for _, entry := range d.index {
		if sim := similarity(key, entry.key); sim > bestSim {
			bestSim = sim
			bestID = entry.id
		}
	}

	switch {
	case bestSim >= constants.FuzzyDuplicateThreshold:
		return &DedupResult{
			IsDuplicate: true,
			Method:      models.DedupMethodFuzzyKey,
			ExistingID:  bestID,
			Similarity:  bestSim,
		}
	case bestSim >= constants.FuzzyPotentialThreshold:
		return &DedupResult{
			Method:      models.DedupMethodFuzzyKey,
			ExistingID:  bestID,
			Similarity:  bestSim,
			IsPotential: true,
		}
	default:
		return nil
	}
}

// dedupKey builds the fuzzy identity key for a job.
func dedupKey(job *models.CanonicalJob) string {
	parts := []string{job.CompanyNormalized, job.Title, job.City}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// similarity is normalized Levenshtein over runes: 1 is identical, 0 shares
// nothing.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
