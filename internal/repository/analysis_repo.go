package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
)

// SQLiteFitAnalysisRepository implements FitAnalysisRepository for SQLite.
type SQLiteFitAnalysisRepository struct {
	db *sql.DB
}

// NewSQLiteFitAnalysisRepository creates a new SQLite fit analysis repository.
func NewSQLiteFitAnalysisRepository(db *sql.DB) *SQLiteFitAnalysisRepository {
	return &SQLiteFitAnalysisRepository{db: db}
}

func (r *SQLiteFitAnalysisRepository) Upsert(ctx context.Context, analysis *models.FitAnalysis) error {
	if analysis.AnalyzedAt.IsZero() {
		analysis.AnalyzedAt = time.Now()
	}
	query := `
		INSERT OR REPLACE INTO fit_analyses (canonical_job_id, fit_score, verdict, summary,
			strengths_json, gaps_json, matched_skills_json, missing_skills_json,
			bonus_skills_json, tailoring_tips_json, cover_letter_points_json,
			experience_level_match, domain_relevance, recommendation,
			provider, model_used, prompt_tokens, completion_tokens, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		analysis.CanonicalJobID,
		analysis.FitScore,
		analysis.Verdict,
		analysis.Summary,
		marshalStrings(analysis.Strengths),
		marshalStrings(analysis.Gaps),
		marshalStrings(analysis.MatchedSkills),
		marshalStrings(analysis.MissingSkills),
		marshalStrings(analysis.BonusSkills),
		marshalStrings(analysis.TailoringTips),
		marshalStrings(analysis.CoverLetterPoints),
		nullString(analysis.ExperienceLevelMatch),
		nullString(analysis.DomainRelevance),
		nullString(analysis.Recommendation),
		nullString(analysis.Provider),
		nullString(analysis.ModelUsed),
		analysis.PromptTokens,
		analysis.CompletionTokens,
		analysis.AnalyzedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fit analysis: %w", err)
	}
	return nil
}

func (r *SQLiteFitAnalysisRepository) GetByJobID(ctx context.Context, jobID string) (*models.FitAnalysis, error) {
	query := `
		SELECT canonical_job_id, fit_score, verdict, summary,
			strengths_json, gaps_json, matched_skills_json, missing_skills_json,
			bonus_skills_json, tailoring_tips_json, cover_letter_points_json,
			experience_level_match, domain_relevance, recommendation,
			provider, model_used, prompt_tokens, completion_tokens, analyzed_at
		FROM fit_analyses WHERE canonical_job_id = ?
	`
	var a models.FitAnalysis
	var verdict, analyzedAt string
	var strengths, gaps, matched, missing, bonus, tips, points sql.NullString
	var expMatch, domainRel, recommendation, provider, modelUsed sql.NullString

	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&a.CanonicalJobID, &a.FitScore, &verdict, &a.Summary,
		&strengths, &gaps, &matched, &missing, &bonus, &tips, &points,
		&expMatch, &domainRel, &recommendation,
		&provider, &modelUsed, &a.PromptTokens, &a.CompletionTokens, &analyzedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fit analysis: %w", err)
	}

	a.Verdict = models.ParseVerdict(verdict)
	a.Strengths = unmarshalStrings(strengths)
	a.Gaps = unmarshalStrings(gaps)
	a.MatchedSkills = unmarshalStrings(matched)
	a.MissingSkills = unmarshalStrings(missing)
	a.BonusSkills = unmarshalStrings(bonus)
	a.TailoringTips = unmarshalStrings(tips)
	a.CoverLetterPoints = unmarshalStrings(points)
	a.ExperienceLevelMatch = expMatch.String
	a.DomainRelevance = domainRel.String
	a.Recommendation = recommendation.String
	a.Provider = provider.String
	a.ModelUsed = modelUsed.String
	a.AnalyzedAt, _ = time.Parse(time.RFC3339, analyzedAt)

	return &a, nil
}

func (r *SQLiteFitAnalysisRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fit_analyses WHERE analyzed_at >= ?",
		since.Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fit analyses: %w", err)
	}
	return count, nil
}

// marshalStrings serializes a string slice as JSON, NULL when empty.
func marshalStrings(values []string) sql.NullString {
	if len(values) == 0 {
		return sql.NullString{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// unmarshalStrings restores a JSON string slice, nil on NULL or bad data.
func unmarshalStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(ns.String), &values); err != nil {
		return nil
	}
	return values
}
