package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmylchreest/jobsift/internal/models"
)

// thinkBlockPattern matches reasoning-model think blocks, which some models
// emit before the answer even when told not to.
var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// fitPayload is the JSON schema the analysis prompt asks for. Flex types
// absorb the usual model sloppiness: scores as strings, one-element lists
// collapsed to a bare string.
type fitPayload struct {
	FitScore             *models.FlexInt    `json:"fitScore"`
	Verdict              string             `json:"verdict"`
	Summary              string             `json:"summary"`
	Strengths            models.FlexStrings `json:"strengths"`
	Gaps                 models.FlexStrings `json:"gaps"`
	MatchedSkills        models.FlexStrings `json:"matchedSkills"`
	MissingSkills        models.FlexStrings `json:"missingSkills"`
	BonusSkills          models.FlexStrings `json:"bonusSkills"`
	TailoringTips        models.FlexStrings `json:"tailoringTips"`
	CoverLetterPoints    models.FlexStrings `json:"coverLetterPoints"`
	ExperienceLevelMatch string             `json:"experienceLevelMatch"`
	DomainRelevance      string             `json:"domainRelevance"`
	Recommendation       string             `json:"recommendation"`
}

// ParseFitResponse extracts a fit analysis from raw model output. It strips
// think blocks and code fences, pulls out the first JSON object, and
// requires fitScore, verdict and summary. The caller fills in the job id,
// provider and token fields.
func ParseFitResponse(raw string) (*models.FitAnalysis, error) {
	cleaned := thinkBlockPattern.ReplaceAllString(raw, "")
	cleaned = stripCodeFences(cleaned)
	cleaned = extractJSONObject(cleaned)
	if cleaned == "" {
		return nil, fmt.Errorf("no JSON object found: %w", ErrMalformedResponse)
	}

	var payload fitPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedResponse)
	}

	if payload.FitScore == nil {
		return nil, fmt.Errorf("missing fitScore: %w", ErrMalformedResponse)
	}
	if strings.TrimSpace(payload.Verdict) == "" {
		return nil, fmt.Errorf("missing verdict: %w", ErrMalformedResponse)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, fmt.Errorf("missing summary: %w", ErrMalformedResponse)
	}

	level := strings.TrimSpace(payload.ExperienceLevelMatch)
	if level == "" {
		level = "unknown"
	}

	return &models.FitAnalysis{
		FitScore:             clampScore(payload.FitScore.Int()),
		Verdict:              models.ParseVerdict(strings.ToLower(strings.TrimSpace(payload.Verdict))),
		Summary:              strings.TrimSpace(payload.Summary),
		Strengths:            payload.Strengths.Strings(),
		Gaps:                 payload.Gaps.Strings(),
		MatchedSkills:        payload.MatchedSkills.Strings(),
		MissingSkills:        payload.MissingSkills.Strings(),
		BonusSkills:          payload.BonusSkills.Strings(),
		TailoringTips:        payload.TailoringTips.Strings(),
		CoverLetterPoints:    payload.CoverLetterPoints.Strings(),
		ExperienceLevelMatch: level,
		DomainRelevance:      strings.TrimSpace(payload.DomainRelevance),
		Recommendation:       strings.TrimSpace(payload.Recommendation),
	}, nil
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// stripCodeFences removes a surrounding markdown fence, with or without a
// language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// extractJSONObject returns the first balanced JSON object in s, tolerating
// prose before or after it. Returns "" when no object opens or closes.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
