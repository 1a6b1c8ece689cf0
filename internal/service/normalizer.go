// Package service contains the pipeline business logic: normalization,
// dedup, scoring, fit analysis, notifications, and the ingest orchestrator
// that ties them together.
package service

import (
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/fingerprint"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/preprocessor"
)

// legalSuffixes are trailing company-name suffixes stripped during
// normalization, longest handled by repeated passes until fixpoint.
var legalSuffixes = []string{
	"incorporated", "corporation", "limited",
	"inc", "llc", "ltd", "corp", "co", "plc", "gmbh", "ag", "sa",
}

// tierTerm is one matchable location string with its display form preserved.
type tierTerm struct {
	lower   string
	display string
}

// tierMatcher is one location tier prepared for substring matching.
type tierMatcher struct {
	key   string
	tier  config.LocationTier
	terms []tierTerm
}

// Normalizer turns a RawJob into a CanonicalJob: title bucketing, location
// tier matching, work-mode detection, company normalization, identity
// hashes, and timestamp confidence. All pattern lists are lowercased once
// at construction.
type Normalizer struct {
	rules    *config.Rules
	location *time.Location

	include []string
	maybe   []string
	reject  []string
	tiers   []tierMatcher
	modes   map[string][]string
}

// NewNormalizer creates a normalizer from the loaded rules. Timestamps in
// the output are rendered in loc.
func NewNormalizer(rules *config.Rules, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}

	n := &Normalizer{
		rules:    rules,
		location: loc,
		include:  config.NormalizePatterns(rules.Titles.Include),
		maybe:    config.NormalizePatterns(rules.Titles.Maybe),
		reject:   config.NormalizePatterns(rules.Titles.Reject),
		modes:    make(map[string][]string, len(rules.Modes)),
	}

	for _, key := range rules.TierOrder() {
		tier := rules.Locations[key]
		m := tierMatcher{key: key, tier: tier}
		for _, city := range tier.Cities {
			if t := strings.TrimSpace(city); t != "" {
				m.terms = append(m.terms, tierTerm{lower: strings.ToLower(t), display: t})
			}
		}
		for _, alias := range tier.Aliases {
			if t := strings.TrimSpace(alias); t != "" {
				m.terms = append(m.terms, tierTerm{lower: strings.ToLower(t), display: t})
			}
		}
		n.tiers = append(n.tiers, m)
	}

	for mode, rule := range rules.Modes {
		n.modes[mode] = config.NormalizePatterns(rule.Keywords)
	}

	return n
}

// Normalize builds the canonical form of a raw capture. The caller decides
// what to do with rejected title buckets; Normalize always returns a
// complete job.
func (n *Normalizer) Normalize(raw *models.RawJob, now time.Time) *models.CanonicalJob {
	title := strings.TrimSpace(raw.Title)
	tierKey, tier, city, hasCity := n.matchTier(raw.LocationRaw)

	// Page connectors often yield no body text. An empty content gets no
	// fingerprint at all, otherwise every bodyless posting would share one.
	var contentFP string
	if strings.TrimSpace(raw.Content) != "" {
		contentFP = fingerprint.Content(raw.Content)
	}

	job := &models.CanonicalJob{
		RawJobID:           raw.ID,
		URLHash:            fingerprint.URLHash(raw.URL),
		ContentFingerprint: contentFP,
		Source:             raw.Source,
		SourceJobID:        raw.SourceJobID,
		Title:              title,
		Company:            strings.TrimSpace(raw.Company),
		CompanyNormalized:  NormalizeCompany(raw.Company),
		URL:                raw.URL,
		City:               city,
		Province:           tier.Province,
		LocationRaw:        raw.LocationRaw,
		LocationTier:       tierKey,
		WorkMode:           n.workMode(raw.Content+" "+raw.LocationRaw, hasCity),
		TitleBucket:        n.BucketTitle(title),
		Description:        preprocessor.CleanDescription(raw.Content),
		PostedAtConfidence: models.ConfidenceLow,
		FirstSeenAt:        now,
		LastSeenAt:         now,
		TimesSeen:          1,
		Status:             models.JobStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if tier.Province != "" {
		job.Country = "Canada"
	}
	if raw.PostedAt != nil {
		t := raw.PostedAt.In(n.location)
		job.PostedAt = &t
		job.PostedAtConfidence = n.timestampConfidence(raw.Source)
	}
	return job
}

// BucketTitle classifies a title against the three substring filter lists.
// Reject wins over everything; a title matching nothing is rejected too.
func (n *Normalizer) BucketTitle(title string) models.TitleBucket {
	lower := strings.ToLower(title)
	if containsAny(lower, n.reject) {
		return models.TitleBucketReject
	}
	if containsAny(lower, n.include) {
		return models.TitleBucketInclude
	}
	if containsAny(lower, n.maybe) {
		return models.TitleBucketMaybe
	}
	return models.TitleBucketReject
}

// matchTier finds the highest-points tier whose cities or aliases appear in
// locationRaw. hasCity reports whether the match names a concrete place,
// which the work-mode rules use; the remote tier carries no province and
// yields no city.
func (n *Normalizer) matchTier(locationRaw string) (key string, tier config.LocationTier, city string, hasCity bool) {
	lower := strings.ToLower(locationRaw)
	if strings.TrimSpace(lower) == "" {
		return "", config.LocationTier{}, "", false
	}
	for _, m := range n.tiers {
		for _, term := range m.terms {
			if strings.Contains(lower, term.lower) {
				if m.tier.Province == "" {
					return m.key, m.tier, "", false
				}
				return m.key, m.tier, term.display, true
			}
		}
	}
	return "", config.LocationTier{}, "", false
}

// workMode decides the work mode from keyword hits over the lowercased
// content plus location text. A remote keyword combined with either an
// onsite keyword or a concrete city means the posting is really hybrid.
func (n *Normalizer) workMode(text string, hasCity bool) models.WorkMode {
	lower := strings.ToLower(text)
	hybrid := containsAny(lower, n.modes[string(models.WorkModeHybrid)])
	remote := containsAny(lower, n.modes[string(models.WorkModeRemote)])
	onsite := containsAny(lower, n.modes[string(models.WorkModeOnsite)])

	switch {
	case hybrid:
		return models.WorkModeHybrid
	case remote && (onsite || hasCity):
		return models.WorkModeHybrid
	case remote:
		return models.WorkModeRemote
	case onsite:
		return models.WorkModeOnsite
	default:
		return models.WorkModeUnknown
	}
}

// timestampConfidence grades a parsed posted-at by source fidelity: ATS
// APIs expose real publish timestamps, search snippets yield derived dates,
// and page scrapes rarely carry anything trustworthy.
func (n *Normalizer) timestampConfidence(source string) models.Confidence {
	src, ok := n.rules.Sources[source]
	if !ok {
		return models.ConfidenceLow
	}
	switch src.Type {
	case "api":
		return models.ConfidenceHigh
	case "search":
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// NormalizeCompany strips trailing legal suffixes and trailing punctuation
// repeatedly until the name stops changing, collapsing whitespace runs.
// "Acme Inc." and "Acme" normalize equal.
func NormalizeCompany(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	for {
		stripped := stripLegalSuffix(name)
		if stripped == name {
			return name
		}
		name = stripped
	}
}

func stripLegalSuffix(name string) string {
	trimmed := strings.TrimRight(name, " .,")
	lower := strings.ToLower(trimmed)
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(lower, " "+suffix) {
			return strings.TrimSpace(trimmed[:len(trimmed)-len(suffix)])
		}
	}
	return trimmed
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
