package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocationTier describes one scoring tier of cities.
type LocationTier struct {
	Label    string   `json:"label"`
	Points   int      `json:"points"`
	Cities   []string `json:"cities"`
	Aliases  []string `json:"aliases,omitempty"`
	Province string   `json:"province,omitempty"` // empty for the remote tier
}

// TitleFilters holds the three substring pattern lists for title bucketing.
type TitleFilters struct {
	Include []string
	Maybe   []string
	Reject  []string
}

// ModeRule scores one work mode and lists the keywords that signal it.
type ModeRule struct {
	Points   int      `json:"points"`
	Keywords []string `json:"keywords"`
}

// FreshnessBracket assigns points to postings up to MaxHours old.
// A nil MaxHours is the catch-all bracket.
type FreshnessBracket struct {
	MaxHours *int `json:"maxHours"`
	Points   int  `json:"points"`
}

// Band defines the minimum total score for one score band.
type Band struct {
	MinScore int `json:"minScore"`
}

// ScoringRules holds the freshness brackets and band thresholds.
type ScoringRules struct {
	Freshness struct {
		Brackets         []FreshnessBracket `json:"brackets"`
		LowConfidenceCap int                `json:"lowConfidenceCap"`
	} `json:"freshness"`
	Bands struct {
		TopPriority Band `json:"topPriority"`
		GoodMatch   Band `json:"goodMatch"`
		WorthALook  Band `json:"worthALook"`
	} `json:"bands"`
}

// RateLimiting controls the batch fetcher for one source.
type RateLimiting struct {
	BatchSize              int `json:"batchSize"`
	DelayBetweenRequestsMs int `json:"delayBetweenRequestsMs"`
	BatchPauseMs           int `json:"batchPauseMs"`
}

// SourceDef configures one connector instance.
type SourceDef struct {
	Type             string            `json:"type"`   // api | page | search
	Family           string            `json:"family"` // ats | aggregator | underground
	Enabled          bool              `json:"enabled"`
	EndpointTemplate string            `json:"endpointTemplate,omitempty"`
	URLTemplate      string            `json:"urlTemplate,omitempty"`
	RateLimiting     RateLimiting      `json:"rateLimiting"`
	TimeoutMs        int               `json:"timeoutMs,omitempty"`
	MaxRetries       int               `json:"maxRetries,omitempty"`
	BackoffStartMs   int               `json:"backoffStartMs,omitempty"`
	Queries          []string          `json:"queries,omitempty"`
	Selectors        map[string]string `json:"selectors,omitempty"`
	URLAllow         []string          `json:"urlAllow,omitempty"`
	URLDeny          []string          `json:"urlDeny,omitempty"`
	RoleBlocklist    []string          `json:"roleBlocklist,omitempty"`
}

// DiscoveryRules configures the board discovery job.
type DiscoveryRules struct {
	Queries         []string `json:"queries"`
	ResultsPerQuery int      `json:"resultsPerQuery,omitempty"`
	MaxEmptyRuns    int      `json:"maxEmptyRuns,omitempty"`
}

// Rules aggregates every JSON rule file.
type Rules struct {
	Locations map[string]LocationTier
	Titles    TitleFilters
	Modes     map[string]ModeRule
	Scoring   ScoringRules
	Sources   map[string]SourceDef
	Companies map[string][]string
	Discovery DiscoveryRules
}

type patternFile struct {
	Patterns []string `json:"patterns"`
}

// LoadRules reads every rule file from dir. Missing required files or
// malformed JSON fail loading; the pipeline must not start half-configured.
func LoadRules(dir string) (*Rules, error) {
	r := &Rules{}

	if err := readJSON(filepath.Join(dir, "locations.json"), &r.Locations); err != nil {
		return nil, err
	}

	var include, maybe, reject patternFile
	if err := readJSON(filepath.Join(dir, "titles_include.json"), &include); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "titles_maybe.json"), &maybe); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "titles_reject.json"), &reject); err != nil {
		return nil, err
	}
	r.Titles = TitleFilters{Include: include.Patterns, Maybe: maybe.Patterns, Reject: reject.Patterns}

	if err := readJSON(filepath.Join(dir, "modes.json"), &r.Modes); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "scoring.json"), &r.Scoring); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "sources.json"), &r.Sources); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "companies.json"), &r.Companies); err != nil {
		return nil, err
	}

	// discovery.json is optional; without it the discovery job has no
	// queries and is a no-op.
	discoveryPath := filepath.Join(dir, "discovery.json")
	if _, err := os.Stat(discoveryPath); err == nil {
		if err := readJSON(discoveryPath, &r.Discovery); err != nil {
			return nil, err
		}
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks cross-field consistency of the loaded rules.
func (r *Rules) Validate() error {
	if len(r.Locations) == 0 {
		return fmt.Errorf("locations.json defines no tiers")
	}
	for key, tier := range r.Locations {
		if len(tier.Cities) == 0 && len(tier.Aliases) == 0 {
			return fmt.Errorf("location tier %s has no cities or aliases", key)
		}
	}
	if len(r.Scoring.Freshness.Brackets) == 0 {
		return fmt.Errorf("scoring.json defines no freshness brackets")
	}
	if len(r.Modes) == 0 {
		return fmt.Errorf("modes.json defines no modes")
	}
	for name, src := range r.Sources {
		switch src.Type {
		case "api", "page", "search":
		default:
			return fmt.Errorf("source %s has unknown type %q", name, src.Type)
		}
		switch src.Family {
		case "ats", "aggregator", "underground":
		default:
			return fmt.Errorf("source %s has unknown family %q", name, src.Family)
		}
	}
	return nil
}

// TierOrder returns tier keys sorted by descending points, ties broken by
// tier key order (L1 before L2). The normalizer matches in this order.
func (r *Rules) TierOrder() []string {
	keys := make([]string, 0, len(r.Locations))
	for k := range r.Locations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := r.Locations[keys[i]].Points, r.Locations[keys[j]].Points
		if pi != pj {
			return pi > pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// SortedFreshnessBrackets returns the brackets ordered by ascending
// MaxHours with the nil catch-all last.
func (r *Rules) SortedFreshnessBrackets() []FreshnessBracket {
	brackets := make([]FreshnessBracket, len(r.Scoring.Freshness.Brackets))
	copy(brackets, r.Scoring.Freshness.Brackets)
	sort.SliceStable(brackets, func(i, j int) bool {
		bi, bj := brackets[i].MaxHours, brackets[j].MaxHours
		if bi == nil {
			return false
		}
		if bj == nil {
			return true
		}
		return *bi < *bj
	})
	return brackets
}

// EnabledSources returns source names of the given type with Enabled=true,
// sorted for deterministic run order.
func (r *Rules) EnabledSources(sourceType string) []string {
	names := make([]string, 0, len(r.Sources))
	for name, src := range r.Sources {
		if src.Enabled && (sourceType == "" || src.Type == sourceType) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// EnabledSourcesByFamily returns enabled source names in the given family
// (ats, aggregator or underground), sorted for deterministic run order.
func (r *Rules) EnabledSourcesByFamily(family string) []string {
	names := make([]string, 0, len(r.Sources))
	for name, src := range r.Sources {
		if src.Enabled && src.Family == family {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ModeFor returns the rule for a work mode, falling back to "unknown".
func (r *Rules) ModeFor(mode string) ModeRule {
	if rule, ok := r.Modes[mode]; ok {
		return rule
	}
	return r.Modes["unknown"]
}

// NormalizePatterns lowercases and trims a pattern list once at startup so
// matching stays allocation-free per job.
func NormalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
