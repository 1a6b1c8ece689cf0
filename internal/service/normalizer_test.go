package service

import (
	"testing"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
)

func intPtr(v int) *int { return &v }

func testRules() *config.Rules {
	return &config.Rules{
		Locations: map[string]config.LocationTier{
			"L1": {
				Label:    "GTA",
				Points:   25,
				Cities:   []string{"Toronto", "Mississauga", "Scarborough"},
				Aliases:  []string{"GTA", "Greater Toronto Area"},
				Province: "Ontario",
			},
			"L2": {
				Label:    "Ontario hubs",
				Points:   20,
				Cities:   []string{"Ottawa", "Waterloo", "Hamilton"},
				Province: "Ontario",
			},
			"L3": {
				Label:   "Remote Canada",
				Points:  15,
				Aliases: []string{"remote"},
			},
			"L4": {
				Label:    "BC",
				Points:   10,
				Cities:   []string{"Vancouver", "Victoria", "Burnaby"},
				Province: "British Columbia",
			},
		},
		Titles: config.TitleFilters{
			Include: []string{"software engineer", "developer", "platform engineer", "backend", "devops"},
			Maybe:   []string{"engineer", "architect"},
			Reject:  []string{"manager", "director", "recruiter", "sales", "intern"},
		},
		Modes: map[string]config.ModeRule{
			"hybrid":  {Points: 10, Keywords: []string{"hybrid", "days in office"}},
			"remote":  {Points: 15, Keywords: []string{"remote", "work from home", "wfh"}},
			"onsite":  {Points: 0, Keywords: []string{"on-site", "onsite", "in office", "in-person"}},
			"unknown": {Points: 5},
		},
		Scoring: func() config.ScoringRules {
			var s config.ScoringRules
			s.Freshness.Brackets = []config.FreshnessBracket{
				{MaxHours: intPtr(24), Points: 100},
				{MaxHours: intPtr(48), Points: 80},
				{MaxHours: nil, Points: 0},
			}
			s.Freshness.LowConfidenceCap = 50
			s.Bands.TopPriority.MinScore = 100
			s.Bands.GoodMatch.MinScore = 60
			s.Bands.WorthALook.MinScore = 0
			return s
		}(),
		Sources: map[string]config.SourceDef{
			"greenhouse":  {Type: "api", Family: "ats", Enabled: true},
			"google_jobs": {Type: "search", Family: "aggregator", Enabled: true},
			"bamboohr":    {Type: "page", Family: "ats", Enabled: true},
		},
		Companies: map[string][]string{"greenhouse": {"acme"}},
	}
}

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return NewNormalizer(testRules(), loc)
}

func TestNormalizer_BucketTitle(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		title string
		want  models.TitleBucket
	}{
		{"Senior Software Engineer", models.TitleBucketInclude},
		{"Backend Developer", models.TitleBucketInclude},
		{"Data Engineer", models.TitleBucketMaybe},
		{"Solutions Architect", models.TitleBucketMaybe},
		{"Engineering Manager", models.TitleBucketReject},
		{"Software Engineer Intern", models.TitleBucketReject},
		{"Sales Director", models.TitleBucketReject},
		{"Accountant", models.TitleBucketReject},
		{"", models.TitleBucketReject},
	}
	for _, tt := range tests {
		if got := n.BucketTitle(tt.title); got != tt.want {
			t.Errorf("BucketTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestNormalizer_LocationTier(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		locationRaw  string
		wantTier     string
		wantCity     string
		wantProvince string
	}{
		{"Toronto, ON", "L1", "Toronto", "Ontario"},
		{"Ottawa (Hybrid)", "L2", "Ottawa", "Ontario"},
		{"Greater Toronto Area", "L1", "Toronto", "Ontario"},
		{"GTA - flexible", "L1", "GTA", "Ontario"},
		{"Vancouver, BC", "L4", "Vancouver", "British Columbia"},
		{"Remote", "L3", "", ""},
		{"New York, NY", "", "", ""},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		key, tier, city, _ := n.matchTier(tt.locationRaw)
		if key != tt.wantTier {
			t.Errorf("matchTier(%q) tier = %q, want %q", tt.locationRaw, key, tt.wantTier)
		}
		if city != tt.wantCity {
			t.Errorf("matchTier(%q) city = %q, want %q", tt.locationRaw, city, tt.wantCity)
		}
		if tier.Province != tt.wantProvince {
			t.Errorf("matchTier(%q) province = %q, want %q", tt.locationRaw, tier.Province, tt.wantProvince)
		}
	}
}

func TestNormalizer_TierPrecedence(t *testing.T) {
	n := testNormalizer(t)

	// Both the GTA tier and the remote tier match; higher points win.
	key, _, city, _ := n.matchTier("Toronto (Remote)")
	if key != "L1" {
		t.Errorf("tier = %q, want L1", key)
	}
	if city != "Toronto" {
		t.Errorf("city = %q, want Toronto", city)
	}
}

func TestNormalizer_WorkMode(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		name        string
		content     string
		locationRaw string
		want        models.WorkMode
	}{
		{"hybrid keyword", "We offer a hybrid work model.", "Toronto, ON", models.WorkModeHybrid},
		{"remote only", "This role is fully remote.", "Canada", models.WorkModeRemote},
		{"remote plus city", "Remote-friendly team.", "Toronto, ON", models.WorkModeHybrid},
		{"remote plus onsite keyword", "Remote with occasional in office collaboration.", "", models.WorkModeHybrid},
		{"onsite only", "This position is on-site five days a week.", "Hamilton", models.WorkModeOnsite},
		{"no signals", "Great opportunity to grow.", "Somewhere", models.WorkModeUnknown},
	}
	for _, tt := range tests {
		_, _, _, hasCity := n.matchTier(tt.locationRaw)
		if got := n.workMode(tt.content+" "+tt.locationRaw, hasCity); got != tt.want {
			t.Errorf("%s: workMode = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeCompany(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Inc.", "Acme"},
		{"Acme, Inc.", "Acme"},
		{"Globex Corporation", "Globex"},
		{"Initech Co Ltd", "Initech"},
		{"Soylent Corp.", "Soylent"},
		{"Wayne Enterprises Limited", "Wayne Enterprises"},
		{"Hooli GmbH", "Hooli"},
		{"  Stark   Industries  ", "Stark Industries"},
		{"Umbrella", "Umbrella"},
		{"Co", "Co"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCompany(tt.in); got != tt.want {
			t.Errorf("NormalizeCompany(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	n := testNormalizer(t)
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	posted := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)

	raw := &models.RawJob{
		ID:          "raw-1",
		Source:      "greenhouse",
		SourceJobID: "12345",
		Title:       "  Senior Software Engineer  ",
		Company:     "Acme Inc.",
		URL:         "https://boards.example.com/jobs/abc/",
		LocationRaw: "Toronto, ON",
		Content:     "<p>Build <b>backend</b> services. Hybrid schedule.</p>",
		PostedAt:    &posted,
	}

	job := n.Normalize(raw, now)

	if job.Title != "Senior Software Engineer" {
		t.Errorf("Title = %q", job.Title)
	}
	if job.TitleBucket != models.TitleBucketInclude {
		t.Errorf("TitleBucket = %q, want include", job.TitleBucket)
	}
	if job.CompanyNormalized != "Acme" {
		t.Errorf("CompanyNormalized = %q, want Acme", job.CompanyNormalized)
	}
	if job.City != "Toronto" || job.Province != "Ontario" || job.Country != "Canada" {
		t.Errorf("location = %q/%q/%q, want Toronto/Ontario/Canada", job.City, job.Province, job.Country)
	}
	if job.LocationTier != "L1" {
		t.Errorf("LocationTier = %q, want L1", job.LocationTier)
	}
	if job.WorkMode != models.WorkModeHybrid {
		t.Errorf("WorkMode = %q, want hybrid", job.WorkMode)
	}
	if job.Description != "Build backend services. Hybrid schedule." {
		t.Errorf("Description = %q", job.Description)
	}
	if job.PostedAt == nil {
		t.Fatal("PostedAt is nil")
	}
	if job.PostedAtConfidence != models.ConfidenceHigh {
		t.Errorf("PostedAtConfidence = %q, want high", job.PostedAtConfidence)
	}
	// January in Toronto is EST, UTC-5.
	if _, offset := job.PostedAt.Zone(); offset != -5*3600 {
		t.Errorf("PostedAt offset = %d, want %d", offset, -5*3600)
	}
	if !job.PostedAt.Equal(posted) {
		t.Errorf("PostedAt = %v, want instant %v", job.PostedAt, posted)
	}
	if job.Status != models.JobStatusActive || job.TimesSeen != 1 {
		t.Errorf("Status/TimesSeen = %q/%d, want active/1", job.Status, job.TimesSeen)
	}
	if !job.FirstSeenAt.Equal(now) || !job.LastSeenAt.Equal(now) {
		t.Errorf("FirstSeenAt/LastSeenAt = %v/%v, want %v", job.FirstSeenAt, job.LastSeenAt, now)
	}
	if !job.CreatedAt.Equal(now) || !job.UpdatedAt.Equal(now) {
		t.Errorf("CreatedAt/UpdatedAt = %v/%v, want %v", job.CreatedAt, job.UpdatedAt, now)
	}
}

func TestNormalizer_EmptyContentHasNoFingerprint(t *testing.T) {
	n := testNormalizer(t)
	now := time.Now().UTC()

	raw := &models.RawJob{
		Source:      "bamboohr",
		Title:       "Platform Engineer",
		Company:     "Acme Inc.",
		URL:         "https://careers.acme.example/jobs/platform",
		LocationRaw: "Toronto, ON",
	}

	job := n.Normalize(raw, now)
	if job.ContentFingerprint != "" {
		t.Errorf("ContentFingerprint = %q, want empty for a bodyless posting", job.ContentFingerprint)
	}

	other := n.Normalize(&models.RawJob{
		Source:      "jobvite",
		Title:       "Staff Accountant",
		Company:     "Globex Corporation",
		URL:         "https://globex.example/careers/accountant",
		LocationRaw: "Vancouver, BC",
	}, now)
	if other.ContentFingerprint != "" {
		t.Errorf("ContentFingerprint = %q, want empty for a bodyless posting", other.ContentFingerprint)
	}
}

func TestNormalizer_NormalizeDeterministic(t *testing.T) {
	n := testNormalizer(t)
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	raw := &models.RawJob{
		Source:      "greenhouse",
		Title:       "Backend Developer",
		Company:     "Globex Corporation",
		URL:         "https://boards.example.com/jobs/42",
		LocationRaw: "Ottawa, ON",
		Content:     "<div>Work on distributed systems in Ottawa.</div>",
	}

	a := n.Normalize(raw, now)
	b := n.Normalize(raw, now)

	if a.URLHash != b.URLHash {
		t.Errorf("URLHash differs: %q vs %q", a.URLHash, b.URLHash)
	}
	if a.ContentFingerprint != b.ContentFingerprint {
		t.Errorf("ContentFingerprint differs: %q vs %q", a.ContentFingerprint, b.ContentFingerprint)
	}
	if a.TitleBucket != b.TitleBucket || a.City != b.City || a.WorkMode != b.WorkMode {
		t.Errorf("normalization not deterministic: %+v vs %+v", a, b)
	}
}

func TestNormalizer_TimestampConfidence(t *testing.T) {
	n := testNormalizer(t)
	now := time.Now().UTC()
	posted := now.Add(-6 * time.Hour)

	tests := []struct {
		source   string
		postedAt *time.Time
		want     models.Confidence
	}{
		{"greenhouse", &posted, models.ConfidenceHigh},
		{"google_jobs", &posted, models.ConfidenceMedium},
		{"bamboohr", &posted, models.ConfidenceLow},
		{"unconfigured", &posted, models.ConfidenceLow},
		{"greenhouse", nil, models.ConfidenceLow},
	}
	for _, tt := range tests {
		raw := &models.RawJob{
			Source:   tt.source,
			Title:    "Developer",
			URL:      "https://example.com/j/1",
			PostedAt: tt.postedAt,
		}
		job := n.Normalize(raw, now)
		if job.PostedAtConfidence != tt.want {
			t.Errorf("source %s: confidence = %q, want %q", tt.source, job.PostedAtConfidence, tt.want)
		}
		if tt.postedAt == nil && job.PostedAt != nil {
			t.Errorf("source %s: PostedAt = %v, want nil", tt.source, job.PostedAt)
		}
	}
}
