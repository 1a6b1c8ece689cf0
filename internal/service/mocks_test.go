package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// mockCanonicalRepo implements repository.CanonicalJobRepository for testing.
type mockCanonicalRepo struct {
	mu   sync.RWMutex
	jobs map[string]*models.CanonicalJob

	createErr error
	purged    int64
}

func newMockCanonicalRepo() *mockCanonicalRepo {
	return &mockCanonicalRepo{jobs: make(map[string]*models.CanonicalJob)}
}

func (m *mockCanonicalRepo) Create(ctx context.Context, job *models.CanonicalJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.jobs {
		if existing.URLHash == job.URLHash {
			return fmt.Errorf("UNIQUE constraint failed: jobs_canonical.url_hash")
		}
	}
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockCanonicalRepo) GetByID(ctx context.Context, id string) (*models.CanonicalJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, nil
}

func (m *mockCanonicalRepo) GetByURLHash(ctx context.Context, hash string) (*models.CanonicalJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if job.URLHash == hash {
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockCanonicalRepo) GetByFingerprint(ctx context.Context, fingerprint string) ([]*models.CanonicalJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.CanonicalJob
	for _, job := range m.jobs {
		if job.Status == models.JobStatusActive && job.ContentFingerprint == fingerprint {
			cp := *job
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FirstSeenAt.Before(result[j].FirstSeenAt) })
	return result, nil
}

func (m *mockCanonicalRepo) GetActiveSince(ctx context.Context, since time.Time) ([]*models.CanonicalJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.CanonicalJob
	for _, job := range m.jobs {
		if job.Status == models.JobStatusActive && job.FirstSeenAt.After(since) {
			cp := *job
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FirstSeenAt.Before(result[j].FirstSeenAt) })
	return result, nil
}

func (m *mockCanonicalRepo) MarkSeen(ctx context.Context, id string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.LastSeenAt = seenAt
		job.TimesSeen++
	}
	return nil
}

func (m *mockCanonicalRepo) UpdateScore(ctx context.Context, job *models.CanonicalJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.jobs[job.ID]; ok {
		stored.Score = job.Score
		stored.ScoreFreshness = job.ScoreFreshness
		stored.ScoreLocation = job.ScoreLocation
		stored.ScoreMode = job.ScoreMode
		stored.ScoreBand = job.ScoreBand
	}
	return nil
}

func (m *mockCanonicalRepo) UpdateStatus(ctx context.Context, id string, status models.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.Status = status
	return nil
}

func (m *mockCanonicalRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.NotifiedAt = &at
	}
	return nil
}

func (m *mockCanonicalRepo) GetUnnotified(ctx context.Context, minScore, limit int) ([]*models.CanonicalJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.CanonicalJob
	for _, job := range m.jobs {
		if job.Status == models.JobStatusActive && job.Score >= minScore && job.NotifiedAt == nil {
			cp := *job
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FirstSeenAt.Before(result[j].FirstSeenAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockCanonicalRepo) GetTopSince(ctx context.Context, since time.Time, minScore, limit int) ([]*models.CanonicalJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.CanonicalJob
	for _, job := range m.jobs {
		if job.Status == models.JobStatusActive && job.FirstSeenAt.After(since) && job.Score >= minScore {
			cp := *job
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Score > result[j].Score })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockCanonicalRepo) List(ctx context.Context, params repository.JobListParams) ([]*models.CanonicalJob, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.CanonicalJob
	for _, job := range m.jobs {
		if params.Status != "" && string(job.Status) != params.Status {
			continue
		}
		if params.Band != "" && string(job.ScoreBand) != params.Band {
			continue
		}
		if params.Source != "" && job.Source != params.Source {
			continue
		}
		if job.Score < params.MinScore {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(job.Title+" "+job.Company), strings.ToLower(params.Search)) {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Score > result[j].Score })
	total := len(result)
	if params.Offset > 0 {
		if params.Offset >= len(result) {
			return nil, total, nil
		}
		result = result[params.Offset:]
	}
	if params.Limit > 0 && len(result) > params.Limit {
		result = result[:params.Limit]
	}
	return result, total, nil
}

func (m *mockCanonicalRepo) ExpireOlderThan(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, job := range m.jobs {
		if job.Status == models.JobStatusActive && job.FirstSeenAt.Before(before) {
			job.Status = models.JobStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *mockCanonicalRepo) ArchiveAndPurge(ctx context.Context, archiveBefore, purgeBefore time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var archived int64
	for _, job := range m.jobs {
		if job.Status == models.JobStatusActive && job.FirstSeenAt.Before(archiveBefore) {
			job.Status = models.JobStatusArchived
			archived++
		}
	}
	return archived, m.purged, nil
}

// mockRawJobRepo implements repository.RawJobRepository for testing.
type mockRawJobRepo struct {
	mu   sync.RWMutex
	raws map[string]*models.RawJob
}

func newMockRawJobRepo() *mockRawJobRepo {
	return &mockRawJobRepo{raws: make(map[string]*models.RawJob)}
}

func (m *mockRawJobRepo) Create(ctx context.Context, raw *models.RawJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if raw.ID == "" {
		raw.ID = ulid.Make().String()
	}
	cp := *raw
	m.raws[raw.ID] = &cp
	return nil
}

func (m *mockRawJobRepo) GetByID(ctx context.Context, id string) (*models.RawJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if raw, ok := m.raws[id]; ok {
		cp := *raw
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRawJobRepo) GetByDate(ctx context.Context, date, source string) ([]*models.RawJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.RawJob
	for _, raw := range m.raws {
		if raw.FetchedAt.Format("2006-01-02") != date {
			continue
		}
		if source != "" && raw.Source != source {
			continue
		}
		cp := *raw
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FetchedAt.Before(result[j].FetchedAt) })
	return result, nil
}

func (m *mockRawJobRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, raw := range m.raws {
		if raw.FetchedAt.Before(before) {
			delete(m.raws, id)
			n++
		}
	}
	return n, nil
}

// mockRunRepo implements repository.RunLogRepository for testing.
type mockRunRepo struct {
	mu   sync.RWMutex
	runs map[string]*models.RunLog
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[string]*models.RunLog)}
}

func (m *mockRunRepo) Create(ctx context.Context, run *models.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = ulid.Make().String()
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*models.RunLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if run, ok := m.runs[id]; ok {
		cp := *run
		return &cp, nil
	}
	return nil, nil
}

func (m *mockRunRepo) Finish(ctx context.Context, run *models.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockRunRepo) GetLastCompleted(ctx context.Context) (*models.RunLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last *models.RunLog
	for _, run := range m.runs {
		if run.Status != models.RunStatusCompleted || run.FinishedAt == nil {
			continue
		}
		if last == nil || run.FinishedAt.After(*last.FinishedAt) {
			last = run
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (m *mockRunRepo) GetRecent(ctx context.Context, limit int) ([]*models.RunLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.RunLog
	for _, run := range m.runs {
		cp := *run
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// mockDuplicateRepo implements repository.DuplicateLinkRepository for testing.
type mockDuplicateRepo struct {
	mu    sync.RWMutex
	links []*models.DuplicateLink
}

func newMockDuplicateRepo() *mockDuplicateRepo {
	return &mockDuplicateRepo{}
}

func (m *mockDuplicateRepo) Create(ctx context.Context, link *models.DuplicateLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link.ID == "" {
		link.ID = ulid.Make().String()
	}
	cp := *link
	m.links = append(m.links, &cp)
	return nil
}

func (m *mockDuplicateRepo) GetForJob(ctx context.Context, jobID string) ([]*models.DuplicateLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.DuplicateLink
	for _, link := range m.links {
		if link.CanonicalJobID == jobID {
			cp := *link
			result = append(result, &cp)
		}
	}
	return result, nil
}

// mockAlternateRepo implements repository.AlternateURLRepository for testing.
type mockAlternateRepo struct {
	mu   sync.RWMutex
	alts []*models.AlternateURL
}

func newMockAlternateRepo() *mockAlternateRepo {
	return &mockAlternateRepo{}
}

func (m *mockAlternateRepo) Create(ctx context.Context, alt *models.AlternateURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.alts {
		if existing.CanonicalJobID == alt.CanonicalJobID && existing.Source == alt.Source {
			return nil
		}
	}
	if alt.ID == "" {
		alt.ID = ulid.Make().String()
	}
	cp := *alt
	m.alts = append(m.alts, &cp)
	return nil
}

func (m *mockAlternateRepo) ListForJob(ctx context.Context, jobID string, limit int) ([]*models.AlternateURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.AlternateURL
	for _, alt := range m.alts {
		if alt.CanonicalJobID == jobID {
			cp := *alt
			result = append(result, &cp)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// mockAnalysisRepo implements repository.FitAnalysisRepository for testing.
type mockAnalysisRepo struct {
	mu       sync.RWMutex
	analyses map[string]*models.FitAnalysis
}

func newMockAnalysisRepo() *mockAnalysisRepo {
	return &mockAnalysisRepo{analyses: make(map[string]*models.FitAnalysis)}
}

func (m *mockAnalysisRepo) Upsert(ctx context.Context, analysis *models.FitAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *analysis
	m.analyses[analysis.CanonicalJobID] = &cp
	return nil
}

func (m *mockAnalysisRepo) GetByJobID(ctx context.Context, jobID string) (*models.FitAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.analyses[jobID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *mockAnalysisRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.analyses {
		if a.AnalyzedAt.After(since) {
			n++
		}
	}
	return n, nil
}

// mockBoardRepo implements repository.DiscoveredBoardRepository for testing.
type mockBoardRepo struct {
	mu     sync.RWMutex
	boards map[string]*models.DiscoveredBoard // keyed by board URL
}

func newMockBoardRepo() *mockBoardRepo {
	return &mockBoardRepo{boards: make(map[string]*models.DiscoveredBoard)}
}

func (m *mockBoardRepo) Upsert(ctx context.Context, board *models.DiscoveredBoard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.boards[board.BoardURL]; ok {
		if board.Confidence > existing.Confidence {
			existing.Confidence = board.Confidence
		}
		existing.Status = models.BoardStatusActive
		existing.LastSeenAt = board.LastSeenAt
		return nil
	}
	if board.ID == "" {
		board.ID = ulid.Make().String()
	}
	cp := *board
	m.boards[board.BoardURL] = &cp
	return nil
}

func (m *mockBoardRepo) GetByURL(ctx context.Context, boardURL string) (*models.DiscoveredBoard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.boards[boardURL]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (m *mockBoardRepo) GetActiveByPlatform(ctx context.Context, platform string) ([]*models.DiscoveredBoard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.DiscoveredBoard
	for _, b := range m.boards {
		if b.Platform == platform && b.Status == models.BoardStatusActive {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BoardSlug < result[j].BoardSlug })
	return result, nil
}

func (m *mockBoardRepo) GetAll(ctx context.Context) ([]*models.DiscoveredBoard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.DiscoveredBoard
	for _, b := range m.boards {
		cp := *b
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockBoardRepo) RecordPoll(ctx context.Context, id string, jobsYielded int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.boards {
		if b.ID == id {
			if jobsYielded > 0 {
				b.LastSuccessAt = &at
				b.ConsecutiveEmptyRuns = 0
			} else {
				b.ConsecutiveEmptyRuns++
			}
			return nil
		}
	}
	return nil
}

func (m *mockBoardRepo) DeactivateStale(ctx context.Context, maxEmptyRuns int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.boards {
		if b.Status == models.BoardStatusActive && b.ConsecutiveEmptyRuns >= maxEmptyRuns {
			b.Status = models.BoardStatusInactive
			n++
		}
	}
	return n, nil
}

// mockMetricRepo implements repository.SourceMetricRepository for testing.
type mockMetricRepo struct {
	mu      sync.RWMutex
	metrics map[string]*models.SourceMetric // keyed by source|date
}

func newMockMetricRepo() *mockMetricRepo {
	return &mockMetricRepo{metrics: make(map[string]*models.SourceMetric)}
}

func (m *mockMetricRepo) Record(ctx context.Context, metric *models.SourceMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metric.Source + "|" + metric.Date
	if existing, ok := m.metrics[key]; ok {
		existing.JobsFound += metric.JobsFound
		existing.JobsNew += metric.JobsNew
		existing.JobsDuplicate += metric.JobsDuplicate
		existing.ParseFailures += metric.ParseFailures
		existing.RateLimitHits += metric.RateLimitHits
		existing.ResponseTimeTotalMs += metric.ResponseTimeTotalMs
		existing.ResponseCount += metric.ResponseCount
		existing.SuccessCount += metric.SuccessCount
		existing.FailureCount += metric.FailureCount
		return nil
	}
	cp := *metric
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	m.metrics[key] = &cp
	return nil
}

func (m *mockMetricRepo) GetByDateRange(ctx context.Context, startDate, endDate string) ([]*models.SourceMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.SourceMetric
	for _, metric := range m.metrics {
		if metric.Date >= startDate && metric.Date <= endDate {
			cp := *metric
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Source < result[j].Source })
	return result, nil
}

func (m *mockMetricRepo) GetBySource(ctx context.Context, source, startDate, endDate string) ([]*models.SourceMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.SourceMetric
	for _, metric := range m.metrics {
		if metric.Source == source && metric.Date >= startDate && metric.Date <= endDate {
			cp := *metric
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// mockCheckpointRepo implements repository.CheckpointRepository for testing.
type mockCheckpointRepo struct {
	mu          sync.RWMutex
	checkpoints map[string]*models.ConnectorCheckpoint // keyed by source|company
}

func newMockCheckpointRepo() *mockCheckpointRepo {
	return &mockCheckpointRepo{checkpoints: make(map[string]*models.ConnectorCheckpoint)}
}

func (m *mockCheckpointRepo) RecordSuccess(ctx context.Context, source, company string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.get(source, company)
	cp.LastSuccessAt = &at
	cp.ConsecutiveFailures = 0
	cp.LastError = ""
	return nil
}

func (m *mockCheckpointRepo) RecordFailure(ctx context.Context, source, company, errMsg string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.get(source, company)
	cp.LastFailureAt = &at
	cp.ConsecutiveFailures++
	cp.LastError = errMsg
	return cp.ConsecutiveFailures, nil
}

func (m *mockCheckpointRepo) Get(ctx context.Context, source, company string) (*models.ConnectorCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cp, ok := m.checkpoints[source+"|"+company]; ok {
		out := *cp
		return &out, nil
	}
	return nil, nil
}

func (m *mockCheckpointRepo) GetFailing(ctx context.Context, minConsecutive int) ([]*models.ConnectorCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.ConnectorCheckpoint
	for _, cp := range m.checkpoints {
		if cp.ConsecutiveFailures >= minConsecutive {
			out := *cp
			result = append(result, &out)
		}
	}
	return result, nil
}

func (m *mockCheckpointRepo) get(source, company string) *models.ConnectorCheckpoint {
	key := source + "|" + company
	if cp, ok := m.checkpoints[key]; ok {
		return cp
	}
	cp := &models.ConnectorCheckpoint{ID: ulid.Make().String(), Source: source, Company: company}
	m.checkpoints[key] = cp
	return cp
}

// mockRetryRepo implements repository.RetryQueueRepository for testing.
type mockRetryRepo struct {
	mu    sync.RWMutex
	items map[string]*models.RetryQueueItem
}

func newMockRetryRepo() *mockRetryRepo {
	return &mockRetryRepo{items: make(map[string]*models.RetryQueueItem)}
}

func (m *mockRetryRepo) Enqueue(ctx context.Context, item *models.RetryQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == "" {
		item.ID = ulid.Make().String()
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockRetryRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.RetryQueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.RetryQueueItem
	for _, item := range m.items {
		if !item.NextRetryAt.After(now) {
			cp := *item
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NextRetryAt.Before(result[j].NextRetryAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRetryRepo) MarkFailed(ctx context.Context, id string, nextRetry time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.RetryCount++
		item.NextRetryAt = nextRetry
		item.LastError = lastError
	}
	return nil
}

func (m *mockRetryRepo) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *mockRetryRepo) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

// mockAnalyticsRepo implements repository.AnalyticsRepository with canned
// responses for testing.
type mockAnalyticsRepo struct {
	overview  *repository.AnalyticsOverview
	summary   *repository.WeeklySummary
	breakdown []*repository.SourceStats
	err       error
}

func (m *mockAnalyticsRepo) GetOverview(ctx context.Context, since time.Time) (*repository.AnalyticsOverview, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.overview, nil
}

func (m *mockAnalyticsRepo) GetSourceBreakdown(ctx context.Context, startDate, endDate string) ([]*repository.SourceStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.breakdown, nil
}

func (m *mockAnalyticsRepo) GetWeeklySummary(ctx context.Context, since time.Time) (*repository.WeeklySummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}
