package handlers

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHandlers(repos *repository.Repositories, notifier CallbackAnswerer) *Handlers {
	return New(nil, &config.Config{}, repos, notifier, nil, testLogger())
}

type fakeCanonicalRepo struct {
	jobs       map[string]*models.CanonicalJob
	listJobs   []*models.CanonicalJob
	listTotal  int
	lastParams repository.JobListParams
	statusSets map[string]models.JobStatus
}

func newFakeCanonicalRepo(jobs ...*models.CanonicalJob) *fakeCanonicalRepo {
	byID := make(map[string]*models.CanonicalJob, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}
	return &fakeCanonicalRepo{jobs: byID, statusSets: map[string]models.JobStatus{}}
}

func (f *fakeCanonicalRepo) Create(ctx context.Context, job *models.CanonicalJob) error { return nil }
func (f *fakeCanonicalRepo) GetByID(ctx context.Context, id string) (*models.CanonicalJob, error) {
	return f.jobs[id], nil
}
func (f *fakeCanonicalRepo) GetByURLHash(ctx context.Context, hash string) (*models.CanonicalJob, error) {
	return nil, nil
}
func (f *fakeCanonicalRepo) GetByFingerprint(ctx context.Context, fingerprint string) ([]*models.CanonicalJob, error) {
	return nil, nil
}
func (f *fakeCanonicalRepo) GetActiveSince(ctx context.Context, since time.Time) ([]*models.CanonicalJob, error) {
	return nil, nil
}
func (f *fakeCanonicalRepo) MarkSeen(ctx context.Context, id string, seenAt time.Time) error {
	return nil
}
func (f *fakeCanonicalRepo) UpdateScore(ctx context.Context, job *models.CanonicalJob) error {
	return nil
}
func (f *fakeCanonicalRepo) UpdateStatus(ctx context.Context, id string, status models.JobStatus) error {
	f.statusSets[id] = status
	return nil
}
func (f *fakeCanonicalRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	return nil
}
func (f *fakeCanonicalRepo) GetUnnotified(ctx context.Context, minScore, limit int) ([]*models.CanonicalJob, error) {
	return nil, nil
}
func (f *fakeCanonicalRepo) GetTopSince(ctx context.Context, since time.Time, minScore, limit int) ([]*models.CanonicalJob, error) {
	return nil, nil
}
func (f *fakeCanonicalRepo) List(ctx context.Context, params repository.JobListParams) ([]*models.CanonicalJob, int, error) {
	f.lastParams = params
	return f.listJobs, f.listTotal, nil
}
func (f *fakeCanonicalRepo) ExpireOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeCanonicalRepo) ArchiveAndPurge(ctx context.Context, archiveBefore, purgeBefore time.Time) (int64, int64, error) {
	return 0, 0, nil
}

type fakeAnalysisRepo struct {
	byJobID map[string]*models.FitAnalysis
}

func (f *fakeAnalysisRepo) Upsert(ctx context.Context, analysis *models.FitAnalysis) error {
	return nil
}
func (f *fakeAnalysisRepo) GetByJobID(ctx context.Context, jobID string) (*models.FitAnalysis, error) {
	return f.byJobID[jobID], nil
}
func (f *fakeAnalysisRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

type fakeAlternateURLRepo struct {
	byJobID map[string][]*models.AlternateURL
}

func (f *fakeAlternateURLRepo) Create(ctx context.Context, alt *models.AlternateURL) error {
	return nil
}
func (f *fakeAlternateURLRepo) ListForJob(ctx context.Context, jobID string, limit int) ([]*models.AlternateURL, error) {
	alts := f.byJobID[jobID]
	if len(alts) > limit {
		alts = alts[:limit]
	}
	return alts, nil
}

type fakeAnswerer struct {
	answered []string
	texts    []string
}

func (f *fakeAnswerer) AnswerCallback(ctx context.Context, callbackQueryID, text string) error {
	f.answered = append(f.answered, callbackQueryID)
	f.texts = append(f.texts, text)
	return nil
}
