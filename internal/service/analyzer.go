package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/jobsift/internal/llm"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/preprocessor"
)

// fitSystemPrompt pins the model to a JSON-only contract matching
// llm.ParseFitResponse. Kept on one schema line so models with weak
// formatting discipline have less room to drift.
const fitSystemPrompt = `You are a job-fit analyst. Compare the candidate's resume against the job posting and respond with ONLY a single JSON object, no prose and no code fences, with exactly these fields:
{"fitScore": <integer 0-100>, "verdict": "strong" | "moderate" | "weak" | "stretch", "summary": "<2-3 sentence assessment>", "strengths": ["..."], "gaps": ["..."], "matchedSkills": ["..."], "missingSkills": ["..."], "bonusSkills": ["..."], "experienceLevelMatch": "junior" | "mid" | "senior" | "unknown", "domainRelevance": "<one line>", "recommendation": "<apply / tailor first / skip, with a short reason>", "tailoringTips": ["..."], "coverLetterPoints": ["..."]}
Score honestly: 80+ means the resume could be submitted as-is, below 40 means a fundamental mismatch.`

// AnalyzerService runs LLM resume-fit analysis for scored jobs. The resume
// blob is read once per process and cached; a nil client disables analysis
// entirely.
type AnalyzerService struct {
	client     *llm.Client
	resumePath string
	logger     *slog.Logger

	mu           sync.Mutex
	resumeLoaded bool
	resume       string
}

// NewAnalyzerService creates an analyzer. client may be nil when no LLM
// keys are configured; Analyze then returns nothing and the pipeline skips
// analysis.
func NewAnalyzerService(client *llm.Client, resumePath string, logger *slog.Logger) *AnalyzerService {
	return &AnalyzerService{
		client:     client,
		resumePath: resumePath,
		logger:     logger.With("component", "analyzer"),
	}
}

// Enabled reports whether analysis can run.
func (s *AnalyzerService) Enabled() bool {
	return s.client != nil
}

// Workers returns the analysis concurrency: one worker per pooled key, at
// least one.
func (s *AnalyzerService) Workers() int {
	if s.client == nil {
		return 1
	}
	if n := s.client.PoolSize(); n > 1 {
		return n
	}
	return 1
}

// Analyze runs one fit analysis. Returns (nil, nil) when analysis is
// disabled and (nil, err) on any failure; the caller proceeds without an
// analysis either way.
func (s *AnalyzerService) Analyze(ctx context.Context, job *models.CanonicalJob, descriptionHTML string) (*models.FitAnalysis, error) {
	if s.client == nil {
		return nil, nil
	}
	resume, err := s.loadResume()
	if err != nil {
		return nil, err
	}

	req := llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: fitSystemPrompt},
			{Role: "user", Content: buildFitPrompt(resume, job, preprocessor.CleanDescription(descriptionHTML))},
		},
	}

	res, err := s.client.StreamChat(ctx, req)
	if err != nil {
		s.logger.Error("fit analysis call failed", "job_id", job.ID, "error", err)
		return nil, err
	}

	fit, err := llm.ParseFitResponse(res.Content)
	if err != nil {
		s.logger.Error("fit analysis output unparseable", "job_id", job.ID, "error", err)
		return nil, err
	}

	fit.CanonicalJobID = job.ID
	fit.Provider = res.Provider
	fit.ModelUsed = res.Model
	fit.PromptTokens = res.Usage.PromptTokens
	fit.CompletionTokens = res.Usage.CompletionTokens
	fit.AnalyzedAt = time.Now().UTC()

	s.logger.Info("fit analysis completed",
		"job_id", job.ID,
		"fit_score", fit.FitScore,
		"verdict", fit.Verdict,
		"provider", fit.Provider,
	)
	return fit, nil
}

// AnalyzeItem pairs a job with the raw description its analysis reads.
type AnalyzeItem struct {
	Job             *models.CanonicalJob
	DescriptionHTML string
}

// AnalyzeBatch analyzes items with one worker per pooled key. Failed items
// are logged inside Analyze and simply absent from the returned map.
func (s *AnalyzerService) AnalyzeBatch(ctx context.Context, items []AnalyzeItem) map[string]*models.FitAnalysis {
	results := make(map[string]*models.FitAnalysis, len(items))
	if s.client == nil || len(items) == 0 {
		return results
	}

	workers := s.Workers()
	if workers > len(items) {
		workers = len(items)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	work := make(chan AnalyzeItem)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				fit, err := s.Analyze(ctx, item.Job, item.DescriptionHTML)
				if err != nil || fit == nil {
					continue
				}
				mu.Lock()
				results[item.Job.ID] = fit
				mu.Unlock()
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case work <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	return results
}

// loadResume reads and caches the resume blob. A failed read is not cached
// so a later call can pick up a fixed file.
func (s *AnalyzerService) loadResume() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resumeLoaded {
		return s.resume, nil
	}

	data, err := os.ReadFile(s.resumePath)
	if err != nil {
		return "", fmt.Errorf("failed to load resume from %s: %w", s.resumePath, err)
	}
	resume := strings.TrimSpace(string(data))
	if resume == "" {
		return "", fmt.Errorf("resume file %s is empty", s.resumePath)
	}

	s.resume = resume
	s.resumeLoaded = true
	s.logger.Info("resume loaded", "path", s.resumePath, "chars", len(resume))
	return s.resume, nil
}

// ResetResumeCache clears the cached resume so the next analysis reloads
// it from disk.
func (s *AnalyzerService) ResetResumeCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeLoaded = false
	s.resume = ""
}

func buildFitPrompt(resume string, job *models.CanonicalJob, description string) string {
	var b strings.Builder
	b.WriteString("=== RESUME ===\n")
	b.WriteString(resume)
	b.WriteString("\n\n=== JOB POSTING ===\n")
	fmt.Fprintf(&b, "Title: %s\n", job.Title)
	fmt.Fprintf(&b, "Company: %s\n", job.Company)
	if job.LocationRaw != "" {
		fmt.Fprintf(&b, "Location: %s\n", job.LocationRaw)
	}
	b.WriteString("\n")
	b.WriteString(description)
	return b.String()
}
