package handlers

import (
	"context"
	"time"

	"github.com/araddon/dateparse"
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

// ListJobsInput represents the job list query parameters.
type ListJobsInput struct {
	Status   string   `query:"status" enum:"active,applied,dismissed,expired,archived" required:"false" doc:"Filter by lifecycle status"`
	Band     string   `query:"band" enum:"top_priority,good_match,worth_a_look" required:"false" doc:"Filter by score band"`
	Bucket   string   `query:"bucket" enum:"include,maybe,reject" required:"false" doc:"Filter by title bucket"`
	Source   string   `query:"source" required:"false" doc:"Filter by source name"`
	MinScore int      `query:"min_score" minimum:"0" maximum:"100" required:"false" doc:"Minimum composite score"`
	Since    string   `query:"since" required:"false" doc:"Only jobs first seen on or after this date (YYYY-MM-DD or RFC3339)"`
	Tiers    []string `query:"tiers" required:"false" doc:"Filter by location tiers, e.g. L1,L2"`
	Search   string   `query:"q" required:"false" doc:"Substring match on title and company"`
	Limit    int      `query:"limit" default:"50" minimum:"1" maximum:"200"`
	Offset   int      `query:"offset" minimum:"0" required:"false"`
}

// ListJobsOutput represents the job list response.
type ListJobsOutput struct {
	Body struct {
		Jobs   []*models.CanonicalJob `json:"jobs"`
		Total  int                    `json:"total"`
		Limit  int                    `json:"limit"`
		Offset int                    `json:"offset"`
	}
}

// ListJobs returns canonical jobs ordered by score, filtered and paginated.
func (h *Handlers) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	params := repository.JobListParams{
		Status:   input.Status,
		Band:     input.Band,
		Bucket:   input.Bucket,
		Source:   input.Source,
		MinScore: input.MinScore,
		Tiers:    input.Tiers,
		Search:   input.Search,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}
	if input.Since != "" {
		since, err := dateparse.ParseIn(input.Since, time.UTC)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid since date: " + input.Since)
		}
		params.Since = since
	}

	jobs, total, err := h.repos.Canonical.List(ctx, params)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		return nil, huma.Error500InternalServerError("failed to list jobs")
	}
	if jobs == nil {
		jobs = []*models.CanonicalJob{}
	}

	out := &ListJobsOutput{}
	out.Body.Jobs = jobs
	out.Body.Total = total
	out.Body.Limit = input.Limit
	out.Body.Offset = input.Offset
	return out, nil
}

// GetJobInput represents the job detail request.
type GetJobInput struct {
	ID string `path:"id" doc:"Canonical job ID"`
}

// GetJobOutput represents the job detail response.
type GetJobOutput struct {
	Body struct {
		Job           *models.CanonicalJob   `json:"job"`
		Analysis      *models.FitAnalysis    `json:"analysis,omitempty"`
		AlternateURLs []*models.AlternateURL `json:"alternate_urls"`
	}
}

// GetJob returns one job with its fit analysis and alternate URLs.
func (h *Handlers) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	job, err := h.repos.Canonical.GetByID(ctx, input.ID)
	if err != nil {
		h.logger.Error("failed to load job", "id", input.ID, "error", err)
		return nil, huma.Error500InternalServerError("failed to load job")
	}
	if job == nil {
		return nil, huma.Error404NotFound("job not found")
	}

	analysis, err := h.repos.Analysis.GetByJobID(ctx, job.ID)
	if err != nil {
		h.logger.Error("failed to load analysis", "id", input.ID, "error", err)
		return nil, huma.Error500InternalServerError("failed to load analysis")
	}

	alts, err := h.repos.AlternateURL.ListForJob(ctx, job.ID, constants.AlternateURLListCap)
	if err != nil {
		h.logger.Error("failed to load alternate urls", "id", input.ID, "error", err)
		return nil, huma.Error500InternalServerError("failed to load alternate urls")
	}
	if alts == nil {
		alts = []*models.AlternateURL{}
	}

	out := &GetJobOutput{}
	out.Body.Job = job
	out.Body.Analysis = analysis
	out.Body.AlternateURLs = alts
	return out, nil
}

// TransitionInput represents a status transition request.
type TransitionInput struct {
	ID string `path:"id" doc:"Canonical job ID"`
}

// TransitionOutput represents a status transition response.
type TransitionOutput struct {
	Body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
}

// MarkApplied moves an active job to applied.
func (h *Handlers) MarkApplied(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
	return h.transition(ctx, input.ID, models.JobStatusApplied)
}

// MarkDismissed moves an active job to dismissed.
func (h *Handlers) MarkDismissed(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
	return h.transition(ctx, input.ID, models.JobStatusDismissed)
}

// transition applies a monotone status change: only active jobs move, and
// a repeated or conflicting request gets a 409 rather than a silent rewrite.
func (h *Handlers) transition(ctx context.Context, id string, to models.JobStatus) (*TransitionOutput, error) {
	job, err := h.repos.Canonical.GetByID(ctx, id)
	if err != nil {
		h.logger.Error("failed to load job for transition", "id", id, "error", err)
		return nil, huma.Error500InternalServerError("failed to load job")
	}
	if job == nil {
		return nil, huma.Error404NotFound("job not found")
	}
	if !models.CanTransition(job.Status, to) {
		return nil, huma.Error409Conflict("job is " + string(job.Status) + ", cannot mark " + string(to))
	}

	if err := h.repos.Canonical.UpdateStatus(ctx, id, to); err != nil {
		h.logger.Error("failed to update job status", "id", id, "error", err)
		return nil, huma.Error500InternalServerError("failed to update job status")
	}
	h.logger.Info("job status changed", "id", id, "from", job.Status, "to", to)

	out := &TransitionOutput{}
	out.Body.ID = id
	out.Body.Status = string(to)
	return out, nil
}
