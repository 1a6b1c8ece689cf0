package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/jobsift/internal/repository"
)

// SourceBreakdownInput represents the per-source analytics query.
type SourceBreakdownInput struct {
	Days int `query:"days" default:"7" minimum:"1" maximum:"90" doc:"Window size in days, ending today"`
}

// SourceBreakdownOutput represents the per-source analytics response.
type SourceBreakdownOutput struct {
	Body struct {
		StartDate string                    `json:"start_date"`
		EndDate   string                    `json:"end_date"`
		Sources   []*repository.SourceStats `json:"sources"`
	}
}

// SourceBreakdown returns per-source yield and health numbers over a window.
func (h *Handlers) SourceBreakdown(ctx context.Context, input *SourceBreakdownInput) (*SourceBreakdownOutput, error) {
	now := time.Now().In(h.cfg.Location())
	end := now.Format("2006-01-02")
	start := now.AddDate(0, 0, -(input.Days - 1)).Format("2006-01-02")

	stats, err := h.repos.Analytics.GetSourceBreakdown(ctx, start, end)
	if err != nil {
		h.logger.Error("failed to load source breakdown", "error", err)
		return nil, huma.Error500InternalServerError("failed to load source breakdown")
	}
	if stats == nil {
		stats = []*repository.SourceStats{}
	}

	out := &SourceBreakdownOutput{}
	out.Body.StartDate = start
	out.Body.EndDate = end
	out.Body.Sources = stats
	return out, nil
}

// WeeklySummaryOutput represents the weekly summary response.
type WeeklySummaryOutput struct {
	Body struct {
		Since   time.Time                 `json:"since"`
		Summary *repository.WeeklySummary `json:"summary"`
	}
}

// WeeklySummary returns pipeline and funnel numbers for the trailing week.
func (h *Handlers) WeeklySummary(ctx context.Context, input *struct{}) (*WeeklySummaryOutput, error) {
	since := time.Now().AddDate(0, 0, -7)
	summary, err := h.repos.Analytics.GetWeeklySummary(ctx, since)
	if err != nil {
		h.logger.Error("failed to load weekly summary", "error", err)
		return nil, huma.Error500InternalServerError("failed to load weekly summary")
	}

	out := &WeeklySummaryOutput{}
	out.Body.Since = since
	out.Body.Summary = summary
	return out, nil
}
