package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/jobsift/internal/models"
)

// resendBatchLimit caps how many missed alerts one resume pass sends.
const resendBatchLimit = 25

// ResendMissedAlerts re-scans for jobs that qualified for an alert but never
// got one, typically after a crash between commit and notify, and sends the
// alert now. Only top-priority include jobs qualify, matching the live
// pipeline's alert gate.
func (s *IngestService) ResendMissedAlerts(ctx context.Context) (int, error) {
	minScore := s.rules.Scoring.Bands.TopPriority.MinScore
	jobs, err := s.repos.Canonical.GetUnnotified(ctx, minScore, resendBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to load unnotified jobs: %w", err)
	}

	sent := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if job.ScoreBand != models.BandTopPriority || job.TitleBucket != models.TitleBucketInclude || job.IsBackfill {
			continue
		}

		analysis, err := s.repos.Analysis.GetByJobID(ctx, job.ID)
		if err != nil {
			s.logger.Error("failed to load analysis for resend", "job_id", job.ID, "error", err)
		}
		if err := s.notifier.SendJobAlert(ctx, job, analysis); err != nil {
			s.logger.Error("failed to resend alert", "job_id", job.ID, "error", err)
			continue
		}
		if err := s.repos.Canonical.MarkNotified(ctx, job.ID, time.Now().UTC()); err != nil {
			s.logger.Error("failed to mark job notified", "job_id", job.ID, "error", err)
		}
		sent++
	}

	s.logger.Info("missed alert resend finished", "candidates", len(jobs), "sent", sent)
	return sent, nil
}
