package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/jobsift/internal/models"
)

// TelegramCallbackInput mirrors the subset of a Telegram update that the
// alert buttons produce. Other update kinds are acknowledged and ignored.
type TelegramCallbackInput struct {
	Body struct {
		UpdateID      int64 `json:"update_id,omitempty"`
		CallbackQuery *struct {
			ID   string `json:"id"`
			Data string `json:"data"`
		} `json:"callback_query,omitempty"`
	}
}

// TelegramCallbackOutput represents the callback acknowledgement.
type TelegramCallbackOutput struct {
	Body struct {
		OK     bool   `json:"ok"`
		Action string `json:"action,omitempty"`
	}
}

// TelegramCallback handles inline button presses from job alerts. Button
// payloads are "applied_<id>" and "skip_<id>"; anything else is answered
// without effect so the button stops spinning.
func (h *Handlers) TelegramCallback(ctx context.Context, input *TelegramCallbackInput) (*TelegramCallbackOutput, error) {
	out := &TelegramCallbackOutput{}
	out.Body.OK = true

	cb := input.Body.CallbackQuery
	if cb == nil {
		return out, nil
	}

	var target models.JobStatus
	var jobID, ack string
	switch {
	case strings.HasPrefix(cb.Data, "applied_"):
		target = models.JobStatusApplied
		jobID = strings.TrimPrefix(cb.Data, "applied_")
		ack = "Marked as applied"
	case strings.HasPrefix(cb.Data, "skip_"):
		target = models.JobStatusDismissed
		jobID = strings.TrimPrefix(cb.Data, "skip_")
		ack = "Dismissed"
	default:
		h.logger.Warn("unrecognized callback payload", "data", cb.Data)
		h.answerCallback(ctx, cb.ID, "Unknown action")
		return out, nil
	}

	job, err := h.repos.Canonical.GetByID(ctx, jobID)
	if err != nil {
		h.logger.Error("failed to load job for callback", "id", jobID, "error", err)
		return nil, huma.Error500InternalServerError("failed to load job")
	}
	if job == nil {
		h.answerCallback(ctx, cb.ID, "Job no longer exists")
		return out, nil
	}

	if !models.CanTransition(job.Status, target) {
		h.answerCallback(ctx, cb.ID, "Already "+string(job.Status))
		return out, nil
	}

	if err := h.repos.Canonical.UpdateStatus(ctx, jobID, target); err != nil {
		h.logger.Error("failed to update job status from callback", "id", jobID, "error", err)
		return nil, huma.Error500InternalServerError("failed to update job status")
	}
	h.logger.Info("job status changed via telegram", "id", jobID, "to", target)

	h.answerCallback(ctx, cb.ID, ack)
	out.Body.Action = string(target)
	return out, nil
}

// answerCallback acknowledges the button press. A failed acknowledgement
// only costs the spinner animation, so it is logged and dropped.
func (h *Handlers) answerCallback(ctx context.Context, callbackID, text string) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.AnswerCallback(ctx, callbackID, text); err != nil {
		h.logger.Warn("failed to answer callback query", "error", err)
	}
}
