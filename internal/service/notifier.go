package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/jobsift/internal/config"
	"github.com/jmylchreest/jobsift/internal/constants"
	"github.com/jmylchreest/jobsift/internal/models"
	"github.com/jmylchreest/jobsift/internal/repository"
)

const telegramAPIBase = "https://api.telegram.org"

const parseModeMarkdownV2 = "MarkdownV2"

// markdownEscaper escapes every MarkdownV2 special character.
var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// EscapeMarkdown escapes text for safe interpolation into a MarkdownV2
// message.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// TelegramError is a non-OK Bot API response.
type TelegramError struct {
	StatusCode  int
	Description string
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram returned status %d: %s", e.StatusCode, e.Description)
}

// Transient reports whether the send is worth re-queueing.
func (e *TelegramError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID                string          `json:"chat_id"`
	Text                  string          `json:"text"`
	ParseMode             string          `json:"parse_mode,omitempty"`
	ReplyMarkup           *inlineKeyboard `json:"reply_markup,omitempty"`
	DisableWebPagePreview bool            `json:"disable_web_page_preview,omitempty"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notifier sends Telegram messages through two bots: job alerts and
// digests go to the jobs bot, system alerts to the logs bot. An
// unconfigured bot skips its sends; transient failures are queued for the
// retry worker.
type Notifier struct {
	cfg       *config.Config
	retryRepo repository.RetryQueueRepository
	client    *http.Client
	logger    *slog.Logger
	apiBase   string
}

// NewNotifier creates a notifier.
func NewNotifier(cfg *config.Config, retryRepo repository.RetryQueueRepository, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:       cfg,
		retryRepo: retryRepo,
		client:    &http.Client{Timeout: constants.NotifySendTimeout},
		logger:    logger.With("component", "notifier"),
		apiBase:   telegramAPIBase,
	}
}

// SendJobAlert sends a formatted alert for one job through the jobs bot,
// with inline applied/skip buttons. analysis may be nil. A nil return means
// the alert was delivered, queued for retry, or intentionally skipped.
func (n *Notifier) SendJobAlert(ctx context.Context, job *models.CanonicalJob, analysis *models.FitAnalysis) error {
	text := formatJobAlert(job, analysis)
	markup := &inlineKeyboard{
		InlineKeyboard: [][]inlineButton{
			{
				{Text: "Applied ✓", CallbackData: "applied_" + job.ID},
				{Text: "Skip", CallbackData: "skip_" + job.ID},
			},
			{
				{Text: "Open Posting", URL: job.URL},
			},
		},
	}
	return n.send(ctx, models.BotJobs, text, parseModeMarkdownV2, markup)
}

// SendDigest sends pre-rendered MarkdownV2 digest text through the jobs bot.
func (n *Notifier) SendDigest(ctx context.Context, text string) error {
	return n.send(ctx, models.BotJobs, text, parseModeMarkdownV2, nil)
}

// SendSystemAlert sends plain text through the logs bot.
func (n *Notifier) SendSystemAlert(ctx context.Context, text string) error {
	return n.send(ctx, models.BotLogs, text, "", nil)
}

// AnswerCallback acknowledges an inline button press. Callback answers are
// ephemeral, so failures are never queued.
func (n *Notifier) AnswerCallback(ctx context.Context, callbackQueryID, text string) error {
	token, _ := n.credentials(models.BotJobs)
	if token == "" {
		n.logger.Info("jobs bot not configured, skipping callback answer")
		return nil
	}
	if n.cfg.DryRun {
		n.logger.Info("dry run: would answer callback", "callback_id", callbackQueryID)
		return nil
	}
	return n.post(ctx, token, "answerCallbackQuery", answerCallbackRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
}

// ResendQueued re-sends a previously queued notification verbatim. The
// retry worker owns failure bookkeeping, so errors are returned as-is and
// nothing is re-queued here.
func (n *Notifier) ResendQueued(ctx context.Context, item *models.RetryQueueItem) error {
	token, _ := n.credentials(item.Bot)
	if token == "" {
		return fmt.Errorf("bot %s is not configured", item.Bot)
	}

	var markup *inlineKeyboard
	if item.ButtonsJSON != "" {
		markup = &inlineKeyboard{}
		if err := json.Unmarshal([]byte(item.ButtonsJSON), markup); err != nil {
			return fmt.Errorf("failed to decode queued buttons: %w", err)
		}
	}
	return n.post(ctx, token, "sendMessage", sendMessageRequest{
		ChatID:                item.ChatID,
		Text:                  item.Message,
		ParseMode:             item.ParseMode,
		ReplyMarkup:           markup,
		DisableWebPagePreview: true,
	})
}

func (n *Notifier) send(ctx context.Context, bot models.BotKind, text, parseMode string, markup *inlineKeyboard) error {
	token, chatID := n.credentials(bot)
	if token == "" || chatID == "" {
		n.logger.Info("bot not configured, skipping send", "bot", bot)
		return nil
	}
	if n.cfg.DryRun {
		n.logger.Info("dry run: would send telegram message", "bot", bot, "chars", len(text))
		return nil
	}

	err := n.post(ctx, token, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseMode,
		ReplyMarkup:           markup,
		DisableWebPagePreview: true,
	})
	if err == nil {
		n.logger.Info("telegram message sent", "bot", bot)
		return nil
	}

	if isTransientSend(err) {
		n.enqueueRetry(ctx, bot, chatID, text, parseMode, markup, err)
		return nil
	}
	n.logger.Error("telegram send failed permanently", "bot", bot, "error", err)
	return err
}

func (n *Notifier) post(ctx context.Context, token, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", n.apiBase, token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var tg telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tg); err != nil {
		return &TelegramError{StatusCode: resp.StatusCode, Description: "unreadable response body"}
	}
	if !tg.OK {
		return &TelegramError{StatusCode: resp.StatusCode, Description: tg.Description}
	}
	return nil
}

// isTransientSend classifies a send failure: network errors and
// 429/5xx responses are retryable, other API rejections are not.
func isTransientSend(err error) bool {
	var te *TelegramError
	if errors.As(err, &te) {
		return te.Transient()
	}
	return true
}

func (n *Notifier) enqueueRetry(ctx context.Context, bot models.BotKind, chatID, text, parseMode string, markup *inlineKeyboard, cause error) {
	if n.retryRepo == nil {
		return
	}
	item := &models.RetryQueueItem{
		Bot:         bot,
		ChatID:      chatID,
		Message:     text,
		ParseMode:   parseMode,
		NextRetryAt: time.Now().UTC().Add(constants.RetryQueueBackoff(0)),
		LastError:   cause.Error(),
		CreatedAt:   time.Now().UTC(),
	}
	if markup != nil {
		if data, err := json.Marshal(markup); err == nil {
			item.ButtonsJSON = string(data)
		}
	}
	if err := n.retryRepo.Enqueue(ctx, item); err != nil {
		n.logger.Error("failed to queue notification for retry", "bot", bot, "error", err)
		return
	}
	n.logger.Warn("notification queued for retry", "bot", bot, "error", cause)
}

func (n *Notifier) credentials(bot models.BotKind) (token, chatID string) {
	if bot == models.BotLogs {
		return n.cfg.LogsBotToken, n.cfg.LogsChatID
	}
	return n.cfg.JobsBotToken, n.cfg.JobsChatID
}

// formatJobAlert renders the MarkdownV2 alert body. Literal template
// characters are limited to safe ones; all interpolated values go through
// EscapeMarkdown.
func formatJobAlert(job *models.CanonicalJob, analysis *models.FitAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", EscapeMarkdown(job.Title))
	fmt.Fprintf(&b, "%s %s\n", EscapeMarkdown(job.Company), EscapeMarkdown("("+locationLine(job)+")"))
	fmt.Fprintf(&b, "Score *%d* %s %s\n", job.Score, EscapeMarkdown(bandLabel(job.ScoreBand)), EscapeMarkdown(string(job.WorkMode)))
	if job.PostedAt != nil {
		fmt.Fprintf(&b, "Posted %s\n", EscapeMarkdown(job.PostedAt.Format("Jan 2")))
	}
	if job.IsReposted {
		repost := "repost"
		if job.OriginalPostDate != nil {
			repost = "repost, first seen " + job.OriginalPostDate.Format("Jan 2")
		}
		fmt.Fprintf(&b, "%s\n", EscapeMarkdown("("+repost+")"))
	}
	if analysis != nil {
		fmt.Fprintf(&b, "\nFit *%d*/100 %s\n", analysis.FitScore, EscapeMarkdown(string(analysis.Verdict)))
		if analysis.Summary != "" {
			fmt.Fprintf(&b, "%s\n", EscapeMarkdown(analysis.Summary))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func locationLine(job *models.CanonicalJob) string {
	switch {
	case job.City != "" && job.Province != "":
		return job.City + ", " + job.Province
	case job.City != "":
		return job.City
	case job.LocationRaw != "":
		return job.LocationRaw
	default:
		return "location unknown"
	}
}

func bandLabel(band models.ScoreBand) string {
	switch band {
	case models.BandTopPriority:
		return "[top priority]"
	case models.BandGoodMatch:
		return "[good match]"
	default:
		return "[worth a look]"
	}
}
