package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"postcast/internal/config"
	"postcast/internal/logging"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second
	userAgent      = "postcast/0.1.0"
)

// Service is the notification surface exposed to the pipeline. Every method
// reports whether the message was delivered; failures are logged and
// swallowed, never escalated.
type Service interface {
	// VideoProcessed announces a published episode with its watch link.
	VideoProcessed(ctx context.Context, videoID, title string, chapterCount int) bool
	// PipelineFailed reports which step broke a video's run.
	PipelineFailed(ctx context.Context, videoID, title, step string, err error) bool
	// Error reports a failure outside any single episode's run, such as a
	// scan that could not start. The scope names what was being attempted.
	Error(ctx context.Context, err error, scope string) bool
	// Test sends a plain configuration check message.
	Test(ctx context.Context) bool
}

// Option adjusts the Telegram transport, mainly for tests.
type Option func(*telegramService)

// WithBaseURL points the service at an alternate API host.
func WithBaseURL(baseURL string) Option {
	return func(s *telegramService) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			s.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *telegramService) {
		if client != nil {
			s.client = client
		}
	}
}

// New builds a notification service backed by Telegram when a bot token and
// chat id are configured, and a no-op service otherwise.
func New(cfg config.Notifications, logger *slog.Logger, opts ...Option) Service {
	log := logging.NewComponentLogger(logger, "notifications")

	token := strings.TrimSpace(cfg.TelegramBotToken)
	chatID := strings.TrimSpace(cfg.TelegramChatID)
	if !cfg.Enabled || token == "" || chatID == "" {
		log.Debug("notifications disabled", logging.Bool("configured", token != "" && chatID != ""))
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	svc := &telegramService{
		baseURL: defaultBaseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type telegramService struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	logger  *slog.Logger
}

func (s *telegramService) VideoProcessed(ctx context.Context, videoID, title string, chapterCount int) bool {
	var b strings.Builder
	b.WriteString("<b>Episodio procesado</b>\n\n")
	b.WriteString(html.EscapeString(strings.TrimSpace(title)))
	if chapterCount > 0 {
		fmt.Fprintf(&b, "\n📑 %d capítulos", chapterCount)
	}
	fmt.Fprintf(&b, "\n\n%s", watchLink(videoID))
	return s.send(ctx, b.String())
}

func (s *telegramService) PipelineFailed(ctx context.Context, videoID, title, step string, err error) bool {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}

	var b strings.Builder
	b.WriteString("<b>Error procesando episodio</b>\n\n")
	b.WriteString(html.EscapeString(strings.TrimSpace(title)))
	fmt.Fprintf(&b, "\n\n<i>Paso %s: %s</i>", html.EscapeString(step), html.EscapeString(detail))
	fmt.Fprintf(&b, "\n\n%s", watchLink(videoID))
	return s.send(ctx, b.String())
}

func (s *telegramService) Error(ctx context.Context, err error, scope string) bool {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}

	var b strings.Builder
	b.WriteString("<b>Error:</b>\n")
	b.WriteString(html.EscapeString(detail))
	if scope = strings.TrimSpace(scope); scope != "" {
		fmt.Fprintf(&b, "\n\n<i>Contexto: %s</i>", html.EscapeString(scope))
	}
	return s.send(ctx, b.String())
}

func (s *telegramService) Test(ctx context.Context) bool {
	return s.send(ctx, "<b>Test</b>\n\nNotificaciones de postcast configuradas correctamente.")
}

// sendMessageRequest is the Telegram Bot API sendMessage payload.
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (s *telegramService) send(ctx context.Context, text string) bool {
	if s == nil || s.client == nil {
		return false
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    s.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		s.warn("encode telegram payload", err)
		return false
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		s.warn("build telegram request", err)
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.warn("send telegram notification", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.warn("send telegram notification",
			fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Debug("notification delivered", logging.Int("length", len(text)))
	return true
}

func (s *telegramService) warn(op string, err error) {
	logging.WarnWithContext(s.logger, op+" failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check telegram_bot_token and telegram_chat_id"),
		logging.String(logging.FieldImpact, "operator was not notified"))
}

func watchLink(videoID string) string {
	return "https://youtube.com/watch?v=" + strings.TrimSpace(videoID)
}

type noopService struct{}

func (noopService) VideoProcessed(context.Context, string, string, int) bool           { return false }
func (noopService) PipelineFailed(context.Context, string, string, string, error) bool { return false }
func (noopService) Error(context.Context, error, string) bool                          { return false }
func (noopService) Test(context.Context) bool                                          { return false }
