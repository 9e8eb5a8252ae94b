package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sink 定义消息广播接口。Delivery is best effort.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// TelegramSink 通过 Telegram Bot API 推送消息。
type TelegramSink struct {
	botToken  string
	chatID    string
	baseURL   string
	parseMode string
	client    *http.Client
	logger    zerolog.Logger
}

// TelegramOptions configure a TelegramSink.
type TelegramOptions struct {
	BotToken  string
	ChatID    string
	BaseURL   string
	ParseMode string
	Timeout   time.Duration
}

// NewTelegramSink 构造 Telegram 广播器。
func NewTelegramSink(opts TelegramOptions, logger zerolog.Logger) *TelegramSink {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramSink{
		botToken:  opts.BotToken,
		chatID:    opts.ChatID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		parseMode: opts.ParseMode,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "sink_telegram").Logger(),
	}
}

// Send 调用 sendMessage API 推送文本。
func (n *TelegramSink) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	}
	if n.parseMode != "" {
		payload["parse_mode"] = n.parseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
		}
	}

	n.logger.Info().Int("length", len(text)).Msg("消息已发送 (Telegram)")
	return nil
}

// LogSink writes messages to the logger. It stands in when no transport is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "sink_log").Logger()}
}

// Send logs the message.
func (s *LogSink) Send(ctx context.Context, text string) error {
	s.logger.Info().Str("message", text).Msg("broadcast")
	return nil
}

var (
	_ Sink = (*TelegramSink)(nil)
	_ Sink = (*LogSink)(nil)
)
