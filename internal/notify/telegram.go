package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/harrison/suiterun/internal/models"
)

// DefaultTelegramAPI is the public Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig holds resolved Telegram settings. Empty credentials mean unset.
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatID   string
	APIURL   string
}

// Telegram posts the summary text through the Bot API sendMessage method.
type Telegram struct {
	config     TelegramConfig
	httpClient *http.Client
}

// NewTelegram creates the channel. A nil client uses http.DefaultClient;
// the dispatcher bounds each send with its own timeout.
func NewTelegram(cfg TelegramConfig, client *http.Client) *Telegram {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultTelegramAPI
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Telegram{config: cfg, httpClient: client}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Ready() (bool, string) {
	switch {
	case !t.config.Enabled:
		return false, "disabled in configuration"
	case t.config.BotToken == "":
		return false, "bot token not set"
	case t.config.ChatID == "":
		return false, "chat id not set"
	}
	return true, ""
}

// Send posts the completion message. Any status other than 200 is an error.
func (t *Telegram) Send(ctx context.Context, summary models.RunSummary) error {
	return t.SendText(ctx, SummaryText(summary))
}

// SendText posts an arbitrary message.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	endpoint := strings.TrimRight(t.config.APIURL, "/") + "/bot" + t.config.BotToken + "/sendMessage"
	form := url.Values{}
	form.Set("chat_id", t.config.ChatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The url carries the token; report only the transport failure.
		if ue, ok := err.(*url.Error); ok {
			err = ue.Err
		}
		return fmt.Errorf("post sendMessage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
