package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/httpclient"
	"github.com/Checker-Finance/capitol-watch/internal/rate"
	"github.com/Checker-Finance/capitol-watch/pkg/model"
	"github.com/Checker-Finance/capitol-watch/pkg/utils"
)

// MaxListed is the number of trades itemized in a single message.
const MaxListed = 10

const (
	defaultTelegramAPI = "https://api.telegram.org"
	messageTimeLayout  = "02/01/2006 15:04"
	footerLink         = "🔗 capitoltrades.com/trades"
)

// ErrTelegramDisabled is returned when the bot token or chat id is missing.
var ErrTelegramDisabled = errors.New("telegram disabled: bot token and chat id are required")

// TelegramConfig configures the Telegram Bot API channel.
type TelegramConfig struct {
	APIURL         string
	BotToken       string
	ChatID         string
	DisablePreview bool
	Timeout        time.Duration
	Retries        int
}

// Telegram posts an HTML summary of new trades to one chat.
type Telegram struct {
	cfg    TelegramConfig
	exec   *httpclient.Executor
	logger *zap.Logger
	now    func() time.Time
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegram builds the channel. Missing credentials yield ErrTelegramDisabled.
func NewTelegram(cfg TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, ErrTelegramDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultTelegramAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	// Bot API allows about one message per second per chat.
	limits := rate.NewManager(rate.Config{RequestsPerSecond: 1, Burst: 1})
	exec := httpclient.New(logger, limits, &http.Client{Timeout: cfg.Timeout}, cfg.Retries, "telegram", telegramError)

	return &Telegram{cfg: cfg, exec: exec, logger: logger, now: time.Now}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, _ string, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	form := url.Values{}
	form.Set("chat_id", t.cfg.ChatID)
	form.Set("text", FormatMessage(trades, t.now()))
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", strconv.FormatBool(t.cfg.DisablePreview))

	endpoint := strings.TrimRight(t.cfg.APIURL, "/") + "/bot" + t.cfg.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp telegramResponse
	if err := t.exec.DoJSON(ctx, req, t.cfg.ChatID, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("telegram rejected message: %s", resp.Description)
	}

	t.logger.Info("telegram.sent",
		zap.Int("trades", len(trades)),
		zap.String("chat_id", utils.MaskToken(t.cfg.ChatID)))
	return nil
}

func telegramError(status int, body []byte) error {
	var resp telegramResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Description != "" {
		return fmt.Errorf("telegram error %d: %s", status, resp.Description)
	}
	return fmt.Errorf("telegram returned %d", status)
}

// FormatMessage renders the alert text in Telegram HTML. At most MaxListed
// trades are itemized; the rest are summarized in one line.
func FormatMessage(trades []model.Trade, at time.Time) string {
	var b strings.Builder

	plural := ""
	if len(trades) > 1 {
		plural = "S"
	}
	fmt.Fprintf(&b, "🔔 <b>%d NEW TRADE%s ALERT!</b>\n", len(trades), plural)
	fmt.Fprintf(&b, "🕐 %s\n\n", at.Format(messageTimeLayout))

	listed := trades
	if len(listed) > MaxListed {
		listed = listed[:MaxListed]
	}
	for i, t := range listed {
		fmt.Fprintf(&b, "<b>#%d. %s</b>\n", i+1, esc(t.Politician))
		fmt.Fprintf(&b, "🏛 %s | %s | %s\n", esc(t.Party), esc(t.Chamber), esc(t.State))
		fmt.Fprintf(&b, "🏢 %s", esc(t.TradedIssuer))
		if t.Ticker != model.NotAvailable {
			fmt.Fprintf(&b, " (%s)", esc(t.Ticker))
		}
		fmt.Fprintf(&b, "\n💰 %s | %s", esc(t.Type), esc(t.Size))
		if t.HasPrice() {
			fmt.Fprintf(&b, " @ %s", esc(t.Price))
		}
		fmt.Fprintf(&b, "\n📅 %s | ⏰ %s\n", esc(t.Traded), esc(t.FiledAfter))
		fmt.Fprintf(&b, "👤 %s\n\n", esc(t.Owner))
	}

	if len(trades) > MaxListed {
		fmt.Fprintf(&b, "... +%d more new trades\n\n", len(trades)-MaxListed)
	}
	b.WriteString(footerLink)
	return b.String()
}

func esc(s string) string {
	return html.EscapeString(s)
}
