// Package notify alerts an operator on kill-switch trips, failed or
// partial unwinds, and daily summaries. The Telegram-backed
// implementation is adapted directly from the reference engine's bot-API
// client; a NoOp implementation satisfies the same interface for tests
// and for when cfg.Telegram.Enabled is false, matching the reference
// engine's conditional wiring.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Notifier is the operator-alerting collaborator per §4.13.
type Notifier interface {
	NotifyKillSwitch(ctx context.Context, reason string, dailyPnL decimal.Decimal) error
	NotifyUnwindFailure(ctx context.Context, marketID string, residualExposure int64) error
	NotifyDailySummary(ctx context.Context, pnl decimal.Decimal, fills int, volume decimal.Decimal) error
}

// NoOp satisfies Notifier without making any network call.
type NoOp struct{}

func (NoOp) NotifyKillSwitch(ctx context.Context, reason string, dailyPnL decimal.Decimal) error {
	return nil
}
func (NoOp) NotifyUnwindFailure(ctx context.Context, marketID string, residualExposure int64) error {
	return nil
}
func (NoOp) NotifyDailySummary(ctx context.Context, pnl decimal.Decimal, fills int, volume decimal.Decimal) error {
	return nil
}

// Telegram sends alerts to a Telegram chat via the Bot API.
type Telegram struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	enabled    bool
	baseURL    string // overridable for testing; defaults to the Telegram API
}

// NewTelegram creates a Telegram notifier. Notifications are enabled
// only when both botToken and chatID are non-empty.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		enabled:    botToken != "" && chatID != "",
	}
}

func (n *Telegram) Enabled() bool { return n.enabled }

func (n *Telegram) Send(ctx context.Context, msg string) error {
	if !n.enabled {
		return nil
	}

	endpoint := n.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	}
	vals := url.Values{
		"chat_id":    {n.chatID},
		"text":       {msg},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.URL.RawQuery = vals.Encode()

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("notify: telegram %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}

func (n *Telegram) NotifyKillSwitch(ctx context.Context, reason string, dailyPnL decimal.Decimal) error {
	msg := fmt.Sprintf("<b>KILL SWITCH TRIPPED</b>\nReason: %s\nDaily PnL: %s", reason, dailyPnL)
	return n.Send(ctx, msg)
}

func (n *Telegram) NotifyUnwindFailure(ctx context.Context, marketID string, residualExposure int64) error {
	msg := fmt.Sprintf("<b>UNWIND FAILED</b>\nMarket: <code>%s</code>\nResidual exposure: %d contracts\nHuman reconciliation required.", marketID, residualExposure)
	return n.Send(ctx, msg)
}

func (n *Telegram) NotifyDailySummary(ctx context.Context, pnl decimal.Decimal, fills int, volume decimal.Decimal) error {
	msg := fmt.Sprintf("<b>Daily Summary</b>\nPnL: %s\nFills: %d\nVolume: %s", pnl, fills, volume)
	return n.Send(ctx, msg)
}
