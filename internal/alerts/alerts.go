// Package alerts pushes operational anomalies (lost expiry timers,
// store outages) to a Telegram channel so someone is paged when the
// realtime core starts self-healing.
package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akontos/sirena/internal/config"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

type Alerter struct {
	bot    *telego.Bot
	chatID int64
}

// New returns nil without error when no token is configured; callers
// treat a nil *Alerter as "alerts disabled".
func New(cfg config.AlertsConfig) (*Alerter, error) {
	if cfg.TelegramToken == "" {
		return nil, nil
	}

	bot, err := telego.NewBot(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Alerter{bot: bot, chatID: cfg.ChatID}, nil
}

// Notify sends the text best-effort. Alert delivery failures are only
// logged; they must never affect the dispatch path.
func (a *Alerter) Notify(text string) {
	if a == nil || a.chatID == 0 {
		return
	}

	msg := tu.Message(tu.ID(a.chatID), "[sirena] "+text)
	if _, err := a.bot.SendMessage(context.Background(), msg); err != nil {
		slog.Error("alert delivery failed", "error", err)
	}
}
