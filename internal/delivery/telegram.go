package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

// TelegramConfig configures the Telegram delivery collaborator.
type TelegramConfig struct {
	Token string
	// ChatID is the destination channel/group/user id.
	ChatID int64
	// RatePerSec caps outgoing sends (Bot API throttles around 30 msg/s
	// globally; per-chat limits are far lower).
	RatePerSec int
}

// Telegram sends announcements as messages to a fixed chat. No retry: a
// failed send is reported back to the engine and surfaces on the status
// stream.
type Telegram struct {
	bot     *tele.Bot
	chat    *tele.Chat
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Telegram{
		bot:     b,
		chat:    &tele.Chat{ID: cfg.ChatID},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

func (t *Telegram) Deliver(ctx context.Context, a announce.Announcement) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	_, err := t.bot.Send(t.chat, a.Content)
	if err != nil {
		t.log.Warn("telegram send failed", logx.String("id", a.ID), logx.Err(err))
		return err
	}
	t.log.Debug("telegram sent", logx.String("id", a.ID), logx.Duration("took", time.Since(start)))
	return nil
}
