package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

// UpdateSource yields updates after offset, blocking up to timeout.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Poller long-polls an UpdateSource and answers each message through Bot.
type Poller struct {
	Source UpdateSource
	Sender services.Sender
	Bot    *Bot
	// Timeout is the long-poll window handed to getUpdates.
	Timeout time.Duration
	// RetryDelay is the pause after a failed poll.
	RetryDelay time.Duration

	offset int64
}

// NewPoller returns a Poller with a five second retry delay.
func NewPoller(src UpdateSource, sender services.Sender, bot *Bot, timeout time.Duration) *Poller {
	return &Poller{Source: src, Sender: sender, Bot: bot, Timeout: timeout, RetryDelay: 5 * time.Second}
}

// Run polls until ctx is cancelled and then returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("timeout", p.Timeout).Msg("telegram poller started")
	defer log.Info().Msg("telegram poller stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.Source.GetUpdates(ctx, p.offset, p.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.RetryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			p.handle(ctx, u)
		}
	}
}

// handle answers a single update. Failures are logged; the update is still
// acknowledged so it is not redelivered forever.
func (p *Poller) handle(ctx context.Context, u Update) {
	msg := u.Incoming()
	if msg == nil {
		return
	}

	reply, err := p.Bot.HandleMessage(ctx, msg)
	if err != nil {
		log.Error().Err(err).
			Int64("update_id", u.UpdateID).
			Int64("chat_id", msg.Chat.ID).
			Msg("command failed")
		reply = faultReply
	}
	if reply == "" {
		return
	}

	if err := p.Sender.SendMessage(ctx, msg.Chat.ID, reply); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("reply failed")
	}
}
