package telegram

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

// ChatLister lists every chat holding at least one binding.
type ChatLister interface {
	ListBoundChatIDs(ctx context.Context, db *gorm.DB) ([]int64, error)
}

// Broadcast sends text once to every bound chat and returns how many sends
// succeeded. A failed send is logged and skipped. An empty text sends
// nothing.
func Broadcast(ctx context.Context, db *gorm.DB, chats ChatLister, sender services.Sender, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	ids, err := chats.ListBoundChatIDs(ctx, db)
	if err != nil {
		return 0, err
	}

	ok := 0
	for _, id := range ids {
		if err := sender.SendMessage(ctx, id, text); err != nil {
			log.Warn().Err(err).Int64("chat_id", id).Msg("broadcast send failed")
			continue
		}
		ok++
	}
	log.Info().Int("chats", len(ids)).Int("delivered", ok).Msg("broadcast finished")
	return ok, nil
}
