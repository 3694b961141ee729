package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WebhookEvents counts webhook deliveries by object_kind and outcome
	// (sent, suppressed, unknown, bad_token, invalid).
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitlab_webhook_events_total",
			Help: "GitLab webhook deliveries by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// TelegramSends counts outbound sendMessage calls by result (ok, error).
	TelegramSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_messages_sent_total",
			Help: "Outbound Telegram messages by result.",
		},
		[]string{"result"},
	)

	// BotCommands counts handled bot commands by command and outcome.
	BotCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_bot_commands_total",
			Help: "Bot commands handled by command name and outcome.",
		},
		[]string{"command", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(WebhookEvents, TelegramSends, BotCommands)
}
