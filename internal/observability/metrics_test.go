package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	WebhookEvents.WithLabelValues("push", "sent").Inc()
	TelegramSends.WithLabelValues("ok").Inc()
	BotCommands.WithLabelValues("ping", "ok").Inc()

	for _, name := range []string{
		"gitlab_webhook_events_total",
		"telegram_messages_sent_total",
		"telegram_bot_commands_total",
	} {
		n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, name)
		if err != nil {
			t.Fatalf("gather %s: %v", name, err)
		}
		if n == 0 {
			t.Fatalf("%s not registered with the default registry", name)
		}
	}
}

func TestWebhookEvents_Labels(t *testing.T) {
	c := WebhookEvents.WithLabelValues("tag_push", "suppressed")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Fatalf("counter = %v; want %v", got, before+1)
	}
}
