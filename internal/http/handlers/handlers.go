// Package handlers holds the HTTP endpoints: the GitLab webhook receiver,
// the registration pages and the health probe.
//
// Handlers are transport-thin. They read the request, call a service and
// translate the outcome into a status code and body; no business rule lives
// here.
package handlers

import (
	"context"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

// Registrar creates and lists repository registrations.
type Registrar interface {
	Register(ctx context.Context, name, url, baseURL string) (services.RegisterResult, error)
	List(ctx context.Context) ([]domain.Repository, error)
}

// Dispatcher authenticates and handles webhook deliveries.
type Dispatcher interface {
	Authenticate(ctx context.Context, token string) error
	HandleDelivery(ctx context.Context, token, key string, body []byte) (services.WebhookResult, error)
}

// Options carries the settings handlers need from config.
type Options struct {
	// PublicBaseURL overrides the origin derived from the request when
	// building the webhook URL shown after registration.
	PublicBaseURL string
	// BotUsername is shown on the pages so users know whom to message.
	BotUsername string
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	reg  Registrar
	hook Dispatcher
	opts Options
}

// New constructs Handlers bound to the given services.
func New(reg Registrar, hook Dispatcher, opts Options) *Handlers {
	return &Handlers{reg: reg, hook: hook, opts: opts}
}
