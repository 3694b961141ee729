// Package services – WebhookService
//
// This file implements the webhook dispatcher: it authenticates an inbound
// GitLab delivery by its token, renders the payload through the gitlab
// formatter registry, and fans the message out to every chat bound to the
// token. A failed send is logged and counted; it never stops the others and
// never fails the webhook.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
	"github.com/tbourn/gitlab-telegram-bot/internal/gitlab"
	"github.com/tbourn/gitlab-telegram-bot/internal/observability"
	"github.com/tbourn/gitlab-telegram-bot/internal/repo"
)

// WebhookRepo defines the repository contract required by WebhookService.
type WebhookRepo interface {
	// GetRepository fetches a repository by token.
	GetRepository(ctx context.Context, db *gorm.DB, token string) (*domain.Repository, error)

	// FindBindingsByToken returns every chat bound to token.
	FindBindingsByToken(ctx context.Context, db *gorm.DB, token string) ([]domain.ChatBinding, error)

	// ClaimDelivery marks (token, key) processed, or returns repo.ErrDuplicate.
	ClaimDelivery(ctx context.Context, db *gorm.DB, token, key, kind string, ttl time.Duration) error

	// ReleaseDelivery forgets a claim.
	ReleaseDelivery(ctx context.Context, db *gorm.DB, token, key string) error
}

// Sender delivers a formatted message to one chat. Transport, retries and
// rate limits are the implementation's business.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// WebhookResult summarises one handled delivery.
type WebhookResult struct {
	Kind gitlab.Kind
	// Suppressed is true when the formatter produced no message.
	Suppressed bool
	// Recipients is the number of bound chats a send was attempted for.
	Recipients int
	// Failed is how many of those sends returned an error.
	Failed int
	// Duplicate is true when the delivery key was already processed; nothing
	// was sent.
	Duplicate bool
}

// WebhookService authenticates, formats and fans out webhook deliveries.
type WebhookService struct {
	// DB is the GORM handle used for lookups.
	DB *gorm.DB
	// Repo is the store used by this service.
	Repo WebhookRepo
	// Formatter maps object_kind to a message.
	Formatter *gitlab.Registry
	// Sender delivers messages to chats.
	Sender Sender
	// DedupeTTL is how long a delivery key is remembered. Zero disables
	// deduplication.
	DedupeTTL time.Duration
}

// NewWebhookService constructs a WebhookService with the default formatter.
func NewWebhookService(db *gorm.DB, r WebhookRepo, sender Sender) *WebhookService {
	return &WebhookService{
		DB:        db,
		Repo:      r,
		Formatter: gitlab.DefaultRegistry(),
		Sender:    sender,
	}
}

var tracer = otel.Tracer("github.com/tbourn/gitlab-telegram-bot/internal/services")

// Authenticate returns ErrBadToken when token resolves to no repository.
// Callers run it before reading the request body.
func (s *WebhookService) Authenticate(ctx context.Context, token string) error {
	if _, err := s.Repo.GetRepository(ctx, s.DB, token); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			observability.WebhookEvents.WithLabelValues("", "bad_token").Inc()
			return ErrBadToken
		}
		return err
	}
	return nil
}

// Handle processes one webhook delivery without deduplication.
func (s *WebhookService) Handle(ctx context.Context, token string, body []byte) (WebhookResult, error) {
	return s.HandleDelivery(ctx, token, "", body)
}

// HandleDelivery processes one webhook delivery. A non-empty key (GitLab's
// Idempotency-Key or X-Gitlab-Event-UUID) that was already handled for this
// token within DedupeTTL short-circuits with Duplicate set.
//
// Errors:
//   - ErrBadToken when token resolves to no repository (checked before the
//     body is looked at, so no sends happen).
//   - ErrInvalidPayload when body cannot be parsed.
//   - raw storage errors otherwise.
//
// Unknown object kinds are not errors: the error marker message is fanned
// out instead, so GitLab does not keep retrying the delivery.
func (s *WebhookService) HandleDelivery(ctx context.Context, token, key string, body []byte) (WebhookResult, error) {
	ctx, span := tracer.Start(ctx, "webhook.handle")
	defer span.End()

	if err := s.Authenticate(ctx, token); err != nil {
		if errors.Is(err, ErrBadToken) {
			span.SetStatus(codes.Error, "bad token")
		} else {
			span.RecordError(err)
		}
		return WebhookResult{}, err
	}

	res, err := s.Formatter.Format(body)
	span.SetAttributes(attribute.String("gitlab.object_kind", string(res.Kind)))
	if err != nil {
		observability.WebhookEvents.WithLabelValues(string(res.Kind), "invalid").Inc()
		span.RecordError(err)
		return WebhookResult{Kind: res.Kind}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	out := WebhookResult{Kind: res.Kind}
	if key != "" && s.DedupeTTL > 0 {
		span.SetAttributes(attribute.String("gitlab.delivery_key", key))
		err := s.Repo.ClaimDelivery(ctx, s.DB, token, key, string(res.Kind), s.DedupeTTL)
		if errors.Is(err, repo.ErrDuplicate) {
			out.Duplicate = true
			observability.WebhookEvents.WithLabelValues(string(res.Kind), "duplicate").Inc()
			return out, nil
		}
		if err != nil {
			span.RecordError(err)
			return out, err
		}
	}

	if !res.Send {
		out.Suppressed = true
		observability.WebhookEvents.WithLabelValues(string(res.Kind), "suppressed").Inc()
		return out, nil
	}
	if !res.Known {
		log.Warn().Str("object_kind", string(res.Kind)).Msg("unknown webhook kind")
	}

	bindings, err := s.Repo.FindBindingsByToken(ctx, s.DB, token)
	if err != nil {
		span.RecordError(err)
		if key != "" && s.DedupeTTL > 0 {
			// nothing was sent; let GitLab's retry through
			if rerr := s.Repo.ReleaseDelivery(ctx, s.DB, token, key); rerr != nil {
				log.Warn().Err(rerr).Msg("release delivery claim")
			}
		}
		return out, err
	}

	out.Recipients = len(bindings)
	for _, b := range bindings {
		if err := s.Sender.SendMessage(ctx, b.ChatID, res.Message); err != nil {
			out.Failed++
			log.Warn().Err(err).
				Int64("chat_id", b.ChatID).
				Str("object_kind", string(res.Kind)).
				Msg("send failed")
		}
	}
	span.SetAttributes(
		attribute.Int("fanout.recipients", out.Recipients),
		attribute.Int("fanout.failed", out.Failed),
	)

	outcome := "sent"
	if !res.Known {
		outcome = "unknown"
	}
	observability.WebhookEvents.WithLabelValues(string(res.Kind), outcome).Inc()
	return out, nil
}
