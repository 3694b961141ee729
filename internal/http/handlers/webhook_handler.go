package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/gitlab-telegram-bot/internal/http/middleware"
	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

// WebhookStatus is the body of every webhook response.
type WebhookStatus struct {
	Status string `json:"status" example:"ok"`
}

// Status strings GitLab sees in webhook responses.
const (
	statusOK             = "ok"
	statusBadToken       = "bad token"
	statusInvalidRequest = "invalid request"
	statusInternal       = "internal error"
)

// Webhook godoc
// @ID          gitlabWebhook
// @Summary     Receive a GitLab webhook
// @Description Authenticates the delivery by X-Gitlab-Token, formats the event and relays it to every bound Telegram chat. Answers 200 whatever happens to individual sends, including for unknown event kinds.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       X-Gitlab-Token       header  string  true   "Repository token from the registration page"
// @Param       X-Gitlab-Event-UUID  header  string  false  "Delivery id used to drop retries"
// @Param       Idempotency-Key      header  string  false  "Delivery id used to drop retries (GitLab 17.4+)"
// @Param       body                 body    object  true   "GitLab webhook payload"
//
// @Success     200  {object}  handlers.WebhookStatus  "ok"
// @Failure     400  {object}  handlers.WebhookStatus  "invalid request"
// @Failure     401  {object}  handlers.WebhookStatus  "bad token"
// @Failure     500  {object}  handlers.WebhookStatus  "internal error"
// @Router      /gitlab/ [post]
func (h *Handlers) Webhook(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusBadRequest, WebhookStatus{statusInvalidRequest})
		return
	}

	// the token decides 401 whatever the body holds
	token := c.GetHeader(middleware.HeaderGitlabToken)
	if err := h.hook.Authenticate(c.Request.Context(), token); err != nil {
		h.webhookError(c, err)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("webhook body unreadable")
		c.JSON(http.StatusBadRequest, WebhookStatus{statusInvalidRequest})
		return
	}

	key, _ := middleware.GetDeliveryKey(c)
	res, err := h.hook.HandleDelivery(c.Request.Context(), token, key, body)
	if err != nil {
		h.webhookError(c, err)
		return
	}

	middleware.LoggerFrom(c).Debug().
		Str("kind", string(res.Kind)).
		Int("recipients", res.Recipients).
		Int("failed", res.Failed).
		Bool("suppressed", res.Suppressed).
		Bool("duplicate", res.Duplicate).
		Msg("webhook handled")
	c.JSON(http.StatusOK, WebhookStatus{statusOK})
}

// webhookError maps a dispatcher error onto the webhook status body.
func (h *Handlers) webhookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBadToken):
		c.JSON(http.StatusUnauthorized, WebhookStatus{statusBadToken})
	case errors.Is(err, services.ErrInvalidPayload):
		middleware.LoggerFrom(c).Warn().Err(err).Msg("webhook payload rejected")
		c.JSON(http.StatusBadRequest, WebhookStatus{statusInvalidRequest})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, WebhookStatus{statusInternal})
	}
}
