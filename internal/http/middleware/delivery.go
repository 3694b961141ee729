package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
)

// Headers GitLab sets on every webhook delivery. Retries of the same
// delivery repeat the values; Idempotency-Key is sent by GitLab 17.4+.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderEventUUID      = "X-Gitlab-Event-UUID"
)

const ctxKeyDelivery = "delivery.key"

// DeliveryKeyOptions configures key validation for DeliveryKey.
type DeliveryKeyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 128.
	MaxLen int
	// Pattern restricts allowed characters. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// DeliveryKey stashes the delivery identifier of a webhook request so the
// handler can deduplicate retries. Idempotency-Key wins over
// X-Gitlab-Event-UUID.
//
// A malformed key is dropped and the request proceeds without one; it never
// turns into a 4xx.
func DeliveryKey(opts DeliveryKeyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 128
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			key = c.GetHeader(HeaderEventUUID)
		}
		if key != "" {
			if len(key) <= maxLen && pat.MatchString(key) {
				c.Set(ctxKeyDelivery, key)
			} else {
				LoggerFrom(c).Debug().Int("len", len(key)).Msg("ignoring malformed delivery key")
			}
		}
		c.Next()
	}
}

// GetDeliveryKey returns the key stored by DeliveryKey. The second return
// value reports presence.
func GetDeliveryKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyDelivery)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}
