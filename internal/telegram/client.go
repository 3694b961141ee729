package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbourn/gitlab-telegram-bot/internal/observability"
)

const (
	// DefaultAPIBase is the public Bot API endpoint.
	DefaultAPIBase = "https://api.telegram.org"
	// requestTimeout bounds every call except the long poll.
	requestTimeout = 15 * time.Second
	// pollSlack is added to the long-poll window for the HTTP round trip.
	pollSlack = 10 * time.Second
	// maxResponseBody caps how much of an API response is read.
	maxResponseBody = 4 << 20
)

// ErrNoToken is returned by NewClient when the bot token is empty.
var ErrNoToken = errors.New("bot token is required")

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Options configures a Client.
type Options struct {
	Token   string
	APIBase string
	// RPS and Burst pace SendMessage. RPS <= 0 disables pacing.
	RPS   float64
	Burst int
	// HTTPClient overrides the transport; timeouts are applied per call via
	// the request context.
	HTTPClient *http.Client
}

// Client is a minimal Bot API client.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Client. The token is never logged.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, ErrNoToken
	}
	base := strings.TrimRight(opts.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	limit, burst := rate.Inf, opts.Burst
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	if burst < 1 {
		burst = 1
	}

	return &Client{
		endpoint:   base + "/bot" + token + "/",
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// apiResponse is the envelope around every Bot API result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// call POSTs payload as JSON to method and decodes the result into out
// (which may be nil).
func (c *Client) call(ctx context.Context, method string, payload, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error embeds the full URL, token included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram %s: status %d: decoding response: %w", method, resp.StatusCode, err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decoding result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends Markdown text to chatID, waiting for the send limiter
// first.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return errors.New("message text is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		observability.TelegramSends.WithLabelValues("error").Inc()
		return err
	}

	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	if err := c.call(ctx, "sendMessage", payload, nil, requestTimeout); err != nil {
		observability.TelegramSends.WithLabelValues("error").Inc()
		return err
	}
	observability.TelegramSends.WithLabelValues("ok").Inc()
	return nil
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", struct{}{}, &u, requestTimeout); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for message and channel post updates after offset.
// A zero timeout returns immediately.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "channel_post"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates, timeout+pollSlack); err != nil {
		return nil, err
	}
	return updates, nil
}
