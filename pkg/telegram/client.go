// Package telegram sends chat messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fieldops/internal/resilience"
)

// ErrNotConfigured is returned when no bot token is set. Callers treat it as
// a skipped delivery.
var ErrNotConfigured = errors.New("telegram: bot token not configured")

// Client sends messages to a chat.
type Client interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// APIError is a non-retryable rejection from the Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.StatusCode, e.Description)
}

// Option configures the client.
type Option func(*botClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *botClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *botClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *botClient) {
		c.http.Timeout = d
	}
}

// WithRateLimit overrides the default 1 message per second. Zero disables
// throttling.
func WithRateLimit(rps float64) Option {
	return func(c *botClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *botClient) {
		c.retry = p
	}
}

// WithBreaker guards calls with the given circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *botClient) {
		c.breaker = b
	}
}

type botClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
	breaker *resilience.Breaker
}

// NewClient creates a Bot API client. An empty token yields a client whose
// every send returns ErrNotConfigured.
func NewClient(token string, opts ...Option) Client {
	c := &botClient{
		token:   token,
		baseURL: "https://api.telegram.org",
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(1, 1),
		retry:   resilience.DefaultPolicy(),
		breaker: resilience.NewBreaker("telegram", 5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.OnRetry = resilience.LogRetry("telegram.sendMessage")
	return c
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c *botClient) SendMessage(ctx context.Context, chatID, text string) error {
	if c.token == "" {
		return ErrNotConfigured
	}
	if chatID == "" {
		return eris.New("telegram: chat id is required")
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return eris.Wrap(err, "telegram: marshal message")
	}

	err = resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.breaker == nil {
			return c.post(ctx, "sendMessage", payload)
		}
		return c.breaker.Call(ctx, func(ctx context.Context) error {
			return c.post(ctx, "sendMessage", payload)
		})
	})
	if err != nil {
		return eris.Wrapf(err, "telegram: send message to %s", chatID)
	}

	zap.L().Debug("telegram: message sent", zap.String("chat_id", chatID))
	return nil
}

func (c *botClient) post(ctx context.Context, method string, payload []byte) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "telegram: rate limit")
		}
	}

	url := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "telegram: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "telegram: %s request", method), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return eris.Wrap(err, "telegram: read response")
	}

	var out apiResponse
	if len(body) > 0 {
		_ = json.Unmarshal(body, &out)
	}
	if resp.StatusCode == http.StatusOK && out.OK {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Description: out.Description}
	if apiErr.Description == "" {
		apiErr.Description = http.StatusText(resp.StatusCode)
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(apiErr, resp.StatusCode)
	}
	return apiErr
}
