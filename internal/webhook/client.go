// Package webhook pushes JSON payloads to the integration layer.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxResponseBytes = 500

// Result summarizes a delivery across all attempts.
type Result struct {
	Success    bool
	StatusCode int
	Response   string
	Error      string
	Attempts   int
}

// AsMap renders the result in the shape stored on the notification row.
func (r Result) AsMap() map[string]any {
	out := map[string]any{
		"success":  r.Success,
		"attempts": r.Attempts,
	}
	if r.StatusCode != 0 {
		out["status_code"] = r.StatusCode
	}
	if r.Response != "" {
		out["response"] = r.Response
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	return out
}

// Client posts payloads with a per-attempt timeout and a fixed attempt budget.
type Client struct {
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBackoff sets the pause between attempts; it grows linearly per attempt.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// NewClient builds a client. Non-positive values fall back to 10s and 3 attempts.
func NewClient(timeout time.Duration, maxAttempts int, logger *zap.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{timeout: timeout, maxAttempts: maxAttempts, backoff: 500 * time.Millisecond, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func accepted(code int) bool {
	return code == fiber.StatusOK || code == fiber.StatusCreated || code == fiber.StatusAccepted
}

// Post delivers payload to url. The returned error is non-nil when every
// attempt failed; Result is always populated.
func (c *Client) Post(ctx context.Context, url string, payload any) (Result, error) {
	var result Result
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			return result, err
		}
		result.Attempts = attempt

		code, body, err := c.once(url, payload)
		result.StatusCode = code
		result.Response = truncate(body)
		if err == nil && accepted(code) {
			result.Success = true
			result.Error = ""
			return result, nil
		}
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Error = fmt.Sprintf("unexpected status %d", code)
		}
		c.logger.Warn("webhook attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status", code),
			zap.String("error", result.Error),
		)

		if attempt < c.maxAttempts && c.backoff > 0 {
			select {
			case <-ctx.Done():
				result.Error = ctx.Err().Error()
				return result, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}
	return result, errors.New(result.Error)
}

func (c *Client) once(url string, payload any) (int, []byte, error) {
	agent := fiber.Post(url)
	agent.JSON(payload).Timeout(c.timeout)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, nil, err
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return code, body, errors.Join(errs...)
	}
	return code, body, nil
}

func truncate(body []byte) string {
	if len(body) > maxResponseBytes {
		body = body[:maxResponseBytes]
	}
	return string(body)
}
