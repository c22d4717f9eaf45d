// Package completion wraps a chat completion API behind an ordered list of
// candidate models. Rate-limited calls are retried once after a fixed
// backoff, other failures move on to the next model, and when every model is
// exhausted a reply is synthesized locally. Generate never fails.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/skynow/internal/metrics"
)

const (
	// DefaultBaseURL is the OpenAI-compatible API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	triesPerModel    = 2
	rateLimitBackoff = 1 * time.Second

	defaultMaxTokens = 200
	defaultTimeout   = 30 * time.Second
)

var (
	errRateLimited            = errors.New("rate limited")
	errEmptyResponse          = errors.New("response has no content")
	errAllCandidatesExhausted = errors.New("all candidate models exhausted")
)

// Config is the immutable client configuration.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

// Request is one completion call.
type Request struct {
	Models      []string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Outcome is the result of Complete. Text is never empty.
type Outcome struct {
	Text         string
	Model        string // empty when Fallback is set
	Fallback     bool
	FallbackKind string
	Attempts     int
}

// Client is safe for concurrent use.
type Client struct {
	http       *resty.Client
	cfg        Config
	candidates []string

	sleep   func(ctx context.Context, d time.Duration) error
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = newResty(hc, c.cfg)
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client. Zero fields in cfg take their defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		candidates: Candidates(cfg.Model, cfg.FallbackModel),
		sleep:      sleepContext,
		logger:     zerolog.Nop(),
	}
	c.http = newResty(&http.Client{}, cfg)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newResty(hc *http.Client, cfg Config) *resty.Client {
	return resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// Candidates returns the configured model order.
func (c *Client) Candidates() []string {
	return append([]string(nil), c.candidates...)
}

// Generate returns generated text for prompt, or fallback text when no
// candidate model answers.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	return c.Complete(ctx, Request{Prompt: prompt}).Text
}

// Complete runs the candidate loop for req. Empty request fields take the
// client configuration.
func (c *Client) Complete(ctx context.Context, req Request) Outcome {
	if len(req.Models) == 0 {
		req.Models = c.candidates
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.cfg.Temperature
	}

	log := c.logger.With().Str("request_id", uuid.NewString()).Logger()

	if c.cfg.APIKey == "" {
		log.Debug().Msg("completion api key not configured; using local reply")
		return c.fallback(req.Prompt, KindUnconfigured, 0)
	}

	attempts := 0
candidates:
	for _, model := range req.Models {
		for try := 1; try <= triesPerModel; try++ {
			if ctx.Err() != nil {
				break candidates
			}

			attempts++
			text, err := c.attempt(ctx, model, req)
			if err == nil {
				c.metrics.CompletionAttempt(model, "success")
				log.Debug().Str("model", model).Int("attempts", attempts).Msg("completion succeeded")
				return Outcome{Text: text, Model: model, Attempts: attempts}
			}

			if errors.Is(err, errRateLimited) {
				c.metrics.CompletionAttempt(model, "rate_limited")
				log.Warn().Str("model", model).Int("try", try).Msg("completion rate limited")
				if try < triesPerModel {
					if err := c.sleep(ctx, rateLimitBackoff); err != nil {
						break candidates
					}
					continue
				}
				break
			}

			c.metrics.CompletionAttempt(model, "error")
			log.Warn().Err(err).Str("model", model).Msg("completion failed; trying next model")
			break
		}
	}

	log.Warn().Err(errAllCandidatesExhausted).Int("attempts", attempts).Msg("using local reply")
	return c.fallback(req.Prompt, "", attempts)
}

func (c *Client) fallback(prompt, kind string, attempts int) Outcome {
	detected, text := FallbackText(prompt)
	if kind == "" {
		kind = detected
	}
	c.metrics.CompletionFallback(kind)
	return Outcome{Text: text, Fallback: true, FallbackKind: kind, Attempts: attempts}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// attempt performs one call against model.
func (c *Client) attempt(ctx context.Context, model string, req Request) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.APIKey).
		SetBody(chatRequest{
			Model:       model,
			Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusTooManyRequests:
		return "", errRateLimited
	case !resp.IsSuccess():
		var apiErr apiError
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("status %d: %s", status, apiErr.Error.Message)
		}
		return "", fmt.Errorf("status %d", status)
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errEmptyResponse
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
